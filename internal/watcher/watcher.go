// Package watcher keeps the index in step with the project tree: it walks the
// tree once for the initial index and then applies filesystem events.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"coderag/internal/contextutil"
	"coderag/internal/indexer"
	"coderag/internal/project"
)

const (
	// DefaultRenameWindow is how long a Rename waits for its matching Create.
	DefaultRenameWindow = 250 * time.Millisecond
	// DefaultWriteWindow is how long writes to one file are collected into a
	// single Modified event.
	DefaultWriteWindow = 100 * time.Millisecond
)

// ErrRunning is returned by Start when the watcher is already running.
var ErrRunning = errors.New("watcher already running")

// State is the lifecycle state of a Watcher.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

// Indexer applies file changes to the index.
type Indexer interface {
	IndexFile(ctx context.Context, path string) indexer.Result
	RemoveFile(ctx context.Context, path string) indexer.Result
}

// Rules is the part of the exclusion matcher the watcher needs.
type Rules interface {
	IsIgnoreFile(path string) bool
	SkipDir(name string) bool
	Reload(ctx context.Context) error
}

// Options configures a Watcher.
type Options struct {
	Recursive    bool
	RenameWindow time.Duration // DefaultRenameWindow when zero
	WriteWindow  time.Duration // DefaultWriteWindow when zero, negative disables coalescing
	BufferSize   int           // Event queue length, 256 when zero
}

// Watcher feeds filesystem changes under the project root to an Indexer.
// Events are applied one at a time, in arrival order, by a single goroutine.
type Watcher struct {
	project *project.Project
	indexer Indexer
	rules   Rules
	opts    Options

	mu     sync.Mutex
	state  State
	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped Watcher.
func New(p *project.Project, idx Indexer, rules Rules, opts Options) *Watcher {
	if opts.RenameWindow <= 0 {
		opts.RenameWindow = DefaultRenameWindow
	}
	if opts.WriteWindow == 0 {
		opts.WriteWindow = DefaultWriteWindow
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 256
	}
	return &Watcher{
		project: p,
		indexer: idx,
		rules:   rules,
		opts:    opts,
	}
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start subscribes to changes under the project root and begins dispatching.
// The watcher runs until Stop is called or ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Running {
		return ErrRunning
	}
	logger := contextutil.LoggerFromContext(ctx)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	events := make(chan Event, w.opts.BufferSize)

	tr := newTranslator(w.opts.RenameWindow, func(ev Event) {
		select {
		case events <- ev:
		case <-loopCtx.Done():
		}
	})
	tr.writeWindow = w.opts.WriteWindow
	tr.onDir = func(dir string) {
		if !w.opts.Recursive || w.rules.SkipDir(filepath.Base(dir)) {
			return
		}
		w.addTree(loopCtx, fsw, tr, dir, true)
	}

	if w.opts.Recursive {
		w.addTree(loopCtx, fsw, tr, w.project.Root(), false)
	} else if err := fsw.Add(w.project.Root()); err != nil {
		cancel()
		_ = fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.project.Root(), err)
	} else {
		tr.watchDir(w.project.Root())
	}

	// Read before the goroutines start; the reader owns tr from then on.
	dirs := len(tr.dirs)

	w.fsw = fsw
	w.cancel = cancel
	w.state = Running

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.readLoop(loopCtx, fsw, tr)
	}()
	go func() {
		defer w.wg.Done()
		w.dispatchLoop(loopCtx, events)
	}()

	logger.InfoContext(ctx, "watching for changes", "root", w.project.Root(), "recursive", w.opts.Recursive, "dirs", dirs)
	return nil
}

// Stop unsubscribes and waits for the event goroutines to exit. It is safe to
// call in any state and more than once.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.state == Stopped {
		w.mu.Unlock()
		return nil
	}
	w.cancel()
	err := w.fsw.Close()
	w.mu.Unlock()

	w.wg.Wait()

	w.mu.Lock()
	w.state = Stopped
	w.fsw = nil
	w.cancel = nil
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to close fsnotify watcher: %w", err)
	}
	return nil
}

// InitialIndex walks the project and indexes every file, one at a time.
// It returns the number of files that stored at least one chunk.
func (w *Watcher) InitialIndex(ctx context.Context) int {
	logger := contextutil.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "initial index started", "root", w.project.Root())

	start := time.Now()
	files, chunks := 0, 0
	err := w.project.Walk(ctx, w.rules.SkipDir, func(f project.ScannedFile) error {
		result := w.indexer.IndexFile(ctx, f.AbsPath)
		if result.Indexed > 0 {
			files++
			chunks += result.Indexed
			if files%10 == 0 {
				logger.InfoContext(ctx, "initial index progress", "files", files, "chunks", chunks)
			}
		}
		return nil
	})
	if err != nil {
		logger.WarnContext(ctx, "initial index interrupted", "error", err, "files", files)
	}

	logger.InfoContext(ctx, "initial index complete",
		"files", files,
		"chunks", chunks,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return files
}

// addTree watches dir and, when recursive, every directory below it that is
// not pruned. Files already present in a directory created while watching are
// reported as created, since their own events may predate the watch.
func (w *Watcher) addTree(ctx context.Context, fsw *fsnotify.Watcher, tr *translator, dir string, announce bool) {
	logger := contextutil.LoggerFromContext(ctx)

	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if announce && d.Type().IsRegular() {
				tr.emit(Event{Kind: Created, Path: path})
			}
			return nil
		}
		if path != dir && w.rules.SkipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			logger.WarnContext(ctx, "failed to watch directory", "dir", path, "error", err)
			return nil
		}
		tr.watchDir(path)
		return nil
	})
}

func (w *Watcher) readLoop(ctx context.Context, fsw *fsnotify.Watcher, tr *translator) {
	logger := contextutil.LoggerFromContext(ctx)
	defer tr.stopWrites()
	defer tr.clearPending()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			tr.handle(ev)
		case <-tr.expired():
			tr.flush()
		case <-tr.writesDue():
			tr.flushWrites()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			logger.WarnContext(ctx, "watch error", "error", err)
		}
	}
}

func (w *Watcher) dispatchLoop(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			w.dispatch(ctx, ev)
		}
	}
}

// dispatch applies one event. Ignore file changes reload the rules before
// the file itself is handled.
func (w *Watcher) dispatch(ctx context.Context, ev Event) {
	ctx = contextutil.WithAttrs(ctx, "event", ev.Kind.String())
	logger := contextutil.LoggerFromContext(ctx)
	logger.DebugContext(ctx, "file event", "path", ev.Path, "from", ev.From)

	if w.rules.IsIgnoreFile(ev.Path) || (ev.Kind == Renamed && w.rules.IsIgnoreFile(ev.From)) {
		logger.InfoContext(ctx, "ignore file changed, reloading rules", "path", ev.Path)
		if err := w.rules.Reload(ctx); err != nil {
			logger.ErrorContext(ctx, "failed to reload ignore rules", "error", err)
		}
	}

	switch ev.Kind {
	case Created, Modified:
		w.indexer.IndexFile(ctx, ev.Path)
	case Deleted:
		w.indexer.RemoveFile(ctx, ev.Path)
	case Renamed:
		w.indexer.RemoveFile(ctx, ev.From)
		w.indexer.IndexFile(ctx, ev.Path)
	}
}
