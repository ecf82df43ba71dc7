package watcher

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Kind is the kind of a file event.
type Kind int

const (
	Created Kind = iota + 1
	Modified
	Deleted
	Renamed
)

func (k Kind) String() string {
	switch k {
	case Created:
		return "created"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	case Renamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// Event is a change to one file. From is set for Renamed only.
type Event struct {
	Kind Kind
	Path string
	From string
}

// translator turns raw fsnotify events into Events. fsnotify reports a
// rename as Rename on the old name followed by Create on the new one, so a
// Rename is held until the next event or until the pairing window expires.
// Writes are held for writeWindow and reported once per path; a later
// create, remove or rename of the same path discards the held write.
// A translator is owned by a single goroutine.
type translator struct {
	window  time.Duration
	emit    func(Event)
	isDir   func(path string) bool
	onDir   func(path string) // called for directories created while watching
	dirs    map[string]struct{}
	pending string
	timer   *time.Timer

	writeWindow time.Duration // zero reports every write at once
	writes      []string      // held writes in arrival order
	writeTimer  *time.Timer
}

func newTranslator(window time.Duration, emit func(Event)) *translator {
	return &translator{
		window: window,
		emit:   emit,
		isDir: func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && info.IsDir()
		},
		onDir: func(string) {},
		dirs:  make(map[string]struct{}),
	}
}

// watchDir records path as a watched directory.
func (t *translator) watchDir(path string) {
	t.dirs[filepath.Clean(path)] = struct{}{}
}

// expired returns the channel that fires when a held rename is unpaired.
func (t *translator) expired() <-chan time.Time {
	if t.timer == nil {
		return nil
	}
	return t.timer.C
}

// writesDue returns the channel that fires when held writes should be reported.
func (t *translator) writesDue() <-chan time.Time {
	if t.writeTimer == nil {
		return nil
	}
	return t.writeTimer.C
}

func (t *translator) handle(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)

	switch {
	case ev.Has(fsnotify.Create):
		if t.isDir(name) {
			t.flush()
			t.onDir(name)
			return
		}
		t.dropWrite(name)
		if t.pending != "" {
			from := t.pending
			t.clearPending()
			t.emit(Event{Kind: Renamed, Path: name, From: from})
			return
		}
		t.emit(Event{Kind: Created, Path: name})

	case ev.Has(fsnotify.Remove):
		t.flush()
		if t.forgetDir(name) {
			return
		}
		t.dropWrite(name)
		t.emit(Event{Kind: Deleted, Path: name})

	case ev.Has(fsnotify.Rename):
		t.flush()
		if t.forgetDir(name) {
			return
		}
		t.dropWrite(name)
		t.pending = name
		t.timer = time.NewTimer(t.window)

	case ev.Has(fsnotify.Write):
		t.flush()
		t.holdWrite(name)
	}
}

func (t *translator) holdWrite(name string) {
	if t.writeWindow <= 0 {
		t.emit(Event{Kind: Modified, Path: name})
		return
	}
	if slices.Contains(t.writes, name) {
		return
	}
	t.writes = append(t.writes, name)
	if t.writeTimer == nil {
		t.writeTimer = time.NewTimer(t.writeWindow)
	}
}

// flushWrites reports every held write as one Modified event per path.
func (t *translator) flushWrites() {
	writes := t.writes
	t.stopWrites()
	for _, name := range writes {
		t.emit(Event{Kind: Modified, Path: name})
	}
}

func (t *translator) dropWrite(name string) {
	if i := slices.Index(t.writes, name); i >= 0 {
		t.writes = slices.Delete(t.writes, i, i+1)
		if len(t.writes) == 0 {
			t.stopWrites()
		}
	}
}

func (t *translator) stopWrites() {
	t.writes = nil
	if t.writeTimer != nil {
		t.writeTimer.Stop()
		t.writeTimer = nil
	}
}

// flush reports a held rename as a deletion.
func (t *translator) flush() {
	if t.pending == "" {
		return
	}
	from := t.pending
	t.clearPending()
	t.emit(Event{Kind: Deleted, Path: from})
}

func (t *translator) clearPending() {
	t.pending = ""
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *translator) forgetDir(path string) bool {
	if _, ok := t.dirs[path]; !ok {
		return false
	}
	delete(t.dirs, path)
	return true
}
