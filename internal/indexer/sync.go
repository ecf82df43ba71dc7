package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks coderag/internal/indexer DocumentStore

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"unicode/utf8"

	"coderag/internal/config"
	"coderag/internal/contextutil"
	"coderag/internal/project"
)

// DocumentStore is the keyed chunk store IndexSync reconciles against.
type DocumentStore interface {
	// Add stores documents with their metadata under the given ids.
	Add(ctx context.Context, documents []string, metadatas []map[string]any, ids []string) error
	// DeleteBySource removes every chunk whose source metadata equals source
	// and returns the removed ids.
	DeleteBySource(ctx context.Context, source string) ([]string, error)
}

// Gate decides whether a path may be indexed.
type Gate interface {
	IsAllowedExtension(path string) bool
	ShouldIndex(path string) bool
}

// SyncOptions configures chunking and store batching.
type SyncOptions struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int // Clamped to config.MaxBatchSize
}

// Sync reconciles the chunk set of single files with the document store.
// A source's chunks are always replaced as a whole: delete, then add.
type Sync struct {
	project   *project.Project
	gate      Gate
	store     DocumentStore
	builder   *RecordBuilder
	batchSize int
	locks     sourceLocks
	stats     Stats
}

// NewSync creates a new Sync.
func NewSync(p *project.Project, gate Gate, store DocumentStore, opts SyncOptions) *Sync {
	batchSize := opts.BatchSize
	if batchSize <= 0 || batchSize > config.MaxBatchSize {
		batchSize = config.MaxBatchSize
	}
	return &Sync{
		project:   p,
		gate:      gate,
		store:     store,
		builder:   NewRecordBuilder(opts.ChunkSize, opts.ChunkOverlap),
		batchSize: batchSize,
	}
}

// Project returns the project the sync resolves paths against.
func (s *Sync) Project() *project.Project {
	return s.project
}

// Stats returns cumulative counters.
func (s *Sync) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// IndexFile replaces the stored chunks of path with its current content.
// Failures are logged and reported in the result, never returned.
func (s *Sync) IndexFile(ctx context.Context, path string) Result {
	result := s.indexFile(ctx, path)
	s.stats.record(result, false)
	return result
}

func (s *Sync) indexFile(ctx context.Context, path string) Result {
	logger := contextutil.LoggerFromContext(ctx)

	relPath, err := s.project.Rel(path)
	if err != nil {
		logger.DebugContext(ctx, "skipping path outside project", "path", path)
		return Result{Skipped: 1}
	}
	absPath := s.project.Abs(relPath)

	if !s.gate.IsAllowedExtension(absPath) {
		return Result{Skipped: 1}
	}
	if !s.gate.ShouldIndex(absPath) {
		logger.DebugContext(ctx, "skipping excluded file", "rel_path", relPath)
		return Result{Skipped: 1}
	}

	// Held from the read to the last add so a concurrent RemoveFile is
	// applied either before the read or after the new chunks are stored.
	unlock := s.locks.lock(relPath)
	defer unlock()

	content, err := os.ReadFile(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.DebugContext(ctx, "file vanished before indexing", "rel_path", relPath)
			return Result{Skipped: 1}
		}
		logger.ErrorContext(ctx, "failed to read file", "rel_path", relPath, "error", err)
		return Result{Errors: 1}
	}
	if !isText(content) {
		logger.DebugContext(ctx, "skipping non-text file", "rel_path", relPath)
		return Result{Skipped: 1}
	}
	if strings.TrimSpace(string(content)) == "" {
		return Result{}
	}

	records := s.builder.Build(relPath, string(content))
	if len(records) == 0 {
		return Result{}
	}

	removed, err := s.store.DeleteBySource(ctx, relPath)
	if err != nil {
		logger.ErrorContext(ctx, "failed to delete old chunks", "rel_path", relPath, "error", err)
		return Result{Errors: 1}
	}
	if len(removed) > 0 {
		logger.DebugContext(ctx, "deleted old chunks", "rel_path", relPath, "count", len(removed))
	}

	stored := 0
	for start := 0; start < len(records); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "indexing interrupted", "rel_path", relPath, "stored", stored)
			return Result{Indexed: stored, Errors: 1}
		}

		end := min(start+s.batchSize, len(records))
		batch := records[start:end]

		documents := make([]string, len(batch))
		metadatas := make([]map[string]any, len(batch))
		ids := make([]string, len(batch))
		for i, r := range batch {
			documents[i] = r.Document
			metadatas[i] = r.Metadata
			ids[i] = r.ID
		}

		if err := s.store.Add(ctx, documents, metadatas, ids); err != nil {
			logger.ErrorContext(ctx, "failed to add chunks", "rel_path", relPath, "batch_start", start, "error", err)
			return Result{Indexed: stored, Errors: 1}
		}
		stored += len(batch)

		if end < len(records) {
			runtime.GC()
		}
	}

	logger.InfoContext(ctx, "indexed file", "rel_path", relPath, "chunks", stored)
	if logger.Enabled(ctx, slog.LevelDebug) {
		ts := tokenStats(records)
		logger.DebugContext(ctx, "chunk token stats", "rel_path", relPath,
			"min", ts.Min, "max", ts.Max, "mean", ts.Mean, "p95", ts.P95)
	}
	return Result{Indexed: stored}
}

// RemoveFile deletes every stored chunk of path. Removing nothing is not an error.
func (s *Sync) RemoveFile(ctx context.Context, path string) Result {
	logger := contextutil.LoggerFromContext(ctx)

	relPath, err := s.project.Rel(path)
	if err != nil {
		result := Result{Skipped: 1}
		s.stats.record(result, true)
		return result
	}

	unlock := s.locks.lock(relPath)
	removed, err := s.store.DeleteBySource(ctx, relPath)
	unlock()

	var result Result
	if err != nil {
		logger.ErrorContext(ctx, "failed to remove file", "rel_path", relPath, "error", err)
		result = Result{Errors: 1}
	} else {
		result = Result{Deleted: len(removed)}
		if len(removed) > 0 {
			logger.InfoContext(ctx, "removed file", "rel_path", relPath, "chunks", len(removed))
		}
	}

	s.stats.record(result, true)
	return result
}

// isText reports whether content looks like UTF-8 text.
func isText(content []byte) bool {
	if bytes.IndexByte(content, 0) >= 0 {
		return false
	}
	return utf8.Valid(content)
}
