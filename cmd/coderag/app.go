package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"coderag/internal/config"
	"coderag/internal/ignore"
	"coderag/internal/indexer"
	"coderag/internal/llm"
	"coderag/internal/project"
	"coderag/internal/rag"
	"coderag/internal/storage"
	"coderag/internal/vectorstore"
	"coderag/internal/watcher"
)

// app holds the wired components shared by every command.
type app struct {
	cfg      *config.Config
	project  *project.Project
	matcher  *ignore.Matcher
	embedder llm.Embedder
	vectors  vectorstore.VectorStore
	store    *rag.Store
	sync     *indexer.Sync
	watcher  *watcher.Watcher
}

// newApp builds the components and checks that the backends are usable.
// The caller must Close the returned app.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	p, err := project.New(cfg.ProjectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open project: %w", err)
	}

	matcher := ignore.New(p, ignore.Options{
		Extensions:   cfg.Extensions,
		ExcludeDirs:  cfg.ExcludeDirs,
		ExcludeFiles: cfg.ExcludeFiles,
		IgnoreHidden: cfg.IgnoreHidden,
	})
	if err := matcher.Reload(ctx); err != nil {
		return nil, err
	}

	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	if err := embedder.Ping(ctx); err != nil {
		return nil, fmt.Errorf("embedding backend %s unavailable: %w", embedder.Name(), err)
	}

	vectors, err := newVectorStore(cfg)
	if err != nil {
		return nil, err
	}

	store := rag.NewStore(embedder, vectors, cfg.CollectionName)
	if err := store.EnsureReady(ctx); err != nil {
		return nil, errors.Join(err, vectors.Close())
	}

	sync := indexer.NewSync(p, matcher, store, indexer.SyncOptions{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.BatchSize,
	})

	slog.InfoContext(ctx, "components ready",
		"project_root", p.Root(),
		"store", vectors.Backend(),
		"collection", store.Collection(),
		"embedder", embedder.Name(),
		"dimension", embedder.Dimension(),
	)

	return &app{
		cfg:      cfg,
		project:  p,
		matcher:  matcher,
		embedder: embedder,
		vectors:  vectors,
		store:    store,
		sync:     sync,
		watcher:  watcher.New(p, sync, matcher, watcher.Options{Recursive: cfg.Recursive}),
	}, nil
}

func newVectorStore(cfg *config.Config) (vectorstore.VectorStore, error) {
	switch cfg.StoreBackend {
	case config.StoreQdrant:
		vs, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		return vs, nil
	case config.StoreSQLite:
		repo, err := storage.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// Close stops the watcher and releases the vector store.
func (a *app) Close() error {
	return errors.Join(a.watcher.Stop(), a.vectors.Close())
}
