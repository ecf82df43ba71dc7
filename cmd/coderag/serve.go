package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	apihttp "coderag/internal/http"
	"coderag/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Index the project, watch it for changes and serve the query API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					slog.Error("failed to close", "error", err)
				}
			}()

			return a.serve(ctx, skipInitial)
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Skip the initial full index and only follow changes")
	return cmd
}

// serve starts the watcher, runs the initial index and serves the API until
// ctx is done. Watching starts first so changes made during the initial walk
// are not lost.
func (a *app) serve(ctx context.Context, skipInitial bool) error {
	if err := startIndexing(ctx, a.watcher, skipInitial); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}

	router := apihttp.NewRouter(&apihttp.Deps{
		SearchService: service.NewSearchService(a.store),
		Store:         a.store,
		Embedder:      a.embedder,
		Sync:          a.sync,
		Tree:          a.watcher,
		Watcher:       a.watcher,
	})

	srv := &http.Server{
		Addr:              ":" + a.cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.InfoContext(ctx, "server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.InfoContext(ctx, "shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		return errors.Join(srv.Shutdown(shutdownCtx), router.Shutdown(shutdownCtx), a.watcher.Stop())
	})

	return g.Wait()
}

// treeWatcher is the part of the watcher serve drives at startup.
type treeWatcher interface {
	Start(ctx context.Context) error
	InitialIndex(ctx context.Context) int
}

func startIndexing(ctx context.Context, w treeWatcher, skipInitial bool) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	if !skipInitial {
		w.InitialIndex(ctx)
	}
	return nil
}
