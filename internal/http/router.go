package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"coderag/internal/handlers"
	"coderag/internal/service"
)

// Store is the document store as seen by the API.
type Store interface {
	handlers.Pinger
	handlers.InfoSource
}

// Sync is the index sync as seen by the API.
type Sync interface {
	handlers.StatsSource
	handlers.FileIndexer
}

// Deps holds dependencies for the HTTP router.
type Deps struct {
	SearchService service.SearchService
	Store         Store
	Embedder      handlers.Pinger // Optional health check
	Sync          Sync
	Tree          handlers.TreeIndexer
	Watcher       handlers.StateSource // Optional
}

// Router serves the API and owns the background work its handlers start.
type Router struct {
	http.Handler
	index *handlers.IndexHandler
}

// Shutdown stops background re-indexing started through the API and waits
// for it, or for ctx to be done.
func (rt *Router) Shutdown(ctx context.Context) error {
	return rt.index.Shutdown(ctx)
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Embedder)
	statsHandler := handlers.NewStatsHandler(deps.Sync, deps.Store, deps.Watcher)
	queryHandler := handlers.NewQueryHandler(deps.SearchService)
	indexHandler := handlers.NewIndexHandler(deps.Sync, deps.Tree)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Method(http.MethodGet, "/stats", statsHandler)
		r.Method(http.MethodPost, "/query", queryHandler)
		r.Method(http.MethodPost, "/index", indexHandler)
		r.Method(http.MethodDelete, "/index", indexHandler)
	})

	return &Router{Handler: r, index: indexHandler}
}
