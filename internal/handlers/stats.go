package handlers

import (
	"context"
	"net/http"

	"coderag/internal/contextutil"
	"coderag/internal/indexer"
	"coderag/internal/rag"
	"coderag/internal/watcher"
)

// StatsSource exposes the cumulative indexing counters.
type StatsSource interface {
	Stats() indexer.StatsSnapshot
}

// InfoSource describes the document store.
type InfoSource interface {
	Info(ctx context.Context) (rag.Info, error)
}

// StateSource reports the watcher state.
type StateSource interface {
	State() watcher.State
}

// StatsHandler handles HTTP requests for indexing statistics.
type StatsHandler struct {
	stats   StatsSource
	store   InfoSource
	watcher StateSource
}

// NewStatsHandler creates a new StatsHandler. w may be nil when no watcher runs.
func NewStatsHandler(stats StatsSource, store InfoSource, w StateSource) *StatsHandler {
	return &StatsHandler{
		stats:   stats,
		store:   store,
		watcher: w,
	}
}

// StatsResponse represents the stats response.
type StatsResponse struct {
	Indexing   indexer.StatsSnapshot `json:"indexing"`
	Store      *rag.Info             `json:"store,omitempty"`
	StoreError string                `json:"store_error,omitempty"`
	Watcher    string                `json:"watcher"`
}

// ServeHTTP returns the sync counters, the document count and the watcher state.
// A failing store lookup is reported in the body; counters are always returned.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := StatsResponse{
		Indexing: h.stats.Stats(),
		Watcher:  watcher.Stopped.String(),
	}
	if h.watcher != nil {
		resp.Watcher = h.watcher.State().String()
	}

	info, err := h.store.Info(ctx)
	if err != nil {
		logger.WarnContext(ctx, "failed to get store info", "error", err)
		resp.StoreError = err.Error()
	} else {
		resp.Store = &info
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
