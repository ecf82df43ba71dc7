package handlers

import (
	"context"
	"net/http"
	"time"

	"coderag/internal/contextutil"
)

// Pinger checks that a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	store              Pinger
	embedder           Pinger
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. embedder may be nil to skip
// the embedding backend check.
func NewHealthHandler(store Pinger, embedder Pinger) *HealthHandler {
	return &HealthHandler{
		store:              store,
		embedder:           embedder,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	// Overall health status: "healthy", "degraded", or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is degraded or unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP reports the health of the vector store and the embedding backend.
// Returns 200 OK if healthy, 503 Service Unavailable if degraded or unhealthy.
//
// The vector store is the critical dependency: when it fails the service is
// unhealthy. A failing embedding backend only degrades it, since stored
// chunks stay readable.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string
	status := "healthy"

	if h.embedder != nil {
		if err := h.embedder.Ping(checkCtx); err != nil {
			logger.WarnContext(ctx, "embedding backend health check failed", "error", err)
			checks["embedding"] = "error"
			issues = append(issues, "embedding_unavailable")
			status = "degraded"
		} else {
			checks["embedding"] = "ok"
		}
	}

	if err := h.store.Ping(checkCtx); err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
		status = "unhealthy"
	} else {
		checks["vector_store"] = "ok"
	}

	httpStatus := http.StatusOK
	if len(issues) > 0 {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(ctx, w, httpStatus, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Issues:    issues,
	})
}
