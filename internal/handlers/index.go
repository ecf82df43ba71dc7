package handlers

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"coderag/internal/contextutil"
	"coderag/internal/indexer"
)

// FileIndexer re-indexes or removes single files.
type FileIndexer interface {
	IndexFile(ctx context.Context, path string) indexer.Result
	RemoveFile(ctx context.Context, path string) indexer.Result
}

// TreeIndexer re-indexes the whole project.
type TreeIndexer interface {
	InitialIndex(ctx context.Context) int
}

// IndexHandler handles HTTP requests for triggering re-indexing.
// Background runs outlive their request and stop on Shutdown.
type IndexHandler struct {
	files   FileIndexer
	tree    TreeIndexer
	running atomic.Bool

	mu     sync.Mutex
	closed bool
	runs   sync.WaitGroup
	base   context.Context
	cancel context.CancelFunc
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(files FileIndexer, tree TreeIndexer) *IndexHandler {
	base, cancel := context.WithCancel(context.Background())
	return &IndexHandler{
		files:  files,
		tree:   tree,
		base:   base,
		cancel: cancel,
	}
}

// Shutdown cancels a background run and waits for it to return, or for ctx
// to be done. Later full runs are refused.
func (h *IndexHandler) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()

	done := make(chan struct{})
	go func() {
		h.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string          `json:"message"`
	Status  string          `json:"status"`
	Path    string          `json:"path,omitempty"`
	Result  *indexer.Result `json:"result,omitempty"`
}

// ServeHTTP handles the index endpoint.
//
//	POST   /api/index            re-index the whole tree in the background (202)
//	POST   /api/index?path=rel   re-index one file and return its result (200)
//	DELETE /api/index?path=rel   remove one file's chunks (200)
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)
	path := r.URL.Query().Get("path")

	switch {
	case r.Method == http.MethodPost && path != "":
		result := h.files.IndexFile(ctx, path)
		writeJSON(ctx, w, http.StatusOK, IndexResponse{
			Message: "File indexed",
			Status:  resultStatus(result),
			Path:    path,
			Result:  &result,
		})

	case r.Method == http.MethodDelete && path != "":
		result := h.files.RemoveFile(ctx, path)
		writeJSON(ctx, w, http.StatusOK, IndexResponse{
			Message: "File removed",
			Status:  resultStatus(result),
			Path:    path,
			Result:  &result,
		})

	case r.Method == http.MethodDelete:
		writeError(ctx, w, http.StatusBadRequest, "path is required")

	case r.Method == http.MethodPost:
		h.mu.Lock()
		if h.closed {
			h.mu.Unlock()
			writeError(ctx, w, http.StatusServiceUnavailable, "Server is shutting down")
			return
		}
		if !h.running.CompareAndSwap(false, true) {
			h.mu.Unlock()
			writeError(ctx, w, http.StatusConflict, "Indexing already in progress")
			return
		}
		h.runs.Add(1)
		h.mu.Unlock()
		logger.InfoContext(ctx, "re-indexing triggered via API")

		// The run outlives the request but keeps its logger.
		indexCtx := contextutil.WithAttrs(contextutil.WithLogger(h.base, logger), "trigger", "api")
		go func() {
			defer h.runs.Done()
			defer h.running.Store(false)
			files := h.tree.InitialIndex(indexCtx)
			if indexCtx.Err() != nil {
				logger.WarnContext(indexCtx, "re-indexing stopped by shutdown", "files", files)
				return
			}
			logger.InfoContext(indexCtx, "re-indexing completed", "files", files)
		}()

		writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
			Message: "Indexing started. Check server logs for progress.",
			Status:  "accepted",
		})

	default:
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func resultStatus(r indexer.Result) string {
	switch {
	case r.Errors > 0:
		return "error"
	case r.Skipped > 0:
		return "skipped"
	default:
		return "ok"
	}
}
