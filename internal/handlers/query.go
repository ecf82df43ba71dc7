package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"coderag/internal/contextutil"
	"coderag/internal/rag"
	"coderag/internal/service"
)

// QueryHandler handles HTTP requests for similarity search.
type QueryHandler struct {
	searchService service.SearchService
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(searchService service.SearchService) *QueryHandler {
	return &QueryHandler{searchService: searchService}
}

// QueryRequest represents the HTTP request payload for queries.
type QueryRequest struct {
	Query    string `json:"query"`
	K        int    `json:"k,omitempty"`
	Language string `json:"language,omitempty"`
	Source   string `json:"source,omitempty"`
	Rerank   bool   `json:"rerank,omitempty"`
}

// QueryResponse represents the HTTP response payload for queries.
type QueryResponse struct {
	Query   string            `json:"query"`
	Results []rag.QueryResult `json:"results"`
}

// ServeHTTP handles POST /api/query.
func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(ctx, w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(ctx, w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.searchService.Search(ctx, service.SearchRequest{
		Query:    req.Query,
		K:        req.K,
		Language: req.Language,
		Source:   req.Source,
		Rerank:   req.Rerank,
	})
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.As(err, &validationErr):
			writeError(ctx, w, http.StatusBadRequest, validationErr.Error())
		case errors.Is(err, service.ErrInvalidInput):
			writeError(ctx, w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrExternalService):
			logger.ErrorContext(ctx, "search failed", "error", err)
			writeError(ctx, w, http.StatusBadGateway, "Search backend unavailable")
		default:
			logger.ErrorContext(ctx, "search failed", "error", err)
			writeError(ctx, w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	writeJSON(ctx, w, http.StatusOK, QueryResponse{
		Query:   req.Query,
		Results: resp.Results,
	})
}
