package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_searcher.go -package=mocks coderag/internal/service Searcher
//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_search_service.go -package=mocks coderag/internal/service SearchService

import (
	"context"
	"strings"

	"coderag/internal/contextutil"
	"coderag/internal/rag"
)

// Limits for the number of results a search may ask for.
const (
	DefaultK = 5
	MaxK     = 100
)

// Searcher runs similarity queries against the document store.
// This interface is defined from the service layer's perspective (consumer-first).
type Searcher interface {
	Query(ctx context.Context, text string, k int, filters map[string]any) ([]rag.QueryResult, error)
}

// SearchRequest represents a search request in the domain layer.
type SearchRequest struct {
	Query    string
	K        int    // DefaultK when zero
	Language string // Optional language filter
	Source   string // Optional exact source path filter
	Rerank   bool   // Blend lexical matches into the vector ranking
}

// SearchResponse represents a search response in the domain layer.
type SearchResponse struct {
	Results []rag.QueryResult
}

// SearchService provides search over the indexed project.
type SearchService interface {
	// Search validates the request and returns the closest chunks.
	Search(ctx context.Context, req SearchRequest) (SearchResponse, error)
}

// searchService implements SearchService.
type searchService struct {
	searcher Searcher
}

// NewSearchService creates a new SearchService.
func NewSearchService(searcher Searcher) SearchService {
	return &searchService{searcher: searcher}
}

// Search processes a search request.
func (s *searchService) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query := strings.TrimSpace(req.Query)
	if query == "" {
		logger.WarnContext(ctx, "empty query in search request")
		return SearchResponse{}, invalidField("query", "cannot be empty")
	}

	k := req.K
	if k == 0 {
		k = DefaultK
	}
	if k < 1 || k > MaxK {
		return SearchResponse{}, invalidField("k", "must be between 1 and %d", MaxK)
	}

	var filters map[string]any
	if req.Language != "" || req.Source != "" {
		filters = make(map[string]any, 2)
		if req.Language != "" {
			filters["language"] = req.Language
		}
		if req.Source != "" {
			filters["source"] = req.Source
		}
	}

	// Reranking needs a wider candidate pool than the final page.
	fetch := k
	if req.Rerank {
		fetch = min(k*3, MaxK)
	}

	results, err := s.searcher.Query(ctx, query, fetch, filters)
	if err != nil {
		logger.ErrorContext(ctx, "failed to query document store", "error", err)
		return SearchResponse{}, externalError("query document store", err)
	}

	if req.Rerank {
		results = rag.Rerank(query, results)
	}
	if len(results) > k {
		results = results[:k]
	}
	if results == nil {
		results = []rag.QueryResult{}
	}

	logger.InfoContext(ctx, "search completed", "query_length", len(query), "k", k, "results", len(results), "rerank", req.Rerank)
	return SearchResponse{Results: results}, nil
}
