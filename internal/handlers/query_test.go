package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"coderag/internal/rag"
	"coderag/internal/service"
	"coderag/internal/service/mocks"

	"go.uber.org/mock/gomock"
)

func TestNewQueryHandler(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockSearchService := mocks.NewMockSearchService(ctrl)

	handler := NewQueryHandler(mockSearchService)
	if handler == nil {
		t.Fatal("NewQueryHandler() returned nil")
	}
	if handler.searchService != mockSearchService {
		t.Error("NewQueryHandler() searchService not set correctly")
	}
}

func TestQueryHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name          string
		method        string
		body          any
		mockSetup     func(*mocks.MockSearchService)
		wantStatus    int
		checkResponse func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:   "successful query",
			method: http.MethodPost,
			body:   QueryRequest{Query: "where are chunks split", K: 2, Language: "go"},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().
					Search(gomock.Any(), service.SearchRequest{Query: "where are chunks split", K: 2, Language: "go"}).
					Return(service.SearchResponse{Results: []rag.QueryResult{
						{ID: "internal/indexer/chunker.go_0", Document: "func Chunk", Distance: 0.1},
					}}, nil)
			},
			wantStatus: http.StatusOK,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp QueryResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if len(resp.Results) != 1 || resp.Results[0].ID != "internal/indexer/chunker.go_0" {
					t.Errorf("results = %+v", resp.Results)
				}
				if resp.Query != "where are chunks split" {
					t.Errorf("query = %q", resp.Query)
				}
			},
		},
		{
			name:       "method not allowed",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "invalid JSON body",
			method:     http.MethodPost,
			body:       "invalid json",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "validation error",
			method: http.MethodPost,
			body:   QueryRequest{Query: ""},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).
					Return(service.SearchResponse{}, &service.ValidationError{Field: "query", Message: "cannot be empty"})
			},
			wantStatus: http.StatusBadRequest,
			checkResponse: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp ErrorResponse
				if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
					t.Fatalf("failed to decode response: %v", err)
				}
				if resp.Error != "invalid query: cannot be empty" {
					t.Errorf("error = %q", resp.Error)
				}
			},
		},
		{
			name:   "k out of range",
			method: http.MethodPost,
			body:   QueryRequest{Query: "q", K: 500},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).
					Return(service.SearchResponse{}, &service.ValidationError{Field: "k", Message: "must be between 1 and 100"})
			},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:   "backend unavailable",
			method: http.MethodPost,
			body:   QueryRequest{Query: "q"},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).
					Return(service.SearchResponse{}, fmt.Errorf("%w: %w", service.ErrExternalService, errors.New("dial tcp")))
			},
			wantStatus: http.StatusBadGateway,
		},
		{
			name:   "unexpected error",
			method: http.MethodPost,
			body:   QueryRequest{Query: "q"},
			mockSetup: func(m *mocks.MockSearchService) {
				m.EXPECT().Search(gomock.Any(), gomock.Any()).Return(service.SearchResponse{}, errors.New("boom"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockSearchService := mocks.NewMockSearchService(ctrl)
			if tt.mockSetup != nil {
				tt.mockSetup(mockSearchService)
			}
			handler := NewQueryHandler(mockSearchService)

			var body bytes.Buffer
			if s, ok := tt.body.(string); ok {
				body.WriteString(s)
			} else if tt.body != nil {
				if err := json.NewEncoder(&body).Encode(tt.body); err != nil {
					t.Fatal(err)
				}
			}

			req := httptest.NewRequest(tt.method, "/api/query", &body)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, w)
			}
		})
	}
}
