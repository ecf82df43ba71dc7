package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_vector_store.go -package=mocks coderag/internal/vectorstore VectorStore

import "context"

// Point represents a vector point with metadata. ID is the caller's key; a
// store that needs another key format maps it internally and returns the
// caller's key from ListIDs and Search.
type Point struct {
	ID   string
	Vec  []float32
	Meta map[string]any
}

// SearchResult represents a search result from vector search.
type SearchResult struct {
	PointID string
	Score   float32 // Cosine similarity, higher is closer
	Meta    map[string]any
}

// CollectionInfo contains information about a collection.
type CollectionInfo struct {
	VectorSize  int
	PointsCount int
	Status      string
}

// VectorStore defines the interface for vector storage operations.
type VectorStore interface {
	// EnsureCollection creates the collection if missing. An existing
	// collection with another vector size is an error.
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// Upsert inserts or updates points in the collection.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search performs a similarity search. Each filter entry requires the
	// payload field to equal the value.
	Search(ctx context.Context, collection string, query []float32, k int, filters map[string]any) ([]SearchResult, error)

	// Delete removes points by their IDs. Unknown IDs are ignored.
	Delete(ctx context.Context, collection string, ids []string) error

	// ListIDs returns the IDs of every point whose payload field equals value.
	ListIDs(ctx context.Context, collection, field, value string) ([]string, error)

	// Count returns the exact number of points in the collection.
	Count(ctx context.Context, collection string) (int, error)

	// GetCollectionInfo returns size and status information.
	GetCollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)

	// Backend names the implementation, e.g. "qdrant".
	Backend() string

	// Close releases connections.
	Close() error
}
