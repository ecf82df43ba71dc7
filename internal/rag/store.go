package rag

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"coderag/internal/contextutil"
	"coderag/internal/indexer"
	"coderag/internal/llm"
	"coderag/internal/vectorstore"
)

var _ indexer.DocumentStore = (*Store)(nil)

// Store is the document store behind the index: it embeds chunk text on
// write and on query, and keeps points in a single vector store collection.
type Store struct {
	embedder   llm.Embedder
	vectors    vectorstore.VectorStore
	collection string
}

// NewStore creates a new Store.
func NewStore(embedder llm.Embedder, vectors vectorstore.VectorStore, collection string) *Store {
	return &Store{
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
	}
}

// Collection returns the vector store collection name.
func (s *Store) Collection() string {
	return s.collection
}

// EnsureReady creates the collection if it does not exist yet. An existing
// collection must have the embedder's dimension.
func (s *Store) EnsureReady(ctx context.Context) error {
	if err := s.vectors.EnsureCollection(ctx, s.collection, s.embedder.Dimension()); err != nil {
		return fmt.Errorf("failed to ensure collection %s: %w", s.collection, err)
	}
	return nil
}

// Add embeds documents and stores them with their metadata under ids.
func (s *Store) Add(ctx context.Context, documents []string, metadatas []map[string]any, ids []string) error {
	if len(documents) != len(metadatas) || len(documents) != len(ids) {
		return fmt.Errorf("mismatched lengths: %d documents, %d metadatas, %d ids", len(documents), len(metadatas), len(ids))
	}
	if len(documents) == 0 {
		return nil
	}

	vectors, err := s.embedder.Embed(ctx, documents)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(documents) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(documents))
	}

	points := make([]vectorstore.Point, len(documents))
	for i := range documents {
		meta := make(map[string]any, len(metadatas[i])+2)
		maps.Copy(meta, metadatas[i])
		meta[DocumentField] = documents[i]
		meta[ChunkIDField] = ids[i]

		points[i] = vectorstore.Point{
			ID:   ids[i],
			Vec:  vectors[i],
			Meta: meta,
		}
	}

	if err := s.vectors.Upsert(ctx, s.collection, points); err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "documents stored", "collection", s.collection, "count", len(points))
	return nil
}

// DeleteBySource removes every chunk stored for source and returns their ids.
func (s *Store) DeleteBySource(ctx context.Context, source string) ([]string, error) {
	ids, err := s.vectors.ListIDs(ctx, s.collection, SourceField, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks of %s: %w", source, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	if err := s.vectors.Delete(ctx, s.collection, ids); err != nil {
		return nil, fmt.Errorf("failed to delete chunks of %s: %w", source, err)
	}
	return ids, nil
}

// Count returns the number of stored chunks.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.vectors.Count(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// QueryByText returns the k chunks closest to text.
func (s *Store) QueryByText(ctx context.Context, text string, k int) ([]QueryResult, error) {
	return s.Query(ctx, text, k, nil)
}

// Query is QueryByText restricted to chunks whose metadata matches every filter.
func (s *Store) Query(ctx context.Context, text string, k int, filters map[string]any) ([]QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("query text is empty")
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be greater than 0")
	}

	vectors, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("no embedding returned for query")
	}

	hits, err := s.vectors.Search(ctx, s.collection, vectors[0], k, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	results := make([]QueryResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, toQueryResult(hit))
	}
	return results, nil
}

// Info returns the collection status and the backends in use.
func (s *Store) Info(ctx context.Context) (Info, error) {
	info, err := s.vectors.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return Info{}, fmt.Errorf("failed to get collection info: %w", err)
	}
	return Info{
		Collection:       s.collection,
		Count:            info.PointsCount,
		VectorSize:       info.VectorSize,
		Status:           info.Status,
		VectorBackend:    s.vectors.Backend(),
		EmbeddingBackend: s.embedder.Name(),
	}, nil
}

// Ping reports whether the vector store answers and the collection exists.
func (s *Store) Ping(ctx context.Context) error {
	exists, err := s.vectors.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("vector store unavailable: %w", err)
	}
	if !exists {
		return fmt.Errorf("collection %s does not exist", s.collection)
	}
	return nil
}

func toQueryResult(hit vectorstore.SearchResult) QueryResult {
	meta := make(map[string]any, len(hit.Meta))
	for k, v := range hit.Meta {
		if k == DocumentField || k == ChunkIDField {
			continue
		}
		meta[k] = v
	}
	document, _ := hit.Meta[DocumentField].(string)

	return QueryResult{
		ID:       hit.PointID,
		Document: document,
		Metadata: meta,
		Distance: 1 - hit.Score,
	}
}
