package rag

// Payload fields the store adds next to the chunk metadata.
const (
	DocumentField = "document"
	ChunkIDField  = "chunk_id"
	SourceField   = "source"
)

// QueryResult is one ranked chunk returned by a similarity query.
type QueryResult struct {
	// ID is the chunk id, "{source}_{chunk_index}".
	ID string `json:"id"`
	// Document is the chunk text.
	Document string `json:"document"`
	// Metadata holds the chunk metadata without the document text.
	Metadata map[string]any `json:"metadata"`
	// Distance is 1 - cosine similarity; lower is closer.
	Distance float32 `json:"distance"`
}

// Info describes the store for status endpoints.
type Info struct {
	Collection       string `json:"collection"`
	Count            int    `json:"count"`
	VectorSize       int    `json:"vector_size"`
	Status           string `json:"status"`
	VectorBackend    string `json:"vector_backend"`
	EmbeddingBackend string `json:"embedding_backend"`
}
