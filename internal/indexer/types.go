package indexer

// Metadata keys stored with every chunk.
const (
	MetaSource      = "source"
	MetaFilename    = "filename"
	MetaExtension   = "extension"
	MetaLanguage    = "language"
	MetaChunkIndex  = "chunk_index"
	MetaTotalChunks = "total_chunks"
	MetaDirectory   = "directory"
	MetaTitle       = "title" // markdown only
)

// Record is one chunk of a source file ready for the document store.
type Record struct {
	ID       string         // "{source}_{chunk_index}"
	Document string         // Chunk text
	Metadata map[string]any // See Meta* keys
}

// Result reports the outcome of one IndexFile or RemoveFile call.
type Result struct {
	Indexed int `json:"indexed"` // Chunks stored
	Errors  int `json:"errors"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"` // Chunks removed
}
