package indexer

import (
	"fmt"
	"path"
	"strings"

	"coderag/internal/project"
)

// RecordBuilder turns file content into chunk records.
type RecordBuilder struct {
	chunkSize int
	overlap   int
	titler    *markdownTitler
}

// NewRecordBuilder creates a builder using the given chunking parameters.
func NewRecordBuilder(chunkSize, overlap int) *RecordBuilder {
	return &RecordBuilder{
		chunkSize: chunkSize,
		overlap:   overlap,
		titler:    newMarkdownTitler(),
	}
}

// Build chunks content and attaches metadata for relPath, a slash separated
// path relative to the project root. Record ids are "{relPath}_{index}".
func (b *RecordBuilder) Build(relPath, content string) []Record {
	chunks := Chunk(content, b.chunkSize, b.overlap)
	if len(chunks) == 0 {
		return nil
	}

	filename := path.Base(relPath)
	ext := strings.ToLower(path.Ext(filename))
	language := LanguageFor(ext)
	directory := project.Folder(relPath)

	var title string
	if ext == ".md" {
		title = b.titler.Title([]byte(content), filename)
	}

	records := make([]Record, len(chunks))
	for i, chunk := range chunks {
		meta := map[string]any{
			MetaSource:      relPath,
			MetaFilename:    filename,
			MetaExtension:   ext,
			MetaLanguage:    language,
			MetaChunkIndex:  i,
			MetaTotalChunks: len(chunks),
			MetaDirectory:   directory,
		}
		if title != "" {
			meta[MetaTitle] = title
		}

		records[i] = Record{
			ID:       RecordID(relPath, i),
			Document: chunk,
			Metadata: meta,
		}
	}
	return records
}

// RecordID returns the stable id of chunk index of source.
func RecordID(source string, index int) string {
	return fmt.Sprintf("%s_%d", source, index)
}
