package indexer

import "strings"

// MinChunkLength is the trimmed length a chunk must exceed to be kept.
const MinChunkLength = 50

// span is a half-open rune range [start, end) of the chunked content.
type span struct {
	start, end int
}

// Chunk splits content into overlapping chunks of at most chunkSize characters.
//
// Chunk ends snap back to the last newline in the window so lines stay whole.
// The cursor always moves forward: when end-overlap would not advance it, the
// next chunk starts at end+1. Chunks whose trimmed length is not greater than
// MinChunkLength are dropped; if none survive, the first chunkSize characters
// are returned as a single fallback chunk.
//
// Offsets count runes, so multi-byte characters are never split. The result
// depends only on the arguments.
func Chunk(content string, chunkSize, overlap int) []string {
	if chunkSize <= 0 || content == "" {
		return nil
	}

	runes := []rune(content)

	var chunks []string
	for _, sp := range spans(runes, chunkSize, overlap) {
		chunk := strings.TrimSpace(string(runes[sp.start:sp.end]))
		if len([]rune(chunk)) > MinChunkLength {
			chunks = append(chunks, chunk)
		}
	}

	if len(chunks) == 0 {
		return []string{string(runes[:min(chunkSize, len(runes))])}
	}
	return chunks
}

// spans returns every window visited by the chunking cursor, before filtering.
func spans(runes []rune, chunkSize, overlap int) []span {
	n := len(runes)
	var out []span
	start := 0
	iterations := 0

	for start < n {
		iterations++
		end := min(start+chunkSize, n)

		if end < n {
			if nl := lastNewline(runes, start, end); nl > start {
				end = nl + 1
			}
		}
		out = append(out, span{start: start, end: end})

		if next := end - overlap; next > start {
			start = next
		} else {
			start = end + 1
		}

		// Pathological-input guard.
		if iterations > n {
			break
		}
	}
	return out
}

// lastNewline returns the index of the last '\n' in runes[start:end], or -1.
func lastNewline(runes []rune, start, end int) int {
	for i := end - 1; i >= start; i-- {
		if runes[i] == '\n' {
			return i
		}
	}
	return -1
}
