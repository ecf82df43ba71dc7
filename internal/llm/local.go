package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// LocalEmbedder derives vectors from a SHA-256 hash of the text. It needs no
// network and is meant for tests and offline runs; similar texts do not get
// similar vectors.
type LocalEmbedder struct {
	dimension int
}

// NewLocalEmbedder creates a local embedder producing vectors of size dimension.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	return &LocalEmbedder{dimension: dimension}
}

// Embed returns a deterministic unit vector per text.
func (l *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	result := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result[i] = l.vector(text)
	}
	return result, nil
}

// vector expands the text hash into dimension values by hashing it with a
// running block counter.
func (l *LocalEmbedder) vector(text string) []float32 {
	seed := sha256.Sum256([]byte(text))
	vec := make([]float32, l.dimension)

	var block [sha256.Size + 8]byte
	copy(block[:], seed[:])
	for i := 0; i < l.dimension; i += sha256.Size {
		binary.BigEndian.PutUint64(block[sha256.Size:], uint64(i))
		sum := sha256.Sum256(block[:])
		for j := 0; j < sha256.Size && i+j < l.dimension; j++ {
			vec[i+j] = float32(sum[j])/127.5 - 1
		}
	}
	return normalize(vec)
}

// Dimension returns the vector size.
func (l *LocalEmbedder) Dimension() int {
	return l.dimension
}

// Name returns "local/sha256".
func (l *LocalEmbedder) Name() string {
	return BackendLocal + "/sha256"
}

// Ping always succeeds.
func (l *LocalEmbedder) Ping(context.Context) error {
	return nil
}
