package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when NewCachedEmbedder receives a non-positive size.
const DefaultCacheSize = 10000

// CachedEmbedder wraps an Embedder with an LRU cache keyed by the SHA-256 of
// the text. Only texts missing from the cache reach the wrapped backend.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder creates a cache holding up to size vectors.
func NewCachedEmbedder(next Embedder, size int) *CachedEmbedder {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		// Only fails for non-positive sizes.
		cache, _ = lru.New[string, []float32](DefaultCacheSize)
	}
	return &CachedEmbedder{next: next, cache: cache}
}

// Embed serves cached vectors and embeds the rest in one backend call.
// Returned vectors are copies.
func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		keys[i] = hashText(text)
		if vec, ok := c.cache.Get(keys[i]); ok {
			result[i] = append([]float32(nil), vec...)
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 && len(texts) > 0 {
		return result, nil
	}

	vectors, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vectors))
	}
	for j, vec := range vectors {
		i := missingIdx[j]
		result[i] = vec
		if !isZero(vec) {
			c.cache.Add(keys[i], append([]float32(nil), vec...))
		}
	}
	return result, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Dimension returns the wrapped backend's dimension.
func (c *CachedEmbedder) Dimension() int {
	return c.next.Dimension()
}

// Name returns the wrapped backend's name.
func (c *CachedEmbedder) Name() string {
	return c.next.Name()
}

// Ping pings the wrapped backend.
func (c *CachedEmbedder) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// isZero reports whether vec is a fallback vector, which must not be cached.
func isZero(vec []float32) bool {
	for _, x := range vec {
		if x != 0 {
			return false
		}
	}
	return true
}
