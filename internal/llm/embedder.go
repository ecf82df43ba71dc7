package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks coderag/internal/llm Embedder

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"coderag/internal/config"
)

// Backend names.
const (
	BackendOllama = config.EmbeddingOllama
	BackendOpenAI = config.EmbeddingOpenAI
	BackendLocal  = config.EmbeddingLocal
)

// Embedder turns texts into fixed-size vectors.
type Embedder interface {
	// Embed returns one vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the length of every returned vector.
	Dimension() int
	// Name identifies the backend and model, e.g. "ollama/mxbai-embed-large:335m".
	Name() string
	// Ping checks that the backend is reachable and serves the model.
	Ping(ctx context.Context) error
}

// NewEmbedder builds the embedding backend selected by cfg, wrapped in a cache
// when cfg.EmbeddingCacheSize is positive.
func NewEmbedder(cfg *config.Config) (Embedder, error) {
	if cfg.EmbeddingDimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be greater than 0")
	}

	httpClient := &http.Client{Timeout: cfg.EmbeddingTimeout}

	var e Embedder
	switch cfg.EmbeddingBackend {
	case BackendOllama:
		e = NewOllamaEmbedder(cfg.EmbeddingBaseURL, cfg.EmbeddingModelName, cfg.EmbeddingDimension, httpClient)
	case BackendOpenAI:
		e = NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimension, httpClient)
	case BackendLocal:
		e = NewLocalEmbedder(cfg.EmbeddingDimension)
	default:
		return nil, fmt.Errorf("unknown embedding backend %q", cfg.EmbeddingBackend)
	}

	if cfg.EmbeddingCacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.EmbeddingCacheSize)
	}
	return e, nil
}

// defaultHTTPClient is used when a constructor receives a nil client.
func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

func zeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// normalize scales v to unit length in place. A zero vector is left as is.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
