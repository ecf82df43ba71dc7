package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"coderag/internal/contextutil"
)

// MaxOllamaInputRunes is the prompt length sent to Ollama; longer texts are truncated.
const MaxOllamaInputRunes = 8000

// OllamaEmbedder calls the Ollama embeddings API one text at a time.
type OllamaEmbedder struct {
	BaseURL   string
	Model     string
	dimension int
	retry     RetryConfig
	client    *http.Client
}

// NewOllamaEmbedder creates a new Ollama embedder.
func NewOllamaEmbedder(baseURL, model string, dimension int, client *http.Client) *OllamaEmbedder {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &OllamaEmbedder{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Model:     model,
		dimension: dimension,
		retry:     DefaultRetryConfig(),
		client:    client,
	}
}

// OllamaEmbeddingRequest is the request payload for /api/embeddings.
type OllamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

// OllamaEmbeddingResponse is the response from /api/embeddings.
type OllamaEmbeddingResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed embeds each text separately. A text that cannot be embedded is logged
// and gets a zero vector so the batch keeps its shape.
func (o *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	logger := contextutil.LoggerFromContext(ctx)

	result := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		vec, err := retryWithBackoff(ctx, o.retry, func() ([]float32, error) {
			return o.embedOne(ctx, text)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.ErrorContext(ctx, "failed to embed text", "backend", BackendOllama, "index", i, "error", err)
			vec = zeroVector(o.dimension)
		}
		result[i] = vec
	}
	return result, nil
}

func (o *OllamaEmbedder) embedOne(ctx context.Context, text string) ([]float32, error) {
	if runes := []rune(text); len(runes) > MaxOllamaInputRunes {
		text = string(runes[:MaxOllamaInputRunes])
	}

	body, err := json.Marshal(OllamaEmbeddingRequest{Model: o.Model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/embeddings", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var embResp OllamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embResp.Embedding) != o.dimension {
		return nil, fmt.Errorf("embedding has size %d, expected %d", len(embResp.Embedding), o.dimension)
	}
	return toFloat32(embResp.Embedding), nil
}

// Dimension returns the configured vector size.
func (o *OllamaEmbedder) Dimension() int {
	return o.dimension
}

// Name returns "ollama/{model}".
func (o *OllamaEmbedder) Name() string {
	return BackendOllama + "/" + o.Model
}

// Ping checks that Ollama is running and has the model pulled.
func (o *OllamaEmbedder) Ping(ctx context.Context) error {
	var tags OllamaTagsResponse
	if err := getJSON(ctx, o.client, o.BaseURL+"/api/tags", "", &tags); err != nil {
		return fmt.Errorf("cannot reach ollama at %s: %w", o.BaseURL, err)
	}

	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	if !hasModel(names, o.Model) {
		return fmt.Errorf("model %q not found, run: ollama pull %s", o.Model, o.Model)
	}
	return nil
}
