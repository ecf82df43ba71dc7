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

// EmbeddingsClient is a client for OpenAI-compatible embeddings APIs
// (OpenAI, llama.cpp server, vLLM).
type EmbeddingsClient struct {
	BaseURL      string
	APIKey       string
	Model        string
	ExpectedSize int // Expected vector size for validation
	retry        RetryConfig
	client       *http.Client
}

// NewEmbeddingsClient creates a new embeddings client.
// All embeddings returned by Embed are validated against expectedSize.
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int, client *http.Client) *EmbeddingsClient {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &EmbeddingsClient{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		APIKey:       apiKey,
		Model:        model,
		ExpectedSize: expectedSize,
		retry:        DefaultRetryConfig(),
		client:       client,
	}
}

// EmbeddingsRequest represents the request payload for embeddings API.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// Embed embeds texts in one request. If the batch fails, each text is sent
// alone; a text that still fails is logged and gets a zero vector.
func (c *EmbeddingsClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}
	logger := contextutil.LoggerFromContext(ctx)

	vectors, err := retryWithBackoff(ctx, c.retry, func() ([][]float32, error) {
		return c.embedBatch(ctx, texts)
	})
	if err == nil {
		return vectors, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if len(texts) > 1 {
		logger.WarnContext(ctx, "batch embedding failed, embedding texts one by one", "count", len(texts), "error", err)
	}

	result := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.embedBatch(ctx, []string{text})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.ErrorContext(ctx, "failed to embed text", "backend", BackendOpenAI, "index", i, "error", err)
			result[i] = zeroVector(c.ExpectedSize)
			continue
		}
		result[i] = vec[0]
	}
	return result, nil
}

func (c *EmbeddingsClient) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	url := fmt.Sprintf("%s/v1/embeddings", c.BaseURL)

	payload := EmbeddingsRequest{
		Model: c.Model,
		Input: texts,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.APIKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
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

	var embeddingsResp EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	// Responses may be ordered by index rather than by position.
	result := make([][]float32, len(texts))
	for i, data := range embeddingsResp.Data {
		if len(data.Embedding) != c.ExpectedSize {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), c.ExpectedSize)
		}
		pos := i
		if data.Index >= 0 && data.Index < len(texts) && result[data.Index] == nil {
			pos = data.Index
		}
		result[pos] = toFloat32(data.Embedding)
	}
	for i, vec := range result {
		if vec == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return result, nil
}

// Dimension returns the expected vector size.
func (c *EmbeddingsClient) Dimension() int {
	return c.ExpectedSize
}

// Name returns "openai/{model}".
func (c *EmbeddingsClient) Name() string {
	return BackendOpenAI + "/" + c.Model
}

// Ping lists the server's models. Servers that do not list the configured
// model are accepted; some serve a single unnamed model.
func (c *EmbeddingsClient) Ping(ctx context.Context) error {
	var models ModelsResponse
	if err := getJSON(ctx, c.client, c.BaseURL+"/v1/models", c.APIKey, &models); err != nil {
		return fmt.Errorf("cannot reach embeddings server at %s: %w", c.BaseURL, err)
	}
	ids := make([]string, len(models.Data))
	for i, m := range models.Data {
		ids[i] = m.ID
	}
	if len(ids) > 0 && !hasModel(ids, c.Model) {
		contextutil.LoggerFromContext(ctx).WarnContext(ctx, "embedding model not listed by server", "model", c.Model, "models", ids)
	}
	return nil
}
