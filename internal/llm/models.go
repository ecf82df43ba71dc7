package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// OllamaModel is one entry of the Ollama /api/tags listing.
type OllamaModel struct {
	Name string `json:"name"`
}

// OllamaTagsResponse represents the response from the /api/tags endpoint.
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// ModelStatus is one entry of an OpenAI-compatible /v1/models listing.
type ModelStatus struct {
	ID string `json:"id"`
}

// ModelsResponse represents the response from the /v1/models endpoint.
type ModelsResponse struct {
	Data []ModelStatus `json:"data"`
}

// hasModel reports whether want is listed, either exactly or by its base
// name before the ":" tag.
func hasModel(names []string, want string) bool {
	base, _, _ := strings.Cut(want, ":")
	for _, name := range names {
		if name == want {
			return true
		}
	}
	for _, name := range names {
		if strings.HasPrefix(name, base) {
			return true
		}
	}
	return false
}

// getJSON issues a GET request and decodes a 200 response into out.
func getJSON(ctx context.Context, client *http.Client, url, apiKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
