package llm

import (
	"context"
	"math"
	"testing"
)

func TestLocalEmbedder_Embed(t *testing.T) {
	l := NewLocalEmbedder(100)

	embeddings, err := l.Embed(context.Background(), []string{"alpha", "beta", "alpha"})
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	for i, emb := range embeddings {
		if len(emb) != 100 {
			t.Errorf("embedding[%d] size = %d, want 100", i, len(emb))
		}
		var sum float64
		for _, x := range emb {
			sum += float64(x) * float64(x)
		}
		if math.Abs(sum-1) > 1e-4 {
			t.Errorf("embedding[%d] squared norm = %v, want 1", i, sum)
		}
	}

	for j := range embeddings[0] {
		if embeddings[0][j] != embeddings[2][j] {
			t.Fatal("same text produced different vectors")
		}
	}

	same := true
	for j := range embeddings[0] {
		if embeddings[0][j] != embeddings[1][j] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestLocalEmbedder_Metadata(t *testing.T) {
	l := NewLocalEmbedder(8)
	if l.Dimension() != 8 {
		t.Errorf("Dimension() = %d, want 8", l.Dimension())
	}
	if l.Name() != "local/sha256" {
		t.Errorf("Name() = %q, want local/sha256", l.Name())
	}
	if err := l.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if _, err := l.Embed(context.Background(), nil); err == nil {
		t.Error("Embed() expected error for empty input")
	}
}
