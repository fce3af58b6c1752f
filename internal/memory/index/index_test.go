package index

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(32)
	a, err := e.Embed(context.Background(), []string{"the caravan left at dawn"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	b, err := e.Embed(context.Background(), []string{"the caravan left at dawn"})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i := range a[0] {
		if a[0][i] != b[0][i] {
			t.Fatalf("embedding not deterministic at dim %d: %f != %f", i, a[0][i], b[0][i])
		}
	}
	if e.Dimension() != 32 {
		t.Errorf("dimension: got %d, want 32", e.Dimension())
	}
}

func TestMemoryIndexRanksByCosine(t *testing.T) {
	ctx := context.Background()
	e := NewHashEmbedder(64)
	idx := NewMemoryIndex()

	texts := map[string]string{
		"a": "coffee with the caravan guards",
		"b": "repairing the water pump",
	}
	for id, text := range texts {
		vecs, err := e.Embed(ctx, []string{text})
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		if err := idx.Upsert(ctx, id, vecs[0], map[string]string{"content": text}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	qv, _ := e.Embed(ctx, []string{"coffee with guards"})
	hits, err := idx.Search(ctx, qv[0], 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("no hits")
	}
	if hits[0].ID != "a" {
		t.Errorf("top hit: got %s, want a", hits[0].ID)
	}

	if err := idx.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	hits, _ = idx.Search(ctx, qv[0], 2)
	for _, h := range hits {
		if h.ID == "a" {
			t.Error("deleted entry still returned")
		}
	}
}

func TestAPIEmbedder(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		resp := apiResponse{
			Data: []apiEmbeddingData{{Embedding: []float32{0.1, 0.2, 0.3}}},
		}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewAPIEmbedder(EmbedderConfig{Endpoint: srv.URL, Model: "test-model"})
	vectors, err := p.Embed(context.Background(), []string{"hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vectors) != 1 || len(vectors[0]) != 3 {
		t.Fatalf("got %d vectors of dim %d, want 1 of dim 3", len(vectors), len(vectors[0]))
	}
	if p.Dimension() != 3 {
		t.Errorf("dimension: got %d, want 3", p.Dimension())
	}
}
