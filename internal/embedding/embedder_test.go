package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder(16)
	defer e.Close()

	a, err := e.Embed(ctx, "some claim text")
	if err != nil {
		t.Fatal(err)
	}
	b, err := e.Embed(ctx, "some claim text")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 16 || len(b) != 16 {
		t.Fatalf("dimension: %d, %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("same text produced different embeddings")
		}
	}

	c, _ := e.Embed(ctx, "different text")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}

func TestMockEmbedder_BatchMatchesSingle(t *testing.T) {
	ctx := context.Background()
	e := NewMockEmbedder(8)
	texts := []string{"one", "two", "three"}
	batch, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatal(err)
	}
	for i, text := range texts {
		single, _ := e.Embed(ctx, text)
		for j := range single {
			if batch[i][j] != single[j] {
				t.Fatalf("batch[%d] differs from single embed", i)
			}
		}
	}
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{
				Embedding: []float32{float32(i), 1, 0},
				Index:     i,
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-model", srv.URL, "", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	embs, err := e.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 2 {
		t.Fatalf("got %d embeddings", len(embs))
	}
	if embs[1][0] != 1 {
		t.Errorf("order not preserved: %v", embs[1])
	}
	if e.ModelName() != "test-model" || e.Dimensions() != 3 {
		t.Errorf("metadata: %s %d", e.ModelName(), e.Dimensions())
	}
}

func TestOpenAIEmbedder_BatchSize(t *testing.T) {
	var requests int
	var sizes []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sizes = append(sizes, len(req.Input))
		resp := embeddingResponse{}
		for i := range req.Input {
			resp.Data = append(resp.Data, embeddingData{
				Embedding: []float32{0, 1, 0},
				Index:     i,
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-model", srv.URL, "", 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	embs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(embs) != 5 {
		t.Fatalf("got %d embeddings, want 5", len(embs))
	}
	if requests != 3 {
		t.Errorf("got %d requests, want 3", requests)
	}
	for i, n := range sizes {
		if n > 2 {
			t.Errorf("request %d carried %d inputs, cap is 2", i, n)
		}
	}
}

func TestOpenAIEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: []float32{1, 2}, Index: 0}},
		})
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("test-model", srv.URL, "", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestOpenAIEmbedder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{
			Error: &apiError{Message: "model not found", Type: "invalid_request_error"},
		})
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("nope", srv.URL, "", 3, 0)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected API error")
	}
}
