package openai_provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCreateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected auth header %q", got)
		}
		var body struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Model != "text-embedding-3-small" || len(body.Input) != 2 {
			t.Fatalf("unexpected body: %+v", body)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"object": "embedding", "embedding": []float32{0.1, 0.2}, "index": 0},
				{"object": "embedding", "embedding": []float32{0.3, 0.4}, "index": 1},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "gpt-4o-mini", "text-embedding-3-small", 0.2, 0, time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateEmbedding: %v", err)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 || vecs[1][1] != 0.4 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestCreateEmbeddingEmptyInput(t *testing.T) {
	c := NewOpenAIClient("sk-test", "http://unused", "m", "e", 0, 0, time.Second)
	vecs, err := c.CreateEmbedding(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Fatalf("expected nil,nil for empty input, got %v, %v", vecs, err)
	}
}

func TestCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var body request
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Fatalf("unexpected messages: %+v", body.Messages)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "hello"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "gpt-4o-mini", "e", 0.2, 512, time.Second)
	out, err := c.Completion(context.Background(), "be brief", "hi")
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if out != "hello" {
		t.Fatalf("unexpected completion %q", out)
	}
}

func TestUnreachableHostWrapsErrUnavailable(t *testing.T) {
	// A server that is immediately closed leaves a refused port behind.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "gpt-4o-mini", "e", 0.2, 0, time.Second)
	if _, err := c.CreateEmbedding(context.Background(), []string{"a"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("embedding err = %v, want ErrUnavailable", err)
	}
	if _, err := c.Completion(context.Background(), "", "hi"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("completion err = %v, want ErrUnavailable", err)
	}
}

func TestCompletionAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", srv.URL, "gpt-4o-mini", "e", 0.2, 0, time.Second)
	if _, err := c.Completion(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
