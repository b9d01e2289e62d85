// Package qdrant is a minimal REST client for a Qdrant collection. It
// assumes cosine distance and creates the collection on startup if missing.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rutvikswami/Intellidocs/internal/chunker"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore"
)

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// Storage talks to a Qdrant collection over its HTTP API.
type Storage struct {
	url        string
	apiKey     string
	collection string
	dimension  int
	client     *http.Client
}

// NewStorage creates the client and ensures the collection exists with the
// given vector dimension.
func NewStorage(ctx context.Context, cfg Config, dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	s := &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		dimension:  dimension,
		client:     &http.Client{Timeout: timeout},
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	// Qdrant returns 200 when the collection already exists with the same schema.
	if err := s.putJSON(ctx, fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return vectorstore.ErrDimensionMismatch
		}
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		// Qdrant point IDs must be integers or UUIDs, so the chunk ID goes
		// into the payload and the point key is derived from it.
		points[i] = map[string]any{
			"id":     uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunks[i].ID)).String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id": chunks[i].ID,
				"document": chunks[i].Document,
				"index":    chunks[i].Index,
				"text":     chunks[i].Text,
			},
		}
	}
	body := map[string]any{"points": points}
	return s.putJSON(ctx, fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body)
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]vectorstore.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := chunker.Chunk{}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			chunk.ID = v
		}
		if v, ok := r.Payload["document"].(string); ok {
			chunk.Document = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		results = append(results, vectorstore.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

func (s *Storage) DeleteDocument(ctx context.Context, document string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document", "match": map[string]any{"value": document}},
			},
		},
	}
	return s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
}

// Clear drops every point while keeping the collection and its schema.
func (s *Storage) Clear(ctx context.Context) error {
	body := map[string]any{
		"filter": map[string]any{},
	}
	return s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, s.collection), body, nil)
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	body := map[string]any{"exact": true}
	if err := s.postJSON(ctx, fmt.Sprintf("%s/collections/%s/points/count", s.url, s.collection), body, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) putJSON(ctx context.Context, url string, body any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Storage) postJSON(ctx context.Context, url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
