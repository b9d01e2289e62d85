// Package memory is the default vector store backend. It keeps all vectors
// in process and scores queries by brute-force cosine similarity, which is
// fine for the corpus sizes a single upload session produces.
package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/rutvikswami/Intellidocs/internal/chunker"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore"
)

type entry struct {
	chunk  chunker.Chunk
	vector []float32
}

// Storage is an in-memory vector store. Safe for concurrent use.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]entry
}

// NewStorage creates an empty store expecting vectors of the given dimension.
func NewStorage(dimension int) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	return &Storage{
		dimension: dimension,
		entries:   make(map[string]entry),
	}, nil
}

func (s *Storage) Upsert(_ context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	for _, v := range vectors {
		if len(v) != s.dimension {
			return vectorstore.ErrDimensionMismatch
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range chunks {
		s.entries[c.ID] = entry{chunk: c, vector: vectors[i]}
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]vectorstore.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}
	if topK <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	results := make([]vectorstore.SearchResult, 0, len(s.entries))
	for _, e := range s.entries {
		results = append(results, vectorstore.SearchResult{
			Chunk: e.chunk,
			Score: cosine(vector, e.vector),
		})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

func (s *Storage) DeleteDocument(_ context.Context, document string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if e.chunk.Document == document {
			delete(s.entries, id)
		}
	}
	return nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]entry)
	return nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
