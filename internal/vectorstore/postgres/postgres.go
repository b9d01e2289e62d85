// Package postgres adapts the pgvector-backed chunk tables to the
// vectorstore contract. Distances come back from the <=> operator, so
// similarity is reported as 1 - distance.
package postgres

import (
	"context"

	"github.com/rutvikswami/Intellidocs/internal/chunker"
	"github.com/rutvikswami/Intellidocs/internal/store"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore"
)

// Storage persists vectors in Postgres through the shared store.
type Storage struct {
	store     *store.Store
	dimension int
}

func NewStorage(st *store.Store, dimension int) *Storage {
	return &Storage{store: st, dimension: dimension}
}

func (s *Storage) Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	for _, v := range vectors {
		if len(v) != s.dimension {
			return vectorstore.ErrDimensionMismatch
		}
	}
	byDoc := map[string][]store.ChunkRecord{}
	for i, c := range chunks {
		byDoc[c.Document] = append(byDoc[c.Document], store.ChunkRecord{
			ID:       c.ID,
			Document: c.Document,
			Index:    c.Index,
			Text:     c.Text,
			Vector:   vectors[i],
		})
	}
	for doc, records := range byDoc {
		if err := s.store.InsertDocumentChunks(ctx, doc, records); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.SearchResult, error) {
	if len(vector) != s.dimension {
		return nil, vectorstore.ErrDimensionMismatch
	}
	rows, err := s.store.SearchDocumentChunks(ctx, vector, topK)
	if err != nil {
		return nil, err
	}
	results := make([]vectorstore.SearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, vectorstore.SearchResult{
			Chunk: chunker.Chunk{
				ID:       r.ID,
				Document: r.Document,
				Index:    r.Index,
				Text:     r.Text,
			},
			Score: 1 - r.Distance,
		})
	}
	return results, nil
}

func (s *Storage) DeleteDocument(ctx context.Context, document string) error {
	return s.store.DeleteDocumentChunks(ctx, document)
}

func (s *Storage) Clear(ctx context.Context) error {
	return s.store.ClearDocumentChunks(ctx)
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	return s.store.CountChunks(ctx)
}
