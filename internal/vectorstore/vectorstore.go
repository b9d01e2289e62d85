// Package vectorstore defines the storage contract for chunk embeddings.
// Backends: in-process memory (default), Qdrant over REST, and Postgres
// with pgvector.
package vectorstore

import (
	"context"
	"errors"

	"github.com/rutvikswami/Intellidocs/internal/chunker"
)

// ErrDimensionMismatch is returned when a vector's length does not match the
// dimension the store was initialized with.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// SearchResult pairs a stored chunk with its cosine similarity to the query.
type SearchResult struct {
	Chunk chunker.Chunk
	Score float64
}

// Store holds chunk embeddings and answers nearest-neighbour queries.
type Store interface {
	// Upsert stores chunks with their vectors. Chunk IDs are the keys, so
	// re-ingesting a document replaces its previous vectors.
	Upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error
	// Search returns up to topK chunks ordered by similarity, best first.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// DeleteDocument removes every chunk belonging to the named document.
	DeleteDocument(ctx context.Context, document string) error
	// Clear removes every stored chunk.
	Clear(ctx context.Context) error
	// Count reports the number of stored chunks.
	Count(ctx context.Context) (int, error)
}
