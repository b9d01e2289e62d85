// Package index keeps a keyword index over ingested chunks. It backs the
// /api/search endpoint and serves as the retrieval fallback when the
// embedding provider is unavailable.
package index

import (
	"sync"

	"github.com/blevesearch/bleve"

	"github.com/rutvikswami/Intellidocs/internal/chunker"
)

// Hit is a lexical search result with a BM25 relevance score.
type Hit struct {
	Chunk chunker.Chunk
	Score float64
	Rank  int
}

// Index is an in-memory bleve index over chunk text. Safe for concurrent use.
type Index struct {
	bleve bleve.Index
	meta  map[string]chunker.Chunk
	mu    sync.RWMutex
}

// New creates an empty in-memory index.
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{
		bleve: idx,
		meta:  make(map[string]chunker.Chunk),
	}, nil
}

// Add indexes a chunk under its chunk ID.
func (i *Index) Add(chunk chunker.Chunk) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.meta[chunk.ID] = chunk
	return i.bleve.Index(chunk.ID, map[string]interface{}{
		"text":     chunk.Text,
		"document": chunk.Document,
	})
}

// Search runs a query-string search and returns up to k hits.
func (i *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	query := bleve.NewQueryStringQuery(q)
	searchReq := bleve.NewSearchRequestOptions(query, k*3, 0, false)
	i.mu.RLock()
	res, err := i.bleve.Search(searchReq)
	i.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	var out []Hit
	for _, hit := range res.Hits {
		chunk, ok := i.meta[hit.ID]
		if !ok {
			continue
		}
		out = append(out, Hit{Chunk: chunk, Score: hit.Score, Rank: len(out) + 1})
		if len(out) >= k {
			break
		}
	}
	return out, nil
}

// DeleteDocument drops every chunk belonging to the named document.
func (i *Index) DeleteDocument(document string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id, chunk := range i.meta {
		if chunk.Document != document {
			continue
		}
		if err := i.bleve.Delete(id); err != nil {
			return err
		}
		delete(i.meta, id)
	}
	return nil
}

// Clear drops every indexed chunk.
func (i *Index) Clear() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id := range i.meta {
		if err := i.bleve.Delete(id); err != nil {
			return err
		}
		delete(i.meta, id)
	}
	return nil
}

// Count reports the number of indexed chunks.
func (i *Index) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.meta)
}
