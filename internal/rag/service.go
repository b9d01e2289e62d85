// Package rag wires the ingestion and question-answering pipeline: load,
// chunk, embed, store on the way in; embed, retrieve, prompt, generate on
// the way out.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rutvikswami/Intellidocs/internal/analytics"
	"github.com/rutvikswami/Intellidocs/internal/chunker"
	"github.com/rutvikswami/Intellidocs/internal/document"
	"github.com/rutvikswami/Intellidocs/internal/index"
	"github.com/rutvikswami/Intellidocs/internal/telemetry"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore"
	"github.com/rutvikswami/Intellidocs/provider"
)

// NoDocumentsResponse is returned verbatim when a question arrives before
// any document has been indexed. The generation API is not called.
const NoDocumentsResponse = "No documents indexed yet. Upload a document before asking a question."

// GenerationFallbackMessage is shown to the user when the generation API
// fails. Partial output is never delivered.
const GenerationFallbackMessage = "The answer could not be generated right now. Please try again."

var (
	// ErrGeneration wraps generation API failures.
	ErrGeneration = errors.New("answer generation failed")
	// ErrDocumentNotFound is returned for operations on unknown documents.
	ErrDocumentNotFound = errors.New("document not found")
)

// Options bounds retrieval and prompt assembly. MinScore drops vector hits
// below the similarity floor; it does not apply to lexical fallback hits,
// whose BM25 scores live on a different scale.
type Options struct {
	TopK            int
	MaxContextChars int
	MinScore        float64
}

// DocumentInfo describes one indexed document.
type DocumentInfo struct {
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	SizeBytes  int64     `json:"size_bytes"`
	ChunkCount int       `json:"chunk_count"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Answer is a generated response with its citations.
type Answer struct {
	Text     string        `json:"answer"`
	Sources  []string      `json:"sources"`
	ChunkIDs []string      `json:"chunk_ids"`
	Latency  time.Duration `json:"-"`
}

type docEntry struct {
	info   DocumentInfo
	chunks []chunker.Chunk
}

// Service runs the RAG pipeline.
type Service struct {
	provider  provider.Provider
	vectors   vectorstore.Store
	lexical   *index.Index
	chunker   *chunker.Chunker
	loader    *document.Loader
	analytics *analytics.Logger
	metrics   *telemetry.Metrics
	logger    *log.Logger
	opts      Options

	mu   sync.RWMutex
	docs map[string]*docEntry
}

// NewService assembles the pipeline. The lexical index and analytics logger
// may be nil; both degrade to no-ops.
func NewService(p provider.Provider, vs vectorstore.Store, lex *index.Index, ck *chunker.Chunker, loader *document.Loader, an *analytics.Logger, metrics *telemetry.Metrics, opts Options) *Service {
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = 12000
	}
	return &Service{
		provider:  p,
		vectors:   vs,
		lexical:   lex,
		chunker:   ck,
		loader:    loader,
		analytics: an,
		metrics:   metrics,
		logger:    log.New(log.Writer(), "[RAG] ", log.LstdFlags),
		opts:      opts,
		docs:      map[string]*docEntry{},
	}
}

// IngestResult reports what an upload produced.
type IngestResult struct {
	Document   string `json:"document"`
	ChunkCount int    `json:"chunk_count"`
}

// Ingest extracts, chunks, embeds and stores an uploaded file. A parse or
// embedding failure rejects the whole upload; nothing partial is indexed.
func (s *Service) Ingest(ctx context.Context, sessionID, filename string, data []byte) (*IngestResult, error) {
	doc, err := s.loader.Load(filename, data)
	if err != nil {
		return nil, err
	}
	return s.ingestDocument(ctx, sessionID, doc)
}

// IngestURL fetches a web page and indexes its readable text.
func (s *Service) IngestURL(ctx context.Context, sessionID, rawURL string) (*IngestResult, error) {
	doc, err := s.loader.LoadURL(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return s.ingestDocument(ctx, sessionID, doc)
}

func (s *Service) ingestDocument(ctx context.Context, sessionID string, doc *document.Document) (*IngestResult, error) {
	chunks := s.chunker.Split(doc.Name, doc.Text)
	if len(chunks) == 0 {
		return nil, document.ErrEmpty
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	start := time.Now()
	vectors, err := s.provider.CreateEmbedding(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document %s: %w", doc.Name, err)
	}
	if s.metrics != nil {
		s.metrics.LLMLatency.WithLabelValues("embed").Observe(time.Since(start).Seconds())
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embed document %s: got %d vectors for %d chunks", doc.Name, len(vectors), len(chunks))
	}
	if err := s.vectors.Upsert(ctx, chunks, vectors); err != nil {
		return nil, fmt.Errorf("store document %s: %w", doc.Name, err)
	}
	if s.lexical != nil {
		for _, c := range chunks {
			if err := s.lexical.Add(c); err != nil {
				s.logger.Printf("lexical index %s: %v", c.ID, err)
			}
		}
	}

	s.mu.Lock()
	s.docs[doc.Name] = &docEntry{
		info: DocumentInfo{
			Name:       doc.Name,
			Type:       doc.Type,
			SizeBytes:  doc.Size,
			ChunkCount: len(chunks),
			UploadedAt: doc.UploadedAt,
		},
		chunks: chunks,
	}
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.DocumentsIngested.WithLabelValues(doc.Type).Inc()
		s.metrics.ChunksIngested.Add(float64(len(chunks)))
	}
	if s.analytics != nil {
		s.analytics.DocumentUploaded(sessionID, doc.Name, doc.Type, doc.Size, len(chunks))
	}
	s.logger.Printf("ingested %s: %d chunks", doc.Name, len(chunks))
	return &IngestResult{Document: doc.Name, ChunkCount: len(chunks)}, nil
}

// Ask answers a question against the indexed corpus. topK overrides the
// configured retrieval depth when positive. With no documents indexed it
// returns NoDocumentsResponse without touching the generation API. When
// generation fails the error wraps ErrGeneration and no partial answer is
// produced.
func (s *Service) Ask(ctx context.Context, sessionID, question string, topK int) (*Answer, error) {
	start := time.Now()
	if topK <= 0 {
		topK = s.opts.TopK
	}
	s.mu.RLock()
	empty := len(s.docs) == 0
	s.mu.RUnlock()
	if empty {
		if s.metrics != nil {
			s.metrics.Queries.WithLabelValues("no_documents").Inc()
		}
		return &Answer{Text: NoDocumentsResponse, Sources: []string{}, ChunkIDs: []string{}, Latency: time.Since(start)}, nil
	}

	retrieved, err := s.retrieve(ctx, question, topK)
	if err != nil {
		if s.metrics != nil {
			s.metrics.Queries.WithLabelValues("retrieval_error").Inc()
		}
		return nil, err
	}
	if len(retrieved) == 0 {
		if s.metrics != nil {
			s.metrics.Queries.WithLabelValues("no_results").Inc()
		}
		return &Answer{Text: NoDocumentsResponse, Sources: []string{}, ChunkIDs: []string{}, Latency: time.Since(start)}, nil
	}

	// Bound the prompt. Citations are exactly the chunks that made it in.
	var (
		blocks   []string
		chunkIDs []string
		sources  []string
		seen     = map[string]bool{}
		used     int
	)
	for _, c := range retrieved {
		block := sourceBlock(c.Document, c.Text)
		if used+len(block) > s.opts.MaxContextChars && len(blocks) > 0 {
			break
		}
		blocks = append(blocks, block)
		chunkIDs = append(chunkIDs, c.ID)
		used += len(block)
		if !seen[c.Document] {
			seen[c.Document] = true
			sources = append(sources, c.Document)
		}
	}

	genStart := time.Now()
	text, err := s.provider.Completion(ctx, answerSystemPrompt, answerPrompt(strings.Join(blocks, "\n\n"), question))
	if s.metrics != nil {
		s.metrics.LLMLatency.WithLabelValues("answer").Observe(time.Since(genStart).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.Queries.WithLabelValues("generation_error").Inc()
		}
		return nil, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	latency := time.Since(start)
	if s.metrics != nil {
		s.metrics.Queries.WithLabelValues("answered").Inc()
	}
	if s.analytics != nil {
		s.analytics.ChatAnswered(sessionID, question, text, chunkIDs, latency)
	}
	return &Answer{Text: text, Sources: sources, ChunkIDs: chunkIDs, Latency: latency}, nil
}

// retrieve embeds the question and queries the vector store. If the
// embedding provider is unreachable and a lexical index is available,
// keyword search stands in so the corpus stays reachable while the
// embedding API is down.
func (s *Service) retrieve(ctx context.Context, question string, topK int) ([]chunker.Chunk, error) {
	vectors, err := s.provider.CreateEmbedding(ctx, []string{question})
	if err == nil && len(vectors) != 1 {
		err = fmt.Errorf("%w: returned %d vectors for one input", provider.ErrUnavailable, len(vectors))
	}
	if err == nil {
		results, err := s.vectors.Search(ctx, vectors[0], topK)
		if err != nil {
			return nil, fmt.Errorf("vector search: %w", err)
		}
		chunks := make([]chunker.Chunk, 0, len(results))
		for _, r := range results {
			if s.opts.MinScore > 0 && r.Score < s.opts.MinScore {
				continue
			}
			chunks = append(chunks, r.Chunk)
		}
		return chunks, nil
	}
	if s.lexical == nil || !errors.Is(err, provider.ErrUnavailable) {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	s.logger.Printf("embedding unavailable, falling back to keyword search: %v", err)
	hits, lexErr := s.lexical.Search(question, topK)
	if lexErr != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	chunks := make([]chunker.Chunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, h.Chunk)
	}
	return chunks, nil
}

// Summarize generates a structured summary for one document.
func (s *Service) Summarize(ctx context.Context, sessionID, name string) (string, error) {
	text, err := s.documentText(name, 8000)
	if err != nil {
		return "", err
	}
	out, err := s.generate(ctx, "summary", summaryPrompt(text))
	if err != nil {
		return "", err
	}
	if s.analytics != nil {
		s.analytics.FeatureUsed(sessionID, "summary")
	}
	return out, nil
}

// FAQ generates question/answer pairs from one document.
func (s *Service) FAQ(ctx context.Context, sessionID, name string) (string, error) {
	text, err := s.documentText(name, 8000)
	if err != nil {
		return "", err
	}
	out, err := s.generate(ctx, "faq", faqPrompt(text))
	if err != nil {
		return "", err
	}
	if s.analytics != nil {
		s.analytics.FeatureUsed(sessionID, "faq")
	}
	return out, nil
}

// Compare contrasts two indexed documents.
func (s *Service) Compare(ctx context.Context, sessionID, name1, name2 string) (string, error) {
	text1, err := s.documentText(name1, 6000)
	if err != nil {
		return "", err
	}
	text2, err := s.documentText(name2, 6000)
	if err != nil {
		return "", err
	}
	out, err := s.generate(ctx, "compare", comparePrompt(name1, text1, name2, text2))
	if err != nil {
		return "", err
	}
	if s.analytics != nil {
		s.analytics.FeatureUsed(sessionID, "compare")
	}
	return out, nil
}

func (s *Service) generate(ctx context.Context, operation, prompt string) (string, error) {
	start := time.Now()
	out, err := s.provider.Completion(ctx, "", prompt)
	if s.metrics != nil {
		s.metrics.LLMLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}
	return out, nil
}

// Documents lists indexed documents sorted by name.
func (s *Service) Documents() []DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DocumentInfo, 0, len(s.docs))
	for _, e := range s.docs {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Preview returns the first chunks of a document, capped at maxChars.
func (s *Service) Preview(name string, maxChars int) (string, error) {
	if maxChars <= 0 {
		maxChars = 2000
	}
	s.mu.RLock()
	entry, ok := s.docs[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	n := len(entry.chunks)
	if n > 3 {
		n = 3
	}
	parts := make([]string, 0, n)
	for _, c := range entry.chunks[:n] {
		parts = append(parts, c.Text)
	}
	return truncate(strings.Join(parts, "\n"), maxChars), nil
}

// Delete removes a document from every index.
func (s *Service) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	_, ok := s.docs[name]
	delete(s.docs, name)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	if err := s.vectors.DeleteDocument(ctx, name); err != nil {
		return fmt.Errorf("delete vectors for %s: %w", name, err)
	}
	if s.lexical != nil {
		if err := s.lexical.DeleteDocument(name); err != nil {
			s.logger.Printf("delete lexical entries for %s: %v", name, err)
		}
	}
	return nil
}

// Clear removes every document from every index.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.docs = map[string]*docEntry{}
	s.mu.Unlock()
	if err := s.vectors.Clear(ctx); err != nil {
		return fmt.Errorf("clear vectors: %w", err)
	}
	if s.lexical != nil {
		if err := s.lexical.Clear(); err != nil {
			s.logger.Printf("clear lexical index: %v", err)
		}
	}
	return nil
}

// LexicalSearch runs a keyword query against the bleve index.
func (s *Service) LexicalSearch(q string, k int) ([]index.Hit, error) {
	if s.lexical == nil {
		return nil, errors.New("lexical index disabled")
	}
	return s.lexical.Search(q, k)
}

func (s *Service) documentText(name string, max int) (string, error) {
	s.mu.RLock()
	entry, ok := s.docs[name]
	s.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, name)
	}
	parts := make([]string, 0, len(entry.chunks))
	for _, c := range entry.chunks {
		parts = append(parts, c.Text)
	}
	return truncate(strings.Join(parts, "\n"), max), nil
}
