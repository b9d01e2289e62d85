package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rutvikswami/Intellidocs/internal/analytics"
	"github.com/rutvikswami/Intellidocs/internal/chunker"
	"github.com/rutvikswami/Intellidocs/internal/document"
	"github.com/rutvikswami/Intellidocs/internal/index"
	"github.com/rutvikswami/Intellidocs/internal/telemetry"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore/memory"
	"github.com/rutvikswami/Intellidocs/provider"
)

// fakeProvider returns deterministic embeddings so retrieval is predictable:
// texts mentioning "vacation" land on one axis, everything else on another.
type fakeProvider struct {
	embedErr        error
	embedEmpty      bool
	completionErr   error
	completionText  string
	embedCalls      int
	completionCalls int
	lastUserPrompt  string
}

func (f *fakeProvider) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	if f.embedEmpty {
		return [][]float32{}, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if strings.Contains(strings.ToLower(t), "vacation") {
			out[i] = []float32{1, 0, 0}
		} else {
			out[i] = []float32{0, 1, 0}
		}
	}
	return out, nil
}

func (f *fakeProvider) Completion(_ context.Context, _, user string) (string, error) {
	f.completionCalls++
	f.lastUserPrompt = user
	if f.completionErr != nil {
		return "", f.completionErr
	}
	if f.completionText != "" {
		return f.completionText, nil
	}
	return "Twenty vacation days per year. [Source: policy.txt]", nil
}

func newTestService(t *testing.T, p *fakeProvider, opts Options) *Service {
	t.Helper()
	vs, err := memory.NewStorage(3)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	lex, err := index.New()
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	ck, err := chunker.New(200, 20)
	if err != nil {
		t.Fatalf("chunker: %v", err)
	}
	return NewService(p, vs, lex, ck, document.NewLoader(), analytics.New(nil, nil), telemetry.New(), opts)
}

const policyText = "Employees accrue twenty vacation days per year. " +
	"Unused vacation days roll over for one calendar year only. " +
	"Remote work requires written manager approval two days in advance. " +
	"Expense reports are due by the fifth business day of the month."

func ingestPolicy(t *testing.T, s *Service) {
	t.Helper()
	if _, err := s.Ingest(context.Background(), "sess-1", "policy.txt", []byte(policyText)); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
}

func TestAskNoDocuments(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{})

	ans, err := s.Ask(context.Background(), "sess-1", "how many vacation days?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != NoDocumentsResponse {
		t.Errorf("text = %q", ans.Text)
	}
	if len(ans.Sources) != 0 || len(ans.ChunkIDs) != 0 {
		t.Errorf("expected empty citations, got %v / %v", ans.Sources, ans.ChunkIDs)
	}
	if p.embedCalls != 0 || p.completionCalls != 0 {
		t.Errorf("provider touched: %d embeds, %d completions", p.embedCalls, p.completionCalls)
	}
}

func TestIngestAndAsk(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{TopK: 2})
	ingestPolicy(t, s)

	ans, err := s.Ask(context.Background(), "sess-1", "how many vacation days do I get?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Text, "vacation") {
		t.Errorf("answer = %q", ans.Text)
	}
	if len(ans.Sources) == 0 || ans.Sources[0] != "policy.txt" {
		t.Errorf("sources = %v", ans.Sources)
	}
	if len(ans.ChunkIDs) == 0 || len(ans.ChunkIDs) > 2 {
		t.Errorf("chunk ids = %v", ans.ChunkIDs)
	}
	for _, id := range ans.ChunkIDs {
		if !strings.HasPrefix(id, "policy.txt_") {
			t.Errorf("unexpected chunk id %q", id)
		}
	}
	if !strings.Contains(p.lastUserPrompt, "[Source: policy.txt]") {
		t.Errorf("prompt missing source block: %q", p.lastUserPrompt)
	}
	if !strings.Contains(p.lastUserPrompt, "how many vacation days do I get?") {
		t.Errorf("prompt missing question: %q", p.lastUserPrompt)
	}
}

func TestAskBoundsPromptContext(t *testing.T) {
	p := &fakeProvider{}
	// Tight budget admits only the first retrieved chunk.
	s := newTestService(t, p, Options{TopK: 3, MaxContextChars: 250})
	ingestPolicy(t, s)

	ans, err := s.Ask(context.Background(), "sess-1", "vacation policy?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.ChunkIDs) != 1 {
		t.Errorf("chunk ids = %v, want exactly 1 under tight budget", ans.ChunkIDs)
	}
	// The cited chunk's text must be present in the prompt that was sent.
	if !strings.Contains(p.lastUserPrompt, "vacation") {
		t.Errorf("prompt = %q", p.lastUserPrompt)
	}
}

func TestAskTopKOverride(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{TopK: 3})
	ingestPolicy(t, s)

	ans, err := s.Ask(context.Background(), "sess-1", "vacation days?", 1)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.ChunkIDs) != 1 {
		t.Errorf("chunk ids = %v, want exactly 1 with top_k override", ans.ChunkIDs)
	}
}

func TestAskGenerationError(t *testing.T) {
	p := &fakeProvider{completionErr: errors.New("rate limited")}
	s := newTestService(t, p, Options{})
	ingestPolicy(t, s)

	ans, err := s.Ask(context.Background(), "sess-1", "vacation?", 0)
	if !errors.Is(err, ErrGeneration) {
		t.Fatalf("err = %v, want ErrGeneration", err)
	}
	if ans != nil {
		t.Errorf("expected no partial answer, got %+v", ans)
	}
}

func TestAskEmbeddingFallbackToLexical(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{TopK: 2})
	ingestPolicy(t, s)

	// Embedding becomes unreachable after ingestion.
	p.embedErr = fmt.Errorf("%w: connection refused", provider.ErrUnavailable)

	ans, err := s.Ask(context.Background(), "sess-1", "vacation days", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.ChunkIDs) == 0 {
		t.Error("expected lexical fallback to retrieve chunks")
	}
	if p.completionCalls != 1 {
		t.Errorf("completion calls = %d, want 1", p.completionCalls)
	}
}

func TestAskEmbeddingEmptyResponseFallsBack(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{TopK: 2})
	ingestPolicy(t, s)

	// A nil error with no vectors is treated like an unreachable provider.
	p.embedEmpty = true

	ans, err := s.Ask(context.Background(), "sess-1", "vacation days", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(ans.ChunkIDs) == 0 {
		t.Error("expected lexical fallback to retrieve chunks")
	}
}

func TestAskEmbeddingNonTransportErrorNoFallback(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{TopK: 2})
	ingestPolicy(t, s)

	p.embedErr = errors.New("input too long")

	_, err := s.Ask(context.Background(), "sess-1", "vacation days", 0)
	if err == nil {
		t.Fatal("expected error for non-transport embedding failure")
	}
	if p.completionCalls != 0 {
		t.Errorf("completion calls = %d, want 0", p.completionCalls)
	}
}

func TestAskMinScoreFiltersWeakHits(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{TopK: 3, MinScore: 0.5})
	ingestPolicy(t, s)

	ans, err := s.Ask(context.Background(), "sess-1", "how many vacation days?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	// Only the chunk on the vacation axis scores above the floor; the
	// orthogonal chunks would have been cited without it.
	if len(ans.ChunkIDs) != 1 {
		t.Errorf("chunk ids = %v, want exactly 1 above the score floor", ans.ChunkIDs)
	}
}

func TestIngestRejectsUnsupportedFile(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{})

	_, err := s.Ingest(context.Background(), "sess-1", "slides.pptx", []byte("x"))
	if !errors.Is(err, document.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
	if len(s.Documents()) != 0 {
		t.Error("failed upload must not be indexed")
	}
	if p.embedCalls != 0 {
		t.Errorf("embed calls = %d, want 0", p.embedCalls)
	}
}

func TestIngestEmbedFailureIndexesNothing(t *testing.T) {
	p := &fakeProvider{embedErr: errors.New("down")}
	s := newTestService(t, p, Options{})

	_, err := s.Ingest(context.Background(), "sess-1", "policy.txt", []byte(policyText))
	if err == nil {
		t.Fatal("expected error")
	}
	if len(s.Documents()) != 0 {
		t.Error("failed upload must not be indexed")
	}
}

func TestSummarizeUnknownDocument(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{})

	_, err := s.Summarize(context.Background(), "sess-1", "nope.pdf")
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestSummarizeSendsDocumentText(t *testing.T) {
	p := &fakeProvider{completionText: "MAIN TOPIC: leave policy"}
	s := newTestService(t, p, Options{})
	ingestPolicy(t, s)

	out, err := s.Summarize(context.Background(), "sess-1", "policy.txt")
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if out != "MAIN TOPIC: leave policy" {
		t.Errorf("out = %q", out)
	}
	if !strings.Contains(p.lastUserPrompt, "vacation days") {
		t.Errorf("prompt missing document text: %q", p.lastUserPrompt)
	}
}

func TestCompare(t *testing.T) {
	p := &fakeProvider{completionText: "SIMILARITIES: both cover leave"}
	s := newTestService(t, p, Options{})
	ingestPolicy(t, s)
	if _, err := s.Ingest(context.Background(), "sess-1", "policy_v2.txt", []byte(policyText+" Sabbaticals are now supported.")); err != nil {
		t.Fatalf("Ingest v2: %v", err)
	}

	out, err := s.Compare(context.Background(), "sess-1", "policy.txt", "policy_v2.txt")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if out == "" {
		t.Error("empty comparison")
	}
	if !strings.Contains(p.lastUserPrompt, "Document 1 (policy.txt)") ||
		!strings.Contains(p.lastUserPrompt, "Document 2 (policy_v2.txt)") {
		t.Errorf("prompt = %q", p.lastUserPrompt)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{})
	ingestPolicy(t, s)

	if err := s.Delete(context.Background(), "policy.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(s.Documents()) != 0 {
		t.Error("document still listed")
	}
	ans, err := s.Ask(context.Background(), "sess-1", "vacation?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != NoDocumentsResponse {
		t.Errorf("text = %q, want no-documents response", ans.Text)
	}
}

func TestClearRemovesEverything(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{})
	ingestPolicy(t, s)
	if _, err := s.Ingest(context.Background(), "sess-1", "handbook.txt", []byte("Password rotation every ninety days.")); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := s.Clear(context.Background()); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if len(s.Documents()) != 0 {
		t.Error("documents still listed")
	}
	ans, err := s.Ask(context.Background(), "sess-1", "vacation?", 0)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != NoDocumentsResponse {
		t.Errorf("text = %q, want no-documents response", ans.Text)
	}
}

func TestPreview(t *testing.T) {
	p := &fakeProvider{}
	s := newTestService(t, p, Options{})
	ingestPolicy(t, s)

	preview, err := s.Preview("policy.txt", 50)
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(preview) > 53 {
		t.Errorf("preview length = %d, want <= cap plus ellipsis", len(preview))
	}
	if _, err := s.Preview("missing.txt", 50); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("err = %v, want ErrDocumentNotFound", err)
	}
}
