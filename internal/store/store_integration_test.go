package store_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/rutvikswami/Intellidocs/internal/store"
)

const integrationSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS document_chunks (
    id          TEXT PRIMARY KEY,
    document    TEXT NOT NULL,
    chunk_index INT NOT NULL,
    content     TEXT NOT NULL,
    embedding   vector(3) NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func TestDocumentChunkRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("pgvector/pgvector:pg16"),
		tcPostgres.WithDatabase("intellidocs"),
		tcPostgres.WithUsername("intellidocs"),
		tcPostgres.WithPassword("intellidocs"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("postgres container: %v", err)
	}
	defer func() { _ = pgC.Terminate(ctx) }()

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("postgres host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("postgres port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://intellidocs:intellidocs@%s:%s/intellidocs?sslmode=disable", host, port.Port())
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		t.Fatalf("store init: %v", err)
	}
	defer st.Close()

	if _, err := st.DB.ExecContext(ctx, integrationSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	records := []store.ChunkRecord{
		{ID: "faq.txt_0", Document: "faq.txt", Index: 0, Text: "refunds take 30 days", Vector: []float32{1, 0, 0}},
		{ID: "faq.txt_1", Document: "faq.txt", Index: 1, Text: "support answers within a day", Vector: []float32{0, 1, 0}},
	}
	if err := st.InsertDocumentChunks(ctx, "faq.txt", records); err != nil {
		t.Fatalf("InsertDocumentChunks: %v", err)
	}

	results, err := st.SearchDocumentChunks(ctx, []float32{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("SearchDocumentChunks: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].ID != "faq.txt_0" {
		t.Fatalf("top result = %s, want faq.txt_0", results[0].ID)
	}
	if results[0].Distance > 0.001 {
		t.Fatalf("distance = %f, want ~0 for identical vector", results[0].Distance)
	}

	// Re-ingest replaces rather than duplicates.
	if err := st.InsertDocumentChunks(ctx, "faq.txt", records[:1]); err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	n, err := st.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if n != 1 {
		t.Fatalf("CountChunks = %d, want 1", n)
	}

	if err := st.DeleteDocumentChunks(ctx, "faq.txt"); err != nil {
		t.Fatalf("DeleteDocumentChunks: %v", err)
	}
	if n, _ := st.CountChunks(ctx); n != 0 {
		t.Fatalf("CountChunks after delete = %d, want 0", n)
	}
}
