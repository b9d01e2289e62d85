// Package store is the Postgres persistence layer. It holds user accounts,
// chat sessions, analytics events, and the pgvector-backed document chunks
// used when the postgres vector backend is selected.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
)

// Store wraps the Postgres connection pool.
type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// ---- users ----

type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// CreateUser inserts a user and returns its generated id.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
INSERT INTO users (email, password_hash, created_at)
VALUES ($1, $2, NOW())
RETURNING id::text
`, email, passwordHash).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetUserByEmail returns the user and whether it exists.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, bool, error) {
	var u User
	err := s.DB.QueryRowContext(ctx, `
SELECT id::text, email, password_hash, created_at
FROM users
WHERE email = $1
`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	switch err {
	case nil:
		return u, true, nil
	case sql.ErrNoRows:
		return User{}, false, nil
	default:
		return User{}, false, err
	}
}

// ---- sessions ----

// UpsertSession records a chat session, bumping last_seen_at on repeat visits.
func (s *Store) UpsertSession(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO sessions (id, created_at, last_seen_at)
VALUES ($1, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET last_seen_at = NOW()
`, sessionID)
	return err
}

// PruneSessionsBefore deletes sessions idle since before the cutoff and
// returns how many rows went away.
func (s *Store) PruneSessionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM sessions WHERE last_seen_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ---- document chunks (pgvector backend) ----

type ChunkRecord struct {
	ID       string
	Document string
	Index    int
	Text     string
	Vector   []float32
}

type ChunkSearchResult struct {
	ChunkRecord
	Distance float64
}

// InsertDocumentChunks replaces a document's chunks inside one transaction.
func (s *Store) InsertDocumentChunks(ctx context.Context, document string, records []ChunkRecord) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document = $1`, document); err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}
	if len(records) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (id, document, chunk_index, content, embedding, created_at)
VALUES ($1, $2, $3, $4, $5::vector, NOW())
`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, rec := range records {
		vectorLiteral, err := encodeVectorLiteral(rec.Vector)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Document, rec.Index, rec.Text, vectorLiteral); err != nil {
			return fmt.Errorf("insert chunk %s: %w", rec.ID, err)
		}
	}
	return nil
}

// SearchDocumentChunks returns the topK closest chunks for the vector.
func (s *Store) SearchDocumentChunks(ctx context.Context, vector []float32, topK int) ([]ChunkSearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	vecLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, document, chunk_index, content, embedding <=> $1::vector AS distance
FROM document_chunks
ORDER BY embedding <=> $1::vector
LIMIT $2
`, vecLiteral, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []ChunkSearchResult
	for rows.Next() {
		var res ChunkSearchResult
		if err := rows.Scan(&res.ID, &res.Document, &res.Index, &res.Text, &res.Distance); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// DeleteDocumentChunks removes all chunks for a document.
func (s *Store) DeleteDocumentChunks(ctx context.Context, document string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM document_chunks WHERE document = $1`, document)
	return err
}

// EmbeddingDimension reads the vector dimension of the embedding column.
// pgvector stores the dimension as the column's type modifier.
func (s *Store) EmbeddingDimension(ctx context.Context) (int, error) {
	var dim int
	err := s.DB.QueryRowContext(ctx, `
SELECT atttypmod
FROM pg_attribute
WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'
`).Scan(&dim)
	if err != nil {
		return 0, fmt.Errorf("read embedding dimension: %w", err)
	}
	return dim, nil
}

// ClearDocumentChunks removes every stored chunk.
func (s *Store) ClearDocumentChunks(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM document_chunks`)
	return err
}

// CountChunks reports the stored chunk total.
func (s *Store) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_chunks`).Scan(&n)
	return n, err
}

// ListDocuments returns document names with their chunk counts.
func (s *Store) ListDocuments(ctx context.Context) (map[string]int, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT document, COUNT(*)
FROM document_chunks
GROUP BY document
ORDER BY document
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var (
			doc string
			n   int
		)
		if err := rows.Scan(&doc, &n); err != nil {
			return nil, err
		}
		out[doc] = n
	}
	return out, rows.Err()
}

// ---- analytics ----

type ChatLog struct {
	ID        int64
	SessionID string
	Question  string
	Answer    string
	Sources   []string
	LatencyMS int64
	CreatedAt time.Time
}

// InsertChatLog records one answered question.
func (s *Store) InsertChatLog(ctx context.Context, l ChatLog) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO chat_logs (session_id, question, answer, sources, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
`, l.SessionID, l.Question, l.Answer, pq.Array(l.Sources), l.LatencyMS)
	return err
}

// RecentChatLogs returns the newest chat logs, newest first.
func (s *Store) RecentChatLogs(ctx context.Context, limit int) ([]ChatLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, session_id, question, answer, sources, latency_ms, created_at
FROM chat_logs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChatLog
	for rows.Next() {
		var l ChatLog
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Question, &l.Answer, pq.Array(&l.Sources), &l.LatencyMS, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

type DocumentUpload struct {
	Name       string
	Type       string
	SizeBytes  int64
	ChunkCount int
	SessionID  string
}

// InsertDocumentUpload records an ingestion event.
func (s *Store) InsertDocumentUpload(ctx context.Context, u DocumentUpload) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO document_uploads (name, file_type, size_bytes, chunk_count, session_id, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
`, u.Name, u.Type, u.SizeBytes, u.ChunkCount, u.SessionID)
	return err
}

type UploadStat struct {
	FileType   string
	Uploads    int
	TotalBytes int64
}

// UploadStats aggregates uploads by file type.
func (s *Store) UploadStats(ctx context.Context) ([]UploadStat, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT file_type, COUNT(*), COALESCE(SUM(size_bytes), 0)
FROM document_uploads
GROUP BY file_type
ORDER BY file_type
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []UploadStat
	for rows.Next() {
		var st UploadStat
		if err := rows.Scan(&st.FileType, &st.Uploads, &st.TotalBytes); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// InsertUsageEvent records a feature invocation for the dashboard.
func (s *Store) InsertUsageEvent(ctx context.Context, sessionID, feature string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO usage_events (session_id, feature, created_at)
VALUES ($1, $2, NOW())
`, sessionID, feature)
	return err
}

// PruneUsageEventsBefore deletes usage events older than the cutoff.
func (s *Store) PruneUsageEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM usage_events WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type DailyUsage struct {
	Day     time.Time
	Feature string
	Count   int
}

// DailyUsageSince aggregates usage events per day and feature.
func (s *Store) DailyUsageSince(ctx context.Context, since time.Time) ([]DailyUsage, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT date_trunc('day', created_at) AS day, feature, COUNT(*)
FROM usage_events
WHERE created_at >= $1
GROUP BY day, feature
ORDER BY day, feature
`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyUsage
	for rows.Next() {
		var d DailyUsage
		if err := rows.Scan(&d.Day, &d.Feature, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ---- vector literals ----

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

func decodeVectorLiteral(lit string) ([]float32, error) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return nil, fmt.Errorf("empty vector literal")
	}
	lit = strings.TrimPrefix(lit, "[")
	lit = strings.TrimSuffix(lit, "]")
	parts := strings.Split(lit, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		f, err := strconv.ParseFloat(value, 32)
		if err != nil {
			return nil, err
		}
		vec = append(vec, float32(f))
	}
	return vec, nil
}
