// Package analytics records usage events in Postgres. Every write is best
// effort: when the store is absent or a write fails, the event is dropped
// and the request that produced it carries on unaffected.
package analytics

import (
	"context"
	"log"
	"time"

	"github.com/rutvikswami/Intellidocs/internal/store"
	"github.com/rutvikswami/Intellidocs/internal/telemetry"
)

// Logger writes analytics rows without ever failing the caller.
type Logger struct {
	store   *store.Store
	metrics *telemetry.Metrics
	logger  *log.Logger
	timeout time.Duration
}

// New creates a logger. A nil store disables persistence entirely.
func New(st *store.Store, metrics *telemetry.Metrics) *Logger {
	return &Logger{
		store:   st,
		metrics: metrics,
		logger:  log.New(log.Writer(), "[ANALYTICS] ", log.LstdFlags),
		timeout: 5 * time.Second,
	}
}

// Enabled reports whether events are being persisted.
func (l *Logger) Enabled() bool { return l.store != nil }

// ChatAnswered records an answered question.
func (l *Logger) ChatAnswered(sessionID, question, answer string, sources []string, latency time.Duration) {
	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	err := l.store.InsertChatLog(ctx, store.ChatLog{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		LatencyMS: latency.Milliseconds(),
	})
	l.report("chat log", err)
}

// DocumentUploaded records an ingestion.
func (l *Logger) DocumentUploaded(sessionID, name, fileType string, sizeBytes int64, chunkCount int) {
	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	err := l.store.InsertDocumentUpload(ctx, store.DocumentUpload{
		Name:       name,
		Type:       fileType,
		SizeBytes:  sizeBytes,
		ChunkCount: chunkCount,
		SessionID:  sessionID,
	})
	l.report("document upload", err)
}

// FeatureUsed records one invocation of a named feature.
func (l *Logger) FeatureUsed(sessionID, feature string) {
	if l.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	err := l.store.InsertUsageEvent(ctx, sessionID, feature)
	l.report("usage event", err)
}

func (l *Logger) report(kind string, err error) {
	if err == nil {
		return
	}
	l.logger.Printf("dropping %s: %v", kind, err)
	if l.metrics != nil {
		l.metrics.AnalyticsDropped.Inc()
	}
}
