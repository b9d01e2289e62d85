package analytics

import (
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/rutvikswami/Intellidocs/internal/store"
	"github.com/rutvikswami/Intellidocs/internal/telemetry"
)

func TestNilStoreIsDisabled(t *testing.T) {
	l := New(nil, telemetry.New())
	if l.Enabled() {
		t.Fatal("expected disabled logger")
	}
	// Must not panic without a store.
	l.ChatAnswered("s1", "q", "a", nil, time.Second)
	l.DocumentUploaded("s1", "a.pdf", "pdf", 10, 2)
	l.FeatureUsed("s1", "summary")
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	metrics := telemetry.New()
	l := New(&store.Store{DB: db}, metrics)

	query := regexp.QuoteMeta(`
INSERT INTO usage_events (session_id, feature, created_at)
VALUES ($1, $2, NOW())
`)
	mock.ExpectExec(query).WithArgs("s1", "compare").
		WillReturnError(errForced)

	// Failure must not propagate.
	l.FeatureUsed("s1", "compare")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestChatAnsweredWrites(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	l := New(&store.Store{DB: db}, telemetry.New())

	query := regexp.QuoteMeta(`
INSERT INTO chat_logs (session_id, question, answer, sources, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())
`)
	mock.ExpectExec(query).
		WithArgs("s1", "what is the refund window?", "30 days.", sqlmock.AnyArg(), int64(1200)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	l.ChatAnswered("s1", "what is the refund window?", "30 days.", []string{"faq.txt_0"}, 1200*time.Millisecond)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

var errForced = &forcedErr{}

type forcedErr struct{}

func (*forcedErr) Error() string { return "forced failure" }
