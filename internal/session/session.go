// Package session tracks chat sessions. Live sessions sit in Redis under a
// TTL so concurrent-user counts are cheap; Postgres keeps the durable row
// for the analytics dashboard when it is configured.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rutvikswami/Intellidocs/internal/store"
)

const keyPrefix = "session:"

// Registry issues session IDs and keeps liveness state.
type Registry struct {
	redis  *redis.Client
	store  *store.Store
	ttl    time.Duration
	logger *log.Logger
}

// New creates a registry. Both redis and store may be nil; the registry then
// only mints IDs.
func New(rdb *redis.Client, st *store.Store, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Registry{
		redis:  rdb,
		store:  st,
		ttl:    ttl,
		logger: log.New(log.Writer(), "[SESSION] ", log.LstdFlags),
	}
}

// Ensure returns the given session ID with its TTL refreshed, or mints a new
// one when the input is empty. Persistence failures are logged and ignored;
// a session must never block a chat request.
func (r *Registry) Ensure(ctx context.Context, id string) string {
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
	}
	if r.redis != nil {
		if err := r.redis.Set(ctx, keyPrefix+id, time.Now().Unix(), r.ttl).Err(); err != nil {
			r.logger.Printf("refresh session %s: %v", id, err)
		}
	}
	if r.store != nil {
		if err := r.store.UpsertSession(ctx, id); err != nil {
			r.logger.Printf("persist session %s: %v", id, err)
		}
	}
	return id
}

// Live counts sessions currently held in Redis. Without Redis it reports -1.
func (r *Registry) Live(ctx context.Context) (int, error) {
	if r.redis == nil {
		return -1, nil
	}
	var (
		cursor uint64
		total  int
	)
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return 0, fmt.Errorf("scan sessions: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
