package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/rutvikswami/Intellidocs/config"
	"github.com/rutvikswami/Intellidocs/internal/store"
)

// Scheduler prunes stale sessions and old usage events on a cron cadence.
type Scheduler struct {
	Store     *store.Store
	Rdb       *redis.Client
	Retention config.RetentionConfig
	Stop      chan struct{}

	lastRun time.Time
	logger  *log.Logger
}

func (s *Scheduler) Start() {
	s.logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	ticker := time.NewTicker(time.Minute)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	if !isDue(s.Retention.CronSpec, s.lastRun) {
		return
	}
	ctx := context.Background()

	// Distributed lock so only one replica prunes.
	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, "sched:lock:retention", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "sched:lock:retention")
	}
	s.lastRun = time.Now()

	if n, err := s.Store.PruneSessionsBefore(ctx, time.Now().Add(-s.Retention.SessionTTL)); err != nil {
		s.logger.Printf("prune sessions: %v", err)
	} else if n > 0 {
		s.logger.Printf("pruned %d stale sessions", n)
	}
	if n, err := s.Store.PruneUsageEventsBefore(ctx, time.Now().Add(-s.Retention.UsageEventTTL)); err != nil {
		s.logger.Printf("prune usage events: %v", err)
	} else if n > 0 {
		s.logger.Printf("pruned %d old usage events", n)
	}
}

// isDue reports whether the retention job should run now. Supports "@daily",
// "@hourly", and standard 5-field cron expressions.
func isDue(cronSpec string, last time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		return last.IsZero() || now.Sub(last) >= 24*time.Hour
	case "@hourly":
		return last.IsZero() || now.Sub(last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Invalid spec behaves like @daily.
			return last.IsZero() || now.Sub(last) >= 24*time.Hour
		}
		if last.IsZero() {
			return true
		}
		return !expr.Next(last).After(now)
	}
}
