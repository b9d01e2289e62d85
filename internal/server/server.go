// Package server exposes the document question-answering pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rutvikswami/Intellidocs/config"
	"github.com/rutvikswami/Intellidocs/internal/analytics"
	"github.com/rutvikswami/Intellidocs/internal/chunker"
	"github.com/rutvikswami/Intellidocs/internal/document"
	"github.com/rutvikswami/Intellidocs/internal/index"
	"github.com/rutvikswami/Intellidocs/internal/rag"
	"github.com/rutvikswami/Intellidocs/internal/runtime"
	"github.com/rutvikswami/Intellidocs/internal/session"
	"github.com/rutvikswami/Intellidocs/internal/store"
	"github.com/rutvikswami/Intellidocs/internal/telemetry"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore/memory"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore/postgres"
	"github.com/rutvikswami/Intellidocs/internal/vectorstore/qdrant"
	"github.com/rutvikswami/Intellidocs/provider"
)

// Run wires dependencies from config and serves until the listener fails.
func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, HTTPError{Error: msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie", "Authorization"},
		AllowCredentials: true,
	}))

	metrics := telemetry.New()
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	registerMetrics(e, metrics, cfg.Telemetry.Enabled)
	registerDocs(e)

	ctx := context.Background()

	// Optional Postgres: analytics, auth, durable sessions, pgvector backend.
	var st *store.Store
	if cfg.Storage.Postgres.Configured() {
		if err := Migrate("file://migrations", cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
			baseLogger.Printf("migrations: %v", err)
		}
		var err error
		st, err = store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN())
		if err != nil {
			return fmt.Errorf("postgres init: %w", err)
		}
	} else {
		log.Printf("postgres not configured, analytics and auth disabled")
	}

	llmProvider, err := provider.NewProvider(cfg.LLM)
	if err != nil {
		return err
	}

	vectors, err := buildVectorStore(ctx, cfg, st)
	if err != nil {
		return err
	}

	lexical, err := index.New()
	if err != nil {
		return fmt.Errorf("lexical index init: %w", err)
	}

	ck, err := chunker.New(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap)
	if err != nil {
		return err
	}

	// Optional Redis: live-session TTLs and the scheduler lock.
	var rdb *redis.Client
	if cfg.Storage.Redis.Configured() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed (%s:%s): %w", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, err)
		}
	}

	sessions := session.New(rdb, st, cfg.Retention.SessionTTL)
	an := analytics.New(st, metrics)
	svc := rag.NewService(llmProvider, vectors, lexical, ck, document.NewLoader(), an, metrics, rag.Options{
		TopK:            cfg.Retrieval.TopK,
		MaxContextChars: cfg.Retrieval.MaxContextChars,
		MinScore:        cfg.Retrieval.MinScore,
	})

	api := e.Group("/api")

	if st != nil {
		secret, err := runtime.LoadJWTSecret(cfg)
		if err != nil {
			return err
		}
		auth := &AuthHandler{Store: st, Secret: secret}
		auth.Register(api.Group("/auth"))

		ah := &AnalyticsHandler{Store: st, Sessions: sessions}
		dash := api.Group("/analytics")
		dash.Use(runtime.EchoAuthMiddleware(secret))
		ah.Register(dash)
	}

	dh := &DocumentsHandler{Service: svc, Sessions: sessions, MaxUploadBytes: cfg.Server.MaxUploadBytes}
	dh.Register(api.Group("/documents"))

	ch := &ChatHandler{Service: svc, Sessions: sessions, Store: st}
	ch.Register(api.Group("/chat"))

	sh := &SummariesHandler{Service: svc, Sessions: sessions}
	sh.Register(api)

	qh := &SearchHandler{Service: svc}
	qh.Register(api.Group("/search"))

	if st != nil {
		sched := &Scheduler{Store: st, Rdb: rdb, Retention: cfg.Retention, Stop: make(chan struct{})}
		sched.Start()
	}

	if addr == "" {
		addr = cfg.Server.Address
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}

// registerMetrics exposes the prometheus registry unless telemetry is
// disabled in config.
func registerMetrics(e *echo.Echo, metrics *telemetry.Metrics, enabled bool) {
	if !enabled {
		return
	}
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
}

func buildVectorStore(ctx context.Context, cfg *config.Config, st *store.Store) (vectorstore.Store, error) {
	switch cfg.Storage.VectorBackend {
	case "", "memory":
		return memory.NewStorage(cfg.LLM.EmbeddingDimensions)
	case "qdrant":
		return qdrant.NewStorage(ctx, qdrant.Config{
			URL:        cfg.Storage.Qdrant.URL,
			APIKey:     cfg.Storage.Qdrant.APIKey,
			Collection: cfg.Storage.Qdrant.Collection,
			Timeout:    cfg.Storage.Qdrant.Timeout,
		}, cfg.LLM.EmbeddingDimensions)
	case "postgres":
		if st == nil {
			return nil, fmt.Errorf("postgres vector backend requires storage.postgres configuration")
		}
		dim, err := st.EmbeddingDimension(ctx)
		if err != nil {
			return nil, err
		}
		if dim != cfg.LLM.EmbeddingDimensions {
			return nil, fmt.Errorf("embedding column is vector(%d) but llm.embedding_dimensions is %d; migrate the column or fix the config", dim, cfg.LLM.EmbeddingDimensions)
		}
		return postgres.NewStorage(st, cfg.LLM.EmbeddingDimensions), nil
	default:
		return nil, fmt.Errorf("unknown vector backend: %s", cfg.Storage.VectorBackend)
	}
}
