package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the IntelliDocs service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Retention RetentionConfig `mapstructure:"retention"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address        string `mapstructure:"address"`
	JWTSecret      string `mapstructure:"jwt_secret"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"` // advisory, logged when exceeded
}

// LLMConfig contains the hosted LLM provider configuration used for both
// completions and embeddings.
type LLMConfig struct {
	Type                string        `mapstructure:"type"` // openai (OpenAI-compatible APIs)
	APIKey              string        `mapstructure:"api_key"`
	BaseURL             string        `mapstructure:"base_url"`
	CompletionModel     string        `mapstructure:"completion_model"`
	EmbeddingModel      string        `mapstructure:"embedding_model"`
	EmbeddingDimensions int           `mapstructure:"embedding_dimensions"`
	Temperature         float64       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" {
		return fmt.Errorf("llm.api_key required (INTELLIDOCS_LLM_API_KEY)")
	}
	if l.EmbeddingDimensions <= 0 {
		return fmt.Errorf("llm.embedding_dimensions must be > 0")
	}
	return nil
}

// IngestConfig controls chunking of uploaded documents.
type IngestConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`
	ChunkOverlap int `mapstructure:"chunk_overlap"`
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if i.ChunkOverlap < 0 || i.ChunkOverlap >= i.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

// RetrievalConfig controls the query-time retrieval pipeline.
type RetrievalConfig struct {
	TopK            int     `mapstructure:"top_k"`
	MaxContextChars int     `mapstructure:"max_context_chars"`
	MinScore        float64 `mapstructure:"min_score"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	VectorBackend string         `mapstructure:"vector_backend"` // memory, qdrant, postgres
	Postgres      PostgresConfig `mapstructure:"postgres"`
	Redis         RedisConfig    `mapstructure:"redis"`
	Qdrant        QdrantConfig   `mapstructure:"qdrant"`
}

// PostgresConfig contains Postgres connection settings. Postgres is optional:
// when neither url nor host is set, analytics logging is disabled.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Configured reports whether a Postgres target was provided at all.
func (p PostgresConfig) Configured() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

func (p PostgresConfig) Validate() error {
	if !p.Configured() {
		return nil
	}
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN assembles the connection string from either the url or the discrete fields.
func (p PostgresConfig) DSN() string {
	if p.URL != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl)
}

// RedisConfig contains Redis connection settings. Redis is optional: when host
// is empty the live-session registry falls back to Postgres only.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

func (r RedisConfig) Configured() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Validate() error {
	if !r.Configured() {
		return nil
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("storage.redis.port required when host is set")
	}
	return nil
}

// QdrantConfig contains settings for the optional Qdrant vector backend.
type QdrantConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func (q QdrantConfig) Validate() error {
	if strings.TrimSpace(q.URL) == "" {
		return fmt.Errorf("storage.qdrant.url required for the qdrant vector backend")
	}
	if strings.TrimSpace(q.Collection) == "" {
		return fmt.Errorf("storage.qdrant.collection required for the qdrant vector backend")
	}
	return nil
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// RetentionConfig controls pruning of expired sessions and old usage events.
type RetentionConfig struct {
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	UsageEventTTL time.Duration `mapstructure:"usage_event_ttl"`
	CronSpec      string        `mapstructure:"cron_spec"`
}

// Normalize applies defaults for unset retention values.
func (r RetentionConfig) Normalize() RetentionConfig {
	if r.SessionTTL <= 0 {
		r.SessionTTL = 24 * time.Hour
	}
	if r.UsageEventTTL <= 0 {
		r.UsageEventTTL = 90 * 24 * time.Hour
	}
	if strings.TrimSpace(r.CronSpec) == "" {
		r.CronSpec = "@hourly"
	}
	return r
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.max_upload_bytes", int64(25<<20))
	viper.SetDefault("llm.type", "openai")
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.embedding_dimensions", 1536)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("ingest.chunk_size", 800)
	viper.SetDefault("ingest.chunk_overlap", 100)
	viper.SetDefault("retrieval.top_k", 3)
	viper.SetDefault("retrieval.max_context_chars", 12000)
	viper.SetDefault("storage.vector_backend", "memory")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("INTELLIDOCS")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv() // INTELLIDOCS_* environment variables

	// Config file is optional, defaults plus env cover a full setup.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Retention = config.Retention.Normalize()

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Ingest.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Redis.Validate(); err != nil {
		panic(err)
	}
	if config.Storage.VectorBackend == "qdrant" {
		if err := config.Storage.Qdrant.Validate(); err != nil {
			panic(err)
		}
	}
	return &config
}
