// Package config loads devbrain settings from the environment (and an
// optional .env file) into one typed, validated Config.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/devbrain/devbrain/internal/core"
	pkgredis "github.com/devbrain/devbrain/pkg/redis"
	"github.com/devbrain/devbrain/pkg/validation"
)

// Checkpoint backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config is the full runtime configuration.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development" validate:"oneof=development staging testing production"`
	LogLevel    string `envconfig:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error"`

	Server     ServerConfig     `envconfig:"SERVER"`
	Engine     EngineConfig     `envconfig:"ENGINE"`
	Checkpoint CheckpointConfig `envconfig:"CHECKPOINT"`
	Redis      pkgredis.Config  `envconfig:"REDIS"`
	Postgres   PostgresConfig   `envconfig:"POSTGRES"`
	SQLite     SQLiteConfig     `envconfig:"SQLITE"`
	LLM        LLMConfig        `envconfig:"LLM"`
	Retrieval  RetrievalConfig  `envconfig:"RETRIEVAL"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `envconfig:"ADDR" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	BodyLimit       int           `envconfig:"BODY_LIMIT" default:"1048576" validate:"min=1024"`
}

// EngineConfig tunes the graph executor.
type EngineConfig struct {
	NodeTimeout          time.Duration `envconfig:"NODE_TIMEOUT" default:"60s" validate:"min=1ms"`
	CommitTimeout        time.Duration `envconfig:"COMMIT_TIMEOUT" default:"5s" validate:"min=1ms"`
	MaxSteps             int           `envconfig:"MAX_STEPS" default:"16" validate:"min=1,max=1000"`
	BusyPolicy           string        `envconfig:"BUSY_POLICY" default:"reject" validate:"busy_policy"`
	StrictClassification bool          `envconfig:"STRICT_CLASSIFICATION" default:"false"`
}

// CheckpointConfig selects and tunes the checkpoint backend.
type CheckpointConfig struct {
	Backend       string        `envconfig:"BACKEND" default:"memory" validate:"oneof=memory redis postgres sqlite"`
	TTL           time.Duration `envconfig:"TTL" default:"0s"`
	Codec         string        `envconfig:"CODEC" default:"msgpack" validate:"oneof=json msgpack"`
	Compression   string        `envconfig:"COMPRESSION" default:"zstd" validate:"oneof=none gzip zstd"`
	EncryptionKey string        `envconfig:"ENCRYPTION_KEY" validate:"omitempty,len=16|len=24|len=32"`
	KeyPrefix     string        `envconfig:"KEY_PREFIX" default:"devbrain" validate:"required"`
}

// PostgresConfig configures the Postgres checkpoint backend.
type PostgresConfig struct {
	DSN             string        `envconfig:"DSN"`
	MaxConns        int32         `envconfig:"MAX_CONNS" default:"10" validate:"min=1"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
}

// SQLiteConfig configures the SQLite checkpoint backend.
type SQLiteConfig struct {
	Path string `envconfig:"FILE" default:"devbrain.db" validate:"required"`
}

// LLMConfig points at an OpenAI-compatible endpoint (Ollama by default).
type LLMConfig struct {
	APIKey          string        `envconfig:"API_KEY" default:"ollama"`
	BaseURL         string        `envconfig:"BASE_URL" default:"http://localhost:11434/v1" validate:"required,url"`
	ChatModel       string        `envconfig:"CHAT_MODEL" default:"llama3" validate:"required"`
	ClassifierModel string        `envconfig:"CLASSIFIER_MODEL" default:"llama3" validate:"required"`
	EmbeddingModel  string        `envconfig:"EMBEDDING_MODEL" default:"all-minilm" validate:"required"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"0s"`
}

// RetrievalConfig configures the pgvector retriever.
type RetrievalConfig struct {
	Enabled     bool    `envconfig:"ENABLED" default:"false"`
	DatabaseURL string  `envconfig:"DATABASE_URL"`
	Limit       int     `envconfig:"LIMIT" default:"3" validate:"min=1,max=50"`
	Threshold   float64 `envconfig:"THRESHOLD" default:"0.4" validate:"min=0,max=1"`
	Dimensions  int     `envconfig:"DIMENSIONS" default:"384" validate:"min=1"`
}

// Load reads the given .env files (".env" when none are named; missing files
// are ignored) and then the process environment.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv processes the environment without touching .env files.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field rules and cross-field requirements.
func (c *Config) Validate() error {
	if err := validation.ValidateWithPlayground(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Checkpoint.Backend == BackendPostgres && c.Postgres.DSN == "" {
		return fmt.Errorf("invalid configuration: %w", validation.ValidationError{
			Field: "POSTGRES_DSN", Message: "required when CHECKPOINT_BACKEND=postgres",
		})
	}
	if c.Retrieval.Enabled && c.RetrievalDSN() == "" {
		return fmt.Errorf("invalid configuration: %w", validation.ValidationError{
			Field: "RETRIEVAL_DATABASE_URL", Message: "required when retrieval is enabled",
		})
	}
	return nil
}

// Env returns the parsed deployment environment.
func (c *Config) Env() core.Environment {
	return core.ParseEnvironment(c.Environment)
}

// RetrievalDSN falls back to the checkpoint database when no dedicated
// vector database is configured.
func (c *Config) RetrievalDSN() string {
	if c.Retrieval.DatabaseURL != "" {
		return c.Retrieval.DatabaseURL
	}
	return c.Postgres.DSN
}
