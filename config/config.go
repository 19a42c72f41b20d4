// Package config loads the service configuration from a YAML file with
// environment variable overrides.
//
// Precedence: defaults -> YAML file -> environment variables. Override
// keys are uppercase with underscores and the DESKAGENT prefix, e.g.
// DESKAGENT_LLM_API_KEY overrides llm.api_key.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/deskagent/compose"
	"github.com/BaSui01/deskagent/engine"
	"github.com/BaSui01/deskagent/internal/telemetry"
	"github.com/BaSui01/deskagent/llm"
	"github.com/BaSui01/deskagent/rag"
	"github.com/BaSui01/deskagent/store"
)

const envPrefix = "DESKAGENT"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Log       LogConfig                `yaml:"log"`
	Database  store.Config             `yaml:"database"`
	Redis     store.HistoryCacheConfig `yaml:"redis"`
	LLM       llm.OpenAIConfig         `yaml:"llm"`
	Pinecone  rag.PineconeConfig       `yaml:"pinecone"`
	Compose   compose.Config           `yaml:"compose"`
	Engine    engine.Config            `yaml:"engine"`
	Telemetry telemetry.Config         `yaml:"telemetry"`

	// TokenizerModel selects the token counting model.
	TokenizerModel string `yaml:"tokenizer_model"`
	// MemoryTopK caps retrieval hits per turn.
	MemoryTopK int `yaml:"memory_top_k"`
	// UseInMemoryVectors switches the memory store to the in-process
	// implementation, for development without Pinecone.
	UseInMemoryVectors bool `yaml:"use_in_memory_vectors"`
}

// ServerConfig configures the HTTP surface (metrics, health).
type ServerConfig struct {
	MetricsAddr     string        `yaml:"metrics_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// SessionRetention is how long closed sessions are kept before the
	// periodic sweep deletes them. Zero disables the sweep.
	SessionRetention time.Duration `yaml:"session_retention"`
	// RetentionInterval is how often the sweep runs.
	RetentionInterval time.Duration `yaml:"retention_interval"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			MetricsAddr:       ":9090",
			ShutdownTimeout:   10 * time.Second,
			SessionRetention:  30 * 24 * time.Hour,
			RetentionInterval: time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: store.DefaultConfig(),
		Redis: store.HistoryCacheConfig{
			Addr: "localhost:6379",
		},
		Compose: compose.DefaultConfig(),
		Engine:  engine.DefaultConfig(),
		Telemetry: telemetry.Config{
			ServiceName: "deskagent",
			SampleRate:  1.0,
		},
		TokenizerModel: "gpt-4o",
		MemoryTopK:     rag.DefaultTopK,
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist) and applies env overrides on top of defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if cfg.Compose.ContextWindow <= cfg.Compose.ReservedCompletionTokens {
		return cfg, fmt.Errorf("context_window (%d) must exceed reserved_completion_tokens (%d)",
			cfg.Compose.ContextWindow, cfg.Compose.ReservedCompletionTokens)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_DSN")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.BaseURL, "LLM_BASE_URL")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setString(&cfg.LLM.EmbeddingModel, "LLM_EMBEDDING_MODEL")
	setString(&cfg.Pinecone.APIKey, "PINECONE_API_KEY")
	setString(&cfg.Pinecone.Index, "PINECONE_INDEX")
	setString(&cfg.Pinecone.BaseURL, "PINECONE_BASE_URL")
	setString(&cfg.Server.MetricsAddr, "SERVER_METRICS_ADDR")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.TokenizerModel, "TOKENIZER_MODEL")
	setInt(&cfg.Engine.DailyTokenLimit, "ENGINE_DAILY_TOKEN_LIMIT")
	setInt(&cfg.Compose.ContextWindow, "COMPOSE_CONTEXT_WINDOW")
	setInt(&cfg.Compose.ReservedCompletionTokens, "COMPOSE_RESERVED_COMPLETION_TOKENS")
	setInt(&cfg.MemoryTopK, "MEMORY_TOP_K")
	setBool(&cfg.UseInMemoryVectors, "USE_IN_MEMORY_VECTORS")
	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setBool(&cfg.Telemetry.Enabled, "TELEMETRY_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "TELEMETRY_OTLP_ENDPOINT")
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + "_" + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
