package core

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/ironvale-labs/dtcforge/pkg/config"
)

// LogConfig controls the slog/lumberjack sink (SPEC_FULL §10.1).
type LogConfig struct {
	Path  string `toml:"path"`
	Level string `toml:"level"`
}

// PGConfig describes the relational store connection (spec §4.3).
type PGConfig struct {
	DSN     string `toml:"dsn"`
	PoolMin int    `toml:"pool_min"`
	PoolMax int    `toml:"pool_max"`
}

// RedisConfig describes the job-queue connection (spec §4.1).
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// S3Config describes the blob store connection (spec §4.2).
type S3Config struct {
	Endpoint  string `toml:"endpoint"`
	Region    string `toml:"region"`
	Bucket    string `toml:"bucket"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
}

// ReasoningConfig describes the embedding/chat model endpoint.
type ReasoningConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	ChatModel      string `toml:"chat_model"`
	EmbeddingModel string `toml:"embedding_model"`
	EmbeddingDim   int    `toml:"embedding_dim"`
}

// PipelineConfig is the closed configuration set from spec §6, plus the
// reaper/worker-count knobs SPEC_FULL §10.2 adds.
type PipelineConfig struct {
	QueuePopTimeoutSeconds  int     `toml:"queue_pop_timeout_seconds"`
	RelevanceGateThreshold  float64 `toml:"relevance_gate_threshold"`
	ChunkSizeChars          int     `toml:"chunk_size_chars"`
	ChunkOverlapChars       int     `toml:"chunk_overlap_chars"`
	EmbeddingDim            int     `toml:"embedding_dim"`
	MaxCrawlDepth           int     `toml:"max_crawl_depth"`
	RetryAttempts           int     `toml:"retry_attempts"`
	RetryBackoffMS          int     `toml:"retry_backoff_ms"`
	HTTPTimeoutS            int     `toml:"http_timeout_s"`
	EmbeddingTimeoutS       int     `toml:"embedding_timeout_s"`
	ReasoningTimeoutS       int     `toml:"reasoning_timeout_s"`
	ReaperStuckAfterSeconds int     `toml:"reaper_stuck_after_seconds"`
	ReaperIntervalSeconds   int     `toml:"reaper_interval_seconds"`
	WorkersPerStage         int     `toml:"workers_per_stage"`
}

// Config is the root of the TOML configuration file, overridable field by
// field via environment variables (SPEC_FULL §10.2).
type Config struct {
	Log        LogConfig       `toml:"log"`
	Postgres   PGConfig        `toml:"postgres"`
	Redis      RedisConfig     `toml:"redis"`
	ObjectStore S3Config       `toml:"object_store"`
	Reasoning  ReasoningConfig `toml:"reasoning"`
	Pipeline   PipelineConfig  `toml:"pipeline"`
}

// Defaults returns a Config populated with spec §6's documented defaults.
func Defaults() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Postgres: PGConfig{
			PoolMin: 1,
			PoolMax: 5,
		},
		Pipeline: PipelineConfig{
			QueuePopTimeoutSeconds:  5,
			RelevanceGateThreshold:  0.3,
			ChunkSizeChars:          500,
			ChunkOverlapChars:       50,
			EmbeddingDim:            768,
			MaxCrawlDepth:           1,
			RetryAttempts:           2,
			RetryBackoffMS:          500,
			HTTPTimeoutS:            30,
			EmbeddingTimeoutS:       120,
			ReasoningTimeoutS:       300,
			ReaperStuckAfterSeconds: 600,
			ReaperIntervalSeconds:   60,
			WorkersPerStage:         1,
		},
	}
}

// MustLoadConfig reads a TOML file at path (if it exists) over top of
// Defaults(), then applies the environment-variable overlay, and panics on
// malformed TOML — the teacher's MustLoadBaseConfig idiom, since a
// misconfigured worker fleet should fail fast at startup rather than run
// with silently wrong pool sizes.
func MustLoadConfig(path string) *Config {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				panic(fmt.Errorf("failed to decode config file %s: %w", path, err))
			}
		}
	}

	applyEnvOverlay(&cfg)
	return &cfg
}

func applyEnvOverlay(cfg *Config) {
	cfg.Log.Path = config.GetEnv("LOG_PATH", cfg.Log.Path)
	cfg.Log.Level = config.GetEnv("LOG_LEVEL", cfg.Log.Level)

	cfg.Postgres.DSN = config.GetEnv("POSTGRES_DSN", cfg.Postgres.DSN)
	cfg.Postgres.PoolMin = config.GetEnvInt("POSTGRES_POOL_MIN", cfg.Postgres.PoolMin)
	cfg.Postgres.PoolMax = config.GetEnvInt("POSTGRES_POOL_MAX", cfg.Postgres.PoolMax)

	cfg.Redis.Addr = config.GetEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = config.GetEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = config.GetEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.ObjectStore.Endpoint = config.GetEnv("S3_ENDPOINT", cfg.ObjectStore.Endpoint)
	cfg.ObjectStore.Region = config.GetEnv("S3_REGION", cfg.ObjectStore.Region)
	cfg.ObjectStore.Bucket = config.GetEnv("S3_BUCKET", cfg.ObjectStore.Bucket)
	cfg.ObjectStore.AccessKey = config.GetEnv("S3_ACCESS_KEY", cfg.ObjectStore.AccessKey)
	cfg.ObjectStore.SecretKey = config.GetEnv("S3_SECRET_KEY", cfg.ObjectStore.SecretKey)

	cfg.Reasoning.BaseURL = config.GetEnv("REASONING_BASE_URL", cfg.Reasoning.BaseURL)
	cfg.Reasoning.APIKey = config.GetEnv("REASONING_API_KEY", cfg.Reasoning.APIKey)
	cfg.Reasoning.ChatModel = config.GetEnv("REASONING_CHAT_MODEL", cfg.Reasoning.ChatModel)
	cfg.Reasoning.EmbeddingModel = config.GetEnv("REASONING_EMBEDDING_MODEL", cfg.Reasoning.EmbeddingModel)
	cfg.Reasoning.EmbeddingDim = config.GetEnvInt("REASONING_EMBEDDING_DIM", cfg.Reasoning.EmbeddingDim)

	p := &cfg.Pipeline
	p.QueuePopTimeoutSeconds = config.GetEnvInt("QUEUE_POP_TIMEOUT_SECONDS", p.QueuePopTimeoutSeconds)
	p.RelevanceGateThreshold = config.GetEnvFloat("RELEVANCE_GATE_THRESHOLD", p.RelevanceGateThreshold)
	p.ChunkSizeChars = config.GetEnvInt("CHUNK_SIZE_CHARS", p.ChunkSizeChars)
	p.ChunkOverlapChars = config.GetEnvInt("CHUNK_OVERLAP_CHARS", p.ChunkOverlapChars)
	p.EmbeddingDim = config.GetEnvInt("EMBEDDING_DIM", p.EmbeddingDim)
	p.MaxCrawlDepth = config.GetEnvInt("MAX_CRAWL_DEPTH", p.MaxCrawlDepth)
	p.RetryAttempts = config.GetEnvInt("RETRY_ATTEMPTS", p.RetryAttempts)
	p.RetryBackoffMS = config.GetEnvInt("RETRY_BACKOFF_MS", p.RetryBackoffMS)
	p.HTTPTimeoutS = config.GetEnvInt("HTTP_TIMEOUT_S", p.HTTPTimeoutS)
	p.EmbeddingTimeoutS = config.GetEnvInt("EMBEDDING_TIMEOUT_S", p.EmbeddingTimeoutS)
	p.ReasoningTimeoutS = config.GetEnvInt("REASONING_TIMEOUT_S", p.ReasoningTimeoutS)
	p.ReaperStuckAfterSeconds = config.GetEnvInt("REAPER_STUCK_AFTER_SECONDS", p.ReaperStuckAfterSeconds)
	p.ReaperIntervalSeconds = config.GetEnvInt("REAPER_INTERVAL_SECONDS", p.ReaperIntervalSeconds)
	p.WorkersPerStage = config.GetEnvInt("WORKERS_PER_STAGE", p.WorkersPerStage)
}
