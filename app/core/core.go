// Package core is the composition root: it builds the logger, the
// relational store connection, the Redis client, the blob store, and the
// reasoning client from Config, the same way the teacher's app/core/core.go
// bootstraps its dependencies, just pointed at this domain's resources
// instead of the chat backend's.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"

	storesql "github.com/ironvale-labs/dtcforge/app/store/sqlstore"
	"github.com/ironvale-labs/dtcforge/pkg/blobstore"
	"github.com/ironvale-labs/dtcforge/pkg/queue"
	"github.com/ironvale-labs/dtcforge/pkg/reasoning"
	"github.com/ironvale-labs/dtcforge/pkg/sqlstore"
)

// Core bundles every long-lived resource a stage worker needs. Built once
// at startup and passed explicitly down to stage workers (spec §9:
// "model [global mutable state] as long-lived owned resources created at
// startup and passed explicitly").
type Core struct {
	Config   *Config
	Logger   *slog.Logger
	DB       *sqlstore.SqlProvider
	Store    *storesql.Provider
	Redis    *redis.Client
	Queue    *queue.Queue
	Blobs    *blobstore.Store
	Reasoner *reasoning.Client
}

// MustSetupCore builds every Core resource or panics — a worker fleet with
// a broken dependency should fail at startup, not limp along (mirrors the
// teacher's MustSetupCore naming and fail-fast posture).
func MustSetupCore(ctx context.Context, cfg *Config) *Core {
	logger := setupLogger(cfg.Log)

	db := sqlstore.MustSetupProvider(pgConnectConfig{dsn: cfg.Postgres.DSN})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	blobs, err := blobstore.New(ctx, cfg.ObjectStore.Endpoint, cfg.ObjectStore.Region,
		cfg.ObjectStore.Bucket, cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey)
	if err != nil {
		panic(fmt.Errorf("failed to set up blob store: %w", err))
	}

	reasoner := reasoning.New(cfg.Reasoning.APIKey, cfg.Reasoning.BaseURL,
		cfg.Reasoning.ChatModel, cfg.Reasoning.EmbeddingModel,
		reasoning.WithEmbeddingDim(cfg.Reasoning.EmbeddingDim))

	return &Core{
		Config:   cfg,
		Logger:   logger,
		DB:       db,
		Store:    storesql.New(db),
		Redis:    rdb,
		Queue:    queue.New(rdb),
		Blobs:    blobs,
		Reasoner: reasoner,
	}
}

func setupLogger(cfg LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var writer *lumberjack.Logger
	handlerOpts := &slog.HandlerOptions{Level: level}

	if cfg.Path != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		return slog.New(slog.NewJSONHandler(writer, handlerOpts))
	}

	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

// pgConnectConfig adapts a raw DSN string to sqlstore.ConnectConfig.
type pgConnectConfig struct{ dsn string }

func (p pgConnectConfig) FormatDSN() string { return p.dsn }
