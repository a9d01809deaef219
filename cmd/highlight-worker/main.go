// The highlight worker consumes video highlight requests, holds a per-video
// distributed lock and runs the signal-fusion pipeline one job at a time.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"contentcore/internal/bus"
	"contentcore/internal/config"
	"contentcore/internal/highlight"
	"contentcore/internal/intelligence"
	"contentcore/internal/objectstore"
	"contentcore/internal/observability"
	"contentcore/internal/redislock"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("highlight-worker")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)
	metrics := observability.NewMetrics()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go serveMetrics(":8002", metrics)
	go touchHealthFile(ctx)

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	lock := redislock.New(redisClient, cfg.Redis.LockKey, time.Duration(cfg.Redis.LockTTL)*time.Second)

	blob, err := objectstore.NewS3Store(ctx, cfg.Blob)
	if err != nil {
		return fmt.Errorf("init blob store: %w", err)
	}
	var fallback objectstore.Store
	if cfg.Blob.VolPath != "" {
		fallback = objectstore.NewFSStore(cfg.Blob.VolPath, cfg.Blob.Bucket)
	}
	storage := highlight.NewStorage(blob, fallback, cfg.Blob.Bucket, cfg.Blob.VolPath, metrics)

	ai := intelligence.NewClient(cfg.AI)
	tuning := highlight.LoadTuning(cfg.Highlights.ConfigPath)
	runner := highlight.NewRunner(tuning, storage, ai, metrics)

	producer := bus.NewWriter(cfg.Kafka)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error().Err(err).Msg("error closing producer")
		}
	}()

	ctxAdmin, cancelAdmin := context.WithTimeout(ctx, 5*time.Second)
	if err := bus.EnsureTopics(ctxAdmin, cfg.Kafka,
		cfg.Kafka.HighlightsRequestTopic,
		cfg.Kafka.HighlightsCompleteTop,
		cfg.Kafka.HighlightsDegradedTop,
		cfg.Kafka.HighlightsFailedTop,
	); err != nil {
		log.Warn().Err(err).Msg("could not ensure topics, relying on broker auto-create")
	}
	cancelAdmin()

	reader := bus.NewReader(cfg.Kafka, cfg.Kafka.HighlightsRequestTopic)
	defer func() {
		if err := reader.Close(); err != nil {
			log.Error().Err(err).Msg("error closing reader")
		}
	}()

	jobTimeout := time.Duration(cfg.Governance.JobTimeoutSeconds) * time.Second
	consumer := highlight.NewConsumer(reader, producer, lock, runner, metrics, highlight.Topics{
		Complete: cfg.Kafka.HighlightsCompleteTop,
		Degraded: cfg.Kafka.HighlightsDegradedTop,
		Failed:   cfg.Kafka.HighlightsFailedTop,
	}, jobTimeout)

	log.Info().
		Str("requestTopic", cfg.Kafka.HighlightsRequestTopic).
		Dur("jobTimeout", jobTimeout).
		Msg("highlight worker started")
	return consumer.Run(ctx)
}

func serveMetrics(addr string, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
	}
}

func touchHealthFile(ctx context.Context) {
	path := filepath.Join(os.TempDir(), "healthy")
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
			_ = f.Close()
			now := time.Now()
			_ = os.Chtimes(path, now, now)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
