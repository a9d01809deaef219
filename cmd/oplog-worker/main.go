// The oplog worker is pass 2: it claims enrichment rows with skip-locked
// semantics, generates chunks, embeddings and structured summaries, flips
// documents to ready and emits result events.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"contentcore/internal/bus"
	"contentcore/internal/config"
	"contentcore/internal/intelligence"
	"contentcore/internal/observability"
	"contentcore/internal/oplog"
	"contentcore/internal/search"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("oplog-worker")
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

	go serveMetrics(":8001", metrics)
	go touchHealthFile(ctx)

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	maxRetries := 5
	if v := os.Getenv("OPLOG_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxRetries = n
		}
	}
	store := oplog.NewStore(pool, maxRetries)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure oplog schema: %w", err)
	}

	esManager, err := search.NewManager(cfg.Elastic)
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}
	if err := esManager.EnsureIndex(ctx, ""); err != nil {
		return fmt.Errorf("ensure default index: %w", err)
	}

	producer := bus.NewWriter(cfg.Kafka)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error().Err(err).Msg("error closing producer")
		}
	}()

	ai := intelligence.NewClient(cfg.AI)
	worker := oplog.NewWorker(store, esManager, ai, producer, metrics, cfg.Kafka.IngestResultTopic)
	worker.Dims = cfg.Elastic.EmbeddingDims

	log.Info().Int("batchSize", worker.BatchSize).Msg("oplog worker started")
	return worker.Run(ctx)
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
