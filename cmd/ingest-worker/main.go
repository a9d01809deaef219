// The ingest worker is pass 1: it consumes submissions off the bus, makes
// them lexically searchable immediately and queues the enrichment work in
// the oplog.
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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"contentcore/internal/bus"
	"contentcore/internal/config"
	"contentcore/internal/ingest"
	"contentcore/internal/observability"
	"contentcore/internal/oplog"
	"contentcore/internal/search"
)

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("ingest-worker")
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

	go serveMetrics(":8003", metrics)
	go touchHealthFile(ctx)

	esManager, err := search.NewManager(cfg.Elastic)
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}
	if err := esManager.EnsureIndex(ctx, ""); err != nil {
		return fmt.Errorf("ensure default index: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	store := oplog.NewStore(pool, 5)
	if err := store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure oplog schema: %w", err)
	}

	ctxAdmin, cancelAdmin := context.WithTimeout(ctx, 5*time.Second)
	if err := bus.EnsureTopics(ctxAdmin, cfg.Kafka, cfg.Kafka.IngestTopic, cfg.Kafka.OpenstreamIngestTopic, cfg.Kafka.IngestResultTopic); err != nil {
		log.Warn().Err(err).Msg("could not ensure topics, relying on broker auto-create")
	}
	cancelAdmin()

	reader := bus.NewReader(cfg.Kafka, cfg.Kafka.IngestTopic, cfg.Kafka.OpenstreamIngestTopic)
	defer func() {
		if err := reader.Close(); err != nil {
			log.Error().Err(err).Msg("error closing reader")
		}
	}()

	consumer := ingest.NewConsumer(reader, esManager, store, metrics)
	return consumer.Run(ctx)
}

func serveMetrics(addr string, metrics *observability.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
	}
}

// touchHealthFile keeps the container health probe satisfied.
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
