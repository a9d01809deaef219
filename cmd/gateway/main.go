// The gateway exposes the platform HTTP surface: POST /ingest, POST /search,
// GET /health and GET /metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"contentcore/internal/bus"
	"contentcore/internal/config"
	"contentcore/internal/httpapi"
	"contentcore/internal/intelligence"
	"contentcore/internal/observability"
	"contentcore/internal/ratelimit"
	"contentcore/internal/search"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("gateway")
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

	// The limiter fails open when Redis is down, so a broken cache only
	// costs rate limiting, not availability.
	var limiter httpapi.Limiter
	if opts, err := redis.ParseURL(cfg.Redis.URL); err == nil {
		client := redis.NewClient(opts)
		defer client.Close()
		limiter = ratelimit.New(client)
	} else {
		log.Warn().Err(err).Msg("invalid REDIS_URL, rate limiting disabled")
	}

	esManager, err := search.NewManager(cfg.Elastic)
	if err != nil {
		return fmt.Errorf("init document store: %w", err)
	}

	ai := intelligence.NewClient(cfg.AI)
	executor := search.NewExecutor(esManager, ai, metrics)

	producer := bus.NewWriter(cfg.Kafka)
	defer func() {
		if err := producer.Close(); err != nil {
			log.Error().Err(err).Msg("error closing producer")
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           httpapi.NewServer(cfg, limiter, executor, producer, metrics),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("gateway stopped")
	return nil
}
