// Package httpapi exposes the gateway HTTP surface: ingestion, search,
// health and metrics, behind the shared API-key guard and the Redis token
// bucket.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"contentcore/internal/config"
	"contentcore/internal/observability"
	"contentcore/internal/search"
)

// Limiter is the rate-limit pre-check. A nil Limiter disables limiting.
type Limiter interface {
	Allow(ctx context.Context, key string, capacity int, refillRate float64) bool
}

// Searcher runs the search pipeline.
type Searcher interface {
	Search(ctx context.Context, req search.Request) ([]search.Result, error)
}

// Publisher forwards validated submissions to the bus.
type Publisher interface {
	PublishJSON(ctx context.Context, topic string, key string, v any) error
}

// Server wires the gateway endpoints.
type Server struct {
	mux      *http.ServeMux
	apiKey   string
	limiter  Limiter
	limits   config.RateLimitsConfig
	searcher Searcher
	producer Publisher
	metrics  *observability.Metrics

	ingestTopic     string
	openstreamTopic string
}

// NewServer builds the HTTP server. An empty apiKey disables the key check.
func NewServer(cfg config.Config, limiter Limiter, searcher Searcher, producer Publisher, metrics *observability.Metrics) *Server {
	s := &Server{
		mux:             http.NewServeMux(),
		apiKey:          cfg.HTTP.APIKey,
		limiter:         limiter,
		limits:          cfg.RateLimits,
		searcher:        searcher,
		producer:        producer,
		metrics:         metrics,
		ingestTopic:     cfg.Kafka.IngestTopic,
		openstreamTopic: cfg.Kafka.OpenstreamIngestTopic,
	}
	s.registerRoutes(metrics)
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes(metrics *observability.Metrics) {
	s.mux.Handle("POST /ingest", s.guarded("ingest", s.limits.Ingest, s.handleIngest))
	s.mux.Handle("POST /search", s.guarded("search", s.limits.Search, s.handleSearch))
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /metrics", metrics.Handler())
}

// guarded applies the API-key check and the token-bucket pre-check.
func (s *Server) guarded(name string, limit config.RateLimit, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey != "" && r.Header.Get("X-API-KEY") != s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid API key"})
			return
		}
		if s.limiter != nil {
			key := "rate_limit:" + name + ":" + clientIP(r)
			if !s.limiter.Allow(r.Context(), key, limit.Capacity, limit.RefillRate) {
				s.metrics.RateLimitDenials.WithLabelValues(name).Inc()
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
				return
			}
		}
		next(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}
