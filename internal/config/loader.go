package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	// Use Overload so .env values override existing OS environment variables.
	// Repository/local configuration deterministically controls runtime
	// behavior in development unless explicitly changed.
	_ = godotenv.Overload()

	cfg := Config{}

	cfg.LogPath = strings.TrimSpace(os.Getenv("LOG_PATH"))
	cfg.LogLevel = strings.TrimSpace(os.Getenv("LOG_LEVEL"))

	cfg.HTTP.Host = getenv("HTTP_HOST", "0.0.0.0")
	cfg.HTTP.Port = getenvInt("HTTP_PORT", 8000)
	cfg.HTTP.APIKey = strings.TrimSpace(os.Getenv("SERVICE_API_KEY"))

	cfg.Kafka.Brokers = getenv("KAFKA_BOOTSTRAP_SERVERS", getenv("KAFKA_BROKERS", ""))
	cfg.Kafka.GroupID = getenv("KAFKA_GROUP_ID", "contentcore")
	cfg.Kafka.SASLUser = getenv("KAFKA_SASL_USER", os.Getenv("KAFKA_BROKER_USER"))
	cfg.Kafka.SASLPass = getenv("KAFKA_SASL_PASS", os.Getenv("KAFKA_BROKER_PASS"))
	cfg.Kafka.IngestTopic = getenv("INGESTION_KAFKA_TOPIC", getenv("KAFKA_TOPIC", "ingest.requests"))
	cfg.Kafka.OpenstreamIngestTopic = getenv("OPENSTREAM_KAFKA_TOPIC", "openstream.ingest.requests")
	cfg.Kafka.IngestResultTopic = getenv("KAFKA_INGEST_RESULT_TOPIC", "openstream.ingest.results")
	cfg.Kafka.HighlightsRequestTopic = getenv("KAFKA_TOPIC_HIGHLIGHTS_REQUEST", "video.highlights.request")
	cfg.Kafka.HighlightsCompleteTop = getenv("KAFKA_TOPIC_HIGHLIGHTS_COMPLETE", "video.highlights.complete")
	cfg.Kafka.HighlightsDegradedTop = getenv("KAFKA_TOPIC_HIGHLIGHTS_DEGRADED", "video.highlights.degraded")
	cfg.Kafka.HighlightsFailedTop = getenv("KAFKA_TOPIC_HIGHLIGHTS_FAILED", "video.highlights.failed")

	cfg.Elastic.Host = getenv("ES_HOST", os.Getenv("ELASTICSEARCH_URL"))
	cfg.Elastic.User = getenv("ES_USER", os.Getenv("ELASTIC_USER"))
	cfg.Elastic.Password = getenv("ES_PASSWORD", os.Getenv("ELASTIC_PASSWORD"))
	cfg.Elastic.IndexName = getenv("ES_INDEX_NAME", "content")
	cfg.Elastic.EmbeddingDims = getenvInt("EMBEDDING_DIMS", 3072)

	cfg.Postgres.DSN = strings.TrimSpace(os.Getenv("POSTGRES_DSN"))

	cfg.Redis.URL = getenv("REDIS_URL", "redis://localhost:6379")
	cfg.Redis.LockKey = getenv("LOCK_KEY", "highlight:lock")
	cfg.Redis.LockTTL = getenvInt("LOCK_TTL", 1800)

	cfg.Blob.Endpoint = getenv("MINIO_ENDPOINT", "minio:9000")
	cfg.Blob.AccessKey = getenv("MINIO_ROOT_USER", os.Getenv("MINIO_ACCESS_KEY"))
	cfg.Blob.SecretKey = getenv("MINIO_ROOT_PASSWORD", os.Getenv("MINIO_SECRET_KEY"))
	cfg.Blob.Bucket = getenv("MINIO_BUCKET", "openstream-uploads")
	cfg.Blob.Secure = getenvBool("MINIO_SECURE", false)
	cfg.Blob.VolPath = getenv("OPENSTREAM_VOL_PATH", "/minio_data")

	cfg.AI.BaseURL = strings.TrimSpace(os.Getenv("INTELLIGENCE_SVC_URL"))
	cfg.AI.APIKey = strings.TrimSpace(os.Getenv("SERVICE_API_KEY"))
	cfg.AI.SummaryModel = getenv("SUMMARY_MODEL", "balanced")
	cfg.AI.EmbeddingModel = getenv("EMBEDDING_MODEL", "embed-default")
	cfg.AI.RerankModel = getenv("RERANK_MODEL", "rerank-default")

	// Rate-limit knobs: the config values are authoritative, there is no
	// separate hard-coded budget anywhere else.
	cfg.RateLimits.Search.Capacity = getenvInt("SEARCH_RATE_LIMIT_CAPACITY", 300)
	cfg.RateLimits.Search.RefillRate = getenvFloat("SEARCH_RATE_LIMIT_REFILL_RATE", 5.0)
	cfg.RateLimits.Ingest.Capacity = getenvInt("INGEST_RATE_LIMIT_CAPACITY", 120)
	cfg.RateLimits.Ingest.RefillRate = getenvFloat("INGEST_RATE_LIMIT_REFILL_RATE", 2.0)

	cfg.Governance.MaxCPUPercent = getenvInt("MAX_CPU_PERCENT", 60)
	cfg.Governance.MaxMemoryMB = getenvInt("MAX_MEMORY_MB", 900)
	cfg.Governance.JobTimeoutSeconds = getenvInt("JOB_TIMEOUT_SECONDS", 1800)

	cfg.Highlights.ConfigPath = getenv("HIGHLIGHT_CONFIG_PATH", "config/highlight_config.yaml")

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
	}
	return def
}
