package config

// Config holds the runtime configuration shared by all contentcore daemons.
// Values are sourced from the environment (optionally via .env); the highlight
// pipeline additionally loads a YAML tuning file (see internal/highlight).
type Config struct {
	LogPath  string
	LogLevel string

	HTTP       HTTPConfig
	Kafka      KafkaConfig
	Elastic    ElasticConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Blob       BlobConfig
	AI         AIConfig
	RateLimits RateLimitsConfig
	Governance GovernanceConfig
	Highlights HighlightsConfig
}

// HTTPConfig configures the gateway HTTP listener.
type HTTPConfig struct {
	Host   string
	Port   int
	APIKey string // empty disables the X-API-KEY guard
}

// KafkaConfig carries broker addresses, consumer group, optional SASL PLAIN
// credentials and the topic names used across services.
type KafkaConfig struct {
	Brokers  string // comma-separated
	GroupID  string
	SASLUser string
	SASLPass string

	IngestTopic            string // generic submissions
	OpenstreamIngestTopic  string // openstream-sourced submissions
	IngestResultTopic      string
	HighlightsRequestTopic string
	HighlightsCompleteTop  string
	HighlightsDegradedTop  string
	HighlightsFailedTop    string
}

// ElasticConfig configures the document store.
type ElasticConfig struct {
	Host          string
	User          string
	Password      string
	IndexName     string
	EmbeddingDims int
}

type PostgresConfig struct {
	DSN string
}

type RedisConfig struct {
	URL     string
	LockKey string
	LockTTL int // seconds
}

// BlobConfig configures the MinIO/S3 object store plus the optional mounted
// volume used as a direct-path fallback.
type BlobConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
	VolPath   string
}

// AIConfig points at the intelligence gateway and names the model aliases
// used for each task family.
type AIConfig struct {
	BaseURL        string
	APIKey         string
	SummaryModel   string
	EmbeddingModel string
	RerankModel    string
}

// RateLimit is a token-bucket parameter pair for one endpoint family.
type RateLimit struct {
	Capacity   int
	RefillRate float64 // tokens per second
}

type RateLimitsConfig struct {
	Ingest RateLimit
	Search RateLimit
}

type GovernanceConfig struct {
	MaxCPUPercent     int
	MaxMemoryMB       int
	JobTimeoutSeconds int
}

type HighlightsConfig struct {
	ConfigPath string
}
