// Package config loads runtime configuration from environment variables
// (optionally overlaid from a .env file and a YAML file), following the
// env-var-first precedence used across the rest of this codebase.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"planrag/internal/rerr"
)

// Config is the fully resolved runtime configuration.
type Config struct {
	HTTPAddr string
	LogLevel string
	LogPath  string

	EmbeddingProvider EmbeddingConfig
	LLMProvider       LLMConfig

	VectorStore VectorStoreConfig
	Cache       CacheConfig
	ObjectStore ObjectStoreConfig

	CacheTTLHours int

	ChunkSize    int
	ChunkMax     int
	ChunkOverlap int

	SimilarityThreshold float64
	TopKDefault         int

	DownloadDir         string
	DownloadTimeoutMS   int
	DownloadRetries     int
	DownloadConcurrency int

	Obs ObsConfig
}

// ObsConfig configures the OpenTelemetry exporters. Left zero-valued (OTLP
// empty), InitOTel is simply never called; there's no "disabled" flag beyond
// that.
type ObsConfig struct {
	OTLP           string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

type EmbeddingConfig struct {
	Provider string // openai | ollama | deterministic
	APIKey   string
	BaseURL  string
	Model    string
	Dim      int
}

type LLMConfig struct {
	Provider  string // openai | anthropic | deepseek | ollama
	APIKey    string
	BaseURL   string
	Model     string
	ContextWindow int
}

type VectorStoreConfig struct {
	Backend    string // memory | postgres | qdrant
	URL        string
	Collection string
	Dimension  int
}

type CacheConfig struct {
	Backend string // memory | postgres | redis
	URL     string
}

type ObjectStoreConfig struct {
	Backend string // disk | s3
	Bucket  string
	Region  string
	S3      S3Config
}

// S3Config configures S3Store. Only populated when Backend is "s3".
type S3Config struct {
	Bucket                string
	Region                string
	Endpoint              string
	Prefix                string
	AccessKey             string
	SecretKey             string
	UsePathStyle          bool
	TLSInsecureSkipVerify bool
	SSE                   S3SSEConfig
}

// S3SSEConfig configures server-side encryption for S3 puts/copies.
type S3SSEConfig struct {
	Mode     string // "", "sse-s3", "sse-kms"
	KMSKeyID string
}

// Load reads configuration from the environment (Overload-ing any .env file
// present so local development config deterministically wins), then applies
// an optional YAML overlay named by PLANRAG_CONFIG_FILE, then fills defaults.
func Load() (Config, error) {
	_ = godotenv.Overload()

	var cfg Config
	cfg.HTTPAddr = envOr("HTTP_ADDR", ":8080")
	cfg.LogLevel = envOr("LOG_LEVEL", "info")
	cfg.LogPath = os.Getenv("LOG_PATH")

	cfg.EmbeddingProvider = EmbeddingConfig{
		Provider: envOr("EMBEDDING_PROVIDER", "openai"),
		APIKey:   os.Getenv("EMBEDDING_API_KEY"),
		BaseURL:  os.Getenv("EMBEDDING_BASE_URL"),
		Model:    envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		Dim:      envInt("EMBEDDING_DIM", 1536),
	}
	cfg.LLMProvider = LLMConfig{
		Provider:      envOr("LLM_PROVIDER", "openai"),
		APIKey:        os.Getenv("LLM_API_KEY"),
		BaseURL:       os.Getenv("LLM_BASE_URL"),
		Model:         envOr("LLM_MODEL", "gpt-4o-mini"),
		ContextWindow: envInt("LLM_CONTEXT_WINDOW", 128000),
	}
	cfg.VectorStore = VectorStoreConfig{
		Backend:    envOr("VECTOR_STORE_BACKEND", "memory"),
		URL:        os.Getenv("VECTOR_STORE_URL"),
		Collection: envOr("VECTOR_STORE_COLLECTION", "chunks"),
		Dimension:  cfg.EmbeddingProvider.Dim,
	}
	cfg.Cache = CacheConfig{
		Backend: envOr("CACHE_BACKEND", "memory"),
		URL:     os.Getenv("CACHE_URL"),
	}
	cfg.ObjectStore = ObjectStoreConfig{
		Backend: envOr("OBJECT_STORE_BACKEND", "disk"),
		Bucket:  os.Getenv("OBJECT_STORE_BUCKET"),
		Region:  os.Getenv("OBJECT_STORE_REGION"),
		S3: S3Config{
			Bucket:                envOr("S3_BUCKET", os.Getenv("OBJECT_STORE_BUCKET")),
			Region:                envOr("S3_REGION", os.Getenv("OBJECT_STORE_REGION")),
			Endpoint:              os.Getenv("S3_ENDPOINT"),
			Prefix:                os.Getenv("S3_PREFIX"),
			AccessKey:             os.Getenv("S3_ACCESS_KEY"),
			SecretKey:             os.Getenv("S3_SECRET_KEY"),
			UsePathStyle:          envBool("S3_USE_PATH_STYLE", false),
			TLSInsecureSkipVerify: envBool("S3_TLS_INSECURE_SKIP_VERIFY", false),
			SSE: S3SSEConfig{
				Mode:     os.Getenv("S3_SSE_MODE"),
				KMSKeyID: os.Getenv("S3_SSE_KMS_KEY_ID"),
			},
		},
	}

	cfg.Obs = ObsConfig{
		OTLP:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:    envOr("OTEL_SERVICE_NAME", "planragd"),
		ServiceVersion: envOr("OTEL_SERVICE_VERSION", "dev"),
		Environment:    envOr("OTEL_ENVIRONMENT", "development"),
	}

	cfg.CacheTTLHours = envInt("CACHE_TTL_HOURS", 168)
	cfg.ChunkSize = envInt("CHUNK_SIZE", 400)
	cfg.ChunkMax = envInt("CHUNK_MAX", 600)
	cfg.ChunkOverlap = envInt("CHUNK_OVERLAP", 50)
	cfg.SimilarityThreshold = envFloat("SIMILARITY_THRESHOLD", 0.35)
	cfg.TopKDefault = envInt("TOP_K_DEFAULT", 5)

	cfg.DownloadDir = envOr("DOWNLOAD_DIR", "./data/documents")
	cfg.DownloadTimeoutMS = envInt("DOWNLOAD_TIMEOUT_MS", 30000)
	cfg.DownloadRetries = envInt("DOWNLOAD_RETRIES", 3)
	cfg.DownloadConcurrency = envInt("DOWNLOAD_CONCURRENCY", 3)

	if path := os.Getenv("PLANRAG_CONFIG_FILE"); path != "" {
		if err := overlayYAML(&cfg, path); err != nil {
			return cfg, rerr.Wrap(err, rerr.ErrConfigError, "loading overlay %s", path)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that required fields for the selected backends are present.
func (c Config) Validate() error {
	if c.EmbeddingProvider.Dim <= 0 {
		return rerr.New(rerr.KindConfigError, "EMBEDDING_DIM must be positive")
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return rerr.New(rerr.KindConfigError, "SIMILARITY_THRESHOLD must be within [0,1]")
	}
	switch c.VectorStore.Backend {
	case "memory", "postgres", "qdrant":
	default:
		return rerr.New(rerr.KindConfigError, "unknown VECTOR_STORE_BACKEND %q", c.VectorStore.Backend)
	}
	switch c.Cache.Backend {
	case "memory", "postgres", "redis":
	default:
		return rerr.New(rerr.KindConfigError, "unknown CACHE_BACKEND %q", c.Cache.Backend)
	}
	if (c.VectorStore.Backend == "postgres" || c.VectorStore.Backend == "qdrant") && c.VectorStore.URL == "" {
		return rerr.New(rerr.KindConfigError, "VECTOR_STORE_URL required for backend %q", c.VectorStore.Backend)
	}
	if c.Cache.Backend != "memory" && c.Cache.URL == "" {
		return rerr.New(rerr.KindConfigError, "CACHE_URL required for backend %q", c.Cache.Backend)
	}
	if c.ObjectStore.Backend == "s3" && c.ObjectStore.S3.Bucket == "" {
		return rerr.New(rerr.KindConfigError, "S3_BUCKET required for OBJECT_STORE_BACKEND=s3")
	}
	return nil
}

func overlayYAML(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var overlay map[string]any
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	// Only a small set of fields are expected to be overlaid from file;
	// env vars already won above for everything else.
	if v, ok := overlay["http_addr"].(string); ok && v != "" && strings.TrimSpace(os.Getenv("HTTP_ADDR")) == "" {
		cfg.HTTPAddr = v
	}
	if v, ok := overlay["log_level"].(string); ok && v != "" && strings.TrimSpace(os.Getenv("LOG_LEVEL")) == "" {
		cfg.LogLevel = v
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
