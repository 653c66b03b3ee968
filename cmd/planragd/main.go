// Command planragd runs the HTTP server exposing chat, comparison, party
// and document browsing, ingestion, and health endpoints.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"planrag/internal/cache"
	"planrag/internal/catalog"
	"planrag/internal/compare"
	"planrag/internal/config"
	"planrag/internal/embed"
	"planrag/internal/httpapi"
	"planrag/internal/ingestpipeline"
	"planrag/internal/llm"
	"planrag/internal/objectstore"
	"planrag/internal/observability"
	"planrag/internal/pdf"
	"planrag/internal/persistence/databases"
	"planrag/internal/ragpipeline"
	"planrag/internal/vectorstore"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx := context.Background()

	if cfg.Obs.OTLP != "" {
		shutdown, err := observability.InitOTel(ctx, cfg.Obs)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init opentelemetry")
		}
		defer func() { _ = shutdown(context.Background()) }()
	}
	metrics := observability.NewOtelMetrics()

	embedder := newEmbedder(cfg.EmbeddingProvider)
	llmProvider := newLLM(cfg.LLMProvider)

	vecStore, err := newVectorStore(ctx, cfg.VectorStore)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open vector store")
	}
	chatCache, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open chat cache")
	}
	compareCache, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open comparison cache")
	}
	objStore, err := newObjectStore(ctx, cfg.ObjectStore, cfg.DownloadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open object store")
	}

	cat := catalog.NewMemory()
	// Parties are maintained by an external collaborator; this command does
	// not seed them (the YAML overlay carries only http_addr and log_level),
	// so the catalog starts empty. An empty catalog still serves every
	// endpoint except party-scoped lookups.
	resolver := catalog.Resolver{Parties: cat, Documents: cat}

	rag := &ragpipeline.Pipeline{
		Embedder:            embedder,
		LLM:                 llmProvider,
		VectorStore:         vecStore,
		Cache:               chatCache,
		Parties:             resolver,
		TopKDefault:         cfg.TopKDefault,
		SimilarityThreshold: cfg.SimilarityThreshold,
		DefaultTTL:          time.Duration(cfg.CacheTTLHours) * time.Hour,
	}
	cmp := &compare.Service{RAG: rag, Cache: compareCache, DefaultTTL: time.Duration(cfg.CacheTTLHours) * time.Hour}

	downloader := pdf.New(objStore, pdf.Config{
		Timeout:     time.Duration(cfg.DownloadTimeoutMS) * time.Millisecond,
		Retries:     cfg.DownloadRetries,
		Concurrency: cfg.DownloadConcurrency,
	})
	ingest := &ingestpipeline.Pipeline{
		Downloader:  downloader,
		Store:       objStore,
		Embedder:    embedder,
		VectorStore: vecStore,
		Metrics:     metrics,
	}

	server := httpapi.NewServer(httpapi.Deps{
		RAG:         rag,
		Compare:     cmp,
		Ingest:      ingest,
		Parties:     cat,
		Documents:   cat,
		VectorStore: vecStore,
		AdminToken:  os.Getenv("ADMIN_TOKEN"),
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("planragd listening")
	if err := http.ListenAndServe(cfg.HTTPAddr, server); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func newEmbedder(cfg config.EmbeddingConfig) embed.Provider {
	switch cfg.Provider {
	case "openai":
		return embed.NewOpenAI(cfg)
	case "deterministic":
		return embed.NewDeterministic(cfg.Dim, 1)
	default:
		return embed.NewHTTP(cfg)
	}
}

func newLLM(cfg config.LLMConfig) llm.Provider {
	switch cfg.Provider {
	case "anthropic":
		return llm.NewAnthropic(cfg)
	case "deterministic":
		return llm.NewDeterministic(cfg.ContextWindow, nil)
	default:
		return llm.NewOpenAI(cfg)
	}
}

func newVectorStore(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Store, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := databases.OpenPool(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return vectorstore.NewPostgres(ctx, pool, cfg.Dimension, "cosine")
	case "qdrant":
		return vectorstore.NewQdrant(cfg.URL, cfg.Collection, cfg.Dimension, "cosine")
	default:
		return vectorstore.NewMemory(cfg.Dimension), nil
	}
}

func newCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "postgres":
		pool, err := databases.OpenPool(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return cache.NewPostgres(ctx, pool)
	case "redis":
		return cache.NewRedis(ctx, cfg.URL, "planrag")
	default:
		return cache.NewMemory(), nil
	}
}

func newObjectStore(ctx context.Context, cfg config.ObjectStoreConfig, downloadDir string) (objectstore.ObjectStore, error) {
	switch cfg.Backend {
	case "s3":
		return objectstore.NewS3Store(ctx, cfg.S3)
	default:
		return objectstore.NewDiskStore(downloadDir)
	}
}
