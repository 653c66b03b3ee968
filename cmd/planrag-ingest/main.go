// planrag-ingest ingests one document or a batch of documents into the
// configured vector store and object store.
//
// Usage:
//
//	planrag-ingest -url <pdf-url> -doc-id <id> -party <slug>
//	planrag-ingest -batch requests.json
//
// Flags:
//
//	-url string
//	    Document URL to ingest (single-document mode)
//	-doc-id string
//	    Document id for single-document mode
//	-party string
//	    Party slug for single-document mode
//	-batch string
//	    Path to a JSON file containing an array of {url, docId, partySlug}
//	-verbose
//	    Print per-document results as they complete
//
// Exit codes: 0 all documents ingested; 1 some documents failed; 2 all
// documents failed, or a fatal configuration/startup error occurred.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"planrag/internal/chunk"
	"planrag/internal/config"
	"planrag/internal/embed"
	"planrag/internal/ingestpipeline"
	"planrag/internal/objectstore"
	"planrag/internal/observability"
	"planrag/internal/pdf"
	"planrag/internal/persistence/databases"
	"planrag/internal/vectorstore"
)

func main() {
	os.Exit(run())
}

func run() int {
	url := flag.String("url", "", "document URL (single-document mode)")
	docID := flag.String("doc-id", "", "document id (single-document mode)")
	party := flag.String("party", "", "party slug (single-document mode)")
	batchPath := flag.String("batch", "", "path to a JSON array of ingest requests")
	verbose := flag.Bool("verbose", false, "print per-document results")
	flag.Parse()

	var requests []ingestpipeline.Request
	switch {
	case *batchPath != "":
		reqs, err := loadBatch(*batchPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "planrag-ingest: %v\n", err)
			return 2
		}
		requests = reqs
	case *url != "" && *docID != "":
		requests = []ingestpipeline.Request{{URL: *url, DocID: *docID, PartySlug: *party}}
	default:
		fmt.Fprintln(os.Stderr, "planrag-ingest: either -batch or both -url and -doc-id are required")
		return 2
	}

	if err := godotenv.Load(".env"); err != nil {
		_ = godotenv.Load("example.env")
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "planrag-ingest: failed to load config: %v\n", err)
		return 2
	}
	observability.InitLogger(cfg.LogPath, cfg.LogLevel)

	ctx := context.Background()
	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "planrag-ingest: %v\n", err)
		return 2
	}

	results := pipeline.IngestBatch(ctx, requests, ingestpipeline.Options{
		Chunking: chunkOptionsFromConfig(cfg),
	})

	successCount, failedCount := 0, 0
	for _, res := range results {
		switch res.Status {
		case ingestpipeline.StatusFailed:
			failedCount++
		default:
			successCount++
		}
		if *verbose || res.Status == ingestpipeline.StatusFailed {
			printResult(res)
		}
	}

	fmt.Printf("ingested %d/%d documents (%d failed)\n", successCount, len(results), failedCount)
	switch {
	case failedCount == 0:
		return 0
	case successCount == 0:
		return 2
	default:
		return 1
	}
}

func loadBatch(path string) ([]ingestpipeline.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file %s: %w", path, err)
	}
	var raw []struct {
		URL       string `json:"url"`
		DocID     string `json:"docId"`
		PartySlug string `json:"partySlug"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse batch file %s: %w", path, err)
	}
	requests := make([]ingestpipeline.Request, 0, len(raw))
	for _, r := range raw {
		requests = append(requests, ingestpipeline.Request{URL: r.URL, DocID: r.DocID, PartySlug: r.PartySlug})
	}
	return requests, nil
}

func printResult(res ingestpipeline.Result) {
	line := map[string]any{
		"docId":  res.DocID,
		"status": res.Status,
		"stats":  res.Stats,
	}
	if res.Err != nil {
		line["error"] = res.Err.Error()
	}
	enc, _ := json.Marshal(line)
	fmt.Println(string(enc))
}

func chunkOptionsFromConfig(cfg config.Config) chunk.Options {
	return chunk.Options{TargetTokens: cfg.ChunkSize, MaxTokens: cfg.ChunkMax, OverlapTokens: cfg.ChunkOverlap}
}

func buildPipeline(ctx context.Context, cfg config.Config) (*ingestpipeline.Pipeline, error) {
	embedder := embedderFromConfig(cfg.EmbeddingProvider)

	vecStore, err := vectorStoreFromConfig(ctx, cfg.VectorStore)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	objStore, err := objectStoreFromConfig(ctx, cfg.ObjectStore, cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("open object store: %w", err)
	}
	downloader := pdf.New(objStore, pdf.Config{
		Timeout:     time.Duration(cfg.DownloadTimeoutMS) * time.Millisecond,
		Retries:     cfg.DownloadRetries,
		Concurrency: cfg.DownloadConcurrency,
	})

	return &ingestpipeline.Pipeline{
		Downloader:  downloader,
		Store:       objStore,
		Embedder:    embedder,
		VectorStore: vecStore,
		Metrics:     observability.NewOtelMetrics(),
	}, nil
}

func embedderFromConfig(cfg config.EmbeddingConfig) embed.Provider {
	switch cfg.Provider {
	case "openai":
		return embed.NewOpenAI(cfg)
	case "deterministic":
		return embed.NewDeterministic(cfg.Dim, 1)
	default:
		return embed.NewHTTP(cfg)
	}
}

func vectorStoreFromConfig(ctx context.Context, cfg config.VectorStoreConfig) (vectorstore.Store, error) {
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

func objectStoreFromConfig(ctx context.Context, cfg config.ObjectStoreConfig, downloadDir string) (objectstore.ObjectStore, error) {
	switch cfg.Backend {
	case "s3":
		return objectstore.NewS3Store(ctx, cfg.S3)
	default:
		return objectstore.NewDiskStore(downloadDir)
	}
}
