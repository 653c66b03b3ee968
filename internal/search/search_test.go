package search

import (
	"context"
	"testing"

	"planrag/internal/domain"
	"planrag/internal/embed"
	"planrag/internal/vectorstore"
)

func TestSearchReturnsVectorStoreResultsInOrder(t *testing.T) {
	embedder := embed.NewDeterministic(8, 42)
	store := vectorstore.NewMemory(8)
	ctx := context.Background()

	texts := []string{"la educación pública mejora con inversión", "la seguridad ciudadana es prioridad"}
	vectors, _, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		t.Fatalf("embed batch: %v", err)
	}
	chunks := []domain.Chunk{
		{ID: "c1", DocumentID: "d1", ChunkIndex: 0, Text: texts[0], Embedding: vectors[0]},
		{ID: "c2", DocumentID: "d1", ChunkIndex: 1, Text: texts[1], Embedding: vectors[1]},
	}
	if err := store.UpsertChunks(ctx, chunks); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	results, err := Search(ctx, embedder, store, texts[0], 5, nil, 0.0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	if results[0].Chunk.ID != "c1" {
		t.Fatalf("expected the closest match first, got %s", results[0].Chunk.ID)
	}
}

func TestSearchZeroKReturnsNil(t *testing.T) {
	embedder := embed.NewDeterministic(8, 1)
	store := vectorstore.NewMemory(8)
	results, err := Search(context.Background(), embedder, store, "x", 0, nil, 0.1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if results != nil {
		t.Fatalf("expected nil results for k=0, got %v", results)
	}
}
