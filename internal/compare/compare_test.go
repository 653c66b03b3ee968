package compare

import (
	"context"
	"testing"

	"planrag/internal/cache"
	"planrag/internal/domain"
	"planrag/internal/embed"
	"planrag/internal/llm"
	"planrag/internal/ragpipeline"
	"planrag/internal/vectorstore"
)

type fakeParties struct{}

func (fakeParties) Title(documentID string) string            { return documentID }
func (fakeParties) PartyAbbreviation(documentID string) string { return documentID }
func (fakeParties) ResolveEntities(entities []string) []string { return nil }

func newService(t *testing.T) *Service {
	t.Helper()
	embedder := embed.NewDeterministic(16, 5)
	store := vectorstore.NewMemory(16)
	llmProvider := llm.NewDeterministic(8192, func(_ []llm.Message) string {
		return "Propuesta detallada sobre el tema consultado con varias medidas concretas adicionales."
	})
	for _, doc := range []struct{ id, party, text string }{
		{"doc-pln", "pln", "el PLN propone ampliar la cobertura de salud con nuevos hospitales"},
		{"doc-pusc", "pusc", "el PUSC propone reformar el sistema de salud con alianzas publico privadas"},
	} {
		vectors, _, err := embedder.EmbedBatch(context.Background(), []string{doc.text})
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		if err := store.UpsertChunks(context.Background(), []domain.Chunk{
			{ID: doc.id + "-0", DocumentID: doc.id, ChunkIndex: 0, Text: doc.text, Embedding: vectors[0],
				Metadata: map[string]any{"party": doc.party}},
		}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	rag := &ragpipeline.Pipeline{
		Embedder:            embedder,
		LLM:                 llmProvider,
		VectorStore:         store,
		Cache:               cache.NewMemory(),
		Parties:             fakeParties{},
		SimilarityThreshold: 0.001,
	}
	return &Service{RAG: rag, Cache: cache.NewMemory()}
}

func TestCompareProducesOneRowPerParty(t *testing.T) {
	s := newService(t)
	result, err := s.Compare(context.Background(), "salud", []string{"pln", "pusc"}, nil)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(result.Rows))
	}
	if result.Cached {
		t.Fatal("expected first call to be uncached")
	}
}

func TestCompareSecondCallHitsCache(t *testing.T) {
	s := newService(t)
	if _, err := s.Compare(context.Background(), "salud", []string{"pln", "pusc"}, nil); err != nil {
		t.Fatalf("first compare: %v", err)
	}
	result, err := s.Compare(context.Background(), "salud", []string{"pln", "pusc"}, nil)
	if err != nil {
		t.Fatalf("second compare: %v", err)
	}
	if !result.Cached {
		t.Fatal("expected second identical call to be a cache hit")
	}
	if len(result.Rows) != 2 {
		t.Fatalf("expected cached matrix to retain both rows, got %d", len(result.Rows))
	}
}

func TestCompareRejectsEmptyTopic(t *testing.T) {
	s := newService(t)
	_, err := s.Compare(context.Background(), "", []string{"pln"}, nil)
	if err == nil {
		t.Fatal("expected an error for an empty topic")
	}
}
