package ragpipeline

import (
	"context"
	"testing"

	"planrag/internal/cache"
	"planrag/internal/domain"
	"planrag/internal/embed"
	"planrag/internal/llm"
	"planrag/internal/vectorstore"
)

type fakeParties struct{}

func (fakeParties) Title(documentID string) string { return "Plan " + documentID }
func (fakeParties) PartyAbbreviation(documentID string) string {
	if documentID == "doc-pln" {
		return "PLN"
	}
	return "PUSC"
}
func (fakeParties) ResolveEntities(entities []string) []string {
	var out []string
	for _, e := range entities {
		if e == "PLN" || e == "PUSC" {
			out = append(out, e)
		}
	}
	return out
}

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	embedder := embed.NewDeterministic(16, 7)
	store := vectorstore.NewMemory(16)
	llmProvider := llm.NewDeterministic(8192, func(messages []llm.Message) string {
		return "El PLN propone invertir en salud pública según su plan de gobierno, con varias medidas concretas adicionales que amplían la cobertura."
	})
	return &Pipeline{
		Embedder:            embedder,
		LLM:                 llmProvider,
		VectorStore:         store,
		Cache:               cache.NewMemory(),
		Parties:             fakeParties{},
		SimilarityThreshold: 0.0,
	}
}

func ingestOne(t *testing.T, p *Pipeline, docID, text string) {
	t.Helper()
	vectors, _, err := p.Embedder.EmbedBatch(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	party := "PUSC"
	if docID == "doc-pln" {
		party = "PLN"
	}
	err = p.VectorStore.UpsertChunks(context.Background(), []domain.Chunk{
		{ID: docID + "-0", DocumentID: docID, ChunkIndex: 0, Text: text, Embedding: vectors[0], PageNumber: 1,
			Metadata: map[string]any{"party": party}},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
}

func TestQueryEmptyCorpusReturnsCanonicalNoInfo(t *testing.T) {
	p := newPipeline(t)
	resp, err := p.Query(context.Background(), "¿Qué propone el PLN en salud?", Options{TopK: -1})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if resp.Confidence != 0 {
		t.Fatalf("expected confidence 0 for empty corpus, got %f", resp.Confidence)
	}
	if len(resp.Sources) != 0 {
		t.Fatalf("expected no sources, got %v", resp.Sources)
	}
	if resp.Answer != CanonicalNoInfoAnswer {
		t.Fatalf("expected canonical no-info answer, got %q", resp.Answer)
	}
}

func TestQueryTopKZeroSkipsRetrieval(t *testing.T) {
	p := newPipeline(t)
	ingestOne(t, p, "doc-pln", "el plan del PLN propone mejorar la salud pública con nuevos hospitales")
	resp, err := p.Query(context.Background(), "¿Qué dice el PLN?", Options{TopK: 0})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if resp.Answer != CanonicalNoInfoAnswer {
		t.Fatalf("expected no-info answer when topK=0, got %q", resp.Answer)
	}
}

func TestQueryEmptyQuestionIsInvalidInput(t *testing.T) {
	p := newPipeline(t)
	_, err := p.Query(context.Background(), "", Options{TopK: -1})
	if err == nil {
		t.Fatal("expected an error for an empty question")
	}
}

func TestQueryHappyPathCachesSecondCall(t *testing.T) {
	p := newPipeline(t)
	ingestOne(t, p, "doc-pln", "el plan del PLN propone mejorar la salud pública con nuevos hospitales y mas personal medico")

	first, err := p.Query(context.Background(), "¿Qué propone el PLN en salud?", Options{TopK: -1, PartyFilter: "PLN", MinScore: 0.001})
	if err != nil {
		t.Fatalf("first query: %v", err)
	}
	if first.Metadata.Cached {
		t.Fatalf("expected first call to be a cache miss")
	}
	if len(first.Sources) == 0 {
		t.Fatalf("expected at least one source")
	}

	second, err := p.Query(context.Background(), "¿Qué propone el PLN en salud?", Options{TopK: -1, PartyFilter: "PLN", MinScore: 0.001})
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if !second.Metadata.Cached {
		t.Fatalf("expected second identical call to be a cache hit")
	}
	if second.Answer != first.Answer {
		t.Fatalf("expected cached answer to match original: %q vs %q", second.Answer, first.Answer)
	}
}
