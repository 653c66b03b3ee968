package contextbuild

import (
	"strings"
	"testing"

	"planrag/internal/domain"
	"planrag/internal/vectorstore"
)

type fakeTitles struct{}

func (fakeTitles) Title(documentID string) string { return "Plan de Gobierno " + documentID }
func (fakeTitles) PartyAbbreviation(documentID string) string {
	if documentID == "doc-a" {
		return "PLN"
	}
	return "PUSC"
}

func result(id, docID string, idx int, text string, sim float64) vectorstore.Result {
	return vectorstore.Result{
		Chunk:      domain.Chunk{ID: id, DocumentID: docID, ChunkIndex: idx, Text: text, PageNumber: 1},
		Similarity: sim,
	}
}

func TestBuildDeduplicatesNearIdenticalChunks(t *testing.T) {
	a := result("c1", "doc-a", 0, "el gobierno invertira mucho en educacion publica de calidad", 0.9)
	b := result("c2", "doc-a", 1, "el gobierno invertira mucho en educacion publica de calidad hoy", 0.8)
	built := Build([]vectorstore.Result{a, b}, fakeTitles{}, 10000)
	if len(built.Citations) != 1 {
		t.Fatalf("expected deduplication to keep only one chunk, got %d citations", len(built.Citations))
	}
	if built.Citations[0].ChunkID != "c1" {
		t.Fatalf("expected the higher-similarity chunk to survive, got %s", built.Citations[0].ChunkID)
	}
}

func TestBuildGroupsByPartyWithHeaders(t *testing.T) {
	a := result("c1", "doc-a", 0, "propuesta de salud del partido A con muchas palabras distintas", 0.9)
	b := result("c2", "doc-b", 0, "propuesta de seguridad del partido B con otro contenido diferente", 0.85)
	built := Build([]vectorstore.Result{a, b}, fakeTitles{}, 10000)
	if !strings.Contains(built.Context, "### Party: PLN") {
		t.Fatalf("expected PLN section header, got: %s", built.Context)
	}
	if !strings.Contains(built.Context, "### Party: PUSC") {
		t.Fatalf("expected PUSC section header, got: %s", built.Context)
	}
	if len(built.Citations) != 2 {
		t.Fatalf("expected 2 citations, got %d", len(built.Citations))
	}
}

func TestBuildRespectsTokenBudget(t *testing.T) {
	var results []vectorstore.Result
	for i := 0; i < 20; i++ {
		results = append(results, result("c"+string(rune('a'+i)), "doc-a", i, strings.Repeat("palabra ", 100), 1.0-float64(i)*0.01))
	}
	built := Build(results, fakeTitles{}, 50)
	if len(built.Context) > 50*approxCharsPerToken*2 {
		t.Fatalf("context far exceeds budget: %d chars", len(built.Context))
	}
}
