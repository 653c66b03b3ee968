package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"planrag/internal/cache"
	"planrag/internal/catalog"
	"planrag/internal/compare"
	"planrag/internal/domain"
	"planrag/internal/embed"
	"planrag/internal/ingestpipeline"
	"planrag/internal/llm"
	"planrag/internal/objectstore"
	"planrag/internal/pdf"
	"planrag/internal/ragpipeline"
	"planrag/internal/vectorstore"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	embedder := embed.NewDeterministic(16, 9)
	store := vectorstore.NewMemory(16)
	llmProvider := llm.NewDeterministic(8192, func(_ []llm.Message) string {
		return "El PLN propone ampliar la cobertura de salud con varias medidas concretas adicionales."
	})

	cat := catalog.NewMemory()
	cat.Seed([]domain.Party{
		{Slug: "pln", Name: "Partido Liberación Nacional", Abbreviation: "PLN"},
	})
	if err := cat.UpsertDocument(context.Background(), domain.Document{ID: "doc-pln", PartySlug: "pln"}); err != nil {
		t.Fatalf("seed document: %v", err)
	}

	text := "el plan del PLN propone mejorar la salud publica con nuevos hospitales"
	vectors, _, err := embedder.EmbedBatch(context.Background(), []string{text})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if err := store.UpsertChunks(context.Background(), []domain.Chunk{
		{ID: "doc-pln-0", DocumentID: "doc-pln", ChunkIndex: 0, Text: text, Embedding: vectors[0],
			Metadata: map[string]any{"party": "pln"}},
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resolver := catalog.Resolver{Parties: cat, Documents: cat}
	rag := &ragpipeline.Pipeline{
		Embedder:            embedder,
		LLM:                 llmProvider,
		VectorStore:         store,
		Cache:               cache.NewMemory(),
		Parties:             resolver,
		SimilarityThreshold: 0.001,
	}
	cmp := &compare.Service{RAG: rag, Cache: cache.NewMemory()}
	objStore := objectstore.NewMemoryStore()
	ingest := &ingestpipeline.Pipeline{
		Downloader:  pdf.New(objStore, pdf.Config{}),
		Store:       objStore,
		Embedder:    embedder,
		VectorStore: store,
	}

	return NewServer(Deps{
		RAG:         rag,
		Compare:     cmp,
		Ingest:      ingest,
		Parties:     cat,
		Documents:   cat,
		VectorStore: store,
	})
}

func TestHandleChatReturnsAnswerWithSources(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"question": "¿Qué propone el PLN en salud?", "partyFilter": "pln"})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp ragpipeline.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Sources) == 0 {
		t.Fatal("expected at least one source")
	}
}

func TestHandleChatRejectsEmptyQuestion(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"question": ""})
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty question, got %d", rec.Code)
	}
}

func TestHandleListPartiesReturnsSeededParty(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/parties", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Parties []domain.Party `json:"parties"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Parties) != 1 || payload.Parties[0].Slug != "pln" {
		t.Fatalf("expected the seeded pln party, got %v", payload.Parties)
	}
}

func TestHandleGetPartyUnknownSlugReturns404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/parties/unknown", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleDocumentChunksRequiresAdminToken(t *testing.T) {
	s := newTestServer(t)
	s.adminToken = "secret"
	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-pln/chunks", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin token, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/documents/doc-pln/chunks", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid admin token, got %d", rec2.Code)
	}
}

func TestHandleHealthReportsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
