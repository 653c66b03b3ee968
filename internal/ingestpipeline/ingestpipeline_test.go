package ingestpipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"planrag/internal/embed"
	"planrag/internal/objectstore"
	"planrag/internal/pdf"
	"planrag/internal/rerr"
	"planrag/internal/vectorstore"
)

// flakyEmbedder fails the first N calls to EmbedBatch, then delegates to a
// real deterministic provider.
type flakyEmbedder struct {
	embed.Provider
	failures int
	calls    int
}

func (f *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, embed.Usage, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, embed.Usage{}, rerr.ErrProviderUnavailable
	}
	return f.Provider.EmbedBatch(ctx, texts)
}

func TestEmbedWithRetryRecoversAfterTransientFailures(t *testing.T) {
	base := embed.NewDeterministic(8, 1)
	flaky := &flakyEmbedder{Provider: base, failures: 2}
	vectors, err := embedWithRetry(context.Background(), flaky, []string{"uno", "dos"}, 10, 3)
	if err != nil {
		t.Fatalf("expected recovery within retry budget, got %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
}

func TestEmbedWithRetryFailsAfterExhaustingRetries(t *testing.T) {
	base := embed.NewDeterministic(8, 1)
	flaky := &flakyEmbedder{Provider: base, failures: 99}
	_, err := embedWithRetry(context.Background(), flaky, []string{"uno"}, 10, 2)
	if err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	store := objectstore.NewMemoryStore()
	downloader := pdf.New(store, pdf.Config{Retries: 0})
	return &Pipeline{
		Downloader:  downloader,
		Store:       store,
		Embedder:    embed.NewDeterministic(16, 3),
		VectorStore: vectorstore.NewMemory(16),
	}
}

func TestIngestFailsOnDownloadValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	result := p.Ingest(context.Background(), Request{URL: srv.URL, DocID: "doc-1", PartySlug: "PLN"}, Options{})
	if result.Status != StatusFailed {
		t.Fatalf("expected failed status for a 404 download, got %s", result.Status)
	}
	if result.Err == nil {
		t.Fatal("expected a non-nil error")
	}
}

func TestIngestBatchContinuesAfterOneFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestPipeline(t)
	reqs := []Request{
		{URL: srv.URL, DocID: "doc-1", PartySlug: "PLN"},
		{URL: srv.URL, DocID: "doc-2", PartySlug: "PUSC"},
	}
	results := p.IngestBatch(context.Background(), reqs, Options{})
	if len(results) != 2 {
		t.Fatalf("expected one result per request, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != StatusFailed {
			t.Fatalf("expected both documents to fail against a 404 response, got %s for %s", r.Status, r.DocID)
		}
	}
}
