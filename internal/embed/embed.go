// Package embed implements C1, the Embedding Provider: mapping text to
// fixed-dimension vectors, batch-capable, behind a Provider interface so the
// ingestion and query pipelines never depend on a concrete backend.
package embed

import (
	"context"

	"planrag/internal/rerr"
)

// Usage reports token accounting for a single embed/embedBatch call, when
// the provider exposes it (not every backend does).
type Usage struct {
	PromptTokens int
	TotalTokens  int
}

// Provider is the C1 contract. Implementations must be safe for concurrent
// use; they own their connection pool.
type Provider interface {
	// Embed maps one text to a D-dimensional vector. Returns
	// rerr.ErrProviderUnavailable on transport failure, an InvalidInput
	// error (its message names the byte limit) if text exceeds the
	// provider's input limit.
	Embed(ctx context.Context, text string) ([]float32, Usage, error)
	// EmbedBatch preserves input order; batches transparently under the
	// provider's per-request limit.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, Usage, error)
	// Dimension returns the declared D, stable for the provider's lifetime.
	Dimension() int
	// ModelName identifies the concrete model in use.
	ModelName() string
}

// maxInputBytes is a conservative default input-size guard shared by the
// HTTP-backed providers; individual providers may override.
const maxInputBytes = 32 * 1024

func checkInputSize(text string) error {
	if len(text) > maxInputBytes {
		return rerr.New(rerr.KindInvalidInput, "embedding input exceeds %d bytes", maxInputBytes)
	}
	return nil
}

// batchSlices splits texts into chunks of at most size, preserving order.
func batchSlices(texts []string, size int) [][]string {
	if size <= 0 || len(texts) <= size {
		return [][]string{texts}
	}
	var out [][]string
	for i := 0; i < len(texts); i += size {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		out = append(out, texts[i:end])
	}
	return out
}
