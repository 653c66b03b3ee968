// Package search implements C11: embedding the enhanced query and invoking
// the vector store's similarity search, with no re-ranking of its own.
package search

import (
	"context"

	"planrag/internal/embed"
	"planrag/internal/vectorstore"
)

// DefaultThreshold is the cosine-similarity floor applied when the caller
// does not override it, per the design note calling 0.35 out as tunable.
const DefaultThreshold = 0.35

// DefaultTopK is the number of chunks requested when the caller does not
// specify k.
const DefaultTopK = 5

// Search embeds query via embedder and retrieves up to k chunks from store
// whose similarity exceeds threshold, filtered by filters, ordered by
// similarity descending (the ordering vectorstore.Store guarantees).
func Search(ctx context.Context, embedder embed.Provider, store vectorstore.Store, query string, k int, filters map[string]string, threshold float64) ([]vectorstore.Result, error) {
	if k <= 0 {
		return nil, nil
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	vectors, _, err := embedder.EmbedBatch(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	return store.SimilaritySearch(ctx, vectors[0], k, filters, threshold)
}
