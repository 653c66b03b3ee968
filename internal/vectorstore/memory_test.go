package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"planrag/internal/domain"
)

func chunkWith(id string, docID string, idx int, vec []float32, party string) domain.Chunk {
	return domain.Chunk{
		ID:         id,
		DocumentID: docID,
		ChunkIndex: idx,
		Text:       "texto",
		Embedding:  vec,
		Metadata:   map[string]any{"party": party},
	}
}

func TestUpsertRejectsDimensionMismatch(t *testing.T) {
	store := NewMemory(4)
	err := store.UpsertChunks(context.Background(), []domain.Chunk{
		chunkWith("c1", "d1", 0, []float32{1, 2, 3}, "A"),
	})
	require.Error(t, err)
}

func TestSimilaritySearchAppliesThresholdAndFilter(t *testing.T) {
	store := NewMemory(3)
	require.NoError(t, store.UpsertChunks(context.Background(), []domain.Chunk{
		chunkWith("c1", "d1", 0, []float32{1, 0, 0}, "A"),
		chunkWith("c2", "d2", 0, []float32{0, 1, 0}, "B"),
		chunkWith("c3", "d1", 1, []float32{1, 0, 0}, "A"),
	}))

	results, err := store.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 10, nil, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2, "only chunks with cosine similarity above threshold survive")

	results, err = store.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 10, map[string]string{"party": "B"}, -1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "c2", results[0].Chunk.ID)
}

func TestSimilaritySearchTieBreaksByChunkIndex(t *testing.T) {
	store := NewMemory(3)
	require.NoError(t, store.UpsertChunks(context.Background(), []domain.Chunk{
		chunkWith("second", "d1", 5, []float32{1, 0, 0}, "A"),
		chunkWith("first", "d1", 1, []float32{1, 0, 0}, "A"),
	}))
	results, err := store.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 10, nil, 0.0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "first", results[0].Chunk.ID, "equal similarity ties break by ascending chunk_index")
}

func TestPendingChunksInvisibleToSearch(t *testing.T) {
	store := NewMemory(3)
	require.NoError(t, store.UpsertChunks(context.Background(), []domain.Chunk{
		{ID: "pending", DocumentID: "d1", ChunkIndex: 0, Text: "sin embedding"},
	}))
	results, err := store.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 10, nil, -1)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestDeleteByDocumentRemovesAllItsChunks(t *testing.T) {
	store := NewMemory(3)
	require.NoError(t, store.UpsertChunks(context.Background(), []domain.Chunk{
		chunkWith("c1", "d1", 0, []float32{1, 0, 0}, "A"),
		chunkWith("c2", "d2", 0, []float32{1, 0, 0}, "A"),
	}))
	require.NoError(t, store.DeleteByDocument(context.Background(), "d1"))
	n, err := store.CountChunks(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
