package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicEmbedBatchPreservesOrder(t *testing.T) {
	p := NewDeterministic(32, 7)
	vecs, _, err := p.EmbedBatch(context.Background(), []string{"educación", "salud", "educación"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	require.Equal(t, vecs[0], vecs[2], "identical input must yield identical vectors")
	require.NotEqual(t, vecs[0], vecs[1])
}

func TestDeterministicVectorsAreNormalized(t *testing.T) {
	p := NewDeterministic(16, 0)
	v, _, err := p.Embed(context.Background(), "propuesta de infraestructura vial")
	require.NoError(t, err)
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	require.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestDeterministicDimensionStable(t *testing.T) {
	p := NewDeterministic(8, 1)
	require.Equal(t, 8, p.Dimension())
	v, _, err := p.Embed(context.Background(), "x")
	require.NoError(t, err)
	require.Len(t, v, 8)
}
