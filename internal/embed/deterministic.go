package embed

import (
	"context"
	"hash/fnv"
	"math"
)

// deterministicProvider is a hash-based stand-in for a real embedding model,
// used by tests and by the diagnostic/offline tooling. It hashes byte
// 3-grams into a fixed-size vector and L2-normalizes so cosine similarity
// behaves sensibly in tests that don't need semantic accuracy.
type deterministicProvider struct {
	dim  int
	seed uint64
}

// NewDeterministic builds a Provider with no external dependency, suitable
// for unit tests of the pipelines that sit above C1.
func NewDeterministic(dim int, seed uint64) Provider {
	if dim <= 0 {
		dim = 64
	}
	return &deterministicProvider{dim: dim, seed: seed}
}

func (d *deterministicProvider) ModelName() string { return "deterministic" }
func (d *deterministicProvider) Dimension() int    { return d.dim }

func (d *deterministicProvider) Embed(_ context.Context, text string) ([]float32, Usage, error) {
	return d.embedOne(text), Usage{}, nil
}

func (d *deterministicProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, Usage, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, Usage{}, nil
}

func (d *deterministicProvider) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	b := []byte(s)
	if len(b) == 0 {
		return v
	}
	if len(b) < 3 {
		d.add(b, v)
	} else {
		for i := 0; i <= len(b)-3; i++ {
			d.add(b[i:i+3], v)
		}
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum > 0 {
		inv := float32(1.0 / math.Sqrt(sum))
		for i := range v {
			v[i] *= inv
		}
	}
	return v
}

func (d *deterministicProvider) add(gram []byte, v []float32) {
	h := fnv.New64a()
	if d.seed != 0 {
		var tmp [8]byte
		for i := 0; i < 8; i++ {
			tmp[i] = byte(d.seed >> (8 * i))
		}
		_, _ = h.Write(tmp[:])
	}
	_, _ = h.Write(gram)
	hv := h.Sum64()
	idx := int(hv % uint64(len(v)))
	w := float32(int32(hv>>32)) / float32(1<<31)
	v[idx] += w
}
