package search

import (
	"context"
	"hash/fnv"
	"math"
)

// HashEmbedder is a deterministic bag-of-tokens embedder: each token hashes
// to a dimension and the vector is L2 normalized. It carries no semantics
// beyond token overlap, which makes it suitable for offline operation and
// tests where a model server is unavailable.
type HashEmbedder struct {
	Dim int
}

// NewHashEmbedder returns an embedder producing vectors of the given
// dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	return &HashEmbedder{Dim: dim}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.Dim)
	for _, tok := range tokenize(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		vec[int(f.Sum32())%h.Dim]++
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum > 0 {
		norm := float32(math.Sqrt(sum))
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

func (h *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := h.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
