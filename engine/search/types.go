// Package search implements the hybrid vehicle search engine: dense vector
// similarity, sparse lexical ranking, and fuzzy string matching fused into a
// single ranked result set over the inventory.
package search

import (
	"context"
	"errors"

	"github.com/yokharian/ia-sales-agent/engine/domain"
)

// ErrNotReady is returned when search is invoked before the index is built.
var ErrNotReady = errors.New("search: index not built")

// Embedder turns text into dense vectors. Implementations may call a local
// model or a hosted API; the engine treats it as a capability.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DenseHit is a nearest-neighbor result from a DenseIndex. Position is the
// document's ordinal in the slice passed to Rebuild; Similarity is in [0,1]
// (1 - distance for cosine-distance backends).
type DenseHit struct {
	Position   int
	Similarity float64
}

// DenseIndex is a pluggable similarity-search provider. Rebuild replaces the
// whole index; there are no incremental updates.
type DenseIndex interface {
	Rebuild(ctx context.Context, texts []string, vectors [][]float32) error
	Query(ctx context.Context, vector []float32, k int) ([]DenseHit, error)
}

// Weights are the fusion coefficients applied to normalized per-method scores.
type Weights struct {
	Vector  float64
	Lexical float64
	Fuzzy   float64
}

// DefaultWeights reflect that dense similarity is the strongest signal while
// lexical and fuzzy evidence share the remainder.
var DefaultWeights = Weights{Vector: 0.5, Lexical: 0.25, Fuzzy: 0.25}

// Options configures the engine. Zero values fall back to defaults.
type Options struct {
	// Weights used by score fusion.
	Weights Weights
	// LexicalTopN is how many documents the BM25 index returns per query,
	// independent of k.
	LexicalTopN int
	// EmbedBatchSize is the max texts per embedding request during rebuild.
	EmbedBatchSize int
	// EmbedWorkers bounds concurrent embedding batches during rebuild.
	EmbedWorkers int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Weights:        DefaultWeights,
		LexicalTopN:    10,
		EmbedBatchSize: 64,
		EmbedWorkers:   4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Weights == (Weights{}) {
		o.Weights = d.Weights
	}
	if o.LexicalTopN <= 0 {
		o.LexicalTopN = d.LexicalTopN
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = d.EmbedBatchSize
	}
	if o.EmbedWorkers <= 0 {
		o.EmbedWorkers = d.EmbedWorkers
	}
	return o
}

// ScoredCandidate is one ranked search result. Component scores are min-max
// normalized to [0,1] within their method's returned set; a method that did
// not return the candidate contributes 0.
type ScoredCandidate struct {
	StockID       int                  `json:"stock_id"`
	VectorScore   float64              `json:"vector_score"`
	LexicalScore  float64              `json:"lexical_score"`
	FuzzyScore    float64              `json:"fuzzy_score"`
	CombinedScore float64              `json:"combined_score"`
	Record        domain.VehicleRecord `json:"record"`
	Text          string               `json:"text"`
}
