package search

import (
	"context"
	"fmt"

	"github.com/hupe1980/vecgo"
)

// VecgoIndex is an in-process DenseIndex backed by a flat cosine-distance
// vecgo store. Flat (exhaustive) search is exact and fast enough for
// dealership-sized catalogs.
type VecgoIndex struct {
	db    *vecgo.Vecgo[int]
	count int
}

// NewVecgoIndex returns an empty index. Rebuild must run before Query.
func NewVecgoIndex() *VecgoIndex {
	return &VecgoIndex{}
}

// Rebuild replaces the store with a fresh one holding the given vectors.
// The associated data of each entry is its position in the input slice.
func (v *VecgoIndex) Rebuild(ctx context.Context, _ []string, vectors [][]float32) error {
	if len(vectors) == 0 {
		v.db = nil
		v.count = 0
		return nil
	}
	db, err := vecgo.Flat[int](len(vectors[0])).Cosine().Build()
	if err != nil {
		return fmt.Errorf("vecgo index: build: %w", err)
	}
	items := make([]vecgo.VectorWithData[int], len(vectors))
	for i, vec := range vectors {
		items[i] = vecgo.VectorWithData[int]{Vector: vec, Data: i}
	}
	res := db.BatchInsert(ctx, items)
	for _, e := range res.Errors {
		if e != nil {
			return fmt.Errorf("vecgo index: insert: %w", e)
		}
	}
	v.db = db
	v.count = len(vectors)
	return nil
}

// Query returns up to k nearest neighbors with Similarity = 1 - cosine
// distance.
func (v *VecgoIndex) Query(ctx context.Context, vector []float32, k int) ([]DenseHit, error) {
	if v.db == nil || v.count == 0 {
		return nil, nil
	}
	if k > v.count {
		k = v.count
	}
	results, err := v.db.KNNSearch(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vecgo index: search: %w", err)
	}
	hits := make([]DenseHit, len(results))
	for i, r := range results {
		hits[i] = DenseHit{Position: r.Data, Similarity: 1 - float64(r.Distance)}
	}
	return hits, nil
}
