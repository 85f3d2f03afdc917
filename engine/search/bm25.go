package search

import (
	"sort"
	"strings"

	"github.com/hupe1980/vecgo/lexical/bm25"
	"github.com/hupe1980/vecgo/model"
)

// LexicalHit is a document position paired with its raw BM25 score.
type LexicalHit struct {
	Position int
	Score    float64
}

// BM25Index is a sparse lexical index over document texts. It wraps vecgo's
// in-memory inverted index, keyed by document position, and is immutable
// once built.
type BM25Index struct {
	idx  *bm25.MemoryIndex
	topN int
}

// NewBM25Index builds an index over the given texts. Queries return at most
// topN hits; topN <= 0 means unlimited.
func NewBM25Index(texts []string, topN int) *BM25Index {
	idx := bm25.New()
	for i, text := range texts {
		// Add on a fresh memory index cannot fail.
		_ = idx.Add(model.PrimaryKey(i), text)
	}
	return &BM25Index{idx: idx, topN: topN}
}

// Query returns documents with positive BM25 scores, ranked descending.
// Ties keep document order.
func (b *BM25Index) Query(q string) []LexicalHit {
	if len(strings.TrimSpace(q)) == 0 {
		return nil
	}
	scores, err := b.idx.Search(q)
	if err != nil {
		return nil
	}

	hits := make([]LexicalHit, 0, len(scores))
	for pk, score := range scores {
		if score <= 0 {
			continue
		}
		hits = append(hits, LexicalHit{Position: int(pk), Score: float64(score)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Position < hits[j].Position
	})
	if b.topN > 0 && len(hits) > b.topN {
		hits = hits[:b.topN]
	}
	return hits
}

func tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
