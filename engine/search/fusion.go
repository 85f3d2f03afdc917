package search

import "sort"

// methodHit is one raw hit from a single retrieval method.
type methodHit struct {
	stockID int
	score   float64
}

// accumulator collects the three optional component scores per stock id.
// It is built once during fusion and never progressively mutated afterwards.
type accumulator struct {
	vector  *float64
	lexical *float64
	fuzzy   *float64
}

func (a accumulator) component(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

// MinMaxNormalize rescales scores to [0,1] across the set. A set where every
// score is equal normalizes to 1.0 uniformly; an empty set stays empty.
func MinMaxNormalize(scores []float64) []float64 {
	if len(scores) == 0 {
		return nil
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}
	out := make([]float64, len(scores))
	if hi == lo {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - lo) / (hi - lo)
	}
	return out
}

// fuse normalizes each method's scores independently, merges hits per stock
// id, and ranks by the weighted combination. Ranking ties break by stock id,
// which is the catalog iteration order.
func fuse(vector, lexical, fuzzy []methodHit, w Weights) []ScoredCandidate {
	acc := make(map[int]*accumulator)
	ensure := func(id int) *accumulator {
		a, ok := acc[id]
		if !ok {
			a = &accumulator{}
			acc[id] = a
		}
		return a
	}

	assign := func(hits []methodHit, set func(a *accumulator, v float64)) {
		if len(hits) == 0 {
			return
		}
		raw := make([]float64, len(hits))
		for i, h := range hits {
			raw[i] = h.score
		}
		norm := MinMaxNormalize(raw)
		for i, h := range hits {
			v := norm[i]
			a := ensure(h.stockID)
			set(a, v)
		}
	}

	assign(vector, func(a *accumulator, v float64) { a.vector = &v })
	assign(lexical, func(a *accumulator, v float64) { a.lexical = &v })
	assign(fuzzy, func(a *accumulator, v float64) { a.fuzzy = &v })

	out := make([]ScoredCandidate, 0, len(acc))
	for id, a := range acc {
		c := ScoredCandidate{
			StockID:      id,
			VectorScore:  a.component(a.vector),
			LexicalScore: a.component(a.lexical),
			FuzzyScore:   a.component(a.fuzzy),
		}
		c.CombinedScore = w.Vector*c.VectorScore + w.Lexical*c.LexicalScore + w.Fuzzy*c.FuzzyScore
		out = append(out, c)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CombinedScore != out[j].CombinedScore {
			return out[i].CombinedScore > out[j].CombinedScore
		}
		return out[i].StockID < out[j].StockID
	})
	return out
}
