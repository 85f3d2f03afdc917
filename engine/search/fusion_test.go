package search

import (
	"math"
	"testing"
)

func TestMinMaxNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []float64
		want []float64
	}{
		{"empty", nil, nil},
		{"single", []float64{3.5}, []float64{1}},
		{"all equal", []float64{2, 2, 2}, []float64{1, 1, 1}},
		{"spread", []float64{1, 3, 5}, []float64{0, 0.5, 1}},
		{"negative", []float64{-2, 0, 2}, []float64{0, 0.5, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MinMaxNormalize(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(got[i]-tt.want[i]) > 1e-9 {
					t.Errorf("[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFuseMissingMethodContributesZero(t *testing.T) {
	got := fuse(
		[]methodHit{{stockID: 1, score: 0.9}},
		nil,
		[]methodHit{{stockID: 1, score: 80}, {stockID: 2, score: 95}},
		DefaultWeights,
	)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, c := range got {
		if c.LexicalScore != 0 {
			t.Errorf("stock %d: lexical = %v, want 0", c.StockID, c.LexicalScore)
		}
	}
	// Stock 1 has the only (hence maximal) vector score plus a fuzzy share;
	// stock 2 has only the top fuzzy score.
	var one, two ScoredCandidate
	for _, c := range got {
		switch c.StockID {
		case 1:
			one = c
		case 2:
			two = c
		}
	}
	if one.VectorScore != 1 || two.VectorScore != 0 {
		t.Fatalf("vector scores = %v, %v", one.VectorScore, two.VectorScore)
	}
	if two.FuzzyScore != 1 || one.FuzzyScore != 0 {
		t.Fatalf("fuzzy scores = %v, %v", one.FuzzyScore, two.FuzzyScore)
	}
	if got[0].StockID != 1 {
		t.Fatalf("top = %d, want 1 (0.75 vs 0.25)", got[0].StockID)
	}
}

func TestFuseTieBreaksByStockID(t *testing.T) {
	got := fuse(
		[]methodHit{{stockID: 7, score: 1}, {stockID: 3, score: 1}},
		nil, nil, DefaultWeights,
	)
	if got[0].StockID != 3 || got[1].StockID != 7 {
		t.Fatalf("order = %d, %d, want 3, 7", got[0].StockID, got[1].StockID)
	}
}

func TestBM25Ranking(t *testing.T) {
	docs := []string{
		"toyota corolla 2020 sedan bluetooth",
		"toyota camry 2019 sedan",
		"honda civic 2021 quemacocos",
	}
	idx := NewBM25Index(docs, 10)

	hits := idx.Query("toyota corolla")
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 (civic has no query term)", len(hits))
	}
	if hits[0].Position != 0 {
		t.Fatalf("top hit pos = %d, want 0", hits[0].Position)
	}
	if hits[0].Score <= hits[1].Score {
		t.Fatalf("scores not descending: %v", hits)
	}

	if got := idx.Query("volkswagen"); len(got) != 0 {
		t.Fatalf("unmatched query returned %d hits", len(got))
	}
	if got := idx.Query(""); len(got) != 0 {
		t.Fatalf("empty query returned %d hits", len(got))
	}
}

func TestBM25TopNCap(t *testing.T) {
	docs := make([]string, 25)
	for i := range docs {
		docs[i] = "nissan versa hatchback"
	}
	idx := NewBM25Index(docs, 10)
	got := idx.Query("nissan")
	if len(got) != 10 {
		t.Fatalf("got %d hits, want capped at 10", len(got))
	}
	// Equal scores must keep document order so the cap is deterministic.
	for i, h := range got {
		if h.Position != i {
			t.Fatalf("tied hit %d has position %d, want %d", i, h.Position, i)
		}
	}
}
