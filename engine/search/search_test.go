package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/yokharian/ia-sales-agent/engine/domain"
)

// bruteIndex is an exact cosine-similarity DenseIndex for tests.
type bruteIndex struct {
	vectors [][]float32
}

func (b *bruteIndex) Rebuild(_ context.Context, _ []string, vectors [][]float32) error {
	b.vectors = vectors
	return nil
}

func (b *bruteIndex) Query(_ context.Context, q []float32, k int) ([]DenseHit, error) {
	hits := make([]DenseHit, 0, len(b.vectors))
	for i, v := range b.vectors {
		var dot float64
		for j := range v {
			dot += float64(q[j]) * float64(v[j])
		}
		hits = append(hits, DenseHit{Position: i, Similarity: dot})
	}
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].Similarity > hits[i].Similarity {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func testCatalog() []domain.VehicleRecord {
	return []domain.VehicleRecord{
		{StockID: 10001, Make: "toyota", Model: "corolla", Year: 2020, MileageKM: 35000, Price: 285000, Features: map[string]bool{"bluetooth": true, "camara de reversa": true}},
		{StockID: 10002, Make: "toyota", Model: "camry", Year: 2019, MileageKM: 52000, Price: 340000, Features: map[string]bool{"bluetooth": true}},
		{StockID: 10003, Make: "honda", Model: "civic", Year: 2021, MileageKM: 18000, Price: 365000, Features: map[string]bool{"quemacocos": true}},
		{StockID: 10004, Make: "nissan", Model: "versa", Year: 2018, MileageKM: 78000, Price: 195000, Features: map[string]bool{}},
		{StockID: 10005, Make: "mazda", Model: "cx-5", Year: 2022, MileageKM: 9000, Price: 489000, Features: map[string]bool{"quemacocos": true, "bluetooth": true}},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(NewHashEmbedder(128), &bruteIndex{}, Options{}, nil)
	if err := e.Build(context.Background(), testCatalog()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return e
}

func TestSearchBeforeBuild(t *testing.T) {
	e := New(NewHashEmbedder(128), &bruteIndex{}, Options{}, nil)
	if _, err := e.Search(context.Background(), "toyota", 3); !errors.Is(err, ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
	if e.Ready() {
		t.Fatal("Ready() = true before Build")
	}
}

func TestSearchExactDocumentRecall(t *testing.T) {
	e := newTestEngine(t)
	e.mu.RLock()
	text := e.texts[e.byStock[10003]]
	e.mu.RUnlock()

	got, err := e.Search(context.Background(), text, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 || got[0].StockID != 10003 {
		t.Fatalf("top result = %+v, want stock 10003 first", got)
	}
	if got[0].CombinedScore <= got[len(got)-1].CombinedScore && len(got) > 1 {
		t.Fatalf("results not ranked descending: %+v", got)
	}
}

func TestSearchScoresInRange(t *testing.T) {
	e := newTestEngine(t)
	got, err := e.Search(context.Background(), "toyota corolla 2020", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, c := range got {
		for name, s := range map[string]float64{
			"vector": c.VectorScore, "lexical": c.LexicalScore, "fuzzy": c.FuzzyScore,
		} {
			if s < 0 || s > 1 {
				t.Errorf("stock %d: %s score %v outside [0,1]", c.StockID, name, s)
			}
		}
		want := 0.5*c.VectorScore + 0.25*c.LexicalScore + 0.25*c.FuzzyScore
		if math.Abs(c.CombinedScore-want) > 1e-9 {
			t.Errorf("stock %d: combined %v, want %v", c.StockID, c.CombinedScore, want)
		}
	}
}

func TestSearchFiltered(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	t.Run("budget keeps rank order", func(t *testing.T) {
		all, err := e.Search(ctx, "sedan bluetooth", 5)
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		filtered, err := e.SearchFiltered(ctx, "sedan bluetooth", 5, domain.SearchFilters{BudgetMax: 350000})
		if err != nil {
			t.Fatalf("SearchFiltered: %v", err)
		}
		var want []int
		for _, c := range all {
			if c.Record.Price <= 350000 {
				want = append(want, c.StockID)
			}
		}
		if len(filtered) != len(want) {
			t.Fatalf("got %d results, want %d", len(filtered), len(want))
		}
		for i, c := range filtered {
			if c.StockID != want[i] {
				t.Fatalf("position %d: got %d, want %d", i, c.StockID, want[i])
			}
			if c.Record.Price > 350000 {
				t.Fatalf("stock %d violates budget filter", c.StockID)
			}
		}
	})

	t.Run("inverted budget yields empty", func(t *testing.T) {
		got, err := e.SearchFiltered(ctx, "toyota", 5, domain.SearchFilters{BudgetMin: 400000, BudgetMax: 200000})
		if err != nil {
			t.Fatalf("SearchFiltered: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("got %d results, want 0", len(got))
		}
	})

	t.Run("required feature", func(t *testing.T) {
		got, err := e.SearchFiltered(ctx, "suv", 5, domain.SearchFilters{RequiredFeatures: []string{"quemacocos"}})
		if err != nil {
			t.Fatalf("SearchFiltered: %v", err)
		}
		for _, c := range got {
			if !c.Record.Features["quemacocos"] {
				t.Fatalf("stock %d missing required feature", c.StockID)
			}
		}
	})
}

func TestSimilarTo(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	got, err := e.SimilarTo(ctx, 10001, 3)
	if err != nil {
		t.Fatalf("SimilarTo: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no similar vehicles returned")
	}
	for _, c := range got {
		if c.StockID == 10001 {
			t.Fatal("SimilarTo returned the vehicle itself")
		}
	}

	if _, err := e.SimilarTo(ctx, 99999, 3); !errors.Is(err, ErrUnknownStock) {
		t.Fatalf("err = %v, want ErrUnknownStock", err)
	}
}

func TestBuildEmptyInventory(t *testing.T) {
	e := New(NewHashEmbedder(64), &bruteIndex{}, Options{}, nil)
	if err := e.Build(context.Background(), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := e.Search(context.Background(), "toyota", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d results from empty inventory", len(got))
	}
}

func TestRebuildReplacesCatalog(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if err := e.Build(ctx, []domain.VehicleRecord{
		{StockID: 20001, Make: "kia", Model: "rio", Year: 2023, MileageKM: 5000, Price: 260000},
	}); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if e.Len() != 1 {
		t.Fatalf("Len() = %d after rebuild, want 1", e.Len())
	}
	got, err := e.Search(ctx, "kia rio", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].StockID != 20001 {
		t.Fatalf("got %+v, want only stock 20001", got)
	}
}
