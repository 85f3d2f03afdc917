package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/yokharian/ia-sales-agent/engine/domain"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	records := []domain.VehicleRecord{
		{StockID: 10012, Make: "toyota", Model: "corolla", Year: 2020, Price: 18500, MileageKM: 25000,
			Features: map[string]bool{"bluetooth": true, "car_play": true}},
		{StockID: 10034, Make: "toyota", Model: "camry", Year: 2021, Price: 26000, MileageKM: 12000,
			Features: map[string]bool{"bluetooth": true, "sunroof": true}},
		{StockID: 10056, Make: "honda", Model: "civic", Year: 2019, Price: 16000, MileageKM: 48000,
			Features: map[string]bool{"bluetooth": false}},
	}
	if err := s.UpsertBatch(context.Background(), records); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	r, err := s.GetByStockID(ctx, 10012)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.Make != "toyota" || r.Price != 18500 || !r.Features["bluetooth"] {
		t.Errorf("unexpected record: %+v", r)
	}

	// Re-ingestion upserts by stock_id.
	update := *r
	update.Price = 17900
	if err := s.Upsert(ctx, update); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	r, _ = s.GetByStockID(ctx, 10012)
	if r.Price != 17900 {
		t.Errorf("price after upsert = %v, want 17900", r.Price)
	}
	if n, _ := s.Count(ctx); n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestGetByStockID_NotFound(t *testing.T) {
	s := testStore(t)
	if _, err := s.GetByStockID(context.Background(), 99999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUpsert_RejectsInvalid(t *testing.T) {
	s := testStore(t)
	err := s.Upsert(context.Background(), domain.VehicleRecord{StockID: 1, Make: "a", Model: "b", Price: -1})
	if !errors.Is(err, domain.ErrNegativePrice) {
		t.Fatalf("want ErrNegativePrice, got %v", err)
	}
}

func TestDistinct(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	makes, err := s.DistinctMakes(ctx, 10)
	if err != nil {
		t.Fatalf("makes: %v", err)
	}
	if len(makes) != 2 || makes[0] != "honda" || makes[1] != "toyota" {
		t.Errorf("makes = %v", makes)
	}

	models, err := s.DistinctModels(ctx, "toyota", 10)
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	if len(models) != 2 {
		t.Errorf("toyota models = %v", models)
	}
}

func TestDistinctMakes_EmptyInventory(t *testing.T) {
	s := testStore(t)
	makes, err := s.DistinctMakes(context.Background(), 10)
	if err != nil {
		t.Fatalf("makes: %v", err)
	}
	if len(makes) != 0 {
		t.Errorf("makes on empty inventory = %v, want []", makes)
	}
}

func TestSearch_Filters(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, domain.SearchFilters{Make: "Toyota", BudgetMax: 20000})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].StockID != 10012 {
		t.Errorf("filtered = %+v", got)
	}

	got, _ = s.Search(ctx, domain.SearchFilters{RequiredFeatures: []string{"bluetooth"}})
	if len(got) != 2 {
		t.Errorf("bluetooth vehicles = %d, want 2", len(got))
	}

	got, _ = s.Search(ctx, domain.SearchFilters{MaxMileageKM: 20000})
	if len(got) != 1 || got[0].StockID != 10034 {
		t.Errorf("low-mileage = %+v", got)
	}
}

func TestPriceAndMileageBetween(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.PriceBetween(ctx, 17000, 20000)
	if err != nil {
		t.Fatalf("price between: %v", err)
	}
	if len(got) != 1 || got[0].StockID != 10012 {
		t.Errorf("price between = %+v", got)
	}

	got, _ = s.MileageBetween(ctx, 40000, 50000)
	if len(got) != 1 || got[0].StockID != 10056 {
		t.Errorf("mileage between = %+v", got)
	}
}

func TestFindByMention(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	got, err := s.FindByMention(context.Background(), "toyota", "corolla", 2020, 3)
	if err != nil {
		t.Fatalf("find by mention: %v", err)
	}
	if len(got) != 1 || got[0].StockID != 10012 {
		t.Errorf("mention = %+v", got)
	}

	got, _ = s.FindByMention(context.Background(), "toyota", "corolla", 1999, 3)
	if len(got) != 0 {
		t.Errorf("wrong year should not match, got %+v", got)
	}
}

func TestResolveMake(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	ctx := context.Background()

	got, ok, err := s.ResolveMake(ctx, "Toyta")
	if err != nil || !ok || got != "toyota" {
		t.Fatalf("ResolveMake(Toyta) = %q, %v, %v; want toyota", got, ok, err)
	}

	if _, ok, _ := s.ResolveMake(ctx, "zeppelin"); ok {
		t.Fatal("ResolveMake(zeppelin) matched, want no match")
	}
}

func TestResolveMake_EmptyInventory(t *testing.T) {
	s := testStore(t)
	if _, ok, err := s.ResolveMake(context.Background(), "toyota"); ok || err != nil {
		t.Fatalf("empty inventory resolve = ok=%v err=%v, want no match, no error", ok, err)
	}
}

func TestResolveModel_ScopedToMake(t *testing.T) {
	s := testStore(t)
	seed(t, s)
	got, ok, err := s.ResolveModel(context.Background(), "corola", "toyota")
	if err != nil || !ok || got != "corolla" {
		t.Fatalf("ResolveModel(corola, toyota) = %q, %v, %v", got, ok, err)
	}
}
