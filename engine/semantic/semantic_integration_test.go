//go:build integration

package semantic

import (
	"context"
	"os"
	"testing"
)

func qdrantAddr() string {
	if v := os.Getenv("QDRANT_URL"); v != "" {
		return v
	}
	return "localhost:6334"
}

func testStore(t *testing.T, collection string) *VectorStore {
	t.Helper()
	vs, err := New(qdrantAddr(), collection)
	if err != nil {
		t.Fatalf("connect qdrant: %v", err)
	}
	t.Cleanup(func() {
		vs.reset(context.Background(), 0)
		vs.Close()
	})
	return vs
}

func TestQdrant_RebuildAndQuery(t *testing.T) {
	vs := testStore(t, "test_rebuild_query")
	ctx := context.Background()

	texts := []string{"toyota corolla 2020", "honda civic 2021", "toyota camry 2019"}
	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0.9, 0.1, 0, 0},
	}
	if err := vs.Rebuild(ctx, texts, vectors); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	hits, err := vs.Query(ctx, []float32{1, 0, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].Position != 0 {
		t.Fatalf("expected position 0 first, got %d", hits[0].Position)
	}
	if hits[0].Similarity < hits[1].Similarity {
		t.Fatalf("hits not ordered by similarity: %+v", hits)
	}
}

func TestQdrant_RebuildReplacesCollection(t *testing.T) {
	vs := testStore(t, "test_rebuild_replace")
	ctx := context.Background()

	first := [][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}}
	if err := vs.Rebuild(ctx, []string{"a", "b"}, first); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}

	second := [][]float32{{0, 0, 1, 0}}
	if err := vs.Rebuild(ctx, []string{"c"}, second); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	hits, err := vs.Query(ctx, []float32{0, 0, 1, 0}, 10)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit after replacement, got %d", len(hits))
	}
	if hits[0].Position != 0 {
		t.Fatalf("expected position 0, got %d", hits[0].Position)
	}
}

func TestQdrant_RebuildEmpty(t *testing.T) {
	vs := testStore(t, "test_rebuild_empty")
	ctx := context.Background()

	if err := vs.Rebuild(ctx, []string{"a"}, [][]float32{{1, 0, 0, 0}}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if err := vs.Rebuild(ctx, nil, nil); err != nil {
		t.Fatalf("empty Rebuild: %v", err)
	}
}
