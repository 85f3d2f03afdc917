package docs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yokharian/ia-sales-agent/engine/search"
)

func TestSplitMarkdown(t *testing.T) {
	text := "# Financing\nWe offer credit.\n\n## Requirements\nValid ID.\n### Down payment\nAt least 10%.\nNo exceptions."
	got := SplitMarkdown(text)
	if len(got) != 3 {
		t.Fatalf("got %d sections, want 3: %q", len(got), got)
	}
	if !strings.HasPrefix(got[0], "# Financing") {
		t.Errorf("section 0 lost its header: %q", got[0])
	}
	if !strings.Contains(got[2], "No exceptions.") {
		t.Errorf("section 2 lost trailing content: %q", got[2])
	}
}

func TestSplitText(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		got := SplitText("hello world", 1000, 200)
		if len(got) != 1 || got[0] != "hello world" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("empty text yields nothing", func(t *testing.T) {
		if got := SplitText("   \n ", 1000, 200); len(got) != 0 {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("long text respects chunk size", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 100; i++ {
			b.WriteString("the quick brown fox jumps over the lazy dog. ")
		}
		got := SplitText(b.String(), 200, 40)
		if len(got) < 2 {
			t.Fatalf("expected multiple chunks, got %d", len(got))
		}
		for i, c := range got {
			// overlap seeding may push a chunk slightly past size
			if len(c) > 200+40 {
				t.Errorf("chunk %d has %d chars", i, len(c))
			}
		}
	})

	t.Run("no separators falls back to hard cut", func(t *testing.T) {
		got := SplitText(strings.Repeat("x", 2500), 1000, 200)
		if len(got) < 3 {
			t.Fatalf("expected >= 3 chunks, got %d", len(got))
		}
	})
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("b-policy.txt", "Returns accepted within 7 days.")
	write("a-financing.md", "# Financing\nCredit available.\n## Rates\nFrom 9.9%.")
	write(".hidden.md", "# ignored")
	write("image.png", "not a doc")

	chunks, err := LoadDir(dir, LoaderOptions{})
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3: %+v", len(chunks), chunks)
	}
	// entries come back in sorted filename order
	if chunks[0].Filename != "a-financing.md" || chunks[2].Filename != "b-policy.txt" {
		t.Fatalf("unexpected order: %+v", chunks)
	}
	if chunks[0].ChunkID != 0 || chunks[1].ChunkID != 1 {
		t.Fatalf("chunk ids not sequential per file: %+v", chunks)
	}
}

func TestLoadDirMissing(t *testing.T) {
	if _, err := LoadDir("/does/not/exist", LoaderOptions{}); err == nil {
		t.Fatal("expected error for missing dir")
	}
}

// bruteIndex is an exact cosine DenseIndex for tests.
type bruteIndex struct {
	vectors [][]float32
}

func (b *bruteIndex) Rebuild(_ context.Context, _ []string, vectors [][]float32) error {
	b.vectors = vectors
	return nil
}

func (b *bruteIndex) Query(_ context.Context, q []float32, k int) ([]search.DenseHit, error) {
	hits := make([]search.DenseHit, 0, len(b.vectors))
	for i, v := range b.vectors {
		var dot float64
		for j := range v {
			dot += float64(q[j]) * float64(v[j])
		}
		hits = append(hits, search.DenseHit{Position: i, Similarity: dot})
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

func testChunks() []Chunk {
	return []Chunk{
		{Text: "Financing available from 9.9 percent annual rate with approved credit", Filename: "financing.md", ChunkID: 0},
		{Text: "All vehicles include a 90 day mechanical warranty on engine and transmission", Filename: "warranty.md", ChunkID: 0},
		{Text: "Trade ins welcome, we appraise your current vehicle the same day", Filename: "tradein.md", ChunkID: 0},
		{Text: "Branch hours monday to saturday nine to seven, sunday closed", Filename: "hours.md", ChunkID: 0},
	}
}

func newTestRetriever(t *testing.T) *Retriever {
	t.Helper()
	r := NewRetriever(search.NewHashEmbedder(128), &bruteIndex{}, Options{}, nil)
	if err := r.Build(context.Background(), testChunks()); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return r
}

func TestRetrieverNotReady(t *testing.T) {
	r := NewRetriever(search.NewHashEmbedder(128), &bruteIndex{}, Options{}, nil)
	if _, err := r.Search(context.Background(), "warranty", 2); !errors.Is(err, search.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestRetrieverSearch(t *testing.T) {
	r := newTestRetriever(t)
	got, err := r.Search(context.Background(), "mechanical warranty on engine", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no results")
	}
	if got[0].Chunk.Filename != "warranty.md" {
		t.Fatalf("top result = %+v, want warranty.md", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("results not ranked descending: %+v", got)
		}
	}
	for _, res := range got {
		if res.LexicalScore < 0 || res.LexicalScore > 1 || res.DenseScore < 0 || res.DenseScore > 1 {
			t.Fatalf("component scores outside [0,1]: %+v", res)
		}
	}
}

func TestRetrieverSearchThreshold(t *testing.T) {
	r := newTestRetriever(t)
	// an impossible threshold drops everything, even under k
	got, err := r.SearchThreshold(context.Background(), "warranty", 4, 1.1)
	if err != nil {
		t.Fatalf("SearchThreshold: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d results above impossible threshold", len(got))
	}

	got, err = r.SearchThreshold(context.Background(), "mechanical warranty on engine", 4, 0.0)
	if err != nil {
		t.Fatalf("SearchThreshold: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("zero threshold should keep dense candidates")
	}
}

func TestRetrieverEmptyBuild(t *testing.T) {
	r := NewRetriever(search.NewHashEmbedder(64), &bruteIndex{}, Options{}, nil)
	if err := r.Build(context.Background(), nil); err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := r.Search(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d results from empty corpus", len(got))
	}
}
