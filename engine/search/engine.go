package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/yokharian/ia-sales-agent/engine/domain"
	"github.com/yokharian/ia-sales-agent/pkg/fn"
	"github.com/yokharian/ia-sales-agent/pkg/fuzzy"
	"github.com/yokharian/ia-sales-agent/pkg/resilience"
)

// ErrUnknownStock is returned by SimilarTo for a stock id not in the index.
var ErrUnknownStock = errors.New("search: unknown stock id")

// Engine is the hybrid search engine. Build indexes a snapshot of the
// inventory; queries run against that snapshot until the next Build.
// Queries before the first Build fail with ErrNotReady.
type Engine struct {
	embedder Embedder
	dense    DenseIndex
	breaker  *resilience.Breaker
	opts     Options
	log      *slog.Logger

	mu      sync.RWMutex
	ready   bool
	catalog []domain.VehicleRecord // ascending stock id
	texts   []string               // catalog-parallel document texts
	byStock map[int]int            // stock id -> catalog position
	lexical *BM25Index
}

// New creates an engine around the given embedder and dense index.
func New(embedder Embedder, dense DenseIndex, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder: embedder,
		dense:    dense,
		breaker:  resilience.NewBreaker(resilience.DefaultBreakerOpts),
		opts:     opts.withDefaults(),
		log:      logger.With("component", "search"),
	}
}

// Build replaces the index contents with the given records. Embedding runs
// concurrently in batches before the swap; queries block only for the swap
// and the dense rebuild.
func (e *Engine) Build(ctx context.Context, records []domain.VehicleRecord) error {
	catalog := append([]domain.VehicleRecord(nil), records...)
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].StockID < catalog[j].StockID })

	docs := fn.Map(catalog, domain.DocumentFromRecord)
	texts := fn.Map(docs, func(d domain.SearchableDocument) string { return d.Text })

	batches := fn.Chunk(texts, e.opts.EmbedBatchSize)
	results := fn.ParMapResult(batches, e.opts.EmbedWorkers, func(batch []string) fn.Result[[][]float32] {
		var vecs [][]float32
		err := e.breaker.Call(ctx, func(ctx context.Context) error {
			var inner error
			vecs, inner = e.embedder.EmbedBatch(ctx, batch)
			return inner
		})
		return fn.FromPair(vecs, err)
	})
	collected, err := fn.Collect(results).Unwrap()
	if err != nil {
		return fmt.Errorf("search: embed catalog: %w", err)
	}
	vectors := make([][]float32, 0, len(texts))
	for _, batch := range collected {
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("search: embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	byStock := make(map[int]int, len(catalog))
	for i, r := range catalog {
		byStock[r.StockID] = i
	}
	lexical := NewBM25Index(texts, e.opts.LexicalTopN)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.dense.Rebuild(ctx, texts, vectors); err != nil {
		return fmt.Errorf("search: rebuild dense index: %w", err)
	}
	e.catalog = catalog
	e.texts = texts
	e.byStock = byStock
	e.lexical = lexical
	e.ready = true

	e.log.Info("search index built", "vehicles", len(catalog))
	return nil
}

// Ready reports whether Build has completed at least once.
func (e *Engine) Ready() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ready
}

// Len returns the number of indexed vehicles.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.catalog)
}

// Search returns the top k results for a free-text query.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]ScoredCandidate, error) {
	return e.SearchFiltered(ctx, query, k, domain.SearchFilters{})
}

// SearchFiltered ranks the whole candidate pool by relevance first, then
// walks the ranking applying hard filters until k survivors are found.
// Filtering never reorders results.
func (e *Engine) SearchFiltered(ctx context.Context, query string, k int, filters domain.SearchFilters) ([]ScoredCandidate, error) {
	if k <= 0 {
		return nil, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return nil, ErrNotReady
	}

	ranked, err := e.rank(ctx, query, k)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredCandidate, 0, k)
	for _, c := range ranked {
		if !filters.Empty() && !filters.Matches(c.Record) {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// SimilarTo returns up to k vehicles most similar to the given stock id,
// excluding the vehicle itself.
func (e *Engine) SimilarTo(ctx context.Context, stockID, k int) ([]ScoredCandidate, error) {
	if k <= 0 {
		return nil, nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.ready {
		return nil, ErrNotReady
	}
	pos, ok := e.byStock[stockID]
	if !ok {
		return nil, fmt.Errorf("search: stock %d: %w", stockID, ErrUnknownStock)
	}

	ranked, err := e.rank(ctx, e.texts[pos], k+1)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredCandidate, 0, k)
	for _, c := range ranked {
		if c.StockID == stockID {
			continue
		}
		out = append(out, c)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// rank runs all three retrieval methods and fuses their scores. Callers
// must hold at least a read lock and have checked readiness.
func (e *Engine) rank(ctx context.Context, query string, k int) ([]ScoredCandidate, error) {
	qvec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	denseHits, err := e.dense.Query(ctx, qvec, 2*k)
	if err != nil {
		return nil, fmt.Errorf("search: dense query: %w", err)
	}
	vector := make([]methodHit, len(denseHits))
	for i, h := range denseHits {
		vector[i] = methodHit{stockID: e.catalog[h.Position].StockID, score: h.Similarity}
	}

	var lexical []methodHit
	for _, h := range e.lexical.Query(query) {
		lexical = append(lexical, methodHit{stockID: e.catalog[h.Position].StockID, score: h.Score})
	}

	var fz []methodHit
	for _, m := range fuzzy.Extract(query, e.texts, 2*k) {
		fz = append(fz, methodHit{stockID: e.catalog[m.Index].StockID, score: m.Score})
	}

	ranked := fuse(vector, lexical, fz, e.opts.Weights)
	for i := range ranked {
		p := e.byStock[ranked[i].StockID]
		ranked[i].Record = e.catalog[p]
		ranked[i].Text = e.texts[p]
	}
	return ranked, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	var vec []float32
	err := e.breaker.Call(ctx, func(ctx context.Context) error {
		var inner error
		vec, inner = e.embedder.Embed(ctx, query)
		return inner
	})
	return vec, err
}
