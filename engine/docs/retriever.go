package docs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/yokharian/ia-sales-agent/engine/search"
	"github.com/yokharian/ia-sales-agent/pkg/fn"
)

// Options configures the ensemble retriever. Lexical evidence dominates
// because business documents (financing terms, branch policies) are keyword
// heavy; the dense side catches paraphrased questions.
type Options struct {
	LexicalWeight  float64
	DenseWeight    float64
	MMRLambda      float64
	EmbedBatchSize int
	EmbedWorkers   int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		LexicalWeight:  0.7,
		DenseWeight:    0.3,
		MMRLambda:      0.5,
		EmbedBatchSize: 64,
		EmbedWorkers:   4,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.LexicalWeight == 0 && o.DenseWeight == 0 {
		o.LexicalWeight, o.DenseWeight = d.LexicalWeight, d.DenseWeight
	}
	if o.MMRLambda <= 0 || o.MMRLambda > 1 {
		o.MMRLambda = d.MMRLambda
	}
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = d.EmbedBatchSize
	}
	if o.EmbedWorkers <= 0 {
		o.EmbedWorkers = d.EmbedWorkers
	}
	return o
}

// Result is one retrieved chunk with its component and fused scores.
type Result struct {
	Chunk        Chunk   `json:"chunk"`
	LexicalScore float64 `json:"lexical_score"`
	DenseScore   float64 `json:"dense_score"`
	Score        float64 `json:"score"`
}

// Retriever is a two-way ensemble over a chunk set: BM25 plus dense
// similarity, with maximal-marginal-relevance reranking on the dense side
// for diversity. Build indexes a snapshot; Search before Build fails with
// search.ErrNotReady.
type Retriever struct {
	embedder search.Embedder
	dense    search.DenseIndex
	opts     Options
	log      *slog.Logger

	mu      sync.RWMutex
	ready   bool
	chunks  []Chunk
	vectors [][]float32
	lexical *search.BM25Index
}

// NewRetriever creates a retriever around the given embedder and dense index.
func NewRetriever(embedder search.Embedder, dense search.DenseIndex, opts Options, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder: embedder,
		dense:    dense,
		opts:     opts.withDefaults(),
		log:      logger.With("component", "docs"),
	}
}

// Build replaces the retriever contents with the given chunks.
func (r *Retriever) Build(ctx context.Context, chunks []Chunk) error {
	texts := fn.Map(chunks, func(c Chunk) string { return c.Text })

	batches := fn.Chunk(texts, r.opts.EmbedBatchSize)
	results := fn.ParMapResult(batches, r.opts.EmbedWorkers, func(batch []string) fn.Result[[][]float32] {
		return fn.FromPair(r.embedder.EmbedBatch(ctx, batch))
	})
	collected, err := fn.Collect(results).Unwrap()
	if err != nil {
		return fmt.Errorf("docs: embed chunks: %w", err)
	}
	vectors := make([][]float32, 0, len(texts))
	for _, batch := range collected {
		vectors = append(vectors, batch...)
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("docs: embedder returned %d vectors for %d chunks", len(vectors), len(texts))
	}

	lexical := search.NewBM25Index(texts, 0)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dense.Rebuild(ctx, texts, vectors); err != nil {
		return fmt.Errorf("docs: rebuild dense index: %w", err)
	}
	r.chunks = append([]Chunk(nil), chunks...)
	r.vectors = vectors
	r.lexical = lexical
	r.ready = true

	r.log.Info("docs index built", "chunks", len(chunks))
	return nil
}

// Ready reports whether Build has completed at least once.
func (r *Retriever) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

// Search returns the top k chunks for the query. The dense side fetches 2k
// candidates and reranks them with MMR before fusion, so near-duplicate
// chunks do not crowd out distinct ones.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return nil, search.ErrNotReady
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("docs: embed query: %w", err)
	}
	denseHits, err := r.dense.Query(ctx, qvec, 2*k)
	if err != nil {
		return nil, fmt.Errorf("docs: dense query: %w", err)
	}
	denseHits = r.mmrSelect(denseHits, k)

	fused := r.fuse(denseHits, r.lexicalHits(query, 2*k))
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// SearchThreshold returns chunks whose dense similarity meets the threshold,
// ranked by the fused score. Chunks below the threshold are dropped even if
// fewer than k remain.
func (r *Retriever) SearchThreshold(ctx context.Context, query string, k int, threshold float64) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return nil, search.ErrNotReady
	}

	qvec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("docs: embed query: %w", err)
	}
	denseHits, err := r.dense.Query(ctx, qvec, 2*k)
	if err != nil {
		return nil, fmt.Errorf("docs: dense query: %w", err)
	}
	kept := denseHits[:0]
	for _, h := range denseHits {
		if h.Similarity >= threshold {
			kept = append(kept, h)
		}
	}

	lexical := r.lexicalHits(query, 2*k)
	allowed := make(map[int]bool, len(kept))
	for _, h := range kept {
		allowed[h.Position] = true
	}
	filtered := lexical[:0]
	for _, h := range lexical {
		if allowed[h.Position] {
			filtered = append(filtered, h)
		}
	}

	fused := r.fuse(kept, filtered)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// lexicalHits caps the unlimited BM25 ranking to the candidate pool size.
func (r *Retriever) lexicalHits(query string, limit int) []search.LexicalHit {
	hits := r.lexical.Query(query)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// mmrSelect greedily picks k hits maximizing lambda-weighted relevance minus
// redundancy against the already-selected set.
func (r *Retriever) mmrSelect(hits []search.DenseHit, k int) []search.DenseHit {
	if len(hits) <= 1 {
		return hits
	}
	lambda := r.opts.MMRLambda
	remaining := append([]search.DenseHit(nil), hits...)
	selected := make([]search.DenseHit, 0, k)
	for len(selected) < k && len(remaining) > 0 {
		best, bestScore := 0, math.Inf(-1)
		for i, h := range remaining {
			redundancy := 0.0
			for _, s := range selected {
				if sim := cosine(r.vectors[h.Position], r.vectors[s.Position]); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*h.Similarity - (1-lambda)*redundancy
			if score > bestScore {
				best, bestScore = i, score
			}
		}
		selected = append(selected, remaining[best])
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return selected
}

// fuse normalizes each method's scores and ranks by the weighted sum.
// Ties break by chunk position.
func (r *Retriever) fuse(dense []search.DenseHit, lexical []search.LexicalHit) []Result {
	type parts struct {
		dense, lexical *float64
	}
	acc := make(map[int]*parts)
	ensure := func(pos int) *parts {
		p, ok := acc[pos]
		if !ok {
			p = &parts{}
			acc[pos] = p
		}
		return p
	}

	if len(dense) > 0 {
		raw := make([]float64, len(dense))
		for i, h := range dense {
			raw[i] = h.Similarity
		}
		norm := search.MinMaxNormalize(raw)
		for i, h := range dense {
			v := norm[i]
			ensure(h.Position).dense = &v
		}
	}
	if len(lexical) > 0 {
		raw := make([]float64, len(lexical))
		for i, h := range lexical {
			raw[i] = h.Score
		}
		norm := search.MinMaxNormalize(raw)
		for i, h := range lexical {
			v := norm[i]
			ensure(h.Position).lexical = &v
		}
	}

	deref := func(p *float64) float64 {
		if p == nil {
			return 0
		}
		return *p
	}
	out := make([]Result, 0, len(acc))
	type posResult struct {
		pos int
		res Result
	}
	ranked := make([]posResult, 0, len(acc))
	for pos, p := range acc {
		res := Result{
			Chunk:        r.chunks[pos],
			LexicalScore: deref(p.lexical),
			DenseScore:   deref(p.dense),
		}
		res.Score = r.opts.LexicalWeight*res.LexicalScore + r.opts.DenseWeight*res.DenseScore
		ranked = append(ranked, posResult{pos: pos, res: res})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].res.Score != ranked[j].res.Score {
			return ranked[i].res.Score > ranked[j].res.Score
		}
		return ranked[i].pos < ranked[j].pos
	})
	for _, pr := range ranked {
		out = append(out, pr.res)
	}
	return out
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
