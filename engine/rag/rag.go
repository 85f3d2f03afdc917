// Package rag orchestrates retrieval-augmented answering: it retrieves
// supporting context for a question, hands it to an external generator, and
// fact-checks the generated text against the inventory before returning it.
// Generation itself lives outside this repository; only the orchestration
// and the validation guardrail are here.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yokharian/ia-sales-agent/engine/docs"
	"github.com/yokharian/ia-sales-agent/engine/domain"
	"github.com/yokharian/ia-sales-agent/engine/factcheck"
	"github.com/yokharian/ia-sales-agent/engine/search"
	"github.com/yokharian/ia-sales-agent/pkg/vehiclenlp"
)

// Generator produces an answer from a question and retrieved context parts.
// It is an external collaborator (hosted model, prompt templates and all).
type Generator interface {
	Generate(ctx context.Context, question string, contextParts []string) (string, error)
}

// VehicleSearcher is the hybrid search surface the service needs.
type VehicleSearcher interface {
	SearchFiltered(ctx context.Context, query string, k int, filters domain.SearchFilters) ([]search.ScoredCandidate, error)
}

// DocsRetriever is the business-document retrieval surface.
type DocsRetriever interface {
	Search(ctx context.Context, query string, k int) ([]docs.Result, error)
}

// Verifier fact-checks generated text.
type Verifier interface {
	VerifyText(ctx context.Context, text string) (*factcheck.Report, error)
}

// Options configures the pipeline.
type Options struct {
	TopK          int
	SearchTimeout time.Duration
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          5,
		SearchTimeout: 5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.SearchTimeout <= 0 {
		o.SearchTimeout = d.SearchTimeout
	}
	return o
}

// Source is one piece of retrieved context backing an answer.
type Source struct {
	ID      string  `json:"id"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Answer is generated text plus the evidence and the verification verdict.
// Callers decide what to do with an answer whose Report is invalid; the
// service never silently discards one.
type Answer struct {
	Text    string            `json:"text"`
	Sources []Source          `json:"sources"`
	Report  *factcheck.Report `json:"report"`
}

// Service wires retrieval, generation and fact checking together.
type Service struct {
	vehicles VehicleSearcher
	docs     DocsRetriever
	gen      Generator
	verifier Verifier
	opts     Options
	log      *slog.Logger
}

// New creates the service. Either retriever may be nil if the deployment
// only answers one kind of question.
func New(vehicles VehicleSearcher, docsRetriever DocsRetriever, gen Generator, verifier Verifier, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		vehicles: vehicles,
		docs:     docsRetriever,
		gen:      gen,
		verifier: verifier,
		opts:     opts.withDefaults(),
		log:      logger.With("component", "rag"),
	}
}

// AnswerVehicle answers an inventory question: hybrid search for context,
// generate, verify.
func (s *Service) AnswerVehicle(ctx context.Context, question string) (*Answer, error) {
	if s.vehicles == nil {
		return nil, fmt.Errorf("rag: no vehicle searcher configured")
	}
	s.log.Info("vehicle question", "question_len", len(question))

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	candidates, err := s.vehicles.SearchFiltered(searchCtx, question, s.opts.TopK, questionFilters(question))
	if err != nil {
		return nil, fmt.Errorf("rag: vehicle search: %w", err)
	}

	parts := make([]string, len(candidates))
	sources := make([]Source, len(candidates))
	for i, c := range candidates {
		parts[i] = fmt.Sprintf("[stock %d] %s | price $%.2f | %d km", c.StockID, c.Text, c.Record.Price, c.Record.MileageKM)
		sources[i] = Source{
			ID:      fmt.Sprintf("stock-%d", c.StockID),
			Content: c.Text,
			Score:   c.CombinedScore,
		}
	}
	return s.generate(ctx, question, parts, sources)
}

// questionFilters narrows retrieval to a named vehicle when the question
// mentions one ("any 2020 Corolla left?"). Questions without a recognizable
// make leave retrieval unconstrained.
func questionFilters(question string) domain.SearchFilters {
	m := vehiclenlp.ExtractBest(question)
	if m == nil {
		return domain.SearchFilters{}
	}
	f := domain.SearchFilters{Make: m.Make, Model: m.Model}
	if m.Year > 0 {
		f.MinYear = m.Year
		f.MaxYear = m.Year
	}
	return f
}

// AnswerBusiness answers a question about the business (financing,
// warranties, branch policies) from the document corpus.
func (s *Service) AnswerBusiness(ctx context.Context, question string) (*Answer, error) {
	if s.docs == nil {
		return nil, fmt.Errorf("rag: no docs retriever configured")
	}
	s.log.Info("business question", "question_len", len(question))

	searchCtx, cancel := context.WithTimeout(ctx, s.opts.SearchTimeout)
	defer cancel()
	results, err := s.docs.Search(searchCtx, question, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: docs search: %w", err)
	}

	parts := make([]string, len(results))
	sources := make([]Source, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%s#%d] %s", r.Chunk.Filename, r.Chunk.ChunkID, r.Chunk.Text)
		sources[i] = Source{
			ID:      fmt.Sprintf("%s#%d", r.Chunk.Filename, r.Chunk.ChunkID),
			Content: r.Chunk.Text,
			Score:   r.Score,
		}
	}
	return s.generate(ctx, question, parts, sources)
}

func (s *Service) generate(ctx context.Context, question string, parts []string, sources []Source) (*Answer, error) {
	text, err := s.gen.Generate(ctx, question, parts)
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("rag: generator returned empty answer")
	}

	report, err := s.verifier.VerifyText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("rag: verify answer: %w", err)
	}
	if !report.Valid {
		s.log.Warn("generated answer failed fact check",
			"claims", report.ClaimsFound, "invalid", report.InvalidClaims)
	}

	return &Answer{Text: text, Sources: sources, Report: report}, nil
}
