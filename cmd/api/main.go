// Package main implements the sales-agent API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yokharian/ia-sales-agent/engine/docs"
	"github.com/yokharian/ia-sales-agent/engine/domain"
	"github.com/yokharian/ia-sales-agent/engine/factcheck"
	"github.com/yokharian/ia-sales-agent/engine/ingest"
	"github.com/yokharian/ia-sales-agent/engine/inventory"
	"github.com/yokharian/ia-sales-agent/engine/search"
	"github.com/yokharian/ia-sales-agent/engine/semantic"
	"github.com/yokharian/ia-sales-agent/pkg/metrics"
	"github.com/yokharian/ia-sales-agent/pkg/mid"
	"github.com/yokharian/ia-sales-agent/pkg/ollama"
)

// Config holds all environment-based configuration.
type Config struct {
	Port          string
	DBPath        string
	DocsDir       string
	EmbedProvider string // "ollama" or "hash"
	OllamaURL     string
	OllamaModel   string
	DenseBackend  string // "local" or "qdrant"
	QdrantURL     string
	Collection    string
	NATSURL       string
	CORSOrigin    string
}

func loadConfig() Config {
	return Config{
		Port:          envOr("PORT", "8080"),
		DBPath:        envOr("DB_PATH", "inventory.db"),
		DocsDir:       envOr("DOCS_DIR", ""),
		EmbedProvider: envOr("EMBED_PROVIDER", "hash"),
		OllamaURL:     envOr("OLLAMA_URL", "http://localhost:11434"),
		OllamaModel:   envOr("OLLAMA_MODEL", "nomic-embed-text"),
		DenseBackend:  envOr("DENSE_BACKEND", "local"),
		QdrantURL:     envOr("QDRANT_URL", "localhost:6334"),
		Collection:    envOr("QDRANT_COLLECTION", "vehicles"),
		NATSURL:       envOr("NATS_URL", ""),
		CORSOrigin:    envOr("CORS_ORIGIN", "*"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Inventory store (SQLite) ---
	store, err := inventory.Open(cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open inventory: %w", err)
	}
	defer store.Close()

	// --- Embedding provider ---
	var embedder search.Embedder
	switch cfg.EmbedProvider {
	case "ollama":
		embedder = ollama.NewEmbedClient(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{})
	default:
		embedder = search.NewHashEmbedder(256)
	}

	// --- Dense index backends ---
	newDense := func(suffix string) (search.DenseIndex, func(), error) {
		if cfg.DenseBackend == "qdrant" {
			vs, err := semantic.New(cfg.QdrantURL, cfg.Collection+suffix)
			if err != nil {
				return nil, nil, fmt.Errorf("qdrant connect: %w", err)
			}
			return vs, func() { vs.Close() }, nil
		}
		return search.NewVecgoIndex(), func() {}, nil
	}

	vehicleDense, closeVehicles, err := newDense("")
	if err != nil {
		return err
	}
	defer closeVehicles()

	docsDense, closeDocs, err := newDense("-docs")
	if err != nil {
		return err
	}
	defer closeDocs()

	// --- Search engine over current inventory ---
	engine := search.New(embedder, vehicleDense, search.DefaultOptions(), logger)
	records, err := store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load inventory: %w", err)
	}
	reg := metrics.New()
	rebuilds := reg.Counter("index_rebuilds_total", "Number of search index rebuilds")
	if len(records) > 0 {
		if err := engine.Build(ctx, records); err != nil {
			return fmt.Errorf("build search index: %w", err)
		}
		rebuilds.Inc()
	} else {
		logger.Warn("inventory empty, search disabled until first ingest")
	}

	// --- Business-document retriever ---
	retriever := docs.NewRetriever(embedder, docsDense, docs.DefaultOptions(), logger)
	if cfg.DocsDir != "" {
		chunks, err := docs.LoadDir(cfg.DocsDir, docs.LoaderOptions{})
		if err != nil {
			return fmt.Errorf("load docs: %w", err)
		}
		if err := retriever.Build(ctx, chunks); err != nil {
			return fmt.Errorf("build docs index: %w", err)
		}
	}

	// --- Fact checker ---
	checker := factcheck.NewChecker(store, nil, factcheck.DefaultCheckerOpts(), logger)

	// --- Inventory update consumer (optional) ---
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("ia-sales-agent-api"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()

		sub, err := ingest.StartConsumer(nc, ingest.Deps{
			Store: store,
			Reindex: func(ctx context.Context) error {
				records, err := store.GetAll(ctx)
				if err != nil {
					return err
				}
				if err := engine.Build(ctx, records); err != nil {
					return err
				}
				rebuilds.Inc()
				return nil
			},
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("consuming inventory updates", "subject", ingest.UpdatesSubject)
	}

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /api/search", handleSearch(engine, reg, logger))
	mux.HandleFunc("POST /api/docs/search", handleDocsSearch(retriever, reg, logger))
	mux.HandleFunc("POST /api/verify", handleVerify(checker, reg, logger))
	mux.HandleFunc("GET /api/vehicles/{id}", handleVehicle(store))
	mux.HandleFunc("GET /api/vehicles/{id}/similar", handleSimilar(engine))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("ia-sales-agent"),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Query   string               `json:"query"`
	K       int                  `json:"k,omitempty"`
	Filters domain.SearchFilters `json:"filters,omitempty"`
}

// SearchResponse is the JSON response for POST /api/search.
type SearchResponse struct {
	Results []search.ScoredCandidate `json:"results"`
}

func handleSearch(engine *search.Engine, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	searches := reg.Counter("searches_total", "Number of vehicle searches")
	latency := reg.Histogram("search_duration_seconds", "Vehicle search latency", nil)
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
			return
		}
		if req.K <= 0 {
			req.K = 5
		}

		start := time.Now()
		results, err := engine.SearchFiltered(r.Context(), req.Query, req.K, req.Filters)
		latency.Since(start)
		searches.Inc()
		if err != nil {
			if errors.Is(err, search.ErrNotReady) {
				http.Error(w, `{"error":"search index not built"}`, http.StatusServiceUnavailable)
				return
			}
			logger.Error("search failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		writeJSON(w, SearchResponse{Results: results})
	}
}

// DocsSearchRequest is the JSON body for POST /api/docs/search.
type DocsSearchRequest struct {
	Query     string  `json:"query"`
	K         int     `json:"k,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// DocsSearchResponse is the JSON response for POST /api/docs/search.
type DocsSearchResponse struct {
	Results []docs.Result `json:"results"`
}

func handleDocsSearch(retriever *docs.Retriever, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	searches := reg.Counter("doc_searches_total", "Number of business-document searches")
	return func(w http.ResponseWriter, r *http.Request) {
		var req DocsSearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Query == "" {
			http.Error(w, `{"error":"query is required"}`, http.StatusBadRequest)
			return
		}
		if req.K <= 0 {
			req.K = 4
		}

		var results []docs.Result
		var err error
		if req.Threshold > 0 {
			results, err = retriever.SearchThreshold(r.Context(), req.Query, req.K, req.Threshold)
		} else {
			results, err = retriever.Search(r.Context(), req.Query, req.K)
		}
		searches.Inc()
		if err != nil {
			if errors.Is(err, search.ErrNotReady) {
				http.Error(w, `{"error":"docs index not built"}`, http.StatusServiceUnavailable)
				return
			}
			logger.Error("docs search failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}

		writeJSON(w, DocsSearchResponse{Results: results})
	}
}

// VerifyRequest is the JSON body for POST /api/verify.
type VerifyRequest struct {
	Text string `json:"text"`
}

func handleVerify(checker *factcheck.Checker, reg *metrics.Registry, logger *slog.Logger) http.HandlerFunc {
	checks := reg.Counter("fact_checks_total", "Number of fact-check requests")
	invalid := reg.Counter("fact_checks_invalid_total", "Fact checks that found invalid claims")
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Text == "" {
			http.Error(w, `{"error":"text is required"}`, http.StatusBadRequest)
			return
		}

		report, err := checker.VerifyText(r.Context(), req.Text)
		checks.Inc()
		if err != nil {
			logger.Error("verify failed", "err", err)
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		if !report.Valid {
			invalid.Inc()
		}

		writeJSON(w, report)
	}
}

func handleVehicle(store *inventory.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"invalid stock id"}`, http.StatusBadRequest)
			return
		}
		rec, err := store.GetByStockID(r.Context(), id)
		if err != nil {
			if errors.Is(err, inventory.ErrNotFound) {
				http.Error(w, `{"error":"vehicle not found"}`, http.StatusNotFound)
				return
			}
			http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		writeJSON(w, rec)
	}
}

func handleSimilar(engine *search.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			http.Error(w, `{"error":"invalid stock id"}`, http.StatusBadRequest)
			return
		}
		results, err := engine.SimilarTo(r.Context(), id, 5)
		if err != nil {
			switch {
			case errors.Is(err, search.ErrNotReady):
				http.Error(w, `{"error":"search index not built"}`, http.StatusServiceUnavailable)
			case errors.Is(err, search.ErrUnknownStock):
				http.Error(w, `{"error":"vehicle not found"}`, http.StatusNotFound)
			default:
				http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, SearchResponse{Results: results})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
