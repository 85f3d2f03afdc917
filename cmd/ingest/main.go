// Command ingest loads vehicle inventory from a CSV export into the SQLite
// store, either directly or by publishing rows to NATS, and can run as a
// long-lived consumer applying inventory updates as they arrive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yokharian/ia-sales-agent/engine/ingest"
	"github.com/yokharian/ia-sales-agent/engine/inventory"
	"github.com/yokharian/ia-sales-agent/pkg/metrics"
	"github.com/yokharian/ia-sales-agent/pkg/natsutil"
)

var met = metrics.New()

var (
	mRowsRead      = met.Counter("ingest_rows_total", "CSV rows parsed")
	mRowsRejected  = met.Counter("ingest_rows_rejected_total", "CSV rows rejected by validation")
	mRowsStored    = met.Counter("ingest_rows_stored_total", "Records upserted into the store")
	mRowsPublished = met.Counter("ingest_rows_published_total", "Records published to NATS")
	mIngestDur     = met.Histogram("ingest_duration_seconds", "End-to-end CSV ingest time", nil)
)

func main() {
	var (
		csvPath     = flag.String("csv", "", "CSV inventory export to load (one-shot)")
		dbPath      = flag.String("db", "inventory.db", "SQLite database path")
		natsURL     = flag.String("nats", "", "NATS server URL (enables publish/consume)")
		publish     = flag.Bool("publish", false, "publish CSV rows to NATS instead of storing directly")
		consume     = flag.Bool("consume", false, "run as inventory-updates consumer")
		metricsPort = flag.Int("metrics-port", 0, "serve /metrics on this port (0 disables)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*csvPath, *dbPath, *natsURL, *publish, *consume, *metricsPort, logger); err != nil {
		logger.Error("ingest failed", "err", err)
		os.Exit(1)
	}
}

func run(csvPath, dbPath, natsURL string, publish, consume bool, metricsPort int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if csvPath == "" && !consume {
		return fmt.Errorf("nothing to do: pass -csv or -consume")
	}
	if (publish || consume) && natsURL == "" {
		return fmt.Errorf("-publish and -consume require -nats")
	}

	if metricsPort > 0 {
		met.ServeAsync(metricsPort)
	}

	var nc *nats.Conn
	if natsURL != "" {
		var err error
		nc, err = nats.Connect(natsURL, nats.Name("ia-sales-agent-ingest"))
		if err != nil {
			return fmt.Errorf("nats connect: %w", err)
		}
		defer nc.Drain()
	}

	store, err := inventory.Open(dbPath, logger)
	if err != nil {
		return fmt.Errorf("open inventory: %w", err)
	}
	defer store.Close()

	deps := ingest.Deps{
		Store: store,
		Reindex: func(ctx context.Context) error {
			// The API server rebuilds its index on startup and on update
			// notifications; the CLI only maintains the store.
			return nil
		},
		Logger: logger,
	}

	if csvPath != "" {
		if err := loadCSV(ctx, csvPath, nc, publish, deps, logger); err != nil {
			return err
		}
	}

	if consume {
		sub, err := ingest.StartConsumer(nc, deps)
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer sub.Unsubscribe()
		logger.Info("consuming inventory updates", "subject", ingest.UpdatesSubject)
		<-ctx.Done()
		logger.Info("shutdown signal received")
	}
	return nil
}

func loadCSV(ctx context.Context, path string, nc *nats.Conn, publish bool, deps ingest.Deps, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	start := time.Now()
	records, rowErrs, err := ingest.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}
	mRowsRead.Add(int64(len(records) + len(rowErrs)))
	mRowsRejected.Add(int64(len(rowErrs)))
	for _, re := range rowErrs {
		logger.Warn("csv row rejected", "row", re.Row, "err", re.Err)
	}

	if publish {
		for _, rec := range records {
			if err := natsutil.Publish(ctx, nc, ingest.UpdatesSubject, rec); err != nil {
				return fmt.Errorf("publish stock %d: %w", rec.StockID, err)
			}
			mRowsPublished.Inc()
		}
		logger.Info("csv published", "records", len(records), "rejected", len(rowErrs))
		mIngestDur.Since(start)
		return nil
	}

	stored, err := ingest.IngestFile(ctx, records, deps)
	if err != nil {
		return fmt.Errorf("ingest csv: %w", err)
	}
	mRowsStored.Add(int64(stored))
	mIngestDur.Since(start)
	logger.Info("csv ingested", "stored", stored, "rejected", len(rowErrs), "elapsed", time.Since(start))
	return nil
}
