// Package ingest feeds the inventory store: a CSV loader for bulk files and
// a NATS consumer that applies incremental record updates and triggers a
// search reindex.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yokharian/ia-sales-agent/engine/domain"
	"github.com/yokharian/ia-sales-agent/engine/inventory"
	"github.com/yokharian/ia-sales-agent/pkg/fn"
)

const (
	// UpdatesSubject carries incremental inventory records as JSON.
	UpdatesSubject = "inventory.updates"
	// DLQSubject receives messages that kept failing.
	DLQSubject = "inventory.updates.dlq"
	// MaxRetries before a message goes to the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// Deps holds the consumer's collaborators. Reindex is called after a
// successful upsert, typically wired to a search engine rebuild from the
// store snapshot.
type Deps struct {
	Store   *inventory.Store
	Reindex func(ctx context.Context) error
	Logger  *slog.Logger
}

// Validate gates records at pipeline entry.
var Validate fn.Stage[domain.VehicleRecord, domain.VehicleRecord] = func(_ context.Context, r domain.VehicleRecord) fn.Result[domain.VehicleRecord] {
	if err := domain.ValidateRecord(r); err != nil {
		return fn.Err[domain.VehicleRecord](err)
	}
	return fn.Ok(r)
}

// NewStore creates the stage that persists a record and returns its stock id.
func NewStore(store *inventory.Store) fn.Stage[domain.VehicleRecord, int] {
	return func(ctx context.Context, r domain.VehicleRecord) fn.Result[int] {
		if err := store.Upsert(ctx, r); err != nil {
			return fn.Err[int](fmt.Errorf("store upsert: %w", err))
		}
		return fn.Ok(r.StockID)
	}
}

// LoggedTap returns a stage that logs entry and exit with duration.
func LoggedTap[T any](name string, log *slog.Logger) fn.Stage[T, T] {
	return func(_ context.Context, t T) fn.Result[T] {
		log.Info("stage.enter", "stage", name)
		start := time.Now()
		defer func() {
			log.Info("stage.exit", "stage", name, "duration", time.Since(start))
		}()
		return fn.Ok(t)
	}
}

// NewPipeline composes validate and store with tracing.
func NewPipeline(deps Deps) fn.Stage[domain.VehicleRecord, int] {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	validated := fn.Then(LoggedTap[domain.VehicleRecord]("validate", log), fn.Traced("ingest.validate", Validate))
	return fn.Then(validated, fn.Traced("ingest.store", NewStore(deps.Store)))
}

// IngestFile runs every record through the pipeline and reindexes once at
// the end. Row-level CSV errors are logged and skipped.
func IngestFile(ctx context.Context, records []domain.VehicleRecord, deps Deps) (int, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	pipeline := NewPipeline(deps)

	stored := 0
	for _, rec := range records {
		if result := pipeline(ctx, rec); result.IsErr() {
			_, err := result.Unwrap()
			log.Warn("ingest: record rejected", "stock_id", rec.StockID, "error", err)
			continue
		}
		stored++
	}
	if stored > 0 && deps.Reindex != nil {
		if err := deps.Reindex(ctx); err != nil {
			return stored, fmt.Errorf("ingest: reindex: %w", err)
		}
	}
	return stored, nil
}

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Record  domain.VehicleRecord `json:"record"`
	Error   string               `json:"error"`
	Retries int                  `json:"retries"`
}

// StartConsumer subscribes to inventory updates. Each message is one JSON
// record: validate, upsert, reindex. Failures are re-published with an
// incremented retry header and land in the DLQ after MaxRetries.
func StartConsumer(nc *nats.Conn, deps Deps) (*nats.Subscription, error) {
	pipeline := NewPipeline(deps)
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	return nc.Subscribe(UpdatesSubject, func(msg *nats.Msg) {
		var rec domain.VehicleRecord
		if err := json.Unmarshal(msg.Data, &rec); err != nil {
			log.Error("ingest: unmarshal failed", "error", err)
			return
		}

		ctx := context.Background()

		retries := 0
		if msg.Header != nil {
			if v := msg.Header.Get(retryHeader); v != "" {
				fmt.Sscanf(v, "%d", &retries)
			}
		}

		result := pipeline(ctx, rec)
		if result.IsErr() {
			_, pipeErr := result.Unwrap()
			retries++
			log.Error("ingest: update failed",
				"error", pipeErr,
				"stock_id", rec.StockID,
				"retry", retries,
			)

			if retries >= MaxRetries {
				dlq := dlqMessage{Record: rec, Error: pipeErr.Error(), Retries: retries}
				data, _ := json.Marshal(dlq)
				if err := nc.Publish(DLQSubject, data); err != nil {
					log.Error("ingest: DLQ publish failed", "error", err)
				}
			} else {
				retryMsg := nats.NewMsg(UpdatesSubject)
				retryMsg.Data = msg.Data
				retryMsg.Header = nats.Header{}
				retryMsg.Header.Set(retryHeader, fmt.Sprintf("%d", retries))
				if err := nc.PublishMsg(retryMsg); err != nil {
					log.Error("ingest: retry publish failed", "error", err)
				}
			}
			return
		}

		stockID, _ := result.Unwrap()
		if deps.Reindex != nil {
			if err := deps.Reindex(ctx); err != nil {
				log.Error("ingest: reindex failed", "stock_id", stockID, "error", err)
				return
			}
		}
		log.Info("ingest: update applied", "stock_id", stockID)
	})
}
