// Package inventory provides the SQLite-backed vehicle inventory store: the
// system of record that search indices are built from and fact-check claims
// are verified against.
package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/yokharian/ia-sales-agent/engine/domain"
)

// ErrNotFound is returned by point lookups when no record matches.
var ErrNotFound = errors.New("inventory: vehicle not found")

const schema = `
CREATE TABLE IF NOT EXISTS vehicles (
	stock_id   INTEGER PRIMARY KEY,
	make       TEXT NOT NULL,
	model      TEXT NOT NULL,
	year       INTEGER NOT NULL,
	version    TEXT NOT NULL DEFAULT '',
	mileage_km INTEGER NOT NULL CHECK (mileage_km >= 0),
	price      REAL NOT NULL CHECK (price >= 0),
	features   TEXT NOT NULL DEFAULT '{}',
	dims       TEXT
);
CREATE INDEX IF NOT EXISTS idx_vehicles_make_model ON vehicles (make, model);
CREATE INDEX IF NOT EXISTS idx_vehicles_price ON vehicles (price);
`

// Store wraps the inventory database. Reads are scoped per call; there is no
// cross-call transactional state.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the inventory database at dsn and bootstraps the
// schema. Use ":memory:" for tests.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("inventory: open %s: %w", dsn, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("inventory: bootstrap schema: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or replaces a record keyed on stock_id. The record is
// validated first; invalid records never reach the database.
func (s *Store) Upsert(ctx context.Context, r domain.VehicleRecord) error {
	if err := domain.ValidateRecord(r); err != nil {
		return fmt.Errorf("inventory: upsert: %w", err)
	}
	features, err := json.Marshal(nonNilFeatures(r.Features))
	if err != nil {
		return fmt.Errorf("inventory: marshal features: %w", err)
	}
	var dims any
	if r.Dims != nil {
		b, err := json.Marshal(r.Dims)
		if err != nil {
			return fmt.Errorf("inventory: marshal dims: %w", err)
		}
		dims = string(b)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vehicles (stock_id, make, model, year, version, mileage_km, price, features, dims)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stock_id) DO UPDATE SET
			make=excluded.make, model=excluded.model, year=excluded.year,
			version=excluded.version, mileage_km=excluded.mileage_km,
			price=excluded.price, features=excluded.features, dims=excluded.dims`,
		r.StockID, r.Make, r.Model, r.Year, r.Version, r.MileageKM, r.Price, string(features), dims,
	)
	if err != nil {
		return fmt.Errorf("inventory: upsert stock %d: %w", r.StockID, err)
	}
	return nil
}

// UpsertBatch upserts records one by one, stopping at the first failure.
func (s *Store) UpsertBatch(ctx context.Context, records []domain.VehicleRecord) error {
	for _, r := range records {
		if err := s.Upsert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// GetAll returns every record ordered by stock_id. This is the catalog
// iteration order used for deterministic tie-breaking downstream.
func (s *Store) GetAll(ctx context.Context) ([]domain.VehicleRecord, error) {
	return s.query(ctx, `SELECT `+columns+` FROM vehicles ORDER BY stock_id`)
}

// GetByStockID looks a record up by primary key. Returns ErrNotFound when
// the stock id is not offered.
func (s *Store) GetByStockID(ctx context.Context, stockID int) (*domain.VehicleRecord, error) {
	rows, err := s.query(ctx, `SELECT `+columns+` FROM vehicles WHERE stock_id = ?`, stockID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: stock %d", ErrNotFound, stockID)
	}
	return &rows[0], nil
}

// DistinctMakes returns up to limit distinct makes in alphabetical order.
// An empty inventory yields an empty slice.
func (s *Store) DistinctMakes(ctx context.Context, limit int) ([]string, error) {
	return s.distinct(ctx, `SELECT DISTINCT make FROM vehicles ORDER BY make LIMIT ?`, limit)
}

// DistinctModels returns up to limit distinct models, optionally scoped to a
// make (case-insensitive).
func (s *Store) DistinctModels(ctx context.Context, make string, limit int) ([]string, error) {
	if make == "" {
		return s.distinct(ctx, `SELECT DISTINCT model FROM vehicles ORDER BY model LIMIT ?`, limit)
	}
	return s.distinct(ctx,
		`SELECT DISTINCT model FROM vehicles WHERE make = ? COLLATE NOCASE ORDER BY model LIMIT ?`,
		make, limit)
}

// Search applies equality/range predicates. Feature constraints are applied
// in Go over the decoded feature map since features live in a JSON column.
func (s *Store) Search(ctx context.Context, f domain.SearchFilters) ([]domain.VehicleRecord, error) {
	q := `SELECT ` + columns + ` FROM vehicles WHERE 1=1`
	var args []any
	if f.Make != "" {
		q += ` AND make = ? COLLATE NOCASE`
		args = append(args, f.Make)
	}
	if f.Model != "" {
		q += ` AND model = ? COLLATE NOCASE`
		args = append(args, f.Model)
	}
	if f.MinYear > 0 {
		q += ` AND year >= ?`
		args = append(args, f.MinYear)
	}
	if f.MaxYear > 0 {
		q += ` AND year <= ?`
		args = append(args, f.MaxYear)
	}
	if f.BudgetMin > 0 {
		q += ` AND price >= ?`
		args = append(args, f.BudgetMin)
	}
	if f.BudgetMax > 0 {
		q += ` AND price <= ?`
		args = append(args, f.BudgetMax)
	}
	if f.MaxMileageKM > 0 {
		q += ` AND mileage_km <= ?`
		args = append(args, f.MaxMileageKM)
	}
	q += ` ORDER BY stock_id`

	records, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if len(f.RequiredFeatures) == 0 {
		return records, nil
	}

	var out []domain.VehicleRecord
	for _, r := range records {
		if hasAllFeatures(r, f.RequiredFeatures) {
			out = append(out, r)
		}
	}
	return out, nil
}

// PriceBetween returns records whose price lies in [lo, hi].
func (s *Store) PriceBetween(ctx context.Context, lo, hi float64) ([]domain.VehicleRecord, error) {
	return s.query(ctx, `SELECT `+columns+` FROM vehicles WHERE price BETWEEN ? AND ? ORDER BY stock_id`, lo, hi)
}

// MileageBetween returns records whose mileage lies in [lo, hi].
func (s *Store) MileageBetween(ctx context.Context, lo, hi int) ([]domain.VehicleRecord, error) {
	return s.query(ctx, `SELECT `+columns+` FROM vehicles WHERE mileage_km BETWEEN ? AND ? ORDER BY stock_id`, lo, hi)
}

// FindByMention returns up to limit records whose make and model contain the
// given fragments (case-insensitive) with an exact year match.
func (s *Store) FindByMention(ctx context.Context, make, model string, year, limit int) ([]domain.VehicleRecord, error) {
	return s.query(ctx, `
		SELECT `+columns+` FROM vehicles
		WHERE make LIKE '%' || ? || '%' COLLATE NOCASE
		  AND model LIKE '%' || ? || '%' COLLATE NOCASE
		  AND year = ?
		ORDER BY stock_id LIMIT ?`,
		make, model, year, limit)
}

// Count returns the number of records in the store.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vehicles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("inventory: count: %w", err)
	}
	return n, nil
}

const columns = `stock_id, make, model, year, version, mileage_km, price, features, dims`

func (s *Store) query(ctx context.Context, q string, args ...any) ([]domain.VehicleRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: query: %w", err)
	}
	defer rows.Close()

	var out []domain.VehicleRecord
	for rows.Next() {
		var r domain.VehicleRecord
		var features string
		var dims sql.NullString
		if err := rows.Scan(&r.StockID, &r.Make, &r.Model, &r.Year, &r.Version,
			&r.MileageKM, &r.Price, &features, &dims); err != nil {
			return nil, fmt.Errorf("inventory: scan: %w", err)
		}
		if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
			return nil, fmt.Errorf("inventory: decode features for stock %d: %w", r.StockID, err)
		}
		if r.Features == nil {
			r.Features = map[string]bool{}
		}
		if dims.Valid && dims.String != "" {
			var d domain.Dimensions
			if err := json.Unmarshal([]byte(dims.String), &d); err != nil {
				return nil, fmt.Errorf("inventory: decode dims for stock %d: %w", r.StockID, err)
			}
			r.Dims = &d
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) distinct(ctx context.Context, q string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("inventory: distinct: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("inventory: scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func nonNilFeatures(f map[string]bool) map[string]bool {
	if f == nil {
		return map[string]bool{}
	}
	return f
}

func hasAllFeatures(r domain.VehicleRecord, required []string) bool {
	for _, name := range required {
		if !r.Features[name] {
			return false
		}
	}
	return true
}
