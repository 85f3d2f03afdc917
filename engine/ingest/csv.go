package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/yokharian/ia-sales-agent/engine/domain"
	"github.com/yokharian/ia-sales-agent/pkg/normalize"
	"github.com/yokharian/ia-sales-agent/pkg/vehiclenlp"
)

// scalarColumns are the CSV headers mapped to record fields. Every other
// column is treated as a boolean feature flag.
var scalarColumns = map[string]bool{
	"stock_id": true,
	"make":     true,
	"model":    true,
	"year":     true,
	"version":  true,
	"km":       true,
	"price":    true,
}

// RowError reports a row that could not be turned into a record. Row counts
// from 1 at the first data row.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// ReadCSV parses inventory records from CSV. The header row names the
// columns; unknown columns become feature flags parsed with loose boolean
// rules. Bad rows are collected, not fatal, so one mangled row cannot block
// a whole feed.
func ReadCSV(r io.Reader) ([]domain.VehicleRecord, []RowError, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("ingest: read csv header: %w", err)
	}
	for i, h := range header {
		header[i] = normalize.Text(h)
	}

	var records []domain.VehicleRecord
	var bad []RowError
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			bad = append(bad, RowError{Row: row, Err: err})
			continue
		}
		rec, err := recordFromRow(header, fields)
		if err != nil {
			bad = append(bad, RowError{Row: row, Err: err})
			continue
		}
		records = append(records, rec)
	}
	return records, bad, nil
}

func recordFromRow(header, fields []string) (domain.VehicleRecord, error) {
	rec := domain.VehicleRecord{Features: map[string]bool{}}
	for i, h := range header {
		if i >= len(fields) {
			break
		}
		val := strings.TrimSpace(fields[i])
		if val == "" {
			continue
		}
		var err error
		switch h {
		case "stock_id":
			rec.StockID, err = normalize.Int(val)
		case "make":
			rec.Make = normalize.Text(val)
			if canon, ok := vehiclenlp.CanonicalMake(rec.Make); ok {
				rec.Make = normalize.Text(canon)
			}
		case "model":
			rec.Model = normalize.Text(val)
		case "year":
			rec.Year, err = normalize.Int(val)
		case "version":
			rec.Version = normalize.Text(val)
		case "km":
			rec.MileageKM, err = normalize.Int(val)
		case "price":
			rec.Price, err = normalize.Float(val)
		default:
			rec.Features[h] = normalize.Bool(val)
		}
		if err != nil {
			return domain.VehicleRecord{}, fmt.Errorf("column %q: %w", h, err)
		}
	}
	if err := domain.ValidateRecord(rec); err != nil {
		return domain.VehicleRecord{}, err
	}
	return rec, nil
}
