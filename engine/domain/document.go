package domain

import (
	"fmt"
	"sort"
	"strings"
)

// FeatureKeyPrefix namespaces feature metadata entries so feature names can
// never collide with scalar field keys.
const FeatureKeyPrefix = "feature_"

// SearchableDocument is the unit indexed by every retriever: a flattened
// vehicle description or a chunk of business documentation. Documents are
// regenerated in full on every index rebuild and never mutated individually.
type SearchableDocument struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// StockID returns the stock_id metadata entry, or 0 for non-vehicle documents.
func (d SearchableDocument) StockID() int {
	if v, ok := d.Metadata["stock_id"].(int); ok {
		return v
	}
	return 0
}

// DocumentFromRecord synthesizes the one SearchableDocument for a vehicle.
// The text concatenates make, model, version, year, "<mileage>km", and the
// names of active features; active features are sorted so the text is
// deterministic for a given record.
func DocumentFromRecord(r VehicleRecord) SearchableDocument {
	parts := []string{r.Make, r.Model}
	if r.Version != "" {
		parts = append(parts, r.Version)
	}
	parts = append(parts, fmt.Sprintf("%d", r.Year), fmt.Sprintf("%dkm", r.MileageKM))

	active := r.ActiveFeatures()
	sort.Strings(active)
	parts = append(parts, active...)

	meta := map[string]any{
		"stock_id": r.StockID,
		"make":     r.Make,
		"model":    r.Model,
		"year":     r.Year,
		"price":    r.Price,
		"km":       r.MileageKM,
		"version":  r.Version,
	}
	for name, on := range r.Features {
		meta[FeatureKeyPrefix+name] = on
	}

	return SearchableDocument{
		Text:     strings.TrimSpace(strings.Join(parts, " ")),
		Metadata: meta,
	}
}
