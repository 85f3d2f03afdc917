// Package domain defines core domain types, constants, and validation for the
// sales-assistant pipeline. It acts as the validation gate at pipeline entry points.
package domain

import "strings"

// VehicleRecord is one inventory item. StockID is immutable once assigned;
// absence from the store means the vehicle is not offered.
type VehicleRecord struct {
	StockID   int             `json:"stock_id"`
	Make      string          `json:"make"`
	Model     string          `json:"model"`
	Year      int             `json:"year"`
	Version   string          `json:"version,omitempty"`
	MileageKM int             `json:"mileage_km"`
	Price     float64         `json:"price"`
	Features  map[string]bool `json:"features"`
	Dims      *Dimensions     `json:"dims,omitempty"`
}

// Dimensions are optional physical measurements in meters.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// ActiveFeatures returns the names of features set to true, in no
// particular order.
func (r VehicleRecord) ActiveFeatures() []string {
	var out []string
	for name, on := range r.Features {
		if on {
			out = append(out, name)
		}
	}
	return out
}

// SearchFilters are optional hard constraints applied after relevance ranking.
// Zero values mean "no constraint".
type SearchFilters struct {
	BudgetMin        float64  `json:"budget_min,omitempty"`
	BudgetMax        float64  `json:"budget_max,omitempty"`
	Make             string   `json:"make,omitempty"`
	Model            string   `json:"model,omitempty"`
	MinYear          int      `json:"min_year,omitempty"`
	MaxYear          int      `json:"max_year,omitempty"`
	MaxMileageKM     int      `json:"max_mileage_km,omitempty"`
	RequiredFeatures []string `json:"required_features,omitempty"`
}

// Empty reports whether no constraint is set.
func (f SearchFilters) Empty() bool {
	return f.BudgetMin == 0 && f.BudgetMax == 0 && f.Make == "" && f.Model == "" &&
		f.MinYear == 0 && f.MaxYear == 0 && f.MaxMileageKM == 0 && len(f.RequiredFeatures) == 0
}

// Matches reports whether the record satisfies every set constraint.
// Make and model compare case-insensitively after whitespace trimming.
func (f SearchFilters) Matches(r VehicleRecord) bool {
	if f.BudgetMin > 0 && r.Price < f.BudgetMin {
		return false
	}
	if f.BudgetMax > 0 && r.Price > f.BudgetMax {
		return false
	}
	if f.Make != "" && !strings.EqualFold(strings.TrimSpace(f.Make), strings.TrimSpace(r.Make)) {
		return false
	}
	if f.Model != "" && !strings.EqualFold(strings.TrimSpace(f.Model), strings.TrimSpace(r.Model)) {
		return false
	}
	if f.MinYear > 0 && r.Year < f.MinYear {
		return false
	}
	if f.MaxYear > 0 && r.Year > f.MaxYear {
		return false
	}
	if f.MaxMileageKM > 0 && r.MileageKM > f.MaxMileageKM {
		return false
	}
	for _, feat := range f.RequiredFeatures {
		if !r.Features[feat] {
			return false
		}
	}
	return true
}
