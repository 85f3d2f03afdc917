package domain

import "strconv"

// ValidateRecord checks a VehicleRecord before it enters the store or an index.
func ValidateRecord(r VehicleRecord) error {
	if r.StockID <= 0 {
		return NewValidationError("stock_id", strconv.Itoa(r.StockID), ErrInvalidStockID)
	}
	if r.Make == "" {
		return NewValidationError("make", "", ErrMissingMake)
	}
	if r.Model == "" {
		return NewValidationError("model", "", ErrMissingModel)
	}
	if r.Price < 0 {
		return NewValidationError("price", strconv.FormatFloat(r.Price, 'f', -1, 64), ErrNegativePrice)
	}
	if r.MileageKM < 0 {
		return NewValidationError("mileage_km", strconv.Itoa(r.MileageKM), ErrNegativeMileage)
	}
	return nil
}
