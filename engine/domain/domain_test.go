package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRecord_Valid(t *testing.T) {
	r := VehicleRecord{StockID: 10012, Make: "toyota", Model: "corolla", Year: 2020, Price: 18500, MileageKM: 25000}
	if err := ValidateRecord(r); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}

func TestValidateRecord_Invalid(t *testing.T) {
	cases := []struct {
		name string
		rec  VehicleRecord
		want error
	}{
		{"zero stock id", VehicleRecord{Make: "toyota", Model: "corolla"}, ErrInvalidStockID},
		{"missing make", VehicleRecord{StockID: 1, Model: "corolla"}, ErrMissingMake},
		{"missing model", VehicleRecord{StockID: 1, Make: "toyota"}, ErrMissingModel},
		{"negative price", VehicleRecord{StockID: 1, Make: "t", Model: "c", Price: -1}, ErrNegativePrice},
		{"negative mileage", VehicleRecord{StockID: 1, Make: "t", Model: "c", MileageKM: -5}, ErrNegativeMileage},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if err := ValidateRecord(c.rec); !errors.Is(err, c.want) {
				t.Errorf("got %v, want %v", err, c.want)
			}
		})
	}
}

func TestDocumentFromRecord_Text(t *testing.T) {
	r := VehicleRecord{
		StockID: 10012, Make: "toyota", Model: "corolla", Year: 2020,
		Version: "le", MileageKM: 25000, Price: 18500,
		Features: map[string]bool{"bluetooth": true, "sunroof": false, "car_play": true},
	}
	doc := DocumentFromRecord(r)

	want := "toyota corolla le 2020 25000km bluetooth car_play"
	if doc.Text != want {
		t.Errorf("text = %q, want %q", doc.Text, want)
	}
	if doc.StockID() != 10012 {
		t.Errorf("StockID() = %d, want 10012", doc.StockID())
	}
	if got := doc.Metadata["feature_bluetooth"]; got != true {
		t.Errorf("feature_bluetooth = %v, want true", got)
	}
	if got := doc.Metadata["feature_sunroof"]; got != false {
		t.Errorf("feature_sunroof = %v, want false", got)
	}
}

func TestDocumentFromRecord_NoVersion(t *testing.T) {
	r := VehicleRecord{StockID: 1, Make: "honda", Model: "civic", Year: 2019, MileageKM: 40000}
	doc := DocumentFromRecord(r)
	if strings.Contains(doc.Text, "  ") {
		t.Errorf("text contains double space: %q", doc.Text)
	}
	if doc.Text != "honda civic 2019 40000km" {
		t.Errorf("text = %q", doc.Text)
	}
}

func TestDocumentFromRecord_Deterministic(t *testing.T) {
	r := VehicleRecord{
		StockID: 1, Make: "a", Model: "b", Year: 2020,
		Features: map[string]bool{"z": true, "a": true, "m": true},
	}
	first := DocumentFromRecord(r).Text
	for i := 0; i < 10; i++ {
		if got := DocumentFromRecord(r).Text; got != first {
			t.Fatalf("non-deterministic text: %q vs %q", got, first)
		}
	}
}
