package semantic

import "testing"

func TestPointIDDeterministic(t *testing.T) {
	a := pointID("vehicles", 0)
	b := pointID("vehicles", 0)
	if a != b {
		t.Fatalf("same input produced different ids: %s vs %s", a, b)
	}

	if pointID("vehicles", 0) == pointID("vehicles", 1) {
		t.Fatal("different positions produced the same id")
	}
	if pointID("vehicles", 0) == pointID("vehicles-docs", 0) {
		t.Fatal("different collections produced the same id")
	}
}
