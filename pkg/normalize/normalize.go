// Package normalize canonicalizes text and parses loosely-formatted booleans
// and numbers coming from heterogeneous inventory feeds.
package normalize

import (
	"strconv"
	"strings"
)

// truthy is the set of accepted affirmative values, lowercased.
// Inventory feeds mix Spanish and English ("sí", "yes", "1", "v").
var truthy = map[string]bool{
	"sí": true, "si": true, "yes": true, "true": true,
	"1": true, "verdadero": true, "v": true,
}

// Text lowercases, trims, and collapses internal whitespace runs to single spaces.
func Text(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Bool parses loose boolean representations. Unknown values and empty
// strings are false, never an error.
func Bool(v string) bool {
	return truthy[strings.ToLower(strings.TrimSpace(v))]
}

// Int parses an integer, tolerating thousands separators and surrounding
// whitespace ("25,000" -> 25000).
func Int(s string) (int, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	return strconv.Atoi(cleaned)
}

// Float parses a decimal, tolerating thousands separators and a leading
// currency symbol ("$18,500.50" -> 18500.5).
func Float(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	return strconv.ParseFloat(cleaned, 64)
}
