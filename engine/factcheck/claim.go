// Package factcheck extracts verifiable claims from generated text and
// validates them against the inventory store. It is the guardrail that keeps
// hallucinated vehicle facts out of answers shown to customers.
package factcheck

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind discriminates the claim variants.
type Kind int

const (
	KindStockID Kind = iota
	KindPrice
	KindVehicleMention
	KindMileage
)

func (k Kind) String() string {
	switch k {
	case KindStockID:
		return "stock_id"
	case KindPrice:
		return "price"
	case KindVehicleMention:
		return "vehicle_mention"
	case KindMileage:
		return "mileage"
	default:
		return "unknown"
	}
}

// Claim is one atomic factual assertion found in text. Kind selects which
// value fields are meaningful. Claims are immutable once extracted.
type Claim struct {
	Kind Kind `json:"kind"`

	StockID   int     `json:"stock_id,omitempty"`
	Price     float64 `json:"price,omitempty"`
	Make      string  `json:"make,omitempty"`
	Model     string  `json:"model,omitempty"`
	Year      int     `json:"year,omitempty"`
	MileageKM int     `json:"mileage_km,omitempty"`

	OriginalText string `json:"original_text"`
	Position     int    `json:"position"`
}

// ClaimExtractor turns free text into claims. Implementations must be
// deterministic: the same text always yields the same claims in the same
// order.
type ClaimExtractor interface {
	Extract(text string) []Claim
}

// RegexExtractor is the baseline pattern-rule extractor. Claims come back
// ordered by kind, then by text position.
type RegexExtractor struct{}

var (
	stockRe = regexp.MustCompile(`(?i)stock[\s#]*(\d{5,6})`)

	priceRes = []*regexp.Regexp{
		regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)`),
		regexp.MustCompile(`(?i)([\d,]+(?:\.\d+)?)\s*dollars?\b`),
		regexp.MustCompile(`(?i)(?:price|cost)[:\s]+\$?([\d,]+(?:\.\d+)?)`),
	}

	vehicleRe = regexp.MustCompile(`\b([A-Za-z]\w*)[ \t]+([A-Za-z]\w*)[ \t]+((?:19|20)\d{2})\b`)

	mileageRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)([\d,]+)\s*km\b`),
		regexp.MustCompile(`(?i)([\d,]+)\s*kilometers?\b`),
		regexp.MustCompile(`(?i)mileage[:\s]+([\d,]+)`),
	}
)

// priceFloor discards small numbers that are more likely years or counts
// than prices.
const priceFloor = 100

// Extract runs every pattern family over the text. The families are
// independent, so one span can yield claims of several kinds.
func (RegexExtractor) Extract(text string) []Claim {
	var claims []Claim

	for _, m := range stockRe.FindAllStringSubmatchIndex(text, -1) {
		id, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		claims = append(claims, Claim{
			Kind:         KindStockID,
			StockID:      id,
			OriginalText: text[m[0]:m[1]],
			Position:     m[0],
		})
	}

	seenPrices := map[float64]bool{}
	for _, re := range priceRes {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			v, err := strconv.ParseFloat(stripSeparators(text[m[2]:m[3]]), 64)
			if err != nil || v < priceFloor || seenPrices[v] {
				continue
			}
			seenPrices[v] = true
			claims = append(claims, Claim{
				Kind:         KindPrice,
				Price:        v,
				OriginalText: text[m[0]:m[1]],
				Position:     m[0],
			})
		}
	}

	for _, m := range vehicleRe.FindAllStringSubmatchIndex(text, -1) {
		year, err := strconv.Atoi(text[m[6]:m[7]])
		if err != nil {
			continue
		}
		claims = append(claims, Claim{
			Kind:         KindVehicleMention,
			Make:         strings.ToLower(text[m[2]:m[3]]),
			Model:        strings.ToLower(text[m[4]:m[5]]),
			Year:         year,
			OriginalText: text[m[0]:m[1]],
			Position:     m[0],
		})
	}

	seenMileage := map[int]bool{}
	for _, re := range mileageRes {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			v, err := strconv.Atoi(stripSeparators(text[m[2]:m[3]]))
			if err != nil || seenMileage[v] {
				continue
			}
			seenMileage[v] = true
			claims = append(claims, Claim{
				Kind:         KindMileage,
				MileageKM:    v,
				OriginalText: text[m[0]:m[1]],
				Position:     m[0],
			})
		}
	}

	sort.SliceStable(claims, func(i, j int) bool {
		if claims[i].Kind != claims[j].Kind {
			return claims[i].Kind < claims[j].Kind
		}
		return claims[i].Position < claims[j].Position
	})
	return claims
}

func stripSeparators(s string) string {
	return strings.ReplaceAll(s, ",", "")
}
