// Package fuzzy scores token-set string similarity on a 0-100 scale for
// typo-tolerant matching of user input against catalog values. The metric is
// order-independent: "corolla toyota" and "Toyota Corolla" score 100.
// Scoring is delegated to go-fuzzywuzzy; this package adds whitespace
// normalization and the extraction helpers the engines need.
package fuzzy

import (
	"sort"
	"strings"

	fuzzywuzzy "github.com/paul-mannino/go-fuzzywuzzy"
)

// Ratio returns an edit-distance similarity score in [0,100].
func Ratio(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)
	if a == b {
		return 100
	}
	return float64(fuzzywuzzy.Ratio(a, b))
}

// TokenSetRatio compares the unique token sets of both strings, scoring the
// shared-token core against each side's remainder and taking the maximum.
// Extra or reordered tokens on one side are mostly forgiven.
func TokenSetRatio(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)
	if a == b {
		return 100
	}
	return float64(fuzzywuzzy.TokenSetRatio(a, b))
}

// Match is a scored candidate returned by Extract.
type Match struct {
	Value string
	Score float64
	Index int
}

// Extract scores the query against every candidate with TokenSetRatio and
// returns the top limit matches in descending score order. Ties keep
// candidate iteration order. A limit <= 0 returns all candidates scored.
func Extract(query string, candidates []string, limit int) []Match {
	matches := make([]Match, len(candidates))
	for i, c := range candidates {
		matches[i] = Match{Value: c, Score: TokenSetRatio(query, c), Index: i}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// ExtractOne returns the single best candidate whose score reaches the
// threshold. ok is false when no candidate qualifies, including for an empty
// candidate list.
func ExtractOne(query string, candidates []string, threshold float64) (Match, bool) {
	best := Match{Index: -1, Score: -1}
	for i, c := range candidates {
		if s := TokenSetRatio(query, c); s > best.Score {
			best = Match{Value: c, Score: s, Index: i}
		}
	}
	if best.Index < 0 || best.Score < threshold {
		return Match{Index: -1}, false
	}
	return best, true
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
