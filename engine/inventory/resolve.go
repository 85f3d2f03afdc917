package inventory

import (
	"context"
	"fmt"

	"github.com/yokharian/ia-sales-agent/pkg/fuzzy"
)

// DefaultMatchThreshold is the minimum token-set similarity (0-100) for a
// catalog value to be accepted as the resolution of a user token.
const DefaultMatchThreshold = 80

// catalogLimit bounds the candidate list pulled for fuzzy resolution; far
// above any realistic distinct make/model count.
const catalogLimit = 1000

// ResolveMake maps a possibly-misspelled make token to the closest catalog
// make. ok is false when no catalog value reaches the threshold; an empty
// inventory never matches and never errors.
func (s *Store) ResolveMake(ctx context.Context, input string) (string, bool, error) {
	makes, err := s.DistinctMakes(ctx, catalogLimit)
	if err != nil {
		return "", false, fmt.Errorf("inventory: resolve make: %w", err)
	}
	m, ok := fuzzy.ExtractOne(input, makes, DefaultMatchThreshold)
	if !ok {
		return "", false, nil
	}
	return m.Value, true, nil
}

// ResolveModel maps a model token to the closest catalog model, optionally
// restricting candidates to the given make.
func (s *Store) ResolveModel(ctx context.Context, input, make string) (string, bool, error) {
	models, err := s.DistinctModels(ctx, make, catalogLimit)
	if err != nil {
		return "", false, fmt.Errorf("inventory: resolve model: %w", err)
	}
	m, ok := fuzzy.ExtractOne(input, models, DefaultMatchThreshold)
	if !ok {
		return "", false, nil
	}
	return m.Value, true, nil
}
