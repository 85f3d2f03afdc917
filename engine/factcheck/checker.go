package factcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/yokharian/ia-sales-agent/engine/domain"
	"github.com/yokharian/ia-sales-agent/engine/inventory"
)

// Inventory is the slice of the store the checker needs.
type Inventory interface {
	GetByStockID(ctx context.Context, stockID int) (*domain.VehicleRecord, error)
	PriceBetween(ctx context.Context, lo, hi float64) ([]domain.VehicleRecord, error)
	MileageBetween(ctx context.Context, lo, hi int) ([]domain.VehicleRecord, error)
	FindByMention(ctx context.Context, make, model string, year, limit int) ([]domain.VehicleRecord, error)
}

// ContextResolver pairs a numeric claim with the specific record it refers
// to, typically by correlating a stock id mentioned near the claim. A nil
// resolver or a false return sends the claim down the range-fallback path.
type ContextResolver func(ctx context.Context, claim Claim) (*domain.VehicleRecord, bool, error)

// CheckerOpts holds the tolerance knobs. All comparisons are relative, so a
// fixed absolute error weighs the same on a cheap car and an expensive one.
type CheckerOpts struct {
	// PriceTolerance is the relative tolerance when a specific record
	// context exists.
	PriceTolerance float64
	// MileageTolerance is the exact-context relative tolerance for mileage.
	MileageTolerance float64
	// RangeTolerance is the context-free fallback band around the claimed
	// value.
	RangeTolerance float64
	// Resolver establishes record context for price and mileage claims.
	// Cross-claim correlation is an extension point; with no resolver every
	// numeric claim takes the range fallback.
	Resolver ContextResolver
}

// DefaultCheckerOpts returns the documented defaults.
func DefaultCheckerOpts() CheckerOpts {
	return CheckerOpts{
		PriceTolerance:   0.001,
		MileageTolerance: 0.01,
		RangeTolerance:   0.10,
	}
}

func (o CheckerOpts) withDefaults() CheckerOpts {
	d := DefaultCheckerOpts()
	if o.PriceTolerance <= 0 {
		o.PriceTolerance = d.PriceTolerance
	}
	if o.MileageTolerance <= 0 {
		o.MileageTolerance = d.MileageTolerance
	}
	if o.RangeTolerance <= 0 {
		o.RangeTolerance = d.RangeTolerance
	}
	return o
}

// VerificationResult is the outcome of checking one claim.
type VerificationResult struct {
	Claim   Claim  `json:"claim"`
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Warning string `json:"warning,omitempty"`

	// Actual is the record snapshot when a specific record backed the check.
	Actual *domain.VehicleRecord `json:"actual,omitempty"`
	// Matches holds up to 3 records for vehicle-mention claims.
	Matches []domain.VehicleRecord `json:"matches,omitempty"`
	// DiffPct is the relative difference for tolerance comparisons, in
	// percent.
	DiffPct float64 `json:"diff_pct,omitempty"`
	// SimilarCount is how many records fell in the fallback range.
	SimilarCount int `json:"similar_count,omitempty"`
}

// Report aggregates the per-claim results for one text.
type Report struct {
	Valid         bool                 `json:"valid"`
	ClaimsFound   int                  `json:"claims_found"`
	ValidClaims   int                  `json:"valid_claims"`
	InvalidClaims int                  `json:"invalid_claims"`
	Results       []VerificationResult `json:"results"`
	Summary       string               `json:"summary"`
}

// Checker verifies claims against the inventory. Each call is request
// scoped; the checker itself holds no mutable state.
type Checker struct {
	inv       Inventory
	extractor ClaimExtractor
	opts      CheckerOpts
	log       *slog.Logger
}

// NewChecker creates a checker. A nil extractor defaults to RegexExtractor.
func NewChecker(inv Inventory, extractor ClaimExtractor, opts CheckerOpts, logger *slog.Logger) *Checker {
	if extractor == nil {
		extractor = RegexExtractor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		inv:       inv,
		extractor: extractor,
		opts:      opts.withDefaults(),
		log:       logger.With("component", "factcheck"),
	}
}

// VerifyText extracts all claims and verifies each independently. A text
// with no claims is trivially valid; the summary says so explicitly, which
// is not the same as "verified and accurate".
func (c *Checker) VerifyText(ctx context.Context, text string) (*Report, error) {
	claims := c.extractor.Extract(text)
	if len(claims) == 0 {
		return &Report{
			Valid:   true,
			Results: []VerificationResult{},
			Summary: "No verifiable claims found in text",
		}, nil
	}

	results := make([]VerificationResult, 0, len(claims))
	valid, invalid := 0, 0
	for _, claim := range claims {
		res, err := c.Verify(ctx, claim)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
		if res.Valid {
			valid++
		} else {
			invalid++
		}
	}

	report := &Report{
		Valid:         invalid == 0,
		ClaimsFound:   len(claims),
		ValidClaims:   valid,
		InvalidClaims: invalid,
		Results:       results,
		Summary:       fmt.Sprintf("Found %d claims: %d valid, %d invalid", len(claims), valid, invalid),
	}
	c.log.Info("text verified", "claims", len(claims), "invalid", invalid)
	return report, nil
}

// Verify checks a single claim against the inventory.
func (c *Checker) Verify(ctx context.Context, claim Claim) (VerificationResult, error) {
	switch claim.Kind {
	case KindStockID:
		return c.verifyStockID(ctx, claim)
	case KindPrice:
		return c.verifyPrice(ctx, claim)
	case KindVehicleMention:
		return c.verifyVehicleMention(ctx, claim)
	case KindMileage:
		return c.verifyMileage(ctx, claim)
	default:
		return VerificationResult{
			Claim:   claim,
			Valid:   true,
			Warning: fmt.Sprintf("unknown claim kind %d", claim.Kind),
		}, nil
	}
}

func (c *Checker) verifyStockID(ctx context.Context, claim Claim) (VerificationResult, error) {
	rec, err := c.inv.GetByStockID(ctx, claim.StockID)
	if errors.Is(err, inventory.ErrNotFound) {
		return VerificationResult{
			Claim: claim,
			Error: fmt.Sprintf("stock ID %d not found", claim.StockID),
		}, nil
	}
	if err != nil {
		return VerificationResult{}, fmt.Errorf("factcheck: stock lookup: %w", err)
	}
	return VerificationResult{Claim: claim, Valid: true, Actual: rec}, nil
}

func (c *Checker) verifyPrice(ctx context.Context, claim Claim) (VerificationResult, error) {
	if rec, ok, err := c.contextRecord(ctx, claim); err != nil {
		return VerificationResult{}, err
	} else if ok {
		diff := relDiff(claim.Price, rec.Price)
		return VerificationResult{
			Claim:   claim,
			Valid:   diff <= c.opts.PriceTolerance,
			Actual:  rec,
			DiffPct: diff * 100,
		}, nil
	}

	band := c.opts.RangeTolerance
	similar, err := c.inv.PriceBetween(ctx, claim.Price*(1-band), claim.Price*(1+band))
	if err != nil {
		return VerificationResult{}, fmt.Errorf("factcheck: price range scan: %w", err)
	}
	if len(similar) == 0 {
		return VerificationResult{
			Claim: claim,
			Error: fmt.Sprintf("price %.2f matches no vehicle in inventory", claim.Price),
		}, nil
	}
	return VerificationResult{
		Claim:        claim,
		Valid:        true,
		Warning:      fmt.Sprintf("price %.2f is in a plausible range but no specific vehicle context found", claim.Price),
		SimilarCount: len(similar),
	}, nil
}

func (c *Checker) verifyVehicleMention(ctx context.Context, claim Claim) (VerificationResult, error) {
	matches, err := c.inv.FindByMention(ctx, claim.Make, claim.Model, claim.Year, 3)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("factcheck: vehicle mention lookup: %w", err)
	}
	if len(matches) == 0 {
		return VerificationResult{
			Claim: claim,
			Error: fmt.Sprintf("no vehicle matches %s %s %d", claim.Make, claim.Model, claim.Year),
		}, nil
	}
	return VerificationResult{Claim: claim, Valid: true, Matches: matches}, nil
}

func (c *Checker) verifyMileage(ctx context.Context, claim Claim) (VerificationResult, error) {
	claimed := float64(claim.MileageKM)
	if rec, ok, err := c.contextRecord(ctx, claim); err != nil {
		return VerificationResult{}, err
	} else if ok {
		diff := relDiff(claimed, float64(rec.MileageKM))
		return VerificationResult{
			Claim:   claim,
			Valid:   diff <= c.opts.MileageTolerance,
			Actual:  rec,
			DiffPct: diff * 100,
		}, nil
	}

	band := c.opts.RangeTolerance
	lo := int(math.Floor(claimed * (1 - band)))
	hi := int(math.Ceil(claimed * (1 + band)))
	similar, err := c.inv.MileageBetween(ctx, lo, hi)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("factcheck: mileage range scan: %w", err)
	}
	if len(similar) == 0 {
		return VerificationResult{
			Claim: claim,
			Error: fmt.Sprintf("mileage %d km matches no vehicle in inventory", claim.MileageKM),
		}, nil
	}
	return VerificationResult{
		Claim:        claim,
		Valid:        true,
		Warning:      fmt.Sprintf("mileage %d km is in a plausible range but no specific vehicle context found", claim.MileageKM),
		SimilarCount: len(similar),
	}, nil
}

func (c *Checker) contextRecord(ctx context.Context, claim Claim) (*domain.VehicleRecord, bool, error) {
	if c.opts.Resolver == nil {
		return nil, false, nil
	}
	return c.opts.Resolver(ctx, claim)
}

// relDiff is the relative difference against the actual value. An actual of
// zero only matches a claimed zero.
func relDiff(claimed, actual float64) float64 {
	if actual == 0 {
		if claimed == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(actual-claimed) / math.Abs(actual)
}
