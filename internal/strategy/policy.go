package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"RiseScreener/internal/calculator"
)

// MaxSupportedBucket is the deepest day-of-high bucket (5 trading days ago).
const MaxSupportedBucket = 5

// AnchorScope selects which bars a bucket's anchors are searched over.
type AnchorScope string

const (
	// ScopeWindow searches the whole lookback window for every bucket.
	ScopeWindow AnchorScope = "window"
	// ScopeAsOf searches only bars dated on or before the bucket's date,
	// reproducing what the screen would have reported on that day.
	ScopeAsOf AnchorScope = "as_of"
)

// ParseAnchorScope maps a config name to an AnchorScope.
func ParseAnchorScope(name string) (AnchorScope, error) {
	switch AnchorScope(name) {
	case "", ScopeWindow:
		return ScopeWindow, nil
	case ScopeAsOf:
		return ScopeAsOf, nil
	default:
		return "", fmt.Errorf("%w: unknown anchor scope %q", ErrConfiguration, name)
	}
}

// Policy holds the screening parameters. The zero value is not usable; start
// from DefaultPolicy.
type Policy struct {
	LookbackDays      int
	RatioMin          decimal.Decimal
	RatioMax          decimal.Decimal
	MaxBucket         int
	SupersessionCheck bool
	AnchorScope       AnchorScope
	TieBreak          calculator.TieBreak
}

// DefaultPolicy returns the 14-day, 1.3x-2.0x, six-bucket policy.
func DefaultPolicy() Policy {
	return Policy{
		LookbackDays:      14,
		RatioMin:          decimal.RequireFromString("1.3"),
		RatioMax:          decimal.RequireFromString("2.0"),
		MaxBucket:         MaxSupportedBucket,
		SupersessionCheck: true,
		AnchorScope:       ScopeWindow,
		TieBreak:          calculator.EarliestDate,
	}
}

// Validate rejects policies that cannot produce a meaningful screen.
func (p Policy) Validate() error {
	if p.LookbackDays <= 0 {
		return fmt.Errorf("%w: lookback days must be positive, got %d", ErrConfiguration, p.LookbackDays)
	}
	if !p.RatioMin.IsPositive() {
		return fmt.Errorf("%w: ratio min must be positive, got %s", ErrConfiguration, p.RatioMin)
	}
	if p.RatioMin.GreaterThan(p.RatioMax) {
		return fmt.Errorf("%w: ratio bounds inverted [%s, %s]", ErrConfiguration, p.RatioMin, p.RatioMax)
	}
	if p.MaxBucket < 0 || p.MaxBucket > MaxSupportedBucket {
		return fmt.Errorf("%w: max bucket must be within 0..%d, got %d", ErrConfiguration, MaxSupportedBucket, p.MaxBucket)
	}
	switch p.AnchorScope {
	case ScopeWindow, ScopeAsOf:
	default:
		return fmt.Errorf("%w: unknown anchor scope %q", ErrConfiguration, p.AnchorScope)
	}
	return nil
}

// InRange reports whether ratio lies within the inclusive bounds.
func (p Policy) InRange(ratio decimal.Decimal) bool {
	return ratio.GreaterThanOrEqual(p.RatioMin) && ratio.LessThanOrEqual(p.RatioMax)
}

// CheckBucket returns ErrUnknownBucket for buckets the policy does not serve.
func (p Policy) CheckBucket(bucket int) error {
	if bucket < 0 || bucket > p.MaxBucket {
		return fmt.Errorf("%w: %d (want 0..%d)", ErrUnknownBucket, bucket, p.MaxBucket)
	}
	return nil
}
