package collector

import (
	"context"
	"time"

	"RiseScreener/internal/model"
)

// BarSource supplies daily bars for every security it knows about.
// Implementations may return bars in any order, may overlap other sources,
// and may include markets the screen does not cover.
type BarSource interface {
	FetchBars(ctx context.Context, from, to time.Time) ([]model.PriceBar, error)
	Name() string
}

// SeriesFetcher returns the detailed daily series of a single security.
type SeriesFetcher interface {
	FetchSeries(ctx context.Context, key model.SecurityKey, from, to time.Time) ([]model.PriceBar, error)
}

// SecuritySource supplies optional display metadata.
type SecuritySource interface {
	FetchSecurities(ctx context.Context) ([]model.Security, error)
}
