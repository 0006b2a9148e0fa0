package collector

import (
	"context"

	"RiseScreener/internal/model"
)

// SeriesVerifier confirms a candidate's anchor high against the security's
// detailed daily series from a secondary source.
type SeriesVerifier struct {
	Source SeriesFetcher
}

// NewSeriesVerifier wraps a SeriesFetcher.
func NewSeriesVerifier(source SeriesFetcher) *SeriesVerifier {
	return &SeriesVerifier{Source: source}
}

// VerifyHigh reports whether the secondary series has a bar on the high's
// date with exactly the same high.
func (v *SeriesVerifier) VerifyHigh(ctx context.Context, key model.SecurityKey, high model.PriceBar) (bool, error) {
	day := model.Day(high.Date)
	bars, err := v.Source.FetchSeries(ctx, key, day, day)
	if err != nil {
		return false, err
	}
	for _, b := range bars {
		if model.Day(b.Date).Equal(day) {
			return b.High.Equal(high.High), nil
		}
	}
	return false, nil
}
