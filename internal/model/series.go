package model

import "github.com/shopspring/decimal"

// SecuritySeries holds the date-sorted bars of one security within the lookback window.
// It is built once per run and never mutated afterwards.
type SecuritySeries struct {
	Key  SecurityKey
	Bars []PriceBar // valid bars, ascending by Date, one bar per date

	// Unanchored are window bars that failed Valid. They never anchor a
	// ratio but their highs still count when checking for a later, higher high.
	Unanchored []PriceBar
}

// Empty reports whether the series has no bars.
func (s SecuritySeries) Empty() bool { return len(s.Bars) == 0 }

// AnchorResult is the derived low/high pair of a series.
type AnchorResult struct {
	LowBar  PriceBar
	HighBar PriceBar
	Ratio   decimal.Decimal // HighBar.High / LowBar.Low
}

// ScreeningRow is one qualifying security for one bucket.
type ScreeningRow struct {
	Code       string
	Market     Market
	Name       string
	LowBar     PriceBar
	HighBar    PriceBar
	Ratio      decimal.Decimal
	OffsetDays int
}
