package strategy

import (
	"context"
	"time"

	"RiseScreener/internal/calculator"
	"RiseScreener/internal/model"
)

// Verifier cross-checks a candidate's anchor high against a secondary source.
// It reports false when the secondary source disagrees.
type Verifier interface {
	VerifyHigh(ctx context.Context, key model.SecurityKey, high model.PriceBar) (bool, error)
}

// skip reasons, logged at debug level
const (
	reasonNoData      = "bucket has no data"
	reasonNoValidBars = "no valid bars"
	reasonRatio       = "ratio out of range"
	reasonBucket      = "high not on bucket date"
	reasonSuperseded  = "high superseded by a later bar"
	reasonUnverified  = "secondary source disagrees"
	reasonUnknownDate = "high date not in calendar"
)

// Evaluator applies the qualification gates for one bucket.
type Evaluator struct {
	policy   Policy
	calendar *calculator.Calendar
}

// NewEvaluator returns an evaluator for a validated policy and a run's calendar.
func NewEvaluator(policy Policy, calendar *calculator.Calendar) *Evaluator {
	return &Evaluator{policy: policy, calendar: calendar}
}

// Evaluate returns the row for series in bucket, or false when any gate fails.
func (e *Evaluator) Evaluate(series model.SecuritySeries, bucket int) (model.ScreeningRow, bool) {
	row, reason := e.evaluate(series, bucket)
	return row, reason == ""
}

func (e *Evaluator) evaluate(series model.SecuritySeries, bucket int) (model.ScreeningRow, string) {
	bucketDate, ok := e.calendar.DateAt(bucket)
	if !ok {
		return model.ScreeningRow{}, reasonNoData
	}

	candidates := series
	if e.policy.AnchorScope == ScopeAsOf {
		candidates = through(series, bucketDate)
	}
	anchors, err := calculator.ResolveAnchors(candidates, e.policy.TieBreak)
	if err != nil {
		return model.ScreeningRow{}, reasonNoValidBars
	}

	if !e.policy.InRange(anchors.Ratio) {
		return model.ScreeningRow{}, reasonRatio
	}

	offset, ok := e.calendar.Offset(anchors.HighBar.Date)
	if !ok {
		return model.ScreeningRow{}, reasonUnknownDate
	}
	if offset != bucket {
		return model.ScreeningRow{}, reasonBucket
	}

	if bucket > 0 && e.policy.SupersessionCheck && superseded(series, anchors.HighBar) {
		return model.ScreeningRow{}, reasonSuperseded
	}

	return model.ScreeningRow{
		Code:       series.Key.Code,
		Market:     series.Key.Market,
		LowBar:     anchors.LowBar,
		HighBar:    anchors.HighBar,
		Ratio:      anchors.Ratio,
		OffsetDays: offset,
	}, ""
}

// superseded reports whether any bar after high recorded a strictly higher
// high. Bars that cannot anchor still count.
func superseded(series model.SecuritySeries, high model.PriceBar) bool {
	for _, bars := range [][]model.PriceBar{series.Bars, series.Unanchored} {
		for _, b := range bars {
			if b.Date.After(high.Date) && b.High.GreaterThan(high.High) {
				return true
			}
		}
	}
	return false
}

// through returns the bars dated on or before date.
func through(series model.SecuritySeries, date time.Time) model.SecuritySeries {
	out := model.SecuritySeries{Key: series.Key}
	for _, b := range series.Bars {
		if !b.Date.After(date) {
			out.Bars = append(out.Bars, b)
		}
	}
	return out
}
