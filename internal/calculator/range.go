package calculator

import (
	"errors"
	"fmt"

	"RiseScreener/internal/model"
)

// ErrNoValidBars is returned when a series has nothing to anchor on.
var ErrNoValidBars = errors.New("no valid bars")

// TieBreak reports whether candidate should replace current when both are
// equally extreme. Bars are visited oldest first, so a TieBreak that never
// replaces keeps the first bar seen.
type TieBreak func(candidate, current model.PriceBar) bool

// EarliestDate prefers the earlier bar; equal dates keep the first bar seen.
func EarliestDate(candidate, current model.PriceBar) bool {
	return candidate.Date.Before(current.Date)
}

// LatestDate prefers the later bar; equal dates keep the first bar seen.
func LatestDate(candidate, current model.PriceBar) bool {
	return candidate.Date.After(current.Date)
}

// ParseTieBreak maps a config name to a TieBreak.
func ParseTieBreak(name string) (TieBreak, error) {
	switch name {
	case "", "earliest":
		return EarliestDate, nil
	case "latest":
		return LatestDate, nil
	default:
		return nil, fmt.Errorf("unknown tie break %q", name)
	}
}

// ResolveAnchors scans the whole series and picks the bar with the lowest low
// and, independently, the bar with the highest high. The two bars need not be
// in low-then-high order. Invalid bars are skipped.
func ResolveAnchors(series model.SecuritySeries, tie TieBreak) (model.AnchorResult, error) {
	if tie == nil {
		tie = EarliestDate
	}
	var lowBar, highBar model.PriceBar
	found := false
	for _, b := range series.Bars {
		if !b.Valid() {
			continue
		}
		if !found {
			lowBar, highBar = b, b
			found = true
			continue
		}
		switch c := b.Low.Cmp(lowBar.Low); {
		case c < 0, c == 0 && tie(b, lowBar):
			lowBar = b
		}
		switch c := b.High.Cmp(highBar.High); {
		case c > 0, c == 0 && tie(b, highBar):
			highBar = b
		}
	}
	if !found {
		return model.AnchorResult{}, fmt.Errorf("%s: %w", series.Key, ErrNoValidBars)
	}
	return model.AnchorResult{
		LowBar:  lowBar,
		HighBar: highBar,
		Ratio:   highBar.High.Div(lowBar.Low),
	}, nil
}
