package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Market identifies an exchange or market segment.
type Market int

const (
	MarketTSEPrime    Market = 111
	MarketTSEStandard Market = 112
	MarketTSEGrowth   Market = 113
)

func (m Market) String() string {
	switch m {
	case MarketTSEPrime:
		return "TSE Prime"
	case MarketTSEStandard:
		return "TSE Standard"
	case MarketTSEGrowth:
		return "TSE Growth"
	default:
		return fmt.Sprintf("market(%d)", int(m))
	}
}

// SecurityKey identifies one tradable security on one market.
type SecurityKey struct {
	Code   string
	Market Market
}

func (k SecurityKey) String() string {
	return fmt.Sprintf("%s@%d", k.Code, int(k.Market))
}

// Less orders keys by code, then market.
func (k SecurityKey) Less(o SecurityKey) bool {
	if k.Code != o.Code {
		return k.Code < o.Code
	}
	return k.Market < o.Market
}

// PriceBar represents one trading day for one security.
type PriceBar struct {
	Code   string
	Market Market
	Date   time.Time // UTC midnight of the trading day
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
}

// Key returns the security the bar belongs to.
func (b PriceBar) Key() SecurityKey {
	return SecurityKey{Code: b.Code, Market: b.Market}
}

// Valid reports whether the bar can take part in anchor search.
// A non-positive low corrupts the ratio, and high below low means a malformed bar.
func (b PriceBar) Valid() bool {
	return b.Low.IsPositive() && b.High.GreaterThanOrEqual(b.Low)
}

// Security holds optional display metadata.
type Security struct {
	Code string
	Name string
}

// Day truncates t to the calendar day it falls on in its own location,
// returned as UTC midnight so dates compare with ==.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD trading date.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DateLayout is the wire format for trading dates.
const DateLayout = "2006-01-02"
