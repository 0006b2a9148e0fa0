package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiseScreener/internal/barstore"
	"RiseScreener/internal/model"
)

var today = time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)

func bar(code string, daysAgo int, high, low float64) model.PriceBar {
	return model.PriceBar{
		Code:   code,
		Market: model.MarketTSEPrime,
		Date:   today.AddDate(0, 0, -daysAgo),
		High:   decimal.NewFromFloat(high),
		Low:    decimal.NewFromFloat(low),
	}
}

// filler puts a bar on every day of the window so offsets equal calendar days.
func filler() []model.PriceBar {
	var bars []model.PriceBar
	for d := 0; d <= 13; d++ {
		bars = append(bars, bar("0000", d, 10, 9.5))
	}
	return bars
}

func scenarioBars() []model.PriceBar {
	bars := filler()
	bars = append(bars,
		// A: 100 -> 145 today
		bar("A", 10, 105, 100),
		bar("A", 0, 145, 130),
		// B: 100 -> 260 yesterday
		bar("B", 12, 110, 100),
		bar("B", 1, 260, 200),
		// C: 50 -> 90 two days ago, then 95 yesterday
		bar("C", 13, 55, 50),
		bar("C", 2, 90, 80),
		bar("C", 1, 95, 85),
		// D: a zero low that must never anchor
		bar("D", 5, 100, 0),
		bar("D", 0, 120, 80),
	)
	return bars
}

func newStore(bars []model.PriceBar) *barstore.Store {
	return barstore.New(barstore.Options{
		Markets:      []model.Market{model.MarketTSEPrime},
		LookbackDays: 14,
		Today:        today,
	}, bars, nil, []model.Security{{Code: "A", Name: "Alpha"}})
}

func newEngine(t *testing.T, bars []model.PriceBar, policy Policy, opts ...Option) *Engine {
	t.Helper()
	e, err := NewEngine(newStore(bars), policy, opts...)
	require.NoError(t, err)
	return e
}

func codes(rows []model.ScreeningRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Code
	}
	return out
}

func TestScreen_Scenarios(t *testing.T) {
	e := newEngine(t, scenarioBars(), DefaultPolicy())
	all, err := e.ScreenAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 6)

	assert.Equal(t, []string{"D", "A"}, codes(all[0]))
	assert.Equal(t, []string{"C"}, codes(all[1]))
	for b := 2; b <= 5; b++ {
		assert.Empty(t, all[b], "bucket %d", b)
	}

	a := all[0][1]
	assert.Equal(t, "Alpha", a.Name)
	assert.Equal(t, "1.45", a.Ratio.String())
	assert.Equal(t, 0, a.OffsetDays)
	assert.Equal(t, today.AddDate(0, 0, -10), a.LowBar.Date)

	c := all[1][0]
	assert.Equal(t, "1.9", c.Ratio.String())
	assert.Equal(t, "95", c.HighBar.High.String())
	assert.Equal(t, 1, c.OffsetDays)

	d := all[0][0]
	assert.Equal(t, "80", d.LowBar.Low.String(), "zero low must not be the anchor")
	assert.Equal(t, "1.5", d.Ratio.String())
}

func TestScreen_RatioBoundsInclusive(t *testing.T) {
	bars := filler()
	bars = append(bars,
		bar("MIN", 5, 110, 100), bar("MIN", 0, 130, 120),
		bar("MAX", 5, 110, 100), bar("MAX", 0, 200, 150),
		bar("LOW", 5, 110, 100), bar("LOW", 0, 129.99, 120),
		bar("HIGH", 5, 110, 100), bar("HIGH", 0, 200.01, 150),
	)
	e := newEngine(t, bars, DefaultPolicy())
	rows, err := e.Screen(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"MAX", "MIN"}, codes(rows))
}

func TestScreen_OrderingAndIdempotence(t *testing.T) {
	bars := filler()
	bars = append(bars,
		bar("Z", 4, 100, 100), bar("Z", 0, 150, 120),
		bar("Y", 4, 100, 100), bar("Y", 0, 150, 120),
		bar("X", 4, 100, 100), bar("X", 0, 140, 120),
		bar("W", 4, 100, 100), bar("W", 0, 180, 120),
	)
	e := newEngine(t, bars, DefaultPolicy())

	first, err := e.Screen(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"W", "Y", "Z", "X"}, codes(first))
	for i := 1; i < len(first); i++ {
		assert.True(t, first[i-1].Ratio.GreaterThanOrEqual(first[i].Ratio))
	}

	second, err := e.Screen(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestScreen_OffsetsCountPresentDatesOnly(t *testing.T) {
	// Friday, Thursday, then Monday: Tue/Wed are absent from the data.
	fri := today
	bars := []model.PriceBar{
		{Code: "0000", Market: model.MarketTSEPrime, Date: fri, High: decimal.NewFromInt(10), Low: decimal.NewFromInt(9)},
		{Code: "0000", Market: model.MarketTSEPrime, Date: fri.AddDate(0, 0, -1), High: decimal.NewFromInt(10), Low: decimal.NewFromInt(9)},
		{Code: "M", Market: model.MarketTSEPrime, Date: fri.AddDate(0, 0, -8), High: decimal.NewFromInt(100), Low: decimal.NewFromInt(100)},
		{Code: "M", Market: model.MarketTSEPrime, Date: fri.AddDate(0, 0, -4), High: decimal.NewFromInt(150), Low: decimal.NewFromInt(140)},
	}
	e := newEngine(t, bars, DefaultPolicy())

	rows, err := e.Screen(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].OffsetDays)

	date, ok := e.BucketDate(2)
	assert.True(t, ok)
	assert.Equal(t, fri.AddDate(0, 0, -4), date)
}

func TestScreen_InsufficientDatesIsNoData(t *testing.T) {
	bars := []model.PriceBar{bar("A", 1, 100, 100), bar("A", 0, 150, 120)}
	e := newEngine(t, bars, DefaultPolicy())

	rows, err := e.Screen(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
	_, ok := e.BucketDate(3)
	assert.False(t, ok)
}

func TestScreen_UnknownBucket(t *testing.T) {
	e := newEngine(t, scenarioBars(), DefaultPolicy())
	for _, b := range []int{-1, 6} {
		_, err := e.Screen(context.Background(), b)
		assert.True(t, errors.Is(err, ErrUnknownBucket), "bucket %d", b)
		assert.True(t, errors.Is(err, ErrConfiguration), "bucket %d", b)
	}

	p := DefaultPolicy()
	p.MaxBucket = 1
	e = newEngine(t, scenarioBars(), p)
	_, err := e.Screen(context.Background(), 2)
	assert.True(t, errors.Is(err, ErrUnknownBucket))
	all, err := e.ScreenAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestScreen_AsOfScopeSupersession(t *testing.T) {
	p := DefaultPolicy()
	p.AnchorScope = ScopeAsOf
	e := newEngine(t, scenarioBars(), p)

	rows, err := e.Screen(context.Background(), 2)
	require.NoError(t, err)
	assert.NotContains(t, codes(rows), "C", "90 was superseded by 95 the next day")

	rows, err = e.Screen(context.Background(), 1)
	require.NoError(t, err)
	assert.Contains(t, codes(rows), "C")

	p.SupersessionCheck = false
	e = newEngine(t, scenarioBars(), p)
	rows, err = e.Screen(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"C"}, codes(rows))
	assert.Equal(t, "1.8", rows[0].Ratio.String())
}

func TestScreen_NonSupersessionProperty(t *testing.T) {
	e := newEngine(t, scenarioBars(), DefaultPolicy())
	store := newStore(scenarioBars())
	for b := 1; b <= 5; b++ {
		rows, err := e.Screen(context.Background(), b)
		require.NoError(t, err)
		for _, r := range rows {
			series, _ := store.Series(model.SecurityKey{Code: r.Code, Market: r.Market})
			for _, later := range append(series.Bars, series.Unanchored...) {
				if later.Date.After(r.HighBar.Date) {
					assert.False(t, later.High.GreaterThan(r.HighBar.High), "%s bucket %d", r.Code, b)
				}
			}
		}
	}
}

func TestScreen_UnanchoredBarStillSupersedes(t *testing.T) {
	bars := append(filler(),
		bar("E", 10, 105, 100),
		bar("E", 2, 140, 120),
		// a higher high on a bar whose low is missing
		bar("E", 1, 150, 0),
	)

	e := newEngine(t, bars, DefaultPolicy())
	for b := 0; b <= 5; b++ {
		rows, err := e.Screen(context.Background(), b)
		require.NoError(t, err)
		assert.NotContains(t, codes(rows), "E", "bucket %d", b)
	}

	p := DefaultPolicy()
	p.SupersessionCheck = false
	e = newEngine(t, bars, p)
	rows, err := e.Screen(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"E"}, codes(rows))
	assert.Equal(t, "1.4", rows[0].Ratio.String())
	assert.True(t, rows[0].HighBar.Date.Equal(today.AddDate(0, 0, -2)))
}

type stubVerifier struct {
	reject map[string]bool
	err    error
	calls  int
}

func (s *stubVerifier) VerifyHigh(_ context.Context, key model.SecurityKey, _ model.PriceBar) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return !s.reject[key.Code], nil
}

func TestScreen_Verifier(t *testing.T) {
	v := &stubVerifier{reject: map[string]bool{"D": true}}
	e := newEngine(t, scenarioBars(), DefaultPolicy(), WithVerifier(v))
	rows, err := e.Screen(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, codes(rows))
	assert.Equal(t, 2, v.calls, "only qualifying rows are verified")

	failing := &stubVerifier{err: ErrSourceUnavailable}
	e = newEngine(t, scenarioBars(), DefaultPolicy(), WithVerifier(failing))
	rows, err = e.Screen(context.Background(), 0)
	assert.Nil(t, rows)
	assert.True(t, errors.Is(err, ErrSourceUnavailable))
}

func TestNewEngine_RejectsBadPolicy(t *testing.T) {
	p := DefaultPolicy()
	p.LookbackDays = 0
	_, err := NewEngine(newStore(nil), p)
	assert.True(t, errors.Is(err, ErrConfiguration))

	_, err = NewEngine(nil, DefaultPolicy())
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestSortRows_TieOnCodeUsesMarket(t *testing.T) {
	r := decimal.RequireFromString("1.5")
	rows := []model.ScreeningRow{
		{Code: "1", Market: model.MarketTSEGrowth, Ratio: r},
		{Code: "1", Market: model.MarketTSEPrime, Ratio: r},
	}
	SortRows(rows)
	assert.Equal(t, model.MarketTSEPrime, rows[0].Market)
}
