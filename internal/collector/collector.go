package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"RiseScreener/internal/barstore"
	"RiseScreener/internal/model"
	"RiseScreener/internal/strategy"
)

// MockSource returns fixed bars for development and testing.
type MockSource struct {
	Label string
	Bars  []model.PriceBar
	Err   error
}

func (m *MockSource) Name() string {
	if m.Label == "" {
		return "mock"
	}
	return m.Label
}

func (m *MockSource) FetchBars(_ context.Context, from, to time.Time) ([]model.PriceBar, error) {
	if m.Err != nil {
		return nil, fmt.Errorf("%s: %w: %w", m.Name(), strategy.ErrSourceUnavailable, m.Err)
	}
	var out []model.PriceBar
	for _, b := range m.Bars {
		d := model.Day(b.Date)
		if d.Before(model.Day(from)) || d.After(model.Day(to)) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// GenerateBars builds a gently rising weekday series ending on today.
func GenerateBars(code string, market model.Market, basePrice float64, days int, today time.Time) []model.PriceBar {
	bars := make([]model.PriceBar, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := model.Day(today).AddDate(0, 0, -i)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		p := basePrice * (1 + float64(days-i)*0.03)
		bars = append(bars, model.PriceBar{
			Code:   code,
			Market: market,
			Date:   d,
			Open:   decimal.NewFromFloat(p * 0.99).Round(2),
			High:   decimal.NewFromFloat(p * 1.01).Round(2),
			Low:    decimal.NewFromFloat(p * 0.98).Round(2),
			Close:  decimal.NewFromFloat(p).Round(2),
		})
	}
	return bars
}

// Snapshot is the materialized input of one screening run.
type Snapshot struct {
	RunID          string
	TakenAt        time.Time
	Store          *barstore.Store
	HistoricalBars int
	Live           []model.PriceBar // raw live bars, for settling into the archive
}

// Collector fetches both bar sources and builds a Bar Store snapshot.
type Collector struct {
	Historical   BarSource
	Live         BarSource      // optional
	Securities   SecuritySource // optional
	Markets      []model.Market
	LookbackDays int
	Location     *time.Location
	Now          func() time.Time
	Logger       zerolog.Logger
}

// NewCollector creates a Collector using the wall clock in loc.
func NewCollector(historical, live BarSource, markets []model.Market, lookbackDays int, loc *time.Location, logger zerolog.Logger) *Collector {
	if loc == nil {
		loc = time.UTC
	}
	return &Collector{
		Historical:   historical,
		Live:         live,
		Markets:      markets,
		LookbackDays: lookbackDays,
		Location:     loc,
		Now:          time.Now,
		Logger:       logger,
	}
}

// Today returns the run's reference day in the collector's location.
func (c *Collector) Today() time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	return model.Day(c.Now().In(loc))
}

// Snapshot fetches bars covering the lookback window and builds a store.
// Any bar source failure fails the whole snapshot; metadata failures only
// drop names.
func (c *Collector) Snapshot(ctx context.Context) (*Snapshot, error) {
	if c.Historical == nil && c.Live == nil {
		return nil, fmt.Errorf("%w: no bar source configured", strategy.ErrConfiguration)
	}
	today := c.Today()
	from := today.AddDate(0, 0, -c.LookbackDays)

	var historical, live []model.PriceBar
	var err error
	if c.Historical != nil {
		historical, err = c.Historical.FetchBars(ctx, from, today)
		if err != nil {
			return nil, fmt.Errorf("historical source %s: %w", c.Historical.Name(), err)
		}
	}
	if c.Live != nil {
		live, err = c.Live.FetchBars(ctx, from, today)
		if err != nil {
			return nil, fmt.Errorf("live source %s: %w", c.Live.Name(), err)
		}
	}

	var securities []model.Security
	if c.Securities != nil {
		securities, err = c.Securities.FetchSecurities(ctx)
		if err != nil {
			c.Logger.Warn().Err(err).Msg("security metadata unavailable, names omitted")
			securities = nil
		}
	}

	store := barstore.New(barstore.Options{
		Markets:      c.Markets,
		LookbackDays: c.LookbackDays,
		Today:        today,
	}, historical, live, securities)

	snap := &Snapshot{
		RunID:          uuid.NewString(),
		TakenAt:        c.Now(),
		Store:          store,
		HistoricalBars: len(historical),
		Live:           live,
	}
	c.Logger.Info().
		Str("run_id", snap.RunID).
		Time("today", today).
		Int("historical_bars", len(historical)).
		Int("live_bars", len(live)).
		Int("securities", len(store.Securities())).
		Int("dates", len(store.Dates())).
		Msg("snapshot built")
	return snap, nil
}
