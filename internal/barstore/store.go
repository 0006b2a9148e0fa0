// Package barstore merges historical and live daily bars into a read-only,
// window-bounded snapshot used by a single screening run.
package barstore

import (
	"sort"
	"time"

	"RiseScreener/internal/model"
)

// Options controls which bars make it into a snapshot.
type Options struct {
	Markets      []model.Market // allow-list; bars from other markets are dropped
	LookbackDays int
	Today        time.Time // reference day of the run
}

// Store is an immutable snapshot of daily bars keyed by security.
// All accessors return copies so the snapshot cannot be mutated by callers.
type Store struct {
	today  time.Time
	cutoff time.Time
	series map[model.SecurityKey][]model.PriceBar
	bad    map[model.SecurityKey][]model.PriceBar
	keys   []model.SecurityKey
	dates  []time.Time // distinct dates present, most recent first
	names  map[string]string
}

// New builds a snapshot. Live bars replace historical bars for the same
// security and date. Bars dated before Today-LookbackDays or after Today are
// dropped, as are bars from markets outside the allow-list.
func New(opts Options, historical, live []model.PriceBar, securities []model.Security) *Store {
	allowed := make(map[model.Market]bool, len(opts.Markets))
	for _, m := range opts.Markets {
		allowed[m] = true
	}
	today := model.Day(opts.Today)
	cutoff := today.AddDate(0, 0, -opts.LookbackDays)

	merged := make(map[model.SecurityKey]map[time.Time]model.PriceBar)
	add := func(bars []model.PriceBar) {
		for _, b := range bars {
			if !allowed[b.Market] {
				continue
			}
			b.Date = model.Day(b.Date)
			if b.Date.Before(cutoff) || b.Date.After(today) {
				continue
			}
			byDate, ok := merged[b.Key()]
			if !ok {
				byDate = make(map[time.Time]model.PriceBar)
				merged[b.Key()] = byDate
			}
			byDate[b.Date] = b
		}
	}
	add(historical)
	add(live)

	s := &Store{
		today:  today,
		cutoff: cutoff,
		series: make(map[model.SecurityKey][]model.PriceBar, len(merged)),
		bad:    make(map[model.SecurityKey][]model.PriceBar),
		keys:   make([]model.SecurityKey, 0, len(merged)),
		names:  make(map[string]string, len(securities)),
	}

	seen := make(map[time.Time]bool)
	for key, byDate := range merged {
		s.keys = append(s.keys, key)
		bars := make([]model.PriceBar, 0, len(byDate))
		var bad []model.PriceBar
		for d, b := range byDate {
			// Invalid bars still evidence a trading day.
			seen[d] = true
			if b.Valid() {
				bars = append(bars, b)
			} else {
				bad = append(bad, b)
			}
		}
		sortByDate(bars)
		s.series[key] = bars
		if len(bad) > 0 {
			sortByDate(bad)
			s.bad[key] = bad
		}
	}
	sort.Slice(s.keys, func(i, j int) bool { return s.keys[i].Less(s.keys[j]) })

	s.dates = make([]time.Time, 0, len(seen))
	for d := range seen {
		s.dates = append(s.dates, d)
	}
	sort.Slice(s.dates, func(i, j int) bool { return s.dates[i].After(s.dates[j]) })

	for _, sec := range securities {
		if sec.Name != "" {
			s.names[sec.Code] = sec.Name
		}
	}
	return s
}

func sortByDate(bars []model.PriceBar) {
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
}

// Series returns the bars of one security, oldest first: valid bars in Bars,
// bars that cannot anchor in Unanchored.
// The second result is false when the security is not in the snapshot.
func (s *Store) Series(key model.SecurityKey) (model.SecuritySeries, bool) {
	bars, ok := s.series[key]
	if !ok {
		return model.SecuritySeries{Key: key}, false
	}
	out := model.SecuritySeries{Key: key, Bars: make([]model.PriceBar, len(bars))}
	copy(out.Bars, bars)
	if bad := s.bad[key]; len(bad) > 0 {
		out.Unanchored = make([]model.PriceBar, len(bad))
		copy(out.Unanchored, bad)
	}
	return out, true
}

// Securities lists every allow-listed security with at least one bar in the window,
// ordered by code then market.
func (s *Store) Securities() []model.SecurityKey {
	out := make([]model.SecurityKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Dates returns the distinct trading dates present anywhere in the snapshot, most recent first.
func (s *Store) Dates() []time.Time {
	out := make([]time.Time, len(s.dates))
	copy(out, s.dates)
	return out
}

// Name returns the display name for a code, or "" when unknown.
func (s *Store) Name(code string) string { return s.names[code] }

// Today is the reference day the window was cut from.
func (s *Store) Today() time.Time { return s.today }

// Cutoff is the oldest date kept in the snapshot.
func (s *Store) Cutoff() time.Time { return s.cutoff }

// BarCount returns the number of valid bars across all securities.
func (s *Store) BarCount() int {
	n := 0
	for _, bars := range s.series {
		n += len(bars)
	}
	return n
}
