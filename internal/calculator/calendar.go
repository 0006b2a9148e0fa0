package calculator

import (
	"sort"
	"time"

	"RiseScreener/internal/model"
)

// Calendar ranks the distinct trading dates present in a run's data.
// Offset 0 is the most recent date, offset 1 the one before it, and so on.
// Dates missing from the data (weekends, holidays) are never counted.
type Calendar struct {
	dates []time.Time
	rank  map[time.Time]int
}

// NewCalendar builds a calendar from any collection of dates.
func NewCalendar(dates []time.Time) *Calendar {
	rank := make(map[time.Time]int, len(dates))
	uniq := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		d = model.Day(d)
		if _, ok := rank[d]; ok {
			continue
		}
		rank[d] = 0
		uniq = append(uniq, d)
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i].After(uniq[j]) })
	for i, d := range uniq {
		rank[d] = i
	}
	return &Calendar{dates: uniq, rank: rank}
}

// Len returns the number of distinct dates.
func (c *Calendar) Len() int { return len(c.dates) }

// Reference returns the most recent date, the run-wide "today".
func (c *Calendar) Reference() (time.Time, bool) {
	return c.DateAt(0)
}

// DateAt returns the date at the given offset. It reports false when the data
// holds fewer than offset+1 distinct dates.
func (c *Calendar) DateAt(offset int) (time.Time, bool) {
	if offset < 0 || offset >= len(c.dates) {
		return time.Time{}, false
	}
	return c.dates[offset], true
}

// Offset returns how many distinct trading dates lie between the reference
// date and date. It reports false for dates absent from the data.
func (c *Calendar) Offset(date time.Time) (int, bool) {
	i, ok := c.rank[model.Day(date)]
	return i, ok
}
