package calculator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendar_SkipsAbsentDates(t *testing.T) {
	fri := time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)
	thu := fri.AddDate(0, 0, -1)
	mon := fri.AddDate(0, 0, -4)
	prevFri := fri.AddDate(0, 0, -7)

	// Unordered, duplicated, with an intraday timestamp.
	cal := NewCalendar([]time.Time{mon, fri, prevFri, thu, fri.Add(9 * time.Hour), mon})

	assert.Equal(t, 4, cal.Len())
	ref, ok := cal.Reference()
	assert.True(t, ok)
	assert.Equal(t, fri, ref)

	tests := []struct {
		date time.Time
		want int
	}{
		{fri, 0},
		{thu, 1},
		{mon, 2},     // Tue/Wed are absent and must not be counted
		{prevFri, 3}, // weekend skipped
	}
	for _, tt := range tests {
		got, ok := cal.Offset(tt.date)
		assert.True(t, ok, tt.date)
		assert.Equal(t, tt.want, got, tt.date)
	}

	_, ok = cal.Offset(fri.AddDate(0, 0, -2))
	assert.False(t, ok, "absent date has no offset")
}

func TestCalendar_DateAtBounds(t *testing.T) {
	d := time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)
	cal := NewCalendar([]time.Time{d, d.AddDate(0, 0, -1)})

	got, ok := cal.DateAt(1)
	assert.True(t, ok)
	assert.Equal(t, d.AddDate(0, 0, -1), got)

	_, ok = cal.DateAt(2)
	assert.False(t, ok, "fewer than offset+1 dates means no data")
	_, ok = cal.DateAt(-1)
	assert.False(t, ok)

	_, ok = NewCalendar(nil).Reference()
	assert.False(t, ok)
}
