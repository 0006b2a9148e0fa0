package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiseScreener/internal/collector"
	"RiseScreener/internal/logging"
	"RiseScreener/internal/model"
	"RiseScreener/internal/notifier"
	"RiseScreener/internal/strategy"
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

type fakeArchive struct {
	mu    sync.Mutex
	bars  []model.PriceBar
	names []model.Security
	err   error
}

func (f *fakeArchive) Name() string { return "fake" }
func (f *fakeArchive) FetchBars(context.Context, time.Time, time.Time) ([]model.PriceBar, error) {
	return nil, nil
}
func (f *fakeArchive) SaveBars(_ context.Context, bars []model.PriceBar) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.bars = append(f.bars, bars...)
	return len(bars), nil
}
func (f *fakeArchive) SaveSecurities(_ context.Context, secs []model.Security) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, secs...)
	return nil
}
func (f *fakeArchive) Close() error { return nil }

type stubSecurities []model.Security

func (s stubSecurities) FetchSecurities(context.Context) ([]model.Security, error) { return s, nil }

func newTestScheduler(t *testing.T) (*Scheduler, *collector.MockSource, *fakeArchive) {
	t.Helper()
	var hist []model.PriceBar
	for d := 0; d <= 13; d++ {
		hist = append(hist, bar("0000", d, 10, 9.5))
	}
	hist = append(hist, bar("7203", 10, 105, 100))

	histSrc := &collector.MockSource{Label: "mock-hist", Bars: hist}
	liveSrc := &collector.MockSource{Label: "mock-live", Bars: []model.PriceBar{bar("7203", 0, 145, 130)}}

	col := collector.NewCollector(histSrc, liveSrc, []model.Market{model.MarketTSEPrime}, 14, time.UTC, logging.Nop())
	col.Now = func() time.Time { return today.Add(12 * time.Hour) }
	col.Securities = stubSecurities{{Code: "7203", Name: "Toyota Motor"}}

	archive := &fakeArchive{}
	s := NewScheduler(context.Background(), col, strategy.DefaultPolicy(), archive, NewBoard(), logging.Nop())
	return s, liveSrc, archive
}

func TestRunNow_PublishesAllBuckets(t *testing.T) {
	s, _, archive := newTestScheduler(t)

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Buckets, strategy.MaxSupportedBucket+1)
	assert.True(t, res.Reference.Equal(today))
	assert.NotEmpty(t, res.RunID)

	b0 := res.Buckets[0]
	require.Len(t, b0.Rows, 1)
	assert.Equal(t, "7203", b0.Rows[0].Code)
	assert.Equal(t, "Toyota Motor", b0.Rows[0].Name)
	assert.True(t, b0.Rows[0].Ratio.Equal(decimal.RequireFromString("1.45")))
	assert.True(t, b0.Date.Equal(today))

	b1 := res.Buckets[1]
	assert.True(t, b1.Date.Equal(today.AddDate(0, 0, -1)))
	assert.Empty(t, b1.Rows)
	assert.NotNil(t, b1.Rows)

	assert.Same(t, res, s.Board.Latest())

	require.Len(t, archive.bars, 1)
	assert.Equal(t, "7203", archive.bars[0].Code)
	require.Len(t, archive.names, 1)
	assert.Equal(t, "Toyota Motor", archive.names[0].Name)
}

func TestRunNow_FailureKeepsPreviousBoard(t *testing.T) {
	s, live, _ := newTestScheduler(t)

	first, err := s.RunNow(context.Background())
	require.NoError(t, err)

	live.Err = errors.New("connection reset")
	res, err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, strategy.ErrSourceUnavailable)
	assert.Same(t, first, s.Board.Latest())
}

func TestRunNow_SettleFailureStillPublishes(t *testing.T) {
	s, _, archive := newTestScheduler(t)
	archive.err = errors.New("disk full")

	res, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Same(t, res, s.Board.Latest())
}

func TestRunNow_BadPolicy(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.Policy.RatioMin = decimal.NewFromInt(3)

	_, err := s.RunNow(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, strategy.ErrConfiguration)
	assert.Nil(t, s.Board.Latest())
}

func TestRegisterDaily(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	require.NoError(t, s.RegisterDaily("0 30 15 * * 1-5"))
	assert.Len(t, s.Cron.Entries(), 1)

	err := s.RegisterDaily("not a cron")
	assert.Error(t, err)

	s.Start()
	s.Stop()
}

func TestRegisterDaily_UsesCollectorLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	col := collector.NewCollector(&collector.MockSource{}, nil, []model.Market{model.MarketTSEPrime}, 14, tokyo, logging.Nop())
	s := NewScheduler(context.Background(), col, strategy.DefaultPolicy(), nil, nil, logging.Nop())
	require.NoError(t, s.RegisterDaily("0 30 15 * * 1-5"))
	assert.Equal(t, tokyo, s.Cron.Location())

	// Friday 2025-06-13 03:00 UTC is noon in Tokyo; cron hands schedules
	// the current time in its own location.
	now := time.Date(2025, 6, 13, 3, 0, 0, 0, time.UTC).In(s.Cron.Location())
	next := s.Cron.Entries()[0].Schedule.Next(now)
	assert.True(t, next.Equal(time.Date(2025, 6, 13, 15, 30, 0, 0, tokyo)), "next fire %s", next)
	assert.True(t, next.Equal(time.Date(2025, 6, 13, 6, 30, 0, 0, time.UTC)))
	assert.Equal(t, time.Friday, next.In(tokyo).Weekday())
}

func TestBoard(t *testing.T) {
	b := NewBoard()
	assert.Nil(t, b.Latest())
	_, _, ok := b.Bucket(0)
	assert.False(t, ok)

	r := &Result{RunID: "r1", Buckets: map[int]BucketResult{0: {Date: today}}}
	b.Publish(r)
	br, latest, ok := b.Bucket(0)
	require.True(t, ok)
	assert.True(t, br.Date.Equal(today))
	assert.Equal(t, "r1", latest.RunID)

	_, _, ok = b.Bucket(4)
	assert.False(t, ok)
}

func TestHandleCommand(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	assert.Contains(t, s.HandleCommand("/today"), "no screening run")

	out := s.HandleCommand("/run")
	assert.Contains(t, out, "rows 0d:1 1d:0")
	assert.NotNil(t, s.Board.Latest())

	today := s.HandleCommand("/today")
	assert.Contains(t, today, "7203 Toyota Motor ×1.45")
	assert.Contains(t, s.HandleCommand("/yesterday"), "none")
	assert.Contains(t, s.HandleCommand("/bucket 3"), "3 days ago")
	assert.Contains(t, s.HandleCommand("/bucket 9"), "unknown bucket")
	assert.Contains(t, s.HandleCommand("/bucket"), "Commands")
	assert.Contains(t, s.HandleCommand("hello"), "/today")
}

func TestRunNow_NotifiesSummary(t *testing.T) {
	sent := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		sent <- body["text"]
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s, _, _ := newTestScheduler(t)
	tn := notifier.NewTelegramNotifier("TOKEN", "1", "", logging.Nop())
	tn.BaseURL = srv.URL
	s.Notifier = tn

	_, err := s.RunNow(context.Background())
	require.NoError(t, err)

	select {
	case text := <-sent:
		assert.Contains(t, text, "Rise screen")
		assert.Contains(t, text, "7203")
	default:
		t.Fatal("summary not sent")
	}
}
