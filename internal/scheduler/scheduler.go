package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"RiseScreener/internal/collector"
	"RiseScreener/internal/metrics"
	"RiseScreener/internal/model"
	"RiseScreener/internal/notifier"
	"RiseScreener/internal/recorder"
	"RiseScreener/internal/strategy"
)

// nameSaver is implemented by archives that also keep display names.
type nameSaver interface {
	SaveSecurities(ctx context.Context, secs []model.Security) error
}

// Scheduler runs the screening pipeline on a cron schedule and publishes
// each successful run to a Board.
type Scheduler struct {
	Cron      *cron.Cron
	Collector *collector.Collector
	Policy    strategy.Policy
	Verifier  strategy.Verifier          // optional
	Notifier  *notifier.TelegramNotifier // optional
	Archive   recorder.Archive
	Board     *Board
	Ctx       context.Context
	Logger    zerolog.Logger

	runMu sync.Mutex
}

// NewScheduler creates a new Scheduler. Cron expressions are evaluated in the
// collector's location so the daily run lines up with the market's own day.
func NewScheduler(ctx context.Context, col *collector.Collector, policy strategy.Policy, archive recorder.Archive, board *Board, logger zerolog.Logger) *Scheduler {
	if archive == nil {
		archive = recorder.NewNoopArchive()
	}
	if board == nil {
		board = NewBoard()
	}
	loc := time.Local
	if col != nil && col.Location != nil {
		loc = col.Location
	}
	return &Scheduler{
		Cron:      cron.New(cron.WithSeconds(), cron.WithLocation(loc)),
		Collector: col,
		Policy:    policy,
		Archive:   archive,
		Board:     board,
		Ctx:       ctx,
		Logger:    logger,
	}
}

// RegisterDaily registers the screening run.
func (s *Scheduler) RegisterDaily(dailyCron string) error {
	if _, err := s.Cron.AddFunc(dailyCron, s.dailyTask); err != nil {
		return fmt.Errorf("register daily task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info().
		Int("entries", len(s.Cron.Entries())).
		Str("location", s.Cron.Location().String()).
		Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) dailyTask() {
	if _, err := s.RunNow(s.Ctx); err != nil {
		s.Logger.Error().Err(err).Msg("scheduled run failed, keeping previous results")
	}
}

// RunNow executes one full run: snapshot, screen every bucket, publish,
// then settle live bars into the archive. A failed run leaves the board
// untouched.
func (s *Scheduler) RunNow(ctx context.Context) (*Result, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	res, snap, err := s.run(ctx)
	metrics.ObserveRun(err, time.Since(start))
	if err != nil {
		return nil, err
	}

	s.Board.Publish(res)

	counts := make(map[int]int, len(res.Buckets))
	for b, br := range res.Buckets {
		counts[b] = len(br.Rows)
	}
	metrics.SetRows(counts)

	s.settle(ctx, snap)
	s.notify(ctx, res, counts)

	s.Logger.Info().
		Str("run_id", res.RunID).
		Time("reference", res.Reference).
		Interface("rows", counts).
		Dur("elapsed", time.Since(start)).
		Msg("run published")
	return res, nil
}

func (s *Scheduler) run(ctx context.Context) (*Result, *collector.Snapshot, error) {
	if s.Collector == nil {
		return nil, nil, fmt.Errorf("%w: no collector", strategy.ErrConfiguration)
	}
	snap, err := s.Collector.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: %w", err)
	}
	if s.Collector.Historical != nil {
		metrics.AddBars(s.Collector.Historical.Name(), snap.HistoricalBars)
	}
	if s.Collector.Live != nil {
		metrics.AddBars(s.Collector.Live.Name(), len(snap.Live))
	}

	opts := []strategy.Option{strategy.WithLogger(s.Logger)}
	if s.Verifier != nil {
		opts = append(opts, strategy.WithVerifier(s.Verifier))
	}
	engine, err := strategy.NewEngine(snap.Store, s.Policy, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}
	all, err := engine.ScreenAll(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("screen: %w", err)
	}

	res := &Result{
		RunID:       snap.RunID,
		GeneratedAt: snap.TakenAt,
		Buckets:     make(map[int]BucketResult, len(all)),
	}
	res.Reference, _ = engine.Reference()
	for b, rows := range all {
		date, _ := engine.BucketDate(b)
		res.Buckets[b] = BucketResult{Date: date, Rows: rows}
	}
	return res, snap, nil
}

// settle writes the run's live bars and names to the archive. Failures are
// logged only; the published results stand.
func (s *Scheduler) settle(ctx context.Context, snap *collector.Snapshot) {
	n, err := s.Archive.SaveBars(ctx, snap.Live)
	if err != nil {
		s.Logger.Error().Err(err).Str("archive", s.Archive.Name()).Msg("settle live bars")
		return
	}
	if n > 0 {
		s.Logger.Debug().Int("bars", n).Str("archive", s.Archive.Name()).Msg("live bars settled")
	}

	ns, ok := s.Archive.(nameSaver)
	if !ok {
		return
	}
	var secs []model.Security
	seen := make(map[string]bool)
	for _, key := range snap.Store.Securities() {
		name := snap.Store.Name(key.Code)
		if name == "" || seen[key.Code] {
			continue
		}
		seen[key.Code] = true
		secs = append(secs, model.Security{Code: key.Code, Name: name})
	}
	if len(secs) == 0 {
		return
	}
	if err := ns.SaveSecurities(ctx, secs); err != nil {
		s.Logger.Error().Err(err).Msg("settle security names")
	}
}

func (s *Scheduler) notify(ctx context.Context, res *Result, counts map[int]int) {
	if s.Notifier == nil {
		return
	}
	s.trySend(ctx, formatSummary(res, counts))
}

// formatSummary renders the header plus the two most recent buckets.
func formatSummary(res *Result, counts map[int]int) string {
	text := notifier.FormatRunHeader(res.RunID, res.Reference, counts)
	for b := 0; b <= 1; b++ {
		if br, ok := res.Buckets[b]; ok {
			text += notifier.FormatBucket(b, br.Date, br.Rows, notifier.DefaultRowLimit)
		}
	}
	return text
}

// HandleCommand processes a chat command and returns a reply.
func (s *Scheduler) HandleCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp(s.Policy.MaxBucket)
	}
	switch fields[0] {
	case "/today":
		return s.describeBucket(0)
	case "/yesterday":
		return s.describeBucket(1)
	case "/bucket":
		if len(fields) < 2 {
			return notifier.FormatHelp(s.Policy.MaxBucket)
		}
		b, err := strconv.Atoi(fields[1])
		if err != nil || s.Policy.CheckBucket(b) != nil {
			return fmt.Sprintf("unknown bucket %q", fields[1])
		}
		return s.describeBucket(b)
	case "/run":
		res, err := s.RunNow(s.Ctx)
		if err != nil {
			return fmt.Sprintf("❌ run failed: %v", err)
		}
		if s.Notifier != nil {
			// RunNow already pushed the summary
			return ""
		}
		counts := make(map[int]int, len(res.Buckets))
		for b, br := range res.Buckets {
			counts[b] = len(br.Rows)
		}
		return formatSummary(res, counts)
	default:
		return notifier.FormatHelp(s.Policy.MaxBucket)
	}
}

func (s *Scheduler) describeBucket(bucket int) string {
	br, res, ok := s.Board.Bucket(bucket)
	if res == nil {
		return "no screening run has completed yet"
	}
	if !ok {
		return fmt.Sprintf("bucket %d is not screened", bucket)
	}
	return notifier.FormatBucket(bucket, br.Date, br.Rows, notifier.DefaultRowLimit)
}

func (s *Scheduler) trySend(ctx context.Context, text string) {
	if err := s.Notifier.SendWithRetry(ctx, text, 3); err != nil {
		s.Logger.Error().Err(err).Msg("send notification")
	}
}
