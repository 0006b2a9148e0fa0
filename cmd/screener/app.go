package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"RiseScreener/internal/collector"
	"RiseScreener/internal/config"
	"RiseScreener/internal/logging"
	"RiseScreener/internal/model"
	"RiseScreener/internal/notifier"
	"RiseScreener/internal/recorder"
	"RiseScreener/internal/scheduler"
	"RiseScreener/internal/strategy"
)

// app is the wired pipeline shared by the screen and serve commands.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	archive recorder.Archive
	sched   *scheduler.Scheduler
}

func newApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.New(cfg.Log.Level)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn().Msg(w)
	}

	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	archive := openArchive(cfg, logger)

	col := collector.NewCollector(nil, nil, cfg.Markets(), policy.LookbackDays, loc, logger)
	today := col.Today()
	col.Historical, err = buildSource(cfg.Sources.Historical, cfg, archive, today, logger)
	if err != nil {
		archive.Close()
		return nil, fmt.Errorf("historical source: %w", err)
	}
	if cfg.Sources.Live.Kind != "" {
		col.Live, err = buildSource(cfg.Sources.Live, cfg, archive, today, logger)
		if err != nil {
			archive.Close()
			return nil, fmt.Errorf("live source: %w", err)
		}
	}
	col.Securities = securitySource(col, archive)

	logger.Info().
		Str("historical", col.Historical.Name()).
		Str("live", sourceName(col.Live)).
		Str("archive", archive.Name()).
		Ints("markets", cfg.Screening.Markets).
		Msg("sources configured")

	sched := scheduler.NewScheduler(ctx, col, policy, archive, scheduler.NewBoard(), logger)
	if cfg.Screening.VerifyHigh {
		if sf := seriesFetcher(col); sf != nil {
			sched.Verifier = collector.NewSeriesVerifier(sf)
		}
	}

	if cfg.TelegramEnabled() {
		sched.Notifier = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
	}

	return &app{cfg: cfg, logger: logger, archive: archive, sched: sched}, nil
}

func (a *app) Close() {
	if err := a.archive.Close(); err != nil {
		a.logger.Error().Err(err).Msg("close archive")
	}
}

// openArchive falls back to the no-op archive when SQLite cannot be opened.
func openArchive(cfg *config.Config, logger zerolog.Logger) recorder.Archive {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopArchive()
	}
	a, err := recorder.NewSQLiteArchive(cfg.Database.SQLitePath, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("init sqlite archive failed, using noop")
		return recorder.NewNoopArchive()
	}
	return a
}

func buildSource(sc config.SourceConfig, cfg *config.Config, archive recorder.Archive, today time.Time, logger zerolog.Logger) (collector.BarSource, error) {
	market := model.Market(sc.Market)
	switch sc.Kind {
	case config.KindSQLite:
		return archive, nil
	case config.KindHTTP:
		opts := []collector.HTTPOption{
			collector.WithAPIKey(sc.APIKey),
			collector.WithProxy(cfg.Proxy),
			collector.WithLogger(logger),
		}
		if sc.RateLimit > 0 {
			opts = append(opts, collector.WithRateLimit(sc.RateLimit))
		}
		return collector.NewHTTPSource("http", sc.BaseURL, opts...), nil
	case config.KindYahoo:
		return collector.NewYahooSource(sc.Symbols, market, cfg.Proxy), nil
	case config.KindAlpaca:
		return collector.NewAlpacaSource(sc.APIKey, sc.APISecret, sc.Symbols, market), nil
	case config.KindMock:
		return mockSource(sc, today), nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", strategy.ErrConfiguration, sc.Kind)
	}
}

// mockSource generates a rising demo series per symbol.
func mockSource(sc config.SourceConfig, today time.Time) *collector.MockSource {
	symbols := sc.Symbols
	if len(symbols) == 0 {
		symbols = []string{"1301", "7203", "9984"}
	}
	market := model.Market(sc.Market)
	if market == 0 {
		market = model.MarketTSEPrime
	}
	src := &collector.MockSource{Label: "mock"}
	for i, sym := range symbols {
		src.Bars = append(src.Bars, collector.GenerateBars(sym, market, float64(100*(i+1)), 14, today)...)
	}
	return src
}

func securitySource(col *collector.Collector, archive recorder.Archive) collector.SecuritySource {
	for _, src := range []collector.BarSource{col.Historical, col.Live} {
		if ss, ok := src.(collector.SecuritySource); ok {
			return ss
		}
	}
	if ss, ok := archive.(collector.SecuritySource); ok {
		return ss
	}
	return nil
}

func seriesFetcher(col *collector.Collector) collector.SeriesFetcher {
	for _, src := range []collector.BarSource{col.Historical, col.Live} {
		if sf, ok := src.(collector.SeriesFetcher); ok {
			return sf
		}
	}
	return nil
}

func sourceName(src collector.BarSource) string {
	if src == nil {
		return "none"
	}
	return src.Name()
}
