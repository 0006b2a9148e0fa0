package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"RiseScreener/internal/model"
	"RiseScreener/internal/strategy"
)

// SQLiteArchive persists daily bars and security names to a SQLite database.
// Prices are stored as decimal text so they round-trip exactly.
type SQLiteArchive struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteArchive opens (or creates) the SQLite database and runs migrations.
func NewSQLiteArchive(dbPath string, logger zerolog.Logger) (*SQLiteArchive, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the API read while a scheduled run writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	a := &SQLiteArchive{db: db, logger: logger}
	if err := a.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite archive opened")
	return a, nil
}

func (a *SQLiteArchive) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS daily_bars (
			code       TEXT    NOT NULL,
			market     INTEGER NOT NULL,
			date       TEXT    NOT NULL,
			open       TEXT,
			high       TEXT    NOT NULL,
			low        TEXT    NOT NULL,
			close      TEXT,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (code, market, date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_daily_bars_date ON daily_bars(date)`,

		`CREATE TABLE IF NOT EXISTS securities (
			code       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, s := range stmts {
		if _, err := a.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (a *SQLiteArchive) Name() string { return "sqlite" }

// FetchBars returns archived bars dated within [from, to].
func (a *SQLiteArchive) FetchBars(ctx context.Context, from, to time.Time) ([]model.PriceBar, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT code, market, date, open, high, low, close
		FROM daily_bars WHERE date >= ? AND date <= ? ORDER BY code, market, date`,
		from.Format(model.DateLayout), to.Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w: query bars: %w", strategy.ErrSourceUnavailable, err)
	}
	defer rows.Close()

	var bars []model.PriceBar
	for rows.Next() {
		var (
			code, date  string
			market      int
			open, close sql.NullString
			high, low   string
		)
		if err := rows.Scan(&code, &market, &date, &open, &high, &low, &close); err != nil {
			return nil, fmt.Errorf("sqlite: %w: scan bar: %w", strategy.ErrSourceUnavailable, err)
		}
		b, err := decodeBar(code, market, date, open, high, low, close)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w: %w", strategy.ErrSourceUnavailable, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: %w: %w", strategy.ErrSourceUnavailable, err)
	}
	return bars, nil
}

func decodeBar(code string, market int, date string, open sql.NullString, high, low string, close sql.NullString) (model.PriceBar, error) {
	d, err := model.ParseDay(date)
	if err != nil {
		return model.PriceBar{}, fmt.Errorf("bad date %q for %s: %w", date, code, err)
	}
	b := model.PriceBar{Code: code, Market: model.Market(market), Date: d}
	if b.High, err = decimal.NewFromString(high); err != nil {
		return model.PriceBar{}, fmt.Errorf("bad high for %s %s: %w", code, date, err)
	}
	if b.Low, err = decimal.NewFromString(low); err != nil {
		return model.PriceBar{}, fmt.Errorf("bad low for %s %s: %w", code, date, err)
	}
	if open.Valid {
		b.Open, _ = decimal.NewFromString(open.String)
	}
	if close.Valid {
		b.Close, _ = decimal.NewFromString(close.String)
	}
	return b, nil
}

// SaveBars upserts bars keyed by (code, market, date). Later saves win.
func (a *SQLiteArchive) SaveBars(ctx context.Context, bars []model.PriceBar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO daily_bars
		(code, market, date, open, high, low, close, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT(code, market, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, updated_at = excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx,
			b.Code, int(b.Market), model.Day(b.Date).Format(model.DateLayout),
			b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), now,
		); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", b.Code, b.Date.Format(model.DateLayout), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(bars), nil
}

// SaveSecurities upserts display names.
func (a *SQLiteArchive) SaveSecurities(ctx context.Context, secs []model.Security) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now().Unix()
	for _, s := range secs {
		if _, err := a.db.ExecContext(ctx, `INSERT INTO securities (code, name, updated_at) VALUES (?,?,?)
			ON CONFLICT(code) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
			s.Code, s.Name, now); err != nil {
			return fmt.Errorf("insert security %s: %w", s.Code, err)
		}
	}
	return nil
}

// FetchSecurities returns archived display names.
func (a *SQLiteArchive) FetchSecurities(ctx context.Context) ([]model.Security, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT code, name FROM securities ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query securities: %w", err)
	}
	defer rows.Close()

	var out []model.Security
	for rows.Next() {
		var s model.Security
		if err := rows.Scan(&s.Code, &s.Name); err != nil {
			return nil, fmt.Errorf("scan security: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (a *SQLiteArchive) Close() error {
	a.logger.Info().Msg("closing sqlite archive")
	return a.db.Close()
}
