package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"RiseScreener/internal/barstore"
	"RiseScreener/internal/calculator"
	"RiseScreener/internal/model"
)

// Engine screens every security of one Bar Store snapshot. It keeps no state
// between calls, so Screen is safe to call repeatedly and concurrently.
type Engine struct {
	store     *barstore.Store
	policy    Policy
	calendar  *calculator.Calendar
	evaluator *Evaluator
	verifier  Verifier
	logger    zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithVerifier enables the secondary-source cross-check for qualifying rows.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) {
		e.verifier = v
	}
}

// WithLogger sets the logger used for per-security debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine validates policy and prepares an engine over store.
func NewEngine(store *barstore.Store, policy Policy, opts ...Option) (*Engine, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("%w: nil bar store", ErrConfiguration)
	}
	if policy.TieBreak == nil {
		policy.TieBreak = calculator.EarliestDate
	}
	cal := calculator.NewCalendar(store.Dates())
	e := &Engine{
		store:     store,
		policy:    policy,
		calendar:  cal,
		evaluator: NewEvaluator(policy, cal),
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Reference returns the most recent trading date in the snapshot.
func (e *Engine) Reference() (time.Time, bool) {
	return e.calendar.Reference()
}

// BucketDate returns the trading date a bucket stands for. It reports false
// when the data holds too few distinct dates.
func (e *Engine) BucketDate(bucket int) (time.Time, bool) {
	return e.calendar.DateAt(bucket)
}

// Policy returns the policy the engine was built with.
func (e *Engine) Policy() Policy { return e.policy }

// Screen returns the qualifying rows for bucket, highest ratio first.
// An empty result is a normal outcome. Errors are returned only for an
// unknown bucket or a failing verifier.
func (e *Engine) Screen(ctx context.Context, bucket int) ([]model.ScreeningRow, error) {
	if err := e.policy.CheckBucket(bucket); err != nil {
		return nil, err
	}
	rows := []model.ScreeningRow{}
	if _, ok := e.calendar.DateAt(bucket); !ok {
		e.logger.Debug().Int("bucket", bucket).Int("dates", e.calendar.Len()).Msg(reasonNoData)
		return rows, nil
	}

	for _, key := range e.store.Securities() {
		series, _ := e.store.Series(key)
		row, reason := e.evaluator.evaluate(series, bucket)
		if reason != "" {
			e.logger.Debug().Stringer("security", key).Int("bucket", bucket).Msg(reason)
			continue
		}
		if e.verifier != nil {
			ok, err := e.verifier.VerifyHigh(ctx, key, row.HighBar)
			if err != nil {
				return nil, fmt.Errorf("verify %s: %w", key, err)
			}
			if !ok {
				e.logger.Debug().Stringer("security", key).Int("bucket", bucket).Msg(reasonUnverified)
				continue
			}
		}
		row.Name = e.store.Name(key.Code)
		rows = append(rows, row)
	}

	SortRows(rows)
	return rows, nil
}

// ScreenAll screens every bucket from 0 to the policy's MaxBucket.
func (e *Engine) ScreenAll(ctx context.Context) (map[int][]model.ScreeningRow, error) {
	out := make(map[int][]model.ScreeningRow, e.policy.MaxBucket+1)
	for b := 0; b <= e.policy.MaxBucket; b++ {
		rows, err := e.Screen(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("bucket %d: %w", b, err)
		}
		out[b] = rows
	}
	return out, nil
}

// SortRows orders rows by ratio descending, then code and market ascending.
func SortRows(rows []model.ScreeningRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if c := rows[i].Ratio.Cmp(rows[j].Ratio); c != 0 {
			return c > 0
		}
		if rows[i].Code != rows[j].Code {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Market < rows[j].Market
	})
}
