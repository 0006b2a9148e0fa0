package scheduler

import (
	"sync"
	"time"

	"RiseScreener/internal/model"
)

// BucketResult is one bucket of a published run. Date is zero when the
// snapshot has fewer trading dates than the bucket needs.
type BucketResult struct {
	Date time.Time
	Rows []model.ScreeningRow
}

// Result is the output of one completed screening run.
type Result struct {
	RunID       string
	GeneratedAt time.Time
	Reference   time.Time
	Buckets     map[int]BucketResult
}

// Board holds the most recent successful run for readers.
type Board struct {
	mu     sync.RWMutex
	latest *Result
}

func NewBoard() *Board { return &Board{} }

// Publish replaces the current result.
func (b *Board) Publish(r *Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = r
}

// Latest returns the current result, or nil before the first run.
func (b *Board) Latest() *Result {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// Bucket returns one bucket of the current result.
func (b *Board) Bucket(bucket int) (BucketResult, *Result, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.latest == nil {
		return BucketResult{}, nil, false
	}
	br, ok := b.latest.Buckets[bucket]
	return br, b.latest, ok
}
