package recorder

import (
	"context"
	"time"

	"RiseScreener/internal/model"
)

// NoopArchive is used when SQLite is not configured.
type NoopArchive struct{}

func NewNoopArchive() *NoopArchive { return &NoopArchive{} }

func (n *NoopArchive) Name() string { return "noop" }
func (n *NoopArchive) FetchBars(_ context.Context, _, _ time.Time) ([]model.PriceBar, error) {
	return nil, nil
}
func (n *NoopArchive) SaveBars(_ context.Context, _ []model.PriceBar) (int, error) { return 0, nil }
func (n *NoopArchive) Close() error                                               { return nil }
