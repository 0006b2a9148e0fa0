package recorder

import (
	"context"
	"time"

	"RiseScreener/internal/model"
)

// Archive keeps settled daily bars so they can serve as the historical
// source of later runs.
type Archive interface {
	Name() string
	FetchBars(ctx context.Context, from, to time.Time) ([]model.PriceBar, error)
	SaveBars(ctx context.Context, bars []model.PriceBar) (int, error)
	Close() error
}
