package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"RiseScreener/internal/model"
	"RiseScreener/internal/strategy"
)

// multiBarsClient is the slice of the Alpaca market data client we use.
type multiBarsClient interface {
	GetMultiBars(symbols []string, req marketdata.GetBarsRequest) (map[string][]marketdata.Bar, error)
}

// AlpacaSource reads raw (unadjusted) daily bars for a fixed symbol list from
// Alpaca market data. Every bar is tagged with the configured market.
type AlpacaSource struct {
	client  multiBarsClient
	symbols []string
	market  model.Market
}

// NewAlpacaSource creates a source backed by the Alpaca market data API.
func NewAlpacaSource(apiKey, apiSecret string, symbols []string, market model.Market) *AlpacaSource {
	client := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	})
	return &AlpacaSource{client: client, symbols: symbols, market: market}
}

func (a *AlpacaSource) Name() string { return "alpaca" }

// FetchBars returns daily bars for every configured symbol within [from, to].
func (a *AlpacaSource) FetchBars(ctx context.Context, from, to time.Time) ([]model.PriceBar, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("alpaca: %w: %w", strategy.ErrSourceUnavailable, err)
	}
	if len(a.symbols) == 0 {
		return nil, nil
	}
	bySymbol, err := a.client.GetMultiBars(a.symbols, marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Adjustment: marketdata.Raw,
		Start:      from,
		End:        to.AddDate(0, 0, 1),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca get bars: %w: %w", strategy.ErrSourceUnavailable, err)
	}

	var out []model.PriceBar
	for _, sym := range a.symbols {
		for _, b := range bySymbol[sym] {
			out = append(out, model.PriceBar{
				Code:   sym,
				Market: a.market,
				Date:   model.Day(b.Timestamp.UTC()),
				Open:   decimal.NewFromFloat(b.Open),
				High:   decimal.NewFromFloat(b.High),
				Low:    decimal.NewFromFloat(b.Low),
				Close:  decimal.NewFromFloat(b.Close),
			})
		}
	}
	return out, nil
}
