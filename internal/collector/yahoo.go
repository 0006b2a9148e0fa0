package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"RiseScreener/internal/model"
	"RiseScreener/internal/strategy"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooSource reads daily candles for a fixed symbol list from the Yahoo
// Finance chart API. Every bar is tagged with the configured market.
type YahooSource struct {
	BaseURL string
	Client  *http.Client
	Symbols []string // Yahoo tickers, e.g. "7203.T"
	Market  model.Market
}

// NewYahooSource creates a Yahoo source with optional proxy support.
func NewYahooSource(symbols []string, market model.Market, proxyURL string) *YahooSource {
	return &YahooSource{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   DefaultTimeout,
			Transport: proxyTransport(proxyURL),
		},
		Symbols: symbols,
		Market:  market,
	}
}

func (f *YahooSource) Name() string { return "yahoo" }

// yahooChart is the response structure from the chart API. Missing
// values (holidays, halted days) arrive as null.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open  []*float64 `json:"open"`
					High  []*float64 `json:"high"`
					Low   []*float64 `json:"low"`
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// securityCode strips the exchange suffix: "7203.T" becomes "7203".
func securityCode(symbol string) string {
	code, _, _ := strings.Cut(symbol, ".")
	return code
}

func at(vals []*float64, i int) (decimal.Decimal, bool) {
	if i >= len(vals) || vals[i] == nil {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(*vals[i]), true
}

// FetchBars fetches every configured symbol. One failing symbol fails the call.
func (f *YahooSource) FetchBars(ctx context.Context, from, to time.Time) ([]model.PriceBar, error) {
	var out []model.PriceBar
	for _, sym := range f.Symbols {
		bars, err := f.fetchChart(ctx, sym, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, bars...)
	}
	return out, nil
}

func (f *YahooSource) fetchChart(ctx context.Context, symbol string, from, to time.Time) ([]model.PriceBar, error) {
	q := url.Values{}
	q.Set("interval", "1d")
	q.Set("period1", strconv.FormatInt(from.Unix(), 10))
	q.Set("period2", strconv.FormatInt(to.AddDate(0, 0, 1).Unix(), 10))
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", f.BaseURL, url.PathEscape(symbol), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo: %w: %w", strategy.ErrSourceUnavailable, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w: %w", symbol, strategy.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w: %w", strategy.ErrSourceUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo %s: %w: status %d", symbol, strategy.ErrSourceUnavailable, resp.StatusCode)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w: %w", strategy.ErrSourceUnavailable, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %w: %s", strategy.ErrSourceUnavailable, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		// No trading in the range is not a failure.
		return nil, nil
	}

	result := chart.Chart.Result[0]
	quote := result.Indicators.Quote[0]
	code := securityCode(symbol)
	bars := make([]model.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		h, okH := at(quote.High, i)
		l, okL := at(quote.Low, i)
		if !okH && !okL {
			continue // null bar
		}
		o, _ := at(quote.Open, i)
		c, _ := at(quote.Close, i)
		bars = append(bars, model.PriceBar{
			Code:   code,
			Market: f.Market,
			Date:   model.Day(time.Unix(ts, 0).UTC()),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
		})
	}
	return bars, nil
}
