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

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"RiseScreener/internal/model"
	"RiseScreener/internal/strategy"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// HTTPSource reads daily bars from a JSON REST API.
type HTTPSource struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) HTTPOption {
	return func(s *HTTPSource) {
		s.apiKey = key
	}
}

// WithProxy routes requests through proxyURL. Invalid URLs are ignored.
func WithProxy(proxyURL string) HTTPOption {
	return func(s *HTTPSource) {
		s.client.Transport = proxyTransport(proxyURL)
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(requestsPerSecond int) HTTPOption {
	return func(s *HTTPSource) {
		if requestsPerSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(s *HTTPSource) {
		s.client.Timeout = timeout
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) HTTPOption {
	return func(s *HTTPSource) {
		s.logger = logger
	}
}

// NewHTTPSource creates a source rooted at baseURL.
func NewHTTPSource(name, baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *HTTPSource) Name() string { return s.name }

// flexString accepts a JSON string or number; codes like 7203 arrive both ways.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*f = flexString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*f = flexString(num.String())
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into string", string(data))
}

// wireBar is the JSON shape served by the bar API.
type wireBar struct {
	Code   flexString      `json:"code"`
	Market int             `json:"market"`
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
}

type wireSecurity struct {
	Code flexString `json:"code"`
	Name string     `json:"name"`
}

// FetchBars returns all bars dated within [from, to].
func (s *HTTPSource) FetchBars(ctx context.Context, from, to time.Time) ([]model.PriceBar, error) {
	q := url.Values{}
	q.Set("from", from.Format(model.DateLayout))
	q.Set("to", to.Format(model.DateLayout))
	return s.fetchBars(ctx, "/api/v1/bars/daily?"+q.Encode())
}

// FetchSeries returns one security's bars dated within [from, to].
func (s *HTTPSource) FetchSeries(ctx context.Context, key model.SecurityKey, from, to time.Time) ([]model.PriceBar, error) {
	q := url.Values{}
	q.Set("market", strconv.Itoa(int(key.Market)))
	q.Set("from", from.Format(model.DateLayout))
	q.Set("to", to.Format(model.DateLayout))
	return s.fetchBars(ctx, "/api/v1/bars/daily/"+url.PathEscape(key.Code)+"?"+q.Encode())
}

// FetchSecurities returns code/name pairs.
func (s *HTTPSource) FetchSecurities(ctx context.Context) ([]model.Security, error) {
	var wire []wireSecurity
	if err := s.get(ctx, "/api/v1/securities", &wire); err != nil {
		return nil, err
	}
	out := make([]model.Security, 0, len(wire))
	for _, w := range wire {
		out = append(out, model.Security{Code: string(w.Code), Name: w.Name})
	}
	return out, nil
}

func (s *HTTPSource) fetchBars(ctx context.Context, path string) ([]model.PriceBar, error) {
	var wire []wireBar
	if err := s.get(ctx, path, &wire); err != nil {
		return nil, err
	}
	bars := make([]model.PriceBar, 0, len(wire))
	for _, w := range wire {
		date, err := model.ParseDay(w.Date)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: bad date %q for %s", s.name, strategy.ErrSourceUnavailable, w.Date, w.Code)
		}
		bars = append(bars, model.PriceBar{
			Code:   string(w.Code),
			Market: model.Market(w.Market),
			Date:   date,
			Open:   w.Open,
			High:   w.High,
			Low:    w.Low,
			Close:  w.Close,
		})
	}
	s.logger.Debug().Str("source", s.name).Str("path", path).Int("bars", len(bars)).Msg("fetched bars")
	return bars, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w: rate limiter: %w", s.name, strategy.ErrSourceUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", s.name, strategy.ErrSourceUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", s.name, strategy.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: %w: status %d, body: %s", s.name, strategy.ErrSourceUnavailable, resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: %w: decode: %w", s.name, strategy.ErrSourceUnavailable, err)
	}
	return nil
}

func proxyTransport(proxyURL string) *http.Transport {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return transport
}
