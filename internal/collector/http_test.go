package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RiseScreener/internal/model"
	"RiseScreener/internal/strategy"
)

var day0 = time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC)

func TestHTTPSource_FetchBars(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/bars/daily", r.URL.Path)
		assert.Equal(t, "2025-05-30", r.URL.Query().Get("from"))
		assert.Equal(t, "2025-06-13", r.URL.Query().Get("to"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"code": 7203, "market": 111, "date": "2025-06-13", "open": 100, "high": "145.5", "low": 99.9, "close": 140},
			{"code": "130A", "market": 113, "date": "2025-06-12", "open": null, "high": 10, "low": 0, "close": 9}
		]`))
	}))
	defer srv.Close()

	src := NewHTTPSource("live", srv.URL+"/", WithAPIKey("secret"), WithRateLimit(100))
	bars, err := src.FetchBars(context.Background(), day0.AddDate(0, 0, -14), day0)
	require.NoError(t, err)
	require.Len(t, bars, 2)

	assert.Equal(t, "7203", bars[0].Code)
	assert.Equal(t, model.MarketTSEPrime, bars[0].Market)
	assert.Equal(t, day0, bars[0].Date)
	assert.True(t, bars[0].High.Equal(decimal.RequireFromString("145.5")))
	assert.True(t, bars[0].Low.Equal(decimal.RequireFromString("99.9")))

	assert.Equal(t, "130A", bars[1].Code)
	assert.True(t, bars[1].Low.IsZero())
	assert.False(t, bars[1].Valid())
	assert.Equal(t, "live", src.Name())
}

func TestHTTPSource_FetchSeriesAndSecurities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/bars/daily/7203":
			assert.Equal(t, "111", r.URL.Query().Get("market"))
			_, _ = w.Write([]byte(`[{"code":"7203","market":111,"date":"2025-06-12","high":120,"low":110}]`))
		case "/api/v1/securities":
			_, _ = w.Write([]byte(`[{"code":7203,"name":"Toyota"},{"code":"6758","name":"Sony"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src := NewHTTPSource("hist", srv.URL)
	key := model.SecurityKey{Code: "7203", Market: model.MarketTSEPrime}
	bars, err := src.FetchSeries(context.Background(), key, day0, day0)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, "120", bars[0].High.String())

	secs, err := src.FetchSecurities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Security{{Code: "7203", Name: "Toyota"}, {Code: "6758", Name: "Sony"}}, secs)
}

func TestHTTPSource_FailuresAreSourceUnavailable(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"`))
		}},
		{"bad date", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"code":"1","market":111,"date":"13/06/2025","high":1,"low":1}]`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewHTTPSource("x", srv.URL).FetchBars(context.Background(), day0, day0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, strategy.ErrSourceUnavailable), "got %v", err)
		})
	}
}

func TestHTTPSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPSource("x", url, WithTimeout(time.Second)).FetchBars(context.Background(), day0, day0)
	assert.True(t, errors.Is(err, strategy.ErrSourceUnavailable))
}
