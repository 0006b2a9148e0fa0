package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "screener_runs_total", Help: "Screening runs by outcome"},
		[]string{"status"},
	)
	Rows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "screener_rows", Help: "Rows produced by the latest run per bucket"},
		[]string{"bucket"},
	)
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "screener_run_duration_seconds",
			Help:    "Wall time of a full screening run",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)
	BarsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "screener_bars_ingested_total", Help: "Daily bars fetched per source"},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(RunsTotal, Rows, RunDuration, BarsIngested)
}

// ObserveRun records the outcome and duration of one run.
func ObserveRun(err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(elapsed.Seconds())
}

// SetRows publishes the row count of each bucket.
func SetRows(counts map[int]int) {
	for bucket, n := range counts {
		Rows.WithLabelValues(strconv.Itoa(bucket)).Set(float64(n))
	}
}

func AddBars(source string, n int) {
	BarsIngested.WithLabelValues(source).Add(float64(n))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
