package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"RiseScreener/internal/model"
)

// RowView is the wire form of one screening row. Multiple carries the ratio
// as a number under the key the existing highlow dashboard reads.
type RowView struct {
	Code       string  `json:"code"`
	Market     int     `json:"market"`
	Name       string  `json:"name"`
	Low        string  `json:"low"`
	LowDate    string  `json:"low_date"`
	High       string  `json:"high"`
	HighDate   string  `json:"high_date"`
	Ratio      string  `json:"ratio"`
	Multiple   float64 `json:"倍率"`
	OffsetDays int     `json:"offset_days"`
}

// RunView describes the run currently on the board.
type RunView struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Reference   string         `json:"reference_date,omitempty"`
	Buckets     map[string]int `json:"buckets"`
}

// NewRowViews converts rows for output. The result is never nil.
func NewRowViews(rows []model.ScreeningRow) []RowView {
	out := make([]RowView, 0, len(rows))
	for _, r := range rows {
		out = append(out, RowView{
			Code:       r.Code,
			Market:     int(r.Market),
			Name:       r.Name,
			Low:        r.LowBar.Low.String(),
			LowDate:    r.LowBar.Date.Format(model.DateLayout),
			High:       r.HighBar.High.String(),
			HighDate:   r.HighBar.Date.Format(model.DateLayout),
			Ratio:      r.Ratio.Round(4).String(),
			Multiple:   r.Ratio.Round(4).InexactFloat64(),
			OffsetDays: r.OffsetDays,
		})
	}
	return out
}

// ParseBucket accepts a bucket number or one of the aliases today and yesterday.
func ParseBucket(s string, maxBucket int) (int, error) {
	var b int
	switch s {
	case "today":
		b = 0
	case "yesterday":
		b = 1
	default:
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid bucket %q", s)
		}
		b = n
	}
	if b < 0 || b > maxBucket {
		return 0, fmt.Errorf("bucket %d outside 0..%d", b, maxBucket)
	}
	return b, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"ready":  s.board.Latest() != nil,
	})
}

// handleHighLow handles GET /api/highlow/{bucket}.
func (s *Server) handleHighLow(w http.ResponseWriter, r *http.Request) {
	bucket, err := ParseBucket(r.PathValue("bucket"), s.maxBucket)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	br, _, ok := s.board.Bucket(bucket)
	if !ok {
		if s.board.Latest() == nil {
			WriteError(w, http.StatusServiceUnavailable, "no screening run has completed yet")
			return
		}
		// bucket beyond the run's configured range
		WriteJSON(w, http.StatusOK, []RowView{})
		return
	}
	WriteJSON(w, http.StatusOK, NewRowViews(br.Rows))
}

// handleLatestRun handles GET /api/runs/latest.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	res := s.board.Latest()
	if res == nil {
		WriteError(w, http.StatusServiceUnavailable, "no screening run has completed yet")
		return
	}
	view := RunView{
		RunID:       res.RunID,
		GeneratedAt: res.GeneratedAt,
		Buckets:     make(map[string]int, len(res.Buckets)),
	}
	if !res.Reference.IsZero() {
		view.Reference = res.Reference.Format(model.DateLayout)
	}
	for b, br := range res.Buckets {
		view.Buckets[strconv.Itoa(b)] = len(br.Rows)
	}
	WriteJSON(w, http.StatusOK, view)
}
