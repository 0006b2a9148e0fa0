package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"RiseScreener/internal/model"
)

// DefaultRowLimit caps rows per bucket in chat messages.
const DefaultRowLimit = 20

// FormatRunHeader formats the header of a run summary.
func FormatRunHeader(runID string, reference time.Time, counts map[int]int) string {
	var b strings.Builder
	ref := "n/a"
	if !reference.IsZero() {
		ref = reference.Format(model.DateLayout)
	}
	b.WriteString(fmt.Sprintf("📈 <b>Rise screen</b> | %s\n", ref))

	buckets := make([]int, 0, len(counts))
	for n := range counts {
		buckets = append(buckets, n)
	}
	sort.Ints(buckets)
	parts := make([]string, 0, len(buckets))
	for _, n := range buckets {
		parts = append(parts, fmt.Sprintf("%dd:%d", n, counts[n]))
	}
	b.WriteString(fmt.Sprintf("rows %s\n", strings.Join(parts, " ")))
	b.WriteString(fmt.Sprintf("<code>%s</code>\n", runID))
	return b.String()
}

// FormatBucket formats one bucket's rows, at most limit of them.
func FormatBucket(bucket int, date time.Time, rows []model.ScreeningRow, limit int) string {
	var b strings.Builder
	if date.IsZero() {
		b.WriteString(fmt.Sprintf("\n<b>%d days ago</b>: no data\n", bucket))
		return b.String()
	}
	b.WriteString(fmt.Sprintf("\n<b>%d days ago</b> (%s): %d\n", bucket, date.Format(model.DateLayout), len(rows)))
	if len(rows) == 0 {
		b.WriteString("  none\n")
		return b.String()
	}
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	for i, r := range rows {
		if i == limit {
			b.WriteString(fmt.Sprintf("  … %d more\n", len(rows)-limit))
			break
		}
		name := r.Name
		if name == "" {
			name = "-"
		}
		b.WriteString(fmt.Sprintf("  %s %s ×%s  %s→%s\n",
			r.Code, html.EscapeString(name), r.Ratio.StringFixed(2),
			r.LowBar.Low.String(), r.HighBar.High.String()))
	}
	return b.String()
}

// FormatHelp lists the chat commands.
func FormatHelp(maxBucket int) string {
	return fmt.Sprintf("Commands:\n• /today\n• /yesterday\n• /bucket N (0-%d)\n• /run", maxBucket)
}
