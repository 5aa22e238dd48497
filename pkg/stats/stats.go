// Package stats computes read-side performance analytics over signal
// history: win rate, flat-stake ROI and weekly trend buckets. All
// functions are pure; identical input yields identical output.
package stats

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jsales362-jpg/betsignal/pkg/signal"
)

// DefaultAverageOdd is reported when no signal has resolved yet.
var DefaultAverageOdd = decimal.NewFromFloat(1.85)

// TrendWeeks caps the weekly trend at the most recent weeks present.
const TrendWeeks = 6

// Metrics summarizes a slice of signals. Pending entries count toward
// Total but are excluded from the win-rate denominator and contribute
// nothing to ROI.
type Metrics struct {
	Wins    int             `json:"wins"`
	Losses  int             `json:"losses"`
	Total   int             `json:"total"`
	WinRate float64         `json:"winRate"` // percent
	ROI     decimal.Decimal `json:"roi"`     // flat-stake units
}

// Compute derives Metrics from signals. With no resolved signals the
// win rate is defined as 0, not an error.
func Compute(signals []signal.Signal) Metrics {
	m := Metrics{Total: len(signals), ROI: decimal.Zero}

	one := decimal.NewFromInt(1)
	for _, s := range signals {
		switch s.Status {
		case signal.StatusWin:
			m.Wins++
			m.ROI = m.ROI.Add(decimal.NewFromFloat(s.OddSuggested).Sub(one))
		case signal.StatusLoss:
			m.Losses++
			m.ROI = m.ROI.Sub(one)
		}
	}

	if resolved := m.Wins + m.Losses; resolved > 0 {
		m.WinRate = float64(m.Wins) / float64(resolved) * 100
	}
	return m
}

// AverageOdd returns the arithmetic mean suggested odd over resolved
// signals, or DefaultAverageOdd when nothing has resolved.
func AverageOdd(signals []signal.Signal) decimal.Decimal {
	sum := decimal.Zero
	n := 0
	for _, s := range signals {
		if s.Resolved() {
			sum = sum.Add(decimal.NewFromFloat(s.OddSuggested))
			n++
		}
	}
	if n == 0 {
		return DefaultAverageOdd
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}

// WeekBucket is one calendar week of resolved performance.
type WeekBucket struct {
	Label     string          `json:"week"` // DD/MM of the week's Sunday
	WeekStart time.Time       `json:"-"`
	WinRate   float64         `json:"winRate"`
	ROI       decimal.Decimal `json:"roi"`
}

// WeeklyTrend groups resolved signals into Sunday-starting calendar
// weeks of their generation time, computes per-week metrics, and
// returns at most the TrendWeeks most recent buckets in ascending
// week order.
func WeeklyTrend(signals []signal.Signal) []WeekBucket {
	groups := make(map[time.Time][]signal.Signal)
	for _, s := range signals {
		if !s.Resolved() {
			continue
		}
		ws := weekStart(s.GeneratedAt())
		groups[ws] = append(groups[ws], s)
	}

	buckets := make([]WeekBucket, 0, len(groups))
	for ws, group := range groups {
		m := Compute(group)
		buckets = append(buckets, WeekBucket{
			Label:     ws.Format("02/01"),
			WeekStart: ws,
			WinRate:   m.WinRate,
			ROI:       m.ROI,
		})
	}

	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].WeekStart.Before(buckets[j].WeekStart)
	})
	if len(buckets) > TrendWeeks {
		buckets = buckets[len(buckets)-TrendWeeks:]
	}
	return buckets
}

// weekStart truncates t to midnight of its week's Sunday, local time.
func weekStart(t time.Time) time.Time {
	t = t.Local()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return midnight.AddDate(0, 0, -int(midnight.Weekday()))
}

// StartOfDay returns local midnight of t in epoch millis, the "today"
// boundary the history view queries with.
func StartOfDay(t time.Time) int64 {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).UnixMilli()
}
