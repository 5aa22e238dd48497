package stats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jsales362-jpg/betsignal/pkg/signal"
)

func resolved(status signal.ResolutionStatus, odd float64, ts int64) signal.Signal {
	return signal.Signal{
		MatchID:       "m1",
		Type:          signal.TypeGoal,
		OddSuggested:  odd,
		FullTimestamp: ts,
		Status:        status,
	}
}

func TestComputeROI(t *testing.T) {
	// One win at 2.50 contributes +1.50, one loss contributes -1.00.
	m := Compute([]signal.Signal{
		resolved(signal.StatusWin, 2.5, 1000),
		resolved(signal.StatusLoss, 1.8, 2000),
	})

	if !m.ROI.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("ROI = %s, want 0.5", m.ROI)
	}
	if m.Wins != 1 || m.Losses != 1 || m.Total != 2 {
		t.Errorf("counts = %d/%d/%d", m.Wins, m.Losses, m.Total)
	}
	if m.WinRate != 50 {
		t.Errorf("WinRate = %v, want 50", m.WinRate)
	}
}

func TestComputeSingleWin(t *testing.T) {
	m := Compute([]signal.Signal{resolved(signal.StatusWin, 2.5, 1000)})
	if !m.ROI.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("ROI = %s, want 1.5", m.ROI)
	}
	if m.WinRate != 100 {
		t.Errorf("WinRate = %v, want 100", m.WinRate)
	}
}

func TestComputePendingOnly(t *testing.T) {
	m := Compute([]signal.Signal{
		resolved(signal.StatusPending, 2.0, 1000),
		resolved(signal.StatusPending, 3.0, 2000),
	})

	if m.WinRate != 0 {
		t.Errorf("WinRate over zero resolved = %v, want 0", m.WinRate)
	}
	if !m.ROI.IsZero() {
		t.Errorf("ROI over pending signals = %s, want 0", m.ROI)
	}
	if m.Total != 2 {
		t.Errorf("Total = %d, want 2", m.Total)
	}
}

func TestComputeEmpty(t *testing.T) {
	m := Compute(nil)
	if m.Total != 0 || m.WinRate != 0 || !m.ROI.IsZero() {
		t.Errorf("empty input produced %+v", m)
	}
}

func TestAverageOddFallback(t *testing.T) {
	got := AverageOdd([]signal.Signal{resolved(signal.StatusPending, 3.0, 1000)})
	if !got.Equal(DefaultAverageOdd) {
		t.Errorf("AverageOdd with nothing resolved = %s, want %s", got, DefaultAverageOdd)
	}
}

func TestAverageOddMean(t *testing.T) {
	got := AverageOdd([]signal.Signal{
		resolved(signal.StatusWin, 2.0, 1000),
		resolved(signal.StatusLoss, 3.0, 2000),
		resolved(signal.StatusPending, 99.0, 3000), // excluded
	})
	if !got.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("AverageOdd = %s, want 2.5", got)
	}
}

func TestWeeklyTrendCapsAtSixWeeks(t *testing.T) {
	// Eight consecutive weeks of resolved signals, one per week.
	base := time.Date(2026, 6, 7, 12, 0, 0, 0, time.Local) // a Sunday
	var signals []signal.Signal
	for week := 0; week < 8; week++ {
		ts := base.AddDate(0, 0, 7*week)
		signals = append(signals, resolved(signal.StatusWin, 2.0, ts.UnixMilli()))
	}

	trend := WeeklyTrend(signals)
	if len(trend) != TrendWeeks {
		t.Fatalf("trend has %d buckets, want %d", len(trend), TrendWeeks)
	}

	// Ascending week order, and the two oldest weeks dropped.
	for i := 1; i < len(trend); i++ {
		if !trend[i-1].WeekStart.Before(trend[i].WeekStart) {
			t.Fatalf("buckets not ascending at %d", i)
		}
	}
	wantFirst := weekStart(base.AddDate(0, 0, 14))
	if !trend[0].WeekStart.Equal(wantFirst) {
		t.Errorf("first bucket = %v, want %v", trend[0].WeekStart, wantFirst)
	}
}

func TestWeeklyTrendBucketMetrics(t *testing.T) {
	sunday := time.Date(2026, 8, 2, 0, 0, 0, 0, time.Local)
	signals := []signal.Signal{
		resolved(signal.StatusWin, 2.0, sunday.Add(2*time.Hour).UnixMilli()),
		resolved(signal.StatusLoss, 2.0, sunday.AddDate(0, 0, 3).UnixMilli()),
		resolved(signal.StatusPending, 2.0, sunday.UnixMilli()), // excluded
	}

	trend := WeeklyTrend(signals)
	if len(trend) != 1 {
		t.Fatalf("trend has %d buckets, want 1", len(trend))
	}

	b := trend[0]
	if b.WinRate != 50 {
		t.Errorf("bucket WinRate = %v, want 50", b.WinRate)
	}
	if !b.ROI.IsZero() {
		t.Errorf("bucket ROI = %s, want 0", b.ROI)
	}
	if b.Label != sunday.Format("02/01") {
		t.Errorf("bucket label = %q, want %q", b.Label, sunday.Format("02/01"))
	}
}

func TestWeekStartIsSunday(t *testing.T) {
	// 2026-06-10 is a Wednesday; its week starts Sunday 2026-06-07.
	wed := time.Date(2026, 6, 10, 15, 30, 0, 0, time.Local)
	got := weekStart(wed)
	want := time.Date(2026, 6, 7, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("weekStart = %v, want %v", got, want)
	}
	if got.Weekday() != time.Sunday {
		t.Errorf("weekStart weekday = %v", got.Weekday())
	}
}

func TestStartOfDay(t *testing.T) {
	now := time.Date(2026, 9, 1, 18, 45, 12, 0, time.Local)
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local).UnixMilli()
	if got := StartOfDay(now); got != want {
		t.Errorf("StartOfDay = %d, want %d", got, want)
	}
}
