package stats

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/kicktrain/internal/model"
)

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{2, 4, 6, 8}, 2)
	want := []float64{2, 3, 5, 7}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("index %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestRateReaction(t *testing.T) {
	cases := map[float64]string{
		120:  "lightning",
		300:  "fast",
		699:  "good",
		999:  "slow",
		1500: "too slow",
	}
	for ms, want := range cases {
		if got := RateReaction(ms).Label; got != want {
			t.Fatalf("%vms: expected %q, got %q", ms, want, got)
		}
	}
}

func TestSummarizeTimerPercentiles(t *testing.T) {
	var samples []model.ReactionSample
	for i := 1; i <= 10; i++ {
		samples = append(samples, model.ReactionSample{Segment: 1, TimeMs: float64(i * 100), Hit: true, Round: i})
	}
	samples = append(samples, model.ReactionSample{Segment: 2, TimeMs: 50, Hit: false, Round: 11})
	rep := SummarizeTimer(model.TimerStats{ReactionTimes: samples})
	if rep.Hits != 10 || rep.Best != 100 || rep.Worst != 1000 {
		t.Fatalf("misses must be excluded: %+v", rep)
	}
	if rep.P25 != 300 || rep.P50 != 600 || rep.P95 != 1000 {
		t.Fatalf("unexpected percentiles: %+v", rep)
	}
}

func historyWithRates(rates ...[2]int) []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(rates))
	for i, r := range rates {
		s := model.NewSession(model.ModeFree, model.ModeParams{}, time.Unix(int64(i)*60, 0))
		s.Hits, s.Total = r[0], r[1]
		s.Misses = r[1] - r[0]
		s.SegmentStats[0] = model.SegmentStat{Hits: r[0], Attempts: r[1]}
		out[i] = model.HistoryEntry{ID: "s", SessionState: s}
	}
	return out
}

func TestComputeTrends(t *testing.T) {
	if _, ok := ComputeTrends(historyWithRates([2]int{1, 2})); ok {
		t.Fatalf("one session is not enough")
	}
	history := historyWithRates([2]int{0, 10}, [2]int{2, 10}, [2]int{4, 10}, [2]int{6, 10}, [2]int{8, 10}, [2]int{10, 10})
	tr, ok := ComputeTrends(history)
	if !ok {
		t.Fatalf("expected trends")
	}
	if tr.Sessions != 5 || tr.Trend != 80 || tr.AvgHitRate != 60 {
		t.Fatalf("unexpected trends: %+v", tr)
	}
	if tr.SegmentTrend[0] != 80 || tr.SegmentTrend[1] != 0 {
		t.Fatalf("unexpected segment trends: %v", tr.SegmentTrend)
	}
}

func TestRenderHistoryNewestFirst(t *testing.T) {
	var buf bytes.Buffer
	history := historyWithRates([2]int{1, 4}, [2]int{2, 4}, [2]int{3, 4})
	if err := RenderHistory(&buf, history, 2); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "1/4") {
		t.Fatalf("expected oldest session to be cut: %q", out)
	}
	if strings.Index(out, "3/4") > strings.Index(out, "2/4") {
		t.Fatalf("expected newest first: %q", out)
	}
}

func TestRenderSessionShowsPerfectionProgress(t *testing.T) {
	s := model.NewSession(model.ModePerfection, model.ModeParams{PerfectionTarget: 3}, time.Unix(0, 0))
	s.PerfectionProgress[1] = model.PerfectionProgress{Current: 3, Completed: true}
	var buf bytes.Buffer
	if err := RenderSession(&buf, s); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Segment 2: 3/3 done") {
		t.Fatalf("missing progress line: %q", buf.String())
	}
}

func TestRenderSummaryAndCurves(t *testing.T) {
	var buf bytes.Buffer
	lifetime := model.LifetimeStats{TotalSessions: 2, TotalShots: 10, TotalHits: 7, TotalMisses: 3, BestStreak: 4}
	lifetime.SegmentStats[4] = model.SegmentStat{Hits: 1, Attempts: 5}
	if err := RenderSummary(&buf, lifetime); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(buf.String(), "Hit rate: 70.0%") || !strings.Contains(buf.String(), "Focus segments: 5") {
		t.Fatalf("unexpected summary: %q", buf.String())
	}
	buf.Reset()
	if err := RenderCurves(&buf, historyWithRates([2]int{1, 2}, [2]int{2, 2}), 2, 20, false); err != nil {
		t.Fatalf("render curves: %v", err)
	}
	if !strings.Contains(buf.String(), "Legend: All 75%") {
		t.Fatalf("unexpected curves: %q", buf.String())
	}
}
