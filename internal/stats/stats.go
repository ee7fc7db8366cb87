// Package stats contains statistics aggregation and reporting.
package stats

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/verte-zerg/kicktrain/internal/model"
)

const sparkChars = " .:-=+*#%@"

// trendWindow is the number of recent sessions compared for trends.
const trendWindow = 5

// HitRate returns hits/total, or 0 when nothing was attempted.
func HitRate(hits, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	if window <= 1 || len(values) == 0 {
		copy(out, values)
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		out[i] = sum / float64(minInt(i+1, window))
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = maxInt(0, minInt(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Rating classifies a reaction time.
type Rating struct {
	Label string
	Band  int
}

// RateReaction maps a reaction time in milliseconds to a rating band.
func RateReaction(ms float64) Rating {
	switch {
	case ms < 300:
		return Rating{Label: "lightning", Band: 0}
	case ms < 500:
		return Rating{Label: "fast", Band: 1}
	case ms < 700:
		return Rating{Label: "good", Band: 2}
	case ms < 1000:
		return Rating{Label: "slow", Band: 3}
	default:
		return Rating{Label: "too slow", Band: 4}
	}
}

// Percentile returns the value at floor(len*p) of an ascending slice.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Floor(float64(len(sorted)) * p))
	idx = maxInt(0, minInt(idx, len(sorted)-1))
	return sorted[idx]
}

// TimerReport summarizes TimerStats for display.
type TimerReport struct {
	Hits          int
	Avg           float64
	Best          float64
	Worst         float64
	P25           float64
	P50           float64
	P75           float64
	P95           float64
	TooEarly      int
	Timeouts      int
	SegmentAvg    [model.SegmentCount]float64
	SegmentCounts [model.SegmentCount]int
}

// SummarizeTimer computes percentiles and per-segment averages over hits.
func SummarizeTimer(ts model.TimerStats) TimerReport {
	rep := TimerReport{TooEarly: ts.TooEarlyShots, Timeouts: ts.Timeouts, Avg: ts.AvgReactionTime}
	var times []float64
	for _, r := range ts.ReactionTimes {
		if r.Hit {
			times = append(times, r.TimeMs)
		}
	}
	rep.Hits = len(times)
	if len(times) > 0 {
		sort.Float64s(times)
		rep.Best = times[0]
		rep.Worst = times[len(times)-1]
		rep.P25 = Percentile(times, 0.25)
		rep.P50 = Percentile(times, 0.50)
		rep.P75 = Percentile(times, 0.75)
		rep.P95 = Percentile(times, 0.95)
	}
	for i, samples := range ts.SegmentReactions {
		rep.SegmentCounts[i] = len(samples)
		if len(samples) == 0 {
			continue
		}
		total := 0.0
		for _, v := range samples {
			total += v
		}
		rep.SegmentAvg[i] = total / float64(len(samples))
	}
	return rep
}

// Trends compares the most recent sessions.
type Trends struct {
	Sessions     int
	AvgHitRate   float64
	Trend        float64
	Rates        []float64
	SegmentTrend [model.SegmentCount]float64
}

// ComputeTrends compares the first and last of the last five sessions. It
// needs at least two sessions.
func ComputeTrends(history []model.HistoryEntry) (Trends, bool) {
	if len(history) < 2 {
		return Trends{}, false
	}
	recent := history
	if len(recent) > trendWindow {
		recent = recent[len(recent)-trendWindow:]
	}
	rates := make([]float64, len(recent))
	total := 0.0
	for i, s := range recent {
		rates[i] = HitRate(s.Hits, s.Total) * 100
		total += rates[i]
	}
	tr := Trends{
		Sessions:   len(recent),
		AvgHitRate: total / float64(len(recent)),
		Trend:      rates[len(rates)-1] - rates[0],
		Rates:      rates,
	}
	first, last := recent[0], recent[len(recent)-1]
	for i := range tr.SegmentTrend {
		tr.SegmentTrend[i] = last.SegmentStats[i].HitRate(0)*100 - first.SegmentStats[i].HitRate(0)*100
	}
	return tr, true
}

// RenderSummary prints lifetime totals.
func RenderSummary(w io.Writer, lifetime model.LifetimeStats) error {
	lines := []string{
		"Lifetime",
		fmt.Sprintf("Sessions: %d", lifetime.TotalSessions),
		fmt.Sprintf("Shots: %d (hits %d, misses %d)", lifetime.TotalShots, lifetime.TotalHits, lifetime.TotalMisses),
		fmt.Sprintf("Hit rate: %.1f%%", HitRate(lifetime.TotalHits, lifetime.TotalShots)*100),
		fmt.Sprintf("Best streak: %d", lifetime.BestStreak),
	}
	if !lifetime.FirstPlayed.IsZero() {
		lines = append(lines, fmt.Sprintf("Playing since: %s", lifetime.FirstPlayed.Format("2006-01-02")))
	}
	if weak := WeakestSegments(lifetime.SegmentStats, 2); len(weak) > 0 {
		labels := make([]string, len(weak))
		for i, seg := range weak {
			labels[i] = fmt.Sprintf("%d", seg)
		}
		lines = append(lines, fmt.Sprintf("Focus segments: %s", strings.Join(labels, ", ")))
	}
	return writeLines(w, append(lines, ""))
}

// RenderSession prints the running session with perfection progress.
func RenderSession(w io.Writer, session model.SessionState) error {
	lines := []string{
		fmt.Sprintf("Mode: %s", session.Mode),
		fmt.Sprintf("Hits: %d / %d", session.Hits, session.Total),
		fmt.Sprintf("Hit rate: %.0f%%", session.HitRate()*100),
		fmt.Sprintf("Best streak: %d", session.StreakBest),
	}
	if session.Mode == model.ModePerfection {
		lines = append(lines, "Progress:")
		for _, seg := range model.Segments {
			prog := session.PerfectionProgress[seg.Index()]
			mark := ""
			if prog.Completed {
				mark = " done"
			}
			lines = append(lines, fmt.Sprintf("  Segment %d: %d/%d%s", seg, prog.Current, session.PerfectionTarget, mark))
		}
	}
	if session.Mode == model.ModeTarget {
		lines = append(lines, fmt.Sprintf("Goal: %d/%d", session.Hits, session.TargetGoal))
	}
	if err := writeLines(w, append(lines, "")); err != nil {
		return err
	}
	return RenderSegmentTable(w, "Segments", session.SegmentStats)
}

// RenderSegmentTable prints hit rates per segment.
func RenderSegmentTable(w io.Writer, title string, segs model.SegmentStats) error {
	headers := []string{"Segment", "Hit rate", "Hits", "Attempts", ""}
	rows := make([][]string, 0, model.SegmentCount)
	for _, seg := range model.Segments {
		st := segs[seg.Index()]
		rate := st.HitRate(0)
		rows = append(rows, []string{
			fmt.Sprintf("%d", seg),
			fmt.Sprintf("%.0f%%", rate*100),
			fmt.Sprintf("%d", st.Hits),
			fmt.Sprintf("%d", st.Attempts),
			bar(rate, 20),
		})
	}
	lines := append([]string{title}, formatTable(headers, rows, 1, 2, 3)...)
	return writeLines(w, append(lines, ""))
}

// RenderHistory prints the newest n sessions, newest first.
func RenderHistory(w io.Writer, history []model.HistoryEntry, n int) error {
	if len(history) == 0 {
		return writeLines(w, []string{"No finished sessions yet.", ""})
	}
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	headers := []string{"Date", "Mode", "Hits", "Rate", "Streak", "Avg reaction"}
	rows := make([][]string, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		s := history[i]
		reaction := "-"
		if s.TimerStats != nil && s.TimerStats.AvgReactionTime > 0 {
			reaction = fmt.Sprintf("%.0fms", s.TimerStats.AvgReactionTime)
		}
		rows = append(rows, []string{
			s.StartTime.Local().Format("2006-01-02 15:04"),
			string(s.Mode),
			fmt.Sprintf("%d/%d", s.Hits, s.Total),
			fmt.Sprintf("%.0f%%", s.HitRate()*100),
			fmt.Sprintf("%d", s.StreakBest),
			reaction,
		})
	}
	lines := append([]string{"History"}, formatTable(headers, rows, 2, 3, 4, 5)...)
	return writeLines(w, append(lines, ""))
}

// RenderTrends prints the recent performance trend.
func RenderTrends(w io.Writer, history []model.HistoryEntry) error {
	tr, ok := ComputeTrends(history)
	if !ok {
		return writeLines(w, []string{"At least 2 sessions are needed for trends.", ""})
	}
	lines := []string{
		"Performance Trends",
		fmt.Sprintf("Average hit rate (last %d): %.0f%%", tr.Sessions, tr.AvgHitRate),
		fmt.Sprintf("Trend: %s %.0f%%", arrow(tr.Trend), math.Abs(tr.Trend)),
		fmt.Sprintf("Recent: [%s]", Sparkline(tr.Rates)),
		"",
		"Segment development",
	}
	for _, seg := range model.Segments {
		d := tr.SegmentTrend[seg.Index()]
		word := "declining"
		if d > 0 {
			word = "improving"
		}
		lines = append(lines, fmt.Sprintf("  Segment %d: %s %.0f%% %s", seg, arrow(d), math.Abs(d), word))
	}
	return writeLines(w, append(lines, ""))
}

// RenderTimer prints reaction-time statistics.
func RenderTimer(w io.Writer, ts model.TimerStats) error {
	rep := SummarizeTimer(ts)
	lines := []string{
		"Reaction Times",
		fmt.Sprintf("Average: %.0fms", rep.Avg),
		fmt.Sprintf("Best: %.0fms  Worst: %.0fms", rep.Best, rep.Worst),
		fmt.Sprintf("Too early: %d  Timeouts: %d", rep.TooEarly, rep.Timeouts),
	}
	if rep.Hits > 0 {
		lines = append(lines, fmt.Sprintf("Percentiles: p25 %.0fms  median %.0fms  p75 %.0fms  p95 %.0fms", rep.P25, rep.P50, rep.P75, rep.P95))
	}
	headers := []string{"Segment", "Avg", "Hits", "Rating"}
	var rows [][]string
	for _, seg := range FastestSegments(rep, model.SegmentCount) {
		avg := rep.SegmentAvg[seg.Index()]
		rows = append(rows, []string{
			fmt.Sprintf("%d", seg),
			fmt.Sprintf("%.0fms", avg),
			fmt.Sprintf("%d", rep.SegmentCounts[seg.Index()]),
			RateReaction(avg).Label,
		})
	}
	if len(rows) > 0 {
		lines = append(lines, "")
		lines = append(lines, formatTable(headers, rows, 1, 2)...)
	}
	return writeLines(w, append(lines, ""))
}

// RenderCurves plots hit-rate learning curves over the history, plus the
// average reaction time of timer sessions.
func RenderCurves(w io.Writer, history []model.HistoryEntry, window, width int, color bool) error {
	if len(history) == 0 {
		return nil
	}
	overall := make([]float64, len(history))
	var perSeg [model.SegmentCount][]float64
	var reactions []float64
	for i, s := range history {
		overall[i] = s.HitRate() * 100
		for j := range perSeg {
			perSeg[j] = append(perSeg[j], s.SegmentStats[j].HitRate(0)*100)
		}
		if s.TimerStats != nil && s.TimerStats.AvgReactionTime > 0 {
			reactions = append(reactions, s.TimerStats.AvgReactionTime)
		}
	}
	curves := []Curve{{Name: "All", Values: MovingAverage(overall, window)}}
	for _, seg := range model.Segments {
		curves = append(curves, Curve{
			Name:   fmt.Sprintf("S%d", seg),
			Values: MovingAverage(perSeg[seg.Index()], window),
		})
	}
	title := fmt.Sprintf("Hit rate (moving average, window %d)", window)
	if err := PlotCurves(w, title, curves, PercentAxis, width, 0, color); err != nil {
		return err
	}
	if len(reactions) < 2 {
		return nil
	}
	return PlotCurves(w, "Average reaction time", []Curve{
		{Name: "Reaction", Values: MovingAverage(reactions, window)},
	}, Axis{Unit: "ms"}, width, 0, color)
}

func resample(values []float64, width int) []float64 {
	if len(values) <= width || width <= 0 {
		return values
	}
	out := make([]float64, width)
	for i := range out {
		start := i * len(values) / width
		end := maxInt(start+1, (i+1)*len(values)/width)
		sum := 0.0
		for _, v := range values[start:end] {
			sum += v
		}
		out[i] = sum / float64(end-start)
	}
	return out
}

func bar(rate float64, width int) string {
	filled := int(math.Round(rate * float64(width)))
	filled = maxInt(0, minInt(filled, width))
	return strings.Repeat("#", filled) + strings.Repeat(".", width-filled)
}

func arrow(delta float64) string {
	if delta > 0 {
		return "up"
	}
	return "down"
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
