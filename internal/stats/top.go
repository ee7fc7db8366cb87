package stats

import (
	"sort"

	"github.com/verte-zerg/kicktrain/internal/model"
)

// FastestSegments returns up to n segments with recorded reactions, ordered
// by ascending average reaction time.
func FastestSegments(rep TimerReport, n int) []model.Segment {
	if n <= 0 {
		return nil
	}
	items := make([]model.Segment, 0, model.SegmentCount)
	for _, seg := range model.Segments {
		if rep.SegmentCounts[seg.Index()] > 0 {
			items = append(items, seg)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		ai, aj := rep.SegmentAvg[items[i].Index()], rep.SegmentAvg[items[j].Index()]
		if ai == aj {
			return items[i] < items[j]
		}
		return ai < aj
	})
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
