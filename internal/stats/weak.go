package stats

import (
	"sort"

	"github.com/verte-zerg/kicktrain/internal/model"
)

// WeakestSegments returns up to n attempted segments ordered by ascending
// hit rate. Ties keep segment order.
func WeakestSegments(segs model.SegmentStats, n int) []model.Segment {
	candidates := make([]model.Segment, 0, model.SegmentCount)
	for _, seg := range model.Segments {
		if segs[seg.Index()].Attempts > 0 {
			candidates = append(candidates, seg)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return segs[candidates[i].Index()].HitRate(0) < segs[candidates[j].Index()].HitRate(0)
	})
	if n > 0 && n < len(candidates) {
		candidates = candidates[:n]
	}
	return candidates
}
