package generator

import (
	"math/rand"

	"github.com/verte-zerg/kicktrain/internal/model"
)

// Selector decides the next target for the active mode.
type Selector struct {
	weights *Weights
	rnd     *rand.Rand
}

// NewSelector returns a Selector sampling from weights.
func NewSelector(weights *Weights, rnd *rand.Rand) *Selector {
	return &Selector{weights: weights, rnd: rnd}
}

// Next returns the next target. In perfection mode the current target is kept
// until it is mastered; ok is false once every segment is mastered.
func (s *Selector) Next(session *model.SessionState, current model.Segment) (target model.Segment, ok bool) {
	if session.Mode != model.ModePerfection {
		return s.weights.Sample(), true
	}
	incomplete := make([]model.Segment, 0, model.SegmentCount)
	for _, seg := range model.Segments {
		if !session.PerfectionProgress[seg.Index()].Completed {
			incomplete = append(incomplete, seg)
		}
	}
	if len(incomplete) == 0 {
		return 0, false
	}
	if current.Valid() && !session.PerfectionProgress[current.Index()].Completed {
		return current, true
	}
	return incomplete[s.rnd.Intn(len(incomplete))], true
}
