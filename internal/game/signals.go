package game

import (
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/timer"
)

// Outcome is a recorded shot. Shot is zero for an explicit miss or timeout.
type Outcome struct {
	Target    model.Segment
	Shot      model.Segment
	Hit       bool
	Streak    int
	Score     int
	Corrected bool
}

// Summary is delivered once when a mode completes.
type Summary struct {
	Reason string
	Entry  model.HistoryEntry
}

// Snapshot is the observable engine state published with StatsUpdated.
type Snapshot struct {
	Active    bool
	Completed bool
	Session   model.SessionState
	Target    model.Segment
	Streak    int
	Score     int
	MaxStreak int
	Weights   [model.SegmentCount]float64
	Lifetime  model.LifetimeStats
}

// Listener receives the engine's outbound signals. Embed NopListener to
// implement only some of them.
type Listener interface {
	TargetChanged(seg model.Segment)
	OutcomeOccurred(o Outcome)
	ModeCompleted(s Summary)
	TimerPhaseChanged(e timer.Event)
	StatsUpdated(s Snapshot)
}

// NopListener ignores every signal.
type NopListener struct{}

func (NopListener) TargetChanged(model.Segment) {}
func (NopListener) OutcomeOccurred(Outcome) {}
func (NopListener) ModeCompleted(Summary) {}
func (NopListener) TimerPhaseChanged(timer.Event) {}
func (NopListener) StatsUpdated(Snapshot) {}

// timerHost adapts the engine to the timer drill.
type timerHost struct {
	e *Engine
}

func (h timerHost) NextTarget() (model.Segment, bool) {
	e := h.e
	target, ok := e.selector.Next(&e.session, 0)
	if !ok {
		return 0, false
	}
	e.target = target
	for _, l := range e.listeners {
		l.TargetChanged(target)
	}
	return target, true
}

func (h timerHost) Record(target, shot model.Segment, wasMiss bool) {
	h.e.RecordOutcome(target, shot, wasMiss)
}

func (h timerHost) Correct(target, actual model.Segment) {
	h.e.correct(target, actual)
}

func (h timerHost) PhaseChanged(ev timer.Event) {
	for _, l := range h.e.listeners {
		l.TimerPhaseChanged(ev)
	}
}

func (h timerHost) Finish(stats model.TimerStats) {
	e := h.e
	e.timerStats = &stats
	e.complete("timer rounds finished")
}
