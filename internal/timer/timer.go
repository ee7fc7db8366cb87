// Package timer implements the reaction-time drill: a round-based state
// machine that cues the player, measures the time to the shot and lets a
// just-recorded hit be reclassified within a short correction window.
package timer

import (
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/model"
)

// Phase is the state of the current round.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseReady    Phase = "ready"
	PhaseWaiting  Phase = "waiting"
	PhaseShoot    Phase = "shoot"
	PhaseResolved Phase = "resolved"
)

// Result classifies how a round was resolved.
type Result string

const (
	ResultNone     Result = ""
	ResultHit      Result = "hit"
	ResultMiss     Result = "miss"
	ResultTooEarly Result = "too-early"
	ResultTimeout  Result = "timeout"
)

// Event describes a phase change. ReactionMs is set for resolved shots.
type Event struct {
	Phase      Phase
	Result     Result
	Round      int
	Rounds     int
	Target     model.Segment
	ReactionMs float64
	Corrected  bool
}

// Host is the game side of the protocol.
type Host interface {
	// NextTarget picks and announces the target of a new round.
	NextTarget() (model.Segment, bool)
	// Record applies a round outcome. shot is zero for misses.
	Record(target, shot model.Segment, wasMiss bool)
	// Correct replaces the previous outcome with a shot at actual.
	Correct(target, actual model.Segment)
	PhaseChanged(Event)
	// Finish is called once when the last round has been resolved.
	Finish(stats model.TimerStats)
}

// Options holds the protocol delays.
type Options struct {
	StartDelay       time.Duration
	ReadyDelay       time.Duration
	WaitMin          time.Duration
	WaitMax          time.Duration
	ReactionTimeout  time.Duration
	ResultHold       time.Duration
	ErrorHold        time.Duration
	CorrectionWindow time.Duration
}

// DefaultOptions returns the standard drill timings.
func DefaultOptions() Options {
	return Options{
		StartDelay:       500 * time.Millisecond,
		ReadyDelay:       1000 * time.Millisecond,
		WaitMin:          2000 * time.Millisecond,
		WaitMax:          13000 * time.Millisecond,
		ReactionTimeout:  2000 * time.Millisecond,
		ResultHold:       3000 * time.Millisecond,
		ErrorHold:        2000 * time.Millisecond,
		CorrectionWindow: 5000 * time.Millisecond,
	}
}

// Protocol runs timer rounds. It must only be driven from the goroutine that
// runs the scheduler callbacks.
type Protocol struct {
	host  Host
	clock clock.Clock
	sched clock.Scheduler
	rnd   *rand.Rand
	opts  Options

	running bool
	phase   Phase
	round   int
	rounds  int
	target  model.Segment
	shootAt time.Time
	stats   model.TimerStats

	// phaseSlot holds the next transition of the round; correction holds
	// the close of the correction window, which may outlive the round.
	phaseSlot  clock.Slot
	correction clock.Slot
	correctFor model.Segment
	canCorrect bool
}

// New returns an idle protocol.
func New(host Host, clk clock.Clock, sched clock.Scheduler, rnd *rand.Rand, opts Options) *Protocol {
	return &Protocol{
		host:  host,
		clock: clk,
		sched: sched,
		rnd:   rnd,
		opts:  opts,
		phase: PhaseIdle,
	}
}

// Start begins a run of rounds after the start delay. A running drill is
// stopped first.
func (p *Protocol) Start(rounds int) {
	p.Stop()
	p.running = true
	p.round = 0
	p.rounds = rounds
	p.target = 0
	p.stats = model.TimerStats{}
	p.phaseSlot.Arm(p.sched, p.opts.StartDelay, func() { p.beginRound(true) })
}

// Stop abandons the drill without archiving it.
func (p *Protocol) Stop() {
	p.phaseSlot.Cancel()
	p.closeCorrection()
	wasRunning := p.running
	p.running = false
	p.phase = PhaseIdle
	if wasRunning {
		p.emit(ResultNone, 0, false)
	}
}

// Shot handles a shot at seg. A shot during an open correction window
// reclassifies the previous hit instead of counting as a new shot.
func (p *Protocol) Shot(seg model.Segment) {
	if p.canCorrect {
		p.correct(seg)
		return
	}
	if !p.running {
		return
	}
	switch p.phase {
	case PhaseReady, PhaseWaiting:
		p.tooEarly()
	case PhaseShoot:
		p.resolveShot(seg)
	}
}

// Miss handles an explicit miss. Only the shoot phase is affected.
func (p *Protocol) Miss() {
	if !p.running || p.phase != PhaseShoot {
		return
	}
	p.phaseSlot.Cancel()
	p.host.Record(p.target, 0, true)
	p.resolve(ResultMiss, 0, p.opts.ResultHold)
}

func (p *Protocol) beginRound(advance bool) {
	if advance {
		p.round++
	}
	target, ok := p.host.NextTarget()
	if !ok {
		p.end()
		return
	}
	p.target = target
	p.phase = PhaseReady
	p.emit(ResultNone, 0, false)
	p.phaseSlot.Arm(p.sched, p.opts.ReadyDelay, p.wait)
}

func (p *Protocol) wait() {
	p.phase = PhaseWaiting
	p.emit(ResultNone, 0, false)
	p.phaseSlot.Arm(p.sched, p.waitDuration(), p.shoot)
}

func (p *Protocol) waitDuration() time.Duration {
	span := p.opts.WaitMax - p.opts.WaitMin
	if span <= 0 {
		return p.opts.WaitMin
	}
	return p.opts.WaitMin + time.Duration(p.rnd.Int63n(int64(span)))
}

func (p *Protocol) shoot() {
	p.phase = PhaseShoot
	p.shootAt = p.clock.Now()
	p.emit(ResultNone, 0, false)
	p.phaseSlot.Arm(p.sched, p.opts.ReactionTimeout, p.timeout)
}

func (p *Protocol) tooEarly() {
	p.phaseSlot.Cancel()
	p.stats.TooEarlyShots++
	logrus.WithField("round", p.round).Debug("too early")
	p.phase = PhaseResolved
	p.emit(ResultTooEarly, 0, false)
	p.phaseSlot.Arm(p.sched, p.opts.ErrorHold, func() { p.beginRound(false) })
}

func (p *Protocol) resolveShot(seg model.Segment) {
	p.phaseSlot.Cancel()
	reaction := float64(p.clock.Now().Sub(p.shootAt)) / float64(time.Millisecond)
	hit := seg == p.target
	p.stats.ReactionTimes = append(p.stats.ReactionTimes, model.ReactionSample{
		Segment: seg,
		TimeMs:  reaction,
		Hit:     hit,
		Round:   p.round,
	})
	if hit {
		idx := seg.Index()
		p.stats.SegmentReactions[idx] = append(p.stats.SegmentReactions[idx], reaction)
		p.recomputeBounds()
	}
	p.host.Record(p.target, seg, false)
	result := ResultMiss
	if hit {
		result = ResultHit
		p.canCorrect = true
		p.correctFor = p.target
		p.correction.Arm(p.sched, p.opts.CorrectionWindow, p.closeCorrection)
	}
	p.resolve(result, reaction, p.opts.ResultHold)
}

func (p *Protocol) timeout() {
	p.stats.Timeouts++
	p.host.Record(p.target, 0, true)
	p.resolve(ResultTimeout, 0, p.opts.ErrorHold)
}

func (p *Protocol) resolve(result Result, reaction float64, hold time.Duration) {
	p.phase = PhaseResolved
	p.emit(result, reaction, false)
	p.phaseSlot.Arm(p.sched, hold, p.advance)
}

func (p *Protocol) advance() {
	if p.round < p.rounds {
		p.beginRound(true)
		return
	}
	p.end()
}

func (p *Protocol) end() {
	p.closeCorrection()
	p.phaseSlot.Cancel()
	p.running = false
	p.phase = PhaseIdle
	p.finalize()
	p.emit(ResultNone, 0, false)
	p.host.Finish(p.stats.Clone())
}

func (p *Protocol) closeCorrection() {
	p.correction.Cancel()
	p.canCorrect = false
}

// correct moves the last reaction sample to actual and lets the host redo
// the outcome. One correction per window.
func (p *Protocol) correct(actual model.Segment) {
	p.closeCorrection()
	n := len(p.stats.ReactionTimes)
	if n == 0 || !actual.Valid() {
		return
	}
	last := &p.stats.ReactionTimes[n-1]
	if last.Segment == actual {
		return
	}
	prev := last.Segment
	if last.Hit {
		p.stats.SegmentReactions[prev.Index()] = removeSample(p.stats.SegmentReactions[prev.Index()], last.TimeMs)
	}
	last.Segment = actual
	last.Hit = actual == p.correctFor
	if last.Hit {
		idx := actual.Index()
		p.stats.SegmentReactions[idx] = append(p.stats.SegmentReactions[idx], last.TimeMs)
	}
	p.recomputeBounds()
	logrus.WithFields(logrus.Fields{"round": last.Round, "from": prev, "to": actual}).Info("shot corrected")
	p.host.Correct(p.correctFor, actual)
	p.emit(ResultNone, last.TimeMs, true)
}

// finalize derives the average and bounds from the hit samples.
func (p *Protocol) finalize() {
	var total float64
	hits := 0
	for _, r := range p.stats.ReactionTimes {
		if r.Hit {
			total += r.TimeMs
			hits++
		}
	}
	p.stats.AvgReactionTime = 0
	if hits > 0 {
		p.stats.AvgReactionTime = total / float64(hits)
	}
	p.recomputeBounds()
}

func (p *Protocol) recomputeBounds() {
	p.stats.BestReactionTime = nil
	p.stats.WorstReactionTime = nil
	for _, r := range p.stats.ReactionTimes {
		if !r.Hit {
			continue
		}
		v := r.TimeMs
		if p.stats.BestReactionTime == nil || v < *p.stats.BestReactionTime {
			best := v
			p.stats.BestReactionTime = &best
		}
		if p.stats.WorstReactionTime == nil || v > *p.stats.WorstReactionTime {
			worst := v
			p.stats.WorstReactionTime = &worst
		}
	}
}

func removeSample(samples []float64, v float64) []float64 {
	for i := len(samples) - 1; i >= 0; i-- {
		if samples[i] == v {
			return append(samples[:i], samples[i+1:]...)
		}
	}
	return samples
}

func (p *Protocol) emit(result Result, reaction float64, corrected bool) {
	p.host.PhaseChanged(Event{
		Phase:      p.phase,
		Result:     result,
		Round:      p.round,
		Rounds:     p.rounds,
		Target:     p.target,
		ReactionMs: reaction,
		Corrected:  corrected,
	})
}

// Phase returns the current phase.
func (p *Protocol) Phase() Phase { return p.phase }

// Round returns the current round number, starting at 1.
func (p *Protocol) Round() int { return p.round }

// Rounds returns the number of rounds in the drill.
func (p *Protocol) Rounds() int { return p.rounds }

// Running reports whether a drill is in progress.
func (p *Protocol) Running() bool { return p.running }

// CorrectionOpen reports whether the last hit can still be reclassified.
func (p *Protocol) CorrectionOpen() bool { return p.canCorrect }

// Stats returns a copy of the drill statistics so far, with the average
// computed over the hits recorded up to now.
func (p *Protocol) Stats() model.TimerStats {
	p.finalize()
	return p.stats.Clone()
}
