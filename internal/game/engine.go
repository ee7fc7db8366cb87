// Package game owns the training session: it validates mode parameters,
// picks targets, records outcomes, drives the timer drill and persists
// stats and autosave snapshots.
package game

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/generator"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/stats"
	"github.com/verte-zerg/kicktrain/internal/store"
	"github.com/verte-zerg/kicktrain/internal/timer"
)

var (
	// ErrInvalidModeParameter is returned when a mode parameter is out of range.
	ErrInvalidModeParameter = errors.New("invalid mode parameter")
	// ErrUnknownMode is returned for modes other than free, target, perfection and timer.
	ErrUnknownMode = errors.New("unknown mode")
)

// Options configures an Engine.
type Options struct {
	// DisplayHold is the pause between an outcome and the next target.
	DisplayHold time.Duration
	Timer       timer.Options
}

// DefaultOptions returns the standard engine timings.
func DefaultOptions() Options {
	return Options{
		DisplayHold: 600 * time.Millisecond,
		Timer:       timer.DefaultOptions(),
	}
}

// Engine is the single owner of session state. All methods must be called
// from the goroutine that runs the scheduler callbacks.
type Engine struct {
	ctx      context.Context
	repo     *store.Repo
	tracker  *stats.Tracker
	weights  *generator.Weights
	selector *generator.Selector
	clock    clock.Clock
	sched    clock.Scheduler
	opts     Options

	active    bool
	completed bool
	archived  bool
	session   model.SessionState
	baseline  stats.Baseline
	target    model.Segment
	streak    int
	score     int
	maxStreak int
	undo      *undoRecord

	hold       clock.Slot
	timer      *timer.Protocol
	timerStats *model.TimerStats
	listeners  []Listener
}

// undoRecord is the state before the last outcome, kept for corrections.
type undoRecord struct {
	session   model.SessionState
	streak    int
	score     int
	maxStreak int
	weights   [model.SegmentCount]float64
}

// New builds an Engine. ctx bounds persistence calls for the engine's lifetime.
func New(ctx context.Context, repo *store.Repo, clk clock.Clock, sched clock.Scheduler, rnd *rand.Rand, opts Options) *Engine {
	e := &Engine{
		ctx:   ctx,
		repo:  repo,
		clock: clk,
		sched: sched,
		opts:  opts,
	}
	e.tracker = stats.NewTracker(repo, clk)
	e.weights = generator.NewWeights(e.tracker, rnd)
	e.selector = generator.NewSelector(e.weights, rnd)
	e.timer = timer.New(timerHost{e}, clk, sched, rnd, opts.Timer)
	return e
}

// Load reads lifetime stats, history and adaptive weights.
func (e *Engine) Load() {
	e.tracker.Load(e.ctx)
	var weights [model.SegmentCount]float64
	if e.repo.Load(e.ctx, store.KeyAdaptiveWeights, &weights) {
		e.weights.Load(weights)
	}
}

// Subscribe registers l for every outbound signal.
func (e *Engine) Subscribe(l Listener) {
	e.listeners = append(e.listeners, l)
}

// ValidateParams checks the parameters required by mode.
func ValidateParams(mode model.Mode, params model.ModeParams) error {
	switch mode {
	case model.ModeFree:
		return nil
	case model.ModeTarget:
		if params.TargetGoal <= 0 {
			return fmt.Errorf("%w: target goal must be positive, got %d", ErrInvalidModeParameter, params.TargetGoal)
		}
	case model.ModePerfection:
		if params.PerfectionTarget <= 0 {
			return fmt.Errorf("%w: perfection target must be positive, got %d", ErrInvalidModeParameter, params.PerfectionTarget)
		}
	case model.ModeTimer:
		if params.TimerRounds <= 0 {
			return fmt.Errorf("%w: timer rounds must be positive, got %d", ErrInvalidModeParameter, params.TimerRounds)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
	return nil
}

// StartSession archives the running session, if it has shots, and starts a
// new one. Invalid parameters leave the running session untouched.
func (e *Engine) StartSession(mode model.Mode, params model.ModeParams) error {
	if err := ValidateParams(mode, params); err != nil {
		return err
	}
	e.archiveEntry()
	e.stopActivity()
	e.repo.Delete(e.ctx, store.KeySessionSnapshot, store.KeyGameStateSnapshot)

	e.session = model.NewSession(mode, params, e.clock.Now())
	e.baseline = stats.BaselineOf(e.session)
	e.active = true
	e.completed = false
	e.archived = false
	e.target = 0
	e.streak = 0
	e.score = 0
	e.maxStreak = 0
	e.undo = nil
	e.timerStats = nil
	logrus.WithField("mode", mode).Info("session started")

	if mode == model.ModeTimer {
		e.timer.Start(params.TimerRounds)
	} else {
		e.nextTarget()
	}
	e.publishStats()
	return nil
}

func (e *Engine) stopActivity() {
	e.hold.Cancel()
	if e.timer.Running() {
		e.timer.Stop()
	}
}

// ShotAt handles a shot that landed in seg.
func (e *Engine) ShotAt(seg model.Segment) {
	if !seg.Valid() {
		logrus.WithField("segment", int(seg)).Debug("ignoring shot at invalid segment")
		return
	}
	if !e.active {
		return
	}
	if e.session.Mode == model.ModeTimer {
		e.timer.Shot(seg)
		return
	}
	if e.completed || !e.target.Valid() {
		return
	}
	e.RecordOutcome(e.target, seg, false)
}

// RegisterMiss charges a miss to the current target.
func (e *Engine) RegisterMiss() {
	if !e.active {
		return
	}
	if e.session.Mode == model.ModeTimer {
		e.timer.Miss()
		return
	}
	if e.completed || !e.target.Valid() {
		return
	}
	e.RecordOutcome(e.target, 0, true)
}

// GoalDetected handles a goal whose segment is unknown. It counts as a hit
// on the current target; in timer mode the correction window can fix it.
func (e *Engine) GoalDetected() {
	if !e.active || !e.target.Valid() || e.timer.CorrectionOpen() {
		return
	}
	e.ShotAt(e.target)
}

// RecordOutcome applies one shot against target. shot is ignored when
// wasMiss is set. Without an active target it is a no-op.
func (e *Engine) RecordOutcome(target, shot model.Segment, wasMiss bool) {
	if !e.active || e.completed || !target.Valid() {
		return
	}
	e.undo = e.captureUndo()
	hit := e.apply(target, shot, wasMiss)
	e.flush()
	e.emitOutcome(Outcome{Target: target, Shot: shot, Hit: hit, Streak: e.streak, Score: e.score})

	if e.session.Mode == model.ModeTarget && e.session.Hits >= e.session.TargetGoal {
		e.complete("target goal reached")
		return
	}
	if e.session.Mode != model.ModeTimer {
		e.hold.Arm(e.sched, e.opts.DisplayHold, e.nextTarget)
	}
}

func (e *Engine) apply(target, shot model.Segment, wasMiss bool) bool {
	s := &e.session
	s.Total++
	st := s.SegmentStats.At(target)
	st.Attempts++
	progress := &s.PerfectionProgress[target.Index()]

	hit := !wasMiss && shot == target
	if hit {
		s.Hits++
		st.Hits++
		e.streak++
		e.score++
		e.weights.Update(target, true)
		if s.Mode == model.ModePerfection {
			progress.Current++
			if progress.Current >= s.PerfectionTarget {
				progress.Completed = true
				progress.Current = 0
			}
		}
	} else {
		s.Misses++
		e.streak = 0
		e.weights.Update(target, false)
		if s.Mode == model.ModePerfection {
			progress.Current = 0
		}
	}
	if e.streak > s.StreakBest {
		s.StreakBest = e.streak
	}
	if e.streak > e.maxStreak {
		e.maxStreak = e.streak
	}
	logrus.WithFields(logrus.Fields{"segment": target, "shot": shot, "hit": hit}).Debug("outcome recorded")
	return hit
}

// flush pushes the delta since the previous flush into lifetime stats and
// persists the weights.
func (e *Engine) flush() {
	e.tracker.Update(e.ctx, e.session, e.baseline)
	e.baseline = stats.BaselineOf(e.session)
	values := e.weights.Values()
	e.repo.Save(e.ctx, store.KeyAdaptiveWeights, values[:])
	e.publishStats()
}

func (e *Engine) captureUndo() *undoRecord {
	return &undoRecord{
		session:   e.session,
		streak:    e.streak,
		score:     e.score,
		maxStreak: e.maxStreak,
		weights:   e.weights.Values(),
	}
}

// correct replaces the previous outcome with a shot at actual against target.
func (e *Engine) correct(target, actual model.Segment) {
	if !e.active || e.undo == nil {
		return
	}
	prev := e.undo
	e.undo = nil
	e.session = prev.session
	e.streak = prev.streak
	e.score = prev.score
	e.maxStreak = prev.maxStreak
	e.weights.Load(prev.weights)

	hit := e.apply(target, actual, false)
	e.flush()
	e.emitOutcome(Outcome{Target: target, Shot: actual, Hit: hit, Streak: e.streak, Score: e.score, Corrected: true})
}

func (e *Engine) nextTarget() {
	if !e.active || e.completed {
		return
	}
	target, ok := e.selector.Next(&e.session, e.target)
	if !ok {
		e.complete("all segments mastered")
		return
	}
	e.target = target
	for _, l := range e.listeners {
		l.TargetChanged(target)
	}
}

// complete ends the mode, archives the session and signals completion once.
func (e *Engine) complete(reason string) {
	if e.completed {
		return
	}
	e.completed = true
	e.hold.Cancel()
	e.target = 0
	entry, _ := e.archiveEntry()
	logrus.WithFields(logrus.Fields{"mode": e.session.Mode, "reason": reason}).Info("mode completed")
	summary := Summary{Reason: reason, Entry: entry}
	for _, l := range e.listeners {
		l.ModeCompleted(summary)
	}
}

// archiveEntry saves the session to history once, if it has any shots.
func (e *Engine) archiveEntry() (model.HistoryEntry, bool) {
	if !e.active || e.archived || e.session.Total == 0 {
		return model.HistoryEntry{}, false
	}
	var ts *model.TimerStats
	if e.session.Mode == model.ModeTimer {
		if e.timerStats != nil {
			ts = e.timerStats
		} else {
			current := e.timer.Stats()
			ts = &current
		}
	}
	entry := e.tracker.SaveSession(e.ctx, e.session, ts)
	e.archived = true
	e.repo.Delete(e.ctx, store.KeySessionSnapshot, store.KeyGameStateSnapshot)
	e.publishStats()
	return entry, true
}

// SaveSession archives the running session and ends it.
func (e *Engine) SaveSession() (model.HistoryEntry, bool) {
	entry, ok := e.archiveEntry()
	if !ok {
		return entry, false
	}
	e.stopActivity()
	e.active = false
	e.target = 0
	e.publishStats()
	return entry, true
}

// ResetStats wipes every persisted key and resets the weights. The running
// session continues from a fresh baseline.
func (e *Engine) ResetStats() {
	e.tracker.Reset(e.ctx)
	e.repo.Delete(e.ctx, store.AllKeys...)
	e.weights.Reset()
	e.baseline = stats.BaselineOf(e.session)
	logrus.Info("statistics reset")
	e.publishStats()
}

// Autosave writes the session snapshot pair. Timer drills are not
// snapshotted since their round timing cannot be resumed.
func (e *Engine) Autosave() bool {
	if !e.active || e.archived || e.session.Total == 0 || e.session.Mode == model.ModeTimer {
		return false
	}
	e.repo.Save(e.ctx, store.KeySessionSnapshot, e.session)
	e.repo.Save(e.ctx, store.KeyGameStateSnapshot, e.gameState())
	return true
}

func (e *Engine) gameState() model.GameState {
	return model.GameState{
		Mode:            e.session.Mode,
		Score:           e.score,
		Streak:          e.streak,
		MaxStreak:       e.maxStreak,
		AdaptiveWeights: e.weights.Values(),
	}
}

// PendingSnapshot returns an autosaved session, if one exists.
func (e *Engine) PendingSnapshot() (model.SessionState, model.GameState, bool) {
	var session model.SessionState
	var gs model.GameState
	if !e.repo.Load(e.ctx, store.KeySessionSnapshot, &session) {
		return session, gs, false
	}
	if !e.repo.Load(e.ctx, store.KeyGameStateSnapshot, &gs) {
		return session, gs, false
	}
	if _, ok := model.ParseMode(string(session.Mode)); !ok || session.Total == 0 {
		return session, gs, false
	}
	return session, gs, true
}

// RestoreSnapshot resumes the autosaved session. Its shots were already
// flushed into lifetime stats, so the baseline starts at the snapshot.
func (e *Engine) RestoreSnapshot() bool {
	session, gs, ok := e.PendingSnapshot()
	if !ok || session.Mode == model.ModeTimer {
		return false
	}
	e.stopActivity()
	e.session = session
	e.baseline = stats.BaselineOf(session)
	e.active = true
	e.completed = false
	e.archived = false
	e.target = 0
	e.streak = gs.Streak
	e.score = gs.Score
	e.maxStreak = gs.MaxStreak
	e.undo = nil
	e.weights.Load(gs.AdaptiveWeights)
	logrus.WithField("mode", session.Mode).Info("session restored")
	e.nextTarget()
	e.publishStats()
	return true
}

// DiscardSnapshot deletes the autosaved session.
func (e *Engine) DiscardSnapshot() {
	e.repo.Delete(e.ctx, store.KeySessionSnapshot, store.KeyGameStateSnapshot)
}

// Shutdown autosaves and stops pending transitions.
func (e *Engine) Shutdown() {
	e.Autosave()
	e.stopActivity()
}

func (e *Engine) emitOutcome(o Outcome) {
	for _, l := range e.listeners {
		l.OutcomeOccurred(o)
	}
}

func (e *Engine) publishStats() {
	snap := e.Snapshot()
	for _, l := range e.listeners {
		l.StatsUpdated(snap)
	}
}

// Snapshot returns the current observable state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Active:    e.active,
		Completed: e.completed,
		Session:   e.session,
		Target:    e.target,
		Streak:    e.streak,
		Score:     e.score,
		MaxStreak: e.maxStreak,
		Weights:   e.weights.Values(),
		Lifetime:  e.tracker.Lifetime(),
	}
}

// Session returns a copy of the running session.
func (e *Engine) Session() model.SessionState { return e.session }

// Target returns the current target, or zero when there is none.
func (e *Engine) Target() model.Segment { return e.target }

// Streak returns the current streak.
func (e *Engine) Streak() int { return e.streak }

// Score returns the current score.
func (e *Engine) Score() int { return e.score }

// Weights returns the adaptive weights.
func (e *Engine) Weights() [model.SegmentCount]float64 { return e.weights.Values() }

// Lifetime returns lifetime stats.
func (e *Engine) Lifetime() model.LifetimeStats { return e.tracker.Lifetime() }

// History returns archived sessions, oldest first.
func (e *Engine) History() []model.HistoryEntry { return e.tracker.History() }

// Timer exposes the timer drill for read-only queries.
func (e *Engine) Timer() *timer.Protocol { return e.timer }
