package game

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/store"
	"github.com/verte-zerg/kicktrain/internal/timer"
)

type recorder struct {
	NopListener
	targets   []model.Segment
	outcomes  []Outcome
	completed []Summary
	phases    []timer.Event
}

func (r *recorder) TargetChanged(seg model.Segment) { r.targets = append(r.targets, seg) }
func (r *recorder) OutcomeOccurred(o Outcome) { r.outcomes = append(r.outcomes, o) }
func (r *recorder) ModeCompleted(s Summary) { r.completed = append(r.completed, s) }
func (r *recorder) TimerPhaseChanged(e timer.Event) { r.phases = append(r.phases, e) }

func openRepo(t *testing.T) (*store.Repo, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kicktrain.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return store.NewRepo(st), st
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Timer.WaitMax = opts.Timer.WaitMin
	return opts
}

func newTestEngine(t *testing.T, repo *store.Repo) (*Engine, *recorder, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Unix(1000, 0))
	e := New(context.Background(), repo, clk, clk, rand.New(rand.NewSource(7)), testOptions())
	e.Load()
	rec := &recorder{}
	e.Subscribe(rec)
	return e, rec, clk
}

func TestStartSessionRejectsInvalidParams(t *testing.T) {
	e, _, _ := newTestEngine(t, store.NewRepo(nil))
	cases := []struct {
		mode   model.Mode
		params model.ModeParams
		want   error
	}{
		{model.ModeTarget, model.ModeParams{TargetGoal: 0}, ErrInvalidModeParameter},
		{model.ModePerfection, model.ModeParams{PerfectionTarget: -1}, ErrInvalidModeParameter},
		{model.ModeTimer, model.ModeParams{}, ErrInvalidModeParameter},
		{model.Mode("survival"), model.ModeParams{}, ErrUnknownMode},
	}
	for _, tc := range cases {
		if err := e.StartSession(tc.mode, tc.params); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.mode, tc.want, err)
		}
	}
	if e.Snapshot().Active {
		t.Fatalf("no session may be created from invalid params")
	}
}

func TestOutcomeWithoutTargetIsNoop(t *testing.T) {
	e, rec, _ := newTestEngine(t, store.NewRepo(nil))
	e.ShotAt(2)
	e.RegisterMiss()
	e.RecordOutcome(2, 2, false)
	if len(rec.outcomes) != 0 || e.Session().Total != 0 {
		t.Fatalf("expected no outcome without an active session")
	}
}

func TestTargetModeCompletesOnce(t *testing.T) {
	repo, _ := openRepo(t)
	e, rec, _ := newTestEngine(t, repo)
	if err := e.StartSession(model.ModeTarget, model.ModeParams{TargetGoal: 5}); err != nil {
		t.Fatalf("start: %v", err)
	}
	for i := 1; i <= 5; i++ {
		e.RecordOutcome(3, 3, false)
		if i < 5 && len(rec.completed) != 0 {
			t.Fatalf("completion signaled early at hit %d", i)
		}
	}
	e.RecordOutcome(3, 3, false)
	if len(rec.completed) != 1 {
		t.Fatalf("expected exactly one completion, got %d", len(rec.completed))
	}
	if e.Session().Hits != 5 || e.Streak() != 5 || e.Score() != 5 {
		t.Fatalf("unexpected session after completion: %+v", e.Session())
	}
	if got := rec.completed[0].Entry.Hits; got != 5 {
		t.Fatalf("archived entry should have 5 hits, got %d", got)
	}
	if len(e.History()) != 1 || e.Lifetime().TotalSessions != 1 {
		t.Fatalf("expected completed session to be archived once")
	}
	if e.Target() != 0 {
		t.Fatalf("no target after completion")
	}
}

func TestPerfectionMissResetsProgress(t *testing.T) {
	e, _, _ := newTestEngine(t, store.NewRepo(nil))
	if err := e.StartSession(model.ModePerfection, model.ModeParams{PerfectionTarget: 3}); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.RecordOutcome(2, 2, false)
	e.RecordOutcome(2, 2, false)
	if got := e.Session().PerfectionProgress[1]; got.Current != 2 {
		t.Fatalf("expected progress 2, got %+v", got)
	}
	e.RecordOutcome(2, 0, true)
	if got := e.Session().PerfectionProgress[1]; got != (model.PerfectionProgress{}) {
		t.Fatalf("expected reset progress, got %+v", got)
	}
}

func TestPerfectionCompletesWhenAllMastered(t *testing.T) {
	e, rec, clk := newTestEngine(t, store.NewRepo(nil))
	if err := e.StartSession(model.ModePerfection, model.ModeParams{PerfectionTarget: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	seen := map[model.Segment]bool{}
	for i := 0; i < model.SegmentCount; i++ {
		target := e.Target()
		if seen[target] {
			t.Fatalf("mastered segment %d offered again", target)
		}
		seen[target] = true
		e.ShotAt(target)
		if got := e.Session().PerfectionProgress[target.Index()]; !got.Completed || got.Current != 0 {
			t.Fatalf("expected segment %d mastered, got %+v", target, got)
		}
		clk.Advance(600 * time.Millisecond)
	}
	if len(rec.completed) != 1 || rec.completed[0].Reason != "all segments mastered" {
		t.Fatalf("expected mastery completion, got %+v", rec.completed)
	}
}

func TestDisplayHoldDelaysNextTarget(t *testing.T) {
	e, rec, clk := newTestEngine(t, store.NewRepo(nil))
	if err := e.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(rec.targets) != 1 {
		t.Fatalf("expected first target immediately, got %v", rec.targets)
	}
	e.ShotAt(e.Target())
	clk.Advance(599 * time.Millisecond)
	if len(rec.targets) != 1 {
		t.Fatalf("next target must wait for the display hold")
	}
	clk.Advance(time.Millisecond)
	if len(rec.targets) != 2 {
		t.Fatalf("expected next target after 600ms, got %v", rec.targets)
	}
}

func TestFirstHitUsesNeutralPrior(t *testing.T) {
	e, _, _ := newTestEngine(t, store.NewRepo(nil))
	if err := e.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.RecordOutcome(1, 1, false)
	w := e.Weights()
	want := 0.95 / 4.95 * 5
	if math.Abs(w[0]-want) > 1e-9 {
		t.Fatalf("expected weight %v, got %v", want, w[0])
	}
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	if math.Abs(sum-5) > 1e-9 {
		t.Fatalf("weights must sum to 5, got %v", sum)
	}
}

func TestAccountingIdentity(t *testing.T) {
	repo, _ := openRepo(t)
	e, _, _ := newTestEngine(t, repo)
	if err := e.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	rnd := rand.New(rand.NewSource(3))
	for i := 0; i < 200; i++ {
		target := model.Segment(rnd.Intn(5) + 1)
		switch rnd.Intn(3) {
		case 0:
			e.RecordOutcome(target, target, false)
		case 1:
			e.RecordOutcome(target, model.Segment(rnd.Intn(5)+1), false)
		default:
			e.RecordOutcome(target, 0, true)
		}
		s := e.Session()
		if s.Total != s.Hits+s.Misses || s.Hits != s.SegmentStats.TotalHits() {
			t.Fatalf("accounting broken after %d outcomes: %+v", i+1, s)
		}
	}
	s := e.Session()
	lt := e.Lifetime()
	if lt.TotalShots != s.Total || lt.TotalHits != s.Hits || lt.TotalMisses != s.Misses {
		t.Fatalf("lifetime %+v does not match session %+v", lt, s)
	}
}

func TestNewGameArchivesPrevious(t *testing.T) {
	e, _, _ := newTestEngine(t, store.NewRepo(nil))
	if err := e.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if len(e.History()) != 0 {
		t.Fatalf("sessions without shots are not archived")
	}
	e.ShotAt(e.Target())
	if err := e.StartSession(model.ModeTarget, model.ModeParams{TargetGoal: 3}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	history := e.History()
	if len(history) != 1 || history[0].Mode != model.ModeFree || history[0].Total != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestAutosaveRestore(t *testing.T) {
	repo, _ := openRepo(t)
	e, _, _ := newTestEngine(t, repo)
	if err := e.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if e.Autosave() {
		t.Fatalf("empty sessions are not autosaved")
	}
	e.RecordOutcome(4, 4, false)
	e.RecordOutcome(4, 4, false)
	e.RecordOutcome(2, 0, true)
	e.RecordOutcome(5, 5, false)
	if !e.Autosave() {
		t.Fatalf("expected autosave")
	}

	restored, _, _ := newTestEngine(t, repo)
	session, gs, ok := restored.PendingSnapshot()
	if !ok || session.Total != 4 || gs.Score != 3 || gs.MaxStreak != 2 || gs.Streak != 1 {
		t.Fatalf("unexpected snapshot: ok=%v %+v %+v", ok, session, gs)
	}
	if !restored.RestoreSnapshot() {
		t.Fatalf("expected restore")
	}
	if restored.Session().Hits != 3 || restored.Score() != 3 || !restored.Target().Valid() {
		t.Fatalf("unexpected restored state: %+v", restored.Snapshot())
	}
	restored.RecordOutcome(1, 1, false)
	if lt := restored.Lifetime(); lt.TotalShots != 5 || lt.TotalHits != 4 {
		t.Fatalf("restored shots must not be counted twice: %+v", lt)
	}

	restored.DiscardSnapshot()
	if _, _, ok := restored.PendingSnapshot(); ok {
		t.Fatalf("expected snapshot to be discarded")
	}
}

func TestResetStatsDeletesEverything(t *testing.T) {
	repo, st := openRepo(t)
	e, _, _ := newTestEngine(t, repo)
	if err := e.StartSession(model.ModeTarget, model.ModeParams{TargetGoal: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.RecordOutcome(2, 2, false)
	if err := st.Set(context.Background(), store.KeyAudioCalibration, []byte(`{"threshold":0.4}`)); err != nil {
		t.Fatalf("set: %v", err)
	}
	e.ResetStats()
	keys, err := st.Keys(context.Background())
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected no persisted keys, got %v", keys)
	}
	if e.Weights() != [model.SegmentCount]float64{1, 1, 1, 1, 1} {
		t.Fatalf("expected uniform weights, got %v", e.Weights())
	}
	if e.Lifetime().TotalShots != 0 || len(e.History()) != 0 {
		t.Fatalf("expected empty lifetime stats")
	}
}

func TestGoalDetectedHitsCurrentTarget(t *testing.T) {
	e, rec, _ := newTestEngine(t, store.NewRepo(nil))
	if err := e.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	target := e.Target()
	e.GoalDetected()
	if len(rec.outcomes) != 1 || !rec.outcomes[0].Hit || rec.outcomes[0].Target != target {
		t.Fatalf("unexpected outcomes: %+v", rec.outcomes)
	}
}

// startTimerShoot starts a timer drill and advances to the first shoot cue.
func startTimerShoot(t *testing.T, e *Engine, clk *clock.Fake, rounds int) {
	t.Helper()
	if err := e.StartSession(model.ModeTimer, model.ModeParams{TimerRounds: rounds}); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(500 * time.Millisecond)
	clk.Advance(time.Second)
	clk.Advance(2 * time.Second)
	if e.Timer().Phase() != timer.PhaseShoot {
		t.Fatalf("expected shoot phase, got %s", e.Timer().Phase())
	}
}

func TestTimerCorrectionRoundTrip(t *testing.T) {
	repo, _ := openRepo(t)
	e, rec, clk := newTestEngine(t, repo)
	startTimerShoot(t, e, clk, 3)

	a := e.Target()
	b := a%model.SegmentCount + 1
	before := e.Session().SegmentStats[a.Index()].Hits
	clk.Advance(300 * time.Millisecond)
	e.ShotAt(a)
	if e.Session().Hits != 1 || e.Score() != 1 {
		t.Fatalf("expected provisional hit: %+v", e.Session())
	}

	clk.Advance(time.Second)
	e.ShotAt(b)
	s := e.Session()
	if s.SegmentStats[a.Index()].Hits != before || s.SegmentStats[a.Index()].Attempts != 1 {
		t.Fatalf("segment %d should be back to its pre-shot hits: %+v", a, s.SegmentStats)
	}
	if s.Total != 1 || s.Hits != 0 || s.Misses != 1 || e.Streak() != 0 || e.Score() != 0 {
		t.Fatalf("unexpected corrected session: %+v streak=%d score=%d", s, e.Streak(), e.Score())
	}
	if lt := e.Lifetime(); lt.TotalShots != 1 || lt.TotalHits != 0 || lt.TotalMisses != 1 {
		t.Fatalf("lifetime must reflect the corrected outcome: %+v", lt)
	}
	ts := e.Timer().Stats()
	last := ts.ReactionTimes[len(ts.ReactionTimes)-1]
	if last.Segment != b || last.Hit {
		t.Fatalf("unexpected reaction sample: %+v", last)
	}
	if n := len(ts.SegmentReactions[a.Index()]); n != 0 {
		t.Fatalf("sample must leave segment %d bucket, has %d", a, n)
	}
	lastOutcome := rec.outcomes[len(rec.outcomes)-1]
	if !lastOutcome.Corrected || lastOutcome.Shot != b || lastOutcome.Hit {
		t.Fatalf("unexpected correction outcome: %+v", lastOutcome)
	}
}

func TestTimerTooEarlyIsNotRecorded(t *testing.T) {
	e, rec, clk := newTestEngine(t, store.NewRepo(nil))
	if err := e.StartSession(model.ModeTimer, model.ModeParams{TimerRounds: 2}); err != nil {
		t.Fatalf("start: %v", err)
	}
	clk.Advance(500 * time.Millisecond)
	clk.Advance(time.Second)
	e.ShotAt(1)
	if len(rec.outcomes) != 0 || e.Session().Total != 0 {
		t.Fatalf("too-early shots must not be recorded")
	}
	if e.Timer().Stats().TooEarlyShots != 1 || e.Timer().Round() != 1 {
		t.Fatalf("unexpected timer state")
	}
}

func TestTimerDrillArchivesWithReactionStats(t *testing.T) {
	e, rec, clk := newTestEngine(t, store.NewRepo(nil))
	startTimerShoot(t, e, clk, 1)
	clk.Advance(480 * time.Millisecond)
	e.ShotAt(e.Target())
	clk.Advance(3 * time.Second)

	if len(rec.completed) != 1 {
		t.Fatalf("expected drill completion, got %d", len(rec.completed))
	}
	entry := rec.completed[0].Entry
	if entry.Mode != model.ModeTimer || entry.TimerStats == nil {
		t.Fatalf("expected archived timer stats: %+v", entry)
	}
	if entry.TimerStats.AvgReactionTime != 480 {
		t.Fatalf("unexpected average %v", entry.TimerStats.AvgReactionTime)
	}
	if e.Autosave() {
		t.Fatalf("finished drills are not autosaved")
	}
}

func TestSaveSessionMidDrillKeepsAverage(t *testing.T) {
	e, _, clk := newTestEngine(t, store.NewRepo(nil))
	startTimerShoot(t, e, clk, 3)
	clk.Advance(400 * time.Millisecond)
	e.ShotAt(e.Target())

	entry, ok := e.SaveSession()
	if !ok || entry.TimerStats == nil {
		t.Fatalf("expected archived timer stats: %+v", entry)
	}
	ts := entry.TimerStats
	if ts.AvgReactionTime != 400 {
		t.Fatalf("expected average 400, got %v", ts.AvgReactionTime)
	}
	if ts.BestReactionTime == nil || *ts.BestReactionTime != 400 {
		t.Fatalf("unexpected best reaction: %v", ts.BestReactionTime)
	}
}
