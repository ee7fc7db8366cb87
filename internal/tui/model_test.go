package tui

import (
	"context"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/game"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/sensor"
	"github.com/verte-zerg/kicktrain/internal/store"
)

func openRepo(t *testing.T) *store.Repo {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kicktrain.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return store.NewRepo(st)
}

func newEngine(repo *store.Repo) (*game.Engine, *clock.Fake) {
	clk := clock.NewFake(time.Unix(1000, 0))
	opts := game.DefaultOptions()
	opts.Timer.WaitMax = opts.Timer.WaitMin
	e := game.New(context.Background(), repo, clk, clk, rand.New(rand.NewSource(3)), opts)
	e.Load()
	return e, clk
}

func press(m *Model, key string) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return cmd
}

func TestRenderFooterFormats(t *testing.T) {
	m := &Model{snap: game.Snapshot{
		Session:   model.SessionState{Mode: model.ModeFree, Hits: 3, Total: 4},
		Streak:    2,
		Score:     3,
		MaxStreak: 2,
		Lifetime:  model.LifetimeStats{TotalHits: 7, TotalShots: 10},
	}}
	out := m.renderFooter()
	for _, want := range []string{"Hits 3/4 75.0%", "Streak 2", "Score 3", "Best 2", "All-time 70.0%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("footer missing %q: %s", want, out)
		}
	}
	if (&Model{}).renderFooter() != "" {
		t.Fatalf("expected empty footer without a session")
	}
}

func TestKeysCompleteTargetGame(t *testing.T) {
	e, _ := newEngine(openRepo(t))
	m, err := NewModel(e, nil, nil, Config{Mode: model.ModeTarget, Params: model.ModeParams{TargetGoal: 1}})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	target := m.snap.Target
	if !target.Valid() {
		t.Fatalf("expected a target after start, got %d", target)
	}
	press(m, string(rune('0'+target)))
	if m.summary == nil || m.summary.Entry.Hits != 1 {
		t.Fatalf("expected completion summary, got %+v", m.summary)
	}
	if !strings.Contains(m.View(), "Target goal reached") {
		t.Fatalf("view missing completion banner:\n%s", m.View())
	}

	press(m, "n")
	if m.summary != nil || m.snap.Session.Total != 0 || !m.snap.Active {
		t.Fatalf("expected a fresh game, got %+v", m.snap)
	}
}

func TestNewModelRejectsInvalidConfig(t *testing.T) {
	e, _ := newEngine(store.NewRepo(nil))
	if _, err := NewModel(e, nil, nil, Config{Mode: model.ModeTarget}); err == nil {
		t.Fatalf("expected invalid goal to fail")
	}
}

func TestRestorePrompt(t *testing.T) {
	repo := openRepo(t)
	first, _ := newEngine(repo)
	if err := first.StartSession(model.ModeFree, model.ModeParams{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	first.RegisterMiss()
	first.Shutdown()

	second, _ := newEngine(repo)
	m, err := NewModel(second, nil, nil, Config{Mode: model.ModeFree})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	if !m.prompt || m.pending.Total != 1 {
		t.Fatalf("expected restore prompt for one shot, got prompt=%v pending=%+v", m.prompt, m.pending)
	}
	if !strings.Contains(m.View(), "Restore unfinished free session") {
		t.Fatalf("view missing prompt:\n%s", m.View())
	}
	press(m, "1")
	if second.Session().Total != 0 {
		t.Fatalf("shots must be ignored while prompting")
	}
	press(m, "y")
	if m.prompt || second.Session().Total != 1 || !second.Target().Valid() {
		t.Fatalf("expected restored session, got %+v", second.Session())
	}
}

func TestDiscardPromptStartsConfiguredGame(t *testing.T) {
	repo := openRepo(t)
	first, _ := newEngine(repo)
	_ = first.StartSession(model.ModeFree, model.ModeParams{})
	first.RegisterMiss()
	first.Shutdown()

	second, _ := newEngine(repo)
	m, err := NewModel(second, nil, nil, Config{Mode: model.ModePerfection, Params: model.ModeParams{PerfectionTarget: 2}})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	press(m, "n")
	if second.Session().Mode != model.ModePerfection || second.Session().Total != 0 {
		t.Fatalf("expected a new perfection game, got %+v", second.Session())
	}
	if _, _, ok := second.PendingSnapshot(); ok {
		t.Fatalf("discard must delete the snapshot")
	}
}

func TestSensorEventsAndQuit(t *testing.T) {
	repo := openRepo(t)
	e, _ := newEngine(repo)
	m, err := NewModel(e, nil, nil, Config{Mode: model.ModeFree})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	m.Update(sensorMsg{Kind: sensor.KindGoal})
	if e.Session().Hits != 1 {
		t.Fatalf("goal event must count as a hit, got %+v", e.Session())
	}
	m.Update(sensorMsg{Kind: sensor.KindMiss})
	if e.Session().Misses != 1 {
		t.Fatalf("miss event must count as a miss, got %+v", e.Session())
	}

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
	if _, _, ok := e.PendingSnapshot(); !ok {
		t.Fatalf("quit must autosave the session")
	}
}

func TestSaveKeyArchivesSession(t *testing.T) {
	e, _ := newEngine(openRepo(t))
	m, err := NewModel(e, nil, nil, Config{Mode: model.ModeFree})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	press(m, "s")
	if m.notice != "Nothing to save yet" {
		t.Fatalf("unexpected notice %q", m.notice)
	}
	press(m, "x")
	press(m, "s")
	if len(e.History()) != 1 || !strings.HasPrefix(m.notice, "Session saved") {
		t.Fatalf("expected archived session, notice %q", m.notice)
	}
	if !strings.Contains(m.View(), "No active session") {
		t.Fatalf("view must show the idle state:\n%s", m.View())
	}
}

func TestTimerViewHidesTargetUntilShoot(t *testing.T) {
	e, clk := newEngine(openRepo(t))
	m, err := NewModel(e, nil, nil, Config{Mode: model.ModeTimer, Params: model.ModeParams{TimerRounds: 1}})
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	clk.Advance(500 * time.Millisecond)
	clk.Advance(time.Second)
	if m.showTarget() || !strings.Contains(m.View(), "Wait for it") {
		t.Fatalf("target must be hidden while waiting:\n%s", m.View())
	}
	clk.Advance(2 * time.Second)
	if !m.showTarget() || !strings.Contains(m.View(), "SHOOT at") {
		t.Fatalf("expected shoot cue:\n%s", m.View())
	}
}
