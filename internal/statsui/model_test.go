package statsui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/store"
)

func seededRepo(t *testing.T) *store.Repo {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "kicktrain.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	repo := store.NewRepo(st)
	ctx := context.Background()
	lifetime := model.LifetimeStats{TotalSessions: 1, TotalHits: 3, TotalMisses: 1, TotalShots: 4, BestStreak: 2}
	lifetime.SegmentStats[1] = model.SegmentStat{Hits: 3, Attempts: 4}
	repo.Save(ctx, store.KeyLifetimeStats, lifetime)
	repo.Save(ctx, store.KeySessionHistory, []model.HistoryEntry{{
		ID:           "a",
		SessionState: model.SessionState{Mode: model.ModeFree, Hits: 3, Misses: 1, Total: 4, StreakBest: 2},
	}})
	repo.Save(ctx, store.KeyAdaptiveWeights, []float64{1.2, 0.8, 1, 1, 1})
	return repo
}

func TestSegmentRowsIncludeWeights(t *testing.T) {
	m := NewModel(seededRepo(t), model.StatsConfig{CurveWindow: 5})
	rows := m.table.Rows()
	if len(rows) != model.SegmentCount {
		t.Fatalf("expected %d rows, got %d", model.SegmentCount, len(rows))
	}
	if rows[1][1] != "75.0%" || rows[1][4] != "0.80" {
		t.Fatalf("unexpected segment 2 row: %v", rows[1])
	}
	if rows[0][1] != "-" {
		t.Fatalf("unattempted segment must show no rate, got %v", rows[0])
	}
}

func TestTabsRenderReports(t *testing.T) {
	m := NewModel(seededRepo(t), model.StatsConfig{CurveWindow: 5})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	if !strings.Contains(m.View(), "Hit rate") {
		t.Fatalf("overview missing hit rate card:\n%s", m.View())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if m.active != tabHistory || !strings.Contains(m.View(), "History") {
		t.Fatalf("expected history tab:\n%s", m.View())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if m.active != tabTimer || !strings.Contains(m.View(), "No timer sessions yet.") {
		t.Fatalf("expected empty timer tab:\n%s", m.View())
	}
}

func TestSettingsForm(t *testing.T) {
	m := NewModel(store.NewRepo(nil), model.StatsConfig{CurveWindow: 5})
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	if m.form == nil {
		t.Fatalf("expected settings form to open")
	}
	m.form.inputs[fieldMode].SetValue("timer")
	m.form.inputs[fieldLast].SetValue("3")
	m.form.inputs[fieldWindow].SetValue("2")
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.form != nil {
		t.Fatalf("expected form to close after apply")
	}
	if m.cfg.Mode != model.ModeTimer || m.cfg.Last != 3 || m.cfg.CurveWindow != 2 {
		t.Fatalf("unexpected config: %+v", m.cfg)
	}
}

func TestSettingsFormRejectsBadValues(t *testing.T) {
	cfg := model.StatsConfig{CurveWindow: 5}
	f := newSettingsForm(cfg, 80)
	f.inputs[fieldMode].SetValue("penalty")
	if _, err := f.apply(cfg); err == nil {
		t.Fatalf("expected unknown mode error")
	}
	f.inputs[fieldMode].SetValue("all")
	f.inputs[fieldWindow].SetValue("0")
	if _, err := f.apply(cfg); err == nil {
		t.Fatalf("expected curve window error")
	}
	f.inputs[fieldWindow].SetValue("")
	got, err := f.apply(cfg)
	if err != nil || got.CurveWindow != 5 || got.Mode != "" {
		t.Fatalf("unexpected result: %+v, %v", got, err)
	}
}

func TestStepWindow(t *testing.T) {
	cases := []struct{ n, dir, want int }{
		{1, 1, 5}, {5, 1, 10}, {7, 1, 10},
		{5, -1, 1}, {10, -1, 5}, {7, -1, 5}, {1, -1, 1},
	}
	for _, c := range cases {
		if got := stepWindow(c.n, c.dir); got != c.want {
			t.Fatalf("stepWindow(%d, %d) = %d, want %d", c.n, c.dir, got, c.want)
		}
	}
}

func TestFitPadsAndClips(t *testing.T) {
	out := fit("abcdefghij\nx", 6, 3)
	lines := strings.Split(out, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if len(line) != 6 {
			t.Fatalf("line %q not padded to width", line)
		}
	}
	if lines[0] != "abc..." {
		t.Fatalf("unexpected truncation %q", lines[0])
	}
}
