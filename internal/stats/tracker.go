package stats

import (
	"context"

	"github.com/google/uuid"

	"github.com/verte-zerg/kicktrain/internal/clock"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/store"
)

// HistoryLimit caps the archived session log.
const HistoryLimit = 100

// Baseline is the session snapshot taken at the previous flush.
type Baseline struct {
	Hits     int
	Total    int
	Segments model.SegmentStats
}

// BaselineOf captures the counters of s.
func BaselineOf(s model.SessionState) Baseline {
	return Baseline{Hits: s.Hits, Total: s.Total, Segments: s.SegmentStats}
}

// Tracker maintains lifetime totals and the bounded session history.
type Tracker struct {
	repo     *store.Repo
	clock    clock.Clock
	lifetime model.LifetimeStats
	history  []model.HistoryEntry
}

// NewTracker returns a Tracker with empty stats. Call Load to read persisted state.
func NewTracker(repo *store.Repo, clk clock.Clock) *Tracker {
	t := &Tracker{repo: repo, clock: clk}
	t.lifetime = t.empty()
	return t
}

func (t *Tracker) empty() model.LifetimeStats {
	now := t.clock.Now()
	return model.LifetimeStats{FirstPlayed: now, LastPlayed: now}
}

// Load reads lifetime stats and history, keeping defaults for missing or
// malformed blobs.
func (t *Tracker) Load(ctx context.Context) {
	var lifetime model.LifetimeStats
	if t.repo.Load(ctx, store.KeyLifetimeStats, &lifetime) {
		t.lifetime = lifetime
	}
	var history []model.HistoryEntry
	if t.repo.Load(ctx, store.KeySessionHistory, &history) {
		if len(history) > HistoryLimit {
			history = history[len(history)-HistoryLimit:]
		}
		t.history = history
	}
}

func (t *Tracker) save(ctx context.Context) {
	t.repo.Save(ctx, store.KeyLifetimeStats, t.lifetime)
	t.repo.Save(ctx, store.KeySessionHistory, t.history)
}

// Update applies the change between prev and session to the lifetime totals.
// Flushing an unchanged session applies a zero delta.
func (t *Tracker) Update(ctx context.Context, session model.SessionState, prev Baseline) {
	t.lifetime.TotalHits += session.Hits - prev.Hits
	t.lifetime.TotalShots += session.Total - prev.Total
	t.lifetime.TotalMisses = t.lifetime.TotalShots - t.lifetime.TotalHits
	for i := range t.lifetime.SegmentStats {
		t.lifetime.SegmentStats[i].Hits += session.SegmentStats[i].Hits - prev.Segments[i].Hits
		t.lifetime.SegmentStats[i].Attempts += session.SegmentStats[i].Attempts - prev.Segments[i].Attempts
	}
	if session.StreakBest > t.lifetime.BestStreak {
		t.lifetime.BestStreak = session.StreakBest
	}
	t.lifetime.LastPlayed = t.clock.Now()
	t.save(ctx)
}

// SaveSession archives a deep copy of session into the history.
func (t *Tracker) SaveSession(ctx context.Context, session model.SessionState, timer *model.TimerStats) model.HistoryEntry {
	end := t.clock.Now()
	entry := model.HistoryEntry{
		ID:           uuid.NewString(),
		SessionState: session,
		EndTime:      end,
		DurationMs:   end.Sub(session.StartTime).Milliseconds(),
	}
	if timer != nil {
		copied := timer.Clone()
		entry.TimerStats = &copied
	}
	t.history = append(t.history, entry)
	if len(t.history) > HistoryLimit {
		t.history = append([]model.HistoryEntry(nil), t.history[len(t.history)-HistoryLimit:]...)
	}
	t.lifetime.TotalSessions++
	t.save(ctx)
	return entry
}

// Reset wipes lifetime stats and history.
func (t *Tracker) Reset(ctx context.Context) {
	t.lifetime = t.empty()
	t.history = nil
	t.save(ctx)
}

// HitRate implements generator.HitRateSource with lifetime numbers.
func (t *Tracker) HitRate(seg model.Segment) (float64, bool) {
	if !seg.Valid() {
		return 0, false
	}
	st := t.lifetime.SegmentStats[seg.Index()]
	if st.Attempts <= 0 {
		return 0, false
	}
	return st.HitRate(0), true
}

// Lifetime returns the lifetime totals.
func (t *Tracker) Lifetime() model.LifetimeStats {
	return t.lifetime
}

// History returns a copy of the archived sessions, oldest first.
func (t *Tracker) History() []model.HistoryEntry {
	return append([]model.HistoryEntry(nil), t.history...)
}
