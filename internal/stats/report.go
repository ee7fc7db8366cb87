package stats

import (
	"context"

	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/store"
)

// Report contains precomputed data for stats rendering. Timer merges the
// reaction samples of every timer session in History.
type Report struct {
	Lifetime  model.LifetimeStats
	History   []model.HistoryEntry
	Timer     model.TimerStats
	HasTimer  bool
	Trends    Trends
	HasTrends bool
	Config    model.StatsConfig
}

// BuildReport loads persisted stats and prepares them for rendering.
func BuildReport(ctx context.Context, repo *store.Repo, cfg model.StatsConfig) Report {
	var lifetime model.LifetimeStats
	repo.Load(ctx, store.KeyLifetimeStats, &lifetime)
	var history []model.HistoryEntry
	repo.Load(ctx, store.KeySessionHistory, &history)
	return NewReport(lifetime, history, cfg)
}

// NewReport filters history per cfg and derives trends and timer aggregates.
func NewReport(lifetime model.LifetimeStats, history []model.HistoryEntry, cfg model.StatsConfig) Report {
	filtered := make([]model.HistoryEntry, 0, len(history))
	for _, h := range history {
		if cfg.Mode != "" && h.Mode != cfg.Mode {
			continue
		}
		filtered = append(filtered, h)
	}
	if cfg.Last > 0 && len(filtered) > cfg.Last {
		filtered = filtered[len(filtered)-cfg.Last:]
	}
	rep := Report{Lifetime: lifetime, History: filtered, Config: cfg}
	rep.Trends, rep.HasTrends = ComputeTrends(filtered)
	rep.Timer, rep.HasTimer = mergeTimer(filtered)
	return rep
}

func mergeTimer(history []model.HistoryEntry) (model.TimerStats, bool) {
	var out model.TimerStats
	found := false
	hits := 0
	total := 0.0
	for _, h := range history {
		ts := h.TimerStats
		if ts == nil {
			continue
		}
		found = true
		out.ReactionTimes = append(out.ReactionTimes, ts.ReactionTimes...)
		out.TooEarlyShots += ts.TooEarlyShots
		out.Timeouts += ts.Timeouts
		for i := range out.SegmentReactions {
			out.SegmentReactions[i] = append(out.SegmentReactions[i], ts.SegmentReactions[i]...)
		}
		for _, r := range ts.ReactionTimes {
			if !r.Hit {
				continue
			}
			hits++
			total += r.TimeMs
			if out.BestReactionTime == nil || r.TimeMs < *out.BestReactionTime {
				v := r.TimeMs
				out.BestReactionTime = &v
			}
			if out.WorstReactionTime == nil || r.TimeMs > *out.WorstReactionTime {
				v := r.TimeMs
				out.WorstReactionTime = &v
			}
		}
	}
	if hits > 0 {
		out.AvgReactionTime = total / float64(hits)
	}
	return out, found
}
