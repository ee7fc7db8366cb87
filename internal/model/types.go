// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// SegmentCount is the number of goal segments.
const SegmentCount = 5

// Segment identifies one of the five goal zones (1..5). Zero means "no segment".
type Segment int

// Segments lists every segment in sampling order.
var Segments = [SegmentCount]Segment{1, 2, 3, 4, 5}

// Valid reports whether s is within 1..5.
func (s Segment) Valid() bool {
	return s >= 1 && s <= SegmentCount
}

// Index returns the zero-based array index for s.
func (s Segment) Index() int {
	return int(s) - 1
}

// ParseSegment converts an integer into a Segment.
func ParseSegment(v int) (Segment, error) {
	s := Segment(v)
	if !s.Valid() {
		return 0, fmt.Errorf("segment %d out of range 1..%d", v, SegmentCount)
	}
	return s, nil
}

// Mode is a play mode.
type Mode string

// Play modes.
const (
	ModeFree       Mode = "free"
	ModeTarget     Mode = "target"
	ModePerfection Mode = "perfection"
	ModeTimer      Mode = "timer"
)

// ParseMode converts a string into a known Mode.
func ParseMode(v string) (Mode, bool) {
	switch Mode(v) {
	case ModeFree, ModeTarget, ModePerfection, ModeTimer:
		return Mode(v), true
	}
	return "", false
}

// ModeParams carries per-mode settings chosen at game start.
type ModeParams struct {
	TargetGoal       int
	PerfectionTarget int
	TimerRounds      int
}

// SegmentStat counts hits and attempts. Hits never exceed Attempts.
type SegmentStat struct {
	Hits     int `json:"hits"`
	Attempts int `json:"attempts"`
}

// HitRate returns hits/attempts, or fallback when nothing was attempted.
func (s SegmentStat) HitRate(fallback float64) float64 {
	if s.Attempts <= 0 {
		return fallback
	}
	return float64(s.Hits) / float64(s.Attempts)
}

// SegmentStats holds one SegmentStat per segment, indexed by Segment.Index.
type SegmentStats [SegmentCount]SegmentStat

// At returns a pointer to the stat for seg.
func (s *SegmentStats) At(seg Segment) *SegmentStat {
	return &s[seg.Index()]
}

// TotalHits sums hits across all segments.
func (s SegmentStats) TotalHits() int {
	total := 0
	for _, st := range s {
		total += st.Hits
	}
	return total
}

// PerfectionProgress tracks consecutive hits toward mastering a segment.
type PerfectionProgress struct {
	Current   int  `json:"current"`
	Completed bool `json:"completed"`
}

// SessionState is one active training session.
type SessionState struct {
	Mode               Mode                             `json:"mode"`
	StartTime          time.Time                        `json:"startTime"`
	Hits               int                              `json:"hits"`
	Misses             int                              `json:"misses"`
	Total              int                              `json:"total"`
	SegmentStats       SegmentStats                     `json:"segmentStats"`
	StreakBest         int                              `json:"streakBest"`
	PerfectionProgress [SegmentCount]PerfectionProgress `json:"perfectionProgress"`
	PerfectionTarget   int                              `json:"perfectionTarget"`
	TargetGoal         int                              `json:"targetGoal"`
	TimerRounds        int                              `json:"timerRounds,omitempty"`
}

// NewSession returns an empty session for the given mode.
func NewSession(mode Mode, params ModeParams, start time.Time) SessionState {
	return SessionState{
		Mode:             mode,
		StartTime:        start,
		PerfectionTarget: params.PerfectionTarget,
		TargetGoal:       params.TargetGoal,
		TimerRounds:      params.TimerRounds,
	}
}

// Params returns the mode parameters the session was started with.
func (s SessionState) Params() ModeParams {
	return ModeParams{
		TargetGoal:       s.TargetGoal,
		PerfectionTarget: s.PerfectionTarget,
		TimerRounds:      s.TimerRounds,
	}
}

// HitRate returns the session hit rate in [0,1].
func (s SessionState) HitRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Total)
}

// GameState is the lightweight companion snapshot written next to the session.
type GameState struct {
	Mode            Mode                  `json:"mode"`
	Score           int                   `json:"score"`
	Streak          int                   `json:"streak"`
	MaxStreak       int                   `json:"maxStreak"`
	AdaptiveWeights [SegmentCount]float64 `json:"adaptiveWeights"`
}

// LifetimeStats aggregates every session ever played.
type LifetimeStats struct {
	TotalSessions int          `json:"totalSessions"`
	TotalHits     int          `json:"totalHits"`
	TotalMisses   int          `json:"totalMisses"`
	TotalShots    int          `json:"totalShots"`
	BestStreak    int          `json:"bestStreak"`
	SegmentStats  SegmentStats `json:"segmentStats"`
	FirstPlayed   time.Time    `json:"firstPlayed"`
	LastPlayed    time.Time    `json:"lastPlayed"`
}

// ReactionSample is a single timer-mode shot.
type ReactionSample struct {
	Segment Segment `json:"segment"`
	TimeMs  float64 `json:"time"`
	Hit     bool    `json:"hit"`
	Round   int     `json:"round"`
}

// TimerStats summarizes a reaction-time session.
type TimerStats struct {
	ReactionTimes     []ReactionSample        `json:"reactionTimes"`
	AvgReactionTime   float64                 `json:"avgReactionTime"`
	BestReactionTime  *float64                `json:"bestReactionTime"`
	WorstReactionTime *float64                `json:"worstReactionTime"`
	TooEarlyShots     int                     `json:"tooEarlyShots"`
	Timeouts          int                     `json:"timeouts"`
	SegmentReactions  [SegmentCount][]float64 `json:"segmentReactions"`
}

// Clone returns a deep copy.
func (t TimerStats) Clone() TimerStats {
	out := t
	out.ReactionTimes = append([]ReactionSample(nil), t.ReactionTimes...)
	for i := range t.SegmentReactions {
		out.SegmentReactions[i] = append([]float64(nil), t.SegmentReactions[i]...)
	}
	if t.BestReactionTime != nil {
		v := *t.BestReactionTime
		out.BestReactionTime = &v
	}
	if t.WorstReactionTime != nil {
		v := *t.WorstReactionTime
		out.WorstReactionTime = &v
	}
	return out
}

// HistoryEntry is an archived session.
type HistoryEntry struct {
	ID string `json:"id"`
	SessionState
	EndTime    time.Time   `json:"endTime"`
	DurationMs int64       `json:"duration"`
	TimerStats *TimerStats `json:"timerStats,omitempty"`
}

// StatsConfig selects what the stats report covers. An empty Mode keeps
// every mode.
type StatsConfig struct {
	Mode        Mode
	Last        int
	CurveWindow int
}
