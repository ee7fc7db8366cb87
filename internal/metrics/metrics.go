// Package metrics exports training activity as Prometheus metrics.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/verte-zerg/kicktrain/internal/game"
	"github.com/verte-zerg/kicktrain/internal/model"
	"github.com/verte-zerg/kicktrain/internal/timer"
)

const namespace = "kicktrain"

// Collector observes engine signals. It is safe to scrape while the engine
// goroutine updates it.
type Collector struct {
	game.NopListener

	shots       *prometheus.CounterVec
	corrections prometheus.Counter
	targets     *prometheus.CounterVec
	completions *prometheus.CounterVec
	timerEvents *prometheus.CounterVec
	reaction    *prometheus.HistogramVec
	streak      prometheus.Gauge
	hitRate     prometheus.Gauge
	weights     *prometheus.GaugeVec

	mu   sync.RWMutex
	last game.Snapshot
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		shots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shots_total",
			Help:      "Recorded shots by target segment and result.",
		}, []string{"segment", "result"}),
		corrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "corrections_total",
			Help:      "Timer shots reclassified within the correction window.",
		}),
		targets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Targets presented by segment.",
		}, []string{"segment"}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_completions_total",
			Help:      "Completed sessions by mode.",
		}, []string{"mode"}),
		timerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timer_rounds_total",
			Help:      "Resolved timer rounds by result.",
		}, []string{"result"}),
		reaction: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reaction_seconds",
			Help:      "Reaction time of timer shots by segment.",
			Buckets:   []float64{0.3, 0.5, 0.7, 1, 1.5, 2},
		}, []string{"segment"}),
		streak: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streak",
			Help:      "Current streak of consecutive hits.",
		}),
		hitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_hit_rate",
			Help:      "Hit rate of the running session.",
		}),
		weights: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "adaptive_weight",
			Help:      "Adaptive sampling weight by segment.",
		}, []string{"segment"}),
	}
	reg.MustRegister(
		c.shots,
		c.corrections,
		c.targets,
		c.completions,
		c.timerEvents,
		c.reaction,
		c.streak,
		c.hitRate,
		c.weights,
	)
	return c
}

func segmentLabel(seg model.Segment) string {
	return strconv.Itoa(int(seg))
}

// TargetChanged implements game.Listener.
func (c *Collector) TargetChanged(seg model.Segment) {
	c.targets.WithLabelValues(segmentLabel(seg)).Inc()
}

// OutcomeOccurred implements game.Listener. Shots are counted as first
// classified; corrections are counted separately.
func (c *Collector) OutcomeOccurred(o game.Outcome) {
	c.streak.Set(float64(o.Streak))
	if o.Corrected {
		c.corrections.Inc()
		return
	}
	result := "miss"
	if o.Hit {
		result = "hit"
	}
	c.shots.WithLabelValues(segmentLabel(o.Target), result).Inc()
}

// ModeCompleted implements game.Listener.
func (c *Collector) ModeCompleted(s game.Summary) {
	c.completions.WithLabelValues(string(s.Entry.Mode)).Inc()
}

// TimerPhaseChanged implements game.Listener.
func (c *Collector) TimerPhaseChanged(e timer.Event) {
	if e.Phase != timer.PhaseResolved || e.Result == timer.ResultNone {
		return
	}
	c.timerEvents.WithLabelValues(string(e.Result)).Inc()
	if e.Result == timer.ResultHit {
		c.reaction.WithLabelValues(segmentLabel(e.Target)).Observe(e.ReactionMs / 1000)
	}
}

// StatsUpdated implements game.Listener.
func (c *Collector) StatsUpdated(s game.Snapshot) {
	c.hitRate.Set(s.Session.HitRate())
	for _, seg := range model.Segments {
		c.weights.WithLabelValues(segmentLabel(seg)).Set(s.Weights[seg.Index()])
	}
	c.mu.Lock()
	c.last = s
	c.mu.Unlock()
}

// Last returns the most recent engine snapshot.
func (c *Collector) Last() game.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}
