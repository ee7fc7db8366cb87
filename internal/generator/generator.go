// Package generator picks training targets with a bias toward weak segments.
package generator

import (
	"math"
	"math/rand"
	"time"

	"github.com/verte-zerg/kicktrain/internal/model"
)

const (
	// MinWeight and MaxWeight bound a weight before renormalization.
	MinWeight = 0.3
	MaxWeight = 3.0
	// TotalWeight is the sum every weight vector is normalized to.
	TotalWeight = float64(model.SegmentCount)

	neutralHitRate = 0.5
)

// HitRateSource reports lifetime hit rates per segment.
type HitRateSource interface {
	// HitRate returns hits/attempts for seg and false when there are no attempts.
	HitRate(seg model.Segment) (float64, bool)
}

// Weights is the adaptive sampling vector.
type Weights struct {
	values [model.SegmentCount]float64
	rates  HitRateSource
	rnd    *rand.Rand
}

// NewRand returns a generator seeded with the current time.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// NewWeights returns a uniform weight vector.
func NewWeights(rates HitRateSource, rnd *rand.Rand) *Weights {
	w := &Weights{rates: rates, rnd: rnd}
	w.Reset()
	return w
}

// Reset restores the uniform vector.
func (w *Weights) Reset() {
	for i := range w.values {
		w.values[i] = 1
	}
}

// Values returns a copy of the current vector.
func (w *Weights) Values() [model.SegmentCount]float64 {
	return w.values
}

// Load replaces the vector with persisted values. Non-finite or non-positive
// entries reset to the uniform vector; the rest are clamped and renormalized.
func (w *Weights) Load(values [model.SegmentCount]float64) {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			w.Reset()
			return
		}
	}
	for i, v := range values {
		w.values[i] = clamp(v)
	}
	w.normalize()
}

// Sample draws a segment with probability proportional to its weight.
func (w *Weights) Sample() model.Segment {
	total := 0.0
	for _, v := range w.values {
		total += v
	}
	r := w.rnd.Float64() * total
	for i, v := range w.values {
		r -= v
		if r <= 0 {
			return model.Segments[i]
		}
	}
	// Floating-point drift can leave a tiny positive remainder.
	return model.Segments[model.SegmentCount-1]
}

// Update adjusts the weight of seg after a hit or miss and renormalizes the
// vector. It returns the adjusted weight before renormalization.
func (w *Weights) Update(seg model.Segment, hit bool) float64 {
	if !seg.Valid() {
		return 0
	}
	hitRate := neutralHitRate
	if w.rates != nil {
		if rate, ok := w.rates.HitRate(seg); ok {
			hitRate = rate
		}
	}
	factor := 1.10
	switch {
	case hit && hitRate > 0.7:
		factor = 0.90
	case hit:
		factor = 0.95
	case hitRate < 0.5:
		factor = 1.20
	}
	// Renormalization can push a weight past either bound, so both apply
	// regardless of direction.
	next := clamp(w.values[seg.Index()] * factor)
	w.values[seg.Index()] = next
	w.normalize()
	return next
}

func (w *Weights) normalize() {
	sum := 0.0
	for _, v := range w.values {
		sum += v
	}
	if sum <= 0 {
		w.Reset()
		return
	}
	for i := range w.values {
		w.values[i] = w.values[i] / sum * TotalWeight
	}
}

func clamp(v float64) float64 {
	return math.Min(MaxWeight, math.Max(MinWeight, v))
}
