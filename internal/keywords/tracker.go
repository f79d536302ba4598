// Package keywords holds the query keyword universe and the yield weights
// that steer which keyword combinations get searched next.
package keywords

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/sampleuv"
)

const (
	// DefaultMinKeywords is the smallest combination Sample returns.
	DefaultMinKeywords = 2
	// DefaultMaxKeywords is the largest combination Sample returns.
	DefaultMaxKeywords = 4
	// unseenBase and unseenFactor define the weight of keywords that have
	// never received feedback: unseenFactor*max(weight)+unseenBase.
	unseenBase   = 50
	unseenFactor = 3
)

// Tracker keeps per-keyword discovery counts and samples weighted
// keyword combinations. It is owned by a single goroutine.
type Tracker struct {
	keywords []string
	weights  map[string]uint64
	minK     int
	maxK     int
	rng      *rand.Rand
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithCombinationSize sets the inclusive range of keywords per combination.
func WithCombinationSize(minK, maxK int) Option {
	return func(t *Tracker) {
		t.minK = minK
		t.maxK = maxK
	}
}

// WithSource sets the random source, mostly for tests.
func WithSource(src rand.Source) Option {
	return func(t *Tracker) {
		t.rng = rand.New(src)
	}
}

// NewTracker builds a Tracker over the keyword universe. Duplicates are dropped.
func NewTracker(keywords []string, opts ...Option) *Tracker {
	t := &Tracker{
		weights: make(map[string]uint64),
		minK:    DefaultMinKeywords,
		maxK:    DefaultMaxKeywords,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	seen := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		if seen[k] {
			continue
		}
		seen[k] = true
		t.keywords = append(t.keywords, k)
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.minK < 1 {
		t.minK = 1
	}
	if t.maxK < t.minK {
		t.maxK = t.minK
	}
	return t
}

// Keywords returns the keyword universe in insertion order.
func (t *Tracker) Keywords() []string {
	return append([]string(nil), t.keywords...)
}

// Weight returns the recorded weight for k, and whether any feedback exists for it.
func (t *Tracker) Weight(k string) (uint64, bool) {
	w, ok := t.weights[k]
	return w, ok
}

// Snapshot returns a copy of the recorded weights.
func (t *Tracker) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(t.weights))
	for k, w := range t.weights {
		out[k] = w
	}
	return out
}

// SamplingWeight is the relative probability mass k gets in Sample.
func (t *Tracker) SamplingWeight(k string) float64 {
	return t.samplingWeight(k, t.maxWeight())
}

func (t *Tracker) samplingWeight(k string, maxWeight uint64) float64 {
	w, ok := t.weights[k]
	if !ok {
		return float64(unseenFactor*maxWeight + unseenBase)
	}
	return float64(max(w, 1))
}

func (t *Tracker) maxWeight() uint64 {
	var m uint64
	for _, w := range t.weights {
		m = max(m, w)
	}
	return m
}

// Sample draws a combination size uniformly from the configured range and
// then that many distinct keywords, weighted, without replacement.
func (t *Tracker) Sample() []string {
	if len(t.keywords) == 0 {
		return nil
	}
	n := t.minK + t.rng.IntN(t.maxK-t.minK+1)
	n = min(n, len(t.keywords))

	maxWeight := t.maxWeight()
	w := make([]float64, len(t.keywords))
	for i, k := range t.keywords {
		w[i] = t.samplingWeight(k, maxWeight)
	}

	sampler := sampleuv.NewWeighted(w, t.rng)
	out := make([]string, 0, n)
	for len(out) < n {
		idx, ok := sampler.Take()
		if !ok {
			break
		}
		out = append(out, t.keywords[idx])
	}
	return out
}

// RecordFeedback credits newCount discoveries to every keyword in sampled.
// Weights only grow and never fall below 1.
func (t *Tracker) RecordFeedback(sampled []string, newCount int) {
	inc := uint64(max(newCount, 0))
	for _, k := range sampled {
		t.weights[k] = max(t.weights[k]+inc, 1)
	}
}
