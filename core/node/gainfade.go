package node

import (
	"math"
	"sync/atomic"
)

// gainEpsilon is the tolerance below which current and target gain are
// considered equal for StillRunning purposes: float64 machine epsilon.
const gainEpsilon = 0x1p-52

// GainFade ramps a gain value linearly toward a target of 0 or 1 at a fixed
// rate of 20 units per second, the ramp every Root node applies to its
// input. Target is stored atomically so SetTarget (control thread) and Step
// (audio thread) never race.
type GainFade struct {
	sampleRate float64
	current    float64
	targetBits atomic.Uint64
}

// NewGainFade creates a fade starting at gain 0 with target 0.
func NewGainFade(sampleRate float64) *GainFade {
	return &GainFade{sampleRate: sampleRate}
}

// SetTarget sets the gain this fade ramps toward.
func (g *GainFade) SetTarget(target float64) {
	g.targetBits.Store(math.Float64bits(target))
}

func (g *GainFade) target() float64 {
	return math.Float64frombits(g.targetBits.Load())
}

// On reports whether the fade's target is active (>= 0.5).
func (g *GainFade) On() bool {
	return g.target() >= 0.5
}

// StillRunning reports whether this fade should keep contributing audio:
// its target is active, or its current gain hasn't yet settled at target.
func (g *GainFade) StillRunning() bool {
	t := g.target()
	return t >= 0.5 || math.Abs(g.current-t) >= gainEpsilon
}

// Step returns the current gain for this sample, then advances current by
// one sample toward target, clamped to [0,1]. The read-then-step order
// matters: the sample being scaled right now must see the gain as it stood
// before this step, so a freshly activated root's very first sample is
// scaled by exactly 0.
func (g *GainFade) Step() float64 {
	result := g.current
	t := g.target()
	step := 20.0 / g.sampleRate

	switch {
	case g.current < t:
		g.current += step
		if g.current > t {
			g.current = t
		}
	case g.current > t:
		g.current -= step
		if g.current < t {
			g.current = t
		}
	}

	if g.current > 1 {
		g.current = 1
	} else if g.current < 0 {
		g.current = 0
	}
	return result
}

// Reset returns the fade to gain 0 with target 0.
func (g *GainFade) Reset() {
	g.current = 0
	g.targetBits.Store(0)
}
