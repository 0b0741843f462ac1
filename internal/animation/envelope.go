package animation

import (
	"sort"
	"time"
)

// Ease names the curve applied to the segment starting at a keyframe.
type Ease string

const (
	Linear Ease = "linear"
	Smooth Ease = "smooth"
	Cubic  Ease = "cubic"
)

type Keyframe struct {
	T    time.Duration `json:"t" yaml:"t"`
	V    float64       `json:"v" yaml:"v"`
	Ease Ease          `json:"ease,omitempty" yaml:"ease,omitempty"`
}

// Envelope interpolates a value over time between keyframes.
type Envelope struct {
	Keys []Keyframe
}

// NewEnvelope sorts keys by time.
func NewEnvelope(keys ...Keyframe) Envelope {
	k := append([]Keyframe(nil), keys...)
	sort.SliceStable(k, func(i, j int) bool { return k[i].T < k[j].T })
	return Envelope{Keys: k}
}

// smootherstep 6x^5 - 15x^4 + 10x^3
func smootherstep(x float64) float64 {
	return x * x * x * (x*(x*6-15) + 10)
}

func (e Ease) apply(x float64) float64 {
	switch e {
	case Smooth:
		return x * x * (3 - 2*x)
	case Cubic:
		return smootherstep(x)
	default:
		return x
	}
}

// Eval returns the value at t. Before the first key it holds the first
// value, after the last it holds the last. No keys evaluate to 0.
func (e Envelope) Eval(t time.Duration) float64 {
	n := len(e.Keys)
	if n == 0 {
		return 0
	}
	if n == 1 || t <= e.Keys[0].T {
		return e.Keys[0].V
	}
	if t >= e.Keys[n-1].T {
		return e.Keys[n-1].V
	}
	for i := 0; i < n-1; i++ {
		a, b := e.Keys[i], e.Keys[i+1]
		if t < a.T || t > b.T {
			continue
		}
		den := b.T - a.T
		if den <= 0 {
			return b.V
		}
		u := clamp01(float64(t-a.T) / float64(den))
		return a.V + (b.V-a.V)*a.Ease.apply(u)
	}
	return e.Keys[n-1].V
}

// Span is the time of the last key.
func (e Envelope) Span() time.Duration {
	if len(e.Keys) == 0 {
		return 0
	}
	return e.Keys[len(e.Keys)-1].T
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
