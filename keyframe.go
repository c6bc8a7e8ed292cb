package bodymovin

import (
	"math"
	"sort"

	"github.com/tanema/gween/ease"
)

// Keyframe is a single timestamped sample of a track.
type Keyframe struct {
	Time  float64
	Value Value
	// Hold snaps to this keyframe's value until the next keyframe.
	Hold bool
	// Ease shapes the segment from this keyframe to the next. Nil is linear.
	Ease ease.TweenFunc
}

// KeyframeTrack is an ordered sequence of keyframes for one property.
// Sampling is a pure function of the keyframes and the time: there is no
// playhead state, so scrubbing in any order yields identical values.
type KeyframeTrack struct {
	keyframes []Keyframe
	hold      bool
	transform func(Value) Value
}

// NewTrack creates a track from keyframes. The keyframes are copied and
// stably sorted by time. A hold track never interpolates (text documents).
// transform, when non-nil, converts sampled values into the renderer domain.
func NewTrack(keyframes []Keyframe, hold bool, transform func(Value) Value) *KeyframeTrack {
	kfs := make([]Keyframe, len(keyframes))
	copy(kfs, keyframes)
	sort.SliceStable(kfs, func(i, j int) bool { return kfs[i].Time < kfs[j].Time })
	return &KeyframeTrack{keyframes: kfs, hold: hold, transform: transform}
}

// StaticTrack creates a single-keyframe track that always samples to v.
func StaticTrack(v Value, transform func(Value) Value) *KeyframeTrack {
	return NewTrack([]Keyframe{{Value: v}}, false, transform)
}

// Len returns the number of keyframes.
func (tr *KeyframeTrack) Len() int { return len(tr.keyframes) }

// Animated reports whether the track has more than one keyframe.
func (tr *KeyframeTrack) Animated() bool { return len(tr.keyframes) > 1 }

// Hold reports whether the track uses hold interpolation throughout.
func (tr *KeyframeTrack) Hold() bool { return tr.hold }

// Keyframes returns the sorted keyframes. The slice MUST NOT be mutated.
func (tr *KeyframeTrack) Keyframes() []Keyframe { return tr.keyframes }

// StartTime returns the time of the first keyframe.
func (tr *KeyframeTrack) StartTime() float64 {
	if len(tr.keyframes) == 0 {
		return 0
	}
	return tr.keyframes[0].Time
}

// EndTime returns the time of the last keyframe.
func (tr *KeyframeTrack) EndTime() float64 {
	if len(tr.keyframes) == 0 {
		return 0
	}
	return tr.keyframes[len(tr.keyframes)-1].Time
}

// Sample returns the value at local time t. Before the first keyframe the
// first value is returned, after the last the last value. Between keyframes
// the value is interpolated unless the track or the active keyframe holds.
// Returns nil for an empty track.
func (tr *KeyframeTrack) Sample(t float64) Value {
	n := len(tr.keyframes)
	if n == 0 {
		return nil
	}
	if n == 1 || t <= tr.keyframes[0].Time {
		return tr.finish(tr.keyframes[0].Value)
	}
	if t >= tr.keyframes[n-1].Time {
		return tr.finish(tr.keyframes[n-1].Value)
	}

	i := tr.activeIndex(t)
	kf := tr.keyframes[i]
	if tr.hold || kf.Hold || t == kf.Time {
		return tr.finish(kf.Value)
	}
	next := tr.keyframes[i+1]
	span := next.Time - kf.Time
	if span <= 0 {
		return tr.finish(next.Value)
	}
	fn := kf.Ease
	if fn == nil {
		fn = ease.Linear
	}
	p := float64(fn(float32(t-kf.Time), 0, 1, float32(span)))
	return tr.finish(lerpValue(kf.Value, next.Value, p))
}

// SampleScalar returns component 0 of Sample(t), or fallback for an empty track.
func (tr *KeyframeTrack) SampleScalar(t, fallback float64) float64 {
	v := tr.Sample(t)
	if len(v) == 0 {
		return fallback
	}
	return v[0]
}

// activeIndex returns the index of the last keyframe whose time is <= t.
// The caller guarantees keyframes[0].Time < t < keyframes[n-1].Time.
func (tr *KeyframeTrack) activeIndex(t float64) int {
	j := sort.Search(len(tr.keyframes), func(i int) bool { return tr.keyframes[i].Time > t })
	return j - 1
}

func (tr *KeyframeTrack) finish(v Value) Value {
	out := v.Clone()
	if tr.transform != nil {
		out = tr.transform(out)
	}
	return out
}

// lerpValue interpolates component-wise. Components missing from b keep a's value.
func lerpValue(a, b Value, p float64) Value {
	out := make(Value, len(a))
	for i := range a {
		if i < len(b) {
			out[i] = a[i] + (b[i]-a[i])*p
		} else {
			out[i] = a[i]
		}
	}
	return out
}

// --- Bezier easing ---

// CubicBezier returns an easing function for the CSS-style cubic bezier with
// control points (x1, y1) and (x2, y2), the form keyframe out/in handles take.
func CubicBezier(x1, y1, x2, y2 float64) ease.TweenFunc {
	if x1 == y1 && x2 == y2 {
		return ease.Linear
	}
	x1 = clamp01(x1)
	x2 = clamp01(x2)
	return func(t, b, c, d float32) float32 {
		if d <= 0 {
			return b + c
		}
		x := float64(t / d)
		if x <= 0 {
			return b
		}
		if x >= 1 {
			return b + c
		}
		s := solveBezierX(x, x1, x2)
		return b + c*float32(bezierAt(s, y1, y2))
	}
}

// bezierAt evaluates one coordinate of a cubic bezier anchored at 0 and 1.
func bezierAt(s, p1, p2 float64) float64 {
	inv := 1 - s
	return 3*inv*inv*s*p1 + 3*inv*s*s*p2 + s*s*s
}

func bezierSlope(s, p1, p2 float64) float64 {
	inv := 1 - s
	return 3*inv*inv*p1 + 6*inv*s*(p2-p1) + 3*s*s*(1-p2)
}

// solveBezierX finds the curve parameter whose x coordinate equals x. Newton
// iterations with a bisection fallback when the slope flattens.
func solveBezierX(x, x1, x2 float64) float64 {
	s := x
	for range 8 {
		dx := bezierAt(s, x1, x2) - x
		if math.Abs(dx) < 1e-7 {
			return s
		}
		slope := bezierSlope(s, x1, x2)
		if math.Abs(slope) < 1e-6 {
			break
		}
		s -= dx / slope
	}
	lo, hi := 0.0, 1.0
	s = x
	for range 32 {
		v := bezierAt(s, x1, x2)
		if math.Abs(v-x) < 1e-7 {
			break
		}
		if v < x {
			lo = s
		} else {
			hi = s
		}
		s = (lo + hi) / 2
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
