package bodymovin

// BezierHandle is a keyframe tangent in normalized segment space.
type BezierHandle struct {
	X, Y float64
}

// RawKeyframe is one keyframe as exported by the authoring tool, after
// normalization. Start is the value at Time; End, when present, is the value
// the segment reaches at the next keyframe (older exports omit the next
// keyframe's Start and rely on it).
type RawKeyframe struct {
	Time  float64
	Start Value
	End   Value
	Hold  bool
	// Out and In shape the segment leaving this keyframe.
	Out, In *BezierHandle
}

// RawValue is a normalized property value: either static or keyframed.
// Corresponds to the {a, k} pair of the export format.
type RawValue struct {
	Animated  bool
	Static    Value
	Keyframes []RawKeyframe
}

// StaticValue returns a non-animated RawValue.
func StaticValue(v ...float64) RawValue {
	return RawValue{Static: Value(v)}
}

// AnimatedValue returns a keyframed RawValue.
func AnimatedValue(keyframes ...RawKeyframe) RawValue {
	return RawValue{Animated: true, Keyframes: keyframes}
}

// Initial returns the value at the first keyframe, or the static value.
func (rv RawValue) Initial() Value {
	if !rv.Animated {
		return rv.Static
	}
	for i, kf := range rv.Keyframes {
		if kf.Start != nil {
			return kf.Start
		}
		if i > 0 && rv.Keyframes[i-1].End != nil {
			return rv.Keyframes[i-1].End
		}
	}
	return nil
}

// Track builds a KeyframeTrack. Static values become single-keyframe tracks.
// Keyframes without a Start inherit the previous keyframe's End; keyframes
// with neither are dropped.
func (rv RawValue) Track(hold bool, transform func(Value) Value) *KeyframeTrack {
	if !rv.Animated || len(rv.Keyframes) == 0 {
		return StaticTrack(rv.Static, transform)
	}
	kfs := make([]Keyframe, 0, len(rv.Keyframes))
	for i, raw := range rv.Keyframes {
		v := raw.Start
		if v == nil && i > 0 {
			v = rv.Keyframes[i-1].End
		}
		if v == nil {
			continue
		}
		kf := Keyframe{Time: raw.Time, Value: v, Hold: raw.Hold}
		if raw.Out != nil && raw.In != nil {
			kf.Ease = CubicBezier(raw.Out.X, raw.Out.Y, raw.In.X, raw.In.Y)
		}
		kfs = append(kfs, kf)
	}
	return NewTrack(kfs, hold, transform)
}

// unwrapValue normalizes a decoded keyframe value. Color keyframes are
// sometimes exported wrapped in an extra array ([[r, g, b, a]]); both forms
// collapse to the flat component list.
func unwrapValue(v []any) Value {
	if len(v) == 1 {
		if inner, ok := v[0].([]any); ok {
			return unwrapValue(inner)
		}
	}
	out := make(Value, 0, len(v))
	for _, e := range v {
		switch n := e.(type) {
		case float64:
			out = append(out, n)
		case []any:
			out = append(out, unwrapValue(n)...)
		}
	}
	return out
}
