package bodymovin

// Tween binds a KeyframeTrack to one property of a timeline's target. Each
// time the timeline is sampled, Set receives the track's value at the
// timeline's local time.
type Tween struct {
	Path  PropertyPath
	Track *KeyframeTrack
	Set   func(Value)
}

// NewTween creates a tween for path driven by track.
func NewTween(path PropertyPath, track *KeyframeTrack, set func(Value)) *Tween {
	return &Tween{Path: path, Track: track, Set: set}
}

// StartTime returns the local time of the tween's first keyframe.
func (tw *Tween) StartTime() float64 { return tw.Track.StartTime() }

// EndTime returns the local time of the tween's last keyframe.
func (tw *Tween) EndTime() float64 { return tw.Track.EndTime() }

// apply samples the track at local time t and hands the value to Set.
func (tw *Tween) apply(t float64) {
	if tw.Set == nil {
		return
	}
	v := tw.Track.Sample(t)
	if v == nil {
		return
	}
	tw.Set(v)
}
