package bodymovin

import (
	"context"
	"errors"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrDisposed is returned by operations on a disposed timeline or layer.
var ErrDisposed = errors.New("bodymovin: disposed")

// TimelineState is the playback state of a Timeline.
type TimelineState uint8

const (
	StateStopped   TimelineState = iota // outside the active range, or paused
	StatePlaying                        // inside the active range
	StateCompleted                      // playhead crossed the end of the active range
)

func (s TimelineState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// PropertyReader is implemented by timeline targets that can report the
// current value of a property that has no tween.
type PropertyReader interface {
	PropertyValue(path PropertyPath) (Value, bool)
}

// Timeline owns the tweens and lifecycle hooks of one layer (or one nested
// animator). The host drives it with SetCurrentTime once per displayed frame.
//
// Times passed in are global; local time is global time minus Offset. Tweens
// are sampled at local time on every call, so seeking anywhere produces the
// same property values monotonic playback would. Edge hooks (beforeStart,
// beforeStop, complete) fire only when the playhead crosses a boundary of the
// active range [in, out).
type Timeline struct {
	Name string
	// Offset is the global time at which local time 0 occurs.
	Offset float64

	target   any
	tweens   []*Tween
	hooks    hookRegistry
	parent   *Timeline
	children []*Timeline

	inPoint, outPoint float64
	currentTime       float64
	state             TimelineState
	sink              EventSink
	disposed          bool
}

// NewTimeline creates a stopped timeline for target. The target is a back
// reference used for PropertyValueAtGlobalTime; the timeline never owns it.
// The active range defaults to [0, +Inf).
func NewTimeline(name string, target any) *Timeline {
	return &Timeline{
		Name:     name,
		target:   target,
		outPoint: math.Inf(1),
	}
}

// Target returns the timeline's target.
func (tl *Timeline) Target() any { return tl.target }

// SetRange sets the active range in local time. Playback is active while
// in <= t < out.
func (tl *Timeline) SetRange(in, out float64) {
	tl.inPoint = in
	tl.outPoint = out
}

// Range returns the active range in local time.
func (tl *Timeline) Range() (in, out float64) { return tl.inPoint, tl.outPoint }

// CurrentTime returns the local time of the last SetCurrentTime call.
func (tl *Timeline) CurrentTime() float64 { return tl.currentTime }

// GlobalTime returns the global time of the last SetCurrentTime call.
func (tl *Timeline) GlobalTime() float64 { return tl.currentTime + tl.Offset }

// State returns the playback state.
func (tl *Timeline) State() TimelineState { return tl.state }

// IsDisposed reports whether Dispose has been called.
func (tl *Timeline) IsDisposed() bool { return tl.disposed }

// --- Tweens ---

// RegisterTween adds tw. Tweens are sampled in registration order.
func (tl *Timeline) RegisterTween(tw *Tween) {
	if tw == nil || tw.Track == nil {
		panic("bodymovin: tween without track")
	}
	tl.tweens = append(tl.tweens, tw)
}

// RegisterTrack creates and registers a tween for path.
func (tl *Timeline) RegisterTrack(path PropertyPath, track *KeyframeTrack, set func(Value)) *Tween {
	tw := NewTween(path, track, set)
	tl.RegisterTween(tw)
	return tw
}

// PropertyTweens returns the tweens registered for exactly path.
func (tl *Timeline) PropertyTweens(path PropertyPath) []*Tween {
	var out []*Tween
	for _, tw := range tl.tweens {
		if tw.Path == path {
			out = append(out, tw)
		}
	}
	return out
}

// Tweens returns every registered tween. The slice MUST NOT be mutated.
func (tl *Timeline) Tweens() []*Tween { return tl.tweens }

// RemovePropertyTweens removes the tweens at or below prefix and returns how
// many were removed.
func (tl *Timeline) RemovePropertyTweens(prefix PropertyPath) int {
	kept := tl.tweens[:0]
	removed := 0
	for _, tw := range tl.tweens {
		if tw.Path.HasPrefix(prefix) {
			removed++
			continue
		}
		kept = append(kept, tw)
	}
	for i := len(kept); i < len(tl.tweens); i++ {
		tl.tweens[i] = nil
	}
	tl.tweens = kept
	return removed
}

// RemoveAllTweens drops every tween.
func (tl *Timeline) RemoveAllTweens() {
	for i := range tl.tweens {
		tl.tweens[i] = nil
	}
	tl.tweens = tl.tweens[:0]
}

// PropertyValueAtGlobalTime returns the value path holds at global time t.
// Animated properties are sampled from their most recently registered tween;
// others are read from the target when it implements PropertyReader.
func (tl *Timeline) PropertyValueAtGlobalTime(path PropertyPath, t float64) (Value, bool) {
	for i := len(tl.tweens) - 1; i >= 0; i-- {
		if tw := tl.tweens[i]; tw.Path == path {
			return tw.Track.Sample(t - tl.Offset), true
		}
	}
	if r, ok := tl.target.(PropertyReader); ok {
		return r.PropertyValue(path)
	}
	return nil, false
}

// --- Hooks ---

// RegisterHook adds h under name. Returns false if h was already registered
// under that name; a hook fires at most once per firing.
func (tl *Timeline) RegisterHook(name HookName, h Hook) bool {
	return tl.hooks.add(name, h)
}

// RemoveHook removes h from name. Returns false if it was not registered.
func (tl *Timeline) RemoveHook(name HookName, h Hook) bool {
	return tl.hooks.remove(name, h)
}

// RemoveAllHooks deregisters every hook of every name.
func (tl *Timeline) RemoveAllHooks() { tl.hooks.clear() }

// HookCount returns the number of hooks registered under name.
func (tl *Timeline) HookCount(name HookName) int { return tl.hooks.count(name) }

// SetEventSink forwards lifecycle events to sink. Children added later
// inherit the sink. Emission is serialized because sibling timelines advance
// concurrently.
func (tl *Timeline) SetEventSink(sink EventSink) {
	if sink != nil {
		if _, ok := sink.(*lockedSink); !ok {
			sink = &lockedSink{sink: sink}
		}
	}
	tl.setSink(sink)
}

func (tl *Timeline) setSink(sink EventSink) {
	tl.sink = sink
	for _, c := range tl.children {
		c.setSink(sink)
	}
}

type lockedSink struct {
	mu   sync.Mutex
	sink EventSink
}

func (s *lockedSink) EmitEvent(ev LifecycleEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.EmitEvent(ev)
}

func (tl *Timeline) fire(ctx context.Context, name HookName) error {
	err := tl.hooks.fire(ctx, tl, name)
	if tl.sink != nil {
		tl.sink.EmitEvent(LifecycleEvent{Hook: name, Timeline: tl.Name, Time: tl.currentTime})
	}
	return err
}

// --- Nested timelines ---

// AddChild nests child under tl. Children are advanced after tl's own hooks
// have fired, concurrently with their siblings.
// Panics if child already has a parent or is an ancestor of tl.
func (tl *Timeline) AddChild(child *Timeline) {
	if child == nil {
		panic("bodymovin: cannot add nil timeline")
	}
	if child.parent != nil {
		panic("bodymovin: timeline already has a parent")
	}
	for p := tl; p != nil; p = p.parent {
		if p == child {
			panic("bodymovin: adding timeline would create a cycle")
		}
	}
	child.parent = tl
	if child.sink == nil {
		child.setSink(tl.sink)
	}
	tl.children = append(tl.children, child)
}

// RemoveChild detaches child. No-op if child is not a child of tl.
func (tl *Timeline) RemoveChild(child *Timeline) {
	for i, c := range tl.children {
		if c == child {
			copy(tl.children[i:], tl.children[i+1:])
			tl.children[len(tl.children)-1] = nil
			tl.children = tl.children[:len(tl.children)-1]
			child.parent = nil
			return
		}
	}
}

// Children returns the nested timelines. The slice MUST NOT be mutated.
func (tl *Timeline) Children() []*Timeline { return tl.children }

// Parent returns the enclosing timeline, or nil.
func (tl *Timeline) Parent() *Timeline { return tl.parent }

// --- Playback ---

// SetCurrentTime moves the playhead to global time t. It samples every
// tween, fires edge hooks for boundary crossings, fires rendering and then
// afterPropertiesRender while playing, and finally advances the children.
// Calling it twice with the same t re-renders but never re-fires an edge.
// Complete fires only when a playing timeline leaves through the out point:
// a stopped timeline that jumps from before the in point to past the out
// point, or that was moved before the in point and then past the out
// point, fires no hooks at all.
// Hook failures are returned as joined *HookError values; the timeline
// itself stays consistent.
func (tl *Timeline) SetCurrentTime(ctx context.Context, t float64) error {
	if tl.disposed {
		return ErrDisposed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	local := t - tl.Offset
	tl.currentTime = local
	for _, tw := range tl.tweens {
		tw.apply(local)
	}

	var errs []error
	active := local >= tl.inPoint && local < tl.outPoint
	switch {
	case active && tl.state != StatePlaying:
		tl.state = StatePlaying
		errs = append(errs, tl.fire(ctx, HookBeforeStart))
	case !active && tl.state == StatePlaying:
		errs = append(errs, tl.fire(ctx, HookBeforeStop))
		tl.state = StateStopped
		if local >= tl.outPoint {
			tl.state = StateCompleted
			errs = append(errs, tl.fire(ctx, HookComplete))
		}
	case !active && tl.state == StateCompleted && local < tl.outPoint:
		tl.state = StateStopped
	}

	if tl.state == StatePlaying {
		errs = append(errs, tl.fire(ctx, HookRendering))
		errs = append(errs, tl.fire(ctx, HookAfterPropertiesRender))
	}

	errs = append(errs, tl.advanceChildren(ctx, t))
	return errors.Join(errs...)
}

// advanceChildren runs the children as one scoped task group. A failing
// child does not cancel its siblings.
func (tl *Timeline) advanceChildren(ctx context.Context, t float64) error {
	switch len(tl.children) {
	case 0:
		return nil
	case 1:
		return tl.children[0].SetCurrentTime(ctx, t)
	}
	children := make([]*Timeline, len(tl.children))
	copy(children, tl.children)
	errs := make([]error, len(children))

	var g errgroup.Group
	for i, c := range children {
		g.Go(func() error {
			errs[i] = c.SetCurrentTime(ctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Pause stops a playing timeline (and its children) without moving the
// playhead: beforeStop fires, and the next SetCurrentTime inside the active
// range fires beforeStart again.
func (tl *Timeline) Pause(ctx context.Context) error {
	if tl.disposed {
		return ErrDisposed
	}
	var errs []error
	if tl.state == StatePlaying {
		errs = append(errs, tl.fire(ctx, HookBeforeStop))
		tl.state = StateStopped
	}
	for _, c := range tl.children {
		errs = append(errs, c.Pause(ctx))
	}
	return errors.Join(errs...)
}

// Dispose deregisters every hook and tween, disposes the children and
// detaches from the parent. Safe to call more than once.
func (tl *Timeline) Dispose() {
	if tl.disposed {
		return
	}
	if tl.parent != nil {
		tl.parent.RemoveChild(tl)
	}
	tl.dispose()
}

func (tl *Timeline) dispose() {
	tl.disposed = true
	tl.RemoveAllHooks()
	tl.RemoveAllTweens()
	for _, c := range tl.children {
		c.parent = nil
		c.dispose()
	}
	tl.children = nil
	tl.target = nil
	tl.sink = nil
}
