package bodymovin

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
)

// hookRecorder records every hook firing across timelines.
type hookRecorder struct {
	mu     sync.Mutex
	events []HookName
	hooks  [hookCount]Hook
}

func newHookRecorder(tl *Timeline) *hookRecorder {
	r := &hookRecorder{}
	for name := range hookCount {
		h := HookFunc(func(ctx context.Context, ev HookEvent) error {
			r.mu.Lock()
			r.events = append(r.events, ev.Hook)
			r.mu.Unlock()
			return nil
		})
		r.hooks[name] = h
		tl.RegisterHook(name, h)
	}
	return r
}

func (r *hookRecorder) take() []HookName {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

func (r *hookRecorder) count(name HookName) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == name {
			n++
		}
	}
	return n
}

func equalHooks(a, b []HookName) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- Sampling ---

func TestTimelineSamplesTweens(t *testing.T) {
	n := NewSprite("s")
	tl := NewTimeline("tl", n)
	tl.RegisterTrack(PathPositionX, NewTrack([]Keyframe{
		{Time: 0, Value: Value{0}},
		{Time: 10, Value: Value{100}},
	}, false, nil), func(v Value) { n.SetProperty(PathPositionX, v.At(0)) })

	ctx := context.Background()
	for _, tc := range []struct{ t, want float64 }{{5, 50}, {10, 100}, {2, 20}, {5, 50}} {
		if err := tl.SetCurrentTime(ctx, tc.t); err != nil {
			t.Fatalf("SetCurrentTime(%v): %v", tc.t, err)
		}
		if !approx(n.X, tc.want) {
			t.Errorf("X at %v = %v, want %v", tc.t, n.X, tc.want)
		}
	}
}

func TestTimelineOffset(t *testing.T) {
	n := NewSprite("s")
	tl := NewTimeline("tl", n)
	tl.Offset = 100
	tl.RegisterTrack(PathPositionX, NewTrack([]Keyframe{
		{Time: 0, Value: Value{0}},
		{Time: 10, Value: Value{10}},
	}, false, nil), func(v Value) { n.SetProperty(PathPositionX, v.At(0)) })

	_ = tl.SetCurrentTime(context.Background(), 105)
	if !approx(n.X, 5) {
		t.Errorf("X = %v, want 5", n.X)
	}
	if tl.CurrentTime() != 5 || tl.GlobalTime() != 105 {
		t.Errorf("CurrentTime/GlobalTime = %v/%v, want 5/105", tl.CurrentTime(), tl.GlobalTime())
	}
}

// --- Edge hooks ---

func TestTimelineEdgeHooks(t *testing.T) {
	tl := NewTimeline("tl", nil)
	tl.SetRange(0, 10)
	rec := newHookRecorder(tl)
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 0)
	want := []HookName{HookBeforeStart, HookRendering, HookAfterPropertiesRender}
	if got := rec.take(); !equalHooks(got, want) {
		t.Errorf("enter = %v, want %v", got, want)
	}

	_ = tl.SetCurrentTime(ctx, 5)
	want = []HookName{HookRendering, HookAfterPropertiesRender}
	if got := rec.take(); !equalHooks(got, want) {
		t.Errorf("inside = %v, want %v", got, want)
	}

	_ = tl.SetCurrentTime(ctx, 10)
	want = []HookName{HookBeforeStop, HookComplete}
	if got := rec.take(); !equalHooks(got, want) {
		t.Errorf("leave = %v, want %v", got, want)
	}
	if tl.State() != StateCompleted {
		t.Errorf("State = %v, want completed", tl.State())
	}

	_ = tl.SetCurrentTime(ctx, 12)
	if got := rec.take(); len(got) != 0 {
		t.Errorf("past end = %v, want nothing", got)
	}
}

func TestTimelineSameTimeNoDuplicateEdge(t *testing.T) {
	tl := NewTimeline("tl", nil)
	tl.SetRange(0, 10)
	rec := newHookRecorder(tl)
	ctx := context.Background()

	for range 3 {
		_ = tl.SetCurrentTime(ctx, 3)
	}
	if n := rec.count(HookBeforeStart); n != 1 {
		t.Errorf("beforeStart fired %d times, want 1", n)
	}
	if n := rec.count(HookRendering); n != 3 {
		t.Errorf("rendering fired %d times, want 3", n)
	}
}

func TestTimelineCompleteAfterSeekBack(t *testing.T) {
	tl := NewTimeline("tl", nil)
	tl.SetRange(0, 10)
	rec := newHookRecorder(tl)
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 5)
	_ = tl.SetCurrentTime(ctx, 11)
	_ = tl.SetCurrentTime(ctx, 2)
	_ = tl.SetCurrentTime(ctx, 11)
	if n := rec.count(HookComplete); n != 2 {
		t.Errorf("complete fired %d times, want 2", n)
	}
	if n := rec.count(HookBeforeStart); n != 2 {
		t.Errorf("beforeStart fired %d times, want 2", n)
	}
}

func TestTimelineJumpOverRangeFiresNothing(t *testing.T) {
	tl := NewTimeline("tl", nil)
	tl.SetRange(10, 20)
	rec := newHookRecorder(tl)

	_ = tl.SetCurrentTime(context.Background(), 0)
	_ = tl.SetCurrentTime(context.Background(), 30)
	if got := rec.take(); len(got) != 0 {
		t.Errorf("hooks = %v, want none", got)
	}
}

func TestTimelineRenderingAfterTweens(t *testing.T) {
	n := NewSprite("s")
	tl := NewTimeline("tl", n)
	tl.RegisterTrack(PathPositionX, NewTrack([]Keyframe{
		{Time: 0, Value: Value{0}},
		{Time: 10, Value: Value{10}},
	}, false, nil), func(v Value) { n.SetProperty(PathPositionX, v.At(0)) })

	var seen float64
	tl.RegisterHook(HookRendering, HookFunc(func(ctx context.Context, ev HookEvent) error {
		seen = n.X
		return nil
	}))
	_ = tl.SetCurrentTime(context.Background(), 7)
	if seen != 7 {
		t.Errorf("rendering saw X = %v, want 7", seen)
	}
}

func TestTimelinePause(t *testing.T) {
	tl := NewTimeline("tl", nil)
	rec := newHookRecorder(tl)
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 1)
	rec.take()
	if err := tl.Pause(ctx); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if got := rec.take(); !equalHooks(got, []HookName{HookBeforeStop}) {
		t.Errorf("Pause hooks = %v, want [beforeStop]", got)
	}
	if tl.State() != StateStopped {
		t.Errorf("State = %v, want stopped", tl.State())
	}
	_ = tl.SetCurrentTime(ctx, 1)
	if n := rec.count(HookBeforeStart); n != 1 {
		t.Errorf("beforeStart after resume fired %d times, want 1", n)
	}
}

// --- Hook registry ---

func TestRegisterHookIsSet(t *testing.T) {
	tl := NewTimeline("tl", nil)
	calls := 0
	h := HookFunc(func(ctx context.Context, ev HookEvent) error {
		calls++
		return nil
	})
	if !tl.RegisterHook(HookRendering, h) {
		t.Error("first RegisterHook should return true")
	}
	if tl.RegisterHook(HookRendering, h) {
		t.Error("duplicate RegisterHook should return false")
	}
	if tl.HookCount(HookRendering) != 1 {
		t.Errorf("HookCount = %d, want 1", tl.HookCount(HookRendering))
	}
	_ = tl.SetCurrentTime(context.Background(), 0)
	if calls != 1 {
		t.Errorf("hook called %d times, want 1", calls)
	}

	if !tl.RemoveHook(HookRendering, h) {
		t.Error("RemoveHook should return true")
	}
	if tl.RemoveHook(HookRendering, h) {
		t.Error("second RemoveHook should return false")
	}
}

type valueHook struct{ fn []func() }

func (valueHook) OnHook(ctx context.Context, ev HookEvent) error { return nil }

func TestRegisterHookNonComparablePanics(t *testing.T) {
	tl := NewTimeline("tl", nil)
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic for non-comparable hook, got none")
		}
	}()
	tl.RegisterHook(HookRendering, valueHook{})
}

func TestHookErrorsJoined(t *testing.T) {
	tl := NewTimeline("layer", nil)
	errA := errors.New("a")
	errB := errors.New("b")
	later := false
	tl.RegisterHook(HookRendering, HookFunc(func(ctx context.Context, ev HookEvent) error { return errA }))
	tl.RegisterHook(HookRendering, HookFunc(func(ctx context.Context, ev HookEvent) error {
		later = true
		return nil
	}))
	tl.RegisterHook(HookAfterPropertiesRender, HookFunc(func(ctx context.Context, ev HookEvent) error { return errB }))

	err := tl.SetCurrentTime(context.Background(), 0)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("err = %v, want both hook errors", err)
	}
	var he *HookError
	if !errors.As(err, &he) || he.Timeline != "layer" {
		t.Errorf("err should carry a *HookError for timeline layer, got %v", err)
	}
	if !later {
		t.Error("a failing hook should not stop later hooks")
	}
}

func TestHookRemovesItselfWhileFiring(t *testing.T) {
	tl := NewTimeline("tl", nil)
	calls := 0
	var h Hook
	h = HookFunc(func(ctx context.Context, ev HookEvent) error {
		calls++
		tl.RemoveHook(HookRendering, h)
		return nil
	})
	tl.RegisterHook(HookRendering, h)
	_ = tl.SetCurrentTime(context.Background(), 0)
	_ = tl.SetCurrentTime(context.Background(), 1)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

// --- Tween management ---

func TestRemovePropertyTweens(t *testing.T) {
	tl := NewTimeline("tl", nil)
	track := StaticTrack(Value{1}, nil)
	tl.RegisterTrack(EffectPath(1, "color"), track, nil)
	tl.RegisterTrack(EffectPath(1, "opacity"), track, nil)
	tl.RegisterTrack(EffectPath(10, "color"), track, nil)
	tl.RegisterTrack(PathScaleX, track, nil)

	if n := tl.RemovePropertyTweens(Path("effects", "1")); n != 2 {
		t.Errorf("removed %d tweens, want 2", n)
	}
	if len(tl.Tweens()) != 2 {
		t.Fatalf("len(Tweens) = %d, want 2", len(tl.Tweens()))
	}
	if len(tl.PropertyTweens(EffectPath(10, "color"))) != 1 {
		t.Error("effects.10 must not match prefix effects.1")
	}
}

func TestPropertyValueAtGlobalTime(t *testing.T) {
	n := NewSprite("s")
	n.ScaleY = 2
	tl := NewTimeline("tl", n)
	tl.Offset = 10
	tl.RegisterTrack(PathScaleX, NewTrack([]Keyframe{
		{Time: 0, Value: Value{1}},
		{Time: 10, Value: Value{3}},
	}, false, nil), nil)

	v, ok := tl.PropertyValueAtGlobalTime(PathScaleX, 15)
	if !ok || !approx(v.At(0), 2) {
		t.Errorf("scale.x at 15 = %v, %v, want [2], true", v, ok)
	}
	v, ok = tl.PropertyValueAtGlobalTime(PathScaleY, 15)
	if !ok || v.At(0) != 2 {
		t.Errorf("scale.y from target = %v, %v, want [2], true", v, ok)
	}
	if _, ok := tl.PropertyValueAtGlobalTime("missing", 0); ok {
		t.Error("unknown path should not resolve")
	}
}

// --- Children ---

func TestTimelineChildrenConcurrent(t *testing.T) {
	root := NewTimeline("root", nil)
	var recs []*hookRecorder
	for range 4 {
		c := NewTimeline("child", nil)
		c.SetRange(0, 5)
		recs = append(recs, newHookRecorder(c))
		root.AddChild(c)
	}
	errChild := NewTimeline("failing", nil)
	errChild.RegisterHook(HookRendering, HookFunc(func(ctx context.Context, ev HookEvent) error {
		return errors.New("boom")
	}))
	root.AddChild(errChild)

	err := root.SetCurrentTime(context.Background(), 1)
	var he *HookError
	if !errors.As(err, &he) || he.Timeline != "failing" {
		t.Errorf("err = %v, want HookError from failing child", err)
	}
	for i, r := range recs {
		if n := r.count(HookRendering); n != 1 {
			t.Errorf("child %d rendering fired %d times, want 1", i, n)
		}
	}
}

func TestTimelineAddChildPanics(t *testing.T) {
	a := NewTimeline("a", nil)
	b := NewTimeline("b", nil)
	a.AddChild(b)

	t.Run("already parented", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		NewTimeline("c", nil).AddChild(b)
	})
	t.Run("cycle", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic")
			}
		}()
		b.AddChild(a)
	})
}

// --- Disposal ---

func TestTimelineDispose(t *testing.T) {
	parent := NewTimeline("parent", nil)
	tl := NewTimeline("tl", nil)
	child := NewTimeline("child", nil)
	parent.AddChild(tl)
	tl.AddChild(child)
	tl.RegisterHook(HookRendering, HookFunc(func(ctx context.Context, ev HookEvent) error { return nil }))
	tl.RegisterTrack(PathScaleX, StaticTrack(Value{1}, nil), nil)

	tl.Dispose()
	if !tl.IsDisposed() || !child.IsDisposed() {
		t.Error("timeline and child should be disposed")
	}
	if len(parent.Children()) != 0 {
		t.Error("disposed timeline should leave its parent")
	}
	if tl.HookCount(HookRendering) != 0 || len(tl.Tweens()) != 0 {
		t.Error("dispose should drop hooks and tweens")
	}
	if err := tl.SetCurrentTime(context.Background(), 0); !errors.Is(err, ErrDisposed) {
		t.Errorf("SetCurrentTime after dispose = %v, want ErrDisposed", err)
	}
	tl.Dispose()
}

func TestTimelineCancelledContext(t *testing.T) {
	tl := NewTimeline("tl", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tl.SetCurrentTime(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// --- Event sink ---

type recordingSink struct {
	events []LifecycleEvent
}

func (s *recordingSink) EmitEvent(ev LifecycleEvent) { s.events = append(s.events, ev) }

func TestTimelineEventSink(t *testing.T) {
	root := NewTimeline("root", nil)
	child := NewTimeline("child", nil)
	child.SetRange(0, math.Inf(1))
	root.AddChild(child)
	sink := &recordingSink{}
	root.SetEventSink(sink)

	_ = root.SetCurrentTime(context.Background(), 0)
	// root: beforeStart, rendering, afterPropertiesRender; child: the same.
	if len(sink.events) != 6 {
		t.Fatalf("events = %d, want 6", len(sink.events))
	}
	if sink.events[0].Hook != HookBeforeStart || sink.events[0].Timeline != "root" {
		t.Errorf("first event = %+v, want root beforeStart", sink.events[0])
	}
	if sink.events[3].Timeline != "child" {
		t.Errorf("fourth event timeline = %q, want child", sink.events[3].Timeline)
	}
}
