package bodymovin

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// HookEvent is passed to every hook invocation.
type HookEvent struct {
	Hook     HookName
	Timeline *Timeline
	// Time is the timeline's local time when the hook fired.
	Time float64
}

// Hook is a lifecycle callback. Hooks are identified by value: the registry
// is a set, so registering the same Hook twice under one name has no effect.
// Implementations must therefore be comparable (use pointer receivers).
type Hook interface {
	OnHook(ctx context.Context, ev HookEvent) error
}

type funcHook struct {
	fn func(context.Context, HookEvent) error
}

func (h *funcHook) OnHook(ctx context.Context, ev HookEvent) error { return h.fn(ctx, ev) }

// HookFunc wraps fn in a Hook. Each call returns a distinct identity; keep the
// returned value to register or remove it later.
func HookFunc(fn func(ctx context.Context, ev HookEvent) error) Hook {
	return &funcHook{fn: fn}
}

// HookError reports a hook that returned an error while firing.
type HookError struct {
	Hook     HookName
	Timeline string
	Err      error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("bodymovin: %s hook on timeline %q: %v", e.Hook, e.Timeline, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// --- Lifecycle event sink ---

// LifecycleEvent is emitted to an EventSink after a hook name fires.
type LifecycleEvent struct {
	Hook     HookName
	Timeline string
	Time     float64
}

// EventSink is the interface for optional lifecycle event forwarding (for
// example into an ECS world). Set it with Timeline.SetEventSink.
type EventSink interface {
	EmitEvent(event LifecycleEvent)
}

// --- Registry ---

// hookRegistry holds ordered, de-duplicated callbacks per hook name.
type hookRegistry struct {
	lists [hookCount][]Hook
}

// add appends h under name unless it is already registered. Returns false
// for a duplicate.
func (r *hookRegistry) add(name HookName, h Hook) bool {
	if h == nil {
		panic("bodymovin: nil hook")
	}
	if name >= hookCount {
		panic("bodymovin: unknown hook name " + name.String())
	}
	if !reflect.TypeOf(h).Comparable() {
		panic("bodymovin: hook type " + reflect.TypeOf(h).String() + " is not comparable")
	}
	for _, existing := range r.lists[name] {
		if existing == h {
			return false
		}
	}
	r.lists[name] = append(r.lists[name], h)
	return true
}

func (r *hookRegistry) remove(name HookName, h Hook) bool {
	if name >= hookCount {
		return false
	}
	list := r.lists[name]
	for i, existing := range list {
		if existing == h {
			copy(list[i:], list[i+1:])
			list[len(list)-1] = nil
			r.lists[name] = list[:len(list)-1]
			return true
		}
	}
	return false
}

func (r *hookRegistry) clear() {
	for i := range r.lists {
		r.lists[i] = nil
	}
}

func (r *hookRegistry) count(name HookName) int {
	if name >= hookCount {
		return 0
	}
	return len(r.lists[name])
}

// fire invokes every hook under name in registration order. Each hook
// returns before the next starts, so asynchronous work a hook awaits is
// settled once fire returns. A failing hook does not stop the others.
func (r *hookRegistry) fire(ctx context.Context, tl *Timeline, name HookName) error {
	list := r.lists[name]
	if len(list) == 0 {
		return nil
	}
	// Snapshot so hooks may register or remove hooks while firing.
	snapshot := make([]Hook, len(list))
	copy(snapshot, list)

	ev := HookEvent{Hook: name, Timeline: tl, Time: tl.currentTime}
	var errs []error
	for _, h := range snapshot {
		if err := h.OnHook(ctx, ev); err != nil {
			errs = append(errs, &HookError{Hook: name, Timeline: tl.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}
