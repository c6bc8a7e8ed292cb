package ecs

import (
	"context"
	"testing"

	"github.com/phanxgames/bodymovin"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

func TestNewDonburiSink(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)
	if sink == nil {
		t.Fatal("NewDonburiSink returned nil")
	}
}

func TestDonburiSink_EmitEvent(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)

	var received []bodymovin.LifecycleEvent
	LifecycleEventType.Subscribe(world, func(w donburi.World, e bodymovin.LifecycleEvent) {
		received = append(received, e)
	})

	sink.EmitEvent(bodymovin.LifecycleEvent{Hook: bodymovin.HookBeforeStart, Timeline: "title", Time: 3})
	sink.EmitEvent(bodymovin.LifecycleEvent{Hook: bodymovin.HookComplete, Timeline: "title", Time: 90})

	// Events are queued; process them.
	LifecycleEventType.ProcessEvents(world)

	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	if e := received[0]; e.Hook != bodymovin.HookBeforeStart || e.Timeline != "title" || e.Time != 3 {
		t.Errorf("event 0: %+v", e)
	}
	if e := received[1]; e.Hook != bodymovin.HookComplete || e.Time != 90 {
		t.Errorf("event 1: %+v", e)
	}
}

func TestDonburiSink_FiltersHooks(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world, bodymovin.HookComplete)

	var count int
	LifecycleEventType.Subscribe(world, func(w donburi.World, e bodymovin.LifecycleEvent) {
		count++
	})
	sink.EmitEvent(bodymovin.LifecycleEvent{Hook: bodymovin.HookRendering})
	sink.EmitEvent(bodymovin.LifecycleEvent{Hook: bodymovin.HookComplete})
	events.ProcessAllEvents(world)

	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}
}

func TestDonburiSink_FilterCoversEveryHook(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world, bodymovin.HookAfterPropertiesRender, bodymovin.HookBeforeStop)

	var hooks []bodymovin.HookName
	LifecycleEventType.Subscribe(world, func(w donburi.World, e bodymovin.LifecycleEvent) {
		hooks = append(hooks, e.Hook)
	})
	for _, h := range []bodymovin.HookName{
		bodymovin.HookBeforeStart, bodymovin.HookBeforeStop, bodymovin.HookRendering,
		bodymovin.HookAfterPropertiesRender, bodymovin.HookComplete, bodymovin.HookName(42),
	} {
		sink.EmitEvent(bodymovin.LifecycleEvent{Hook: h})
	}
	events.ProcessAllEvents(world)

	if len(hooks) != 2 || hooks[0] != bodymovin.HookBeforeStop || hooks[1] != bodymovin.HookAfterPropertiesRender {
		t.Errorf("hooks = %v, want [beforeStop afterPropertiesRender]", hooks)
	}
}

func TestDonburiSink_TimelineEdges(t *testing.T) {
	world := donburi.NewWorld()
	tl := bodymovin.NewTimeline("layer", nil)
	tl.SetRange(0, 10)
	tl.SetEventSink(NewDonburiSink(world, bodymovin.HookBeforeStart, bodymovin.HookComplete))

	var hooks []bodymovin.HookName
	LifecycleEventType.Subscribe(world, func(w donburi.World, e bodymovin.LifecycleEvent) {
		hooks = append(hooks, e.Hook)
	})

	ctx := context.Background()
	for _, f := range []float64{0, 5, 12} {
		if err := tl.SetCurrentTime(ctx, f); err != nil {
			t.Fatalf("SetCurrentTime(%v): %v", f, err)
		}
	}
	events.ProcessAllEvents(world)

	want := []bodymovin.HookName{bodymovin.HookBeforeStart, bodymovin.HookComplete}
	if len(hooks) != len(want) {
		t.Fatalf("hooks = %v, want %v", hooks, want)
	}
	for i := range want {
		if hooks[i] != want[i] {
			t.Errorf("hooks[%d] = %v, want %v", i, hooks[i], want[i])
		}
	}
}

func TestDonburiSink_MultipleSubscribers(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)

	var count1, count2 int
	LifecycleEventType.Subscribe(world, func(w donburi.World, e bodymovin.LifecycleEvent) {
		count1++
	})
	LifecycleEventType.Subscribe(world, func(w donburi.World, e bodymovin.LifecycleEvent) {
		count2++
	})

	sink.EmitEvent(bodymovin.LifecycleEvent{Hook: bodymovin.HookBeforeStop})
	events.ProcessAllEvents(world)

	if count1 != 1 || count2 != 1 {
		t.Errorf("expected both subscribers called once, got %d and %d", count1, count2)
	}
}
