// Package ecs provides ECS adapters for bodymovin.
package ecs

import (
	"github.com/phanxgames/bodymovin"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
)

// LifecycleEventType is the Donburi event type for timeline lifecycle events.
// Subscribe to this in your ECS systems to react to layers starting,
// stopping and completing.
var LifecycleEventType = events.NewEventType[bodymovin.LifecycleEvent]()

type donburiSink struct {
	world  donburi.World
	filter map[bodymovin.HookName]bool // nil publishes every hook
}

// NewDonburiSink creates an EventSink backed by a Donburi world. Lifecycle
// events are published to LifecycleEventType and can be consumed with
// events.Subscribe and ProcessEvents. With hooks given, only those hook
// names are published; rendering fires every frame, so filtering it out
// keeps the queue small.
func NewDonburiSink(world donburi.World, hooks ...bodymovin.HookName) bodymovin.EventSink {
	s := &donburiSink{world: world}
	if len(hooks) > 0 {
		s.filter = make(map[bodymovin.HookName]bool, len(hooks))
		for _, h := range hooks {
			s.filter[h] = true
		}
	}
	return s
}

func (s *donburiSink) EmitEvent(event bodymovin.LifecycleEvent) {
	if s.filter != nil && !s.filter[event.Hook] {
		return
	}
	LifecycleEventType.Publish(s.world, event)
}
