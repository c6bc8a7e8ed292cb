// Package ecs provides ECS adapters for bodymovin timeline lifecycle events.
//
// The primary adapter is [NewDonburiSink], which bridges timeline lifecycle
// events (beforeStart, beforeStop, rendering, afterPropertiesRender,
// complete) into a [Donburi] world as typed events. Subscribe to
// [LifecycleEventType] in your ECS systems to receive them.
//
// Usage:
//
//	sink := ecs.NewDonburiSink(world)
//	comp.SetEventSink(sink)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
