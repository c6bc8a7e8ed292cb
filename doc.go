// Package bodymovin is an embedded playback runtime for Bodymovin (After
// Effects export) animations on [Ebitengine].
//
// It decides, for any frame, the value of every animated property of every
// layer, keeps per-effect filter state alive across frames, and picks the
// raster resolution text needs under the compounded scale of its parents.
// Pixel compositing is left to the host: the runtime mutates a tree of
// [Node] values and their [Filter] lists, which the host draws.
//
// # Quick start
//
// Load a manifest and drive it from your game loop with a [Player]:
//
//	comp, err := bodymovin.LoadComposition(ctx, data, bodymovin.LoadOptions{
//		Config: bodymovin.DefaultConfig(),
//		Fonts:  fonts,
//	})
//	player := bodymovin.NewPlayer(comp)
//	player.Play()
//
//	func (g *Game) Update() error { return g.player.Update() }
//
// # Timelines
//
// Every layer owns a [Timeline]. Tweens bind a [KeyframeTrack] to a property
// path; [Timeline.SetCurrentTime] samples every tween, so seeking produces
// the same values as playing. Lifecycle hooks (beforeStart, beforeStop,
// rendering, afterPropertiesRender, complete) let media sync, text
// resolution and host code react to playback. Nested timelines (text
// animators) advance concurrently with their siblings via errgroup.
//
// # Effects
//
// A [Dispatcher] maps effect descriptors to filters (tint, fill, drop
// shadow, gaussian blur, invert) and mattes (set matte). Instances live in
// an [EffectRegistry] keyed by node ID and effect index, so re-applying an
// effect updates the existing filter instead of allocating a new one.
//
// # Text resolution
//
// [ResolveRequiredFontScale] walks a text layer's parents and linked
// parents and evaluates every scale tween at its boundary keyframes;
// [SelectFontSize] turns the result into one of the configured bitmap sizes.
//
// # Media
//
// [MediaSync] keeps an external [MediaHandle] (for example an [AudioHandle])
// aligned with a layer timeline, including time-remapped playback.
//
// # ECS
//
// Lifecycle events can be forwarded to a [Donburi] world with the adapter
// in bodymovin/ecs.
//
// [Ebitengine]: https://ebitengine.org
// [Donburi]: https://github.com/yohamta/donburi
package bodymovin
