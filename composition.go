package bodymovin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Composition is the top-level object that owns the layers, their node tree,
// the effect registry and the root timeline.
type Composition struct {
	Name          string
	Width, Height float64
	// FrameRate is in frames per second; times everywhere else are frames.
	FrameRate float64

	root       *Node
	timeline   *Timeline
	layers     []*Layer
	byIndex    map[int]*Layer
	registry   *EffectRegistry
	dispatcher *Dispatcher
	logger     *slog.Logger
	cfg        Config

	rendererScale float64
	disposed      bool
}

// NewComposition creates an empty composition. logger nil uses slog.Default().
func NewComposition(name string, cfg Config, logger *slog.Logger) *Composition {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RendererScale <= 0 {
		cfg.RendererScale = 1
	}
	c := &Composition{
		Name:          name,
		FrameRate:     defaultFrameRate,
		root:          NewContainer(name),
		timeline:      NewTimeline(name, nil),
		byIndex:       make(map[int]*Layer),
		registry:      NewEffectRegistry(),
		logger:        logger.With("composition", name),
		cfg:           cfg,
		rendererScale: cfg.RendererScale,
	}
	if cfg.FrameRate > 0 {
		c.FrameRate = cfg.FrameRate
	}
	c.dispatcher = NewDispatcher(c.registry, c, c.logger)
	return c
}

// Root returns the container holding every top-level layer node.
func (c *Composition) Root() *Node { return c.root }

// Timeline returns the root timeline; layer timelines are its children.
func (c *Composition) Timeline() *Timeline { return c.timeline }

// Registry returns the effect state registry.
func (c *Composition) Registry() *EffectRegistry { return c.registry }

// Dispatcher returns the effect dispatcher.
func (c *Composition) Dispatcher() *Dispatcher { return c.dispatcher }

// Logger returns the composition's logger.
func (c *Composition) Logger() *slog.Logger { return c.logger }

// Config returns the settings the composition was created with.
func (c *Composition) Config() Config { return c.cfg }

// SetRange sets the composition's active range in frames.
func (c *Composition) SetRange(in, out float64) { c.timeline.SetRange(in, out) }

// Range returns the composition's active range in frames.
func (c *Composition) Range() (in, out float64) { return c.timeline.Range() }

// Duration returns the length of the active range in frames, or 0 when it
// is unbounded.
func (c *Composition) Duration() float64 {
	in, out := c.timeline.Range()
	if math.IsInf(out, 1) {
		return 0
	}
	return out - in
}

// --- Layers ---

// AddLayer adds l at the top level. Panics if a layer with the same index
// exists.
func (c *Composition) AddLayer(l *Layer) {
	if _, ok := c.byIndex[l.Index]; ok {
		panic(fmt.Sprintf("bodymovin: duplicate layer index %d", l.Index))
	}
	c.byIndex[l.Index] = l
	c.layers = append(c.layers, l)
	c.root.AddChild(l.Node)
	c.timeline.AddChild(l.Timeline)
}

// SetLayerParent makes parent the transform parent of child; child's node
// moves under parent's node. A nil parent moves it back to the root.
func (c *Composition) SetLayerParent(child, parent *Layer) {
	child.SetParent(parent)
	if parent == nil {
		c.root.AddChild(child.Node)
		return
	}
	parent.Node.AddChild(child.Node)
	if c.cfg.Debug {
		c.debugCheckParentDepth(child)
	}
}

// Layers returns the layers in manifest order. The slice MUST NOT be mutated.
func (c *Composition) Layers() []*Layer { return c.layers }

// Layer returns the layer with manifest index index.
func (c *Composition) Layer(index int) (*Layer, bool) {
	l, ok := c.byIndex[index]
	return l, ok
}

// LayerByName returns the first layer named name.
func (c *Composition) LayerByName(name string) (*Layer, bool) {
	for _, l := range c.layers {
		if l.Name == name {
			return l, true
		}
	}
	return nil, false
}

// LayerNode implements LayerResolver.
func (c *Composition) LayerNode(index int) (*Node, bool) {
	l, ok := c.byIndex[index]
	if !ok || l.IsDisposed() {
		return nil, false
	}
	return l.Node, true
}

// RemoveLayer disposes the layer with index, releasing its effects.
func (c *Composition) RemoveLayer(index int) bool {
	l, ok := c.byIndex[index]
	if !ok {
		return false
	}
	delete(c.byIndex, index)
	for i, x := range c.layers {
		if x == l {
			c.layers = append(c.layers[:i], c.layers[i+1:]...)
			break
		}
	}
	for _, other := range c.layers {
		if other.Parent() == l {
			c.SetLayerParent(other, nil)
		}
	}
	l.Dispose(c.registry)
	return true
}

// ApplyEffects applies every layer's effects. Call once all layers exist:
// set matte effects resolve their source layers by index.
func (c *Composition) ApplyEffects() {
	for _, l := range c.layers {
		l.ApplyEffects(c.dispatcher)
	}
}

// --- Playback ---

// SetCurrentTime advances every layer to frame t.
func (c *Composition) SetCurrentTime(ctx context.Context, t float64) error {
	if c.disposed {
		return ErrDisposed
	}
	var t0 time.Time
	if c.cfg.Debug {
		t0 = time.Now()
	}
	err := c.timeline.SetCurrentTime(ctx, t)
	if c.cfg.Debug {
		c.debugLog(frameStats{
			frame:       t,
			advanceTime: time.Since(t0),
			layers:      len(c.layers),
			tweens:      countTweens(c.timeline),
			effects:     c.registry.Len(),
		})
	}
	return err
}

// CurrentTime returns the frame of the last SetCurrentTime call.
func (c *Composition) CurrentTime() float64 { return c.timeline.GlobalTime() }

// Pause stops every playing timeline without moving the playhead.
func (c *Composition) Pause(ctx context.Context) error {
	if c.disposed {
		return ErrDisposed
	}
	return c.timeline.Pause(ctx)
}

// SetEventSink forwards every timeline's lifecycle events to sink.
func (c *Composition) SetEventSink(sink EventSink) { c.timeline.SetEventSink(sink) }

// --- Text resolution ---

// RendererScale returns the current renderer scale.
func (c *Composition) RendererScale() float64 { return c.rendererScale }

// SetRendererScale updates the renderer scale and re-resolves the font of
// every text layer. Load failures are joined; each failing layer keeps its
// previous font.
func (c *Composition) SetRendererScale(ctx context.Context, scale float64) error {
	if scale <= 0 {
		scale = 1
	}
	c.rendererScale = scale
	var errs []error
	for _, l := range c.layers {
		if l.Text != nil {
			errs = append(errs, l.Text.SetRendererScale(ctx, scale))
		}
	}
	return errors.Join(errs...)
}

// CorrectTextResolution runs a resolution pass on every text layer.
// Parents are resolved before their descendants.
func (c *Composition) CorrectTextResolution(ctx context.Context) error {
	var errs []error
	for _, l := range c.layersTopDown() {
		if l.Text != nil {
			errs = append(errs, l.Text.CorrectResolution(ctx))
		}
	}
	return errors.Join(errs...)
}

// layersTopDown orders layers so every parent precedes its children.
func (c *Composition) layersTopDown() []*Layer {
	out := make([]*Layer, 0, len(c.layers))
	done := make(map[*Layer]bool, len(c.layers))
	var visit func(l *Layer)
	visit = func(l *Layer) {
		if l == nil || done[l] {
			return
		}
		done[l] = true
		visit(l.Parent())
		out = append(out, l)
	}
	for _, l := range c.layers {
		visit(l)
	}
	return out
}

// --- Disposal ---

// Dispose detaches media (waiting for the final stops), releases every
// effect instance and disposes the layers and the root timeline.
func (c *Composition) Dispose(ctx context.Context) error {
	if c.disposed {
		return nil
	}
	c.disposed = true
	var errs []error
	for _, l := range c.layers {
		if l.Media != nil {
			errs = append(errs, l.Media.Detach(ctx))
		}
	}
	// Release before any node is disposed: disposing a parent node clears
	// its children's IDs.
	for _, l := range c.layers {
		c.registry.Release(l.Node.ID)
	}
	for i := len(c.layers) - 1; i >= 0; i-- {
		c.layers[i].Dispose(c.registry)
	}
	c.layers = nil
	clear(c.byIndex)
	c.timeline.Dispose()
	c.root.Dispose()
	return errors.Join(errs...)
}

// IsDisposed reports whether Dispose has been called.
func (c *Composition) IsDisposed() bool { return c.disposed }
