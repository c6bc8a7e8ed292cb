package bodymovin

import (
	"fmt"
	"strconv"
)

// Layer is one layer of a composition: the node it renders into, the
// timeline that animates it, and its parent and linked parent relations.
type Layer struct {
	// Index is the layer's manifest index ("ind"), unique per composition.
	Index int
	Name  string
	Type  LayerType

	Node     *Node
	Timeline *Timeline

	// Effects are the layer's effect descriptors in manifest order.
	Effects []EffectDescriptor
	// Text is set for text layers.
	Text *TextLayer
	// Media is set for layers synchronised to an external media handle.
	Media *MediaSync
	// Animators are the nested text animator timelines.
	Animators []*TextAnimator
	// Asset is the loaded asset for image and audio layers.
	Asset Asset

	parent        *Layer
	linkedParents []*Layer
	strategy      ResizingStrategy
	disposed      bool
}

// NewLayer creates a layer with a fresh timeline targeting node.
func NewLayer(index int, name string, typ LayerType, node *Node) *Layer {
	if node == nil {
		panic("bodymovin: layer without node")
	}
	if name == "" {
		name = "layer " + strconv.Itoa(index)
	}
	return &Layer{
		Index:    index,
		Name:     name,
		Type:     typ,
		Node:     node,
		Timeline: NewTimeline(name, node),
	}
}

// Parent returns the transform parent, or nil.
func (l *Layer) Parent() *Layer { return l.parent }

// SetParent sets the transform parent. Panics on a cycle.
func (l *Layer) SetParent(p *Layer) {
	for a := p; a != nil; a = a.parent {
		if a == l {
			panic(fmt.Sprintf("bodymovin: parenting layer %d would create a cycle", l.Index))
		}
	}
	l.parent = p
}

// LinkedParents returns the direct linked parents. The slice MUST NOT be mutated.
func (l *Layer) LinkedParents() []*Layer { return l.linkedParents }

// AddLinkedParent adds a linked parent. Linked parents influence text
// resolution but not the node hierarchy; cycles are tolerated.
func (l *Layer) AddLinkedParent(p *Layer) {
	if p == nil || p == l {
		return
	}
	for _, existing := range l.linkedParents {
		if existing == p {
			return
		}
	}
	l.linkedParents = append(l.linkedParents, p)
}

// SetResizingStrategy sets how the text box reacts to overflowing content.
func (l *Layer) SetResizingStrategy(s ResizingStrategy) { l.strategy = s }

// --- ScaleSource ---

// LayerTimeline implements ScaleSource.
func (l *Layer) LayerTimeline() *Timeline { return l.Timeline }

// ForEachParent implements ScaleSource. It walks the whole parent chain,
// nearest first.
func (l *Layer) ForEachParent(fn func(ScaleSource)) {
	for p := l.parent; p != nil; p = p.parent {
		fn(p)
	}
}

// ForEachLinkedParent implements ScaleSource.
func (l *Layer) ForEachLinkedParent(fn func(ScaleSource)) {
	for _, p := range l.linkedParents {
		fn(p)
	}
}

// ResizingStrategy implements TextScaleSource.
func (l *Layer) ResizingStrategy() ResizingStrategy { return l.strategy }

// --- Tracks ---

// BindTransform registers the layer's transform tracks on its timeline and
// applies their value at the timeline's current time. Nil tracks are skipped.
func (l *Layer) BindTransform(tracks map[PropertyPath]*KeyframeTrack) {
	for _, path := range transformPaths {
		track := tracks[path]
		if track == nil || track.Len() == 0 {
			continue
		}
		node := l.Node
		set := func(v Value) { node.SetProperty(path, v.At(0)) }
		if !track.Animated() {
			set(track.Sample(0))
			continue
		}
		l.Timeline.RegisterTrack(path, track, set).apply(l.Timeline.CurrentTime())
	}
}

// transformPaths fixes the registration order of transform tracks.
var transformPaths = []PropertyPath{
	PathPositionX, PathPositionY, PathScaleX, PathScaleY, PathRotation, PathOpacity,
}

// SetTimeRemap registers a time remap track (values in seconds).
func (l *Layer) SetTimeRemap(track *KeyframeTrack) {
	l.Timeline.RemovePropertyTweens(PathTimeRemap)
	if track != nil && track.Len() > 0 {
		l.Timeline.RegisterTrack(PathTimeRemap, track, nil)
	}
}

// ApplyEffects applies every effect descriptor through d.
func (l *Layer) ApplyEffects(d *Dispatcher) {
	for _, desc := range l.Effects {
		d.ApplyEffect(l.Node, desc, l.Timeline)
	}
}

// AddAnimator nests a text animator's timeline under the layer timeline.
func (l *Layer) AddAnimator(a *TextAnimator) {
	l.Animators = append(l.Animators, a)
	l.Timeline.AddChild(a.Timeline)
}

// --- Disposal ---

// IsDisposed reports whether Dispose has been called.
func (l *Layer) IsDisposed() bool { return l.disposed }

// Dispose releases the layer's effect instances from registry, detaches its
// media, and disposes its timeline and node. Safe to call more than once.
func (l *Layer) Dispose(registry *EffectRegistry) {
	if l.disposed {
		return
	}
	l.disposed = true
	if l.Media != nil {
		l.Media.detachAsync()
	}
	if l.Text != nil {
		l.Text.detach()
	}
	if registry != nil {
		registry.Release(l.Node.ID)
	}
	l.Timeline.Dispose()
	l.Node.Dispose()
	l.parent = nil
	l.linkedParents = nil
	l.Animators = nil
}
