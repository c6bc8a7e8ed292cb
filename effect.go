package bodymovin

import (
	"log/slog"
	"strconv"
	"strings"
)

// EffectProperty is one named sub-property of an effect.
type EffectProperty struct {
	Name  string
	Value RawValue
}

// EffectDescriptor is a normalized effect record from the manifest.
type EffectDescriptor struct {
	// Index is the effect's stable position in its layer's effect list.
	Index      int
	Type       EffectType
	Name       string
	Enabled    bool
	Properties []EffectProperty
}

// Property returns the first sub-property whose name matches (ignoring case).
func (d EffectDescriptor) Property(name string) (RawValue, bool) {
	for _, p := range d.Properties {
		if strings.EqualFold(p.Name, name) {
			return p.Value, true
		}
	}
	return RawValue{}, false
}

// LayerResolver finds the node of a layer by its manifest index. Used by
// effects that reference other layers.
type LayerResolver interface {
	LayerNode(index int) (*Node, bool)
}

// effectFilter is the entry an effect installs in its owner's filter list.
// It keeps the list ordered by effect index.
type effectFilter struct {
	Filter
	index int
}

func (f *effectFilter) effectIndex() int { return f.index }

type indexedFilter interface {
	effectIndex() int
}

// --- Dispatcher ---

// Dispatcher routes effect descriptors to their per-type handlers and keeps
// every instance in an EffectRegistry.
type Dispatcher struct {
	registry *EffectRegistry
	layers   LayerResolver
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher. layers may be nil when no effect needs
// to reference other layers; logger nil uses slog.Default().
func NewDispatcher(registry *EffectRegistry, layers LayerResolver, logger *slog.Logger) *Dispatcher {
	if registry == nil {
		registry = NewEffectRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, layers: layers, logger: logger}
}

// Registry returns the registry holding the dispatcher's instances.
func (d *Dispatcher) Registry() *EffectRegistry { return d.registry }

// ApplyEffect ensures an instance exists for (target, desc.Index) and
// configures it from desc. Static sub-properties are written immediately;
// animated ones become tweens on tl under "effects.<index>.<field>", replacing
// tweens from an earlier application. Unknown type tags are logged and
// ignored, as are recognised effects without an implementation and disabled
// effects. tl may be nil, in which case animated properties are set to their
// value at local time 0.
func (d *Dispatcher) ApplyEffect(target *Node, desc EffectDescriptor, tl *Timeline) {
	if target == nil || target.IsDisposed() {
		return
	}
	h, ok := effectHandlers[desc.Type]
	if !ok {
		d.logger.Warn("unknown effect type ignored",
			"node", target.Name, "effect", desc.Name, "type", int(desc.Type), "index", desc.Index)
		return
	}
	if h.apply == nil {
		d.logger.Debug("effect not supported", "node", target.Name, "effect", h.name, "index", desc.Index)
		return
	}
	key := EffectKey{NodeID: target.ID, Index: desc.Index}
	if !desc.Enabled {
		if d.registry.ReleaseKey(key) {
			d.logger.Debug("effect disabled, released", "node", target.Name, "effect", h.name, "index", desc.Index)
		}
		return
	}

	prefix := effectPrefix(desc.Index)
	inst, created := d.registry.acquire(key, desc.Type, func() *EffectInstance {
		inst := h.create()
		inst.owner = target
		if inst.Filter != nil {
			inst.slot = &effectFilter{Filter: inst.Filter, index: desc.Index}
			target.insertFilter(inst.slot, desc.Index)
		}
		if tl != nil {
			inst.releaseFunc = func() { tl.RemovePropertyTweens(prefix) }
		}
		return inst
	})
	if created {
		d.logger.Debug("effect created", "node", target.Name, "effect", h.name, "index", desc.Index)
	}
	if tl != nil {
		tl.RemovePropertyTweens(prefix)
	}
	h.apply(&applyContext{d: d, target: target, desc: desc, tl: tl, inst: inst})
}

func effectPrefix(index int) PropertyPath {
	return Path("effects", strconv.Itoa(index))
}

// --- Apply context ---

// applyContext carries one ApplyEffect call into a handler.
type applyContext struct {
	d      *Dispatcher
	target *Node
	desc   EffectDescriptor
	tl     *Timeline
	inst   *EffectInstance
}

// bind wires sub-property name to set. The transform converts the authoring
// domain into the renderer domain. A missing or empty property is skipped
// and reported false; the rest of the effect still applies.
func (ac *applyContext) bind(name, field string, transform func(Value) Value, set func(Value)) bool {
	raw, ok := ac.desc.Property(name)
	if !ok || (!raw.Animated && len(raw.Static) == 0) {
		ac.d.logger.Debug("effect property missing",
			"node", ac.target.Name, "effect", ac.desc.Name, "property", name)
		return false
	}
	track := raw.Track(false, transform)
	if track.Len() == 0 {
		return false
	}
	if !track.Animated() || ac.tl == nil {
		set(track.Sample(0))
		return true
	}
	tw := ac.tl.RegisterTrack(EffectPath(ac.desc.Index, field), track, set)
	tw.apply(ac.tl.CurrentTime())
	return true
}

// initial returns the value of name at local time 0 with transform applied.
func (ac *applyContext) initial(name string, transform func(Value) Value) (Value, bool) {
	raw, ok := ac.desc.Property(name)
	if !ok {
		return nil, false
	}
	v := raw.Track(false, transform).Sample(0)
	return v, len(v) > 0
}

func (ac *applyContext) warn(msg string, args ...any) {
	args = append([]any{"node", ac.target.Name, "effect", ac.desc.Name, "index", ac.desc.Index}, args...)
	ac.d.logger.Warn(msg, args...)
}
