package bodymovin

import (
	"fmt"
	"sync"
)

// EffectKey identifies one effect slot: a node's stable ID and the effect's
// index in its layer's effect list.
type EffectKey struct {
	NodeID uint32
	Index  int
}

// EffectState is the lifecycle state of an EffectInstance.
type EffectState uint8

const (
	EffectCreated  EffectState = iota // allocated by the first application
	EffectUpdated                     // re-applied at least once
	EffectReleased                    // owner disposed or effect disabled; resources freed
)

func (s EffectState) String() string {
	switch s {
	case EffectCreated:
		return "created"
	case EffectUpdated:
		return "updated"
	case EffectReleased:
		return "released"
	default:
		return "unknown"
	}
}

// EffectInstance is the persistent state behind one applied effect. Tweens
// capture the instance by pointer, so it is mutated in place on every
// re-application and never reallocated for the same key.
type EffectInstance struct {
	Key  EffectKey
	Type EffectType
	// Filter is the renderer-side object, nil for effects that act through
	// a mask instead.
	Filter Filter
	// Mask is the matte node of a set matte effect.
	Mask *Node

	state       EffectState
	applied     int
	slot        Filter // wrapper installed in the owner's filter list
	owner       *Node
	data        any // per-type parameter state
	releaseFunc func()
}

// State returns the lifecycle state.
func (e *EffectInstance) State() EffectState { return e.state }

// Applications returns how many times the effect has been applied.
func (e *EffectInstance) Applications() int { return e.applied }

// EffectRegistry is a side table from (node, effect index) to the effect's
// persistent instance. Instances live in an arena; the map stores indices.
// Sibling timelines may re-apply effects concurrently, so access is locked;
// the invariant is that a key never maps to two live instances.
type EffectRegistry struct {
	mu    sync.Mutex
	arena []*EffectInstance
	free  []int
	index map[EffectKey]int
}

// NewEffectRegistry creates an empty registry.
func NewEffectRegistry() *EffectRegistry {
	return &EffectRegistry{index: make(map[EffectKey]int)}
}

// acquire returns the live instance for key, creating it with create when
// absent (or when the existing instance has a different type, which is
// released first). created reports whether a new instance was allocated.
// Every call counts as one application.
func (r *EffectRegistry) acquire(key EffectKey, typ EffectType, create func() *EffectInstance) (inst *EffectInstance, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[key]; ok {
		inst = r.arena[i]
		if inst.Type == typ {
			inst.applied++
			inst.state = EffectUpdated
			return inst, false
		}
		r.releaseLocked(key)
	}

	inst = create()
	inst.Key = key
	inst.Type = typ
	inst.state = EffectCreated
	inst.applied = 1
	r.insertLocked(key, inst)
	return inst, true
}

// insertLocked stores inst under key. A second live instance for one key is
// a logic fault.
func (r *EffectRegistry) insertLocked(key EffectKey, inst *EffectInstance) {
	if _, ok := r.index[key]; ok {
		panic(fmt.Sprintf("bodymovin: duplicate effect instance for node %d index %d", key.NodeID, key.Index))
	}
	var slot int
	if n := len(r.free); n > 0 {
		slot = r.free[n-1]
		r.free = r.free[:n-1]
		r.arena[slot] = inst
	} else {
		slot = len(r.arena)
		r.arena = append(r.arena, inst)
	}
	r.index[key] = slot
}

// Lookup returns the live instance for key.
func (r *EffectRegistry) Lookup(key EffectKey) (*EffectInstance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.arena[i], true
}

// Len returns the number of live instances.
func (r *EffectRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.index)
}

// CountFor returns the number of live instances owned by nodeID.
func (r *EffectRegistry) CountFor(nodeID uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.index {
		if k.NodeID == nodeID {
			n++
		}
	}
	return n
}

// Release frees every instance owned by nodeID and returns how many were
// released. Call before disposing the node (disposal clears its ID).
func (r *EffectRegistry) Release(nodeID uint32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []EffectKey
	for k := range r.index {
		if k.NodeID == nodeID {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		r.releaseLocked(k)
	}
	return len(keys)
}

// ReleaseKey releases the instance at key. Returns false if none was live.
func (r *EffectRegistry) ReleaseKey(key EffectKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[key]; !ok {
		return false
	}
	r.releaseLocked(key)
	return true
}

func (r *EffectRegistry) releaseLocked(key EffectKey) {
	i, ok := r.index[key]
	if !ok {
		return
	}
	inst := r.arena[i]
	delete(r.index, key)
	r.arena[i] = nil
	r.free = append(r.free, i)

	if inst.owner != nil && inst.slot != nil {
		inst.owner.removeFilter(inst.slot)
	}
	if inst.owner != nil && inst.Mask != nil && inst.owner.GetMask() == inst.Mask {
		inst.owner.ClearMask()
	}
	if d, ok := inst.Filter.(Disposer); ok {
		d.Dispose()
	}
	if inst.releaseFunc != nil {
		inst.releaseFunc()
	}
	if inst.Mask != nil {
		inst.Mask.Dispose()
	}
	inst.state = EffectReleased
	inst.slot = nil
	inst.owner = nil
}
