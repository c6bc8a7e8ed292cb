package bodymovin

// SetMask sets a mask node for this node. The mask node's alpha channel
// determines which parts of this node are visible. The mask node is NOT
// part of the scene tree; its transforms are relative to the masked node.
func (n *Node) SetMask(maskNode *Node) {
	n.mask = maskNode
}

// ClearMask removes the mask from this node.
func (n *Node) ClearMask() {
	n.mask = nil
}

// GetMask returns the current mask node, or nil if no mask is set.
func (n *Node) GetMask() *Node {
	return n.mask
}

// --- Mirrored properties ---

// MirroredProperty is a one-directional live link: reads of the mirrored
// property on the owning node return Source's current value of Path, and
// writes through SetProperty are discarded.
type MirroredProperty struct {
	Source *Node
	Path   PropertyPath
}

// SourceID returns the stable ID of the mirrored node, or 0 once it has
// been disposed.
func (m MirroredProperty) SourceID() uint32 {
	if m.Source == nil {
		return 0
	}
	return m.Source.ID
}

// resolve returns the source's current value. A disposed source no longer
// resolves; the owner falls back to its own field.
func (m MirroredProperty) resolve() (float64, bool) {
	if m.Source == nil || m.Source.disposed {
		return 0, false
	}
	return m.Source.Property(m.Path), true
}

// Mirror makes path on n a read-only mirror of the same path on source.
// Panics if source is n (a property cannot mirror itself).
func (n *Node) Mirror(path PropertyPath, source *Node) {
	if source == n {
		panic("bodymovin: node cannot mirror itself")
	}
	if n.mirrors == nil {
		n.mirrors = make(map[PropertyPath]MirroredProperty)
	}
	n.mirrors[path] = MirroredProperty{Source: source, Path: path}
}

// Unmirror removes the mirror on path. The node's own field value, which
// mirrored writes never touched, becomes visible again.
func (n *Node) Unmirror(path PropertyPath) {
	delete(n.mirrors, path)
}

// MirrorOf returns the mirror installed on path, if any.
func (n *Node) MirrorOf(path PropertyPath) (MirroredProperty, bool) {
	m, ok := n.mirrors[path]
	return m, ok
}
