package bodymovin

// --- ID counter ---

// nodeIDCounter is a plain counter. Nodes are created on the loading
// goroutine only.
var nodeIDCounter uint32

func nextNodeID() uint32 {
	nodeIDCounter++
	return nodeIDCounter
}

// NodeType distinguishes rendering behavior for a Node.
type NodeType uint8

const (
	NodeTypeContainer NodeType = iota // group node with no visual output
	NodeTypeSprite                    // image, solid or shape layer content
	NodeTypeText                      // renders a TextBlock
	NodeTypeMask                      // matte created by a set matte effect
)

// --- Node ---

// Node is the display object a layer's timeline mutates. A single flat
// struct is used for all node types. The host renderer reads the public
// fields (through Property for mirrored masks) each frame.
type Node struct {
	// Identity. ID is stable for the node's lifetime and keys effect state.
	ID   uint32
	Name string
	Type NodeType

	// Hierarchy
	Parent   *Node
	children []*Node

	// Transform (local)
	X, Y     float64
	ScaleX   float64
	ScaleY   float64
	Rotation float64 // radians

	Alpha   float64
	Visible bool
	Color   Color

	// Text fields (NodeTypeText)
	TextBlock *TextBlock

	// Filters are applied in order when the node is rendered offscreen.
	Filters []Filter

	// Metadata
	UserData any

	mask    *Node
	mirrors map[PropertyPath]MirroredProperty

	disposed bool
}

// nodeDefaults sets the common default field values shared by all constructors.
func nodeDefaults(n *Node) {
	n.ID = nextNodeID()
	n.ScaleX = 1
	n.ScaleY = 1
	n.Alpha = 1
	n.Color = ColorWhite
	n.Visible = true
}

// NewContainer creates a container node with no visual representation.
func NewContainer(name string) *Node {
	n := &Node{Name: name, Type: NodeTypeContainer}
	nodeDefaults(n)
	return n
}

// NewSprite creates a node for image, solid and shape content.
func NewSprite(name string) *Node {
	n := &Node{Name: name, Type: NodeTypeSprite}
	nodeDefaults(n)
	return n
}

// NewText creates a text node with the given content and font size.
func NewText(name, content string, fontSize float64) *Node {
	n := &Node{
		Name: name,
		Type: NodeTypeText,
		TextBlock: &TextBlock{
			Content:  content,
			FontSize: fontSize,
			Color:    ColorWhite,
		},
	}
	nodeDefaults(n)
	return n
}

// --- Tree manipulation ---

// AddChild appends child to this node's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this node (cycle).
func (n *Node) AddChild(child *Node) {
	if child == nil {
		panic("bodymovin: cannot add nil child")
	}
	if isAncestor(child, n) {
		panic("bodymovin: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = n
	n.children = append(n.children, child)
}

// RemoveChild detaches child from this node.
// Panics if child.Parent != n.
func (n *Node) RemoveChild(child *Node) {
	if child.Parent != n {
		panic("bodymovin: child's parent is not this node")
	}
	n.removeChildByPtr(child)
	child.Parent = nil
}

// RemoveFromParent detaches this node from its parent.
// No-op if this node has no parent.
func (n *Node) RemoveFromParent() {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (n *Node) Children() []*Node {
	return n.children
}

// NumChildren returns the number of children.
func (n *Node) NumChildren() int {
	return len(n.children)
}

// --- Properties ---

// Property returns the value of a transform or text property. Mirrored
// properties resolve through their source node.
func (n *Node) Property(path PropertyPath) float64 {
	if m, ok := n.mirrors[path]; ok {
		if v, ok := m.resolve(); ok {
			return v
		}
	}
	v, _ := n.ownProperty(path)
	return v
}

// SetProperty writes a transform or text property. Writes to mirrored
// properties and to unknown paths are discarded.
func (n *Node) SetProperty(path PropertyPath, v float64) {
	if n.disposed {
		return
	}
	if _, ok := n.mirrors[path]; ok {
		return
	}
	switch path {
	case PathPositionX:
		n.X = v
	case PathPositionY:
		n.Y = v
	case PathScaleX:
		n.ScaleX = v
	case PathScaleY:
		n.ScaleY = v
	case PathRotation:
		n.Rotation = v
	case PathOpacity:
		n.Alpha = v
	case PathVisible:
		n.Visible = v != 0
	case PathTextFontSize:
		if n.TextBlock != nil {
			n.TextBlock.FontSize = v
		}
	}
}

// PropertyValue implements PropertyReader.
func (n *Node) PropertyValue(path PropertyPath) (Value, bool) {
	if m, ok := n.mirrors[path]; ok {
		if v, ok := m.resolve(); ok {
			return Value{v}, true
		}
	}
	v, ok := n.ownProperty(path)
	if !ok {
		return nil, false
	}
	return Value{v}, true
}

func (n *Node) ownProperty(path PropertyPath) (float64, bool) {
	switch path {
	case PathPositionX:
		return n.X, true
	case PathPositionY:
		return n.Y, true
	case PathScaleX:
		return n.ScaleX, true
	case PathScaleY:
		return n.ScaleY, true
	case PathRotation:
		return n.Rotation, true
	case PathOpacity:
		return n.Alpha, true
	case PathVisible:
		if n.Visible {
			return 1, true
		}
		return 0, true
	case PathTextFontSize:
		if n.TextBlock != nil {
			return n.TextBlock.FontSize, true
		}
	}
	return 0, false
}

// --- Filters ---

// insertFilter places f in the filter list ordered by effect index.
func (n *Node) insertFilter(f Filter, index int) {
	pos := len(n.Filters)
	for i, existing := range n.Filters {
		if ef, ok := existing.(indexedFilter); ok && ef.effectIndex() > index {
			pos = i
			break
		}
	}
	n.Filters = append(n.Filters, nil)
	copy(n.Filters[pos+1:], n.Filters[pos:])
	n.Filters[pos] = f
}

// removeFilter drops f from the filter list. No-op if absent.
func (n *Node) removeFilter(f Filter) {
	for i, existing := range n.Filters {
		if existing == f {
			copy(n.Filters[i:], n.Filters[i+1:])
			n.Filters[len(n.Filters)-1] = nil
			n.Filters = n.Filters[:len(n.Filters)-1]
			return
		}
	}
}

// --- Disposal ---

// Dispose removes this node from its parent, marks it as disposed,
// and recursively disposes all descendants.
func (n *Node) Dispose() {
	if n.disposed {
		return
	}
	n.RemoveFromParent()
	n.dispose()
}

func (n *Node) dispose() {
	n.disposed = true
	n.ID = 0
	for _, child := range n.children {
		child.Parent = nil
		child.dispose()
	}
	n.children = nil
	n.Parent = nil
	n.Filters = nil
	n.mask = nil
	n.mirrors = nil
	n.TextBlock = nil
	n.UserData = nil
}

// IsDisposed returns true if this node has been disposed.
func (n *Node) IsDisposed() bool {
	return n.disposed
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of node.
func isAncestor(candidate, node *Node) bool {
	for p := node; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from n.children without clearing child.Parent.
func (n *Node) removeChildByPtr(child *Node) {
	for i, c := range n.children {
		if c == child {
			copy(n.children[i:], n.children[i+1:])
			n.children[len(n.children)-1] = nil
			n.children = n.children[:len(n.children)-1]
			return
		}
	}
}
