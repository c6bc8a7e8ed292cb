package bodymovin

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Affine is a 2D affine matrix [a, b, c, d, tx, ty]:
//
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
type Affine [6]float64

// IdentityAffine leaves points unchanged.
var IdentityAffine = Affine{1, 0, 0, 1, 0, 0}

// Multiply returns p * c (c applied first).
func (p Affine) Multiply(c Affine) Affine {
	return Affine{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// Invert returns the inverse matrix, or the identity when m is singular
// (a layer scaled to zero).
func (m Affine) Invert() Affine {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return IdentityAffine
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return Affine{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// Apply transforms the point (x, y).
func (m Affine) Apply(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// GeoM converts m for Ebitengine draw options.
func (m Affine) GeoM() ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(1, 0, m[1])
	g.SetElement(0, 1, m[2])
	g.SetElement(1, 1, m[3])
	g.SetElement(0, 2, m[4])
	g.SetElement(1, 2, m[5])
	return g
}

// LocalTransform returns the node's matrix relative to its parent:
// Scale -> Rotate -> Translate(X, Y). Mirrored properties resolve through
// their source, so a matte follows the layer it mirrors.
func (n *Node) LocalTransform() Affine {
	sx := n.Property(PathScaleX)
	sy := n.Property(PathScaleY)
	sin, cos := math.Sincos(n.Property(PathRotation))
	return Affine{
		cos * sx, sin * sx,
		-sin * sy, cos * sy,
		n.Property(PathPositionX), n.Property(PathPositionY),
	}
}

// WorldTransform returns the node's matrix in composition space. A mask
// node is not in the tree; its world transform is that of its own fields
// (mirrors included) without a parent.
func (n *Node) WorldTransform() Affine {
	m := n.LocalTransform()
	for p := n.Parent; p != nil; p = p.Parent {
		m = p.LocalTransform().Multiply(m)
	}
	return m
}

// WorldAlpha returns the product of the node's opacity and its ancestors'.
func (n *Node) WorldAlpha() float64 {
	a := n.Property(PathOpacity)
	for p := n.Parent; p != nil; p = p.Parent {
		a *= p.Property(PathOpacity)
	}
	return a
}

// WorldToLocal converts a composition-space point to this node's local space.
func (n *Node) WorldToLocal(wx, wy float64) (lx, ly float64) {
	return n.WorldTransform().Invert().Apply(wx, wy)
}

// LocalToWorld converts a local-space point to composition space.
func (n *Node) LocalToWorld(lx, ly float64) (wx, wy float64) {
	return n.WorldTransform().Apply(lx, ly)
}
