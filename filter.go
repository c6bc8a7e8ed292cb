package bodymovin

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
)

// Filter is the interface for visual effects applied to a node's rendered output.
type Filter interface {
	// Apply renders src into dst with the filter effect.
	Apply(src, dst *ebiten.Image)
	// Padding returns the extra pixels needed around the source to accommodate
	// the effect (e.g. blur radius, shadow distance). Zero means no padding.
	Padding() int
}

// Disposer is implemented by filters that hold GPU images between frames.
type Disposer interface {
	Dispose()
}

// --- Kage shader sources ---
// Ebitengine uses premultiplied alpha; the shader un-premultiplies before
// processing and re-premultiplies its output.

const colorMatrixShaderSrc = `//kage:unit pixels
package main

var Matrix [20]float

func Fragment(dst vec4, src vec2, color vec4) vec4 {
	c := imageSrc0At(src)
	if c.a > 0 {
		c.rgb /= c.a
	}
	// 4x5 row-major color matrix, offsets in elements 4, 9, 14, 19.
	r := Matrix[0]*c.r + Matrix[1]*c.g + Matrix[2]*c.b + Matrix[3]*c.a + Matrix[4]
	g := Matrix[5]*c.r + Matrix[6]*c.g + Matrix[7]*c.b + Matrix[8]*c.a + Matrix[9]
	b := Matrix[10]*c.r + Matrix[11]*c.g + Matrix[12]*c.b + Matrix[13]*c.a + Matrix[14]
	a := Matrix[15]*c.r + Matrix[16]*c.g + Matrix[17]*c.b + Matrix[18]*c.a + Matrix[19]
	r = clamp(r, 0, 1)
	g = clamp(g, 0, 1)
	b = clamp(b, 0, 1)
	a = clamp(a, 0, 1)
	return vec4(r*a, g*a, b*a, a)
}
`

// Compiled lazily on first Apply; filters are only applied on the draw goroutine.
var colorMatrixShader *ebiten.Shader

func ensureColorMatrixShader() *ebiten.Shader {
	if colorMatrixShader == nil {
		s, err := ebiten.NewShader([]byte(colorMatrixShaderSrc))
		if err != nil {
			panic("bodymovin: failed to compile color matrix shader: " + err.Error())
		}
		colorMatrixShader = s
	}
	return colorMatrixShader
}

// ColorMatrix is a 4x5 row-major color transform:
// [R_r, R_g, R_b, R_a, R_offset, G_r, ...].
type ColorMatrix [20]float64

// IdentityMatrix leaves colors unchanged.
var IdentityMatrix = ColorMatrix{
	1, 0, 0, 0, 0,
	0, 1, 0, 0, 0,
	0, 0, 1, 0, 0,
	0, 0, 0, 1, 0,
}

// Lerp blends m toward other by p (0 keeps m, 1 yields other).
func (m ColorMatrix) Lerp(other ColorMatrix, p float64) ColorMatrix {
	var out ColorMatrix
	for i := range m {
		out[i] = m[i] + (other[i]-m[i])*p
	}
	return out
}

// --- ColorMatrixFilter ---

// ColorMatrixFilter applies a ColorMatrix using a Kage shader.
type ColorMatrixFilter struct {
	Matrix      ColorMatrix
	uniforms    map[string]any
	matrixF32   [20]float32 // persistent buffer to avoid per-frame slice escape
	matrixSlice []float32   // persistent slice header pointing into matrixF32
	shaderOp    ebiten.DrawRectShaderOptions
}

// NewColorMatrixFilter creates a color matrix filter initialized to the identity.
func NewColorMatrixFilter() *ColorMatrixFilter {
	f := &ColorMatrixFilter{
		Matrix:   IdentityMatrix,
		uniforms: make(map[string]any, 1),
	}
	f.matrixSlice = f.matrixF32[:]
	f.uniforms["Matrix"] = f.matrixSlice
	return f
}

// Apply renders the color matrix transformation from src into dst.
func (f *ColorMatrixFilter) Apply(src, dst *ebiten.Image) {
	shader := ensureColorMatrixShader()
	for i, v := range f.Matrix {
		f.matrixF32[i] = float32(v)
	}
	bounds := src.Bounds()
	f.shaderOp.Images[0] = src
	f.shaderOp.Uniforms = f.uniforms
	dst.DrawRectShader(bounds.Dx(), bounds.Dy(), shader, &f.shaderOp)
}

// Padding returns 0; color matrix transforms don't expand the image bounds.
func (f *ColorMatrixFilter) Padding() int { return 0 }

// --- BlurFilter ---

// BlurAxis restricts a blur to one direction.
type BlurAxis uint8

const (
	BlurBoth       BlurAxis = iota // blur horizontally and vertically
	BlurHorizontal                 // blur along X only
	BlurVertical                   // blur along Y only
)

// BlurFilter applies a Kawase iterative blur using downscale/upscale passes.
// Bilinear filtering during DrawImage does the work.
type BlurFilter struct {
	Radius int
	Axis   BlurAxis
	temps  []*ebiten.Image
	imgOp  ebiten.DrawImageOptions
}

// NewBlurFilter creates a blur filter with the given radius (in pixels).
func NewBlurFilter(radius int) *BlurFilter {
	if radius < 0 {
		radius = 0
	}
	return &BlurFilter{Radius: radius}
}

// Apply renders a Kawase blur from src into dst using iterative downscale/upscale.
func (f *BlurFilter) Apply(src, dst *ebiten.Image) {
	op := &f.imgOp
	if f.Radius <= 0 {
		op.GeoM.Reset()
		op.ColorScale.Reset()
		op.Filter = ebiten.FilterNearest
		dst.DrawImage(src, op)
		return
	}

	passes := max(int(math.Ceil(math.Log2(float64(f.Radius)))), 1)
	srcBounds := src.Bounds()
	w, h := srcBounds.Dx(), srcBounds.Dy()

	for len(f.temps) < passes {
		f.temps = append(f.temps, nil)
	}
	// Deallocate excess temp images from a previous larger radius.
	for i := passes; i < len(f.temps); i++ {
		if f.temps[i] != nil {
			f.temps[i].Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = f.temps[:passes]

	current := src
	for i := 0; i < passes; i++ {
		if f.Axis != BlurVertical {
			w = max(w/2, 1)
		}
		if f.Axis != BlurHorizontal {
			h = max(h/2, 1)
		}
		f.temps[i] = resizeScratch(f.temps[i], w, h)
		f.drawScaled(f.temps[i], current)
		current = f.temps[i]
	}

	for i := passes - 2; i >= 0; i-- {
		f.temps[i].Clear()
		f.drawScaled(f.temps[i], current)
		current = f.temps[i]
	}
	f.drawScaled(dst, current)
}

func (f *BlurFilter) drawScaled(dst, src *ebiten.Image) {
	op := &f.imgOp
	op.GeoM.Reset()
	op.ColorScale.Reset()
	sw := float64(src.Bounds().Dx())
	sh := float64(src.Bounds().Dy())
	op.GeoM.Scale(float64(dst.Bounds().Dx())/sw, float64(dst.Bounds().Dy())/sh)
	op.Filter = ebiten.FilterLinear
	dst.DrawImage(src, op)
}

// Padding returns the blur radius; the offscreen buffer is expanded to avoid clipping.
func (f *BlurFilter) Padding() int { return f.Radius }

// Dispose releases the intermediate images.
func (f *BlurFilter) Dispose() {
	for i, img := range f.temps {
		if img != nil {
			img.Deallocate()
			f.temps[i] = nil
		}
	}
	f.temps = nil
}

// --- DropShadowFilter ---

// DropShadowFilter draws a tinted, offset and optionally blurred copy of the
// source behind the original.
type DropShadowFilter struct {
	Color    Color
	Alpha    float64
	Angle    float64 // radians, clockwise from +X (Y down)
	Distance float64
	Blur     *BlurFilter
	tint     *ColorMatrixFilter
	blurred  *ebiten.Image
	shadow   *ebiten.Image
	imgOp    ebiten.DrawImageOptions
}

// NewDropShadowFilter creates a black, half-transparent shadow.
func NewDropShadowFilter() *DropShadowFilter {
	return &DropShadowFilter{
		Color: Color{0, 0, 0, 1},
		Alpha: 0.5,
		Blur:  NewBlurFilter(0),
		tint:  NewColorMatrixFilter(),
	}
}

// Offset returns the shadow displacement in pixels.
func (f *DropShadowFilter) Offset() (dx, dy float64) {
	sin, cos := math.Sincos(f.Angle)
	return cos * f.Distance, sin * f.Distance
}

// ShadowMatrix returns the matrix that turns source coverage into the shadow
// color: RGB are replaced, alpha is scaled.
func (f *DropShadowFilter) ShadowMatrix() ColorMatrix {
	m := fillColorMatrix(IdentityMatrix, f.Color)
	m[18] = f.Alpha * f.Color.A
	return m
}

// Apply draws the shadow then the original on top.
func (f *DropShadowFilter) Apply(src, dst *ebiten.Image) {
	b := src.Bounds()
	f.shadow = resizeScratch(f.shadow, b.Dx(), b.Dy())

	input := src
	if f.Blur != nil && f.Blur.Radius > 0 {
		f.blurred = resizeScratch(f.blurred, b.Dx(), b.Dy())
		f.Blur.Apply(src, f.blurred)
		input = f.blurred
	}
	f.tint.Matrix = f.ShadowMatrix()
	f.tint.Apply(input, f.shadow)

	op := &f.imgOp
	dx, dy := f.Offset()
	op.GeoM.Reset()
	op.ColorScale.Reset()
	op.GeoM.Translate(dx, dy)
	dst.DrawImage(f.shadow, op)

	op.GeoM.Reset()
	dst.DrawImage(src, op)
}

// Padding covers the shadow displacement plus its blur.
func (f *DropShadowFilter) Padding() int {
	pad := int(math.Ceil(math.Abs(f.Distance)))
	if f.Blur != nil {
		pad += f.Blur.Padding()
	}
	return pad
}

// Dispose releases the shadow images and the blur's intermediates.
func (f *DropShadowFilter) Dispose() {
	for _, img := range []*ebiten.Image{f.shadow, f.blurred} {
		if img != nil {
			img.Deallocate()
		}
	}
	f.shadow, f.blurred = nil, nil
	if f.Blur != nil {
		f.Blur.Dispose()
	}
}

// resizeScratch returns a cleared image of exactly (w, h), reusing img when
// it already has that size.
func resizeScratch(img *ebiten.Image, w, h int) *ebiten.Image {
	if img != nil && img.Bounds().Dx() == w && img.Bounds().Dy() == h {
		img.Clear()
		return img
	}
	if img != nil {
		img.Deallocate()
	}
	return ebiten.NewImage(w, h)
}

// --- Filter chain ---

// filterChainPadding returns the cumulative padding required by a slice of
// filters. The offscreen texture is sized to hold the sum.
func filterChainPadding(filters []Filter) int {
	pad := 0
	for _, f := range filters {
		pad += f.Padding()
	}
	return pad
}

// FilterChain applies a node's filters by ping-ponging between two scratch
// images that persist across frames.
type FilterChain struct {
	scratch [2]*ebiten.Image
}

// Apply runs filters over src and returns the image holding the result
// (src itself when there are no filters). The result is owned by the chain
// and valid until the next Apply.
func (c *FilterChain) Apply(filters []Filter, src *ebiten.Image) *ebiten.Image {
	if len(filters) == 0 {
		return src
	}
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	current := src
	for i, f := range filters {
		dst := c.acquire(i%2, w, h)
		f.Apply(current, dst)
		current = dst
	}
	return current
}

func (c *FilterChain) acquire(slot, w, h int) *ebiten.Image {
	c.scratch[slot] = resizeScratch(c.scratch[slot], w, h)
	return c.scratch[slot]
}

// Dispose releases the scratch images.
func (c *FilterChain) Dispose() {
	for i, img := range c.scratch {
		if img != nil {
			img.Deallocate()
			c.scratch[i] = nil
		}
	}
}

// ApplyFilters renders n's effect filters over src using chain. Hidden and
// unfiltered nodes return src unchanged.
func ApplyFilters(chain *FilterChain, n *Node, src *ebiten.Image) *ebiten.Image {
	if n == nil || !n.Visible || len(n.Filters) == 0 {
		return src
	}
	return chain.Apply(n.Filters, src)
}
