package bodymovin

import (
	"math"
)

// Empirical constants. They were tuned by eye against the authoring tool's
// output and have no further derivation.
const (
	// degenerateScale replaces a zero scale in the baseline text scale so one
	// collapsed ancestor does not zero the whole product.
	degenerateScale = 0.1
	// blurScaleRange is the renderer blur radius, in pixels, that a
	// blurriness of 100 maps to.
	blurScaleRange = 20.0
	// stepAndBreakMultiplier is the headroom for text boxes allowed to step
	// their font size up.
	stepAndBreakMultiplier = 1.1
)

// effectHandler is one arm of the effect dispatch table. A handler with a
// nil apply is recognised but not implemented.
type effectHandler struct {
	name   string
	create func() *EffectInstance
	apply  func(ac *applyContext)
}

var effectHandlers = map[EffectType]effectHandler{
	EffectTint:            {name: "tint", create: newTintInstance, apply: applyTint},
	EffectFill:            {name: "fill", create: newFillInstance, apply: applyFill},
	EffectStroke:          {name: "stroke"},
	EffectTritone:         {name: "tritone"},
	EffectProLevels:       {name: "pro levels"},
	EffectDropShadow:      {name: "drop shadow", create: newDropShadowInstance, apply: applyDropShadow},
	EffectRadialWipe:      {name: "radial wipe"},
	EffectDisplacementMap: {name: "displacement map"},
	EffectSetMatte:        {name: "set matte", create: newSetMatteInstance, apply: applySetMatte},
	EffectGaussianBlur:    {name: "gaussian blur", create: newGaussianBlurInstance, apply: applyGaussianBlur},
	EffectTwirl:           {name: "twirl"},
	EffectMeshWarp:        {name: "mesh warp"},
	EffectWavy:            {name: "wavy"},
	EffectSpherize:        {name: "spherize"},
	EffectPuppet:          {name: "puppet"},
	EffectInvert:          {name: "invert", create: newInvertInstance, apply: applyInvert},
}

// --- Value transforms ---

// opacityFrom255 maps the 0-255 opacity domain to 0-1.
func opacityFrom255(v Value) Value {
	if len(v) == 0 {
		return v
	}
	return Value{v[0] / 255}
}

// fromPercent maps 0-100 to 0-1.
func fromPercent(v Value) Value {
	if len(v) == 0 {
		return v
	}
	return Value{v[0] / 100}
}

// directionToAngle maps an authoring direction (degrees clockwise from up)
// to a renderer angle (radians clockwise from +X).
func directionToAngle(v Value) Value {
	if len(v) == 0 {
		return v
	}
	return Value{(v[0] - 90) * degToRad}
}

// blurRadius maps blurriness to a renderer blur radius in pixels.
func blurRadius(v Value) Value {
	if len(v) == 0 {
		return v
	}
	return Value{v[0] / 100 * blurScaleRange}
}

// selector rounds a dropdown value to its integer key.
func selector(v Value) int {
	return int(math.Round(v.At(0)))
}

// --- Matrices ---

// fillColorMatrix replaces the RGB rows of m with the constant color c.
func fillColorMatrix(m ColorMatrix, c Color) ColorMatrix {
	for row := 0; row < 3; row++ {
		for col := 0; col < 4; col++ {
			m[row*5+col] = 0
		}
	}
	m[4], m[9], m[14] = c.R, c.G, c.B
	return m
}

// TintMatrix maps luminance onto the black-to-white color ramp, blended with
// the original by amount (0-1).
func TintMatrix(black, white Color, amount float64) ColorMatrix {
	const lr, lg, lb = 0.299, 0.587, 0.114
	dr, dg, db := white.R-black.R, white.G-black.G, white.B-black.B
	tint := ColorMatrix{
		dr * lr, dr * lg, dr * lb, 0, black.R,
		dg * lr, dg * lg, dg * lb, 0, black.G,
		db * lr, db * lg, db * lb, 0, black.B,
		0, 0, 0, 1, 0,
	}
	return IdentityMatrix.Lerp(tint, amount)
}

// Invert channel selectors.
const (
	InvertRGB   = 1
	InvertRed   = 2
	InvertGreen = 3
	InvertBlue  = 4
	InvertAlpha = 13
)

var invertMatrices = map[int]ColorMatrix{
	InvertRGB: {
		-1, 0, 0, 0, 1,
		0, -1, 0, 0, 1,
		0, 0, -1, 0, 1,
		0, 0, 0, 1, 0,
	},
	InvertRed: {
		-1, 0, 0, 0, 1,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	},
	InvertGreen: {
		1, 0, 0, 0, 0,
		0, -1, 0, 0, 1,
		0, 0, 1, 0, 0,
		0, 0, 0, 1, 0,
	},
	InvertBlue: {
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, -1, 0, 1,
		0, 0, 0, 1, 0,
	},
	InvertAlpha: {
		1, 0, 0, 0, 0,
		0, 1, 0, 0, 0,
		0, 0, 1, 0, 0,
		0, 0, 0, -1, 1,
	},
}

// InvertMatrix returns the fixed matrix for a channel selector. Unknown
// selectors yield the identity and ok=false.
func InvertMatrix(channel int) (m ColorMatrix, ok bool) {
	m, ok = invertMatrices[channel]
	if !ok {
		return IdentityMatrix, false
	}
	return m, true
}

// --- Tint ---

type tintState struct {
	filter       *ColorMatrixFilter
	black, white Color
	amount       float64
}

func (s *tintState) update() { s.filter.Matrix = TintMatrix(s.black, s.white, s.amount) }

func newTintInstance() *EffectInstance {
	s := &tintState{filter: NewColorMatrixFilter(), white: ColorWhite, amount: 1}
	return &EffectInstance{Filter: s.filter, data: s}
}

func applyTint(ac *applyContext) {
	s := ac.inst.data.(*tintState)
	ac.bind("Map Black To", "black", nil, func(v Value) { s.black = colorFromValue(v); s.update() })
	ac.bind("Map White To", "white", nil, func(v Value) { s.white = colorFromValue(v); s.update() })
	ac.bind("Amount to Tint", "amount", fromPercent, func(v Value) { s.amount = v.At(0); s.update() })
	s.update()
}

// --- Fill ---

type fillState struct {
	filter *ColorMatrixFilter
}

func newFillInstance() *EffectInstance {
	s := &fillState{filter: NewColorMatrixFilter()}
	return &EffectInstance{Filter: s.filter, data: s}
}

// applyFill writes the fill color into the RGB rows and the opacity into the
// alpha scale. Either may be absent; the present one is still written.
func applyFill(ac *applyContext) {
	s := ac.inst.data.(*fillState)
	hasColor := ac.bind("Color", "color", nil, func(v Value) {
		s.filter.Matrix = fillColorMatrix(s.filter.Matrix, colorFromValue(v))
	})
	hasOpacity := ac.bind("Opacity", "opacity", opacityFrom255, func(v Value) {
		s.filter.Matrix[18] = v.At(0)
	})
	if !hasColor && !hasOpacity {
		ac.warn("fill effect has neither color nor opacity")
	}
}

// --- Drop shadow ---

func newDropShadowInstance() *EffectInstance {
	f := NewDropShadowFilter()
	return &EffectInstance{Filter: f, data: f}
}

func applyDropShadow(ac *applyContext) {
	f := ac.inst.data.(*DropShadowFilter)
	ac.bind("Shadow Color", "color", nil, func(v Value) { f.Color = colorFromValue(v) })
	ac.bind("Opacity", "alpha", opacityFrom255, func(v Value) { f.Alpha = v.At(0) })
	ac.bind("Direction", "angle", directionToAngle, func(v Value) { f.Angle = v.At(0) })
	ac.bind("Distance", "distance", nil, func(v Value) { f.Distance = v.At(0) })
	ac.bind("Softness", "softness", blurRadius, func(v Value) {
		f.Blur.Radius = max(int(math.Round(v.At(0))), 0)
	})
}

// --- Gaussian blur ---

func newGaussianBlurInstance() *EffectInstance {
	f := NewBlurFilter(0)
	return &EffectInstance{Filter: f, data: f}
}

func applyGaussianBlur(ac *applyContext) {
	f := ac.inst.data.(*BlurFilter)
	ac.bind("Blurriness", "radius", blurRadius, func(v Value) {
		f.Radius = max(int(math.Round(v.At(0))), 0)
	})
	ac.bind("Blur Dimensions", "axis", nil, func(v Value) {
		switch selector(v) {
		case 2:
			f.Axis = BlurHorizontal
		case 3:
			f.Axis = BlurVertical
		default:
			f.Axis = BlurBoth
		}
	})
}

// --- Invert ---

type invertState struct {
	filter  *ColorMatrixFilter
	channel int
	blend   float64
	warned  bool
}

func newInvertInstance() *EffectInstance {
	s := &invertState{filter: NewColorMatrixFilter(), channel: InvertRGB}
	return &EffectInstance{Filter: s.filter, data: s}
}

// update recomputes the matrix; it reports false for an unknown channel.
func (s *invertState) update() bool {
	m, ok := InvertMatrix(s.channel)
	s.filter.Matrix = m.Lerp(IdentityMatrix, s.blend)
	return ok
}

func applyInvert(ac *applyContext) {
	s := ac.inst.data.(*invertState)
	s.warned = false
	ac.bind("Blend With Original", "blend", fromPercent, func(v Value) { s.blend = v.At(0); s.update() })
	ac.bind("Channel", "channel", nil, func(v Value) {
		s.channel = selector(v)
		if !s.update() && !s.warned {
			s.warned = true
			ac.warn("unknown invert channel, using identity", "channel", s.channel)
		}
	})
	s.update()
}

// --- Set matte ---

// MatteChannel selects which channel of the matte layer masks the target.
type MatteChannel uint8

const (
	MatteRed MatteChannel = iota + 1
	MatteGreen
	MatteBlue
	MatteAlpha
	MatteLuminance
)

// MatteSettings is the state of a set matte effect.
type MatteSettings struct {
	SourceLayer int
	Source      *Node
	Channel     MatteChannel
	Invert      bool
}

// mirroredMatteProperties are the properties a matte mirrors from its source.
var mirroredMatteProperties = []PropertyPath{
	PathPositionX, PathPositionY, PathScaleX, PathScaleY, PathRotation, PathOpacity, PathVisible,
}

// Matte returns the settings of a set matte instance.
func (e *EffectInstance) Matte() (MatteSettings, bool) {
	s, ok := e.data.(*MatteSettings)
	if !ok {
		return MatteSettings{}, false
	}
	return *s, true
}

func newSetMatteInstance() *EffectInstance {
	mask := NewContainer("matte")
	mask.Type = NodeTypeMask
	return &EffectInstance{Mask: mask, data: &MatteSettings{Channel: MatteAlpha}}
}

// applySetMatte links the instance's mask node to the source layer: the
// mask's transform properties become read-only mirrors of the source's.
func applySetMatte(ac *applyContext) {
	s := ac.inst.data.(*MatteSettings)
	mask := ac.inst.Mask

	if v, ok := ac.initial("Use For Matte", nil); ok {
		ch := MatteChannel(selector(v))
		if ch < MatteRed || ch > MatteLuminance {
			ac.warn("unknown matte channel, using alpha", "channel", int(ch))
			ch = MatteAlpha
		}
		s.Channel = ch
	}
	if v, ok := ac.initial("Invert Matte", nil); ok {
		s.Invert = v.At(0) != 0
	}

	v, ok := ac.initial("Take Matte From Layer", nil)
	if !ok {
		ac.warn("set matte without source layer")
		return
	}
	s.SourceLayer = selector(v)
	var source *Node
	if ac.d.layers != nil {
		source, ok = ac.d.layers.LayerNode(s.SourceLayer)
	}
	if source == nil || !ok || source == ac.target {
		ac.warn("set matte source layer not found", "layer", s.SourceLayer)
		s.Source = nil
		for _, p := range mirroredMatteProperties {
			mask.Unmirror(p)
		}
		ac.target.ClearMask()
		return
	}
	s.Source = source
	for _, p := range mirroredMatteProperties {
		mask.Mirror(p, source)
	}
	mask.UserData = s
	ac.target.SetMask(mask)
}
