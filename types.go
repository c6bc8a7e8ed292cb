package bodymovin

import (
	"math"
	"strconv"
	"strings"
)

// Color represents an RGBA color with components in [0, 1]. Not premultiplied.
type Color struct {
	R, G, B, A float64
}

// ColorWhite is the default tint (no color modification).
var ColorWhite = Color{1, 1, 1, 1}

// colorFromValue converts a sampled [r, g, b(, a)] value into a Color.
// Missing alpha defaults to 1.
func colorFromValue(v Value) Color {
	c := Color{R: v.At(0), G: v.At(1), B: v.At(2), A: 1}
	if len(v) > 3 {
		c.A = v[3]
	}
	return c
}

// Value is a sampled property value. Scalars are one-element values, points
// and colors carry one element per component.
type Value []float64

// At returns component i, or 0 when the value is shorter than i+1.
func (v Value) At(i int) float64 {
	if i < 0 || i >= len(v) {
		return 0
	}
	return v[i]
}

// Clone returns a copy that does not share the backing array.
func (v Value) Clone() Value {
	if v == nil {
		return nil
	}
	out := make(Value, len(v))
	copy(out, v)
	return out
}

// Equal reports whether both values have identical components.
func (v Value) Equal(other Value) bool {
	if len(v) != len(other) {
		return false
	}
	for i := range v {
		if v[i] != other[i] {
			return false
		}
	}
	return true
}

// --- Property paths ---

// PropertyPath identifies a nested animated property, e.g. "effects.3.alpha".
type PropertyPath string

// Transform and text property paths understood by Node.
const (
	PathPositionX    PropertyPath = "position.x"
	PathPositionY    PropertyPath = "position.y"
	PathScaleX       PropertyPath = "scale.x"
	PathScaleY       PropertyPath = "scale.y"
	PathRotation     PropertyPath = "rotation"
	PathOpacity      PropertyPath = "opacity"
	PathVisible      PropertyPath = "visible"
	PathTextFontSize PropertyPath = "text.fontSize"
	PathTextContent  PropertyPath = "text.content"
	PathTextFill     PropertyPath = "text.fill"
	PathTimeRemap    PropertyPath = "timeRemap"
)

// Path joins segments into a PropertyPath.
func Path(segments ...string) PropertyPath {
	return PropertyPath(strings.Join(segments, "."))
}

// EffectPath returns the path of field on the effect at index.
func EffectPath(index int, field string) PropertyPath {
	return Path("effects", strconv.Itoa(index), field)
}

// Segments splits the path into its ordered segments.
func (p PropertyPath) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), ".")
}

// HasPrefix reports whether p equals prefix or lies below it.
func (p PropertyPath) HasPrefix(prefix PropertyPath) bool {
	if p == prefix {
		return true
	}
	return strings.HasPrefix(string(p), string(prefix)+".")
}

// --- Enums ---

// HookName identifies a timeline lifecycle hook.
type HookName uint8

const (
	HookBeforeStart           HookName = iota // timeline enters its active range
	HookBeforeStop                            // timeline leaves its active range or is paused
	HookRendering                             // once per frame while playing, after tweens are sampled
	HookAfterPropertiesRender                 // after every rendering hook has returned
	HookComplete                              // playhead crossed the end of the active range
	hookCount
)

var hookNames = [hookCount]string{
	"beforeStart", "beforeStop", "rendering", "afterPropertiesRender", "complete",
}

func (h HookName) String() string {
	if h < hookCount {
		return hookNames[h]
	}
	return "HookName(" + strconv.Itoa(int(h)) + ")"
}

// EffectType is the Bodymovin effect type tag ("ty").
type EffectType uint8

const (
	EffectTint            EffectType = 20
	EffectFill            EffectType = 21
	EffectStroke          EffectType = 22
	EffectTritone         EffectType = 23
	EffectProLevels       EffectType = 24
	EffectDropShadow      EffectType = 25
	EffectRadialWipe      EffectType = 26
	EffectDisplacementMap EffectType = 27
	EffectSetMatte        EffectType = 28
	EffectGaussianBlur    EffectType = 29
	EffectTwirl           EffectType = 30
	EffectMeshWarp        EffectType = 31
	EffectWavy            EffectType = 32
	EffectSpherize        EffectType = 33
	EffectPuppet          EffectType = 34
	EffectInvert          EffectType = 35
)

// LayerType is the Bodymovin layer type tag ("ty").
type LayerType uint8

const (
	LayerPrecomp LayerType = iota
	LayerSolid
	LayerImage
	LayerNull
	LayerShape
	LayerText
	LayerAudio
)

// ResizingStrategy controls how a text box reacts to content that outgrows it.
type ResizingStrategy uint8

const (
	ResizeNone         ResizingStrategy = iota // fixed font size
	ResizeStepAndBreak                         // font may step up before breaking lines
)

// parseResizingStrategy maps the manifest name to a ResizingStrategy.
func parseResizingStrategy(s string) ResizingStrategy {
	switch strings.ToLower(s) {
	case "stepandbreak", "step-and-break", "step_and_break":
		return ResizeStepAndBreak
	default:
		return ResizeNone
	}
}

const degToRad = math.Pi / 180
