package bodymovin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/hajimehoshi/ebiten/v2/text/v2"
)

// Font is the interface for text measurement at one rasterised size.
type Font interface {
	MeasureString(text string) (width, height float64)
	LineHeight() float64
	// Size returns the pixel size the font was rasterised at.
	Size() float64
}

// --- TextBlock ---

// TextBlock holds the text content and style a text node renders.
type TextBlock struct {
	Content    string
	FontFamily string
	// FontSize is the authored size in composition pixels.
	FontSize float64
	Color    Color
	// Font is the rasterised font; its Size is the resolution chosen for the
	// layer, which may exceed FontSize.
	Font Font
}

// RenderScale returns the factor the host applies when drawing Font so the
// text appears at FontSize.
func (tb *TextBlock) RenderScale() float64 {
	if tb.Font == nil || tb.Font.Size() <= 0 {
		return 1
	}
	return tb.FontSize / tb.Font.Size()
}

// Measure returns the content's size at FontSize.
func (tb *TextBlock) Measure() (width, height float64) {
	if tb.Font == nil {
		return 0, 0
	}
	w, h := tb.Font.MeasureString(tb.Content)
	s := tb.RenderScale()
	return w * s, h * s
}

// --- TTFFont ---

// TTFFont wraps Ebitengine's text/v2 for TrueType font rendering.
type TTFFont struct {
	face *text.GoTextFace
	size float64
	lh   float64 // cached line height
}

// MeasureString returns the width and height of the rendered text.
func (f *TTFFont) MeasureString(s string) (width, height float64) {
	return text.Measure(s, f.face, f.lh)
}

// LineHeight returns the vertical distance between baselines.
func (f *TTFFont) LineHeight() float64 {
	return f.lh
}

// Size returns the rasterised size.
func (f *TTFFont) Size() float64 { return f.size }

// Face returns the underlying GoTextFace for direct Ebitengine text/v2 rendering.
func (f *TTFFont) Face() *text.GoTextFace {
	return f.face
}

// --- FontSource ---

// FontSource is a parsed TrueType font from which faces are cut at any size.
type FontSource struct {
	source *text.GoTextFaceSource
}

// NewFontSource parses raw TTF/OTF data.
func NewFontSource(ttfData []byte) (*FontSource, error) {
	source, err := text.NewGoTextFaceSource(bytes.NewReader(ttfData))
	if err != nil {
		return nil, fmt.Errorf("bodymovin: failed to parse TTF data: %w", err)
	}
	return &FontSource{source: source}, nil
}

// Face returns the font rasterised at size pixels.
func (s *FontSource) Face(size float64) *TTFFont {
	face := &text.GoTextFace{
		Source: s.source,
		Size:   size,
	}
	m := face.Metrics()
	return &TTFFont{
		face: face,
		size: size,
		lh:   m.HAscent + m.HDescent + m.HLineGap,
	}
}

// --- Font loading ---

// FontLoader loads a font family at a chosen bitmap size. Loading may be
// slow; implementations honour ctx.
type FontLoader interface {
	LoadFont(ctx context.Context, family string, size float64) (Font, error)
}

// ErrFontNotFound is wrapped by LoadError when a family is not registered.
var ErrFontNotFound = errors.New("bodymovin: font family not found")

// FontLibrary is a FontLoader over registered FontSources. Faces are cached
// per (family, size). It is safe for concurrent use.
type FontLibrary struct {
	mu       sync.Mutex
	families map[string]*FontSource
	faces    map[fontKey]*TTFFont
	fallback string
}

type fontKey struct {
	family string
	size   float64
}

// NewFontLibrary creates an empty library.
func NewFontLibrary() *FontLibrary {
	return &FontLibrary{
		families: make(map[string]*FontSource),
		faces:    make(map[fontKey]*TTFFont),
	}
}

// Register adds source under family (case-insensitive). The first family
// registered is used for unknown names.
func (l *FontLibrary) Register(family string, source *FontSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := strings.ToLower(family)
	if l.fallback == "" {
		l.fallback = key
	}
	l.families[key] = source
}

// LoadFont implements FontLoader.
func (l *FontLibrary) LoadFont(ctx context.Context, family string, size float64) (Font, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Asset: family, Err: err}
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	key := strings.ToLower(family)
	src, ok := l.families[key]
	if !ok {
		src, ok = l.families[l.fallback]
		key = l.fallback
	}
	if !ok {
		return nil, &LoadError{Asset: family, Err: ErrFontNotFound}
	}
	fk := fontKey{family: key, size: size}
	if f, ok := l.faces[fk]; ok {
		return f, nil
	}
	f := src.Face(size)
	l.faces[fk] = f
	return f, nil
}
