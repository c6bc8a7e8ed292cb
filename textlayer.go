package bodymovin

import (
	"context"
	"errors"
	"strconv"
)

// TextDocument is one keyframed state of a text layer's content and style.
type TextDocument struct {
	Text       string
	FontFamily string
	FontSize   float64
	Fill       Color
}

// TextDocumentKeyframe places a TextDocument on the layer's local timeline.
type TextDocumentKeyframe struct {
	Time     float64
	Document TextDocument
}

// TextLayerOptions configure a TextLayer.
type TextLayerOptions struct {
	Fonts FontLoader
	// FontSizes are the bitmap sizes fonts may be rasterised at. Empty means
	// any size.
	FontSizes     []float64
	RendererScale float64
}

// TextLayer keeps a text layer's node in step with its keyframed documents
// and picks the font resolution the layer needs at its peak magnification.
type TextLayer struct {
	layer *Layer
	docs  []TextDocument
	opts  TextLayerOptions

	// resolution is the size the current font was loaded at, 0 before the
	// first successful load.
	resolution float64
	family     string
	applied    TextDocument
	attempted  bool
	hook       Hook
}

// NewTextLayer binds docs to layer. Documents are hold keyframes: the active
// document is the last one at or before the current time. Content, fill and
// font changes observed while rendering re-run CorrectResolution.
func NewTextLayer(layer *Layer, docs []TextDocumentKeyframe, opts TextLayerOptions) *TextLayer {
	if opts.RendererScale <= 0 {
		opts.RendererScale = 1
	}
	tl := &TextLayer{layer: layer, opts: opts}
	if layer.Node.TextBlock == nil {
		layer.Node.TextBlock = &TextBlock{Color: ColorWhite}
	}
	layer.Text = tl
	if len(docs) == 0 {
		return tl
	}

	kfs := make([]Keyframe, len(docs))
	sizes := make([]Keyframe, len(docs))
	tl.docs = make([]TextDocument, len(docs))
	for i, d := range docs {
		tl.docs[i] = d.Document
		kfs[i] = Keyframe{Time: d.Time, Value: Value{float64(i)}}
		sizes[i] = Keyframe{Time: d.Time, Value: Value{d.Document.FontSize}}
	}
	docTrack := NewTrack(kfs, true, nil)
	sizeTrack := NewTrack(sizes, true, nil)

	tb := layer.Node.TextBlock
	setDoc := func(v Value) {
		i := int(v.At(0))
		if i < 0 || i >= len(tl.docs) {
			return
		}
		d := tl.docs[i]
		tb.Content = d.Text
		tb.FontFamily = d.FontFamily
		tb.Color = d.Fill
	}
	setSize := func(v Value) { layer.Node.SetProperty(PathTextFontSize, v.At(0)) }

	if docTrack.Animated() {
		layer.Timeline.RegisterTrack(PathTextContent, docTrack, setDoc)
		layer.Timeline.RegisterTrack(PathTextFontSize, sizeTrack, setSize)
	}
	local := layer.Timeline.CurrentTime()
	setDoc(docTrack.Sample(local))
	setSize(sizeTrack.Sample(local))

	tl.hook = HookFunc(tl.onRendering)
	layer.Timeline.RegisterHook(HookRendering, tl.hook)
	return tl
}

// Resolution returns the size the current font was rasterised at.
func (tl *TextLayer) Resolution() float64 { return tl.resolution }

// SetRendererScale updates the renderer scale and re-resolves the font.
func (tl *TextLayer) SetRendererScale(ctx context.Context, scale float64) error {
	if scale <= 0 {
		scale = 1
	}
	tl.opts.RendererScale = scale
	return tl.CorrectResolution(ctx)
}

// CorrectResolution loads the layer's font at the smallest available size
// that covers its peak magnification. On failure the previous font is kept
// and a *LoadError is returned.
func (tl *TextLayer) CorrectResolution(ctx context.Context) error {
	if tl.layer.IsDisposed() {
		return ErrDisposed
	}
	tb := tl.layer.Node.TextBlock
	tl.applied = currentDocument(tb)
	tl.attempted = true
	if tl.opts.Fonts == nil {
		return nil
	}
	required := ResolveRequiredFontScale(tl.layer) * tl.opts.RendererScale
	size := SelectFontSize(tl.opts.FontSizes, required)
	if tb.Font != nil && size == tl.resolution && tb.FontFamily == tl.family {
		return nil
	}

	f, err := tl.opts.Fonts.LoadFont(ctx, tb.FontFamily, size)
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			err = &LoadError{Asset: tb.FontFamily + "@" + strconv.FormatFloat(size, 'f', -1, 64), Err: err}
		}
		return err
	}
	tb.Font = f
	tl.resolution = size
	tl.family = tb.FontFamily
	return nil
}

func (tl *TextLayer) onRendering(ctx context.Context, ev HookEvent) error {
	tb := tl.layer.Node.TextBlock
	if tb == nil {
		return nil
	}
	if tl.attempted && currentDocument(tb) == tl.applied {
		return nil
	}
	return tl.CorrectResolution(ctx)
}

func (tl *TextLayer) detach() {
	if tl.hook != nil {
		tl.layer.Timeline.RemoveHook(HookRendering, tl.hook)
	}
}

// currentDocument captures the style fields that trigger a resolution pass.
func currentDocument(tb *TextBlock) TextDocument {
	return TextDocument{Text: tb.Content, FontFamily: tb.FontFamily, FontSize: tb.FontSize, Fill: tb.Color}
}

// --- Text animators ---

// TextAnimator is one text animator: a range of glyphs and the opacity and
// scale it applies to them. Its properties are animated on a timeline nested
// under the layer's, so sibling animators advance concurrently.
type TextAnimator struct {
	Name     string
	Timeline *Timeline

	// Selection range as fractions of the text, plus the range offset.
	Start, End, Offset float64
	Opacity            float64
	ScaleX, ScaleY     float64
}

// Animator property paths, relative to the animator's timeline.
const (
	PathAnimatorStart  PropertyPath = "selector.start"
	PathAnimatorEnd    PropertyPath = "selector.end"
	PathAnimatorOffset PropertyPath = "selector.offset"
)

// NewTextAnimator creates an animator selecting the whole text at full
// opacity and scale.
func NewTextAnimator(layer *Layer, index int, name string) *TextAnimator {
	if name == "" {
		name = "animator " + strconv.Itoa(index)
	}
	a := &TextAnimator{Name: name, End: 1, Opacity: 1, ScaleX: 1, ScaleY: 1}
	a.Timeline = NewTimeline(layer.Name+"/"+name, a)
	a.Timeline.Offset = layer.Timeline.Offset
	return a
}

// Bind registers track for path on the animator's timeline.
func (a *TextAnimator) Bind(path PropertyPath, track *KeyframeTrack) {
	if track == nil || track.Len() == 0 {
		return
	}
	set := func(v Value) { a.setProperty(path, v.At(0)) }
	if !track.Animated() {
		set(track.Sample(0))
		return
	}
	a.Timeline.RegisterTrack(path, track, set).apply(a.Timeline.CurrentTime())
}

func (a *TextAnimator) setProperty(path PropertyPath, v float64) {
	switch path {
	case PathAnimatorStart:
		a.Start = v
	case PathAnimatorEnd:
		a.End = v
	case PathAnimatorOffset:
		a.Offset = v
	case PathOpacity:
		a.Opacity = v
	case PathScaleX:
		a.ScaleX = v
	case PathScaleY:
		a.ScaleY = v
	}
}

// PropertyValue implements PropertyReader.
func (a *TextAnimator) PropertyValue(path PropertyPath) (Value, bool) {
	switch path {
	case PathAnimatorStart:
		return Value{a.Start}, true
	case PathAnimatorEnd:
		return Value{a.End}, true
	case PathAnimatorOffset:
		return Value{a.Offset}, true
	case PathOpacity:
		return Value{a.Opacity}, true
	case PathScaleX:
		return Value{a.ScaleX}, true
	case PathScaleY:
		return Value{a.ScaleY}, true
	}
	return nil, false
}

// Selects reports whether the glyph at fraction p (0 first, 1 last) of the
// text lies in the animator's range.
func (a *TextAnimator) Selects(p float64) bool {
	lo, hi := a.Start+a.Offset, a.End+a.Offset
	if lo > hi {
		lo, hi = hi, lo
	}
	return p >= lo && p <= hi
}
