package bodymovin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// maxAssetLoads bounds concurrent AssetLoader calls during LoadComposition.
const maxAssetLoads = 4

// LoadOptions configure LoadComposition.
type LoadOptions struct {
	Config Config
	// Assets loads image and audio resources. Nil skips asset loading.
	Assets AssetLoader
	// Fonts loads text layer fonts. Nil leaves text layers without fonts.
	Fonts  FontLoader
	Logger *slog.Logger
}

// ErrInvalidManifest is wrapped by LoadComposition for unusable input.
var ErrInvalidManifest = errors.New("bodymovin: invalid manifest")

// LoadComposition builds a composition from Bodymovin JSON. Layers are
// created, parented, given their transform, text and time remap tracks,
// and finally their effects. Times are frames.
//
// Asset and font failures do not abort loading: the composition is returned
// together with the joined *LoadError values, and the affected layers work
// without the resource.
func LoadComposition(ctx context.Context, data []byte, opts LoadOptions) (*Composition, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed JSON", ErrInvalidManifest)
	}
	root := gjson.ParseBytes(data)
	layers := root.Get("layers")
	if !layers.IsArray() {
		return nil, fmt.Errorf("%w: no layers array", ErrInvalidManifest)
	}

	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = NewLogger(nil, cfg)
	}
	c := NewComposition(root.Get("nm").String(), cfg, logger)
	c.Width = root.Get("w").Float()
	c.Height = root.Get("h").Float()
	if fr := root.Get("fr").Float(); fr > 0 && cfg.FrameRate <= 0 {
		c.FrameRate = fr
	}
	if op := root.Get("op"); op.Exists() {
		c.SetRange(root.Get("ip").Float(), op.Float())
	}

	assets := parseAssets(root.Get("assets"))
	ld := &loader{c: c, opts: opts, assets: assets}

	var parents, linked []layerLink
	for i, lr := range layers.Array() {
		l := ld.layer(i, lr)
		if l == nil {
			continue
		}
		if p := lr.Get("parent"); p.Exists() {
			parents = append(parents, layerLink{l, int(p.Int())})
		}
		lp := lr.Get("lp")
		switch {
		case lp.IsArray():
			for _, x := range lp.Array() {
				linked = append(linked, layerLink{l, int(x.Int())})
			}
		case lp.Exists():
			linked = append(linked, layerLink{l, int(lp.Int())})
		}
	}
	if err := ld.loadAssets(ctx); err != nil {
		return nil, err
	}

	for _, link := range parents {
		p, ok := c.Layer(link.target)
		if !ok || p == link.layer {
			c.logger.Warn("parent layer not found", "layer", link.layer.Name, "parent", link.target)
			continue
		}
		c.SetLayerParent(link.layer, p)
	}
	for _, link := range linked {
		p, ok := c.Layer(link.target)
		if !ok {
			c.logger.Warn("linked parent layer not found", "layer", link.layer.Name, "linked", link.target)
			continue
		}
		link.layer.AddLinkedParent(p)
	}

	c.ApplyEffects()
	ld.errs = append(ld.errs, c.CorrectTextResolution(ctx))
	return c, errors.Join(ld.errs...)
}

type layerLink struct {
	layer  *Layer
	target int
}

type loader struct {
	c       *Composition
	opts    LoadOptions
	assets  map[string]AssetInfo
	pending []assetJob
	errs    []error
}

type assetJob struct {
	layer *Layer
	ref   string
	asset Asset
	err   error
}

// layer builds one layer. Layers without a usable index get their array
// position.
func (ld *loader) layer(pos int, lr gjson.Result) *Layer {
	c := ld.c
	index := pos
	if ind := lr.Get("ind"); ind.Exists() {
		index = int(ind.Int())
	}
	if _, dup := c.Layer(index); dup {
		c.logger.Warn("duplicate layer index skipped", "index", index, "name", lr.Get("nm").String())
		return nil
	}

	typ := LayerType(lr.Get("ty").Int())
	name := lr.Get("nm").String()
	var node *Node
	switch typ {
	case LayerText:
		node = NewText(name, "", 0)
	case LayerNull, LayerPrecomp, LayerAudio:
		node = NewContainer(name)
	default:
		node = NewSprite(name)
	}
	l := NewLayer(index, name, typ, node)
	l.Timeline.Offset = lr.Get("st").Float()
	if op := lr.Get("op"); op.Exists() {
		l.Timeline.SetRange(lr.Get("ip").Float()-l.Timeline.Offset, op.Float()-l.Timeline.Offset)
	}
	c.AddLayer(l)

	l.BindTransform(transformTracks(lr.Get("ks")))
	if tm := lr.Get("tm"); tm.Exists() {
		l.SetTimeRemap(NormalizeProperty(tm).Track(false, nil))
	}
	for i, er := range lr.Get("ef").Array() {
		l.Effects = append(l.Effects, parseEffect(i, er))
	}
	if typ == LayerText {
		ld.text(l, lr.Get("t"))
	}
	if ref := lr.Get("refId").String(); ref != "" && ld.opts.Assets != nil {
		ld.pending = append(ld.pending, assetJob{layer: l, ref: ref})
	}
	return l
}

func (ld *loader) text(l *Layer, tr gjson.Result) {
	var docs []TextDocumentKeyframe
	for _, kr := range tr.Get("d.k").Array() {
		s := kr.Get("s")
		docs = append(docs, TextDocumentKeyframe{
			Time: kr.Get("t").Float(),
			Document: TextDocument{
				Text:       s.Get("t").String(),
				FontFamily: s.Get("f").String(),
				FontSize:   s.Get("s").Float(),
				Fill:       colorFromValue(resultValue(s.Get("fc"))),
			},
		})
	}
	l.SetResizingStrategy(parseResizingStrategy(tr.Get("rs").String()))
	NewTextLayer(l, docs, TextLayerOptions{
		Fonts:         ld.opts.Fonts,
		FontSizes:     ld.c.cfg.FontSizes,
		RendererScale: ld.c.rendererScale,
	})

	for i, ar := range tr.Get("a").Array() {
		a := NewTextAnimator(l, i, ar.Get("nm").String())
		sel := ar.Get("s")
		a.Bind(PathAnimatorStart, propertyTrack(sel.Get("s"), fromPercent))
		a.Bind(PathAnimatorEnd, propertyTrack(sel.Get("e"), fromPercent))
		a.Bind(PathAnimatorOffset, propertyTrack(sel.Get("o"), fromPercent))
		props := ar.Get("a")
		a.Bind(PathOpacity, propertyTrack(props.Get("o"), fromPercent))
		a.Bind(PathScaleX, propertyTrack(props.Get("s"), percentComponent(0)))
		a.Bind(PathScaleY, propertyTrack(props.Get("s"), percentComponent(1)))
		l.AddAnimator(a)
	}
}

// loadAssets runs the queued asset requests concurrently, then attaches the
// results in layer order. Only context cancellation aborts loading.
func (ld *loader) loadAssets(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxAssetLoads)
	for i := range ld.pending {
		job := &ld.pending[i]
		info, ok := ld.assets[job.ref]
		if !ok {
			job.err = &LoadError{Asset: job.ref, Err: fmt.Errorf("%w: unknown asset", ErrInvalidManifest)}
			continue
		}
		req := AssetRequest{LayerIndex: job.layer.Index, LayerName: job.layer.Name, LayerType: job.layer.Type, Info: info}
		g.Go(func() error {
			job.asset, job.err = ld.opts.Assets.Load(gctx, req)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, job := range ld.pending {
		ld.attach(job)
	}
	return nil
}

func (ld *loader) attach(job assetJob) {
	l, err := job.layer, job.err
	if err != nil {
		var le *LoadError
		if !errors.As(err, &le) {
			err = &LoadError{Asset: job.ref, Err: err}
		}
		ld.c.logger.Warn("asset load failed", "layer", l.Name, "asset", job.ref, "error", err)
		ld.errs = append(ld.errs, err)
		return
	}
	l.Asset = job.asset
	if h, ok := job.asset.Resource.(MediaHandle); ok {
		l.Media = NewMediaSync(l.Timeline, h, ld.c.cfg.mediaOptions(ld.c.FrameRate, ld.c.logger))
	}
}

// parseAssets indexes the manifest's asset list by id.
func parseAssets(ar gjson.Result) map[string]AssetInfo {
	out := make(map[string]AssetInfo)
	for _, a := range ar.Array() {
		id := a.Get("id").String()
		if id == "" {
			continue
		}
		out[id] = AssetInfo{
			ID:       id,
			Dir:      a.Get("u").String(),
			File:     a.Get("p").String(),
			Width:    a.Get("w").Float(),
			Height:   a.Get("h").Float(),
			Embedded: a.Get("e").Int() == 1,
		}
	}
	return out
}

// --- Properties ---

// NormalizeProperty converts an exported {a, k} property into a RawValue.
// Color arrays wrapped in an extra array are flattened.
func NormalizeProperty(r gjson.Result) RawValue {
	k := r.Get("k")
	if r.Get("a").Int() != 1 || !k.IsArray() || !k.Get("0.t").Exists() {
		return RawValue{Static: resultValue(k)}
	}
	kfs := k.Array()
	rv := RawValue{Animated: true, Keyframes: make([]RawKeyframe, 0, len(kfs))}
	for _, kr := range kfs {
		kf := RawKeyframe{
			Time: kr.Get("t").Float(),
			Hold: kr.Get("h").Int() == 1,
		}
		if s := kr.Get("s"); s.Exists() {
			kf.Start = resultValue(s)
		}
		if e := kr.Get("e"); e.Exists() {
			kf.End = resultValue(e)
		}
		kf.Out = bezierHandle(kr.Get("o"))
		kf.In = bezierHandle(kr.Get("i"))
		rv.Keyframes = append(rv.Keyframes, kf)
	}
	return rv
}

// resultValue decodes a number or (possibly nested) number array.
func resultValue(r gjson.Result) Value {
	switch {
	case !r.Exists():
		return nil
	case r.IsArray():
		v, _ := r.Value().([]any)
		return unwrapValue(v)
	case r.Type == gjson.Number:
		return Value{r.Float()}
	case r.Type == gjson.True:
		return Value{1}
	case r.Type == gjson.False:
		return Value{0}
	default:
		return nil
	}
}

// bezierHandle reads a tangent whose x and y are numbers or per-dimension
// arrays; the first dimension is used.
func bezierHandle(r gjson.Result) *BezierHandle {
	if !r.Exists() {
		return nil
	}
	x, y := r.Get("x"), r.Get("y")
	if !x.Exists() || !y.Exists() {
		return nil
	}
	if x.IsArray() {
		x = x.Get("0")
	}
	if y.IsArray() {
		y = y.Get("0")
	}
	return &BezierHandle{X: x.Float(), Y: y.Float()}
}

func propertyTrack(r gjson.Result, transform func(Value) Value) *KeyframeTrack {
	if !r.Exists() {
		return nil
	}
	return NormalizeProperty(r).Track(false, transform)
}

// transformTracks reads the layer transform ("ks"). Position may be a
// combined point or split into x and y properties.
func transformTracks(ks gjson.Result) map[PropertyPath]*KeyframeTrack {
	tracks := make(map[PropertyPath]*KeyframeTrack)
	set := func(path PropertyPath, r gjson.Result, transform func(Value) Value) {
		if t := propertyTrack(r, transform); t != nil && t.Len() > 0 {
			tracks[path] = t
		}
	}
	if p := ks.Get("p"); p.Get("s").Bool() {
		set(PathPositionX, p.Get("x"), component(0))
		set(PathPositionY, p.Get("y"), component(0))
	} else {
		set(PathPositionX, p, component(0))
		set(PathPositionY, p, component(1))
	}
	set(PathScaleX, ks.Get("s"), percentComponent(0))
	set(PathScaleY, ks.Get("s"), percentComponent(1))
	set(PathRotation, ks.Get("r"), radians)
	set(PathOpacity, ks.Get("o"), fromPercent)
	return tracks
}

// parseEffect normalizes one "ef" entry. The effect's "ix" is its stable
// index when present.
func parseEffect(pos int, er gjson.Result) EffectDescriptor {
	d := EffectDescriptor{
		Index:   pos,
		Type:    EffectType(er.Get("ty").Int()),
		Name:    er.Get("nm").String(),
		Enabled: !er.Get("en").Exists() || er.Get("en").Int() != 0,
	}
	if ix := er.Get("ix"); ix.Exists() {
		d.Index = int(ix.Int())
	}
	for i, pr := range er.Get("ef").Array() {
		name := pr.Get("nm").String()
		if name == "" {
			name = strconv.Itoa(i)
		}
		d.Properties = append(d.Properties, EffectProperty{Name: name, Value: NormalizeProperty(pr.Get("v"))})
	}
	return d
}

// --- Transforms ---

func component(i int) func(Value) Value {
	return func(v Value) Value {
		if i >= len(v) {
			if len(v) == 0 {
				return v
			}
			return Value{v[len(v)-1]}
		}
		return Value{v[i]}
	}
}

func percentComponent(i int) func(Value) Value {
	pick := component(i)
	return func(v Value) Value { return fromPercent(pick(v)) }
}

func radians(v Value) Value {
	if len(v) == 0 {
		return v
	}
	return Value{v[0] * degToRad}
}
