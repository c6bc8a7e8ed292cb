package bodymovin

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func newTestComposition() *Composition {
	cfg := DefaultConfig()
	return NewComposition("comp", cfg, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func TestCompositionAddLayer(t *testing.T) {
	c := newTestComposition()
	l := NewLayer(1, "a", LayerSolid, NewSprite("a"))
	c.AddLayer(l)

	if got, ok := c.Layer(1); !ok || got != l {
		t.Error("Layer(1) should return the added layer")
	}
	if got, ok := c.LayerByName("a"); !ok || got != l {
		t.Error("LayerByName should find the layer")
	}
	if n, ok := c.LayerNode(1); !ok || n != l.Node {
		t.Error("LayerNode should resolve the layer's node")
	}
	if l.Node.Parent != c.Root() {
		t.Error("layer node should sit under the root")
	}
	if l.Timeline.Parent() != c.Timeline() {
		t.Error("layer timeline should be nested under the root timeline")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic for duplicate index")
		}
	}()
	c.AddLayer(NewLayer(1, "b", LayerSolid, NewSprite("b")))
}

func TestCompositionSetLayerParent(t *testing.T) {
	c := newTestComposition()
	parent := NewLayer(1, "p", LayerNull, NewContainer("p"))
	child := NewLayer(2, "c", LayerSolid, NewSprite("c"))
	c.AddLayer(child)
	c.AddLayer(parent)

	c.SetLayerParent(child, parent)
	if child.Node.Parent != parent.Node || child.Parent() != parent {
		t.Error("child should be parented")
	}
	order := c.layersTopDown()
	if order[0] != parent || order[1] != child {
		t.Error("layersTopDown should put the parent first")
	}

	c.SetLayerParent(child, nil)
	if child.Node.Parent != c.Root() || child.Parent() != nil {
		t.Error("nil parent should move the child back to the root")
	}
}

func TestLayerParentCyclePanics(t *testing.T) {
	a := NewLayer(1, "a", LayerNull, NewContainer("a"))
	b := NewLayer(2, "b", LayerNull, NewContainer("b"))
	b.SetParent(a)
	defer func() {
		if recover() == nil {
			t.Error("expected panic for parent cycle")
		}
	}()
	a.SetParent(b)
}

func TestCompositionRemoveLayer(t *testing.T) {
	c := newTestComposition()
	parent := NewLayer(1, "p", LayerSolid, NewSprite("p"))
	parent.Effects = []EffectDescriptor{effectDesc(0, EffectInvert), effectDesc(1, EffectGaussianBlur)}
	child := NewLayer(2, "c", LayerSolid, NewSprite("c"))
	c.AddLayer(parent)
	c.AddLayer(child)
	c.SetLayerParent(child, parent)
	c.ApplyEffects()

	if c.Registry().Len() != 2 {
		t.Fatalf("registry Len = %d, want 2", c.Registry().Len())
	}
	if !c.RemoveLayer(1) {
		t.Fatal("RemoveLayer should report success")
	}
	if c.Registry().Len() != 0 {
		t.Errorf("registry Len = %d, want 0 after removal", c.Registry().Len())
	}
	if child.Parent() != nil || child.Node.Parent != c.Root() || child.Node.IsDisposed() {
		t.Error("children of a removed layer should move to the root")
	}
	if _, ok := c.LayerNode(1); ok {
		t.Error("removed layer should not resolve")
	}
	if c.RemoveLayer(1) {
		t.Error("second RemoveLayer should report false")
	}
}

func TestCompositionSetMatteAcrossLayers(t *testing.T) {
	c := newTestComposition()
	src := NewLayer(1, "matte", LayerSolid, NewSprite("matte"))
	target := NewLayer(2, "target", LayerSolid, NewSprite("target"))
	target.Effects = []EffectDescriptor{effectDesc(0, EffectSetMatte, prop("Take Matte From Layer", StaticValue(1)))}
	c.AddLayer(src)
	c.AddLayer(target)
	src.BindTransform(map[PropertyPath]*KeyframeTrack{
		PathPositionX: NewTrack([]Keyframe{{Time: 0, Value: Value{0}}, {Time: 10, Value: Value{100}}}, false, nil),
	})
	c.ApplyEffects()

	_ = c.SetCurrentTime(context.Background(), 5)
	mask := target.Node.GetMask()
	if mask == nil {
		t.Fatal("target should be masked")
	}
	if got := mask.Property(PathPositionX); !approx(got, 50) {
		t.Errorf("mask position.x = %v, want 50", got)
	}
}

func TestCompositionDispose(t *testing.T) {
	c := newTestComposition()
	parent := NewLayer(1, "p", LayerSolid, NewSprite("p"))
	child := NewLayer(2, "c", LayerSolid, NewSprite("c"))
	child.Effects = []EffectDescriptor{effectDesc(0, EffectInvert)}
	media := newFakeMedia()
	child.Media = NewMediaSync(child.Timeline, media, MediaSyncOptions{})
	c.AddLayer(parent)
	c.AddLayer(child)
	c.SetLayerParent(child, parent)
	c.ApplyEffects()
	ctx := context.Background()
	_ = c.SetCurrentTime(ctx, 0)

	if err := c.Dispose(ctx); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if c.Registry().Len() != 0 {
		t.Errorf("registry Len = %d, want 0", c.Registry().Len())
	}
	if !parent.IsDisposed() || !child.IsDisposed() {
		t.Error("layers should be disposed")
	}
	ops := media.takeOps()
	if len(ops) == 0 || ops[len(ops)-1] != "stop" {
		t.Errorf("media ops = %v, want stop last", ops)
	}
	if err := c.SetCurrentTime(ctx, 1); err != ErrDisposed {
		t.Errorf("SetCurrentTime after dispose = %v, want ErrDisposed", err)
	}
	if err := c.Dispose(ctx); err != nil {
		t.Errorf("second Dispose = %v, want nil", err)
	}
}

func TestCompositionSetRendererScale(t *testing.T) {
	c := newTestComposition()
	fonts := &fakeFontLoader{}
	l := newTextTestLayer(1, 0)
	NewTextLayer(l, []TextDocumentKeyframe{{Document: TextDocument{Text: "x", FontFamily: "Sans", FontSize: 20}}},
		TextLayerOptions{Fonts: fonts, FontSizes: c.Config().FontSizes})
	c.AddLayer(l)
	ctx := context.Background()

	if err := c.CorrectTextResolution(ctx); err != nil {
		t.Fatalf("CorrectTextResolution: %v", err)
	}
	if l.Text.Resolution() != 24 {
		t.Errorf("Resolution = %v, want 24", l.Text.Resolution())
	}
	if err := c.SetRendererScale(ctx, 3); err != nil {
		t.Fatalf("SetRendererScale: %v", err)
	}
	if c.RendererScale() != 3 || l.Text.Resolution() != 64 {
		t.Errorf("scale %v resolution %v, want 3 and 64", c.RendererScale(), l.Text.Resolution())
	}
}

func TestCompositionDebugLog(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.Debug = true
	cfg.LogLevel = "debug"
	c := NewComposition("dbg", cfg, NewLogger(&buf, cfg))
	c.AddLayer(NewLayer(1, "a", LayerSolid, NewSprite("a")))
	_ = c.SetCurrentTime(context.Background(), 2)

	out := buf.String()
	if !strings.Contains(out, "msg=frame") || !strings.Contains(out, "layers=1") {
		t.Errorf("debug output = %q", out)
	}
}

func TestCompositionDuration(t *testing.T) {
	c := newTestComposition()
	if c.Duration() != 0 {
		t.Errorf("unbounded Duration = %v, want 0", c.Duration())
	}
	c.SetRange(10, 70)
	if c.Duration() != 60 {
		t.Errorf("Duration = %v, want 60", c.Duration())
	}
}
