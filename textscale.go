package bodymovin

import (
	"math"
	"sort"
)

// ScaleSource is an object whose scale contributes to a text layer's
// on-screen size.
type ScaleSource interface {
	// LayerTimeline returns the timeline holding the object's scale tweens.
	// It may be nil for objects that are never animated.
	LayerTimeline() *Timeline
	// ForEachParent calls fn for each ancestor in the parent chain.
	ForEachParent(fn func(ScaleSource))
	// ForEachLinkedParent calls fn for each direct linked parent.
	ForEachLinkedParent(fn func(ScaleSource))
}

// TextScaleSource is a text layer as seen by ResolveRequiredFontScale.
type TextScaleSource interface {
	ScaleSource
	ResizingStrategy() ResizingStrategy
}

// gatherScaleSources returns src and every object reachable from it through
// parent and linked parent relations, each once, nearest first.
func gatherScaleSources(src ScaleSource) []ScaleSource {
	seen := map[ScaleSource]bool{src: true}
	out := []ScaleSource{src}
	for i := 0; i < len(out); i++ {
		visit := func(s ScaleSource) {
			if s == nil || seen[s] {
				return
			}
			seen[s] = true
			out = append(out, s)
		}
		out[i].ForEachParent(visit)
		out[i].ForEachLinkedParent(visit)
	}
	return out
}

// ResolveRequiredFontScale returns the largest effective font size, in
// screen pixels, the text layer reaches at global time 0 or while any scale
// tween on it or its ancestors is at a boundary keyframe. Font size tweens
// alone add no instants. The result is used to pick the font bitmap
// resolution. It reads timeline state only.
func ResolveRequiredFontScale(layer TextScaleSource) float64 {
	sources := gatherScaleSources(layer)
	textTL := layer.LayerTimeline()
	fontSizeAt := func(t float64) float64 {
		if textTL == nil {
			return 1
		}
		v, ok := textTL.PropertyValueAtGlobalTime(PathTextFontSize, t)
		if !ok || len(v) == 0 {
			return 1
		}
		return v[0]
	}

	best := max(
		scaleProduct(sources, PathScaleX, 0, true),
		scaleProduct(sources, PathScaleY, 0, true),
	) * fontSizeAt(0)

	for _, t := range scaleInstants(sources) {
		fs := math.Abs(fontSizeAt(t))
		best = max(best,
			scaleProduct(sources, PathScaleX, t, false)*fs,
			scaleProduct(sources, PathScaleY, t, false)*fs,
		)
	}

	if layer.ResizingStrategy() == ResizeStepAndBreak {
		best *= stepAndBreakMultiplier
	}
	return best
}

// scaleProduct multiplies the absolute scale on one axis across sources at
// global time t. In baseline mode zero scales count as degenerateScale.
func scaleProduct(sources []ScaleSource, path PropertyPath, t float64, baseline bool) float64 {
	p := 1.0
	for _, s := range sources {
		tl := s.LayerTimeline()
		if tl == nil {
			continue
		}
		v, ok := tl.PropertyValueAtGlobalTime(path, t)
		if !ok || len(v) == 0 {
			continue
		}
		sc := math.Abs(v[0])
		if baseline && sc == 0 {
			sc = degenerateScale
		}
		p *= sc
	}
	return p
}

// scaleInstants returns the global boundary times of every scale tween on
// sources.
func scaleInstants(sources []ScaleSource) []float64 {
	var out []float64
	for _, s := range sources {
		tl := s.LayerTimeline()
		if tl == nil {
			continue
		}
		for _, tw := range tl.Tweens() {
			if tw.Path != PathScaleX && tw.Path != PathScaleY {
				continue
			}
			out = append(out, tw.StartTime()+tl.Offset, tw.EndTime()+tl.Offset)
		}
	}
	sort.Float64s(out)
	return out
}

// SelectFontSize returns the smallest available size >= required, or the
// largest size when none is big enough. With no sizes, required is returned.
func SelectFontSize(sizes []float64, required float64) float64 {
	if len(sizes) == 0 {
		return required
	}
	chosen, largest := math.Inf(1), math.Inf(-1)
	for _, s := range sizes {
		if s >= required && s < chosen {
			chosen = s
		}
		largest = max(largest, s)
	}
	if math.IsInf(chosen, 1) {
		return largest
	}
	return chosen
}
