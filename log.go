package bodymovin

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// NewLogger returns a text logger on w at the configured level. A nil w
// logs to stderr.
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.Level()})).
		With("lib", "bodymovin")
}

// frameStats holds per-frame timing. Only populated when Config.Debug is true.
type frameStats struct {
	frame       float64
	advanceTime time.Duration
	layers      int
	tweens      int
	effects     int
}

// debugLog reports the stats of one SetCurrentTime call.
func (c *Composition) debugLog(stats frameStats) {
	if !c.cfg.Debug {
		return
	}
	c.logger.Debug("frame",
		"frame", stats.frame,
		"advance", stats.advanceTime,
		"layers", stats.layers,
		"tweens", stats.tweens,
		"effects", stats.effects)
}

// debugCheckParentDepth warns when a layer's parent chain is deeper than
// the threshold.
const debugMaxParentDepth = 32

func (c *Composition) debugCheckParentDepth(l *Layer) {
	depth := 0
	for p := l; p != nil; p = p.Parent() {
		depth++
	}
	if depth > debugMaxParentDepth {
		c.logger.Warn("parent chain too deep", "layer", l.Name, "depth", depth, "threshold", debugMaxParentDepth)
	}
}

// countTweens counts the tweens of tl and its descendants.
func countTweens(tl *Timeline) int {
	n := len(tl.Tweens())
	for _, c := range tl.Children() {
		n += countTweens(c)
	}
	return n
}
