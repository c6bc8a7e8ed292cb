package bodymovin

import (
	"context"
	"errors"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Player drives a Composition from a game loop. Call Update once per tick
// (or Step with an explicit delta); the player converts elapsed seconds into
// frames and advances the composition.
//
// There is no global clock: the host calls Update itself.
type Player struct {
	comp  *Composition
	frame float64

	// Speed multiplies elapsed time. Zero is treated as 1.
	Speed float64
	// Loop restarts at the in point after the out point is reached.
	Loop bool

	playing bool
	scrub   *gween.Tween
}

// NewPlayer creates a stopped player positioned at the composition's in point.
func NewPlayer(c *Composition) *Player {
	in, _ := c.Range()
	return &Player{comp: c, frame: in, Speed: 1, Loop: c.cfg.Loop}
}

// Composition returns the driven composition.
func (p *Player) Composition() *Composition { return p.comp }

// Frame returns the playhead position in frames.
func (p *Player) Frame() float64 { return p.frame }

// IsPlaying reports whether the playhead advances on Update.
func (p *Player) IsPlaying() bool { return p.playing }

// IsScrubbing reports whether a ScrubTo is in progress.
func (p *Player) IsScrubbing() bool { return p.scrub != nil }

// Play starts advancing the playhead from its current position.
func (p *Player) Play() { p.playing = true }

// Stop halts the playhead and pauses the composition's timelines.
func (p *Player) Stop(ctx context.Context) error {
	p.playing = false
	p.scrub = nil
	return p.comp.Pause(ctx)
}

// Seek moves the playhead to frame and renders it.
func (p *Player) Seek(ctx context.Context, frame float64) error {
	p.scrub = nil
	p.frame = frame
	return p.comp.SetCurrentTime(ctx, frame)
}

// ScrubTo eases the playhead from its current position to frame over
// duration seconds. Playback resumes from frame afterwards if it was playing.
func (p *Player) ScrubTo(frame float64, duration float32, fn ease.TweenFunc) {
	if fn == nil {
		fn = ease.Linear
	}
	p.scrub = gween.New(float32(p.frame), float32(frame), duration, fn)
}

// Update advances by one tick of the Ebitengine game loop.
func (p *Player) Update() error {
	return p.Step(context.Background(), 1.0/float64(ebiten.TPS()))
}

// Step advances the playhead by dt seconds and renders the new frame.
func (p *Player) Step(ctx context.Context, dt float64) error {
	if p.comp.IsDisposed() {
		return ErrDisposed
	}
	if p.scrub != nil {
		v, finished := p.scrub.Update(float32(dt))
		p.frame = float64(v)
		if finished {
			p.scrub = nil
		}
		return p.comp.SetCurrentTime(ctx, p.frame)
	}
	if !p.playing {
		return nil
	}

	speed := p.Speed
	if speed == 0 {
		speed = 1
	}
	next := p.frame + dt*p.comp.FrameRate*speed
	in, out := p.comp.Range()
	if math.IsInf(out, 1) || next < out {
		p.frame = next
		return p.comp.SetCurrentTime(ctx, p.frame)
	}

	// Cross the out point so complete fires, then wrap or stop.
	err := p.comp.SetCurrentTime(ctx, out)
	if !p.Loop || out <= in {
		p.playing = false
		p.frame = out
		return err
	}
	p.frame = in + math.Mod(next-in, out-in)
	return errors.Join(err, p.comp.SetCurrentTime(ctx, p.frame))
}
