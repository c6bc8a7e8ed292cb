package bodymovin

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2/audio"
)

// ErrRateUnsupported is returned when a handle cannot play at the requested rate.
var ErrRateUnsupported = errors.New("bodymovin: playback rate not supported")

// AudioHandle is a MediaHandle over an Ebitengine audio player. Ebitengine
// players only play at normal speed; other rates are recorded and reported
// as ErrRateUnsupported, leaving the remapped position to seeks.
type AudioHandle struct {
	player    *audio.Player
	frameRate float64

	mu   sync.Mutex
	rate float64
}

// NewAudioHandle wraps player. frameRate converts between composition frames
// and the player's position.
func NewAudioHandle(player *audio.Player, frameRate float64) *AudioHandle {
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}
	return &AudioHandle{player: player, frameRate: frameRate, rate: 1}
}

// Play starts or resumes playback.
func (h *AudioHandle) Play(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.player.Play()
	return nil
}

// Stop pauses playback, keeping the position.
func (h *AudioHandle) Stop(ctx context.Context) error {
	h.player.Pause()
	return nil
}

// SeekToFrame moves the play position to frame.
func (h *AudioHandle) SeekToFrame(ctx context.Context, frame float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pos := time.Duration(max(frame, 0) / h.frameRate * float64(time.Second))
	return h.player.SetPosition(pos)
}

// SetPlaybackRate records rate. Rates other than 1 are not supported.
func (h *AudioHandle) SetPlaybackRate(ctx context.Context, rate float64) error {
	h.mu.Lock()
	h.rate = rate
	h.mu.Unlock()
	if rate != 1 {
		return ErrRateUnsupported
	}
	return nil
}

// CurrentFrame returns the play position in composition frames.
func (h *AudioHandle) CurrentFrame() float64 {
	return h.player.Position().Seconds() * h.frameRate
}

// IsLoaded reports true: Ebitengine players are ready once created.
func (h *AudioHandle) IsLoaded() bool { return h.player != nil }

// IsPlaying reports whether the player is playing.
func (h *AudioHandle) IsPlaying() bool { return h.player.IsPlaying() }

// PlaybackRate returns the last requested rate.
func (h *AudioHandle) PlaybackRate() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rate
}

// Close releases the player.
func (h *AudioHandle) Close() error {
	return h.player.Close()
}
