package bodymovin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// MediaHandle is an external audio or video element. Operations may block
// until the element has acted on them; the adapter never calls them from
// the sampling path. Query methods may be called concurrently with an
// operation in flight.
type MediaHandle interface {
	Play(ctx context.Context) error
	Stop(ctx context.Context) error
	SeekToFrame(ctx context.Context, frame float64) error
	SetPlaybackRate(ctx context.Context, rate float64) error

	CurrentFrame() float64
	IsLoaded() bool
	IsPlaying() bool
	PlaybackRate() float64
}

// MediaError reports a failed media handle operation.
type MediaError struct {
	Op  string
	Err error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("bodymovin: media %s: %v", e.Op, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

// MediaSyncState is the adapter's view of the media element.
type MediaSyncState struct {
	// InitialFrameOffset is added to every target frame, remapped or not:
	// the media frame shown at local time 0 or remapped time 0.
	InitialFrameOffset float64
	PlaybackRate       float64
	// IsPlaying is set between beforeStart and beforeStop: the media should
	// play once the frame's properties are applied.
	IsPlaying      bool
	LastSeekTarget float64
}

// MediaSyncOptions tune a MediaSync. Zero values take the defaults.
type MediaSyncOptions struct {
	// FrameRate is the composition frame rate (frames per second).
	FrameRate float64
	// RateEpsilon is the smallest playback rate change that is applied.
	RateEpsilon float64
	// SeekTolerance is the drift, in frames, tolerated before seeking.
	SeekTolerance float64

	// InitialFrameOffset is the media frame at timeline local time 0, or at
	// remapped time 0 when a time remap track is present.
	InitialFrameOffset float64
	Logger             *slog.Logger
}

const (
	defaultFrameRate     = 30
	defaultRateEpsilon   = 0.01
	defaultSeekTolerance = 2
)

type intentKind uint8

const (
	intentNone intentKind = iota
	intentPlay
	intentStop
	intentSeek
	intentRate
)

func (k intentKind) String() string {
	switch k {
	case intentPlay:
		return "play"
	case intentStop:
		return "stop"
	case intentSeek:
		return "seek"
	case intentRate:
		return "rate"
	default:
		return "none"
	}
}

// MediaSync keeps a MediaHandle aligned with a layer timeline. It drives the
// handle from the timeline's hooks: beforeStart arms playback, beforeStop and
// complete stop it, rendering seeks and adjusts the rate, and
// afterPropertiesRender starts playback once the frame's seek is queued.
//
// Handle operations run in order on a chain of goroutines so they never block
// sampling. Play and stop are intents: only the most recent one is
// authoritative, and an older pending intent is cancelled and skipped.
type MediaSync struct {
	handle MediaHandle
	tl     *Timeline
	opts   MediaSyncOptions
	logger *slog.Logger

	hooks [hookCount]Hook

	mu         sync.Mutex
	state      MediaSyncState
	frozen     bool       // time remap derivative rounded to zero
	needSeek   bool       // position unknown since beforeStart
	lastIntent intentKind // most recent play or stop issued
	intentGen  uint64
	cancel     context.CancelFunc
	tail       chan struct{} // closed when the last queued operation settles
	errs       []error
	base       context.Context
	stopBase   context.CancelFunc
	detached   bool
}

// NewMediaSync attaches an adapter for handle to tl's hooks.
func NewMediaSync(tl *Timeline, handle MediaHandle, opts MediaSyncOptions) *MediaSync {
	if opts.FrameRate <= 0 {
		opts.FrameRate = defaultFrameRate
	}
	if opts.RateEpsilon <= 0 {
		opts.RateEpsilon = defaultRateEpsilon
	}
	if opts.SeekTolerance <= 0 {
		opts.SeekTolerance = defaultSeekTolerance
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base, stop := context.WithCancel(context.Background())
	m := &MediaSync{
		handle:   handle,
		tl:       tl,
		opts:     opts,
		logger:   logger.With("component", "mediasync", "timeline", tl.Name),
		base:     base,
		stopBase: stop,
		state: MediaSyncState{
			InitialFrameOffset: opts.InitialFrameOffset,
			PlaybackRate:       1,
		},
	}
	m.hooks[HookBeforeStart] = HookFunc(m.onBeforeStart)
	m.hooks[HookBeforeStop] = HookFunc(m.onStop)
	m.hooks[HookComplete] = HookFunc(m.onStop)
	m.hooks[HookRendering] = HookFunc(m.onRendering)
	m.hooks[HookAfterPropertiesRender] = HookFunc(m.onAfterPropertiesRender)
	for name, h := range m.hooks {
		if h != nil {
			tl.RegisterHook(HookName(name), h)
		}
	}
	return m
}

// State returns a snapshot of the sync state.
func (m *MediaSync) State() MediaSyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Handle returns the synchronised media handle.
func (m *MediaSync) Handle() MediaHandle { return m.handle }

// --- Hooks ---

func (m *MediaSync) onBeforeStart(ctx context.Context, ev HookEvent) error {
	m.mu.Lock()
	m.state.IsPlaying = true
	m.needSeek = true
	m.mu.Unlock()
	return nil
}

func (m *MediaSync) onStop(ctx context.Context, ev HookEvent) error {
	m.mu.Lock()
	m.state.IsPlaying = false
	m.mu.Unlock()
	m.submitIntent(intentStop)
	return nil
}

// onRendering computes the media frame for the timeline's current time and
// queues a seek when the media has drifted. With a time remap tween, the
// remapped time drives the frame and its derivative drives the rate.
func (m *MediaSync) onRendering(ctx context.Context, ev HookEvent) error {
	if !m.handle.IsLoaded() {
		return nil
	}
	target, rate := m.targetFrame(ev.Time)

	m.mu.Lock()
	m.frozen = rate == 0
	rateChanged := !m.frozen && math.Abs(rate-m.state.PlaybackRate) >= m.opts.RateEpsilon
	if rateChanged {
		m.state.PlaybackRate = rate
	}
	m.mu.Unlock()

	if rate == 0 {
		if m.handle.IsPlaying() || m.lastIntentIs(intentPlay) {
			m.submitIntent(intentStop)
		}
	} else if rateChanged {
		m.submit(intentRate, func(ctx context.Context) error {
			return m.handle.SetPlaybackRate(ctx, rate)
		})
	}

	var seek bool
	if m.handle.IsPlaying() {
		seek = math.Abs(m.handle.CurrentFrame()-target) > m.opts.SeekTolerance
	}
	m.mu.Lock()
	if !seek && !m.handle.IsPlaying() {
		seek = m.needSeek || target != m.state.LastSeekTarget
	}
	if seek {
		m.state.LastSeekTarget = target
		m.needSeek = false
	}
	m.mu.Unlock()
	if seek {
		m.submit(intentSeek, func(ctx context.Context) error {
			return m.handle.SeekToFrame(ctx, target)
		})
	}
	return nil
}

func (m *MediaSync) onAfterPropertiesRender(ctx context.Context, ev HookEvent) error {
	m.mu.Lock()
	play := m.state.IsPlaying && !m.frozen && (m.lastIntent != intentPlay || !m.handle.IsPlaying() && m.idleLocked())
	m.mu.Unlock()
	if play {
		m.submitIntent(intentPlay)
	}
	return nil
}

// targetFrame returns the media frame and playback rate for local time t.
func (m *MediaSync) targetFrame(t float64) (frame, rate float64) {
	remap := m.tl.PropertyTweens(PathTimeRemap)
	if len(remap) == 0 {
		return t + m.state.InitialFrameOffset, 1
	}
	track := remap[len(remap)-1].Track
	now := track.SampleScalar(t, 0)
	next := track.SampleScalar(t+1, now)
	fps := m.opts.FrameRate
	rate = math.Round((next-now)*fps*100) / 100
	return now*fps + m.state.InitialFrameOffset, rate
}

// --- Operation queue ---

func (m *MediaSync) lastIntentIs(k intentKind) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastIntent == k
}

func (m *MediaSync) idleLocked() bool {
	if m.tail == nil {
		return true
	}
	select {
	case <-m.tail:
		return true
	default:
		return false
	}
}

// submitIntent queues a play or stop. It supersedes every earlier intent:
// a pending one is skipped and a running one has its context cancelled.
func (m *MediaSync) submitIntent(kind intentKind) {
	m.mu.Lock()
	if m.detached || kind == m.lastIntent && kind == intentStop {
		m.mu.Unlock()
		return
	}
	m.intentGen++
	gen := m.intentGen
	m.lastIntent = kind
	if m.cancel != nil {
		m.cancel()
	}
	ctx, cancel := context.WithCancel(m.base)
	m.cancel = cancel
	m.mu.Unlock()

	m.enqueue(ctx, kind, func(ctx context.Context) error {
		if m.superseded(gen) {
			return nil
		}
		if kind == intentPlay {
			return m.handle.Play(ctx)
		}
		return m.handle.Stop(ctx)
	})
}

func (m *MediaSync) submit(kind intentKind, op func(ctx context.Context) error) {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	m.enqueue(m.base, kind, op)
}

func (m *MediaSync) superseded(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen != m.intentGen
}

// enqueue runs op after every previously queued operation has settled.
func (m *MediaSync) enqueue(ctx context.Context, kind intentKind, op func(ctx context.Context) error) {
	m.mu.Lock()
	prev := m.tail
	done := make(chan struct{})
	m.tail = done
	m.mu.Unlock()

	go func() {
		defer close(done)
		if prev != nil {
			<-prev
		}
		if ctx.Err() != nil {
			return
		}
		if err := op(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("media operation failed", "op", kind.String(), "error", err)
			m.mu.Lock()
			m.errs = append(m.errs, &MediaError{Op: kind.String(), Err: err})
			m.mu.Unlock()
		}
	}()
}

// Wait blocks until every queued operation has settled and returns the
// failures collected since the previous Wait.
func (m *MediaSync) Wait(ctx context.Context) error {
	m.mu.Lock()
	tail := m.tail
	m.mu.Unlock()
	if tail != nil {
		select {
		case <-tail:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	err := errors.Join(m.errs...)
	m.errs = nil
	return err
}

// Detach removes the adapter's hooks, stops the media and waits for the
// stop to settle.
func (m *MediaSync) Detach(ctx context.Context) error {
	if !m.detachAsync() {
		return nil
	}
	err := m.Wait(ctx)
	m.stopBase()
	return err
}

// detachAsync removes the hooks and queues a final stop. It reports false
// when the adapter was already detached.
func (m *MediaSync) detachAsync() bool {
	m.mu.Lock()
	if m.detached {
		m.mu.Unlock()
		return false
	}
	m.state.IsPlaying = false
	m.lastIntent = intentNone
	m.mu.Unlock()

	for name, h := range m.hooks {
		if h != nil {
			m.tl.RemoveHook(HookName(name), h)
		}
	}
	m.submitIntent(intentStop)

	m.mu.Lock()
	m.detached = true
	m.mu.Unlock()
	return true
}
