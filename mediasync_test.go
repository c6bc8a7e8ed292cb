package bodymovin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeMedia is a MediaHandle that records every operation.
type fakeMedia struct {
	mu      sync.Mutex
	ops     []string
	playing bool
	frame   float64
	rate    float64
	failOp  string
}

func newFakeMedia() *fakeMedia { return &fakeMedia{rate: 1} }

func (f *fakeMedia) record(op string) error {
	f.ops = append(f.ops, op)
	if f.failOp != "" && op == f.failOp {
		return errors.New("device lost")
	}
	return nil
}

func (f *fakeMedia) Play(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = true
	return f.record("play")
}

func (f *fakeMedia) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
	return f.record("stop")
}

func (f *fakeMedia) SeekToFrame(ctx context.Context, frame float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = frame
	return f.record(fmt.Sprintf("seek %g", frame))
}

func (f *fakeMedia) SetPlaybackRate(ctx context.Context, rate float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rate = rate
	return f.record(fmt.Sprintf("rate %g", rate))
}

func (f *fakeMedia) CurrentFrame() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

func (f *fakeMedia) IsLoaded() bool { return true }

func (f *fakeMedia) IsPlaying() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playing
}

func (f *fakeMedia) PlaybackRate() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rate
}

func (f *fakeMedia) takeOps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.ops
	f.ops = nil
	return out
}

func waitMedia(t *testing.T, m *MediaSync) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Wait(ctx)
}

func equalOps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMediaSyncSeekBeforePlay(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{InitialFrameOffset: 12})

	_ = tl.SetCurrentTime(context.Background(), 3)
	if err := waitMedia(t, m); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got, want := media.takeOps(), []string{"seek 15", "play"}; !equalOps(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if s := m.State(); !s.IsPlaying || s.LastSeekTarget != 15 {
		t.Errorf("State = %+v, want playing with seek target 15", s)
	}

	// In sync and playing: no further operations.
	media.mu.Lock()
	media.frame = 16
	media.mu.Unlock()
	_ = tl.SetCurrentTime(context.Background(), 4)
	_ = waitMedia(t, m)
	if got := media.takeOps(); len(got) != 0 {
		t.Errorf("ops while in sync = %v, want none", got)
	}
}

func TestMediaSyncSeeksOnDrift(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{SeekTolerance: 2})
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 0)
	_ = waitMedia(t, m)
	media.takeOps()

	_ = tl.SetCurrentTime(ctx, 10) // media still reports frame 0
	_ = waitMedia(t, m)
	if got, want := media.takeOps(), []string{"seek 10"}; !equalOps(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestMediaSyncStopOnLeave(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	tl.SetRange(0, 10)
	m := NewMediaSync(tl, media, MediaSyncOptions{})
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 0)
	_ = waitMedia(t, m)
	media.takeOps()

	_ = tl.SetCurrentTime(ctx, 10) // beforeStop and complete both fire
	_ = waitMedia(t, m)
	if got, want := media.takeOps(), []string{"stop"}; !equalOps(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
	if m.State().IsPlaying {
		t.Error("IsPlaying should be false after leaving the range")
	}
}

func TestMediaSyncStopSupersedesPlay(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{})
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 0)
	_ = tl.Pause(ctx)
	_ = waitMedia(t, m)

	ops := media.takeOps()
	if len(ops) == 0 || ops[len(ops)-1] != "stop" {
		t.Errorf("ops = %v, want stop last", ops)
	}
	if media.IsPlaying() {
		t.Error("media should not be playing")
	}
}

func TestMediaSyncTimeRemapRate(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	// Two seconds of media over 30 frames: double speed at 30 fps.
	tl.RegisterTrack(PathTimeRemap, NewTrack([]Keyframe{
		{Time: 0, Value: Value{0}},
		{Time: 30, Value: Value{2}},
	}, false, nil), nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{FrameRate: 30})
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 0)
	_ = waitMedia(t, m)
	if got, want := media.takeOps(), []string{"rate 2", "seek 0", "play"}; !equalOps(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}

	// Same rate next frame: suppressed.
	media.mu.Lock()
	media.frame = 2
	media.mu.Unlock()
	_ = tl.SetCurrentTime(ctx, 1)
	_ = waitMedia(t, m)
	if got := media.takeOps(); len(got) != 0 {
		t.Errorf("ops = %v, want none", got)
	}
}

func TestMediaSyncTimeRemapKeepsInitialOffset(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	tl.RegisterTrack(PathTimeRemap, NewTrack([]Keyframe{
		{Time: 0, Value: Value{1}},
		{Time: 30, Value: Value{3}},
	}, false, nil), nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{FrameRate: 30, InitialFrameOffset: 12})

	// Remapped second 1 is media frame 30, shifted by the offset.
	_ = tl.SetCurrentTime(context.Background(), 0)
	_ = waitMedia(t, m)
	if got, want := media.takeOps(), []string{"rate 2", "seek 42", "play"}; !equalOps(got, want) {
		t.Errorf("ops = %v, want %v", got, want)
	}
}

func TestMediaSyncZeroDerivativeStops(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	// Real time for one second, then frozen on the last media frame.
	tl.RegisterTrack(PathTimeRemap, NewTrack([]Keyframe{
		{Time: 0, Value: Value{0}},
		{Time: 30, Value: Value{1}},
		{Time: 60, Value: Value{1}},
	}, false, nil), nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{FrameRate: 30})
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 0)
	_ = waitMedia(t, m)
	if got, want := media.takeOps(), []string{"seek 0", "play"}; !equalOps(got, want) {
		t.Fatalf("ops = %v, want %v", got, want)
	}

	_ = tl.SetCurrentTime(ctx, 40)
	_ = waitMedia(t, m)
	ops := media.takeOps()
	sawStop := false
	for _, op := range ops {
		switch op {
		case "stop":
			sawStop = true
		case "play":
			t.Errorf("frozen media must not play: %v", ops)
		case "rate 0":
			t.Errorf("frozen media must not get rate 0: %v", ops)
		}
	}
	if !sawStop {
		t.Errorf("ops = %v, want a stop", ops)
	}
	if media.IsPlaying() {
		t.Error("media should be stopped while frozen")
	}

	// Still frozen: nothing more happens.
	_ = tl.SetCurrentTime(ctx, 41)
	_ = waitMedia(t, m)
	for _, op := range media.takeOps() {
		if op == "play" || op == "stop" {
			t.Errorf("unexpected %s while frozen", op)
		}
	}
}

func TestMediaSyncErrorsCollected(t *testing.T) {
	media := newFakeMedia()
	media.failOp = "play"
	tl := NewTimeline("audio", nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{})

	_ = tl.SetCurrentTime(context.Background(), 0)
	err := waitMedia(t, m)
	var me *MediaError
	if !errors.As(err, &me) || me.Op != "play" {
		t.Fatalf("err = %v, want MediaError for play", err)
	}
	if err := waitMedia(t, m); err != nil {
		t.Errorf("second Wait = %v, want nil", err)
	}
}

func TestMediaSyncDetach(t *testing.T) {
	media := newFakeMedia()
	tl := NewTimeline("audio", nil)
	m := NewMediaSync(tl, media, MediaSyncOptions{})
	ctx := context.Background()

	_ = tl.SetCurrentTime(ctx, 0)
	if err := m.Detach(ctx); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	ops := media.takeOps()
	if len(ops) == 0 || ops[len(ops)-1] != "stop" {
		t.Errorf("ops = %v, want stop last", ops)
	}
	for name := range hookCount {
		if tl.HookCount(name) != 0 {
			t.Errorf("%s hooks = %d, want 0", name, tl.HookCount(name))
		}
	}

	_ = tl.SetCurrentTime(ctx, 50)
	if err := m.Detach(ctx); err != nil {
		t.Errorf("second Detach = %v, want nil", err)
	}
	if got := media.takeOps(); len(got) != 0 {
		t.Errorf("ops after detach = %v, want none", got)
	}
}
