package avatar3d

import (
	"context"
	"fmt"
	"time"

	"github.com/normanking/avatarsync/internal/bus"
	"github.com/normanking/avatarsync/internal/metrics"
	"github.com/rs/zerolog"
)

// MaxFrameDelta caps the time step after a stall (window drag, breakpoint).
const MaxFrameDelta = 0.1

// Renderer draws one frame. Implementations pace the loop, typically by
// blocking on a vsync'd buffer swap.
type Renderer interface {
	RenderFrame(frame Frame)
}

// FrameLoop is the per-refresh driver. It is the only goroutine that touches
// avatar state.
type FrameLoop struct {
	events   *bus.EventBus
	now      func() time.Time
	last     time.Time
	queued   []func()
	avatar   *Avatar
	renderer Renderer
	frames   uint64

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewFrameLoop(events *bus.EventBus, now func() time.Time, logger zerolog.Logger, m *metrics.Metrics) *FrameLoop {
	if now == nil {
		now = time.Now
	}
	return &FrameLoop{
		events:  events,
		now:     now,
		logger:  logger.With().Str("component", "frame").Logger(),
		metrics: m,
	}
}

// Bind attaches the avatar and renderer driven by this loop.
func (f *FrameLoop) Bind(avatar *Avatar, renderer Renderer) {
	f.avatar = avatar
	f.renderer = renderer
}

// RequestFrame queues fn to run once during the next Step.
func (f *FrameLoop) RequestFrame(fn func()) {
	f.queued = append(f.queued, fn)
}

// Step runs one frame and returns the time step it applied.
func (f *FrameLoop) Step() float64 {
	now := f.now()
	var dt float64
	if !f.last.IsZero() {
		dt = now.Sub(f.last).Seconds()
	}
	f.last = now
	if dt < 0 {
		dt = 0
	}
	if dt > MaxFrameDelta {
		dt = MaxFrameDelta
	}

	f.safely("events", func() { f.events.Dispatch() })

	callbacks := f.queued
	f.queued = nil
	for _, fn := range callbacks {
		f.safely("callback", fn)
	}

	if f.avatar != nil {
		f.safely("update", func() { f.avatar.Update(dt) })
		if f.renderer != nil {
			frame := f.avatar.Frame()
			f.safely("render", func() { f.renderer.RenderFrame(frame) })
		}
	}

	f.frames++
	f.metrics.ObserveFrame(f.now().Sub(now).Seconds())
	return dt
}

// Run steps until ctx is cancelled or shouldClose reports true.
func (f *FrameLoop) Run(ctx context.Context, shouldClose func() bool) {
	f.logger.Info().Msg("Frame loop started")
	for {
		select {
		case <-ctx.Done():
			f.logger.Info().Uint64("frames", f.frames).Msg("Frame loop stopped")
			return
		default:
		}
		if shouldClose != nil && shouldClose() {
			f.logger.Info().Uint64("frames", f.frames).Msg("Frame loop ended")
			return
		}
		f.Step()
	}
}

func (f *FrameLoop) Frames() uint64 {
	return f.frames
}

// Pending reports how many callbacks are queued for the next frame.
func (f *FrameLoop) Pending() int {
	return len(f.queued)
}

func (f *FrameLoop) safely(stage string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error().
				Err(fmt.Errorf("panic: %v", r)).
				Str("stage", stage).
				Uint64("frame", f.frames).
				Msg("Frame stage failed")
		}
	}()
	fn()
}
