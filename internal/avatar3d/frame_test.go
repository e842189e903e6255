package avatar3d

import (
	"context"
	"testing"
	"time"

	"github.com/normanking/avatarsync/internal/bus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTime struct {
	t time.Time
}

func (f *fakeTime) now() time.Time          { return f.t }
func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

type recordingRenderer struct {
	frames []Frame
	panics bool
}

func (r *recordingRenderer) RenderFrame(frame Frame) {
	if r.panics {
		panic("draw failed")
	}
	r.frames = append(r.frames, frame)
}

func TestFrameLoopTimeStep(t *testing.T) {
	clock := &fakeTime{t: time.Unix(0, 0)}
	loop := NewFrameLoop(bus.NewEventBus(), clock.now, testLogger, nil)

	assert.Zero(t, loop.Step())

	clock.advance(16 * time.Millisecond)
	assert.InDelta(t, 0.016, loop.Step(), 1e-9)

	clock.advance(5 * time.Second)
	assert.Equal(t, MaxFrameDelta, loop.Step())

	clock.advance(-time.Second)
	assert.Zero(t, loop.Step())

	assert.Equal(t, uint64(4), loop.Frames())
}

func TestFrameLoopRunsCallbacksOnce(t *testing.T) {
	loop := NewFrameLoop(bus.NewEventBus(), nil, testLogger, nil)

	var calls, nested int
	loop.RequestFrame(func() {
		calls++
		loop.RequestFrame(func() { nested++ })
	})
	assert.Equal(t, 1, loop.Pending())

	loop.Step()
	assert.Equal(t, 1, calls)
	assert.Zero(t, nested)
	assert.Equal(t, 1, loop.Pending())

	loop.Step()
	loop.Step()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, nested)
}

func TestFrameLoopDispatchesBeforeCallbacks(t *testing.T) {
	events := bus.NewEventBus()
	loop := NewFrameLoop(events, nil, testLogger, nil)

	var order []string
	events.Subscribe(bus.EventTypeClipChanged, func(bus.Event) { order = append(order, "event") })
	loop.RequestFrame(func() { order = append(order, "callback") })
	events.Publish(bus.Event{Type: bus.EventTypeClipChanged})

	loop.Step()
	assert.Equal(t, []string{"event", "callback"}, order)
}

func TestFrameLoopRecoversFromPanics(t *testing.T) {
	events := bus.NewEventBus()
	m := newTestMetrics()
	loop := NewFrameLoop(events, nil, testLogger, m)
	avatar := NewAvatar(context.Background(), DefaultOptions(), events, loop, nil, testLogger, m)
	renderer := &recordingRenderer{panics: true}
	loop.Bind(avatar, renderer)

	var after bool
	loop.RequestFrame(func() { panic("callback failed") })
	loop.RequestFrame(func() { after = true })

	assert.NotPanics(t, func() { loop.Step() })
	assert.True(t, after)
	assert.Equal(t, uint64(1), loop.Frames())
	assert.Equal(t, 1, testutil.CollectAndCount(m.FrameDuration))

	renderer.panics = false
	loop.Step()
	require.Len(t, renderer.frames, 1)
	assert.Equal(t, avatar.ModelMatrix(), renderer.frames[0].Model)
}

func TestFrameLoopRunStops(t *testing.T) {
	loop := NewFrameLoop(bus.NewEventBus(), nil, testLogger, nil)

	n := 0
	loop.Run(context.Background(), func() bool {
		n++
		return n > 3
	})
	assert.Equal(t, uint64(3), loop.Frames())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.Run(ctx, nil)
	assert.Equal(t, uint64(3), loop.Frames())
}
