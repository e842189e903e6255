package assets

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/normanking/avatarsync/internal/bus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	events []bus.Event
}

func capture(events *bus.EventBus) *captured {
	c := &captured{}
	for _, et := range []bus.EventType{
		bus.EventTypeModelReady,
		bus.EventTypeModelFailed,
		bus.EventTypeCuesLoaded,
		bus.EventTypeCuesFailed,
	} {
		events.Subscribe(et, func(e bus.Event) { c.events = append(c.events, e) })
	}
	return c
}

func (c *captured) find(t bus.EventType) (bus.Event, bool) {
	for _, e := range c.events {
		if e.Type == t {
			return e, true
		}
	}
	return bus.Event{}, false
}

func TestLoaderLoadAll(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "avatar.gltf", headGLTF)
	writeFile(t, dir, "Talking.gltf", headGLTF)
	writeFile(t, dir, "audio.json", rhubarbJSON)

	events := bus.NewEventBus()
	got := capture(events)

	err := NewLoader(events, testLogger).LoadAll(context.Background(), Sources{
		BaseDir:    dir,
		Model:      "avatar.gltf",
		Animations: []ClipSource{{Name: "Talking", File: "Talking.gltf"}},
		Cues:       "audio.json",
	})
	require.NoError(t, err)

	// Nothing reaches subscribers until the frame goroutine dispatches.
	assert.Empty(t, got.events)
	assert.Equal(t, 2, events.Dispatch())

	ready, ok := got.find(bus.EventTypeModelReady)
	require.True(t, ok)
	model, ok := ready.Data["model"].(avatar3d.Model)
	require.True(t, ok)
	_, ok = model.FindMesh(avatar3d.DefaultHeadMeshName)
	assert.True(t, ok)

	clips, ok := ready.Data["clips"].([]*avatar3d.AnimationClip)
	require.True(t, ok)
	require.Len(t, clips, 2)
	assert.Equal(t, "Armature|Idle", clips[0].Name)
	assert.Equal(t, "Talking", clips[1].Name)

	loaded, ok := got.find(bus.EventTypeCuesLoaded)
	require.True(t, ok)
	assert.Len(t, loaded.Data["cues"], 5)
}

func TestLoaderModelMissing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "audio.json", rhubarbJSON)

	events := bus.NewEventBus()
	got := capture(events)

	err := NewLoader(events, testLogger).LoadAll(context.Background(), Sources{
		BaseDir: dir,
		Model:   "avatar.glb",
		Cues:    "audio.json",
	})
	assert.ErrorIs(t, err, avatar3d.ErrAssetNotFound)

	events.Dispatch()
	_, ok := got.find(bus.EventTypeModelReady)
	assert.False(t, ok)
	failed, ok := got.find(bus.EventTypeModelFailed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Data["error"].(error), avatar3d.ErrAssetNotFound)

	_, ok = got.find(bus.EventTypeCuesLoaded)
	assert.True(t, ok)
}

func TestLoaderDrivesAvatar(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "avatar.gltf", headGLTF)
	writeFile(t, dir, "audio.json", rhubarbJSON)

	events := bus.NewEventBus()
	loop := avatar3d.NewFrameLoop(events, nil, testLogger, nil)
	opts := avatar3d.DefaultOptions()
	opts.DefaultClip = "Armature|Idle"
	avatar := avatar3d.NewAvatar(context.Background(), opts, events, loop, nil, testLogger, nil)
	loop.Bind(avatar, nil)

	require.NoError(t, NewLoader(events, testLogger).LoadAll(context.Background(), Sources{
		BaseDir: dir,
		Model:   "avatar.gltf",
		Cues:    "audio.json",
	}))
	loop.Step()

	assert.True(t, avatar.Registry().Built())
	assert.Len(t, avatar.Cues(), 5)
	assert.Equal(t, avatar3d.ClipSteady, avatar.Clips().State())
}

func TestCueWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "audio.json", rhubarbJSON)

	events := bus.NewEventBus()
	var reloaded [][]avatar3d.MouthCue
	events.Subscribe(bus.EventTypeCuesLoaded, func(e bus.Event) {
		reloaded = append(reloaded, e.Data["cues"].([]avatar3d.MouthCue))
	})

	w, err := NewCueWatcher(path, events, testLogger)
	require.NoError(t, err)
	defer w.Close()

	// Unrelated files in the directory are ignored.
	writeFile(t, dir, "notes.txt", "hello")

	next := `{"mouthCues": [{"start": 0, "end": 0.5, "value": "G"}]}`
	require.NoError(t, os.WriteFile(path, []byte(next), 0o644))

	require.Eventually(t, func() bool {
		events.Dispatch()
		return len(reloaded) > 0 && len(reloaded[len(reloaded)-1]) == 1
	}, 2*time.Second, 10*time.Millisecond)

	last := reloaded[len(reloaded)-1]
	assert.Equal(t, avatar3d.VisemeG, last[0].Value)
	assert.Equal(t, filepath.Join(dir, "audio.json"), w.Path())
}
