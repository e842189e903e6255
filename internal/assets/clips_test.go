package assets

import (
	"context"
	"testing"

	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadClipRenamesFirstAnimation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "Idle.gltf", headGLTF)

	clip, err := LoadClip(path, "Idle")
	require.NoError(t, err)
	assert.Equal(t, "Idle", clip.Name)
	assert.Equal(t, 2.5, clip.Duration)
}

func TestLoadClipWithoutAnimation(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bare.gltf", bareHeadGLTF)

	_, err := LoadClip(path, "Idle")
	assert.ErrorIs(t, err, avatar3d.ErrClipNotFound)
}

func TestLoadClipsSkipsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "Idle.gltf", headGLTF)
	writeFile(t, dir, "Talking.gltf", headGLTF)
	writeFile(t, dir, "Bare.gltf", bareHeadGLTF)

	clips := LoadClips(context.Background(), dir, []ClipSource{
		{Name: "Idle", File: "Idle.gltf"},
		{Name: "Wave", File: "Wave.gltf"},
		{Name: "Bare", File: "Bare.gltf"},
		{Name: "Talking", File: "Talking.gltf"},
	}, testLogger)

	require.Len(t, clips, 2)
	assert.Equal(t, "Idle", clips[0].Name)
	assert.Equal(t, "Talking", clips[1].Name)
}

func TestLoadClipsEmpty(t *testing.T) {
	assert.Empty(t, LoadClips(context.Background(), "", nil, testLogger))
}
