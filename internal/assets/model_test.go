package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headGLTF = `{
  "asset": {"version": "2.0"},
  "nodes": [
    {"name": "Hips"},
    {"name": "Wolf3D_Head", "mesh": 0},
    {"name": "Wolf3D_Body", "mesh": 1}
  ],
  "meshes": [
    {
      "name": "Wolf3D_Head.001",
      "extras": {"targetNames": ["viseme_PP", "viseme_kk", "viseme_I"]},
      "primitives": [{"attributes": {"POSITION": 0}, "targets": [{"POSITION": 0}, {"POSITION": 0}, {"POSITION": 0}]}]
    },
    {
      "name": "Wolf3D_Body",
      "primitives": [{"attributes": {"POSITION": 0}}]
    }
  ],
  "accessors": [
    {"componentType": 5126, "count": 3, "type": "VEC3"},
    {"componentType": 5126, "count": 2, "type": "SCALAR", "min": [0], "max": [1.25]},
    {"componentType": 5126, "count": 2, "type": "VEC4"},
    {"componentType": 5126, "count": 4, "type": "SCALAR", "min": [0], "max": [2.5]}
  ],
  "animations": [
    {
      "name": "Armature|Idle",
      "samplers": [
        {"input": 1, "output": 2},
        {"input": 3, "output": 2}
      ],
      "channels": [
        {"sampler": 0, "target": {"node": 0, "path": "rotation"}},
        {"sampler": 1, "target": {"node": 1, "path": "translation"}}
      ]
    }
  ]
}`

const bareHeadGLTF = `{
  "asset": {"version": "2.0"},
  "nodes": [{"name": "Wolf3D_Head", "mesh": 0}],
  "meshes": [{"primitives": [{"attributes": {"POSITION": 0}}]}],
  "accessors": [{"componentType": 5126, "count": 3, "type": "VEC3"}]
}`

var testLogger = zerolog.Nop()

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadModelMissingFile(t *testing.T) {
	_, err := LoadModel(filepath.Join(t.TempDir(), "nope.glb"))
	assert.ErrorIs(t, err, avatar3d.ErrAssetNotFound)
}

func TestModelFindMesh(t *testing.T) {
	model, err := LoadModel(writeFile(t, t.TempDir(), "avatar.gltf", headGLTF))
	require.NoError(t, err)

	mesh, ok := model.FindMesh(avatar3d.DefaultHeadMeshName)
	require.True(t, ok)
	assert.Equal(t, avatar3d.DefaultHeadMeshName, mesh.Name())
	assert.Equal(t, 3, mesh.MorphTargetCount())
	assert.Equal(t, map[string]int{"viseme_PP": 0, "viseme_kk": 1, "viseme_I": 2}, mesh.MorphTargetDictionary())

	idx, ok := model.MeshIndex(avatar3d.DefaultHeadMeshName)
	require.True(t, ok)
	assert.Equal(t, 0, idx)

	_, ok = model.FindMesh("Wolf3D_Teeth")
	assert.False(t, ok)

	// Mesh names resolve too.
	_, ok = model.FindMesh("Wolf3D_Head.001")
	assert.True(t, ok)
}

func TestModelBuildsRegistry(t *testing.T) {
	model, err := LoadModel(writeFile(t, t.TempDir(), "avatar.gltf", headGLTF))
	require.NoError(t, err)

	registry := avatar3d.NewMorphRegistry("", testLogger)
	_, err = registry.Build(model)
	require.NoError(t, err)

	registry.SetInfluence("viseme_kk")
	assert.Equal(t, []float32{0, 1, 0}, registry.Influences())
}

func TestModelWithoutTargetNames(t *testing.T) {
	model, err := LoadModel(writeFile(t, t.TempDir(), "bare.gltf", bareHeadGLTF))
	require.NoError(t, err)

	mesh, ok := model.FindMesh(avatar3d.DefaultHeadMeshName)
	require.True(t, ok)
	assert.Empty(t, mesh.MorphTargetDictionary())

	_, err = avatar3d.NewMorphRegistry("", testLogger).Build(model)
	assert.ErrorIs(t, err, avatar3d.ErrDictionaryMissing)

	_, err = avatar3d.NewMorphRegistry("Wolf3D_Avatar", testLogger).Build(model)
	assert.ErrorIs(t, err, avatar3d.ErrMeshNotFound)
}

func TestModelClips(t *testing.T) {
	model, err := LoadModel(writeFile(t, t.TempDir(), "avatar.gltf", headGLTF))
	require.NoError(t, err)

	clips := model.Clips()
	require.Len(t, clips, 1)
	clip := clips[0]
	assert.Equal(t, "Armature|Idle", clip.Name)
	assert.Equal(t, 2.5, clip.Duration)
	assert.Equal(t, []avatar3d.TrackChannel{
		{Node: "Hips", Path: "rotation"},
		{Node: "Wolf3D_Head", Path: "translation"},
	}, clip.Track.Channels)

	bare, err := LoadModel(writeFile(t, t.TempDir(), "bare.gltf", bareHeadGLTF))
	require.NoError(t, err)
	assert.Empty(t, bare.Clips())
}
