package renderer

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertMat4(t *testing.T, want, got mgl32.Mat4) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-5, "element %d", i)
	}
}

func TestBuildScene(t *testing.T) {
	doc := openHeadScene(t)

	nodes := BuildScene(doc)
	require.Len(t, nodes, 2)

	head := nodes[0]
	assert.Equal(t, "Wolf3D_Head", head.Name)
	assert.Equal(t, 1, head.Node)
	assert.Equal(t, 0, head.Mesh)
	assertMat4(t, mgl32.Translate3D(0, 1, 0).Mul4(mgl32.Scale3D(2, 2, 2)), head.World)

	body := nodes[1]
	assert.Equal(t, "Wolf3D_Body", body.Name)
	assertMat4(t, mgl32.Translate3D(0, 1, 0), body.World)
}

func TestBuildSceneWithoutScenes(t *testing.T) {
	doc := openHeadScene(t)
	doc.Scene = nil
	doc.Scenes = nil

	nodes := BuildScene(doc)
	assert.Len(t, nodes, 2)
	assert.Empty(t, BuildScene(nil))
}

func TestLocalMatrixRotation(t *testing.T) {
	doc := openHeadScene(t)
	node := doc.Nodes[2]

	// Quarter turn about +y, stored x, y, z, w.
	node.Rotation[1] = 0.70710678
	node.Rotation[3] = 0.70710678

	got := LocalMatrix(node).Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	assert.InDelta(t, 0, got.X(), 1e-5)
	assert.InDelta(t, -1, got.Z(), 1e-5)
}

func TestPreparePrimitives(t *testing.T) {
	doc := openHeadScene(t)

	prims, err := PreparePrimitives(doc, 0)
	require.NoError(t, err)
	require.Len(t, prims, 2)

	assert.Equal(t, "Wolf3D_Head", prims[0].Node)
	assert.True(t, prims[0].Morph)
	assert.Len(t, prims[0].Data.Targets, 1)

	// The body has no targets and is drawn at rest.
	assert.False(t, prims[1].Morph)
	assert.Empty(t, prims[1].Data.Indices)

	prims, err = PreparePrimitives(doc, -1)
	require.NoError(t, err)
	assert.False(t, prims[0].Morph)
}

func TestPreparePrimitivesSkipsBrokenPrimitive(t *testing.T) {
	doc := openHeadScene(t)
	doc.Meshes[1].Primitives = append(doc.Meshes[1].Primitives, &gltf.Primitive{})

	prims, err := PreparePrimitives(doc, 0)
	assert.ErrorIs(t, err, errNoPositions)
	assert.Len(t, prims, 2)
}
