package avatar3d

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMorphRegistryBuild(t *testing.T) {
	r := NewMorphRegistry("", testLogger)
	assert.Equal(t, DefaultHeadMeshName, r.MeshName())
	assert.False(t, r.Built())

	dict, err := r.Build(headModel())
	require.NoError(t, err)
	assert.True(t, r.Built())
	assert.Equal(t, 16, r.Len())
	assert.Equal(t, 2, dict["viseme_PP"])
	assert.Equal(t, 0, countNonZero(r.Influences()))
}

func TestMorphRegistryBuildFailures(t *testing.T) {
	t.Run("no model", func(t *testing.T) {
		_, err := NewMorphRegistry("", testLogger).Build(nil)
		assert.ErrorIs(t, err, ErrMeshNotFound)
	})

	t.Run("head node absent", func(t *testing.T) {
		model := &fakeModel{meshes: map[string]*fakeMesh{
			"Wolf3D_Body": {name: "Wolf3D_Body", dict: map[string]int{"a": 0}, count: 1},
		}}
		_, err := NewMorphRegistry("", testLogger).Build(model)
		assert.ErrorIs(t, err, ErrMeshNotFound)
		assert.NotErrorIs(t, err, ErrDictionaryMissing)
	})

	t.Run("head without targets", func(t *testing.T) {
		model := &fakeModel{meshes: map[string]*fakeMesh{
			DefaultHeadMeshName: {name: DefaultHeadMeshName},
		}}
		_, err := NewMorphRegistry("", testLogger).Build(model)
		assert.ErrorIs(t, err, ErrDictionaryMissing)
		assert.NotErrorIs(t, err, ErrMeshNotFound)
	})

	t.Run("index out of range", func(t *testing.T) {
		model := &fakeModel{meshes: map[string]*fakeMesh{
			DefaultHeadMeshName: {name: DefaultHeadMeshName, dict: map[string]int{"viseme_PP": 3}, count: 2},
		}}
		r := NewMorphRegistry("", testLogger)
		_, err := r.Build(model)
		assert.ErrorIs(t, err, ErrDictionaryMissing)
		assert.False(t, r.Built())
	})
}

func TestMorphRegistryBuildsOnce(t *testing.T) {
	r := builtRegistry()

	other := &fakeModel{meshes: map[string]*fakeMesh{
		DefaultHeadMeshName: {name: DefaultHeadMeshName, dict: map[string]int{"only": 0}, count: 1},
	}}
	dict, err := r.Build(other)
	require.NoError(t, err)
	assert.Contains(t, dict, "viseme_PP")
	assert.NotContains(t, dict, "only")
	assert.Equal(t, 16, r.Len())
}

func TestMorphRegistryDictionaryIsACopy(t *testing.T) {
	r := builtRegistry()

	dict := r.Dictionary()
	dict["viseme_PP"] = 9
	delete(dict, "viseme_kk")

	again := r.Dictionary()
	assert.Equal(t, 2, again["viseme_PP"])
	assert.Contains(t, again, "viseme_kk")
}

func TestSetInfluenceLeavesSingleActiveTarget(t *testing.T) {
	r := builtRegistry()

	r.SetInfluence("viseme_AA")
	r.SetInfluence("viseme_O")

	v, ok := r.Influence("viseme_O")
	require.True(t, ok)
	assert.Equal(t, float32(1), v)

	v, _ = r.Influence("viseme_AA")
	assert.Zero(t, v)
	assert.Equal(t, 1, countNonZero(r.Influences()))
}

func TestSetInfluenceIsIdempotent(t *testing.T) {
	r := builtRegistry()

	r.SetInfluence("viseme_FF")
	once := append([]float32(nil), r.Influences()...)

	r.SetInfluence("viseme_FF")
	assert.Equal(t, once, r.Influences())
}

func TestSetInfluenceIgnoresUnknownName(t *testing.T) {
	r := builtRegistry()
	r.SetInfluence("viseme_TH")

	before := append([]float32(nil), r.Influences()...)
	assert.NotPanics(t, func() { r.SetInfluence("not_a_target") })
	assert.Equal(t, before, r.Influences())

	_, ok := r.Influence("not_a_target")
	assert.False(t, ok)
}

func TestSetInfluenceBeforeBuildIsNoop(t *testing.T) {
	r := NewMorphRegistry("", testLogger)
	assert.NotPanics(t, func() {
		r.SetInfluence("viseme_PP")
		r.ResetAll()
	})
	assert.Empty(t, r.Influences())
	assert.Nil(t, r.Dictionary())
}

func TestResetAllZeroesVector(t *testing.T) {
	r := builtRegistry()
	r.SetInfluence("viseme_U")

	r.ResetAll()
	assert.Len(t, r.Influences(), 16)
	assert.Equal(t, 0, countNonZero(r.Influences()))
}
