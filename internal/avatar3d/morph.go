package avatar3d

import (
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultHeadMeshName is the node name Ready Player Me exports give the head mesh.
const DefaultHeadMeshName = "Wolf3D_Head"

// MeshNode is a skinned mesh in the loaded scene graph.
type MeshNode interface {
	Name() string
	// MorphTargetDictionary maps morph target names to influence indices.
	// It is empty when the mesh carries no named targets.
	MorphTargetDictionary() map[string]int
	MorphTargetCount() int
}

// Model is the loaded scene graph.
type Model interface {
	FindMesh(name string) (MeshNode, bool)
}

// MorphRegistry owns the head mesh's morph target dictionary and influence vector.
// The dictionary is built once and never mutated afterwards.
type MorphRegistry struct {
	meshName   string
	dictionary map[string]int
	influences []float32
	built      bool
	logger     zerolog.Logger
}

func NewMorphRegistry(meshName string, logger zerolog.Logger) *MorphRegistry {
	if meshName == "" {
		meshName = DefaultHeadMeshName
	}
	return &MorphRegistry{
		meshName: meshName,
		logger:   logger.With().Str("component", "morph").Logger(),
	}
}

// Build locates the head mesh in model and captures its dictionary.
func (r *MorphRegistry) Build(model Model) (map[string]int, error) {
	if r.built {
		return r.Dictionary(), nil
	}
	if model == nil {
		return nil, fmt.Errorf("%w: no model loaded", ErrMeshNotFound)
	}

	node, ok := model.FindMesh(r.meshName)
	if !ok || node == nil {
		return nil, fmt.Errorf("%w: %q", ErrMeshNotFound, r.meshName)
	}

	src := node.MorphTargetDictionary()
	n := node.MorphTargetCount()
	if len(src) == 0 || n == 0 {
		return nil, fmt.Errorf("%w: mesh %q", ErrDictionaryMissing, r.meshName)
	}

	dict := make(map[string]int, len(src))
	for name, idx := range src {
		if idx < 0 || idx >= n {
			return nil, fmt.Errorf("%w: target %q index %d outside [0,%d)", ErrDictionaryMissing, name, idx, n)
		}
		dict[name] = idx
	}

	r.dictionary = dict
	r.influences = make([]float32, n)
	r.built = true

	r.logger.Info().
		Str("mesh", r.meshName).
		Int("targets", n).
		Msg("Morph targets loaded")

	return r.Dictionary(), nil
}

// SetInfluence makes name the only active morph target. Unknown names and an
// unbuilt registry are ignored.
func (r *MorphRegistry) SetInfluence(name string) {
	if !r.built {
		return
	}
	idx, ok := r.dictionary[name]
	if !ok {
		r.logger.Debug().Str("target", name).Msg("Morph target not in dictionary")
		return
	}
	clear(r.influences)
	r.influences[idx] = 1
}

func (r *MorphRegistry) ResetAll() {
	clear(r.influences)
}

// Influences returns the live vector. Callers must not modify it.
func (r *MorphRegistry) Influences() []float32 {
	return r.influences
}

func (r *MorphRegistry) Influence(name string) (float32, bool) {
	idx, ok := r.dictionary[name]
	if !ok {
		return 0, false
	}
	return r.influences[idx], true
}

// Dictionary returns a copy of the name to index mapping.
func (r *MorphRegistry) Dictionary() map[string]int {
	if !r.built {
		return nil
	}
	out := make(map[string]int, len(r.dictionary))
	for k, v := range r.dictionary {
		out[k] = v
	}
	return out
}

func (r *MorphRegistry) Built() bool {
	return r.built
}

func (r *MorphRegistry) Len() int {
	return len(r.influences)
}

func (r *MorphRegistry) MeshName() string {
	return r.meshName
}
