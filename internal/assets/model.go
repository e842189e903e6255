// Package assets loads the avatar's model, animation clips and mouth cues off the
// frame goroutine and hands them over through the event bus.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/qmuntal/gltf"
)

// Model adapts a glTF document to avatar3d.Model.
type Model struct {
	doc  *gltf.Document
	path string
}

func NewModel(doc *gltf.Document, path string) *Model {
	return &Model{doc: doc, path: path}
}

// LoadModel opens a .gltf or .glb file.
func LoadModel(path string) (*Model, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: model %s", avatar3d.ErrAssetNotFound, path)
		}
		return nil, fmt.Errorf("stat model: %w", err)
	}

	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf %s: %w", path, err)
	}
	return NewModel(doc, path), nil
}

func (m *Model) Document() *gltf.Document {
	return m.doc
}

func (m *Model) Path() string {
	return m.path
}

// FindMesh looks the name up among nodes first, then among meshes.
func (m *Model) FindMesh(name string) (avatar3d.MeshNode, bool) {
	if m == nil || m.doc == nil {
		return nil, false
	}
	for _, node := range m.doc.Nodes {
		if node == nil || node.Name != name || node.Mesh == nil {
			continue
		}
		if mesh := m.mesh(*node.Mesh); mesh != nil {
			return newMeshNode(name, mesh), true
		}
	}
	for _, mesh := range m.doc.Meshes {
		if mesh != nil && mesh.Name == name {
			return newMeshNode(name, mesh), true
		}
	}
	return nil, false
}

func (m *Model) mesh(idx int) *gltf.Mesh {
	if idx < 0 || idx >= len(m.doc.Meshes) {
		return nil
	}
	return m.doc.Meshes[idx]
}

// MeshIndex returns the document index of the mesh FindMesh would resolve.
func (m *Model) MeshIndex(name string) (int, bool) {
	for _, node := range m.doc.Nodes {
		if node != nil && node.Name == name && node.Mesh != nil && m.mesh(*node.Mesh) != nil {
			return *node.Mesh, true
		}
	}
	for i, mesh := range m.doc.Meshes {
		if mesh != nil && mesh.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Clips lists the animations embedded in the model file.
func (m *Model) Clips() []*avatar3d.AnimationClip {
	if m == nil || m.doc == nil {
		return nil
	}
	clips := make([]*avatar3d.AnimationClip, 0, len(m.doc.Animations))
	for i := range m.doc.Animations {
		if clip := clipFromAnimation(m.doc, i, ""); clip != nil {
			clips = append(clips, clip)
		}
	}
	return clips
}

type meshNode struct {
	name  string
	dict  map[string]int
	count int
}

func newMeshNode(name string, mesh *gltf.Mesh) *meshNode {
	n := &meshNode{name: name, dict: make(map[string]int)}
	if len(mesh.Primitives) > 0 && mesh.Primitives[0] != nil {
		n.count = len(mesh.Primitives[0].Targets)
	}
	for i, target := range TargetNames(mesh) {
		if target != "" {
			n.dict[target] = i
		}
	}
	return n
}

func (n *meshNode) Name() string                          { return n.name }
func (n *meshNode) MorphTargetDictionary() map[string]int { return n.dict }
func (n *meshNode) MorphTargetCount() int                 { return n.count }

// TargetNames reads the morph target names exporters store in mesh extras.
func TargetNames(mesh *gltf.Mesh) []string {
	extras, ok := mesh.Extras.(map[string]interface{})
	if !ok {
		return nil
	}
	switch names := extras["targetNames"].(type) {
	case []string:
		return names
	case []interface{}:
		out := make([]string, len(names))
		for i, name := range names {
			out[i], _ = name.(string)
		}
		return out
	}
	return nil
}

func clipFromAnimation(doc *gltf.Document, idx int, name string) *avatar3d.AnimationClip {
	anim := doc.Animations[idx]
	if anim == nil {
		return nil
	}
	if name == "" {
		name = anim.Name
	}
	if name == "" {
		name = fmt.Sprintf("animation_%d", idx)
	}

	clip := &avatar3d.AnimationClip{Name: name}
	for _, sampler := range anim.Samplers {
		if sampler == nil || sampler.Input < 0 || sampler.Input >= len(doc.Accessors) {
			continue
		}
		for _, v := range doc.Accessors[sampler.Input].Max {
			if d := float64(v); d > clip.Duration {
				clip.Duration = d
			}
		}
	}

	for _, ch := range anim.Channels {
		if ch == nil {
			continue
		}
		var node string
		if ch.Target.Node != nil && *ch.Target.Node < len(doc.Nodes) {
			node = doc.Nodes[*ch.Target.Node].Name
		}
		clip.Track.Channels = append(clip.Track.Channels, avatar3d.TrackChannel{
			Node: node,
			Path: trsPath(ch.Target.Path),
		})
	}
	return clip
}

func trsPath(p gltf.TRSProperty) string {
	switch p {
	case gltf.TRSTranslation:
		return "translation"
	case gltf.TRSRotation:
		return "rotation"
	case gltf.TRSScale:
		return "scale"
	case gltf.TRSWeights:
		return "weights"
	}
	return "unknown"
}
