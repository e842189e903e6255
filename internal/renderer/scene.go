package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
)

// SceneNode is a node that carries a mesh, with its rest-pose world transform.
type SceneNode struct {
	Name  string
	Node  int
	Mesh  int
	World mgl32.Mat4
}

// BuildScene walks the document's default scene and returns every mesh node with
// its accumulated world transform. Documents without scenes fall back to all root
// nodes.
func BuildScene(doc *gltf.Document) []SceneNode {
	if doc == nil {
		return nil
	}

	var roots []int
	if doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes) && doc.Scenes[*doc.Scene] != nil {
		for _, n := range doc.Scenes[*doc.Scene].Nodes {
			roots = append(roots, int(n))
		}
	} else if len(doc.Scenes) > 0 && doc.Scenes[0] != nil {
		for _, n := range doc.Scenes[0].Nodes {
			roots = append(roots, int(n))
		}
	} else {
		roots = rootNodes(doc)
	}

	var out []SceneNode
	visited := make(map[int]bool)

	var walk func(idx int, parent mgl32.Mat4)
	walk = func(idx int, parent mgl32.Mat4) {
		if idx < 0 || idx >= len(doc.Nodes) || visited[idx] {
			return
		}
		visited[idx] = true
		node := doc.Nodes[idx]
		if node == nil {
			return
		}

		world := parent.Mul4(LocalMatrix(node))
		if node.Mesh != nil && int(*node.Mesh) < len(doc.Meshes) {
			out = append(out, SceneNode{
				Name:  node.Name,
				Node:  idx,
				Mesh:  int(*node.Mesh),
				World: world,
			})
		}
		for _, child := range node.Children {
			walk(int(child), world)
		}
	}

	for _, root := range roots {
		walk(root, mgl32.Ident4())
	}
	return out
}

func rootNodes(doc *gltf.Document) []int {
	child := make(map[int]bool)
	for _, node := range doc.Nodes {
		if node == nil {
			continue
		}
		for _, c := range node.Children {
			child[int(c)] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// LocalMatrix returns the node's local transform. An explicit matrix wins over TRS
// unless it is zero or identity.
func LocalMatrix(node *gltf.Node) mgl32.Mat4 {
	var m mgl32.Mat4
	for i, v := range node.Matrix {
		m[i] = float32(v)
	}
	if m != (mgl32.Mat4{}) && m != mgl32.Ident4() {
		return m
	}

	var t, s mgl32.Vec3
	for i, v := range node.Translation {
		t[i] = float32(v)
	}
	for i, v := range node.Scale {
		s[i] = float32(v)
	}
	if s == (mgl32.Vec3{}) {
		s = mgl32.Vec3{1, 1, 1}
	}

	var r [4]float32
	for i, v := range node.Rotation {
		r[i] = float32(v)
	}
	q := mgl32.QuatIdent()
	if r != ([4]float32{}) {
		// glTF stores rotations as x, y, z, w.
		q = mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}.Normalize()
	}

	return mgl32.Translate3D(t[0], t[1], t[2]).
		Mul4(q.Mat4()).
		Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
}

// Primitive is one drawable primitive ready for upload.
type Primitive struct {
	Node  string
	Mesh  int
	World mgl32.Mat4
	Data  *MeshData
	// Morph marks primitives of the head mesh, which take the frame's influences.
	Morph bool
}

// PreparePrimitives decodes every primitive reachable from the scene. headMesh is
// the document index of the morphed mesh, or -1. Primitives that fail to decode
// are left out and reported in the joined error.
func PreparePrimitives(doc *gltf.Document, headMesh int) ([]Primitive, error) {
	var (
		prims []Primitive
		errs  []error
	)
	for _, node := range BuildScene(doc) {
		mesh := doc.Meshes[node.Mesh]
		if mesh == nil {
			continue
		}
		for pi, prim := range mesh.Primitives {
			if prim == nil {
				continue
			}
			data, err := ReadPrimitive(doc, prim)
			if err != nil {
				errs = append(errs, fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, pi, err))
				continue
			}
			prims = append(prims, Primitive{
				Node:  node.Name,
				Mesh:  node.Mesh,
				World: node.World,
				Data:  data,
				Morph: node.Mesh == headMesh && len(data.Targets) > 0,
			})
		}
	}
	return prims, errors.Join(errs...)
}
