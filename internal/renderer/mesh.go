package renderer

import (
	"errors"
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var errNoPositions = errors.New("primitive has no POSITION attribute")

// morphEpsilon is the weight below which a target is skipped.
const morphEpsilon = 0.001

// MeshData is the CPU copy of one primitive: base geometry plus morph target deltas.
type MeshData struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
	Targets   [][]mgl32.Vec3
}

// ReadPrimitive decodes the geometry and morph target position deltas of a primitive.
func ReadPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*MeshData, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, errNoPositions
	}
	positions, err := readVec3(doc, int(posIdx))
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	data := &MeshData{Positions: positions}

	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		data.Normals, err = readVec3(doc, int(normIdx))
		if err != nil || len(data.Normals) != len(positions) {
			data.Normals = nil
		}
	}
	if data.Normals == nil {
		data.Normals = flatNormals(len(positions))
	}

	if prim.Indices != nil {
		idx := int(*prim.Indices)
		if idx >= len(doc.Accessors) {
			return nil, fmt.Errorf("index accessor %d out of range", idx)
		}
		data.Indices, err = modeler.ReadIndices(doc, doc.Accessors[idx], nil)
		if err != nil {
			return nil, fmt.Errorf("read indices: %w", err)
		}
	}

	for i, target := range prim.Targets {
		var deltas []mgl32.Vec3
		if idx, ok := target[gltf.POSITION]; ok {
			deltas, err = readVec3(doc, int(idx))
			if err != nil {
				return nil, fmt.Errorf("read morph target %d: %w", i, err)
			}
		}
		data.Targets = append(data.Targets, deltas)
	}

	return data, nil
}

func readVec3(doc *gltf.Document, idx int) ([]mgl32.Vec3, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("accessor %d out of range", idx)
	}
	raw, err := modeler.ReadPosition(doc, doc.Accessors[idx], nil)
	if err != nil {
		return nil, err
	}
	out := make([]mgl32.Vec3, len(raw))
	for i, v := range raw {
		out[i] = mgl32.Vec3(v)
	}
	return out, nil
}

func flatNormals(n int) []mgl32.Vec3 {
	normals := make([]mgl32.Vec3, n)
	for i := range normals {
		normals[i] = mgl32.Vec3{0, 0, 1}
	}
	return normals
}

// BlendPositions writes base + sum(weights[i] * targets[i]) into out, which must be
// as long as base. Targets shorter than base only displace their own vertices.
func BlendPositions(out, base []mgl32.Vec3, targets [][]mgl32.Vec3, weights []float32) {
	copy(out, base)
	for ti, deltas := range targets {
		if ti >= len(weights) {
			break
		}
		w := weights[ti]
		if w < morphEpsilon && w > -morphEpsilon {
			continue
		}
		for vi, d := range deltas {
			if vi >= len(out) {
				break
			}
			out[vi] = out[vi].Add(d.Mul(w))
		}
	}
}

// Mesh is a primitive uploaded to the GPU. Morphed meshes keep their CPU data to
// re-blend positions when the weights change.
type Mesh struct {
	VAO         uint32
	VBO         uint32
	EBO         uint32
	VertexCount int32
	IndexCount  int32
	HasIndices  bool

	data    *MeshData
	blended []mgl32.Vec3
	weights []float32
	scratch []float32
}

// NewMesh uploads data. Call on the GL thread.
func NewMesh(data *MeshData) *Mesh {
	m := &Mesh{
		data:        data,
		blended:     make([]mgl32.Vec3, len(data.Positions)),
		VertexCount: int32(len(data.Positions)),
		IndexCount:  int32(len(data.Indices)),
		HasIndices:  len(data.Indices) > 0,
	}
	copy(m.blended, data.Positions)
	m.uploadToGPU()
	return m
}

// MorphTargetCount is the number of targets the primitive carries.
func (m *Mesh) MorphTargetCount() int {
	return len(m.data.Targets)
}

func (m *Mesh) uploadToGPU() {
	gl.GenVertexArrays(1, &m.VAO)
	gl.GenBuffers(1, &m.VBO)

	gl.BindVertexArray(m.VAO)
	gl.BindBuffer(gl.ARRAY_BUFFER, m.VBO)

	vertexData := m.interleave()
	gl.BufferData(gl.ARRAY_BUFFER, len(vertexData)*4, gl.Ptr(vertexData), gl.DYNAMIC_DRAW)

	stride := int32(6 * 4)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, stride, 0)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(1, 3, gl.FLOAT, false, stride, 3*4)
	gl.EnableVertexAttribArray(1)

	if m.HasIndices {
		gl.GenBuffers(1, &m.EBO)
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.EBO)
		gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(m.data.Indices)*4, gl.Ptr(m.data.Indices), gl.STATIC_DRAW)
	}

	gl.BindVertexArray(0)
}

func (m *Mesh) interleave() []float32 {
	if cap(m.scratch) < len(m.blended)*6 {
		m.scratch = make([]float32, 0, len(m.blended)*6)
	}
	vertexData := m.scratch[:0]
	for i, p := range m.blended {
		n := m.data.Normals[i]
		vertexData = append(vertexData, p[0], p[1], p[2], n[0], n[1], n[2])
	}
	m.scratch = vertexData
	return vertexData
}

// ApplyMorphWeights re-blends and re-uploads positions when weights differ from the
// last call.
func (m *Mesh) ApplyMorphWeights(weights []float32) {
	if len(m.data.Targets) == 0 || sameWeights(m.weights, weights) {
		return
	}
	m.weights = append(m.weights[:0], weights...)

	BlendPositions(m.blended, m.data.Positions, m.data.Targets, weights)

	vertexData := m.interleave()
	gl.BindBuffer(gl.ARRAY_BUFFER, m.VBO)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(vertexData)*4, gl.Ptr(vertexData))
}

func sameWeights(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (m *Mesh) Draw() {
	gl.BindVertexArray(m.VAO)
	if m.HasIndices {
		gl.DrawElements(gl.TRIANGLES, m.IndexCount, gl.UNSIGNED_INT, nil)
	} else {
		gl.DrawArrays(gl.TRIANGLES, 0, m.VertexCount)
	}
	gl.BindVertexArray(0)
}

func (m *Mesh) Delete() {
	gl.DeleteVertexArrays(1, &m.VAO)
	gl.DeleteBuffers(1, &m.VBO)
	if m.HasIndices {
		gl.DeleteBuffers(1, &m.EBO)
	}
}
