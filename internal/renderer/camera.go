package renderer

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera is the fixed viewer camera
type Camera struct {
	Position mgl32.Vec3
	Target   mgl32.Vec3
	Up       mgl32.Vec3

	// Projection parameters
	FOV         float32
	AspectRatio float32
	NearPlane   float32
	FarPlane    float32

	// Cached matrices
	viewMatrix       mgl32.Mat4
	projectionMatrix mgl32.Mat4
	dirty            bool
}

// NewCamera creates a new camera
func NewCamera(position, target, up mgl32.Vec3, fov, aspect, near, far float32) *Camera {
	c := &Camera{
		Position:    position,
		Target:      target,
		Up:          up,
		FOV:         fov,
		AspectRatio: aspect,
		NearPlane:   near,
		FarPlane:    far,
		dirty:       true,
	}
	c.updateMatrices()
	return c
}

// NewViewerCamera places the camera at position looking at target with a vertical
// field of view in degrees.
func NewViewerCamera(position, target mgl32.Vec3, fov, aspect, near, far float32) *Camera {
	return NewCamera(position, target, mgl32.Vec3{0, 1, 0}, fov, aspect, near, far)
}

// ViewMatrix returns the view matrix
func (c *Camera) ViewMatrix() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.viewMatrix
}

// ProjectionMatrix returns the projection matrix
func (c *Camera) ProjectionMatrix() mgl32.Mat4 {
	if c.dirty {
		c.updateMatrices()
	}
	return c.projectionMatrix
}

func (c *Camera) updateMatrices() {
	c.viewMatrix = mgl32.LookAtV(c.Position, c.Target, c.Up)
	c.projectionMatrix = mgl32.Perspective(
		mgl32.DegToRad(c.FOV),
		c.AspectRatio,
		c.NearPlane,
		c.FarPlane,
	)
	c.dirty = false
}

// SetAspectRatio updates aspect ratio
func (c *Camera) SetAspectRatio(aspect float32) {
	c.AspectRatio = aspect
	c.dirty = true
}
