// Package renderer draws the avatar model in a GLFW window. It is driven by the
// frame loop and only ever touched from the locked main thread.
package renderer

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/normanking/avatarsync/internal/assets"
	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/normanking/avatarsync/internal/bus"
	"github.com/rs/zerolog"
)

type Config struct {
	Width  int
	Height int
	Title  string
	VSync  bool
	MSAA   int

	CameraPosition mgl32.Vec3
	CameraTarget   mgl32.Vec3
	FOV            float32
	Near           float32
	Far            float32

	// HeadMesh is the node or mesh whose morph targets follow the frame influences.
	HeadMesh string
}

func DefaultConfig() Config {
	return Config{
		Width:          1280,
		Height:         720,
		Title:          "Avatar",
		VSync:          true,
		MSAA:           4,
		CameraPosition: mgl32.Vec3{1, 0.75, 1.5},
		FOV:            70,
		Near:           0.1,
		Far:            1000,
		HeadMesh:       avatar3d.DefaultHeadMeshName,
	}
}

var (
	clearColor = mgl32.Vec3{0.12, 0.13, 0.15}
	baseColor  = mgl32.Vec3{0.8, 0.68, 0.6}
	lightPos   = mgl32.Vec3{0, 2, 2.5}
)

const (
	lightIntensity = 3.5
	ambient        = 0.25
)

type drawable struct {
	mesh  *Mesh
	world mgl32.Mat4
	morph bool
}

// Renderer implements avatar3d.Renderer on an OpenGL 4.1 core context.
type Renderer struct {
	window *glfw.Window
	config Config

	shader *Shader
	camera *Camera

	drawables []drawable
	drawCalls int

	fbWidth  int
	fbHeight int

	logger zerolog.Logger
}

// New opens the window and compiles the mesh shader. glfw must be initialized on
// the calling thread.
func New(cfg Config, logger zerolog.Logger) (*Renderer, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	if cfg.MSAA > 0 {
		glfw.WindowHint(glfw.Samples, cfg.MSAA)
	}

	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create window: %w", err)
	}
	window.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		window.Destroy()
		return nil, fmt.Errorf("gl init: %w", err)
	}

	if cfg.VSync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	r := &Renderer{
		window: window,
		config: cfg,
		logger: logger.With().Str("component", "renderer").Logger(),
	}

	r.fbWidth, r.fbHeight = window.GetFramebufferSize()

	r.shader, err = NewShaderFromSource(meshVertSrc, meshFragSrc)
	if err != nil {
		window.Destroy()
		return nil, fmt.Errorf("init shaders: %w", err)
	}

	r.camera = NewViewerCamera(cfg.CameraPosition, cfg.CameraTarget, cfg.FOV, r.aspect(), cfg.Near, cfg.Far)

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		r.fbWidth, r.fbHeight = width, height
		r.camera.SetAspectRatio(r.aspect())
	})

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LESS)

	if cfg.MSAA > 0 {
		gl.Enable(gl.MULTISAMPLE)
	}

	r.logger.Info().
		Int("width", r.fbWidth).
		Int("height", r.fbHeight).
		Str("gl", gl.GoStr(gl.GetString(gl.VERSION))).
		Msg("Renderer initialized")

	return r, nil
}

func (r *Renderer) aspect() float32 {
	if r.fbHeight == 0 {
		return 1
	}
	return float32(r.fbWidth) / float32(r.fbHeight)
}

// OnModelReady uploads the model carried by a ModelReady event.
func (r *Renderer) OnModelReady(e bus.Event) {
	model, ok := e.Data["model"].(*assets.Model)
	if !ok {
		r.logger.Warn().Msg("Model ready event without a glTF model")
		return
	}
	if err := r.LoadModel(model); err != nil {
		r.logger.Error().Err(err).Str("path", model.Path()).Msg("Model upload failed")
	}
}

// LoadModel replaces the drawn model. Primitives that fail to decode are skipped.
func (r *Renderer) LoadModel(model *assets.Model) error {
	head, ok := model.MeshIndex(r.config.HeadMesh)
	if !ok {
		head = -1
	}

	prims, err := PreparePrimitives(model.Document(), head)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Some primitives were skipped")
	}
	if len(prims) == 0 {
		return fmt.Errorf("%w: no drawable primitives in %s", avatar3d.ErrAssetNotFound, model.Path())
	}

	r.releaseMeshes()
	morphed := 0
	for _, p := range prims {
		r.drawables = append(r.drawables, drawable{
			mesh:  NewMesh(p.Data),
			world: p.World,
			morph: p.Morph,
		})
		if p.Morph {
			morphed++
		}
	}

	r.logger.Info().
		Int("primitives", len(prims)).
		Int("morphed", morphed).
		Msg("Model uploaded")
	return nil
}

// RenderFrame draws the model with the frame's transform and influences, then
// swaps buffers and polls window events.
func (r *Renderer) RenderFrame(frame avatar3d.Frame) {
	gl.Viewport(0, 0, int32(r.fbWidth), int32(r.fbHeight))
	gl.ClearColor(clearColor[0], clearColor[1], clearColor[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	r.drawCalls = 0

	r.shader.Use()
	r.shader.SetMat4("uView", r.camera.ViewMatrix())
	r.shader.SetMat4("uProjection", r.camera.ProjectionMatrix())
	r.shader.SetVec3("uBaseColor", baseColor)
	r.shader.SetVec3("uLightPos", lightPos)
	r.shader.SetFloat("uLightIntensity", lightIntensity)
	r.shader.SetFloat("uAmbient", ambient)

	for _, d := range r.drawables {
		if d.morph && frame.Influences != nil {
			d.mesh.ApplyMorphWeights(frame.Influences)
		}
		r.shader.SetMat4("uModel", frame.Model.Mul4(d.world))
		d.mesh.Draw()
		r.drawCalls++
	}

	r.window.SwapBuffers()
	glfw.PollEvents()
}

// SetKeyCallback reports key presses. Repeats and releases are ignored.
func (r *Renderer) SetKeyCallback(fn func(key glfw.Key)) {
	r.window.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if action == glfw.Press {
			fn(key)
		}
	})
}

func (r *Renderer) ShouldClose() bool {
	return r.window.ShouldClose()
}

// Close asks the window to close; the frame loop ends on its next check.
func (r *Renderer) Close() {
	r.window.SetShouldClose(true)
}

// Stats returns draw calls in the last frame and uploaded primitives.
func (r *Renderer) Stats() (drawCalls, primitives int) {
	return r.drawCalls, len(r.drawables)
}

func (r *Renderer) releaseMeshes() {
	for _, d := range r.drawables {
		d.mesh.Delete()
	}
	r.drawables = nil
}

func (r *Renderer) Shutdown() {
	r.releaseMeshes()
	if r.shader != nil {
		r.shader.Delete()
	}
	r.window.Destroy()
	r.logger.Info().Msg("Renderer shut down")
}
