package avatar3d

import (
	"context"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/normanking/avatarsync/internal/bus"
	"github.com/normanking/avatarsync/internal/metrics"
	"github.com/rs/zerolog"
)

type AvatarID string

// AudioTrack is a loaded audio resource that can be started and polled.
type AudioTrack interface {
	AudioClock
	Play() error
	Close() error
}

// AudioOpener loads the session audio. It is called off the frame goroutine.
type AudioOpener func(ctx context.Context) (AudioTrack, error)

type Options struct {
	ID           AvatarID
	HeadMeshName string
	FadeDuration float64
	DefaultClip  string
	TalkingClip  string
	GapPolicy    GapPolicy

	Position mgl32.Vec3
	Scale    float32

	// FaceViewer turns the model every frame towards Viewer, shifted by ViewerOffsetX
	// and kept at the model's own height.
	FaceViewer    bool
	Viewer        mgl32.Vec3
	ViewerOffsetX float32
}

func DefaultOptions() Options {
	return Options{
		ID:            "default",
		HeadMeshName:  DefaultHeadMeshName,
		FadeDuration:  DefaultFadeDuration,
		DefaultClip:   "Idle",
		TalkingClip:   "Talking",
		GapPolicy:     GapHold,
		Position:      mgl32.Vec3{0, -3.5, 0},
		Scale:         2.5,
		FaceViewer:    true,
		Viewer:        mgl32.Vec3{1, 0.75, 1.5},
		ViewerOffsetX: 0.3,
	}
}

// Frame is what the renderer receives once per display refresh.
type Frame struct {
	Pose       []PoseSample
	Influences []float32
	Model      mgl32.Mat4
}

// Avatar owns the model, morph registry, clip controller and lip-sync scheduler
// of one on-screen character. All methods except PlayAudio's loader run on the
// frame goroutine.
type Avatar struct {
	ID AvatarID

	opts     Options
	registry *MorphRegistry
	clips    *ClipController
	lipSync  *LipSyncScheduler

	events    *bus.EventBus
	openAudio AudioOpener
	ctx       context.Context

	model        Model
	cues         []MouthCue
	audio        AudioTrack
	audioRequest uint64
	speaking     bool

	position mgl32.Vec3
	rotation mgl32.Vec3
	scale    float32

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewAvatar(ctx context.Context, opts Options, events *bus.EventBus, frames FrameRequester, openAudio AudioOpener, logger zerolog.Logger, m *metrics.Metrics) *Avatar {
	registry := NewMorphRegistry(opts.HeadMeshName, logger)

	a := &Avatar{
		ID:        opts.ID,
		opts:      opts,
		registry:  registry,
		clips:     NewClipController(opts.FadeDuration, logger, m),
		lipSync:   NewLipSyncScheduler(registry, frames, opts.GapPolicy, logger, m),
		events:    events,
		openAudio: openAudio,
		ctx:       ctx,
		position:  opts.Position,
		scale:     opts.Scale,
		logger:    logger.With().Str("component", "avatar").Str("avatar", string(opts.ID)).Logger(),
		metrics:   m,
	}

	events.Subscribe(bus.EventTypeModelReady, a.onModelReady)
	events.Subscribe(bus.EventTypeModelFailed, a.onAssetFailed)
	events.Subscribe(bus.EventTypeCuesLoaded, a.onCuesLoaded)
	events.Subscribe(bus.EventTypeCuesFailed, a.onAssetFailed)
	events.Subscribe(bus.EventTypeAudioReady, a.onAudioReady)
	events.Subscribe(bus.EventTypeAudioFailed, a.onAssetFailed)

	return a
}

// PlayAudio loads the audio track in the background; once it is ready the track
// starts, the talking clip fades in and lip sync begins.
func (a *Avatar) PlayAudio() {
	if len(a.cues) == 0 {
		a.logger.Error().Err(ErrEmptyCueList).Msg("Lip sync data not loaded")
		return
	}
	if a.openAudio == nil {
		a.logger.Error().Err(ErrAssetNotFound).Msg("No audio source configured")
		return
	}

	a.audioRequest++
	request := a.audioRequest
	ctx := a.ctx

	go func() {
		track, err := a.openAudio(ctx)
		if err != nil {
			a.events.Publish(bus.Event{
				Type: bus.EventTypeAudioFailed,
				Data: map[string]any{"error": fmt.Errorf("%w: audio: %w", ErrAssetNotFound, err)},
			})
			return
		}
		a.events.Publish(bus.Event{
			Type: bus.EventTypeAudioReady,
			Data: map[string]any{"track": track, "request": request},
		})
	}()
}

// ChangeAnimation cross-fades to the named clip. Unknown names are logged and ignored.
func (a *Avatar) ChangeAnimation(name string) {
	if err := a.clips.Play(name); err != nil {
		a.logger.Error().Err(err).Str("clip", name).Msg("Animation change ignored")
		return
	}
	a.events.Publish(bus.Event{
		Type: bus.EventTypeClipChanged,
		Data: map[string]any{"clip": name},
	})
}

// StopAudio cancels lip sync and releases the current track.
func (a *Avatar) StopAudio() {
	a.audioRequest++
	a.lipSync.Cancel()
	a.registry.ResetAll()
	a.closeAudio()
}

// Update advances body animation by dt seconds.
func (a *Avatar) Update(dt float64) {
	a.clips.Advance(dt)

	if a.opts.FaceViewer {
		a.faceViewer()
	}

	if a.speaking && !a.lipSync.Running() {
		a.speaking = false
		a.events.Publish(bus.Event{Type: bus.EventTypeLipSyncFinished})
	}
}

func (a *Avatar) Frame() Frame {
	return Frame{
		Pose:       a.clips.Pose(),
		Influences: a.registry.Influences(),
		Model:      a.ModelMatrix(),
	}
}

func (a *Avatar) ModelMatrix() mgl32.Mat4 {
	model := mgl32.Translate3D(a.position[0], a.position[1], a.position[2])
	model = model.Mul4(mgl32.HomogRotate3DX(a.rotation[0]))
	model = model.Mul4(mgl32.HomogRotate3DY(a.rotation[1]))
	model = model.Mul4(mgl32.HomogRotate3DZ(a.rotation[2]))
	model = model.Mul4(mgl32.Scale3D(a.scale, a.scale, a.scale))
	return model
}

// faceViewer yaws the model so its +Z axis points at the viewer.
func (a *Avatar) faceViewer() {
	target := mgl32.Vec3{a.opts.Viewer[0] + a.opts.ViewerOffsetX, a.position[1], a.opts.Viewer[2]}
	dir := target.Sub(a.position)
	if dir[0] == 0 && dir[2] == 0 {
		return
	}
	yaw := float32(math.Atan2(float64(dir[0]), float64(dir[2])))
	a.rotation = mgl32.Vec3{0, yaw, 0}
}

func (a *Avatar) onModelReady(e bus.Event) {
	model, _ := e.Data["model"].(Model)
	clips, _ := e.Data["clips"].([]*AnimationClip)

	a.model = model
	a.clips.AddClips(clips...)

	if _, err := a.registry.Build(model); err != nil {
		a.logger.Error().Err(err).Msg("Lip sync disabled for this session")
	}

	if a.opts.DefaultClip != "" {
		a.ChangeAnimation(a.opts.DefaultClip)
	}
}

func (a *Avatar) onCuesLoaded(e bus.Event) {
	cues, _ := e.Data["cues"].([]MouthCue)
	if err := ValidateCues(cues); err != nil {
		a.logger.Error().Err(err).Msg("Cue set rejected")
		return
	}
	a.cues = cues
	a.logger.Info().Int("cues", len(cues)).Msg("Mouth cues loaded")
}

func (a *Avatar) onAudioReady(e bus.Event) {
	track, _ := e.Data["track"].(AudioTrack)
	request, _ := e.Data["request"].(uint64)
	if track == nil {
		return
	}
	if request != a.audioRequest {
		// Superseded by a newer PlayAudio or StopAudio.
		_ = track.Close()
		return
	}

	a.lipSync.Cancel()
	a.closeAudio()
	a.audio = track

	if err := track.Play(); err != nil {
		a.logger.Error().Err(err).Msg("Audio playback failed")
		a.closeAudio()
		return
	}
	a.logger.Info().Float64("duration", track.Duration()).Msg("Audio started")

	a.ChangeAnimation(a.opts.TalkingClip)

	if err := a.lipSync.Start(a.cues, track); err != nil {
		a.logger.Error().Err(err).Msg("Lip sync not started")
		return
	}
	a.speaking = true
	a.events.Publish(bus.Event{
		Type: bus.EventTypeLipSyncStarted,
		Data: map[string]any{"generation": a.lipSync.Generation()},
	})
}

func (a *Avatar) onAssetFailed(e bus.Event) {
	err, _ := e.Data["error"].(error)
	a.logger.Error().Err(err).Str("event", string(e.Type)).Msg("Asset failed to load")
}

func (a *Avatar) closeAudio() {
	if a.audio == nil {
		return
	}
	if err := a.audio.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Audio close failed")
	}
	a.audio = nil
}

func (a *Avatar) Registry() *MorphRegistry {
	return a.registry
}

func (a *Avatar) Clips() *ClipController {
	return a.clips
}

func (a *Avatar) LipSync() *LipSyncScheduler {
	return a.lipSync
}

func (a *Avatar) Cues() []MouthCue {
	return a.cues
}

func (a *Avatar) Model() Model {
	return a.model
}

func (a *Avatar) Rotation() mgl32.Vec3 {
	return a.rotation
}

// Close stops playback and releases the audio track.
func (a *Avatar) Close() {
	a.StopAudio()
}
