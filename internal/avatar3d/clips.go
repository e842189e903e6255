package avatar3d

import (
	"fmt"
	"math"

	"github.com/normanking/avatarsync/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultFadeDuration is the cross-fade length between body clips, in seconds.
const DefaultFadeDuration = 0.5

// TrackChannel is one animated property of one node.
type TrackChannel struct {
	Node string
	Path string
}

// KeyframeTrack describes a clip's animated channels. Sampling is left to the renderer.
type KeyframeTrack struct {
	Channels []TrackChannel
}

type AnimationClip struct {
	Name     string
	Duration float64
	Track    KeyframeTrack
}

// ClipAction is a clip bound to the controller with its own weight and time cursor.
type ClipAction struct {
	Clip         *AnimationClip
	Weight       float64
	Time         float64
	FadeDuration float64
}

func (a *ClipAction) advance(dt float64) {
	a.Time += dt
	if d := a.Clip.Duration; d > 0 && a.Time >= d {
		a.Time = math.Mod(a.Time, d)
	}
}

type ClipState int

const (
	ClipIdle ClipState = iota
	ClipSteady
	ClipTransitioning
)

func (s ClipState) String() string {
	switch s {
	case ClipIdle:
		return "idle"
	case ClipSteady:
		return "steady"
	case ClipTransitioning:
		return "transitioning"
	}
	return fmt.Sprintf("ClipState(%d)", int(s))
}

// PoseSample is one weighted clip contribution to the current skeletal pose.
type PoseSample struct {
	Clip   string
	Time   float64
	Weight float64
}

// ClipController cross-fades between named skeletal clips. At most one action
// is retiring at any time.
type ClipController struct {
	library map[string]*AnimationClip

	active   *ClipAction
	retiring *ClipAction
	elapsed  float64
	fade     float64

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewClipController(fade float64, logger zerolog.Logger, m *metrics.Metrics) *ClipController {
	if fade < 0 {
		fade = DefaultFadeDuration
	}
	return &ClipController{
		library: make(map[string]*AnimationClip),
		fade:    fade,
		logger:  logger.With().Str("component", "clips").Logger(),
		metrics: m,
	}
}

// AddClips registers clips by name; a later clip replaces an earlier one of the same name.
func (c *ClipController) AddClips(clips ...*AnimationClip) {
	for _, clip := range clips {
		if clip == nil || clip.Name == "" {
			continue
		}
		c.library[clip.Name] = clip
	}
}

// Play starts a cross-fade to the named clip.
func (c *ClipController) Play(name string) error {
	clip, ok := c.library[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrClipNotFound, name)
	}

	next := &ClipAction{Clip: clip, FadeDuration: c.fade}

	if c.active == nil || c.fade == 0 {
		next.Weight = 1
		c.active = next
		c.retiring = nil
		c.elapsed = 0
	} else {
		// The previous retiring action, if any, is dropped here. An interrupted
		// fade-in restarts its fade-out from full weight, so the pair always sums to 1.
		c.retiring = c.active
		c.retiring.Weight = 1
		c.active = next
		c.elapsed = 0
	}

	c.metrics.ClipTransition(name)
	c.logger.Debug().
		Str("clip", name).
		Str("state", c.State().String()).
		Msg("Clip started")

	return nil
}

// Advance moves the clip cursors and the cross-fade forward by dt seconds.
func (c *ClipController) Advance(dt float64) {
	if c.active == nil || dt < 0 {
		return
	}

	c.active.advance(dt)
	if c.retiring == nil {
		return
	}

	c.retiring.advance(dt)
	c.elapsed += dt

	if c.elapsed >= c.fade {
		c.retiring = nil
		c.active.Weight = 1
		c.elapsed = 0
		return
	}

	ratio := c.elapsed / c.fade
	c.active.Weight = math.Min(1, ratio)
	c.retiring.Weight = math.Max(0, 1-ratio)
}

func (c *ClipController) State() ClipState {
	switch {
	case c.active == nil:
		return ClipIdle
	case c.retiring != nil:
		return ClipTransitioning
	default:
		return ClipSteady
	}
}

func (c *ClipController) Active() *ClipAction {
	return c.active
}

func (c *ClipController) Retiring() *ClipAction {
	return c.retiring
}

// Elapsed is the time spent in the current cross-fade.
func (c *ClipController) Elapsed() float64 {
	return c.elapsed
}

func (c *ClipController) FadeDuration() float64 {
	return c.fade
}

// Pose lists the weighted clip samples, active first.
func (c *ClipController) Pose() []PoseSample {
	if c.active == nil {
		return nil
	}
	pose := make([]PoseSample, 0, 2)
	pose = append(pose, PoseSample{Clip: c.active.Clip.Name, Time: c.active.Time, Weight: c.active.Weight})
	if c.retiring != nil {
		pose = append(pose, PoseSample{Clip: c.retiring.Clip.Name, Time: c.retiring.Time, Weight: c.retiring.Weight})
	}
	return pose
}
