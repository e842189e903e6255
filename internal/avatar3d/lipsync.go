package avatar3d

import (
	"fmt"
	"sort"
	"time"

	"github.com/normanking/avatarsync/internal/metrics"
	"github.com/rs/zerolog"
)

// AudioClock is the playback position of the audio track, in seconds.
// It advances on its own; the scheduler only polls it.
type AudioClock interface {
	CurrentTime() float64
	Duration() float64
}

// FrameRequester queues a callback for the next display frame.
type FrameRequester interface {
	RequestFrame(fn func())
}

// GapPolicy decides what happens to the mouth when no cue covers the audio time.
type GapPolicy string

const (
	GapHold    GapPolicy = "hold"
	GapNeutral GapPolicy = "neutral"
)

func ParseGapPolicy(s string) (GapPolicy, error) {
	switch GapPolicy(s) {
	case GapHold, "":
		return GapHold, nil
	case GapNeutral:
		return GapNeutral, nil
	}
	return "", fmt.Errorf("unknown gap policy %q", s)
}

// LipSyncScheduler walks the cue list in step with the audio clock, one tick per
// frame. Every Start opens a new generation; ticks queued by an older generation
// are dropped when they fire.
type LipSyncScheduler struct {
	cues       []MouthCue
	clock      AudioClock
	running    bool
	generation uint64
	startedAt  time.Time

	registry *MorphRegistry
	frames   FrameRequester
	gap      GapPolicy
	now      func() time.Time

	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewLipSyncScheduler(registry *MorphRegistry, frames FrameRequester, gap GapPolicy, logger zerolog.Logger, m *metrics.Metrics) *LipSyncScheduler {
	if gap == "" {
		gap = GapHold
	}
	return &LipSyncScheduler{
		registry: registry,
		frames:   frames,
		gap:      gap,
		now:      time.Now,
		logger:   logger.With().Str("component", "lipsync").Logger(),
		metrics:  m,
	}
}

// Start begins a new run over cues, cancelling any run in flight.
func (s *LipSyncScheduler) Start(cues []MouthCue, clock AudioClock) error {
	if len(cues) == 0 {
		return ErrEmptyCueList
	}
	if clock == nil {
		return fmt.Errorf("lipsync: nil audio clock")
	}

	s.generation++
	s.cues = cues
	s.clock = clock
	s.running = true
	s.startedAt = s.now()
	s.metrics.SetLipSyncRunning(true)

	s.logger.Info().
		Int("cues", len(cues)).
		Uint64("generation", s.generation).
		Float64("duration", clock.Duration()).
		Msg("Lip sync started")

	s.schedule(s.generation)
	return nil
}

// Cancel stops the current run. A tick already queued for it becomes a no-op.
func (s *LipSyncScheduler) Cancel() {
	if s.running {
		s.logger.Info().Uint64("generation", s.generation).Msg("Lip sync cancelled")
	}
	s.running = false
	s.generation++
	s.metrics.SetLipSyncRunning(false)
}

// Tick applies the cue for the current audio time without queueing another
// tick. Only the run's own chain extends itself, so a live run still steps once
// per frame.
func (s *LipSyncScheduler) Tick() {
	s.step(s.generation)
}

func (s *LipSyncScheduler) schedule(gen uint64) {
	s.frames.RequestFrame(func() { s.tick(gen) })
}

func (s *LipSyncScheduler) tick(gen uint64) {
	if s.step(gen) {
		s.schedule(gen)
	}
}

// step runs one tick of generation gen and reports whether the run continues.
func (s *LipSyncScheduler) step(gen uint64) bool {
	if gen != s.generation || !s.running {
		s.metrics.StaleTick()
		return false
	}
	s.metrics.Tick()

	t := s.clock.CurrentTime()

	if cue, ok := s.CueAt(t); ok {
		s.apply(cue)
	} else {
		s.metrics.Gap()
		if s.gap == GapNeutral {
			s.registry.ResetAll()
		}
	}

	if t >= s.clock.Duration() {
		s.running = false
		s.metrics.SetLipSyncRunning(false)
		s.logger.Info().
			Uint64("generation", gen).
			Float64("audio_time", t).
			Dur("wall", s.now().Sub(s.startedAt)).
			Msg("Lip sync finished")
		return false
	}
	return true
}

func (s *LipSyncScheduler) apply(cue MouthCue) {
	name, err := MapViseme(cue.Value)
	if err != nil {
		s.logger.Warn().Err(err).Float64("start", cue.Start).Msg("Cue ignored")
		return
	}
	s.registry.SetInfluence(name)
	s.metrics.Viseme(cue.Value.String())
}

// CueAt returns the earliest cue with Start <= t <= End.
func (s *LipSyncScheduler) CueAt(t float64) (MouthCue, bool) {
	return findCue(s.cues, t)
}

func findCue(cues []MouthCue, t float64) (MouthCue, bool) {
	// Cues are ascending and non-overlapping, so ends are ascending too.
	i := sort.Search(len(cues), func(i int) bool { return cues[i].End >= t })
	if i < len(cues) && cues[i].Contains(t) {
		return cues[i], true
	}
	return MouthCue{}, false
}

func (s *LipSyncScheduler) Running() bool {
	return s.running
}

func (s *LipSyncScheduler) Generation() uint64 {
	return s.generation
}

func (s *LipSyncScheduler) GapPolicy() GapPolicy {
	return s.gap
}
