package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/wav"
	"github.com/rs/zerolog"
)

// Player owns the audio output. The output is initialized on first playback.
type Player struct {
	mu          sync.Mutex
	out         Output
	cfg         Config
	sampleRate  beep.SampleRate
	initialized bool
	logger      zerolog.Logger
}

func NewPlayer(cfg Config, out Output, logger zerolog.Logger) *Player {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = int(DefaultSampleRate)
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}
	if out == nil {
		out = SpeakerOutput()
	}
	return &Player{
		out:        out,
		cfg:        cfg,
		sampleRate: beep.SampleRate(cfg.SampleRate),
		logger:     logger.With().Str("component", "audio").Logger(),
	}
}

// Init opens the output device. It is safe to call more than once.
func (p *Player) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := p.out.Init(p.sampleRate, p.sampleRate.N(p.cfg.Buffer)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	p.initialized = true
	p.logger.Info().Int("sample_rate", int(p.sampleRate)).Msg("Audio output ready")
	return nil
}

// Open decodes a WAV file into a track ready to play.
func (p *Player) Open(path string) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	track, err := p.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return track, nil
}

// Decode reads WAV data from r. The track closes r when it is closed.
func (p *Player) Decode(r io.ReadCloser) (*Track, error) {
	streamer, format, err := wav.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode wav: %w", ErrInvalidFormat, err)
	}
	return newTrack(p, streamer, format), nil
}

// Close stops everything playing on the output.
func (p *Player) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		p.out.Clear()
	}
}

// Track is one decoded audio file. Its position is read under the output lock, as
// the output goroutine advances it.
type Track struct {
	player   *Player
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl

	mu    sync.Mutex
	state TrackState
	done  chan struct{}
	once  sync.Once
}

func newTrack(p *Player, streamer beep.StreamSeekCloser, format beep.Format) *Track {
	return &Track{
		player:   p,
		streamer: streamer,
		format:   format,
		state:    StateLoaded,
		done:     make(chan struct{}),
	}
}

// Play starts the track from its current position.
func (t *Track) Play() error {
	t.mu.Lock()
	switch t.state {
	case StateClosed:
		t.mu.Unlock()
		return ErrTrackClosed
	case StatePlaying:
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.player.Init(); err != nil {
		return err
	}

	var s beep.Streamer = t.streamer
	if rate := t.player.sampleRate; t.format.SampleRate != rate {
		s = beep.Resample(4, t.format.SampleRate, rate, s)
	}
	ctrl := &beep.Ctrl{Streamer: s}

	vol := t.player.cfg.Volume
	volume := &effects.Volume{
		Streamer: ctrl,
		Base:     2,
		Silent:   vol <= 0,
	}
	if vol > 0 {
		volume.Volume = math.Log2(vol)
	}

	t.mu.Lock()
	t.ctrl = ctrl
	t.state = StatePlaying
	t.mu.Unlock()

	// The output takes its own lock; t.mu must not be held here.
	t.player.out.Play(beep.Seq(volume, beep.Callback(t.finish)))
	return nil
}

func (t *Track) finish() {
	t.once.Do(func() { close(t.done) })
	t.mu.Lock()
	if t.state == StatePlaying {
		t.state = StateFinished
	}
	t.mu.Unlock()
}

// CurrentTime is the playback position in seconds.
func (t *Track) CurrentTime() float64 {
	t.player.out.Lock()
	pos := t.streamer.Position()
	t.player.out.Unlock()
	return t.format.SampleRate.D(pos).Seconds()
}

// Duration is the track length in seconds.
func (t *Track) Duration() float64 {
	return t.format.SampleRate.D(t.streamer.Len()).Seconds()
}

func (t *Track) State() TrackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Done is closed when playback reaches the end or the track is closed.
func (t *Track) Done() <-chan struct{} {
	return t.done
}

// Close stops playback and releases the decoder.
func (t *Track) Close() error {
	t.mu.Lock()
	if t.state == StateClosed {
		t.mu.Unlock()
		return nil
	}
	t.state = StateClosed
	ctrl := t.ctrl
	t.mu.Unlock()

	if ctrl != nil {
		t.player.out.Lock()
		ctrl.Streamer = nil
		t.player.out.Unlock()
	}
	t.once.Do(func() { close(t.done) })
	return t.streamer.Close()
}
