// Package audio decodes and plays the speech track the avatar lip-syncs to, and
// exposes its playback position as the clock the scheduler polls.
package audio

import (
	"errors"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

var (
	ErrInvalidFormat = errors.New("invalid audio format")
	ErrTrackClosed   = errors.New("audio track closed")
)

// DefaultSampleRate is the speaker rate; tracks at other rates are resampled.
const DefaultSampleRate = beep.SampleRate(44100)

// TrackState is the lifecycle of one track.
type TrackState string

const (
	StateLoaded   TrackState = "loaded"
	StatePlaying  TrackState = "playing"
	StateFinished TrackState = "finished"
	StateClosed   TrackState = "closed"
)

// Config holds audio output settings.
type Config struct {
	SampleRate int           `mapstructure:"sample_rate"`
	Buffer     time.Duration `mapstructure:"buffer"`
	Volume     float64       `mapstructure:"volume"` // 0.0 to 1.0
}

func DefaultConfig() Config {
	return Config{
		SampleRate: int(DefaultSampleRate),
		Buffer:     time.Second / 30,
		Volume:     1.0,
	}
}

// Output is the sink tracks are played on. The speaker package satisfies it.
type Output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
	Clear()
}

type speakerOutput struct{}

func (speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}
func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Lock()                   { speaker.Lock() }
func (speakerOutput) Unlock()                 { speaker.Unlock() }
func (speakerOutput) Clear()                  { speaker.Clear() }

// SpeakerOutput plays through the system audio device.
func SpeakerOutput() Output {
	return speakerOutput{}
}
