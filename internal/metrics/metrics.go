// Package metrics holds the prometheus instruments for the avatar frame loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector the avatar core records into. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	LipSyncTicks    prometheus.Counter
	StaleTicks      prometheus.Counter
	VisemesApplied  *prometheus.CounterVec
	CueGaps         prometheus.Counter
	ClipTransitions *prometheus.CounterVec
	LipSyncRunning  prometheus.Gauge
	FrameDuration   prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		LipSyncTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "avatarsync_lipsync_ticks_total",
			Help: "Lip-sync ticks that read the audio clock",
		}),
		StaleTicks: f.NewCounter(prometheus.CounterOpts{
			Name: "avatarsync_lipsync_stale_ticks_total",
			Help: "Queued lip-sync ticks dropped because their generation was cancelled",
		}),
		VisemesApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarsync_visemes_applied_total",
			Help: "Viseme poses written to the influence vector",
		}, []string{"viseme"}),
		CueGaps: f.NewCounter(prometheus.CounterOpts{
			Name: "avatarsync_lipsync_cue_gaps_total",
			Help: "Ticks whose audio time fell between cues",
		}),
		ClipTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "avatarsync_clip_transitions_total",
			Help: "Animation clip play requests that were accepted",
		}, []string{"clip"}),
		LipSyncRunning: f.NewGauge(prometheus.GaugeOpts{
			Name: "avatarsync_lipsync_running",
			Help: "1 while a lip-sync run is active",
		}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "avatarsync_frame_duration_seconds",
			Help:    "Time spent in one frame step",
			Buckets: []float64{0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066},
		}),
	}
}

func (m *Metrics) Tick() {
	if m == nil {
		return
	}
	m.LipSyncTicks.Inc()
}

func (m *Metrics) StaleTick() {
	if m == nil {
		return
	}
	m.StaleTicks.Inc()
}

func (m *Metrics) Viseme(code string) {
	if m == nil {
		return
	}
	m.VisemesApplied.WithLabelValues(code).Inc()
}

func (m *Metrics) Gap() {
	if m == nil {
		return
	}
	m.CueGaps.Inc()
}

func (m *Metrics) ClipTransition(clip string) {
	if m == nil {
		return
	}
	m.ClipTransitions.WithLabelValues(clip).Inc()
}

func (m *Metrics) SetLipSyncRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.LipSyncRunning.Set(1)
		return
	}
	m.LipSyncRunning.Set(0)
}

func (m *Metrics) ObserveFrame(seconds float64) {
	if m == nil {
		return
	}
	m.FrameDuration.Observe(seconds)
}
