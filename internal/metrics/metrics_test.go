package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.Tick()
	m.Tick()
	m.StaleTick()
	m.Viseme("A")
	m.Gap()
	m.ClipTransition("Idle")
	m.SetLipSyncRunning(true)
	m.ObserveFrame(0.004)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LipSyncTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StaleTicks))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VisemesApplied.WithLabelValues("A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CueGaps))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClipTransitions.WithLabelValues("Idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LipSyncRunning))

	m.SetLipSyncRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LipSyncRunning))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Tick()
		m.StaleTick()
		m.Viseme("B")
		m.Gap()
		m.ClipTransition("Talking")
		m.SetLipSyncRunning(true)
		m.ObserveFrame(0.01)
	})
}
