package avatar3d

import (
	"github.com/normanking/avatarsync/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var testLogger = zerolog.Nop()

type fakeClock struct {
	t        float64
	duration float64
	played   bool
	closed   bool
	playErr  error
}

func (c *fakeClock) CurrentTime() float64 { return c.t }
func (c *fakeClock) Duration() float64    { return c.duration }
func (c *fakeClock) Play() error {
	c.played = true
	return c.playErr
}
func (c *fakeClock) Close() error {
	c.closed = true
	return nil
}

type fakeMesh struct {
	name  string
	dict  map[string]int
	count int
}

func (m *fakeMesh) Name() string                          { return m.name }
func (m *fakeMesh) MorphTargetDictionary() map[string]int { return m.dict }
func (m *fakeMesh) MorphTargetCount() int                 { return m.count }

type fakeModel struct {
	meshes map[string]*fakeMesh
}

func (m *fakeModel) FindMesh(name string) (MeshNode, bool) {
	mesh, ok := m.meshes[name]
	if !ok {
		return nil, false
	}
	return mesh, true
}

// headModel returns a model whose head carries every viseme target plus a few
// unrelated ones, the way Ready Player Me heads do.
func headModel() *fakeModel {
	names := []string{
		"eyeBlinkLeft", "viseme_sil", "viseme_PP", "viseme_FF", "viseme_TH",
		"viseme_DD", "viseme_kk", "viseme_CH", "viseme_SS", "viseme_nn",
		"viseme_RR", "viseme_AA", "viseme_E", "viseme_I", "viseme_O", "viseme_U",
	}
	dict := make(map[string]int, len(names))
	for i, n := range names {
		dict[n] = i
	}
	return &fakeModel{meshes: map[string]*fakeMesh{
		DefaultHeadMeshName: {name: DefaultHeadMeshName, dict: dict, count: len(names)},
	}}
}

// frameQueue runs requested callbacks one frame at a time.
type frameQueue struct {
	fns []func()
}

func (q *frameQueue) RequestFrame(fn func()) {
	q.fns = append(q.fns, fn)
}

func (q *frameQueue) run() int {
	batch := q.fns
	q.fns = nil
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func builtRegistry() *MorphRegistry {
	r := NewMorphRegistry("", testLogger)
	if _, err := r.Build(headModel()); err != nil {
		panic(err)
	}
	return r
}

func countNonZero(v []float32) int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}
