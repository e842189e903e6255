package assets

import (
	"context"
	"path/filepath"
	"time"

	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/normanking/avatarsync/internal/bus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Sources lists the files of one avatar session. Relative paths resolve against BaseDir.
type Sources struct {
	BaseDir    string
	Model      string
	Animations []ClipSource
	Cues       string
}

// Loader reads session assets on background goroutines and publishes them on the bus.
type Loader struct {
	events *bus.EventBus
	logger zerolog.Logger
}

func NewLoader(events *bus.EventBus, logger zerolog.Logger) *Loader {
	return &Loader{
		events: events,
		logger: logger.With().Str("component", "assets").Logger(),
	}
}

// LoadAll loads the model, clips and cues concurrently. The model and its clips are
// published together as one ModelReady event once both are in; cues are published
// as soon as they parse. The returned error is the model failure, if any.
func (l *Loader) LoadAll(ctx context.Context, src Sources) error {
	start := time.Now()

	var (
		model *Model
		clips []*avatar3d.AnimationClip
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		m, err := LoadModel(ResolvePath(src.BaseDir, src.Model))
		if err != nil {
			return err
		}
		model = m
		return nil
	})

	g.Go(func() error {
		clips = LoadClips(gctx, src.BaseDir, src.Animations, l.logger)
		return nil
	})

	if src.Cues != "" {
		g.Go(func() error {
			l.loadCues(ResolvePath(src.BaseDir, src.Cues))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		l.logger.Error().Err(err).Str("model", src.Model).Msg("Model failed to load")
		l.events.Publish(bus.Event{
			Type: bus.EventTypeModelFailed,
			Data: map[string]any{"error": err, "path": src.Model},
		})
		return err
	}

	// Manifest clips come last so they win over embedded clips of the same name.
	all := append(model.Clips(), clips...)

	l.logger.Info().
		Str("model", filepath.Base(src.Model)).
		Int("clips", len(all)).
		Dur("elapsed", time.Since(start)).
		Msg("Model loaded")

	l.events.Publish(bus.Event{
		Type: bus.EventTypeModelReady,
		Data: map[string]any{"model": avatar3d.Model(model), "clips": all},
	})
	return nil
}

func (l *Loader) loadCues(path string) {
	doc, err := LoadCues(path, l.logger)
	if err != nil {
		l.logger.Error().Err(err).Str("path", path).Msg("Mouth cues failed to load")
		l.events.Publish(bus.Event{
			Type: bus.EventTypeCuesFailed,
			Data: map[string]any{"error": err, "path": path},
		})
		return
	}
	if doc.Dropped > 0 {
		l.logger.Warn().Int("dropped", doc.Dropped).Msg("Some mouth cues were dropped")
	}
	l.events.Publish(bus.Event{
		Type: bus.EventTypeCuesLoaded,
		Data: map[string]any{"cues": doc.Cues, "path": path, "duration": doc.Duration},
	})
}
