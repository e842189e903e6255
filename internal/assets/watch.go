package assets

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/normanking/avatarsync/internal/bus"
	"github.com/rs/zerolog"
)

// CueWatcher re-reads the cue document whenever it is rewritten and publishes the
// result. The avatar picks up the new set on its next playback.
type CueWatcher struct {
	watcher *fsnotify.Watcher
	path    string
	events  *bus.EventBus
	logger  zerolog.Logger
	done    chan struct{}
	stopped chan struct{}
}

func NewCueWatcher(path string, events *bus.EventBus, logger zerolog.Logger) (*CueWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve cue path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Editors often replace the file instead of writing it in place, so watch the directory.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	cw := &CueWatcher{
		watcher: watcher,
		path:    abs,
		events:  events,
		logger:  logger.With().Str("component", "cue_watcher").Logger(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	go cw.watchLoop()

	return cw, nil
}

func (cw *CueWatcher) watchLoop() {
	defer close(cw.stopped)
	for {
		select {
		case <-cw.done:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				cw.reload()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Warn().Err(err).Msg("Cue watcher error")
		}
	}
}

func (cw *CueWatcher) reload() {
	doc, err := LoadCues(cw.path, cw.logger)
	if err != nil {
		// A half-written file fails here; the closing write triggers another reload.
		cw.logger.Debug().Err(err).Msg("Cue reload failed")
		cw.events.Publish(bus.Event{
			Type: bus.EventTypeCuesFailed,
			Data: map[string]any{"error": err, "path": cw.path},
		})
		return
	}
	cw.logger.Info().Int("cues", len(doc.Cues)).Msg("Mouth cues reloaded")
	cw.events.Publish(bus.Event{
		Type: bus.EventTypeCuesLoaded,
		Data: map[string]any{"cues": doc.Cues, "path": cw.path},
	})
}

func (cw *CueWatcher) Path() string {
	return cw.path
}

// Close stops the watcher.
func (cw *CueWatcher) Close() error {
	close(cw.done)
	err := cw.watcher.Close()
	<-cw.stopped
	return err
}
