package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// CueDocument is a parsed Rhubarb Lip Sync export.
type CueDocument struct {
	SoundFile string
	Duration  float64
	Cues      []avatar3d.MouthCue
	// Dropped counts cues skipped for an unknown mouth shape.
	Dropped int
}

// ParseCues reads {"metadata": {...}, "mouthCues": [{"start", "end", "value"}]}.
// Cues with an unknown shape are dropped; any ordering or overlap problem rejects
// the whole document.
func ParseCues(data []byte, logger zerolog.Logger) (*CueDocument, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: malformed json", avatar3d.ErrInvalidCues)
	}

	root := gjson.ParseBytes(data)
	list := root.Get("mouthCues")
	if !list.Exists() || !list.IsArray() {
		return nil, fmt.Errorf("%w: mouthCues missing", avatar3d.ErrInvalidCues)
	}

	doc := &CueDocument{
		SoundFile: root.Get("metadata.soundFile").String(),
		Duration:  root.Get("metadata.duration").Float(),
		Cues:      make([]avatar3d.MouthCue, 0, int(list.Get("#").Int())),
	}

	var parseErr error
	list.ForEach(func(key, v gjson.Result) bool {
		start, end, value := v.Get("start"), v.Get("end"), v.Get("value")
		if start.Type != gjson.Number || end.Type != gjson.Number {
			parseErr = fmt.Errorf("%w: cue %d has no numeric start/end", avatar3d.ErrInvalidCues, key.Int())
			return false
		}

		code, err := avatar3d.ParseVisemeCode(value.String())
		if err != nil {
			doc.Dropped++
			logger.Warn().Err(err).Int64("cue", key.Int()).Float64("start", start.Float()).Msg("Mouth cue dropped")
			return true
		}

		doc.Cues = append(doc.Cues, avatar3d.MouthCue{
			Start: start.Float(),
			End:   end.Float(),
			Value: code,
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	if len(doc.Cues) == 0 {
		return nil, avatar3d.ErrEmptyCueList
	}
	if err := avatar3d.ValidateCues(doc.Cues); err != nil {
		return nil, err
	}
	return doc, nil
}

func LoadCues(path string, logger zerolog.Logger) (*CueDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: cues %s", avatar3d.ErrAssetNotFound, path)
		}
		return nil, fmt.Errorf("read cues: %w", err)
	}
	doc, err := ParseCues(data, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
