package assets

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ClipSource names one animation file. The file's first animation is renamed to Name.
type ClipSource struct {
	Name string `mapstructure:"name"`
	File string `mapstructure:"file"`
}

// maxClipLoads bounds concurrent clip file decodes.
const maxClipLoads = 4

// LoadClips loads every source concurrently. Clips that fail to load are logged and
// skipped; the returned slice keeps the order of sources.
func LoadClips(ctx context.Context, baseDir string, sources []ClipSource, logger zerolog.Logger) []*avatar3d.AnimationClip {
	loaded := make([]*avatar3d.AnimationClip, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxClipLoads)

	for i, src := range sources {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			clip, err := LoadClip(ResolvePath(baseDir, src.File), src.Name)
			if err != nil {
				logger.Warn().Err(err).Str("clip", src.Name).Str("file", src.File).Msg("Animation skipped")
				return nil
			}
			loaded[i] = clip
			return nil
		})
	}
	_ = g.Wait()

	clips := make([]*avatar3d.AnimationClip, 0, len(loaded))
	for _, clip := range loaded {
		if clip != nil {
			clips = append(clips, clip)
		}
	}
	return clips
}

// LoadClip reads the first animation of a glTF file as a clip called name.
func LoadClip(path, name string) (*avatar3d.AnimationClip, error) {
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	doc := model.Document()
	if len(doc.Animations) == 0 {
		return nil, fmt.Errorf("%w: no animation in %s", avatar3d.ErrClipNotFound, path)
	}
	clip := clipFromAnimation(doc, 0, name)
	if clip == nil {
		return nil, fmt.Errorf("%w: empty animation in %s", avatar3d.ErrClipNotFound, path)
	}
	return clip, nil
}

// ResolvePath joins a relative asset path onto baseDir.
func ResolvePath(baseDir, file string) string {
	if baseDir == "" || filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(baseDir, file)
}
