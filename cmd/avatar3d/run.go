package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/normanking/avatarsync/internal/assets"
	"github.com/normanking/avatarsync/internal/audio"
	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/normanking/avatarsync/internal/bus"
	"github.com/normanking/avatarsync/internal/config"
	"github.com/normanking/avatarsync/internal/logging"
	"github.com/normanking/avatarsync/internal/metrics"
	"github.com/normanking/avatarsync/internal/renderer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
)

func runAvatar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	autoplay, _ := cmd.Flags().GetBool("autoplay")

	logger, err := logging.New(cfg.Logging, nil)
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Component("main")
	zl := logger.Zerolog()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(reg)
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("initialize glfw: %w", err)
	}
	defer glfw.Terminate()

	rend, err := renderer.New(rendererConfig(cfg), zl)
	if err != nil {
		return err
	}
	defer rend.Shutdown()

	events := bus.NewEventBus()
	loop := avatar3d.NewFrameLoop(events, nil, zl, m)

	player := audio.NewPlayer(cfg.Audio, nil, zl)
	defer player.Close()

	audioPath := assets.ResolvePath(cfg.Assets.BaseDir, cfg.Assets.Audio)
	openAudio := func(ctx context.Context) (avatar3d.AudioTrack, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		track, err := player.Open(audioPath)
		if err != nil {
			return nil, err
		}
		return track, nil
	}

	avatar := avatar3d.NewAvatar(ctx, avatarOptions(cfg), events, loop, openAudio, zl, m)
	defer avatar.Close()

	// The avatar subscribed first, so it has built its registry when the renderer
	// uploads the same model.
	events.Subscribe(bus.EventTypeModelReady, rend.OnModelReady)
	loop.Bind(avatar, rend)

	if autoplay {
		played := false
		events.Subscribe(bus.EventTypeCuesLoaded, func(bus.Event) {
			if !played {
				played = true
				avatar.PlayAudio()
			}
		})
	}

	rend.SetKeyCallback(func(key glfw.Key) {
		switch key {
		case glfw.KeySpace:
			avatar.PlayAudio()
		case glfw.KeyS:
			avatar.StopAudio()
		case glfw.Key1:
			avatar.ChangeAnimation(cfg.Animation.DefaultClip)
		case glfw.Key2:
			avatar.ChangeAnimation(cfg.Animation.TalkingClip)
		case glfw.KeyEscape:
			rend.Close()
		}
	})

	loader := assets.NewLoader(events, zl)
	go func() {
		// Failures are published on the bus; the avatar logs and keeps idling.
		_ = loader.LoadAll(ctx, assetSources(cfg))
	}()

	if cfg.Assets.WatchCues && cfg.Assets.Cues != "" {
		watcher, err := assets.NewCueWatcher(assets.ResolvePath(cfg.Assets.BaseDir, cfg.Assets.Cues), events, zl)
		if err != nil {
			log.Warn().Err(err).Msg("Cue hot reload disabled")
		} else {
			defer watcher.Close()
		}
	}

	log.Info().
		Str("version", version).
		Str("model", cfg.Assets.Model).
		Str("gap_policy", cfg.LipSync.GapPolicy).
		Msg("Avatar viewer started")

	loop.Run(ctx, rend.ShouldClose)

	if cfg.Metrics.Dump != "" {
		if err := dumpMetrics(reg, cfg.Metrics.Dump); err != nil {
			log.Error().Err(err).Str("path", cfg.Metrics.Dump).Msg("Metrics dump failed")
		}
	}
	return nil
}

func rendererConfig(cfg *config.Config) renderer.Config {
	rc := renderer.DefaultConfig()
	rc.Width = cfg.Window.Width
	rc.Height = cfg.Window.Height
	rc.Title = cfg.Window.Title
	rc.VSync = cfg.Window.VSync
	rc.CameraPosition = mgl32.Vec3(cfg.Scene.Camera.Position)
	rc.FOV = cfg.Scene.Camera.FOV
	rc.Near = cfg.Scene.Camera.Near
	rc.Far = cfg.Scene.Camera.Far
	rc.HeadMesh = cfg.LipSync.HeadMesh
	return rc
}

func avatarOptions(cfg *config.Config) avatar3d.Options {
	opts := avatar3d.DefaultOptions()
	opts.HeadMeshName = cfg.LipSync.HeadMesh
	opts.FadeDuration = cfg.Animation.FadeDuration
	opts.DefaultClip = cfg.Animation.DefaultClip
	opts.TalkingClip = cfg.Animation.TalkingClip
	opts.GapPolicy = cfg.GapPolicy()
	opts.Position = mgl32.Vec3(cfg.Scene.Position)
	opts.Scale = cfg.Scene.Scale
	opts.FaceViewer = cfg.Scene.FaceViewer
	opts.Viewer = mgl32.Vec3(cfg.Scene.Camera.Position)
	opts.ViewerOffsetX = cfg.Scene.ViewerOffsetX
	return opts
}

func assetSources(cfg *config.Config) assets.Sources {
	src := assets.Sources{
		BaseDir: cfg.Assets.BaseDir,
		Model:   cfg.Assets.Model,
		Cues:    cfg.Assets.Cues,
	}
	for _, clip := range cfg.Assets.Animations {
		src.Animations = append(src.Animations, assets.ClipSource(clip))
	}
	return src
}

// dumpMetrics writes every gathered family in the text exposition format.
func dumpMetrics(reg prometheus.Gatherer, path string) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(f, mf); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}
