// Package config provides configuration management for the avatar viewer
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/normanking/avatarsync/internal/audio"
	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/normanking/avatarsync/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AVATARSYNC_LIPSYNC_GAP_POLICY.
const EnvPrefix = "AVATARSYNC"

// Config holds all application configuration
type Config struct {
	Window    WindowConfig    `mapstructure:"window"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Audio     audio.Config    `mapstructure:"audio"`
	Animation AnimationConfig `mapstructure:"animation"`
	LipSync   LipSyncConfig   `mapstructure:"lipsync"`
	Scene     SceneConfig     `mapstructure:"scene"`
	Logging   logging.Config  `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// WindowConfig configures the window
type WindowConfig struct {
	Title  string `mapstructure:"title"`
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	VSync  bool   `mapstructure:"vsync"`
}

// ClipConfig names one animation file.
type ClipConfig struct {
	Name string `mapstructure:"name"`
	File string `mapstructure:"file"`
}

// AssetsConfig locates the session files. Relative paths resolve against BaseDir.
type AssetsConfig struct {
	BaseDir    string       `mapstructure:"base_dir"`
	Model      string       `mapstructure:"model"`
	Animations []ClipConfig `mapstructure:"animations"`
	Audio      string       `mapstructure:"audio"`
	Cues       string       `mapstructure:"cues"`
	WatchCues  bool         `mapstructure:"watch_cues"`
}

// AnimationConfig configures body clip playback
type AnimationConfig struct {
	FadeDuration float64 `mapstructure:"fade_duration"` // seconds
	DefaultClip  string  `mapstructure:"default_clip"`
	TalkingClip  string  `mapstructure:"talking_clip"`
}

// LipSyncConfig configures the viseme scheduler
type LipSyncConfig struct {
	HeadMesh  string `mapstructure:"head_mesh"`
	GapPolicy string `mapstructure:"gap_policy"` // hold or neutral
}

// CameraConfig is the fixed viewer camera.
type CameraConfig struct {
	Position [3]float32 `mapstructure:"position"`
	FOV      float32    `mapstructure:"fov"` // degrees
	Near     float32    `mapstructure:"near"`
	Far      float32    `mapstructure:"far"`
}

// SceneConfig places the model and camera
type SceneConfig struct {
	Position      [3]float32   `mapstructure:"position"`
	Scale         float32      `mapstructure:"scale"`
	FaceViewer    bool         `mapstructure:"face_viewer"`
	ViewerOffsetX float32      `mapstructure:"viewer_offset_x"`
	Camera        CameraConfig `mapstructure:"camera"`
}

// MetricsConfig configures the prometheus registry
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Dump writes the registry in text format to this path on exit.
	Dump string `mapstructure:"dump"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Window: WindowConfig{
			Title:  "Avatar",
			Width:  1280,
			Height: 720,
			VSync:  true,
		},
		Assets: AssetsConfig{
			Model: "models/avatar.glb",
			Animations: []ClipConfig{
				{Name: "Idle", File: "animations/Idle.glb"},
				{Name: "Talking", File: "animations/Talking.glb"},
			},
			Audio:     "audios/audio.wav",
			Cues:      "audios/audio.json",
			WatchCues: true,
		},
		Audio: audio.DefaultConfig(),
		Animation: AnimationConfig{
			FadeDuration: avatar3d.DefaultFadeDuration,
			DefaultClip:  "Idle",
			TalkingClip:  "Talking",
		},
		LipSync: LipSyncConfig{
			HeadMesh:  avatar3d.DefaultHeadMeshName,
			GapPolicy: string(avatar3d.GapHold),
		},
		Scene: SceneConfig{
			Position:      [3]float32{0, -3.5, 0},
			Scale:         2.5,
			FaceViewer:    true,
			ViewerOffsetX: 0.3,
			Camera: CameraConfig{
				Position: [3]float32{1, 0.75, 1.5},
				FOV:      70,
				Near:     0.1,
				Far:      100,
			},
		},
		Logging: logging.DefaultConfig(),
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// NewViper returns a viper instance with defaults and environment overrides set.
// Flags are bound onto it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, DefaultConfig())
	return v
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("window.title", cfg.Window.Title)
	v.SetDefault("window.width", cfg.Window.Width)
	v.SetDefault("window.height", cfg.Window.Height)
	v.SetDefault("window.vsync", cfg.Window.VSync)

	v.SetDefault("assets.base_dir", cfg.Assets.BaseDir)
	v.SetDefault("assets.model", cfg.Assets.Model)
	v.SetDefault("assets.animations", cfg.Assets.Animations)
	v.SetDefault("assets.audio", cfg.Assets.Audio)
	v.SetDefault("assets.cues", cfg.Assets.Cues)
	v.SetDefault("assets.watch_cues", cfg.Assets.WatchCues)

	v.SetDefault("audio.sample_rate", cfg.Audio.SampleRate)
	v.SetDefault("audio.buffer", cfg.Audio.Buffer)
	v.SetDefault("audio.volume", cfg.Audio.Volume)

	v.SetDefault("animation.fade_duration", cfg.Animation.FadeDuration)
	v.SetDefault("animation.default_clip", cfg.Animation.DefaultClip)
	v.SetDefault("animation.talking_clip", cfg.Animation.TalkingClip)

	v.SetDefault("lipsync.head_mesh", cfg.LipSync.HeadMesh)
	v.SetDefault("lipsync.gap_policy", cfg.LipSync.GapPolicy)

	v.SetDefault("scene.position", cfg.Scene.Position)
	v.SetDefault("scene.scale", cfg.Scene.Scale)
	v.SetDefault("scene.face_viewer", cfg.Scene.FaceViewer)
	v.SetDefault("scene.viewer_offset_x", cfg.Scene.ViewerOffsetX)
	v.SetDefault("scene.camera.position", cfg.Scene.Camera.Position)
	v.SetDefault("scene.camera.fov", cfg.Scene.Camera.FOV)
	v.SetDefault("scene.camera.near", cfg.Scene.Camera.Near)
	v.SetDefault("scene.camera.far", cfg.Scene.Camera.Far)

	v.SetDefault("logging.level", string(cfg.Logging.Level))
	v.SetDefault("logging.console", cfg.Logging.Console)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", cfg.Logging.Compress)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.dump", cfg.Metrics.Dump)
}

// Load reads the config file at path, if any, applies environment overrides and
// validates the result. A missing path means defaults plus environment.
func Load(v *viper.Viper, path string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, cfg)
	for _, key := range v.AllKeys() {
		v.Set(key, v.Get(key))
	}
	return v.WriteConfigAs(path)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height))
	}
	if c.Assets.Model == "" {
		errs = append(errs, errors.New("assets.model is required"))
	}
	for i, clip := range c.Assets.Animations {
		if clip.Name == "" || clip.File == "" {
			errs = append(errs, fmt.Errorf("assets.animations[%d] needs a name and a file", i))
		}
	}
	if c.Animation.FadeDuration < 0 || math.IsNaN(c.Animation.FadeDuration) {
		errs = append(errs, fmt.Errorf("animation.fade_duration %v must not be negative", c.Animation.FadeDuration))
	}
	if c.LipSync.HeadMesh == "" {
		errs = append(errs, errors.New("lipsync.head_mesh is required"))
	}
	if _, err := avatar3d.ParseGapPolicy(c.LipSync.GapPolicy); err != nil {
		errs = append(errs, fmt.Errorf("lipsync.gap_policy: %w", err))
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 1 {
		errs = append(errs, fmt.Errorf("audio.volume %v outside [0,1]", c.Audio.Volume))
	}
	if c.Audio.Buffer < time.Millisecond {
		errs = append(errs, fmt.Errorf("audio.buffer %v too small", c.Audio.Buffer))
	}
	if c.Scene.Scale <= 0 {
		errs = append(errs, fmt.Errorf("scene.scale %v must be positive", c.Scene.Scale))
	}
	if fov := c.Scene.Camera.FOV; fov <= 0 || fov >= 180 {
		errs = append(errs, fmt.Errorf("scene.camera.fov %v outside (0,180)", fov))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// GapPolicy returns the parsed lip-sync gap policy. Call after Validate.
func (c *Config) GapPolicy() avatar3d.GapPolicy {
	p, _ := avatar3d.ParseGapPolicy(c.LipSync.GapPolicy)
	return p
}
