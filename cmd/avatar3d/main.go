// Command avatar3d renders a glTF avatar, cross-fades its body clips and lip-syncs
// its face to a prerecorded audio track.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/normanking/avatarsync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func init() {
	// GLFW and the GL context must stay on the main thread.
	runtime.LockOSThread()
}

var (
	version = "0.1.0"
	cfgPath string
	v       = config.NewViper()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "avatar3d",
		Short: "Lip-synced 3D avatar viewer",
		Long: `avatar3d loads a glTF avatar with its animation clips and plays a voice
track while driving the face's viseme morph targets from Rhubarb mouth cues.

Run the viewer:          avatar3d --base-dir ./public
Inspect a model:         avatar3d inspect models/avatar.glb
Check a cue file:        avatar3d cues audios/audio.json

Keys: Space plays the audio, S stops it, 1 and 2 switch between the idle and
talking clips, Esc quits.`,
		SilenceUsage: true,
		RunE:         runAvatar,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (YAML)")
	rootCmd.PersistentFlags().String("base-dir", "", "directory relative asset paths resolve against")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("head-mesh", "", "node or mesh carrying the viseme morph targets")
	bindFlags(v, rootCmd, map[string]string{
		"base-dir":  "assets.base_dir",
		"log-level": "logging.level",
		"head-mesh": "lipsync.head_mesh",
	})

	rootCmd.Flags().String("model", "", "avatar model (.glb or .gltf)")
	rootCmd.Flags().String("audio", "", "voice track (.wav)")
	rootCmd.Flags().String("cues", "", "Rhubarb mouth cue document (.json)")
	rootCmd.Flags().String("gap-policy", "", "between cues: hold or neutral")
	rootCmd.Flags().Float64("fade", 0, "clip cross-fade in seconds")
	rootCmd.Flags().Int("width", 0, "window width")
	rootCmd.Flags().Int("height", 0, "window height")
	rootCmd.Flags().String("metrics-dump", "", "write metrics in text format to this file on exit")
	rootCmd.Flags().Bool("autoplay", false, "start the audio as soon as the cues are loaded")
	bindFlags(v, rootCmd, map[string]string{
		"model":        "assets.model",
		"audio":        "assets.audio",
		"cues":         "assets.cues",
		"gap-policy":   "lipsync.gap_policy",
		"fade":         "animation.fade_duration",
		"width":        "window.width",
		"height":       "window.height",
		"metrics-dump": "metrics.dump",
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "avatar3d v%s\n", version)
		},
	})

	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(cuesCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// bindFlags binds each flag onto its viper key. Unset flags leave the key to the
// config file, environment or default.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for name, key := range keys {
		flag := cmd.PersistentFlags().Lookup(name)
		if flag == nil {
			flag = cmd.Flags().Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("flag %q not defined", name))
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(v, cfgPath)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			out, err := yaml.Marshal(v.AllSettings())
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "write [path]",
		Short: "Write the effective configuration to a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := config.Save(cfg, args[0]); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", args[0])
			return nil
		},
	})

	return cmd
}
