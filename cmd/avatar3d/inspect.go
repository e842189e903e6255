package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/normanking/avatarsync/internal/assets"
	"github.com/normanking/avatarsync/internal/avatar3d"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [model]",
		Short: "List a model's meshes, viseme targets and animation clips",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			model, err := assets.LoadModel(args[0])
			if err != nil {
				return err
			}
			return describeModel(cmd.OutOrStdout(), model, cfg.LipSync.HeadMesh)
		},
	}
}

func describeModel(w io.Writer, model *assets.Model, headMesh string) error {
	doc := model.Document()
	fmt.Fprintf(w, "Model: %s\n\n", model.Path())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MESH\tPRIMITIVES\tTARGETS")
	for i, mesh := range doc.Meshes {
		if mesh == nil {
			continue
		}
		name := mesh.Name
		if name == "" {
			name = fmt.Sprintf("mesh_%d", i)
		}
		targets := 0
		if len(mesh.Primitives) > 0 && mesh.Primitives[0] != nil {
			targets = len(mesh.Primitives[0].Targets)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", name, len(mesh.Primitives), targets)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nHead mesh %q: ", headMesh)
	registry := avatar3d.NewMorphRegistry(headMesh, zerolog.Nop())
	if _, err := registry.Build(model); err != nil {
		fmt.Fprintf(w, "%v\n", err)
	} else {
		fmt.Fprintf(w, "%d morph targets\n", registry.Len())
		dict := registry.Dictionary()
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VISEME\tTARGET\tINDEX")
		for _, code := range avatar3d.AllVisemeCodes() {
			target, _ := avatar3d.MapViseme(code)
			idx, ok := dict[target]
			if !ok {
				fmt.Fprintf(tw, "%s\t%s\tmissing\n", code, target)
				continue
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\n", code, target, idx)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	clips := model.Clips()
	fmt.Fprintf(w, "\nEmbedded clips: %d\n", len(clips))
	sort.Slice(clips, func(i, j int) bool { return clips[i].Name < clips[j].Name })
	for _, clip := range clips {
		fmt.Fprintf(w, "  %s  %.2fs  %d channels\n", clip.Name, clip.Duration, len(clip.Track.Channels))
	}
	return nil
}

func cuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cues [file]",
		Short: "Validate a Rhubarb mouth cue document and summarize it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := assets.LoadCues(args[0], zerolog.Nop())
			if err != nil {
				return err
			}
			return describeCues(cmd.OutOrStdout(), doc)
		},
	}
}

func describeCues(w io.Writer, doc *assets.CueDocument) error {
	if doc.SoundFile != "" {
		fmt.Fprintf(w, "Sound file: %s\n", doc.SoundFile)
	}
	if doc.Duration > 0 {
		fmt.Fprintf(w, "Duration:   %.2fs\n", doc.Duration)
	}
	first, last := doc.Cues[0], doc.Cues[len(doc.Cues)-1]
	fmt.Fprintf(w, "Cues:       %d (%.2fs to %.2fs)\n", len(doc.Cues), first.Start, last.End)
	if doc.Dropped > 0 {
		fmt.Fprintf(w, "Dropped:    %d with unknown viseme codes\n", doc.Dropped)
	}

	counts := make(map[avatar3d.VisemeCode]int)
	spans := make(map[avatar3d.VisemeCode]float64)
	for _, cue := range doc.Cues {
		counts[cue.Value]++
		spans[cue.Value] += cue.End - cue.Start
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VISEME\tTARGET\tCUES\tSECONDS")
	for _, code := range avatar3d.AllVisemeCodes() {
		if counts[code] == 0 {
			continue
		}
		target, _ := avatar3d.MapViseme(code)
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\n", code, target, counts[code], spans[code])
	}
	return tw.Flush()
}
