package main

import (
	"context"
	"fmt"

	"github.com/orgball2608/story-engine/internal/app"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/internal/transcode/transcodeimpl"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/formatter"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var prepareCmd = &cobra.Command{
	Use:   "prepare <video>",
	Short: "Trim and re-encode a video until it fits the story limits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			pipeline transcode.Pipeline
			cfg      *config.Config
		)
		return runWith(cmd.Context(), func(ctx context.Context) error {
			p, err := pipeline.Prepare(ctx, args[0], transcode.Limits{
				MaxDuration:  cfg.Transcode.MaxDuration,
				MaxSizeBytes: cfg.Transcode.MaxSizeBytes,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s\n  tier:     %s\n  duration: %s\n  size:     %s\n  audio:    %v\n",
				p.Path, p.Tier, formatter.FormatSeconds(p.Duration), formatter.FormatBytes(p.SizeBytes), p.HasAudio)
			return nil
		}, app.Base, transcodeimpl.Module, fx.Populate(&pipeline, &cfg))
	},
}
