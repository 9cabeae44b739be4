package main

import (
	"context"

	"github.com/orgball2608/story-engine/internal/app"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingestion API and the expired story sweep",
	RunE: func(cmd *cobra.Command, _ []string) error {
		var log logger.Logger
		return runWith(cmd.Context(), func(ctx context.Context) error {
			log.Info("Story engine started")
			<-ctx.Done()
			log.Info("Shutdown signal received")
			return nil
		}, app.Module, fx.Populate(&log))
	},
}
