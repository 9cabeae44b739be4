package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var rootCmd = &cobra.Command{
	Use:          "story-engine",
	Short:        "Capture, compose, transcode and play ephemeral stories",
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd, prepareCmd, composeCmd, playCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runWith starts an fx app built from options, runs fn and stops the app.
func runWith(ctx context.Context, fn func(context.Context) error, options ...fx.Option) error {
	application := fx.New(append([]fx.Option{fx.NopLogger}, options...)...)
	if err := application.Err(); err != nil {
		return err
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	runErr := fn(ctx)

	stopCtx, cancel := context.WithTimeout(context.Background(), fx.DefaultTimeout)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil && runErr == nil {
		return fmt.Errorf("failed to stop: %w", err)
	}
	return runErr
}
