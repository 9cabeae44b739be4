package ingest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"go.uber.org/fx"
)

type ServerOpts struct {
	fx.In

	LC      fx.Lifecycle
	Config  *config.Config
	Logger  logger.Logger
	Handler *Handler
}

func NewServer(opts ServerOpts) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.App.Port),
		Handler:           opts.Handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	opts.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			go func() {
				if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
					opts.Logger.Error("Ingest server stopped unexpectedly", "error", err)
				}
			}()
			opts.Logger.Info("Ingest server listening", "addr", srv.Addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			opts.Logger.Info("Shutting down ingest server")
			return srv.Shutdown(ctx)
		},
	})

	return srv
}
