package ingest

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/ratelimit"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		func(lc fx.Lifecycle, runner transcode.Runner, cfg *config.Config, log logger.Logger, clock clockwork.Clock) *Jobs {
			jobs := NewJobs(runner, transcode.Limits{
				MaxDuration:  cfg.Transcode.MaxDuration,
				MaxSizeBytes: cfg.Transcode.MaxSizeBytes,
			}, cfg.Ingest.JobRetention, log, clock)
			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					jobs.Close()
					return nil
				},
			})
			return jobs
		},
		fx.Annotate(
			func(cfg *config.Config, clock clockwork.Clock) *ratelimit.InMemoryLimiter {
				return ratelimit.NewInMemoryLimiter(cfg.Ingest.RateRequests, cfg.Ingest.RatePer, cfg.Ingest.RateBurst, clock)
			},
			fx.As(new(ratelimit.Limiter)),
		),
		NewHandler,
		NewServer,
	),
	fx.Invoke(func(*http.Server) {}),
)
