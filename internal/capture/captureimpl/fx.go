package captureimpl

import (
	"context"

	"github.com/orgball2608/story-engine/internal/capture"
	"github.com/orgball2608/story-engine/internal/capture/simulated"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		func() capture.HardwareFactory {
			return func() capture.Hardware { return simulated.New() }
		},
		New,
	),
	fx.Invoke(func(lc fx.Lifecycle, c *Coordinator) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return c.Shutdown(ctx)
			},
		})
	}),
)
