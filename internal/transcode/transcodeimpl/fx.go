package transcodeimpl

import (
	"github.com/orgball2608/story-engine/internal/transcode"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(
		NewFFmpeg,
		func(f *FFmpeg) transcode.Prober { return f },
		func(f *FFmpeg) transcode.Exporter { return f },
		fx.Annotate(
			NewPipeline,
			fx.As(new(transcode.Pipeline)),
		),
		fx.Annotate(
			NewRunner,
			fx.As(new(transcode.Runner)),
		),
	),
)
