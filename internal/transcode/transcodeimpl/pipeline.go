package transcodeimpl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/formatter"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
	"go.uber.org/fx"
)

type PipelineOpts struct {
	fx.In

	Prober   transcode.Prober
	Exporter transcode.Exporter
	Logger   logger.Logger
	Config   *config.Config
	Metrics  *metrics.Metrics
}

type LadderPipeline struct {
	prober     transcode.Prober
	exporter   transcode.Exporter
	log        logger.Logger
	metrics    *metrics.Metrics
	tempDir    string
	ladder     []transcode.Tier
	lastResort transcode.Tier
}

var _ transcode.Pipeline = (*LadderPipeline)(nil)

func NewPipeline(opts PipelineOpts) *LadderPipeline {
	tempDir := os.TempDir()
	if opts.Config != nil && opts.Config.Transcode.TempDir != "" {
		tempDir = opts.Config.Transcode.TempDir
	}
	return &LadderPipeline{
		prober:     opts.Prober,
		exporter:   opts.Exporter,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		tempDir:    tempDir,
		ladder:     transcode.DefaultLadder(),
		lastResort: transcode.HEVCHighest,
	}
}

// Prepare trims source to limits.MaxDuration and exports it tier by tier
// until one output fits limits.MaxSizeBytes. Rejected outputs are deleted
// before the next tier starts. Exports are not interrupted by ctx; when ctx
// ends mid-export the finished output is deleted and Cancelled is returned.
func (p *LadderPipeline) Prepare(ctx context.Context, source string, limits transcode.Limits) (transcode.Prepared, error) {
	if ctx.Err() != nil {
		return p.fail(errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "Video processing was cancelled"))
	}

	probe, err := p.prober.Probe(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return p.fail(errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "Video processing was cancelled"))
		}
		return p.fail(errors.WrapWithCode(err, errors.CodeExportFailed, "Could not read the selected video"))
	}
	if !probe.HasVideo {
		return p.fail(errors.NewWithCode(errors.CodeNoVideoTrack, "The selected file has no video track"))
	}

	duration := probe.Duration
	if limits.MaxDuration > 0 && duration > limits.MaxDuration {
		duration = limits.MaxDuration
	}

	if err := os.MkdirAll(p.tempDir, 0o755); err != nil {
		return p.fail(errors.WrapWithCode(err, errors.CodeExportFailed, "Could not prepare the video"))
	}

	tiers := append(append([]transcode.Tier{}, p.ladder...), p.lastResort)
	jobID := uuid.NewString()
	var smallest int64

	for _, tier := range tiers {
		if ctx.Err() != nil {
			return p.fail(errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "Video processing was cancelled"))
		}

		out := filepath.Join(p.tempDir, fmt.Sprintf("story-%s-%s.mp4", jobID, tier.Name))
		req := transcode.ExportRequest{
			Source:       source,
			Output:       out,
			Duration:     duration,
			IncludeAudio: probe.HasAudio,
			Tier:         tier,
		}

		started := time.Now()
		exportErr := p.exporter.Export(context.WithoutCancel(ctx), req)

		if ctx.Err() != nil {
			p.discard(out)
			p.metrics.TranscodeAttempt(tier.Name, "cancelled")
			return p.fail(errors.WrapWithCode(ctx.Err(), errors.CodeCancelled, "Video processing was cancelled"))
		}
		if exportErr != nil {
			p.log.Warn("Export tier failed, trying next tier", "tier", tier.Name, "source", source, "error", exportErr)
			p.discard(out)
			p.metrics.TranscodeAttempt(tier.Name, "export_failed")
			continue
		}

		info, err := os.Stat(out)
		if err != nil {
			p.log.Warn("Export tier produced no output", "tier", tier.Name, "source", source, "error", err)
			p.metrics.TranscodeAttempt(tier.Name, "export_failed")
			continue
		}

		size := info.Size()
		if limits.MaxSizeBytes > 0 && size > limits.MaxSizeBytes {
			p.log.Info("Export tier over size budget",
				"tier", tier.Name,
				"size", formatter.FormatBytes(size),
				"budget", formatter.FormatBytes(limits.MaxSizeBytes),
			)
			p.discard(out)
			p.metrics.TranscodeAttempt(tier.Name, "too_large")
			if smallest == 0 || size < smallest {
				smallest = size
			}
			continue
		}

		p.metrics.TranscodeAttempt(tier.Name, "ok")
		p.metrics.Prepared("ok")
		p.log.Info("Video prepared",
			"tier", tier.Name,
			"duration", formatter.FormatSeconds(duration),
			"size", formatter.FormatBytes(size),
			"took", time.Since(started).Round(time.Millisecond).String(),
		)
		return transcode.Prepared{
			Path:      out,
			Duration:  duration,
			SizeBytes: size,
			Tier:      tier.Name,
			HasAudio:  probe.HasAudio,
		}, nil
	}

	if smallest > 0 {
		return p.fail(errors.NewWithCode(errors.CodeFileTooLarge, fmt.Sprintf(
			"The video is too large to post (%s, limit %s)",
			formatter.FormatBytes(smallest), formatter.FormatBytes(limits.MaxSizeBytes),
		)))
	}
	return p.fail(errors.NewWithCode(errors.CodeExportFailed, "The video could not be converted"))
}

func (p *LadderPipeline) fail(err error) (transcode.Prepared, error) {
	p.metrics.Prepared(errors.GetCode(err))
	return transcode.Prepared{}, err
}

func (p *LadderPipeline) discard(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		p.log.Warn("Failed to delete discarded export", "path", path, "error", err)
	}
}
