package transcodeimpl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orgball2608/story-engine/internal/transcode"
	mock_transcode "github.com/orgball2608/story-engine/internal/transcode/mocks"
	"github.com/orgball2608/story-engine/pkg/config"
	apperrors "github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
	"go.uber.org/mock/gomock"
)

var testLimits = transcode.Limits{
	MaxDuration:  15 * time.Second,
	MaxSizeBytes: 1000,
}

type pipelineFixture struct {
	pipeline *LadderPipeline
	prober   *mock_transcode.MockProber
	exporter *mock_transcode.MockExporter
	dir      string
}

func newPipelineFixture(t *testing.T) pipelineFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	cfg := config.Default()
	cfg.Transcode.TempDir = t.TempDir()

	prober := mock_transcode.NewMockProber(ctrl)
	exporter := mock_transcode.NewMockExporter(ctrl)
	return pipelineFixture{
		pipeline: NewPipeline(PipelineOpts{
			Prober:   prober,
			Exporter: exporter,
			Logger:   logger.Nop(),
			Config:   cfg,
			Metrics:  metrics.New(),
		}),
		prober:   prober,
		exporter: exporter,
		dir:      cfg.Transcode.TempDir,
	}
}

// writeOutput makes the fake export produce a file of size bytes.
func writeOutput(size int) func(context.Context, transcode.ExportRequest) error {
	return func(_ context.Context, req transcode.ExportRequest) error {
		return os.WriteFile(req.Output, make([]byte, size), 0o644)
	}
}

func leftovers(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestPrepare_trimsToMaxDuration(t *testing.T) {
	f := newPipelineFixture(t)

	f.prober.EXPECT().Probe(gomock.Any(), "in.mov").
		Return(transcode.Probe{Duration: 20 * time.Second, HasVideo: true, HasAudio: true}, nil)
	f.exporter.EXPECT().Export(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req transcode.ExportRequest) error {
			if req.Duration != 15*time.Second {
				t.Errorf("export duration = %v, want 15s", req.Duration)
			}
			if !req.IncludeAudio {
				t.Error("audio track should be carried")
			}
			if req.Tier.Name != transcode.HEVC1080p.Name {
				t.Errorf("first tier = %s", req.Tier.Name)
			}
			return writeOutput(500)(ctx, req)
		})

	prepared, err := f.pipeline.Prepare(context.Background(), "in.mov", testLimits)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prepared.Duration != 15*time.Second {
		t.Errorf("duration = %v, want 15s", prepared.Duration)
	}
	if prepared.SizeBytes != 500 || prepared.Tier != transcode.HEVC1080p.Name || !prepared.HasAudio {
		t.Errorf("prepared = %+v", prepared)
	}
	if filepath.Dir(prepared.Path) != f.dir {
		t.Errorf("output %s not in temp dir", prepared.Path)
	}
}

func TestPrepare_shortSourceKeepsDurationAndSkipsMissingAudio(t *testing.T) {
	f := newPipelineFixture(t)

	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(transcode.Probe{Duration: 8 * time.Second, HasVideo: true}, nil)
	f.exporter.EXPECT().Export(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, req transcode.ExportRequest) error {
			if req.Duration != 8*time.Second || req.IncludeAudio {
				t.Errorf("request = %+v", req)
			}
			return writeOutput(10)(ctx, req)
		})

	prepared, err := f.pipeline.Prepare(context.Background(), "silent.mp4", testLimits)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prepared.Duration != 8*time.Second || prepared.HasAudio {
		t.Errorf("prepared = %+v", prepared)
	}
}

func TestPrepare_noVideoTrackTriesNoTier(t *testing.T) {
	f := newPipelineFixture(t)

	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(transcode.Probe{Duration: 5 * time.Second, HasAudio: true}, nil)

	_, err := f.pipeline.Prepare(context.Background(), "song.m4a", testLimits)
	if got := transcode.FailureKind(err); got != apperrors.CodeNoVideoTrack {
		t.Fatalf("failure = %q (%v), want no_video_track", got, err)
	}
}

func TestPrepare_fallsBackAndDeletesRejectedOutputs(t *testing.T) {
	f := newPipelineFixture(t)

	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(transcode.Probe{Duration: 10 * time.Second, HasVideo: true}, nil)

	var tiers []string
	f.exporter.EXPECT().Export(gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(ctx context.Context, req transcode.ExportRequest) error {
			tiers = append(tiers, req.Tier.Name)
			if req.Tier.Name == transcode.HEVC1080p.Name {
				return writeOutput(5000)(ctx, req)
			}
			if names := leftovers(t, f.dir); len(names) != 0 {
				t.Errorf("rejected output not deleted before next tier: %v", names)
			}
			return writeOutput(900)(ctx, req)
		})

	prepared, err := f.pipeline.Prepare(context.Background(), "big.mov", testLimits)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prepared.Tier != transcode.H264720p.Name {
		t.Errorf("tier = %s, want h264_720p", prepared.Tier)
	}
	want := []string{transcode.HEVC1080p.Name, transcode.H264720p.Name}
	if len(tiers) != 2 || tiers[0] != want[0] || tiers[1] != want[1] {
		t.Errorf("tiers = %v, want %v", tiers, want)
	}
	if names := leftovers(t, f.dir); len(names) != 1 {
		t.Errorf("temp dir = %v, want only the prepared output", names)
	}
}

func TestPrepare_fileTooLargeAfterLastResort(t *testing.T) {
	f := newPipelineFixture(t)

	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(transcode.Probe{Duration: 10 * time.Second, HasVideo: true}, nil)

	var tiers []string
	f.exporter.EXPECT().Export(gomock.Any(), gomock.Any()).Times(3).
		DoAndReturn(func(ctx context.Context, req transcode.ExportRequest) error {
			tiers = append(tiers, req.Tier.Name)
			return writeOutput(2000)(ctx, req)
		})

	_, err := f.pipeline.Prepare(context.Background(), "huge.mov", testLimits)
	if got := transcode.FailureKind(err); got != apperrors.CodeFileTooLarge {
		t.Fatalf("failure = %q (%v), want file_too_large", got, err)
	}
	if tiers[2] != transcode.HEVCHighest.Name {
		t.Errorf("last tier = %s, want hevc_highest", tiers[2])
	}
	if names := leftovers(t, f.dir); len(names) != 0 {
		t.Errorf("outputs leaked: %v", names)
	}
}

func TestPrepare_exportFailureSkipsTier(t *testing.T) {
	f := newPipelineFixture(t)

	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(transcode.Probe{Duration: 10 * time.Second, HasVideo: true}, nil)

	calls := 0
	f.exporter.EXPECT().Export(gomock.Any(), gomock.Any()).Times(2).
		DoAndReturn(func(ctx context.Context, req transcode.ExportRequest) error {
			calls++
			if calls == 1 {
				_ = os.WriteFile(req.Output, []byte("partial"), 0o644)
				return errors.New("encoder crashed")
			}
			return writeOutput(100)(ctx, req)
		})

	prepared, err := f.pipeline.Prepare(context.Background(), "clip.mov", testLimits)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if prepared.Tier != transcode.H264720p.Name {
		t.Errorf("tier = %s, want h264_720p", prepared.Tier)
	}
	if names := leftovers(t, f.dir); len(names) != 1 {
		t.Errorf("partial output not cleaned: %v", names)
	}
}

func TestPrepare_everyTierFails(t *testing.T) {
	f := newPipelineFixture(t)

	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(transcode.Probe{Duration: 10 * time.Second, HasVideo: true}, nil)
	f.exporter.EXPECT().Export(gomock.Any(), gomock.Any()).Times(3).
		Return(errors.New("unsupported codec"))

	_, err := f.pipeline.Prepare(context.Background(), "clip.mov", testLimits)
	if got := transcode.FailureKind(err); got != apperrors.CodeExportFailed {
		t.Fatalf("failure = %q (%v), want export_failed", got, err)
	}
}

func TestPrepare_cancelledMidExportDiscardsOutput(t *testing.T) {
	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	f.prober.EXPECT().Probe(gomock.Any(), gomock.Any()).
		Return(transcode.Probe{Duration: 10 * time.Second, HasVideo: true}, nil)
	f.exporter.EXPECT().Export(gomock.Any(), gomock.Any()).
		DoAndReturn(func(exportCtx context.Context, req transcode.ExportRequest) error {
			cancel()
			if exportCtx.Err() != nil {
				t.Error("in-flight export must be allowed to finish")
			}
			return writeOutput(100)(exportCtx, req)
		})

	_, err := f.pipeline.Prepare(ctx, "clip.mov", testLimits)
	if got := transcode.FailureKind(err); got != apperrors.CodeCancelled {
		t.Fatalf("failure = %q (%v), want cancelled", got, err)
	}
	if names := leftovers(t, f.dir); len(names) != 0 {
		t.Errorf("cancelled output persisted: %v", names)
	}
}
