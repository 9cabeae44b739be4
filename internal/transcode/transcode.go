package transcode

import (
	"context"
	"time"

	"github.com/orgball2608/story-engine/pkg/errors"
)

//go:generate go run go.uber.org/mock/mockgen -source=transcode.go -destination=mocks/mock.go

// Tier is one rung of the quality ladder.
type Tier struct {
	Name   string
	Codec  string
	Height int // 0 keeps the source resolution
	CRF    int
	Preset string
}

var (
	HEVC1080p = Tier{Name: "hevc_1080p", Codec: "libx265", Height: 1080, CRF: 28, Preset: "medium"}
	H264720p  = Tier{Name: "h264_720p", Codec: "libx264", Height: 720, CRF: 23, Preset: "veryfast"}

	// HEVCHighest is tried only after every regular tier missed the budget.
	HEVCHighest = Tier{Name: "hevc_highest", Codec: "libx265", CRF: 18, Preset: "slow"}
)

// DefaultLadder lists the regular tiers from best to most compatible.
func DefaultLadder() []Tier {
	return []Tier{HEVC1080p, H264720p}
}

type Limits struct {
	MaxDuration  time.Duration
	MaxSizeBytes int64
}

type Probe struct {
	Duration time.Duration
	HasVideo bool
	HasAudio bool
	Width    int
	Height   int
}

type Prober interface {
	Probe(ctx context.Context, path string) (Probe, error)
}

type ExportRequest struct {
	Source       string
	Output       string
	Duration     time.Duration
	IncludeAudio bool
	Tier         Tier
}

// Exporter writes one trimmed, re-encoded rendition of the source.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) error
}

type Prepared struct {
	Path      string
	Duration  time.Duration
	SizeBytes int64
	Tier      string
	HasAudio  bool
}

// Pipeline trims a source video and exports it through the ladder.
type Pipeline interface {
	Prepare(ctx context.Context, source string, limits Limits) (Prepared, error)
}

type Result struct {
	Prepared Prepared
	Err      error
}

// Runner prepares assets off the caller's goroutine. The channel receives
// exactly one Result and is then closed.
type Runner interface {
	PrepareAsync(ctx context.Context, source string, limits Limits) <-chan Result
}

// FailureKind returns the transcode failure code carried by err, or "" when
// err is not a transcode failure.
func FailureKind(err error) string {
	switch code := errors.GetCode(err); code {
	case errors.CodeNoVideoTrack, errors.CodeFileTooLarge, errors.CodeExportFailed, errors.CodeCancelled:
		return code
	}
	return ""
}
