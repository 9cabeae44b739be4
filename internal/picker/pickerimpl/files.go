package pickerimpl

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/picker"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/logger"
)

// FilePicker turns local files into media references. The kind comes from
// the file content, not its extension.
type FilePicker struct {
	paths  []string
	prober transcode.Prober
	log    logger.Logger
}

var _ picker.Picker = (*FilePicker)(nil)

// NewFilePicker picks paths in order. prober is optional and fills in video
// durations.
func NewFilePicker(log logger.Logger, prober transcode.Prober, paths ...string) *FilePicker {
	return &FilePicker{paths: paths, prober: prober, log: log}
}

func (p *FilePicker) Pick(ctx context.Context) ([]domain.MediaReference, error) {
	refs := make([]domain.MediaReference, 0, len(p.paths))
	for _, path := range p.paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		kind, ok := p.kindOf(path)
		if !ok {
			continue
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		ref := domain.MediaReference{
			ID:             uuid.NewString(),
			SourceLocation: abs,
			Kind:           kind,
		}

		if kind == domain.MediaVideo && p.prober != nil {
			probe, err := p.prober.Probe(ctx, abs)
			if err != nil {
				p.log.Warn("Could not read video duration", "path", abs, "error", err)
			} else {
				ref.Duration = probe.Duration
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (p *FilePicker) kindOf(path string) (domain.MediaKind, bool) {
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		p.log.Warn("Skipping unreadable file", "path", path, "error", err)
		return "", false
	}

	switch {
	case strings.HasPrefix(mt.String(), "image/"):
		return domain.MediaImage, true
	case strings.HasPrefix(mt.String(), "video/"):
		return domain.MediaVideo, true
	}
	p.log.Warn("Skipping unsupported file", "path", path, "mime", mt.String())
	return "", false
}
