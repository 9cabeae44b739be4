package pickerimpl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/pkg/logger"
)

// minimal PNG signature plus IHDR chunk header
var pngHeader = []byte{
	0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n',
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00,
}

func TestFilePicker_classifiesByContent(t *testing.T) {
	dir := t.TempDir()

	image := filepath.Join(dir, "photo.bin")
	if err := os.WriteFile(image, pngHeader, 0o644); err != nil {
		t.Fatal(err)
	}
	text := filepath.Join(dir, "notes.mp4")
	if err := os.WriteFile(text, []byte("just some text\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewFilePicker(logger.Nop(), nil, image, text, filepath.Join(dir, "missing.jpg"))
	refs, err := p.Pick(context.Background())
	if err != nil {
		t.Fatalf("Pick: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("picked %d references, want 1", len(refs))
	}
	if refs[0].Kind != domain.MediaImage || refs[0].SourceLocation != image || refs[0].ID == "" {
		t.Errorf("reference = %+v", refs[0])
	}
}

func TestFilePicker_nothingPicked(t *testing.T) {
	refs, err := NewFilePicker(logger.Nop(), nil).Pick(context.Background())
	if err != nil || len(refs) != 0 {
		t.Fatalf("Pick() = %v, %v; want empty", refs, err)
	}
}
