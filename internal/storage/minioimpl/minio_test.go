package minioimpl

import (
	"context"
	"testing"

	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"go.uber.org/fx/fxtest"
)

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name    string
		public  string
		key     string
		wantURL string
	}{
		{name: "public base", public: "https://cdn.example.com/", key: "stories/a.mp4", wantURL: "https://cdn.example.com/stories/stories/a.mp4"},
		{name: "endpoint fallback", key: "/b.jpg", wantURL: "http://localhost:9000/stories/b.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Minio.Endpoint = "localhost:9000"
			cfg.Minio.PublicBaseURL = tt.public

			lc := fxtest.NewLifecycle(t)
			u, err := New(Opts{LC: lc, Config: cfg, Logger: logger.Nop()})
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if got := u.ObjectURL(tt.key); got != tt.wantURL {
				t.Errorf("ObjectURL(%q) = %q, want %q", tt.key, got, tt.wantURL)
			}
		})
	}
}

func TestUploadMissingFile(t *testing.T) {
	cfg := config.Default()
	cfg.Minio.Endpoint = "localhost:9000"

	u, err := New(Opts{LC: fxtest.NewLifecycle(t), Config: cfg, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := u.Upload(context.Background(), "/does/not/exist.mp4", "x.mp4"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
