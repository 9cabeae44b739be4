package transcodeimpl

import (
	"strings"
	"testing"
	"time"

	"github.com/orgball2608/story-engine/internal/transcode"
)

func TestParseProbe(t *testing.T) {
	raw := []byte(`{
		"streams": [
			{"codec_type": "video", "width": 1920, "height": 1080},
			{"codec_type": "audio"}
		],
		"format": {"duration": "20.480000"}
	}`)

	probe, err := parseProbe(raw)
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if probe.Duration != 20480*time.Millisecond {
		t.Errorf("duration = %v", probe.Duration)
	}
	if !probe.HasVideo || !probe.HasAudio || probe.Width != 1920 || probe.Height != 1080 {
		t.Errorf("probe = %+v", probe)
	}

	audioOnly, err := parseProbe([]byte(`{"streams":[{"codec_type":"audio"}],"format":{"duration":"3.0"}}`))
	if err != nil {
		t.Fatalf("parseProbe: %v", err)
	}
	if audioOnly.HasVideo {
		t.Error("audio-only source reported a video track")
	}
}

func TestExportArgs(t *testing.T) {
	args := strings.Join(exportArgs(transcode.ExportRequest{
		Source:   "in.mov",
		Output:   "out.mp4",
		Duration: 15 * time.Second,
		Tier:     transcode.H264720p,
	}), " ")

	for _, want := range []string{"-t 15.000", "-an", "-c:v libx264", "scale=-2:'min(720,ih)'", "out.mp4"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}

	withAudio := strings.Join(exportArgs(transcode.ExportRequest{
		Source:       "in.mov",
		Output:       "out.mp4",
		Duration:     time.Second,
		IncludeAudio: true,
		Tier:         transcode.HEVCHighest,
	}), " ")
	if !strings.Contains(withAudio, "-map 0:a:0") || strings.Contains(withAudio, "scale=") {
		t.Errorf("last resort args = %q", withAudio)
	}
	if !strings.Contains(withAudio, "-tag:v hvc1") {
		t.Errorf("hevc output should be tagged hvc1: %q", withAudio)
	}
}
