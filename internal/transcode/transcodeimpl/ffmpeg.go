package transcodeimpl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/config"
)

// FFmpeg exports with the ffmpeg binary and probes with the ffprobe that
// sits next to it.
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

var (
	_ transcode.Exporter = (*FFmpeg)(nil)
	_ transcode.Prober   = (*FFmpeg)(nil)
)

func NewFFmpeg(cfg *config.Config) *FFmpeg {
	path := cfg.Transcode.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{
		ffmpegPath:  path,
		ffprobePath: strings.Replace(path, "ffmpeg", "ffprobe", 1),
	}
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (transcode.Probe, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,width,height",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return transcode.Probe{}, fmt.Errorf("ffprobe failed for %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	return parseProbe(out.Bytes())
}

func parseProbe(raw []byte) (transcode.Probe, error) {
	var data ffprobeOutput
	if err := json.Unmarshal(raw, &data); err != nil {
		return transcode.Probe{}, fmt.Errorf("failed to unmarshal ffprobe output: %w", err)
	}

	var probe transcode.Probe
	if data.Format.Duration != "" {
		seconds, err := strconv.ParseFloat(data.Format.Duration, 64)
		if err != nil {
			return transcode.Probe{}, fmt.Errorf("invalid duration %q: %w", data.Format.Duration, err)
		}
		probe.Duration = time.Duration(seconds * float64(time.Second)).Round(time.Millisecond)
	}

	for _, s := range data.Streams {
		switch s.CodecType {
		case "video":
			if !probe.HasVideo {
				probe.HasVideo = true
				probe.Width = s.Width
				probe.Height = s.Height
			}
		case "audio":
			probe.HasAudio = true
		}
	}
	return probe, nil
}

func (f *FFmpeg) Export(ctx context.Context, req transcode.ExportRequest) error {
	cmd := exec.CommandContext(ctx, f.ffmpegPath, exportArgs(req)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg %s export failed: %w: %s", req.Tier.Name, err, lastLine(stderr.String()))
	}
	return nil
}

func exportArgs(req transcode.ExportRequest) []string {
	args := []string{
		"-y",
		"-i", req.Source,
		"-t", strconv.FormatFloat(req.Duration.Seconds(), 'f', 3, 64),
		"-map", "0:v:0",
	}
	if req.IncludeAudio {
		args = append(args, "-map", "0:a:0", "-c:a", "aac", "-b:a", "128k")
	} else {
		args = append(args, "-an")
	}

	args = append(args, "-c:v", req.Tier.Codec)
	if req.Tier.CRF > 0 {
		args = append(args, "-crf", strconv.Itoa(req.Tier.CRF))
	}
	if req.Tier.Preset != "" {
		args = append(args, "-preset", req.Tier.Preset)
	}
	if req.Tier.Height > 0 {
		args = append(args, "-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", req.Tier.Height))
	}
	if req.Tier.Codec == "libx265" {
		args = append(args, "-tag:v", "hvc1")
	}

	return append(args, "-movflags", "+faststart", req.Output)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
