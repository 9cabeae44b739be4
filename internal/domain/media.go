package domain

import (
	"strings"
	"time"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// MediaReference is a capture or picker result. It is immutable once created.
type MediaReference struct {
	ID             string        `json:"id"`
	SourceLocation string        `json:"source_location"`
	Kind           MediaKind     `json:"kind"`
	Duration       time.Duration `json:"duration,omitempty"`
}

// IsRemote reports whether the source already lives behind a URL and needs no upload.
func (m MediaReference) IsRemote() bool {
	return strings.HasPrefix(m.SourceLocation, "http://") || strings.HasPrefix(m.SourceLocation, "https://")
}

// MusicReference is background music attached to a story.
type MusicReference struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	PreviewURL string        `json:"preview_url"`
	StartTime  time.Duration `json:"start_time"`
	Duration   time.Duration `json:"duration"`
}

// Identity is the creator or viewer handed out by the profile provider.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
