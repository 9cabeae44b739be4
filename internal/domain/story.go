package domain

import (
	"errors"
	"fmt"
	"time"
)

type SegmentKind string

const (
	SegmentImage SegmentKind = "image"
	SegmentVideo SegmentKind = "video"
	SegmentText  SegmentKind = "text"
	SegmentMusic SegmentKind = "music"
)

type Audience string

const (
	AudiencePublic  Audience = "public"
	AudienceFriends Audience = "friends"
)

func (a Audience) Valid() bool {
	return a == AudiencePublic || a == AudienceFriends
}

// StorySegment is one playable unit of a story.
type StorySegment struct {
	URL             string        `json:"url"`
	Kind            SegmentKind   `json:"kind"`
	Duration        time.Duration `json:"duration"`
	Caption         string        `json:"caption,omitempty"`
	BackgroundColor string        `json:"background_color,omitempty"`
}

// Story is created atomically at publish time and never mutated afterwards.
type Story struct {
	ID        string          `json:"id"`
	CreatorID string          `json:"creator_id"`
	Segments  []StorySegment  `json:"segments"`
	Caption   string          `json:"caption,omitempty"`
	Overlays  []OverlayItem   `json:"overlays"`
	Audience  Audience        `json:"audience"`
	Music     *MusicReference `json:"music,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

var ErrInvalidStory = errors.New("invalid story")

// Validate checks the structural invariants playback relies on.
func (s Story) Validate() error {
	if len(s.Segments) == 0 {
		return fmt.Errorf("%w: story %q has no segments", ErrInvalidStory, s.ID)
	}
	for i, seg := range s.Segments {
		if seg.Duration <= 0 {
			return fmt.Errorf("%w: story %q segment %d has non-positive duration", ErrInvalidStory, s.ID, i)
		}
	}
	return nil
}

func (s Story) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a deep copy so callers can never alias a published story's slices.
func (s Story) Clone() Story {
	out := s
	out.Segments = append([]StorySegment(nil), s.Segments...)
	out.Overlays = append([]OverlayItem(nil), s.Overlays...)
	if s.Music != nil {
		m := *s.Music
		out.Music = &m
	}
	return out
}
