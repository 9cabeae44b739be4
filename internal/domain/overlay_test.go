package domain

import (
	"math"
	"testing"
	"time"
)

func TestTransformClamped(t *testing.T) {
	cases := []struct {
		name string
		in   Transform
		want Transform
	}{
		{"inside", Transform{Point{0.2, 0.8}, 1.5, 30}, Transform{Point{0.2, 0.8}, 1.5, 30}},
		{"far outside", Transform{Point{-4, 17}, 40, -720}, Transform{Point{0, 1}, 3, -720}},
		{"tiny scale", Transform{Point{0.5, 0.5}, 0.01, 0}, Transform{Point{0.5, 0.5}, 0.5, 0}},
		{"nan", Transform{Point{math.NaN(), 0.3}, math.NaN(), math.Inf(1)}, Transform{Point{0.5, 0.3}, 1, 0}},
	}
	for _, tc := range cases {
		if got := tc.in.Clamped(); got != tc.want {
			t.Errorf("%s: got %+v, want %+v", tc.name, got, tc.want)
		}
	}
}

func TestPayloadDisplayText(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 5, 0, 0, time.UTC)
	if got := (Payload{Type: PayloadMention, Value: "ana"}).DisplayText(); got != "@ana" {
		t.Errorf("mention: %q", got)
	}
	if got := (Payload{Type: PayloadHashtag, Value: "sunset"}).DisplayText(); got != "#sunset" {
		t.Errorf("hashtag: %q", got)
	}
	if got := (Payload{Type: PayloadTimestamp, Time: at}).DisplayText(); got != "09:05" {
		t.Errorf("timestamp: %q", got)
	}
}

func TestStoryCloneIsDeep(t *testing.T) {
	s := Story{
		ID:       "s1",
		Segments: []StorySegment{{URL: "a", Kind: SegmentImage, Duration: time.Second}},
		Overlays: []OverlayItem{{ID: "o1"}},
		Music:    &MusicReference{ID: "m1"},
	}
	c := s.Clone()
	c.Segments[0].URL = "b"
	c.Overlays[0].ID = "o2"
	c.Music.ID = "m2"
	if s.Segments[0].URL != "a" || s.Overlays[0].ID != "o1" || s.Music.ID != "m1" {
		t.Fatalf("clone aliases the original: %+v", s)
	}
}

func TestStoryValidate(t *testing.T) {
	if err := (Story{ID: "x"}).Validate(); err == nil {
		t.Error("empty story must be invalid")
	}
	bad := Story{ID: "x", Segments: []StorySegment{{Kind: SegmentImage}}}
	if err := bad.Validate(); err == nil {
		t.Error("zero duration segment must be invalid")
	}
}
