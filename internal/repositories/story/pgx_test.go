package story

import (
	"strings"
	"testing"
	"time"

	"github.com/orgball2608/story-engine/internal/domain"
)

func TestInsertStory(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	story := domain.Story{
		ID:        "s1",
		CreatorID: "c1",
		Audience:  domain.AudienceFriends,
		Segments: []domain.StorySegment{
			{URL: "https://cdn/a.mp4", Kind: domain.SegmentVideo, Duration: 12500 * time.Millisecond},
			{URL: "https://cdn/b.jpg", Kind: domain.SegmentImage, Duration: 15 * time.Second},
		},
		Overlays: []domain.OverlayItem{
			{ID: "o1", Kind: domain.OverlaySticker, Payload: domain.Payload{Type: domain.PayloadEmoji, Value: "🔥"}, Transform: domain.IdentityTransform()},
		},
		CreatedAt: created,
		ExpiresAt: created.Add(24 * time.Hour),
	}

	stmts, err := insertStory(story)
	if err != nil {
		t.Fatalf("insertStory: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(stmts))
	}

	query, args, err := stmts[0].ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.HasPrefix(query, "INSERT INTO stories (id,creator_id,caption,audience,music,created_at,expires_at) VALUES ($1,$2,$3,$4,$5,$6,$7)") {
		t.Errorf("story insert = %q", query)
	}
	if music, ok := args[4].([]byte); !ok || music != nil {
		t.Errorf("music arg = %#v, want nil bytes", args[4])
	}

	query, args, err = stmts[1].ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if !strings.Contains(query, "($1,$2,$3,$4,$5,$6,$7),($8,$9,$10,$11,$12,$13,$14)") {
		t.Errorf("segment insert = %q", query)
	}
	if args[1] != 0 || args[8] != 1 {
		t.Errorf("segment positions = %v, %v", args[1], args[8])
	}
	if args[4] != int64(12500) {
		t.Errorf("duration_ms = %v, want 12500", args[4])
	}

	_, args, err = stmts[2].ToSql()
	if err != nil {
		t.Fatalf("ToSql: %v", err)
	}
	if payload := string(args[4].([]byte)); payload != `{"type":"emoji","value":"🔥","time":"0001-01-01T00:00:00Z","style":{"font":"","color":""}}` {
		t.Errorf("payload = %s", payload)
	}
}

func TestInsertStory_withoutOverlays(t *testing.T) {
	stmts, err := insertStory(domain.Story{
		ID:       "s2",
		Segments: []domain.StorySegment{{URL: "u", Kind: domain.SegmentText, Duration: time.Second}},
		Music:    &domain.MusicReference{ID: "m1", Title: "Song"},
	})
	if err != nil {
		t.Fatalf("insertStory: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	_, args, _ := stmts[0].ToSql()
	if music, _ := args[4].([]byte); !strings.Contains(string(music), `"title":"Song"`) {
		t.Errorf("music = %s", music)
	}
}
