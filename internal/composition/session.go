package composition

import (
	"context"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/picker"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/errors"
)

// State is a copy of the session at one instant.
type State struct {
	Media      *domain.MediaReference
	Prepared   *transcode.Prepared
	Overlays   []domain.OverlayItem
	Text       *domain.OverlayItem
	Caption    string
	Audience   domain.Audience
	Music      *domain.MusicReference
	Background string
	Type       StoryType
	Processing bool
	Publishing bool
	CanPost    bool
	Err        error
}

// Session is one in-progress story. All methods are safe for concurrent use
// and return without waiting on transcoding or uploads.
type Session struct {
	f      *Factory
	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	media      *domain.MediaReference
	prepared   *transcode.Prepared
	processing bool
	prepGen    uint64
	prepCancel context.CancelFunc
	overlays   map[string]domain.OverlayItem
	order      []string
	text       *domain.OverlayItem
	caption    string
	audience   domain.Audience
	music      *domain.MusicReference
	background string
	lastErr    error
	publishing bool
	pending    *pendingStory
	discarded  bool
	changed    chan struct{}
}

func (f *Factory) NewSession() *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		f:          f,
		ctx:        ctx,
		cancel:     cancel,
		overlays:   make(map[string]domain.OverlayItem),
		audience:   domain.AudiencePublic,
		background: DefaultBackground,
		changed:    make(chan struct{}),
	}
}

var errDiscarded = errors.NewWithCode(errors.CodeSessionDiscarded, "This story draft was closed")

// SetMedia replaces the media. A video is routed through the transcode
// runner and the session reports Processing until it finishes.
func (s *Session) SetMedia(ref domain.MediaReference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return errDiscarded
	}
	if err := s.f.claim(s, ref.ID); err != nil {
		return err
	}

	prev := s.media
	s.resetMediaLocked()
	if prev != nil && prev.ID != ref.ID {
		s.f.release(s, prev.ID)
	}

	s.media = &ref
	s.lastErr = nil

	if ref.Kind == domain.MediaVideo && !ref.IsRemote() {
		s.processing = true
		gen := s.prepGen
		ctx, cancel := context.WithCancel(s.ctx)
		s.prepCancel = cancel
		results := s.f.runner.PrepareAsync(ctx, ref.SourceLocation, s.f.limits())
		go s.awaitPrepared(gen, ref, results)
	}

	s.notifyLocked()
	return nil
}

func (s *Session) awaitPrepared(gen uint64, ref domain.MediaReference, results <-chan transcode.Result) {
	res, ok := <-results
	if !ok {
		res.Err = errors.NewWithCode(errors.CodeExportFailed, "The video could not be converted")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.prepGen || s.discarded {
		if res.Err == nil {
			s.removeTemp(res.Prepared.Path)
		}
		return
	}

	s.processing = false
	s.prepCancel = nil
	if res.Err != nil {
		s.f.log.Warn("Video preparation failed", "media_id", ref.ID, "error", res.Err)
		s.lastErr = res.Err
		s.media = nil
		s.f.release(s, ref.ID)
	} else {
		prepared := res.Prepared
		s.prepared = &prepared
		media := *s.media
		media.Duration = prepared.Duration
		s.media = &media
	}
	s.notifyLocked()
}

// resetMediaLocked drops any in-flight or finished preparation.
func (s *Session) resetMediaLocked() {
	s.prepGen++
	if s.prepCancel != nil {
		s.prepCancel()
		s.prepCancel = nil
	}
	if old := s.prepared; old != nil {
		s.prepared = nil
		s.dropTempLocked(old.Path)
	}
	s.processing = false
}

// ClearMedia removes the media reference and releases it.
func (s *Session) ClearMedia() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.media == nil {
		return
	}
	s.resetMediaLocked()
	s.f.release(s, s.media.ID)
	s.media = nil
	s.notifyLocked()
}

// Pick asks p for media and uses the first result. Picker failures and empty
// results mean nothing was selected.
func (s *Session) Pick(ctx context.Context, p picker.Picker) (bool, error) {
	refs, err := p.Pick(ctx)
	if err != nil {
		s.f.log.Info("Media picker returned no selection", "error", err)
		return false, nil
	}
	if len(refs) == 0 {
		return false, nil
	}
	if err := s.SetMedia(refs[0]); err != nil {
		return false, err
	}
	return true, nil
}

// AddOverlay stores item under its id, assigning one when empty, and returns
// the id. Adding an existing id replaces that overlay. An id already used by
// the text overlay is replaced with a fresh one. A discarded session ignores
// the call and returns "".
func (s *Session) AddOverlay(item domain.OverlayItem) string {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item = item.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return ""
	}
	if s.text != nil && s.text.ID == item.ID {
		item.ID = uuid.NewString()
	}
	if _, ok := s.overlays[item.ID]; !ok {
		s.order = append(s.order, item.ID)
	}
	s.overlays[item.ID] = item
	s.notifyLocked()
	return item.ID
}

// UpdateOverlay fully replaces the overlay with item.ID. Unknown ids are
// ignored and reported with false.
func (s *Session) UpdateOverlay(item domain.OverlayItem) bool {
	item = item.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overlays[item.ID]; !ok || s.discarded {
		return false
	}
	s.overlays[item.ID] = item
	s.notifyLocked()
	return true
}

func (s *Session) RemoveOverlay(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overlays[id]; !ok {
		return false
	}
	delete(s.overlays, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.notifyLocked()
	return true
}

// SetTextOverlay fills the single text slot used by text-only stories. An id
// already used by a keyed overlay is replaced with a fresh one.
func (s *Session) SetTextOverlay(item domain.OverlayItem) {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Kind = domain.OverlayCaption
	if item.Payload.Type == "" {
		item.Payload.Type = domain.PayloadText
	}
	item = item.Normalized()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	if _, ok := s.overlays[item.ID]; ok {
		item.ID = uuid.NewString()
	}
	s.text = &item
	s.notifyLocked()
}

func (s *Session) RemoveTextOverlay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.text = nil
	s.notifyLocked()
}

func (s *Session) SetCaption(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.caption = text
	s.notifyLocked()
}

func (s *Session) SetAudience(a domain.Audience) error {
	if !a.Valid() {
		return errors.Wrap(errors.ErrInvalidInput, "Unknown audience "+string(a))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return errDiscarded
	}
	s.audience = a
	s.notifyLocked()
	return nil
}

func (s *Session) SetMusic(ref domain.MusicReference) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.music = &ref
	s.notifyLocked()
}

func (s *Session) RemoveMusic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.music = nil
	s.notifyLocked()
}

// SetBackground sets the colour token of a text-only story. An empty token
// restores the default.
func (s *Session) SetBackground(token string) {
	if token == "" {
		token = DefaultBackground
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discarded {
		return
	}
	s.background = token
	s.notifyLocked()
}

func (s *Session) CanPost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canPostLocked()
}

func (s *Session) canPostLocked() bool {
	return s.media != nil || s.text != nil
}

func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// Err returns the last transcode failure, cleared by the next SetMedia.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Session) StoryType() StoryType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storyTypeLocked()
}

func (s *Session) storyTypeLocked() StoryType {
	switch {
	case s.media != nil && s.media.Kind == domain.MediaVideo:
		return StoryVideo
	case s.media != nil:
		return StoryPhoto
	case s.text != nil:
		return StoryText
	}
	return StoryCamera
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Overlays:   s.overlaysLocked(),
		Caption:    s.caption,
		Audience:   s.audience,
		Background: s.background,
		Type:       s.storyTypeLocked(),
		Processing: s.processing,
		Publishing: s.publishing,
		CanPost:    s.canPostLocked(),
		Err:        s.lastErr,
	}
	if s.media != nil {
		m := *s.media
		st.Media = &m
	}
	if s.prepared != nil {
		p := *s.prepared
		st.Prepared = &p
	}
	if s.text != nil {
		t := *s.text
		st.Text = &t
	}
	if s.music != nil {
		m := *s.music
		st.Music = &m
	}
	return st
}

// WaitIdle blocks until no video is being prepared.
func (s *Session) WaitIdle(ctx context.Context) error {
	for {
		s.mu.Lock()
		if !s.processing {
			s.mu.Unlock()
			return nil
		}
		changed := s.changed
		s.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Discard abandons the draft: preparation and publishing are cancelled,
// temporary files deleted and the media released. Later calls fail with
// session_discarded.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.discarded {
		return
	}
	s.discarded = true
	s.cancel()
	pending := s.pending
	s.pending = nil
	s.resetMediaLocked()
	if pending != nil {
		for _, u := range pending.uploads {
			if u.temp {
				s.dropTempLocked(u.local)
			}
		}
	}
	if s.media != nil {
		s.f.release(s, s.media.ID)
		s.media = nil
	}
	s.overlays = make(map[string]domain.OverlayItem)
	s.order = nil
	s.text = nil
	s.music = nil
	s.caption = ""
	s.notifyLocked()
}

func (s *Session) overlaysLocked() []domain.OverlayItem {
	out := make([]domain.OverlayItem, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.overlays[id])
	}
	return out
}

func (s *Session) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// dropTempLocked deletes a prepared output unless the session or its pending
// story still needs it.
func (s *Session) dropTempLocked(path string) {
	if s.prepared != nil && s.prepared.Path == path {
		return
	}
	if s.pending != nil && s.pending.needs(path) {
		return
	}
	s.removeTemp(path)
}

func (s *Session) removeTemp(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.f.log.Warn("Failed to delete prepared video", "path", path, "error", err)
	}
}
