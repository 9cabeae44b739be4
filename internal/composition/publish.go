package composition

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/haptics"
	"github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/retry"
)

// ProgressFunc receives publish progress in (0,1]. Values only grow.
type ProgressFunc func(progress float64)

type PublishEvent struct {
	Progress float64
	Done     bool
	Story    *domain.Story
	Err      error
}

// pendingStory is a built story that has not been stored yet. It survives a
// failed publish so RetryPublish can finish it.
type pendingStory struct {
	story   domain.Story
	mediaID string
	uploads []pendingUpload
}

type pendingUpload struct {
	segment int
	local   string
	key     string
	temp    bool
	done    bool
}

func (p *pendingStory) needs(path string) bool {
	for _, u := range p.uploads {
		if u.local == path && !u.done {
			return true
		}
	}
	return false
}

// Publish snapshots the session into a new Story, uploads its media and
// stores it. Later edits never affect the returned story. On failure the
// built story is kept for RetryPublish.
func (s *Session) Publish(ctx context.Context, progress ProgressFunc) (domain.Story, error) {
	s.mu.Lock()
	if err := s.checkPublishableLocked(); err != nil {
		s.mu.Unlock()
		return domain.Story{}, err
	}
	p := s.snapshotLocked()
	s.publishing = true
	s.mu.Unlock()

	if err := s.finishDraft(ctx, p); err != nil {
		s.mu.Lock()
		s.publishing = false
		s.mu.Unlock()
		s.f.metrics.Publish("invalid")
		return domain.Story{}, err
	}

	s.mu.Lock()
	old := s.pending
	s.pending = p
	if old != nil {
		for _, u := range old.uploads {
			if u.temp {
				s.dropTempLocked(u.local)
			}
		}
	}
	s.mu.Unlock()

	return s.run(ctx, p, progress)
}

// RetryPublish re-attempts the story kept by the last failed publish without
// collecting the session state again. Media already uploaded is not sent
// twice.
func (s *Session) RetryPublish(ctx context.Context, progress ProgressFunc) (domain.Story, error) {
	s.mu.Lock()
	if s.discarded {
		s.mu.Unlock()
		return domain.Story{}, errDiscarded
	}
	if s.publishing {
		s.mu.Unlock()
		return domain.Story{}, errors.NewWithCode(errors.CodeProcessing, "This story is already being posted")
	}
	p := s.pending
	if p == nil {
		s.mu.Unlock()
		return domain.Story{}, errors.NewWithCode(errors.CodeNotPostable, "There is no failed story to retry")
	}
	s.publishing = true
	s.mu.Unlock()

	return s.run(ctx, p, progress)
}

// PublishAsync runs Publish in the background. The channel gets every
// progress value, then one event with Done set, and is closed.
func (s *Session) PublishAsync(ctx context.Context) <-chan PublishEvent {
	steps := s.f.cfg.Publish.ProgressSteps
	if steps < 1 {
		steps = 1
	}
	events := make(chan PublishEvent, steps+1)

	go func() {
		defer close(events)
		story, err := s.Publish(ctx, func(progress float64) {
			events <- PublishEvent{Progress: progress}
		})
		done := PublishEvent{Done: true, Err: err}
		if err == nil {
			done.Progress = 1
			done.Story = &story
		}
		events <- done
	}()

	return events
}

// HasPending reports whether a failed publish can be retried.
func (s *Session) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *Session) checkPublishableLocked() error {
	switch {
	case s.discarded:
		return errDiscarded
	case s.publishing:
		return errors.NewWithCode(errors.CodeProcessing, "This story is already being posted")
	case !s.canPostLocked():
		return errors.NewWithCode(errors.CodeNotPostable, "Add a photo, video or text before posting")
	case s.processing:
		return errors.NewWithCode(errors.CodeProcessing, "The video is still being processed")
	}
	return nil
}

func (s *Session) snapshotLocked() *pendingStory {
	cfg := s.f.cfg.Publish
	story := domain.Story{
		Caption:  s.caption,
		Audience: s.audience,
		Overlays: s.overlaysLocked(),
	}
	if s.text != nil {
		story.Overlays = append(story.Overlays, *s.text)
	}
	if s.music != nil {
		m := *s.music
		story.Music = &m
	}

	p := &pendingStory{}
	seg := domain.StorySegment{Caption: s.caption, Duration: cfg.ImageDuration}

	switch {
	case s.media != nil:
		m := *s.media
		p.mediaID = m.ID
		if m.Kind == domain.MediaVideo {
			seg.Kind = domain.SegmentVideo
			if s.prepared != nil {
				seg.Duration = s.prepared.Duration
				p.uploads = append(p.uploads, pendingUpload{local: s.prepared.Path, temp: true})
			} else if m.Duration > 0 {
				seg.Duration = min(m.Duration, s.f.cfg.Transcode.MaxDuration)
			}
		} else {
			seg.Kind = domain.SegmentImage
			if !m.IsRemote() {
				p.uploads = append(p.uploads, pendingUpload{local: m.SourceLocation})
			}
		}
		if m.IsRemote() {
			seg.URL = m.SourceLocation
		}
	case s.text != nil:
		seg.Kind = domain.SegmentText
		seg.Caption = s.text.Payload.DisplayText()
		seg.BackgroundColor = s.background
	}

	story.Segments = []domain.StorySegment{seg}
	p.story = story
	return p
}

// finishDraft stamps identity and times on the snapshot.
func (s *Session) finishDraft(ctx context.Context, p *pendingStory) error {
	creator, err := s.f.profile.Creator(ctx)
	if err != nil {
		return errors.Wrap(err, "Could not load your profile")
	}

	now := s.f.clock.Now()
	p.story.ID = uuid.NewString()
	p.story.CreatorID = creator.ID
	p.story.CreatedAt = now
	p.story.ExpiresAt = now.Add(s.f.cfg.Publish.StoryTTL)

	for i := range p.uploads {
		p.uploads[i].key = fmt.Sprintf("stories/%s/%s/%d%s",
			creator.ID, p.story.ID, p.uploads[i].segment, filepath.Ext(p.uploads[i].local))
	}

	if err := p.story.Validate(); err != nil {
		return errors.WrapWithCode(err, errors.CodeNotPostable, "This story cannot be posted")
	}
	return nil
}

func (s *Session) run(ctx context.Context, p *pendingStory, progress ProgressFunc) (domain.Story, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	steps := s.f.cfg.Publish.ProgressSteps
	if steps < 1 {
		steps = 1
	}
	report := func(step int) {
		if progress != nil {
			progress(float64(step) / float64(steps))
		}
	}

	for step := 1; step < steps; step++ {
		if err := s.stepDelay(runCtx); err != nil {
			return s.failPublish(p, err)
		}
		report(step)
	}

	if err := s.upload(runCtx, p); err != nil {
		return s.failPublish(p, err)
	}
	if err := s.persist(runCtx, p); err != nil {
		return s.failPublish(p, err)
	}

	s.mu.Lock()
	s.publishing = false
	if s.pending == p {
		s.pending = nil
	}
	// The published story owns the media now; the draft keeps its edits but
	// needs new media before it can post again.
	if s.media != nil && s.media.ID == p.mediaID {
		s.prepGen++
		s.prepared = nil
		s.media = nil
		s.notifyLocked()
	}
	for _, u := range p.uploads {
		if u.temp {
			s.dropTempLocked(u.local)
		}
	}
	published := p.story.Clone()
	s.mu.Unlock()
	s.f.release(s, p.mediaID)

	report(steps)
	s.f.haptics.Notify(haptics.Published)
	s.f.metrics.Publish("ok")
	s.f.log.Info("Story published",
		"story_id", published.ID,
		"creator_id", published.CreatorID,
		"segments", len(published.Segments),
		"overlays", len(published.Overlays),
	)
	return published, nil
}

func (s *Session) stepDelay(ctx context.Context) error {
	delay := s.f.cfg.Publish.StepDelay
	if delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-s.f.clock.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) upload(ctx context.Context, p *pendingStory) error {
	for i := range p.uploads {
		s.mu.Lock()
		u := p.uploads[i]
		s.mu.Unlock()
		if u.done {
			continue
		}

		var url string
		err := retry.Do(ctx, s.f.log, "upload story media", func() error {
			var err error
			url, err = s.f.uploader.Upload(ctx, u.local, u.key)
			if err != nil && ctx.Err() != nil {
				return retry.Permanent(err)
			}
			return err
		}, s.retryConfig())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.WrapWithCode(err, errors.CodeUploadFailed, "Upload failed. Your story was kept, try again")
		}

		s.mu.Lock()
		p.story.Segments[u.segment].URL = url
		p.uploads[i].done = true
		s.mu.Unlock()
	}
	return nil
}

func (s *Session) persist(ctx context.Context, p *pendingStory) error {
	s.mu.Lock()
	story := p.story.Clone()
	s.mu.Unlock()

	err := retry.Do(ctx, s.f.log, "store story", func() error {
		err := s.f.repo.Create(ctx, story)
		if err != nil && ctx.Err() != nil {
			return retry.Permanent(err)
		}
		return err
	}, s.retryConfig())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.WrapWithCode(err, errors.CodePersistFailed, "Could not save your story. Try again")
	}
	return nil
}

func (s *Session) failPublish(p *pendingStory, err error) (domain.Story, error) {
	s.mu.Lock()
	s.publishing = false
	discarded := s.discarded
	s.mu.Unlock()

	switch {
	case discarded:
		err = errDiscarded
	case errors.GetCode(err) == "":
		err = errors.WrapWithCode(err, errors.CodeCancelled, "Posting was cancelled")
	}

	code := errors.GetCode(err)
	s.f.metrics.Publish(code)
	s.f.log.Warn("Story publish failed", "story_id", p.story.ID, "code", code, "error", err)
	return domain.Story{}, err
}

func (s *Session) retryConfig() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = s.f.cfg.Publish.UploadRetries
	return cfg
}
