// Package playback drives story viewing: a per-segment progress timer,
// pause sources, tap and swipe navigation and dismissal.
package playback

import (
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/internal/haptics"
	"github.com/orgball2608/story-engine/internal/profile"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
	"go.uber.org/fx"
)

type PauseReason uint8

const (
	PauseHold PauseReason = 1 << iota
	PausePeek
	PauseBackground
)

type DismissReason string

const (
	DismissFinished         DismissReason = "finished"
	DismissRetreatPastStart DismissReason = "retreat_past_start"
	DismissSwipeDown        DismissReason = "swipe_down"
	DismissClosed           DismissReason = "closed"
	DismissNoStories        DismissReason = "no_stories"
)

type EventKind string

const (
	EventSegment     EventKind = "segment"
	EventPaused      EventKind = "paused"
	EventResumed     EventKind = "resumed"
	EventProfilePeek EventKind = "profile_peek"
	EventDismissed   EventKind = "dismissed"
)

// Event reports a controller change. Segment is the segment under the cursor
// when the change happened. CreatorID is set for profile peeks and Reason for
// dismissals. Events are delivered one at a time in the order the changes
// happened.
type Event struct {
	Kind      EventKind
	Cursor    Cursor
	Segment   domain.StorySegment
	CreatorID string
	Reason    DismissReason
}

type Opts struct {
	fx.In

	Profile profile.Provider
	Haptics haptics.Service
	Logger  logger.Logger
	Config  *config.Config
	Metrics *metrics.Metrics
	Clock   clockwork.Clock `optional:"true"`
}

type Factory struct {
	profile profile.Provider
	haptics haptics.Service
	log     logger.Logger
	cfg     *config.Config
	metrics *metrics.Metrics
	clock   clockwork.Clock
}

func NewFactory(opts Opts) *Factory {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &Factory{
		profile: opts.Profile,
		haptics: opts.Haptics,
		log:     opts.Logger,
		cfg:     cfg,
		metrics: opts.Metrics,
		clock:   clock,
	}
}

// New creates a controller over stories. Stories that would break playback
// (no segments, non-positive durations) are skipped, so cursor indexes refer
// to the playable list only. onEvent may be nil; it is called without
// internal locks held and may call back into the controller.
func (f *Factory) New(stories []domain.Story, onEvent func(Event)) *Controller {
	valid := make([]domain.Story, 0, len(stories))
	for _, s := range stories {
		if err := s.Validate(); err != nil {
			f.log.Warn("Skipping unplayable story", "story_id", s.ID, "error", err)
			continue
		}
		valid = append(valid, s.Clone())
	}
	return &Controller{
		f:       f,
		onEvent: onEvent,
		m:       machine{stories: valid},
		done:    make(chan struct{}),
	}
}
