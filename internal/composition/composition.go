// Package composition holds the in-progress story a creator is building and
// turns it into an immutable domain.Story on publish.
package composition

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/haptics"
	"github.com/orgball2608/story-engine/internal/profile"
	"github.com/orgball2608/story-engine/internal/repositories/story"
	"github.com/orgball2608/story-engine/internal/storage"
	"github.com/orgball2608/story-engine/internal/transcode"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/errors"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
	"go.uber.org/fx"
)

const DefaultBackground = "#3B82F6"

type StoryType string

const (
	StoryCamera StoryType = "camera"
	StoryPhoto  StoryType = "photo"
	StoryVideo  StoryType = "video"
	StoryText   StoryType = "text"
)

type Opts struct {
	fx.In

	Runner     transcode.Runner
	Uploader   storage.Uploader
	Repository story.Repository
	Profile    profile.Provider
	Haptics    haptics.Service
	Logger     logger.Logger
	Config     *config.Config
	Metrics    *metrics.Metrics
	Clock      clockwork.Clock `optional:"true"`
}

// Factory creates sessions and makes sure a media reference is owned by at
// most one live session.
type Factory struct {
	runner   transcode.Runner
	uploader storage.Uploader
	repo     story.Repository
	profile  profile.Provider
	haptics  haptics.Service
	log      logger.Logger
	cfg      *config.Config
	metrics  *metrics.Metrics
	clock    clockwork.Clock

	mu     sync.Mutex
	claims map[string]*Session
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
		runner:   opts.Runner,
		uploader: opts.Uploader,
		repo:     opts.Repository,
		profile:  opts.Profile,
		haptics:  opts.Haptics,
		log:      opts.Logger,
		cfg:      cfg,
		metrics:  opts.Metrics,
		clock:    clock,
		claims:   make(map[string]*Session),
	}
}

func (f *Factory) claim(s *Session, mediaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if owner, ok := f.claims[mediaID]; ok && owner != s {
		return errors.NewWithCode(errors.CodeMediaInUse, "This media is already being used in another story")
	}
	f.claims[mediaID] = s
	return nil
}

func (f *Factory) release(s *Session, mediaID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.claims[mediaID] == s {
		delete(f.claims, mediaID)
	}
}

func (f *Factory) limits() transcode.Limits {
	return transcode.Limits{
		MaxDuration:  f.cfg.Transcode.MaxDuration,
		MaxSizeBytes: f.cfg.Transcode.MaxSizeBytes,
	}
}
