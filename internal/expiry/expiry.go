// Package expiry deletes stories whose time on the platform is up.
package expiry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/repositories/story"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"go.uber.org/fx"
)

const sweepTimeout = 5 * time.Minute

type Opts struct {
	fx.In

	LC         fx.Lifecycle `optional:"true"`
	Repository story.Repository
	Logger     logger.Logger
	Config     *config.Config
	Clock      clockwork.Clock `optional:"true"`
}

// Sweeper periodically removes expired stories from the repository.
type Sweeper struct {
	repo      story.Repository
	log       logger.Logger
	clock     clockwork.Clock
	scheduler gocron.Scheduler
}

func New(opts Opts) (*Sweeper, error) {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	interval := opts.Config.Expiry.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
		gocron.WithClock(clock),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expiry scheduler: %w", err)
	}

	s := &Sweeper{
		repo:      opts.Repository,
		log:       opts.Logger,
		clock:     clock,
		scheduler: scheduler,
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
			defer cancel()
			_, _ = s.Sweep(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule expiry sweep: %w", err)
	}

	if opts.LC != nil {
		opts.LC.Append(fx.Hook{
			OnStart: func(context.Context) error {
				s.Start()
				return nil
			},
			OnStop: func(context.Context) error {
				return s.Stop()
			},
		})
	}

	return s, nil
}

func (s *Sweeper) Start() {
	s.log.Info("Starting expired story sweeper")
	s.scheduler.Start()
}

func (s *Sweeper) Stop() error {
	s.log.Info("Stopping expired story sweeper")
	if err := s.scheduler.Shutdown(); err != nil {
		s.log.Error("Failed to shut down expiry scheduler", "error", err)
		return err
	}
	return nil
}

// Sweep deletes every story that has expired by now and returns how many
// were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	deleted, err := s.repo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		s.log.Error("Failed to delete expired stories", "error", err)
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("Expired stories deleted", "rows_deleted", deleted)
	}
	return deleted, nil
}
