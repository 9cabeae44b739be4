package expiry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	mock_story "github.com/orgball2608/story-engine/internal/repositories/story/mocks"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"go.uber.org/mock/gomock"
)

func newSweeper(t *testing.T, repo *mock_story.MockRepository, clock clockwork.Clock) *Sweeper {
	t.Helper()
	cfg := config.Default()
	cfg.Expiry.SweepInterval = time.Minute

	s, err := New(Opts{Repository: repo, Logger: logger.Nop(), Config: cfg, Clock: clock})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestSweep_usesClockTime(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_story.NewMockRepository(ctrl)
	now := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	s := newSweeper(t, repo, clockwork.NewFakeClockAt(now))

	repo.EXPECT().DeleteExpired(gomock.Any(), now).Return(int64(3), nil)
	n, err := s.Sweep(context.Background())
	if err != nil || n != 3 {
		t.Fatalf("Sweep() = %d, %v", n, err)
	}

	repo.EXPECT().DeleteExpired(gomock.Any(), now).Return(int64(0), errors.New("db down"))
	if _, err := s.Sweep(context.Background()); err == nil {
		t.Fatal("expected repository error")
	}
}

func TestSweeper_runsOnSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mock_story.NewMockRepository(ctrl)
	clock := clockwork.NewFakeClock()
	s := newSweeper(t, repo, clock)

	ran := make(chan struct{}, 1)
	repo.EXPECT().DeleteExpired(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, time.Time) (int64, error) {
		select {
		case ran <- struct{}{}:
		default:
		}
		return 1, nil
	}).MinTimes(1)

	s.Start()
	defer func() {
		if err := s.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()

	deadline := time.After(5 * time.Second)
	for {
		clock.Advance(time.Minute)
		select {
		case <-ran:
			return
		case <-deadline:
			t.Fatal("sweep never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
