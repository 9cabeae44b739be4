package captureimpl

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/capture"
	"github.com/orgball2608/story-engine/internal/capture/simulated"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
)

func TestCoordinator_openClosesPreviousSession(t *testing.T) {
	var opened []*simulated.Hardware
	c := New(Opts{
		Hardware: func() capture.Hardware {
			hw := simulated.New()
			opened = append(opened, hw)
			return hw
		},
		Logger: logger.Nop(),
		Config: config.Default(),
		Clock:  clockwork.NewFakeClock(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := c.Open(ctx)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first.Start()
	if err := first.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	second, err := c.Open(ctx)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if opened[0].IsRunning() || len(opened[0].Inputs()) != 0 {
		t.Fatal("previous session must be fully stopped before a new one opens")
	}

	second.Start()
	if err := second.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !opened[1].IsRunning() {
		t.Error("new session should run")
	}

	if err := c.Release(ctx, second); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if opened[1].IsRunning() {
		t.Error("released session still running")
	}
	if err := c.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown with nothing open: %v", err)
	}
}
