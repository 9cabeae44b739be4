package captureimpl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/capture"
	"github.com/orgball2608/story-engine/pkg/config"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
	"go.uber.org/fx"
)

type Opts struct {
	fx.In

	Hardware capture.HardwareFactory
	Logger   logger.Logger
	Config   *config.Config
	Metrics  *metrics.Metrics
	Clock    clockwork.Clock `optional:"true"`
}

// Coordinator keeps at most one capture session alive. Opening a new one
// fully closes the previous session first.
type Coordinator struct {
	mu      sync.Mutex
	active  *Manager
	factory capture.HardwareFactory
	log     logger.Logger
	clock   clockwork.Clock
	metrics *metrics.Metrics
	focus   time.Duration
}

func New(opts Opts) *Coordinator {
	var focus time.Duration
	if opts.Config != nil {
		focus = opts.Config.Capture.FocusIndicator
	}
	return &Coordinator{
		factory: opts.Hardware,
		log:     opts.Logger,
		clock:   opts.Clock,
		metrics: opts.Metrics,
		focus:   focus,
	}
}

// Open closes the active session, if any, and returns a fresh one.
func (c *Coordinator) Open(ctx context.Context) (capture.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		if err := c.active.Close(ctx); err != nil {
			return nil, fmt.Errorf("close previous capture session: %w", err)
		}
		c.active = nil
	}

	m := NewManager(ManagerOpts{
		Hardware:       c.factory(),
		Logger:         c.log,
		Clock:          c.clock,
		Metrics:        c.metrics,
		FocusIndicator: c.focus,
	})
	c.active = m
	c.log.Debug("Capture session opened")
	return m, nil
}

// Release closes s and forgets it if it is still the active session.
func (c *Coordinator) Release(ctx context.Context, s capture.Session) error {
	c.mu.Lock()
	if c.active != nil && capture.Session(c.active) == s {
		c.active = nil
	}
	c.mu.Unlock()
	return s.Close(ctx)
}

// Shutdown closes whatever session is still open.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	err := c.active.Close(ctx)
	c.active = nil
	return err
}
