package captureimpl

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orgball2608/story-engine/internal/capture"
	"github.com/orgball2608/story-engine/internal/domain"
	"github.com/orgball2608/story-engine/pkg/logger"
	"github.com/orgball2608/story-engine/pkg/metrics"
)

const defaultFocusIndicator = time.Second

type ManagerOpts struct {
	Hardware        capture.Hardware
	Logger          logger.Logger
	Clock           clockwork.Clock
	Metrics         *metrics.Metrics
	FocusIndicator  time.Duration
	InitialPosition capture.Position
}

// Manager serializes every hardware call onto one queue so configuration
// blocks never overlap and callers never wait on the hardware.
type Manager struct {
	queue   *serialQueue
	log     logger.Logger
	clock   clockwork.Clock
	metrics *metrics.Metrics
	closed  atomic.Bool

	indicatorFor time.Duration

	// owned by the queue goroutine
	hw    capture.Hardware
	input capture.Device

	mu         sync.RWMutex
	state      capture.State
	focusSeq   uint64
	focusTimer clockwork.Timer
}

var _ capture.Session = (*Manager)(nil)

func NewManager(opts ManagerOpts) *Manager {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	indicator := opts.FocusIndicator
	if indicator <= 0 {
		indicator = defaultFocusIndicator
	}
	position := opts.InitialPosition
	if position == "" {
		position = capture.Back
	}

	return &Manager{
		queue:        newSerialQueue(),
		log:          opts.Logger,
		clock:        clock,
		metrics:      opts.Metrics,
		indicatorFor: indicator,
		hw:           opts.Hardware,
		state: capture.State{
			Position: position,
			Flash:    capture.FlashOff,
		},
	}
}

func (m *Manager) submit(op string, task func() string) {
	ok := m.queue.Submit(func() {
		m.metrics.CaptureOperation(op, task())
	})
	if !ok {
		m.log.Debug("Capture session closed, dropping operation", "operation", op)
	}
}

// Start configures the session on first use and starts it. Starting a
// running session does nothing.
func (m *Manager) Start() {
	m.submit("start", func() string {
		m.configure()
		if m.hw.IsRunning() {
			return "noop"
		}
		m.hw.StartRunning()
		m.setRunning(m.hw.IsRunning())
		return "ok"
	})
}

// Stop stops a running session; stopping a stopped session does nothing.
func (m *Manager) Stop() {
	m.submit("stop", func() string {
		if !m.hw.IsRunning() {
			return "noop"
		}
		m.hw.StopRunning()
		m.setRunning(m.hw.IsRunning())
		return "ok"
	})
}

// SwitchDevice replaces the input with the camera at p. The replacement is
// acquired before the current input is touched, so a failed switch leaves
// the session on its previous camera.
func (m *Manager) SwitchDevice(p capture.Position) {
	m.submit("switch_device", func() string {
		if m.input != nil && m.input.Position() == p {
			return "noop"
		}

		next, err := m.hw.AcquireDevice(p)
		if err != nil {
			m.log.Warn("Camera switch failed, keeping current input", "position", p, "error", err)
			return "failed"
		}

		m.hw.BeginConfiguration()
		prev := m.input
		if prev != nil {
			m.hw.RemoveInput(prev)
		}
		if !m.hw.CanAddInput(next) {
			if prev != nil {
				m.hw.AddInput(prev)
			}
			m.hw.CommitConfiguration()
			m.hw.ReleaseDevice(next)
			m.log.Warn("Camera input rejected, keeping current input", "position", p)
			return "failed"
		}
		m.hw.AddInput(next)
		m.hw.CommitConfiguration()

		m.input = next
		if prev != nil {
			m.hw.ReleaseDevice(prev)
		}

		flash := m.snapshot().Flash
		if flash != capture.FlashOff && !next.HasFlash() {
			flash = capture.FlashOff
		} else if next.HasFlash() {
			if err := next.SetFlashMode(flash); err != nil {
				m.log.Warn("Failed to carry flash mode to new camera", "position", p, "error", err)
				flash = capture.FlashOff
			}
		}

		m.mu.Lock()
		m.state.Position = p
		m.state.Flash = flash
		m.mu.Unlock()
		return "ok"
	})
}

// SetFlash applies mode when the current camera has a flash and ignores it
// otherwise.
func (m *Manager) SetFlash(mode capture.FlashMode) {
	m.submit("set_flash", func() string {
		if m.input == nil || !m.input.HasFlash() {
			m.log.Debug("Flash not available on current camera", "mode", mode)
			return "unsupported"
		}
		if err := m.input.SetFlashMode(mode); err != nil {
			m.log.Warn("Failed to set flash mode", "mode", mode, "error", err)
			return "failed"
		}
		m.mu.Lock()
		m.state.Flash = mode
		m.mu.Unlock()
		return "ok"
	})
}

// Focus shows the focus indicator at p (normalized) right away and points
// the camera there when it supports point focus. The indicator clears on its
// own unless a newer focus replaces it.
func (m *Manager) Focus(p domain.Point) {
	p = p.Clamped()

	m.mu.Lock()
	m.focusSeq++
	seq := m.focusSeq
	m.state.Focus = &capture.FocusIndicator{Point: p, Seq: seq}
	if m.focusTimer != nil {
		m.focusTimer.Stop()
	}
	m.focusTimer = m.clock.AfterFunc(m.indicatorFor, func() {
		m.clearFocus(seq)
	})
	m.mu.Unlock()

	m.submit("focus", func() string {
		if m.input == nil || !m.input.SupportsFocusPoint() {
			return "unsupported"
		}
		if err := m.input.SetFocusPoint(p); err != nil {
			m.log.Warn("Failed to set focus point", "x", p.X, "y", p.Y, "error", err)
			return "failed"
		}
		return "ok"
	})
}

func (m *Manager) clearFocus(seq uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.focusSeq == seq {
		m.state.Focus = nil
	}
}

func (m *Manager) State() capture.State {
	return m.snapshot()
}

func (m *Manager) Sync(ctx context.Context) error {
	return m.queue.Barrier(ctx)
}

// Close stops the session, detaches the camera and shuts the queue down.
// Calls after Close are dropped.
func (m *Manager) Close(ctx context.Context) error {
	if m.closed.Swap(true) {
		return nil
	}

	m.submit("close", func() string {
		if m.hw.IsRunning() {
			m.hw.StopRunning()
		}
		if m.input != nil {
			m.hw.BeginConfiguration()
			m.hw.RemoveInput(m.input)
			m.hw.CommitConfiguration()
			m.hw.ReleaseDevice(m.input)
			m.input = nil
		}
		m.setRunning(false)
		return "ok"
	})
	m.queue.Close()

	m.mu.Lock()
	if m.focusTimer != nil {
		m.focusTimer.Stop()
	}
	m.state.Focus = nil
	m.mu.Unlock()

	select {
	case <-m.queue.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) configure() {
	if m.input != nil {
		return
	}

	position := m.snapshot().Position
	dev, err := m.hw.AcquireDevice(position)
	if err != nil {
		m.log.Warn("No camera available", "position", position, "error", err)
		return
	}

	m.hw.BeginConfiguration()
	if !m.hw.CanAddInput(dev) {
		m.hw.CommitConfiguration()
		m.hw.ReleaseDevice(dev)
		m.log.Warn("Camera input rejected", "position", position)
		return
	}
	m.hw.AddInput(dev)
	m.hw.CommitConfiguration()
	m.input = dev
}

func (m *Manager) setRunning(running bool) {
	m.mu.Lock()
	m.state.Running = running
	m.mu.Unlock()
}

func (m *Manager) snapshot() capture.State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.state
	if s.Focus != nil {
		f := *s.Focus
		s.Focus = &f
	}
	return s
}
