// Package simulated is an in-memory capture.Hardware for headless runs and tests.
package simulated

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/orgball2608/story-engine/internal/capture"
	"github.com/orgball2608/story-engine/internal/domain"
)

type Stats struct {
	Begins       int
	Commits      int
	MaxOverlap   int
	Acquired     int
	Released     int
	InputChanges int
}

type Option func(*Hardware)

// WithoutPosition removes the camera at p, so switching to it fails.
func WithoutPosition(p capture.Position) Option {
	return func(h *Hardware) {
		delete(h.specs, p)
	}
}

// WithConfigDelay holds every configuration open for d.
func WithConfigDelay(d time.Duration) Option {
	return func(h *Hardware) {
		h.configDelay = d
	}
}

// RejectInputs makes CanAddInput report false for devices at p.
func RejectInputs(p capture.Position) Option {
	return func(h *Hardware) {
		h.rejected[p] = true
	}
}

type deviceSpec struct {
	flash bool
	focus bool
}

type Hardware struct {
	mu          sync.Mutex
	specs       map[capture.Position]deviceSpec
	rejected    map[capture.Position]bool
	configDelay time.Duration
	inputs      []*Device
	running     bool
	seq         int
	stats       Stats

	configuring int32
}

var _ capture.Hardware = (*Hardware)(nil)

// New returns hardware with a back camera that has flash and point focus and
// a front camera with neither.
func New(opts ...Option) *Hardware {
	h := &Hardware{
		specs: map[capture.Position]deviceSpec{
			capture.Back:  {flash: true, focus: true},
			capture.Front: {},
		},
		rejected: map[capture.Position]bool{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hardware) BeginConfiguration() {
	n := int(atomic.AddInt32(&h.configuring, 1))

	h.mu.Lock()
	h.stats.Begins++
	if n > h.stats.MaxOverlap {
		h.stats.MaxOverlap = n
	}
	delay := h.configDelay
	h.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
}

func (h *Hardware) CommitConfiguration() {
	atomic.AddInt32(&h.configuring, -1)

	h.mu.Lock()
	h.stats.Commits++
	h.mu.Unlock()
}

func (h *Hardware) CanAddInput(d capture.Device) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.rejected[d.Position()] {
		return false
	}
	for _, in := range h.inputs {
		if in.Position() == d.Position() {
			return false
		}
	}
	return true
}

func (h *Hardware) AddInput(d capture.Device) {
	dev, ok := d.(*Device)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.inputs = append(h.inputs, dev)
	h.stats.InputChanges++
}

func (h *Hardware) RemoveInput(d capture.Device) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, in := range h.inputs {
		if in.ID() == d.ID() {
			h.inputs = append(h.inputs[:i], h.inputs[i+1:]...)
			h.stats.InputChanges++
			return
		}
	}
}

func (h *Hardware) StartRunning() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()
}

func (h *Hardware) StopRunning() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

func (h *Hardware) IsRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

func (h *Hardware) AcquireDevice(p capture.Position) (capture.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	spec, ok := h.specs[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", capture.ErrNoDevice, p)
	}
	h.seq++
	h.stats.Acquired++
	return &Device{
		id:       fmt.Sprintf("%s-%d", p, h.seq),
		position: p,
		spec:     spec,
		flash:    capture.FlashOff,
	}, nil
}

func (h *Hardware) ReleaseDevice(capture.Device) {
	h.mu.Lock()
	h.stats.Released++
	h.mu.Unlock()
}

// Inputs returns the positions of the attached inputs.
func (h *Hardware) Inputs() []capture.Position {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]capture.Position, 0, len(h.inputs))
	for _, in := range h.inputs {
		out = append(out, in.Position())
	}
	return out
}

// Input returns the attached device, if any.
func (h *Hardware) Input() *Device {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.inputs) == 0 {
		return nil
	}
	return h.inputs[0]
}

func (h *Hardware) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

type Device struct {
	id       string
	position capture.Position
	spec     deviceSpec

	mu    sync.Mutex
	flash capture.FlashMode
	focus *domain.Point
}

var _ capture.Device = (*Device)(nil)

func (d *Device) ID() string                 { return d.id }
func (d *Device) Position() capture.Position { return d.position }
func (d *Device) HasFlash() bool             { return d.spec.flash }
func (d *Device) SupportsFocusPoint() bool   { return d.spec.focus }

func (d *Device) SetFlashMode(mode capture.FlashMode) error {
	if !d.spec.flash {
		return fmt.Errorf("device %s has no flash", d.id)
	}
	d.mu.Lock()
	d.flash = mode
	d.mu.Unlock()
	return nil
}

func (d *Device) SetFocusPoint(p domain.Point) error {
	if !d.spec.focus {
		return fmt.Errorf("device %s does not support point focus", d.id)
	}
	d.mu.Lock()
	d.focus = &p
	d.mu.Unlock()
	return nil
}

func (d *Device) FlashMode() capture.FlashMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flash
}

func (d *Device) FocusPoint() (domain.Point, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.focus == nil {
		return domain.Point{}, false
	}
	return *d.focus, true
}
