package capture

import (
	"context"
	"errors"

	"github.com/orgball2608/story-engine/internal/domain"
)

type Position string

const (
	Back  Position = "back"
	Front Position = "front"
)

type FlashMode string

const (
	FlashOff  FlashMode = "off"
	FlashOn   FlashMode = "on"
	FlashAuto FlashMode = "auto"
)

var ErrNoDevice = errors.New("no capture device at requested position")

// Device is one camera. Flash and focus calls lock the device for
// configuration internally.
type Device interface {
	ID() string
	Position() Position
	HasFlash() bool
	SetFlashMode(mode FlashMode) error
	SupportsFocusPoint() bool
	SetFocusPoint(p domain.Point) error
}

// Hardware is the platform capture session. Calls are not safe for concurrent
// use and Begin/CommitConfiguration pairs must never overlap.
type Hardware interface {
	BeginConfiguration()
	CommitConfiguration()
	CanAddInput(d Device) bool
	AddInput(d Device)
	RemoveInput(d Device)
	StartRunning()
	StopRunning()
	IsRunning() bool
	AcquireDevice(p Position) (Device, error)
	ReleaseDevice(d Device)
}

// HardwareFactory opens the platform session for a new capture screen.
type HardwareFactory func() Hardware

// FocusIndicator is the transient marker shown where the user tapped.
type FocusIndicator struct {
	Point domain.Point
	Seq   uint64
}

// State is an eventually consistent view of the session.
type State struct {
	Running  bool
	Position Position
	Flash    FlashMode
	Focus    *FocusIndicator
}

// Session owns one hardware capture session. Every method returns
// immediately; reconfiguration happens on the session's own queue.
type Session interface {
	Start()
	Stop()
	SwitchDevice(p Position)
	SetFlash(mode FlashMode)
	Focus(p domain.Point)
	State() State
	// Sync waits until every call issued before it has been applied.
	Sync(ctx context.Context) error
	// Close stops the session and releases the device.
	Close(ctx context.Context) error
}
