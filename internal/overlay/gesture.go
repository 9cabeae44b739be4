// Package overlay merges drag, pinch and rotate gestures into an overlay's
// persisted transform.
//
// Each gesture kind keeps its own in-progress delta. Deltas are applied on top
// of the last committed transform and only folded into it when that gesture
// ends, so simultaneous recognizers never compound each other's values.
package overlay

import (
	"github.com/orgball2608/story-engine/internal/domain"
)

// Canvas is the on-screen size, in points, that drag translations are measured in.
type Canvas struct {
	Width  float64
	Height float64
}

// Vector is a drag translation in canvas points.
type Vector struct {
	DX float64
	DY float64
}

// Normalize converts a translation in points into unit-square coordinates.
func (c Canvas) Normalize(v Vector) domain.Point {
	if c.Width <= 0 || c.Height <= 0 {
		return domain.Point{}
	}
	return domain.Point{X: v.DX / c.Width, Y: v.DY / c.Height}
}

// Gesture tracks the live manipulation of one overlay.
// It is not safe for concurrent use; gestures arrive on the interaction goroutine.
type Gesture struct {
	canvas    Canvas
	committed domain.Transform

	drag          domain.Point
	magnification float64
	rotation      float64
}

func NewGesture(canvas Canvas, committed domain.Transform) *Gesture {
	return &Gesture{
		canvas:        canvas,
		committed:     committed.Clamped(),
		magnification: 1,
	}
}

// DragChanged records the cumulative translation of the current drag.
func (g *Gesture) DragChanged(translation Vector) {
	g.drag = g.canvas.Normalize(translation)
}

// DragEnded commits the final translation; the position is clamped to the canvas.
func (g *Gesture) DragEnded(translation Vector) domain.Transform {
	g.DragChanged(translation)
	g.committed.Position = domain.Point{
		X: g.committed.Position.X + g.drag.X,
		Y: g.committed.Position.Y + g.drag.Y,
	}.Clamped()
	g.drag = domain.Point{}
	return g.committed
}

// PinchChanged records the cumulative magnification of the current pinch.
func (g *Gesture) PinchChanged(magnification float64) {
	if magnification <= 0 {
		return
	}
	g.magnification = magnification
}

func (g *Gesture) PinchEnded(magnification float64) domain.Transform {
	g.PinchChanged(magnification)
	g.committed.Scale *= g.magnification
	g.committed = g.committed.Clamped()
	g.magnification = 1
	return g.committed
}

// RotateChanged records the cumulative rotation of the current gesture in degrees.
func (g *Gesture) RotateChanged(degrees float64) {
	g.rotation = degrees
}

func (g *Gesture) RotateEnded(degrees float64) domain.Transform {
	g.RotateChanged(degrees)
	g.committed.RotationDegrees += g.rotation
	g.committed = g.committed.Clamped()
	g.rotation = 0
	return g.committed
}

// Cancel drops every in-progress delta, e.g. when the system interrupts touches.
func (g *Gesture) Cancel() {
	g.drag = domain.Point{}
	g.magnification = 1
	g.rotation = 0
}

// Current is the transform to render right now: committed plus live deltas.
func (g *Gesture) Current() domain.Transform {
	return domain.Transform{
		Position: domain.Point{
			X: g.committed.Position.X + g.drag.X,
			Y: g.committed.Position.Y + g.drag.Y,
		},
		Scale:           g.committed.Scale * g.magnification,
		RotationDegrees: g.committed.RotationDegrees + g.rotation,
	}.Clamped()
}

// Committed is the transform to persist on the overlay.
func (g *Gesture) Committed() domain.Transform {
	return g.committed
}

// Apply returns item with the committed transform written into it.
func (g *Gesture) Apply(item domain.OverlayItem) domain.OverlayItem {
	item.Transform = g.committed
	return item
}
