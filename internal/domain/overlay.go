package domain

import (
	"math"
	"time"
)

const (
	MinOverlayScale = 0.5
	MaxOverlayScale = 3.0
)

type OverlayKind string

const (
	OverlaySticker OverlayKind = "sticker"
	OverlayCaption OverlayKind = "caption"
)

type PayloadType string

const (
	PayloadEmoji     PayloadType = "emoji"
	PayloadMention   PayloadType = "mention"
	PayloadHashtag   PayloadType = "hashtag"
	PayloadTimestamp PayloadType = "timestamp"
	PayloadLocation  PayloadType = "location"
	PayloadText      PayloadType = "text"
)

type FontStyle string

const (
	FontRegular FontStyle = "regular"
	FontBold    FontStyle = "bold"
	FontItalic  FontStyle = "italic"
	FontCursive FontStyle = "cursive"
	FontMono    FontStyle = "mono"
)

type TextStyle struct {
	Font       FontStyle `json:"font"`
	Color      string    `json:"color"`
	Background string    `json:"background,omitempty"`
}

// Payload is the kind-specific content of an overlay. Value holds the glyph,
// handle, tag, location name or free text depending on Type.
type Payload struct {
	Type  PayloadType `json:"type"`
	Value string      `json:"value,omitempty"`
	Time  time.Time   `json:"time,omitempty"`
	Style TextStyle   `json:"style,omitempty"`
}

func (p Payload) DisplayText() string {
	switch p.Type {
	case PayloadMention:
		return "@" + p.Value
	case PayloadHashtag:
		return "#" + p.Value
	case PayloadTimestamp:
		return p.Time.Format("15:04")
	default:
		return p.Value
	}
}

// Point is a position on the canvas in normalized [0,1] coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (p Point) Clamped() Point {
	return Point{X: clamp(p.X, 0, 1), Y: clamp(p.Y, 0, 1)}
}

// Transform places an overlay on the canvas.
type Transform struct {
	Position        Point   `json:"position"`
	Scale           float64 `json:"scale"`
	RotationDegrees float64 `json:"rotation_degrees"`
}

func IdentityTransform() Transform {
	return Transform{Position: Point{X: 0.5, Y: 0.5}, Scale: 1}
}

// Clamped returns t with position inside the unit square and scale inside
// [MinOverlayScale, MaxOverlayScale]. NaN components fall back to the identity.
func (t Transform) Clamped() Transform {
	if math.IsNaN(t.Position.X) {
		t.Position.X = 0.5
	}
	if math.IsNaN(t.Position.Y) {
		t.Position.Y = 0.5
	}
	if math.IsNaN(t.Scale) {
		t.Scale = 1
	}
	if math.IsNaN(t.RotationDegrees) || math.IsInf(t.RotationDegrees, 0) {
		t.RotationDegrees = 0
	}
	t.Position = t.Position.Clamped()
	t.Scale = clamp(t.Scale, MinOverlayScale, MaxOverlayScale)
	return t
}

// OverlayItem is a sticker or caption layered on a segment.
type OverlayItem struct {
	ID        string      `json:"id"`
	Kind      OverlayKind `json:"kind"`
	Payload   Payload     `json:"payload"`
	Transform Transform   `json:"transform"`
}

func (o OverlayItem) Normalized() OverlayItem {
	o.Transform = o.Transform.Clamped()
	return o
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
