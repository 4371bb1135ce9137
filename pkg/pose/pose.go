// Package pose maps normalized hand landmarks into screen space.
package pose

import "time"

// Sample is one normalized fingertip position from the recognizer.
// The mirror axis has not been applied yet.
type Sample struct {
	X, Y      float64       // 0-1 normalized, not validated
	Timestamp time.Duration // Source video timestamp
}

// Cursor is a position in screen pixels.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport is the size of the overlay surface in pixels.
type Viewport struct {
	Width  float64 `yaml:"width" json:"width"`
	Height float64 `yaml:"height" json:"height"`
}

// DefaultViewport matches a 720p overlay.
func DefaultViewport() Viewport {
	return Viewport{Width: 1280, Height: 720}
}

// Map converts a sample into a cursor. The horizontal axis is mirrored
// because the camera feed is shown flipped. Out-of-range input passes
// through unchanged.
func Map(s Sample, vp Viewport) Cursor {
	return Cursor{
		X: (1 - s.X) * vp.Width,
		Y: s.Y * vp.Height,
	}
}
