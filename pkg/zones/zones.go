// Package zones hit-tests the cursor against the candle zones and lights
// each zone exactly once per session.
package zones

import (
	"log/slog"

	"github.com/teslashibe/go-candles/pkg/pose"
)

// Count is the number of candle zones in a session.
const Count = 3

// Rect is an axis-aligned rectangle in screen pixels.
type Rect struct {
	Left   float64 `yaml:"left" json:"left"`
	Top    float64 `yaml:"top" json:"top"`
	Right  float64 `yaml:"right" json:"right"`
	Bottom float64 `yaml:"bottom" json:"bottom"`
}

// Width returns the horizontal extent of r.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns the vertical extent of r.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Zone is one candle. Lit only ever goes from false to true.
type Zone struct {
	ID     int  `json:"id"`
	Bounds Rect `json:"bounds"`
	Lit    bool `json:"lit"`
}

// Margins widen the hitbox sideways and upward. There is no bottom margin:
// the flame is held above or beside the wick.
type Margins struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// DefaultMargins returns the standard generous hitbox.
func DefaultMargins() Margins {
	return Margins{X: 20, Y: 50}
}

// Activator receives one LightFlame call per zone that becomes lit.
type Activator interface {
	LightFlame(zoneID int)
}

// Detector hit-tests cursors against zones.
type Detector struct {
	Margins   Margins
	Activator Activator // optional
	Logger    *slog.Logger
}

// NewDetector creates a detector with the given margins and activator.
func NewDetector(m Margins, a Activator, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{Margins: m, Activator: a, Logger: logger}
}

// Hit reports whether c falls inside the widened bounds of r.
func (d *Detector) Hit(c pose.Cursor, r Rect) bool {
	hitX := c.X > r.Left-d.Margins.X && c.X < r.Right+d.Margins.X
	hitY := c.Y > r.Top-d.Margins.Y && c.Y < r.Bottom
	return hitX && hitY
}

// Check lights every unlit zone the cursor hits and returns their ids in
// zone order. Lit zones are skipped, so repeated calls never re-trigger.
func (d *Detector) Check(c pose.Cursor, zs []Zone) []int {
	var lit []int
	for i := range zs {
		z := &zs[i]
		if z.Lit {
			continue
		}
		if !d.Hit(c, z.Bounds) {
			continue
		}

		z.Lit = true
		lit = append(lit, z.ID)
		d.Logger.Info("candle lit", "zone", z.ID, "x", c.X, "y", c.Y)

		if d.Activator != nil {
			d.Activator.LightFlame(z.ID)
		}
	}
	return lit
}

// AllLit reports whether every zone is lit. An empty set is never lit.
func AllLit(zs []Zone) bool {
	if len(zs) == 0 {
		return false
	}
	for _, z := range zs {
		if !z.Lit {
			return false
		}
	}
	return true
}

// LitCount returns how many zones are lit.
func LitCount(zs []Zone) int {
	n := 0
	for _, z := range zs {
		if z.Lit {
			n++
		}
	}
	return n
}
