package zones

import (
	"fmt"

	"github.com/teslashibe/go-candles/pkg/pose"
)

// Candle geometry for the default layout, in pixels.
const (
	DefaultCandleWidth  = 40
	DefaultCandleHeight = 60
	DefaultCandleGap    = 160
)

// Layout builds the unlit zone set for a new session. When rects is empty
// a row of Count candles is centred on the viewport.
func Layout(vp pose.Viewport, rects []Rect) ([]Zone, error) {
	if len(rects) == 0 {
		rects = DefaultRects(vp)
	}
	if len(rects) != Count {
		return nil, fmt.Errorf("zones: need %d zones, got %d", Count, len(rects))
	}

	zs := make([]Zone, len(rects))
	for i, r := range rects {
		if r.Right <= r.Left || r.Bottom <= r.Top {
			return nil, fmt.Errorf("zones: zone %d has empty bounds %+v", i, r)
		}
		zs[i] = Zone{ID: i, Bounds: r}
	}
	return zs, nil
}

// DefaultRects returns Count candles spread evenly around the centre of vp,
// sitting just below the vertical middle.
func DefaultRects(vp pose.Viewport) []Rect {
	span := float64((Count-1)*DefaultCandleGap + DefaultCandleWidth)
	left := (vp.Width - span) / 2
	top := vp.Height/2 + 20

	rects := make([]Rect, Count)
	for i := range rects {
		x := left + float64(i*DefaultCandleGap)
		rects[i] = Rect{
			Left:   x,
			Top:    top,
			Right:  x + DefaultCandleWidth,
			Bottom: top + DefaultCandleHeight,
		}
	}
	return rects
}
