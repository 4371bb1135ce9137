package web

import (
	"github.com/teslashibe/go-candles/pkg/celebration"
	"github.com/teslashibe/go-candles/pkg/frame"
	"github.com/teslashibe/go-candles/pkg/pose"
	"github.com/teslashibe/go-candles/pkg/protocol"
	"github.com/teslashibe/go-candles/pkg/zones"
)

var (
	_ frame.Renderer     = (*Server)(nil)
	_ celebration.Effect = (*Server)(nil)
)

// SetLayout publishes the viewport and candle rectangles.
func (s *Server) SetLayout(vp pose.Viewport, zs []zones.Zone) {
	candles := make([]protocol.CandleData, len(zs))
	for i, z := range zs {
		candles[i] = protocol.CandleData{
			ID:     z.ID,
			Left:   z.Bounds.Left,
			Top:    z.Bounds.Top,
			Width:  z.Bounds.Width(),
			Height: z.Bounds.Height(),
			Lit:    z.Lit,
		}
	}

	s.mu.Lock()
	s.layout = protocol.LayoutData{Width: vp.Width, Height: vp.Height, Candles: candles}
	layout := s.layout
	s.mu.Unlock()

	s.publish("layout", protocol.TypeLayout, layout)
	s.publish("message", protocol.TypeMessage, protocol.TextData{})
}

// MoveCursor shows the matchstick at c.
func (s *Server) MoveCursor(c pose.Cursor) {
	s.broadcast(protocol.TypeCursor, protocol.CursorData{X: c.X, Y: c.Y})
}

// HideCursor hides the matchstick.
func (s *Server) HideCursor() {
	s.broadcast(protocol.TypeCursorHide, nil)
}

// LightFlame shows the flame of candle id.
func (s *Server) LightFlame(id int) {
	layout := s.setLit(func(c *protocol.CandleData) {
		if c.ID == id {
			c.Lit = true
		}
	})
	s.publish("layout", protocol.TypeLayout, layout)
	s.broadcast(protocol.TypeFlame, protocol.FlameData{ID: id})
}

// ExtinguishFlames hides every flame.
func (s *Server) ExtinguishFlames() {
	layout := s.setLit(func(c *protocol.CandleData) { c.Lit = false })
	s.publish("layout", protocol.TypeLayout, layout)
	s.broadcast(protocol.TypeFlamesOff, nil)
}

// ShowMessage reveals the celebration message.
func (s *Server) ShowMessage() {
	s.publish("message", protocol.TypeMessage, protocol.TextData{Text: s.cfg.Message})
}

// Fire emits one confetti burst.
func (s *Server) Fire(b celebration.Burst) {
	s.broadcast(protocol.TypeConfetti, protocol.ConfettiData{
		ParticleCount: b.Count,
		Angle:         b.Angle,
		Spread:        b.Spread,
		Origin:        protocol.OriginData{X: b.Origin.X, Y: b.Origin.Y},
	})
}

// setLit applies fn to every candle and returns a copy of the new layout.
func (s *Server) setLit(fn func(*protocol.CandleData)) protocol.LayoutData {
	s.mu.Lock()
	defer s.mu.Unlock()

	candles := make([]protocol.CandleData, len(s.layout.Candles))
	copy(candles, s.layout.Candles)
	for i := range candles {
		fn(&candles[i])
	}
	s.layout.Candles = candles
	return s.layout
}
