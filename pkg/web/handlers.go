package web

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/skip2/go-qrcode"
)

// handleStatus returns the app status and pipeline stats
func (s *Server) handleStatus(c *fiber.Ctx) error {
	s.mu.RLock()
	status := s.status
	statsFn := s.stats
	s.mu.RUnlock()

	resp := fiber.Map{
		"status":   status,
		"overlays": s.OverlayClients(),
		"dropped":  s.overlay.Dropped(),
	}
	if s.stations != nil {
		resp["stations"] = s.stations.StationCount()
	}
	if statsFn != nil {
		resp["stats"] = statsFn()
	}
	return c.JSON(resp)
}

// handleLayout returns the current candle layout
func (s *Server) handleLayout(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return c.JSON(s.layout)
}

// handleStart asks the app to acquire its streams
func (s *Server) handleStart(c *fiber.Ctx) error {
	s.mu.RLock()
	fn := s.onStart
	s.mu.RUnlock()

	if fn == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "start not configured",
		})
	}

	if err := fn(); err != nil {
		code := fiber.StatusInternalServerError
		if errors.Is(err, ErrStartRejected) {
			code = fiber.StatusConflict
		}
		return c.Status(code).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "starting"})
}

// handleQR renders a QR code linking a phone to the station page
func (s *Server) handleQR(c *fiber.Ctx) error {
	base := s.cfg.PublicURL
	if base == "" {
		base = c.Protocol() + "://" + c.Hostname()
	}
	url := strings.TrimRight(base, "/") + "/?station=1"

	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set(fiber.HeaderContentType, "image/png")
	c.Set("X-Station-URL", url)
	return c.Send(png)
}
