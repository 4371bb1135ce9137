// Package web serves the candle overlay page and its API, and renders the
// scene by pushing messages to connected overlays.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-candles/pkg/hub"
	"github.com/teslashibe/go-candles/pkg/ingest"
	"github.com/teslashibe/go-candles/pkg/protocol"
)

//go:embed static
var staticFiles embed.FS

// ErrStartRejected is returned by a StartFunc when the app cannot start now.
var ErrStartRejected = errors.New("web: start rejected")

// StartFunc handles a start request from the overlay.
type StartFunc func() error

// Config holds web server settings.
type Config struct {
	Port         int    `yaml:"port" json:"port"`
	Message      string `yaml:"message" json:"message"`             // Shown when the candles are blown out
	PublicURL    string `yaml:"public_url" json:"public_url"`       // Base URL encoded in the station QR code
	AllowOrigins string `yaml:"allow_origins" json:"allow_origins"` // CORS origins
}

// DefaultConfig returns the default web settings.
func DefaultConfig() Config {
	return Config{
		Port:         8080,
		Message:      "¡Feliz cumpleaños!",
		AllowOrigins: "*",
	}
}

// Server is the overlay web server
type Server struct {
	app      *fiber.App
	cfg      Config
	logger   *slog.Logger
	overlay  *hub.Hub
	stations *ingest.Hub

	mu      sync.RWMutex
	status  protocol.StatusData
	layout  protocol.LayoutData
	onStart StartFunc
	stats   func() any
}

// NewServer creates the server. stations may be nil when no browser station
// is used.
func NewServer(cfg Config, stations *ingest.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		overlay:  hub.New("overlay", logger),
		stations: stations,
		status:   protocol.StatusData{State: "loading"},
	}

	app := fiber.New(fiber.Config{
		AppName:               "Candles",
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.AllowOrigins}))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/layout", s.handleLayout)
	api.Post("/start", s.handleStart)
	api.Get("/qr.png", s.handleQR)

	app.Get("/ws/overlay", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(s.handleOverlayWS))

	if stations != nil {
		stations.RegisterRoutes(app)
		stations.RegisterAPIRoutes(api)
	}

	root, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	app.Use("/", filesystem.New(filesystem.Config{
		Root:  http.FS(root),
		Index: "index.html",
	}))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// OnStart sets the handler for POST /api/start.
func (s *Server) OnStart(fn StartFunc) {
	s.mu.Lock()
	s.onStart = fn
	s.mu.Unlock()
}

// SetStats sets a provider whose value is included in /api/status.
func (s *Server) SetStats(fn func() any) {
	s.mu.Lock()
	s.stats = fn
	s.mu.Unlock()
}

// Run listens on the configured port until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on :%d: %w", s.cfg.Port, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the overlay hub and serves on ln until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.overlay.Run(ctx)

	s.logger.Info("overlay listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- s.app.Listener(ln) }()

	select {
	case <-ctx.Done():
		return s.app.Shutdown()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleOverlayWS(c *websocket.Conn) {
	hub.NewClient(s.overlay, c).Run()
}

// ReportStatus records and pushes the app status.
func (s *Server) ReportStatus(st protocol.StatusData) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()

	s.publish("status", protocol.TypeStatus, st)
}

// Status returns the last reported status.
func (s *Server) Status() protocol.StatusData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// OverlayClients returns the number of connected overlay pages.
func (s *Server) OverlayClients() int {
	return s.overlay.ClientCount()
}

// publish sends a message and retains it for overlays that connect later.
func (s *Server) publish(key string, t protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(t, data)
	if err == nil {
		err = s.overlay.PublishJSON(key, msg)
	}
	if err != nil {
		s.logger.Error("encode overlay message", "type", t, "error", err)
	}
}

// broadcast sends a transient message.
func (s *Server) broadcast(t protocol.MessageType, data any) {
	msg, err := protocol.NewMessage(t, data)
	if err == nil {
		err = s.overlay.BroadcastJSON(msg)
	}
	if err != nil {
		s.logger.Error("encode overlay message", "type", t, "error", err)
	}
}
