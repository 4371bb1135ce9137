// Package ingest accepts browser stations: pages that hold the camera and
// microphone and stream them to the server over a websocket.
package ingest

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-candles/pkg/audioio"
	"github.com/teslashibe/go-candles/pkg/protocol"
)

// ErrNoStation is returned when a request needs a station and none is connected.
var ErrNoStation = errors.New("ingest: no station connected")

// MicSink receives decoded microphone audio.
type MicSink interface {
	Push(chunk audioio.AudioChunk)
}

// Station is a connected browser station
type Station struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time

	mu         sync.Mutex
	lastSeen   time.Time
	permission *protocol.PermissionData
}

// Send writes a message to the station
func (s *Station) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// Hub manages station connections and routes their media
type Hub struct {
	logger *slog.Logger
	frames *FrameSource

	mu           sync.RWMutex
	stations     map[string]*Station
	mic          MicSink
	onPermission func(stationID string, p protocol.PermissionData)

	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	micChunks        atomic.Uint64
	decodeErrors     atomic.Uint64
}

// NewHub creates a station hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:   logger,
		frames:   NewFrameSource(),
		stations: make(map[string]*Station),
	}
}

// Frames returns the video source fed by station frames
func (h *Hub) Frames() *FrameSource {
	return h.frames
}

// SetMicSink routes station audio to sink
func (h *Hub) SetMicSink(sink MicSink) {
	h.mu.Lock()
	h.mic = sink
	h.mu.Unlock()
}

// OnPermission sets the callback for permission reports
func (h *Hub) OnPermission(callback func(stationID string, p protocol.PermissionData)) {
	h.mu.Lock()
	h.onPermission = callback
	h.mu.Unlock()
}

// RegisterRoutes registers the station websocket endpoint
func (h *Hub) RegisterRoutes(r fiber.Router) {
	upgrade := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	r.Get("/ws/station", upgrade, websocket.New(h.handleStation))
	r.Get("/ws/station/:id", upgrade, websocket.New(h.handleStation))
}

// RegisterAPIRoutes registers station inspection routes
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	stations := api.Group("/stations")

	stations.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"stations": h.StationInfos(),
			"count":    h.StationCount(),
		})
	})

	stations.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})
}

func (h *Hub) handleStation(c *websocket.Conn) {
	id := c.Params("id")
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now()
	st := &Station{ID: id, Conn: c, Connected: now, lastSeen: now}

	h.mu.Lock()
	if old, ok := h.stations[id]; ok {
		old.Conn.Close()
	}
	h.stations[id] = st
	count := len(h.stations)
	h.mu.Unlock()

	h.logger.Info("station connected", "station", id, "stations", count)

	defer func() {
		h.mu.Lock()
		if h.stations[id] == st {
			delete(h.stations, id)
		}
		count := len(h.stations)
		h.mu.Unlock()
		h.logger.Info("station disconnected", "station", id, "stations", count)
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.logger.Debug("station read ended", "station", id, "error", err)
			return
		}

		st.mu.Lock()
		st.lastSeen = time.Now()
		st.mu.Unlock()

		h.messagesReceived.Add(1)
		h.handleMessage(st, data)
	}
}

func (h *Hub) handleMessage(st *Station, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		h.decodeErrors.Add(1)
		h.logger.Debug("station parse error", "station", st.ID, "error", err)
		return
	}

	h.mu.RLock()
	mic := h.mic
	permCb := h.onPermission
	h.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeFrame:
		h.handleFrame(st, msg)

	case protocol.TypeMic:
		if mic == nil {
			return
		}
		m, err := msg.GetMicData()
		if err != nil {
			h.decodeErrors.Add(1)
			return
		}
		pcm, err := m.Decode()
		if err != nil {
			h.decodeErrors.Add(1)
			return
		}
		channels := m.Channels
		if channels <= 0 {
			channels = 1
		}
		var chunk audioio.AudioChunk
		chunk.FromBytes(pcm, m.SampleRate, channels)
		h.micChunks.Add(1)
		mic.Push(chunk)

	case protocol.TypePermission:
		p, err := msg.GetPermissionData()
		if err != nil {
			h.decodeErrors.Add(1)
			return
		}
		st.mu.Lock()
		st.permission = p
		st.mu.Unlock()

		h.logger.Info("station permission",
			"station", st.ID,
			"camera", p.Camera,
			"microphone", p.Microphone,
			"error", p.Error,
		)
		if permCb != nil {
			permCb(st.ID, *p)
		}

	case protocol.TypePing:
		reply, err := protocol.NewPongMessage("", msg.Timestamp, time.Now().UnixMilli())
		if err == nil {
			h.send(st, reply)
		}
	}
}

func (h *Hub) handleFrame(st *Station, msg *protocol.Message) {
	f, err := msg.GetFrameData()
	if err != nil {
		h.decodeErrors.Add(1)
		return
	}
	jpeg, err := f.Decode()
	if err != nil {
		h.decodeErrors.Add(1)
		h.logger.Debug("bad frame payload", "station", st.ID, "error", err)
		return
	}
	if h.frames.Update(jpeg, f.Capture(), f.Width, f.Height) {
		h.framesReceived.Add(1)
	}
}

func (h *Hub) send(st *Station, msg *protocol.Message) error {
	h.messagesSent.Add(1)
	return st.Send(msg)
}

// RequestStart asks every connected station to open its devices. The frame
// source is reset so the new capture clock is accepted.
func (h *Hub) RequestStart(req protocol.StartData) error {
	msg, err := protocol.NewMessage(protocol.TypeStart, req)
	if err != nil {
		return err
	}
	h.frames.Reset()
	return h.broadcast(msg)
}

// RequestStop asks every connected station to release its devices.
func (h *Hub) RequestStop() error {
	msg, err := protocol.NewMessage(protocol.TypeStop, nil)
	if err != nil {
		return err
	}
	return h.broadcast(msg)
}

func (h *Hub) broadcast(msg *protocol.Message) error {
	h.mu.RLock()
	stations := make([]*Station, 0, len(h.stations))
	for _, st := range h.stations {
		stations = append(stations, st)
	}
	h.mu.RUnlock()

	if len(stations) == 0 {
		return ErrNoStation
	}

	var errs []error
	for _, st := range stations {
		if err := h.send(st, msg); err != nil {
			h.logger.Warn("station send failed", "station", st.ID, "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(stations) {
		return errors.Join(errs...)
	}
	return nil
}

// StationCount returns the number of connected stations
func (h *Hub) StationCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.stations)
}

// Stats contains hub statistics
type Stats struct {
	StationCount     int    `json:"station_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	MicChunks        uint64 `json:"mic_chunks"`
	DecodeErrors     uint64 `json:"decode_errors"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		StationCount:     h.StationCount(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		MicChunks:        h.micChunks.Load(),
		DecodeErrors:     h.decodeErrors.Load(),
	}
}

// StationInfo describes a connected station
type StationInfo struct {
	ID         string                   `json:"id"`
	Connected  time.Time                `json:"connected"`
	LastSeen   time.Time                `json:"last_seen"`
	Permission *protocol.PermissionData `json:"permission,omitempty"`
}

// StationInfos returns info about all connected stations
func (h *Hub) StationInfos() []StationInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	infos := make([]StationInfo, 0, len(h.stations))
	for _, st := range h.stations {
		st.mu.Lock()
		infos = append(infos, StationInfo{
			ID:         st.ID,
			Connected:  st.Connected,
			LastSeen:   st.lastSeen,
			Permission: st.permission,
		})
		st.mu.Unlock()
	}
	return infos
}
