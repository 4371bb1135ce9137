// Package protocol defines the WebSocket messages exchanged with the overlay
// page and the browser station.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Server → overlay
	TypeLayout     MessageType = "layout"      // Candle rectangles and viewport
	TypeCursor     MessageType = "cursor"      // Cursor moved
	TypeCursorHide MessageType = "cursor_hide" // Hand lost
	TypeFlame      MessageType = "flame"       // Candle lit
	TypeFlamesOff  MessageType = "flames_off"  // All candles blown out
	TypeMessage    MessageType = "message"     // Birthday message shown
	TypeConfetti   MessageType = "confetti"    // One confetti burst
	TypeStatus     MessageType = "status"      // App status changed

	// Station → server
	TypeMic        MessageType = "mic"        // Microphone audio
	TypeFrame      MessageType = "frame"      // Camera frame
	TypePermission MessageType = "permission" // Device permission outcome

	// Server → station
	TypeStart MessageType = "start" // Acquire camera and microphone
	TypeStop  MessageType = "stop"  // Release devices

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the envelope for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s data: %w", msgType, err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// ParseData unmarshals the message data into v
func (m *Message) ParseData(v any) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// =============================================================================
// Overlay message types
// =============================================================================

// CandleData is one candle rectangle in viewport pixels
type CandleData struct {
	ID     int     `json:"id"`
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Lit    bool    `json:"lit"`
}

// LayoutData describes the scene the overlay should draw
type LayoutData struct {
	Width   float64      `json:"width"`
	Height  float64      `json:"height"`
	Candles []CandleData `json:"candles"`
}

// CursorData is a cursor position in viewport pixels
type CursorData struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlameData identifies a lit candle
type FlameData struct {
	ID int `json:"id"`
}

// TextData carries the celebration message
type TextData struct {
	Text string `json:"text"`
}

// OriginData is a normalized confetti origin
type OriginData struct {
	X float64 `json:"x"`
	Y float64 `json:"y,omitempty"`
}

// ConfettiData is one confetti burst
type ConfettiData struct {
	ParticleCount int        `json:"particleCount"`
	Angle         float64    `json:"angle"`
	Spread        float64    `json:"spread"`
	Origin        OriginData `json:"origin"`
}

// StatusData reports what the app is doing
type StatusData struct {
	State   string `json:"state"` // "loading", "ready", "starting", "running", "complete", "permission_denied", "failed"
	Session string `json:"session,omitempty"`
	Error   string `json:"error,omitempty"`
	Retry   bool   `json:"retry,omitempty"` // Whether POST /api/start may succeed
}

// =============================================================================
// Station message types
// =============================================================================

// MicData contains microphone audio
type MicData struct {
	Format     string `json:"format"`      // "pcm16"
	SampleRate int    `json:"sample_rate"` // AudioContext rate, e.g. 48000
	Channels   int    `json:"channels"`
	Data       string `json:"data"` // base64 encoded
}

// FrameData contains a camera frame
type FrameData struct {
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Format    string  `json:"format"` // "jpeg"
	Data      string  `json:"data"`   // base64 encoded
	CaptureMs float64 `json:"capture_ms"`
}

// PermissionData reports which devices the station could open
type PermissionData struct {
	Camera     bool   `json:"camera"`
	Microphone bool   `json:"microphone"`
	Error      string `json:"error,omitempty"` // Browser error name, e.g. "NotAllowedError"
}

// Granted reports whether every device needed was opened.
func (p PermissionData) Granted(needCamera bool) bool {
	return p.Microphone && (p.Camera || !needCamera)
}

// StartData asks the station to open its devices
type StartData struct {
	Camera     bool `json:"camera"` // Stream camera frames as well as audio
	Width      int  `json:"width,omitempty"`
	Height     int  `json:"height,omitempty"`
	FrameRate  int  `json:"frame_rate,omitempty"`
	SampleRate int  `json:"sample_rate,omitempty"`
}

// =============================================================================
// Bidirectional message types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
