package protocol

import (
	"encoding/base64"
	"time"
)

// =============================================================================
// Builders
// =============================================================================

// NewLayoutMessage creates a layout message
func NewLayoutMessage(width, height float64, candles []CandleData) (*Message, error) {
	return NewMessage(TypeLayout, LayoutData{Width: width, Height: height, Candles: candles})
}

// NewCursorMessage creates a cursor message
func NewCursorMessage(x, y float64) (*Message, error) {
	return NewMessage(TypeCursor, CursorData{X: x, Y: y})
}

// NewFlameMessage creates a flame message
func NewFlameMessage(id int) (*Message, error) {
	return NewMessage(TypeFlame, FlameData{ID: id})
}

// NewTextMessage creates a celebration message
func NewTextMessage(text string) (*Message, error) {
	return NewMessage(TypeMessage, TextData{Text: text})
}

// NewConfettiMessage creates a confetti burst message
func NewConfettiMessage(c ConfettiData) (*Message, error) {
	return NewMessage(TypeConfetti, c)
}

// NewStatusMessage creates a status message
func NewStatusMessage(s StatusData) (*Message, error) {
	return NewMessage(TypeStatus, s)
}

// NewMicMessage creates a microphone audio message
func NewMicMessage(pcm []byte, sampleRate int) (*Message, error) {
	return NewMessage(TypeMic, MicData{
		Format:     "pcm16",
		SampleRate: sampleRate,
		Channels:   1,
		Data:       base64.StdEncoding.EncodeToString(pcm),
	})
}

// NewFrameMessage creates a frame message from JPEG data
func NewFrameMessage(width, height int, jpeg []byte, capture time.Duration) (*Message, error) {
	return NewMessage(TypeFrame, FrameData{
		Width:     width,
		Height:    height,
		Format:    "jpeg",
		Data:      base64.StdEncoding.EncodeToString(jpeg),
		CaptureMs: float64(capture) / float64(time.Millisecond),
	})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{ID: id, Timestamp: time.Now().UnixMilli()})
}

// NewPongMessage answers a ping
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Accessors
// =============================================================================

// GetMicData extracts mic data from a message
func (m *Message) GetMicData() (*MicData, error) {
	var data MicData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode returns the raw PCM16 bytes
func (mic *MicData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(mic.Data)
}

// GetFrameData extracts frame data from a message
func (m *Message) GetFrameData() (*FrameData, error) {
	var data FrameData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Decode returns the raw JPEG bytes
func (f *FrameData) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(f.Data)
}

// Capture returns the capture timestamp as a duration
func (f *FrameData) Capture() time.Duration {
	return time.Duration(f.CaptureMs * float64(time.Millisecond))
}

// GetPermissionData extracts permission data from a message
func (m *Message) GetPermissionData() (*PermissionData, error) {
	var data PermissionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStatusData extracts status data from a message
func (m *Message) GetStatusData() (*StatusData, error) {
	var data StatusData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
