package protocol

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
	}{
		{"cursor", TypeCursor, CursorData{X: 10, Y: 20}},
		{"flame", TypeFlame, FlameData{ID: 2}},
		{"nil data", TypeCursorHide, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("timestamp should be set")
			}
			if tt.data == nil && msg.Data != nil {
				t.Errorf("data = %s, want nil", msg.Data)
			}
		})
	}
}

func TestNewMessage_MarshalError(t *testing.T) {
	if _, err := NewMessage(TypeStatus, make(chan int)); err == nil {
		t.Error("expected error for unmarshalable data")
	}
}

func TestMessage_WireShape(t *testing.T) {
	msg, err := NewConfettiMessage(ConfettiData{
		ParticleCount: 5,
		Angle:         60,
		Spread:        55,
		Origin:        OriginData{X: 0},
	})
	if err != nil {
		t.Fatalf("NewConfettiMessage() error = %v", err)
	}
	b, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if raw["type"] != "confetti" {
		t.Errorf("type = %v, want confetti", raw["type"])
	}
	if _, ok := raw["ts"]; !ok {
		t.Error("missing ts")
	}
	data := raw["data"].(map[string]any)
	if data["particleCount"] != float64(5) {
		t.Errorf("particleCount = %v, want 5", data["particleCount"])
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    MessageType
		wantErr bool
	}{
		{"permission", `{"type":"permission","data":{"camera":true,"microphone":false,"error":"NotAllowedError"}}`, TypePermission, false},
		{"no data", `{"type":"pong"}`, TypePong, false},
		{"missing type", `{"data":{}}`, "", true},
		{"not json", `hello`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && msg.Type != tt.want {
				t.Errorf("type = %v, want %v", msg.Type, tt.want)
			}
		})
	}
}

func TestMicMessage(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	msg, err := NewMicMessage(pcm, 44100)
	if err != nil {
		t.Fatalf("NewMicMessage() error = %v", err)
	}
	b, _ := msg.Bytes()
	parsed, err := ParseMessage(b)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}

	mic, err := parsed.GetMicData()
	if err != nil {
		t.Fatalf("GetMicData() error = %v", err)
	}
	if mic.SampleRate != 44100 || mic.Format != "pcm16" {
		t.Errorf("mic = %+v", mic)
	}
	got, err := mic.Decode()
	if err != nil || string(got) != string(pcm) {
		t.Errorf("Decode() = %v, %v, want %v", got, err, pcm)
	}
}

func TestFrameData_Capture(t *testing.T) {
	msg, err := NewFrameMessage(640, 480, []byte{0xFF, 0xD8}, 1500*time.Millisecond)
	if err != nil {
		t.Fatalf("NewFrameMessage() error = %v", err)
	}
	f, err := msg.GetFrameData()
	if err != nil {
		t.Fatalf("GetFrameData() error = %v", err)
	}
	if f.Capture() != 1500*time.Millisecond {
		t.Errorf("Capture() = %v, want 1.5s", f.Capture())
	}
	if jpeg, _ := f.Decode(); len(jpeg) != 2 {
		t.Errorf("Decode() = %v", jpeg)
	}
}

func TestFrameData_BadBase64(t *testing.T) {
	f := FrameData{Data: "!!!"}
	if _, err := f.Decode(); err == nil {
		t.Error("expected base64 error")
	}
}

func TestPermissionData_Granted(t *testing.T) {
	tests := []struct {
		p          PermissionData
		needCamera bool
		want       bool
	}{
		{PermissionData{Camera: true, Microphone: true}, true, true},
		{PermissionData{Microphone: true}, true, false},
		{PermissionData{Microphone: true}, false, true},
		{PermissionData{Camera: true}, false, false},
	}

	for _, tt := range tests {
		if got := tt.p.Granted(tt.needCamera); got != tt.want {
			t.Errorf("%+v.Granted(%v) = %v, want %v", tt.p, tt.needCamera, got, tt.want)
		}
	}
}

func TestStatusMessage_OmitsEmpty(t *testing.T) {
	msg, _ := NewStatusMessage(StatusData{State: "ready"})
	if strings.Contains(string(msg.Data), "error") {
		t.Errorf("data = %s, want no error field", msg.Data)
	}
	s, err := msg.GetStatusData()
	if err != nil || s.State != "ready" {
		t.Errorf("GetStatusData() = %+v, %v", s, err)
	}
}
