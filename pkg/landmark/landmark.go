// Package landmark provides single-hand landmark recognition backends.
package landmark

import (
	"fmt"
	"log/slog"
	"time"
)

// NumLandmarks is the length of one hand landmark set.
const NumLandmarks = 21

// FingertipIndex is the landmark the cursor follows.
const FingertipIndex = 1

// NumHands is the number of hands tracked at once.
const NumHands = 1

// Point is a normalized landmark (0-1 in image coordinates).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// Hand is one recognized hand.
type Hand struct {
	Landmarks []Point `json:"landmarks"`
	Score     float64 `json:"score"`
}

// Fingertip returns the tracked landmark, or false when the set is too short.
func (h Hand) Fingertip() (Point, bool) {
	if len(h.Landmarks) <= FingertipIndex {
		return Point{}, false
	}
	return h.Landmarks[FingertipIndex], true
}

// Recognizer finds hands in a JPEG video frame.
type Recognizer interface {
	// RecognizeForVideo returns zero or more hands for the frame at ts.
	RecognizeForVideo(jpeg []byte, ts time.Time) ([]Hand, error)

	// Close releases resources
	Close() error
}

// Backend selects a recognizer implementation.
type Backend string

const (
	// BackendONNX runs a hand landmark ONNX model in-process through OpenCV.
	BackendONNX Backend = "onnx"
	// BackendRemote talks to a landmark sidecar over a websocket.
	BackendRemote Backend = "remote"
)

// Config holds recognizer configuration
type Config struct {
	Backend          Backend       `yaml:"backend" json:"backend"`
	ModelPath        string        `yaml:"model_path" json:"model_path"`
	ConfidenceThresh float64       `yaml:"confidence" json:"confidence"`
	InputWidth       int           `yaml:"input_width" json:"input_width"`
	InputHeight      int           `yaml:"input_height" json:"input_height"`
	RemoteURL        string        `yaml:"remote_url" json:"remote_url"`
	RemoteTimeout    time.Duration `yaml:"remote_timeout" json:"remote_timeout"`
}

// DefaultConfig returns production defaults for the in-process model.
func DefaultConfig() Config {
	return Config{
		Backend:          BackendONNX,
		ModelPath:        "models/hand_landmark.onnx",
		ConfidenceThresh: 0.5,
		InputWidth:       224,
		InputHeight:      224,
		RemoteURL:        "ws://127.0.0.1:8765/landmarks",
		RemoteTimeout:    200 * time.Millisecond,
	}
}

// New creates the recognizer selected by cfg.Backend.
func New(cfg Config, logger *slog.Logger) (Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("creating landmark recognizer",
		"backend", cfg.Backend,
		"model", cfg.ModelPath,
		"num_hands", NumHands,
	)

	switch cfg.Backend {
	case BackendONNX, "":
		return NewNet(cfg, logger)
	case BackendRemote:
		return DialRemote(cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, cfg.Backend)
	}
}

// SelectBest picks the highest scoring hand, keeping the first on ties.
func SelectBest(hands []Hand) *Hand {
	if len(hands) == 0 {
		return nil
	}

	best := &hands[0]
	for i := 1; i < len(hands); i++ {
		if hands[i].Score > best.Score {
			best = &hands[i]
		}
	}
	return best
}
