// Package frame drives the per-frame interaction pipeline: one pose
// sample, then (when all candles are lit) one audio sample, per display
// refresh.
package frame

import (
	"time"

	"github.com/teslashibe/go-candles/pkg/landmark"
	"github.com/teslashibe/go-candles/pkg/pose"
)

// NoFrame is the CurrentTime of a video source that has no frame yet.
const NoFrame = time.Duration(-1)

// VideoSource exposes the most recent camera frame.
type VideoSource interface {
	// CurrentTime is the timestamp of the current frame. It changes only
	// when a new frame arrives, and is NoFrame before the first one.
	CurrentTime() time.Duration

	// CurrentFrame returns the current frame as JPEG.
	CurrentFrame() []byte
}

// Recognizer finds hands in a video frame.
type Recognizer interface {
	RecognizeForVideo(jpeg []byte, ts time.Time) ([]landmark.Hand, error)
}

// Analyzer exposes spectral magnitudes refreshed on demand.
type Analyzer interface {
	FrequencyBinCount() int
	ByteFrequencyData(dst []byte)
}

// Renderer receives visual updates. Calls must not block.
type Renderer interface {
	MoveCursor(c pose.Cursor)
	HideCursor()
	LightFlame(zoneID int)
	ExtinguishFlames()
	ShowMessage()
}

// Celebrator starts the celebration effect. Fire-and-forget.
type Celebrator interface {
	Celebrate()
}
