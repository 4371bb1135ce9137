package ingest

import (
	"sync"
	"time"

	"github.com/teslashibe/go-candles/pkg/frame"
)

// FrameSource holds the latest camera frame sent by a station. It satisfies
// frame.VideoSource.
type FrameSource struct {
	mu     sync.RWMutex
	jpeg   []byte
	ts     time.Duration
	width  int
	height int
	frames uint64
}

// NewFrameSource returns a source with no frame yet.
func NewFrameSource() *FrameSource {
	return &FrameSource{ts: frame.NoFrame}
}

// Update stores a frame captured at ts. Frames that do not advance the
// timestamp are ignored.
func (f *FrameSource) Update(jpeg []byte, ts time.Duration, width, height int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ts != frame.NoFrame && ts <= f.ts {
		return false
	}
	f.jpeg = jpeg
	f.ts = ts
	f.width, f.height = width, height
	f.frames++
	return true
}

// CurrentTime returns the capture timestamp of the latest frame.
func (f *FrameSource) CurrentTime() time.Duration {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.ts
}

// CurrentFrame returns the latest JPEG.
func (f *FrameSource) CurrentFrame() []byte {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.jpeg
}

// Size returns the dimensions reported with the latest frame.
func (f *FrameSource) Size() (width, height int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.width, f.height
}

// Frames returns how many frames have been accepted.
func (f *FrameSource) Frames() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frames
}

// Reset forgets the current frame, so a restarted station's clock can begin
// again from zero.
func (f *FrameSource) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jpeg = nil
	f.ts = frame.NoFrame
	f.width, f.height = 0, 0
}

var _ frame.VideoSource = (*FrameSource)(nil)
