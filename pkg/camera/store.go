package camera

import (
	"sync"
	"time"

	"github.com/teslashibe/go-candles/pkg/frame"
)

// store keeps the latest encoded frame and its timestamp.
type store struct {
	mu     sync.RWMutex
	jpeg   []byte
	ts     time.Duration
	frames uint64
}

func newStore() *store {
	return &store{ts: frame.NoFrame}
}

// put records a frame. Timestamps that do not advance are bumped by one
// nanosecond so every stored frame has a distinct CurrentTime.
func (s *store) put(jpeg []byte, ts time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ts <= s.ts {
		ts = s.ts + 1
	}
	s.jpeg = jpeg
	s.ts = ts
	s.frames++
}

func (s *store) current() ([]byte, time.Duration) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jpeg, s.ts
}

func (s *store) count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}
