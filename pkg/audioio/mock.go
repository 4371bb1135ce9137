package audioio

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Segment is one step of a scripted mock signal. Frequency 0 with a non-zero
// Amplitude produces white noise, which reads like breath on a microphone.
type Segment struct {
	Duration  time.Duration
	Amplitude float64 // 0.0 to 1.0
	Frequency float64 // Hz
}

// MockSource generates synthetic audio: silence, a sine wave, or a script of
// segments. Once a script runs out the source falls silent.
type MockSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	stopCh   chan struct{}

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64

	script  []Segment
	elapsed time.Duration
	phase   float64
	noise   uint32
}

// MockSourceOption configures a MockSource.
type MockSourceOption func(*MockSource)

// WithSineWave makes the mock play a continuous tone.
func WithSineWave(frequency, amplitude float64) MockSourceOption {
	return func(m *MockSource) {
		m.script = []Segment{{Duration: -1, Frequency: frequency, Amplitude: amplitude}}
	}
}

// WithScript makes the mock play the segments in order. A negative segment
// duration never ends.
func WithScript(segments ...Segment) MockSourceOption {
	return func(m *MockSource) {
		m.script = append([]Segment(nil), segments...)
	}
}

// WithBlow stays quiet for after, then plays a noise burst of length d.
func WithBlow(after, d time.Duration) MockSourceOption {
	return WithScript(
		Segment{Duration: after},
		Segment{Duration: d, Amplitude: 0.6},
	)
}

// NewMockSource creates a mock source. With no options it produces silence.
func NewMockSource(cfg Config, logger *slog.Logger, opts ...MockSourceOption) *MockSource {
	if logger == nil {
		logger = slog.Default()
	}
	m := &MockSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 10),
		stopCh:   make(chan struct{}),
		noise:    2463534242,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start begins generating audio.
func (m *MockSource) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.running {
		return nil
	}

	m.running = true
	m.stopCh = make(chan struct{})
	m.streamCh = make(chan AudioChunk, 10)

	go m.generateLoop(ctx, m.stopCh, m.streamCh)

	m.logger.Info("mock audio source started",
		"sample_rate", m.cfg.SampleRate,
		"segments", len(m.script),
	)
	return nil
}

func (m *MockSource) generateLoop(ctx context.Context, stop <-chan struct{}, out chan<- AudioChunk) {
	ticker := time.NewTicker(m.cfg.BufferDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Stop()
			return
		case <-stop:
			return
		case <-ticker.C:
		}

		chunk := m.generateChunk()

		m.mu.Lock()
		if !m.running {
			m.mu.Unlock()
			return
		}
		select {
		case out <- chunk:
			m.chunksRead.Add(1)
			m.samplesRead.Add(int64(len(chunk.Samples)))
		default:
			m.overruns.Add(1)
		}
		m.mu.Unlock()
	}
}

// segmentAt returns the script segment playing at t.
func (m *MockSource) segmentAt(t time.Duration) Segment {
	var start time.Duration
	for _, seg := range m.script {
		if seg.Duration < 0 || t < start+seg.Duration {
			return seg
		}
		start += seg.Duration
	}
	return Segment{}
}

func (m *MockSource) generateChunk() AudioChunk {
	frames := m.cfg.BufferSize()
	channels := m.cfg.Channels
	samples := make([]int16, frames*channels)

	seg := m.segmentAt(m.elapsed)
	for i := 0; i < frames; i++ {
		var v float64
		switch {
		case seg.Amplitude == 0:
		case seg.Frequency > 0:
			v = seg.Amplitude * math.Sin(2*math.Pi*seg.Frequency*m.phase/float64(m.cfg.SampleRate))
		default:
			v = seg.Amplitude * m.nextNoise()
		}
		s := int16(v * 32767)
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = s
		}

		m.phase++
		if m.phase >= float64(m.cfg.SampleRate) {
			m.phase = 0
		}
	}
	m.elapsed += m.cfg.BufferDuration

	return AudioChunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   channels,
	}
}

// nextNoise returns a value in [-1, 1) from a xorshift generator, so test
// runs are repeatable.
func (m *MockSource) nextNoise() float64 {
	x := m.noise
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	m.noise = x
	return float64(x)/float64(math.MaxUint32)*2 - 1
}

// Stop halts audio generation.
func (m *MockSource) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}
	m.running = false
	close(m.stopCh)
	close(m.streamCh)

	m.logger.Info("mock audio source stopped")
	return nil
}

// Read reads the next audio chunk.
func (m *MockSource) Read(ctx context.Context) (AudioChunk, error) {
	return readChunk(ctx, m.Stream())
}

// Stream returns the audio chunk channel.
func (m *MockSource) Stream() <-chan AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCh
}

// Config returns the audio configuration.
func (m *MockSource) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSource) Name() string {
	return string(BackendMock)
}

// Close stops the source. A closed source cannot be restarted.
func (m *MockSource) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	return m.Stop()
}

// Stats returns source statistics.
func (m *MockSource) Stats() SourceStats {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	return SourceStats{
		ChunksRead:  m.chunksRead.Load(),
		SamplesRead: m.samplesRead.Load(),
		Overruns:    m.overruns.Load(),
		Running:     running,
		Backend:     string(BackendMock),
	}
}

var _ SourceWithStats = (*MockSource)(nil)
