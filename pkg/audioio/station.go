package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// StationSource is a Source fed with microphone chunks from the browser
// station. Chunks pushed while the source is stopped are discarded.
type StationSource struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	closed   bool
	streamCh chan AudioChunk
	first    chan struct{}
	gotFirst bool

	chunksRead  atomic.Int64
	samplesRead atomic.Int64
	overruns    atomic.Int64
}

// NewStationSource creates a stopped station source.
func NewStationSource(cfg Config, logger *slog.Logger) *StationSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &StationSource{
		cfg:      cfg,
		logger:   logger,
		streamCh: make(chan AudioChunk, 32),
		first:    make(chan struct{}),
	}
}

// Push delivers a chunk recorded by the station. It is downmixed and
// resampled to the configured format and never blocks.
func (s *StationSource) Push(chunk AudioChunk) {
	samples := Resample(chunk.Mono(), chunk.SampleRate, s.cfg.SampleRate)
	if len(samples) == 0 {
		return
	}
	out := AudioChunk{Samples: samples, SampleRate: s.cfg.SampleRate, Channels: 1}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	select {
	case s.streamCh <- out:
		s.chunksRead.Add(1)
		s.samplesRead.Add(int64(len(samples)))
	default:
		s.overruns.Add(1)
		return
	}
	if !s.gotFirst {
		s.gotFirst = true
		close(s.first)
	}
}

// Start waits up to StartTimeout for the first chunk. ErrNoStation means the
// station never sent audio, typically because microphone access was denied.
// A zero StartTimeout returns without waiting.
func (s *StationSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.gotFirst = false
	s.streamCh = make(chan AudioChunk, 32)
	s.first = make(chan struct{})
	first := s.first
	s.mu.Unlock()

	if s.cfg.StartTimeout == 0 {
		return nil
	}

	timer := time.NewTimer(s.cfg.StartTimeout)
	defer timer.Stop()

	select {
	case <-first:
		s.logger.Info("station audio flowing", "sample_rate", s.cfg.SampleRate)
		return nil
	case <-timer.C:
		s.Stop()
		return ErrNoStation
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}
}

// Stop halts delivery and closes the stream.
func (s *StationSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	close(s.streamCh)
	return nil
}

// Read reads the next chunk.
func (s *StationSource) Read(ctx context.Context) (AudioChunk, error) {
	return readChunk(ctx, s.Stream())
}

// Stream returns the chunk channel.
func (s *StationSource) Stream() <-chan AudioChunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamCh
}

// Config returns the audio configuration.
func (s *StationSource) Config() Config {
	return s.cfg
}

// Name returns "station".
func (s *StationSource) Name() string {
	return string(BackendStation)
}

// Close stops the source permanently.
func (s *StationSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.Stop()
}

// Stats returns source statistics.
func (s *StationSource) Stats() SourceStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	return SourceStats{
		ChunksRead:  s.chunksRead.Load(),
		SamplesRead: s.samplesRead.Load(),
		Overruns:    s.overruns.Load(),
		Running:     running,
		Backend:     string(BackendStation),
	}
}

var _ SourceWithStats = (*StationSource)(nil)

func readChunk(ctx context.Context, ch <-chan AudioChunk) (AudioChunk, error) {
	select {
	case <-ctx.Done():
		return AudioChunk{}, ctx.Err()
	case chunk, ok := <-ch:
		if !ok {
			return AudioChunk{}, io.EOF
		}
		return chunk, nil
	}
}
