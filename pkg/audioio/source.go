package audioio

import (
	"context"
	"io"
	"time"
)

// AudioChunk is interleaved PCM16 audio.
type AudioChunk struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// FromBytes populates the chunk from little-endian PCM16 bytes.
func (c *AudioChunk) FromBytes(data []byte, sampleRate, channels int) {
	c.SampleRate = sampleRate
	c.Channels = channels
	c.Samples = BytesToSamples(data)
}

// Bytes returns the chunk as little-endian PCM16.
func (c *AudioChunk) Bytes() []byte {
	return SamplesToBytes(c.Samples)
}

// Duration returns the playback length of the chunk.
func (c *AudioChunk) Duration() time.Duration {
	if c.SampleRate == 0 || c.Channels == 0 {
		return 0
	}
	frames := len(c.Samples) / c.Channels
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

// Mono returns the chunk's samples downmixed to one channel.
func (c *AudioChunk) Mono() []int16 {
	if c.Channels <= 1 {
		return c.Samples
	}
	mono := make([]int16, len(c.Samples)/c.Channels)
	for i := range mono {
		var sum int32
		for ch := 0; ch < c.Channels; ch++ {
			sum += int32(c.Samples[i*c.Channels+ch])
		}
		mono[i] = int16(sum / int32(c.Channels))
	}
	return mono
}

// Source delivers microphone audio.
type Source interface {
	// Start begins capture. It returns once audio is flowing.
	Start(ctx context.Context) error

	// Stop halts capture. It is safe to call Stop multiple times.
	Stop() error

	// Read returns the next chunk, blocking if necessary.
	// It returns io.EOF once the source is stopped.
	Read(ctx context.Context) (AudioChunk, error)

	// Stream returns a channel of chunks, closed when the source stops.
	Stream() <-chan AudioChunk

	Config() Config

	// Name returns the backend name.
	Name() string

	io.Closer
}

// SourceStats contains statistics about an audio source.
type SourceStats struct {
	ChunksRead  int64  `json:"chunks_read"`
	SamplesRead int64  `json:"samples_read"`
	Overruns    int64  `json:"overruns"` // Chunks dropped because the reader fell behind
	Running     bool   `json:"running"`
	Backend     string `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() SourceStats
}
