// Package audioio carries microphone audio into the blow detector.
//
// Two backends exist:
//   - station: PCM pushed by the browser station over the ingest websocket
//   - mock: synthetic audio (silence, sine or a scripted blow) for tests and demos
package audioio

import (
	"fmt"
	"time"
)

// Backend names an audio source implementation.
type Backend string

const (
	// BackendStation receives microphone chunks from the browser station.
	BackendStation Backend = "station"
	// BackendMock generates audio locally.
	BackendMock Backend = "mock"
)

// Config holds audio configuration.
type Config struct {
	Backend Backend `yaml:"backend" json:"backend"`

	// SampleRate is the rate chunks are delivered at. Station audio recorded
	// at another rate is resampled.
	SampleRate int `yaml:"sample_rate" json:"sample_rate"`

	Channels int `yaml:"channels" json:"channels"`

	// BufferDuration is the length of generated chunks (mock only).
	BufferDuration time.Duration `yaml:"buffer_duration" json:"buffer_duration"`

	// StartTimeout bounds how long Start waits for the first station chunk.
	// A station that never sends audio means microphone access was refused.
	StartTimeout time.Duration `yaml:"start_timeout" json:"start_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendStation,
		SampleRate:     48000,
		Channels:       1,
		BufferDuration: 20 * time.Millisecond,
		StartTimeout:   5 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("channels must be positive, got %d", c.Channels)
	}
	if c.BufferDuration <= 0 {
		return fmt.Errorf("buffer_duration must be positive, got %v", c.BufferDuration)
	}
	if c.StartTimeout < 0 {
		return fmt.Errorf("start_timeout must not be negative, got %v", c.StartTimeout)
	}
	return nil
}

// BufferSize returns the number of frames per generated chunk.
func (c *Config) BufferSize() int {
	return int(float64(c.SampleRate) * c.BufferDuration.Seconds())
}
