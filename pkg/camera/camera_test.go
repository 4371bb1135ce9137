package camera

import (
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-candles/pkg/frame"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("default config invalid: %v", errs)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("default resolution = %dx%d, want 640x480", cfg.Width, cfg.Height)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative device", func(c *Config) { c.Device = -1 }, "device"},
		{"tiny width", func(c *Config) { c.Width = 10 }, "width"},
		{"tiny height", func(c *Config) { c.Height = 10 }, "height"},
		{"zero fps", func(c *Config) { c.Framerate = 0 }, "framerate"},
		{"quality too high", func(c *Config) { c.Quality = 101 }, "quality"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := cfg.Validate()
			if len(errs) != 1 || !strings.Contains(errs[0], tt.want) {
				t.Errorf("Validate() = %v, want one %s error", errs, tt.want)
			}
		})
	}
}

func TestStore(t *testing.T) {
	s := newStore()

	if jpeg, ts := s.current(); jpeg != nil || ts != frame.NoFrame {
		t.Fatalf("empty store = %v, %v", jpeg, ts)
	}

	s.put([]byte("a"), 10*time.Millisecond)
	s.put([]byte("b"), 10*time.Millisecond)

	jpeg, ts := s.current()
	if string(jpeg) != "b" {
		t.Errorf("frame = %q, want b", jpeg)
	}
	if ts <= 10*time.Millisecond {
		t.Errorf("repeated timestamp should advance, got %v", ts)
	}
	if s.count() != 2 {
		t.Errorf("count = %d, want 2", s.count())
	}
}

func TestOpenInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality = 0
	if _, err := Open(cfg, nil); err == nil || !strings.Contains(err.Error(), "quality") {
		t.Errorf("Open() = %v, want a validation error", err)
	}
}
