package audioio

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock
	cfg.BufferDuration = 10 * time.Millisecond
	return cfg
}

func TestMockSource_StartStop(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	defer src.Close()

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(ctx); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}

func TestMockSource_Read(t *testing.T) {
	cfg := testConfig()
	src := NewMockSource(cfg, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if want := cfg.BufferSize() * cfg.Channels; len(chunk.Samples) != want {
		t.Errorf("got %d samples, want %d", len(chunk.Samples), want)
	}
	if chunk.SampleRate != cfg.SampleRate {
		t.Errorf("sample rate = %d, want %d", chunk.SampleRate, cfg.SampleRate)
	}
	for _, s := range chunk.Samples {
		if s != 0 {
			t.Fatal("default mock should be silent")
		}
	}
}

func TestMockSource_SineWave(t *testing.T) {
	src := NewMockSource(testConfig(), nil, WithSineWave(440, 0.5))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	chunk, err := src.Read(ctx)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if peak(chunk.Samples) == 0 {
		t.Error("expected non-zero samples from sine wave generator")
	}
}

func TestMockSource_ScriptedBlow(t *testing.T) {
	cfg := testConfig()
	src := NewMockSource(cfg, nil, WithBlow(20*time.Millisecond, 20*time.Millisecond))

	// Generate directly so the test does not depend on ticker timing.
	want := []bool{false, false, true, true, false}
	for i, loud := range want {
		chunk := src.generateChunk()
		if got := peak(chunk.Samples) > 1000; got != loud {
			t.Errorf("chunk %d loud = %v, want %v", i, got, loud)
		}
	}
}

func TestMockSource_Close(t *testing.T) {
	src := NewMockSource(testConfig(), nil)

	ctx := context.Background()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := src.Start(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
	if err := src.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestMockSource_Stats(t *testing.T) {
	src := NewMockSource(testConfig(), nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := src.Read(ctx); err != nil {
			t.Fatalf("Read %d failed: %v", i, err)
		}
	}

	stats := src.Stats()
	if stats.ChunksRead < 3 {
		t.Errorf("chunks read = %d, want >= 3", stats.ChunksRead)
	}
	if stats.Backend != "mock" {
		t.Errorf("backend = %q, want mock", stats.Backend)
	}
}

func TestNewSource(t *testing.T) {
	tests := []struct {
		backend Backend
		want    string
		wantErr error
	}{
		{BackendStation, "station", nil},
		{BackendMock, "mock", nil},
		{"alsa", "", ErrUnsupportedBackend},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend

			src, err := NewSource(cfg, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer src.Close()
			if src.Name() != tt.want {
				t.Errorf("name = %q, want %q", src.Name(), tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"zero rate", func(c *Config) { c.SampleRate = 0 }, true},
		{"zero channels", func(c *Config) { c.Channels = 0 }, true},
		{"zero buffer", func(c *Config) { c.BufferDuration = 0 }, true},
		{"negative timeout", func(c *Config) { c.StartTimeout = -time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAudioChunk_BytesRoundTrip(t *testing.T) {
	data := []byte{0x02, 0x01, 0x04, 0x03, 0xFF, 0xFF}

	var chunk AudioChunk
	chunk.FromBytes(data, 48000, 1)

	if len(chunk.Samples) != 3 || chunk.Samples[0] != 0x0102 || chunk.Samples[2] != -1 {
		t.Fatalf("samples = %v", chunk.Samples)
	}
	if got := chunk.Bytes(); string(got) != string(data) {
		t.Errorf("Bytes() = %v, want %v", got, data)
	}
}

func TestAudioChunk_Duration(t *testing.T) {
	chunk := AudioChunk{Samples: make([]int16, 960), SampleRate: 48000, Channels: 1}
	if got := chunk.Duration(); got != 20*time.Millisecond {
		t.Errorf("Duration() = %v, want 20ms", got)
	}

	stereo := AudioChunk{Samples: make([]int16, 960), SampleRate: 48000, Channels: 2}
	if got := stereo.Duration(); got != 10*time.Millisecond {
		t.Errorf("stereo Duration() = %v, want 10ms", got)
	}
}

func TestAudioChunk_Mono(t *testing.T) {
	chunk := AudioChunk{Samples: []int16{100, 300, -50, 50}, Channels: 2}
	got := chunk.Mono()
	if len(got) != 2 || got[0] != 200 || got[1] != 0 {
		t.Errorf("Mono() = %v, want [200 0]", got)
	}
}

func peak(samples []int16) int {
	var p int
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > p {
			p = v
		}
	}
	return p
}
