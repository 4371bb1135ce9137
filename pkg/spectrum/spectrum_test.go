package spectrum

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/teslashibe/go-candles/pkg/audioio"
	"github.com/teslashibe/go-candles/pkg/level"
)

func newAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func noise(n int, amplitude float64, seed int64) []int16 {
	r := rand.New(rand.NewSource(seed))
	out := make([]int16, n)
	for i := range out {
		out[i] = int16((r.Float64()*2 - 1) * amplitude * 32767)
	}
	return out
}

func TestFrequencyBinCount(t *testing.T) {
	a := newAnalyzer(t)
	if got := a.FrequencyBinCount(); got != 128 {
		t.Errorf("FrequencyBinCount() = %d, want 128", got)
	}
}

func TestByteFrequencyData_Silence(t *testing.T) {
	a := newAnalyzer(t)
	a.Write(make([]int16, 1024))

	dst := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(dst)

	for i, v := range dst {
		if v != 0 {
			t.Fatalf("bin %d = %d, want 0 for silence", i, v)
		}
	}
	if got := level.Level(dst); got != 0 {
		t.Errorf("level = %v, want 0", got)
	}
}

func TestByteFrequencyData_NoiseIsLoud(t *testing.T) {
	a := newAnalyzer(t)
	dst := make([]byte, a.FrequencyBinCount())

	for i := int64(0); i < 5; i++ {
		a.Write(noise(256, 0.6, i))
		a.ByteFrequencyData(dst)
	}

	if got := level.Level(dst); got <= level.DefaultThreshold {
		t.Errorf("level = %v, want above %v for a blow", got, level.DefaultThreshold)
	}
}

func TestByteFrequencyData_SinePeak(t *testing.T) {
	a := newAnalyzer(t)

	// Bin 16 at 48 kHz is 16 * 48000 / 256 = 3000 Hz.
	samples := make([]int16, 256)
	for i := range samples {
		samples[i] = int16(0.5 * 32767 * math.Sin(2*math.Pi*3000*float64(i)/48000))
	}
	a.Write(samples)

	dst := make([]byte, a.FrequencyBinCount())
	a.ByteFrequencyData(dst)

	best := 0
	for i, v := range dst {
		if v > dst[best] {
			best = i
		}
	}
	if best != 16 {
		t.Errorf("peak bin = %d (value %d), want 16", best, dst[best])
	}
	if dst[100] >= dst[16] {
		t.Errorf("bin 100 = %d should be below the peak %d", dst[100], dst[16])
	}
}

func TestFloatFrequencyData(t *testing.T) {
	t.Run("silence", func(t *testing.T) {
		a := newAnalyzer(t)
		a.Write(make([]int16, 256))

		dst := make([]float32, a.FrequencyBinCount())
		a.FloatFrequencyData(dst)
		for i, v := range dst {
			if !math.IsInf(float64(v), -1) {
				t.Fatalf("bin %d = %v dB, want -Inf", i, v)
			}
		}
	})

	t.Run("sine", func(t *testing.T) {
		a := newAnalyzer(t)
		samples := make([]int16, 256)
		for i := range samples {
			samples[i] = int16(0.5 * 32767 * math.Sin(2*math.Pi*3000*float64(i)/48000))
		}
		a.Write(samples)

		dst := make([]float32, a.FrequencyBinCount())
		a.FloatFrequencyData(dst)

		best := 0
		for i, v := range dst {
			if v > dst[best] {
				best = i
			}
		}
		if best != 16 {
			t.Errorf("peak bin = %d, want 16", best)
		}
		if peak := float64(dst[16]); math.IsInf(peak, 0) || peak >= 0 {
			t.Errorf("peak = %v dB, want a finite negative level", peak)
		}
	})
}

func TestByteFrequencyData_Smoothing(t *testing.T) {
	a := newAnalyzer(t)
	dst := make([]byte, a.FrequencyBinCount())

	a.Write(noise(256, 0.6, 7))
	a.ByteFrequencyData(dst)
	loud := level.Level(dst)

	// Silence decays rather than dropping to zero at once.
	a.Write(make([]int16, 256))
	a.ByteFrequencyData(dst)
	after := level.Level(dst)

	if after == 0 || after >= loud {
		t.Errorf("level after silence = %v, want in (0, %v)", after, loud)
	}

	a.Reset()
	a.ByteFrequencyData(dst)
	if got := level.Level(dst); got != 0 {
		t.Errorf("level after Reset = %v, want 0", got)
	}
}

func TestByteFrequencyData_ShortDestination(t *testing.T) {
	a := newAnalyzer(t)
	a.Write(noise(256, 0.6, 3))

	dst := make([]byte, 4)
	a.ByteFrequencyData(dst)
	if level.Level(dst) == 0 {
		t.Error("short destination should still be filled")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"not power of two", func(c *Config) { c.FFTSize = 300 }, true},
		{"too small", func(c *Config) { c.FFTSize = 16 }, true},
		{"smoothing above one", func(c *Config) { c.SmoothingTimeConstant = 1.5 }, true},
		{"inverted range", func(c *Config) { c.MinDecibels = -20 }, true},
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

func TestAttach_MockBlow(t *testing.T) {
	cfg := audioio.DefaultConfig()
	cfg.Backend = audioio.BackendMock
	cfg.BufferDuration = 5 * time.Millisecond

	src := audioio.NewMockSource(cfg, nil, audioio.WithBlow(0, time.Hour))
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	a := newAnalyzer(t)
	done := make(chan error, 1)
	go func() { done <- a.Attach(ctx, src) }()

	dst := make([]byte, a.FrequencyBinCount())
	for ctx.Err() == nil {
		a.ByteFrequencyData(dst)
		if level.Level(dst) > level.DefaultThreshold {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if ctx.Err() != nil {
		t.Fatal("blow never crossed the threshold")
	}

	src.Stop()
	if err := <-done; err != nil {
		t.Errorf("Attach = %v, want nil after the stream closed", err)
	}
}
