// Package spectrum computes byte-scaled frequency magnitudes from microphone
// audio the way a browser AnalyserNode does: a Blackman-windowed FFT over the
// most recent FFTSize samples, exponential smoothing across calls, and a
// decibel range mapped onto 0..255.
package spectrum

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/teslashibe/go-candles/pkg/audioio"
)

// Config holds analyser parameters.
type Config struct {
	FFTSize               int     `yaml:"fft_size" json:"fft_size"`
	SmoothingTimeConstant float64 `yaml:"smoothing_time_constant" json:"smoothing_time_constant"`
	MinDecibels           float64 `yaml:"min_decibels" json:"min_decibels"`
	MaxDecibels           float64 `yaml:"max_decibels" json:"max_decibels"`
}

// DefaultConfig returns a 256 point analyser with browser default ranges.
func DefaultConfig() Config {
	return Config{
		FFTSize:               256,
		SmoothingTimeConstant: 0.8,
		MinDecibels:           -100,
		MaxDecibels:           -30,
	}
}

// Validate checks the analyser parameters.
func (c Config) Validate() error {
	if c.FFTSize < 32 || c.FFTSize > 32768 || c.FFTSize&(c.FFTSize-1) != 0 {
		return fmt.Errorf("fft_size must be a power of two in [32, 32768], got %d", c.FFTSize)
	}
	if c.SmoothingTimeConstant < 0 || c.SmoothingTimeConstant > 1 {
		return fmt.Errorf("smoothing_time_constant must be in [0, 1], got %v", c.SmoothingTimeConstant)
	}
	if c.MinDecibels >= c.MaxDecibels {
		return fmt.Errorf("min_decibels (%v) must be below max_decibels (%v)", c.MinDecibels, c.MaxDecibels)
	}
	return nil
}

// Analyzer keeps a window of recent samples and computes spectra on demand.
// Write and ByteFrequencyData may be called from different goroutines.
type Analyzer struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	ring     []float64
	pos      int
	fft      *fourier.FFT
	window   []float64
	smoothed []float64
	seq      []float64
	coeffs   []complex128
}

// New creates an analyser.
func New(cfg Config, logger *slog.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	n := cfg.FFTSize
	a := &Analyzer{
		cfg:      cfg,
		logger:   logger,
		ring:     make([]float64, n),
		fft:      fourier.NewFFT(n),
		window:   blackman(n),
		smoothed: make([]float64, n/2),
		seq:      make([]float64, n),
		coeffs:   make([]complex128, n/2+1),
	}
	return a, nil
}

// blackman returns the Blackman window with alpha 0.16.
func blackman(n int) []float64 {
	const alpha = 0.16
	a0, a1, a2 := (1-alpha)/2, 0.5, alpha/2

	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x)
	}
	return w
}

// FrequencyBinCount returns FFTSize/2.
func (a *Analyzer) FrequencyBinCount() int {
	return a.cfg.FFTSize / 2
}

// Write appends mono PCM16 samples to the time-domain window.
func (a *Analyzer) Write(samples []int16) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	if len(samples) > n {
		samples = samples[len(samples)-n:]
	}
	for _, s := range samples {
		a.ring[a.pos] = float64(s) / 32768
		a.pos = (a.pos + 1) % n
	}
}

// Attach feeds chunks from src into the analyser until the stream closes or
// ctx ends. It blocks; run it on its own goroutine.
func (a *Analyzer) Attach(ctx context.Context, src audioio.Source) error {
	stream := src.Stream()
	a.logger.Debug("analyser attached", "source", src.Name(), "fft_size", a.cfg.FFTSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-stream:
			if !ok {
				return nil
			}
			a.Write(chunk.Mono())
		}
	}
}

// ByteFrequencyData fills dst with the current byte magnitudes, one per bin.
// Each call advances the smoothing state. Extra entries in dst are left as is.
func (a *Analyzer) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.analyse()

	span := a.cfg.MaxDecibels - a.cfg.MinDecibels
	for i := 0; i < len(dst) && i < len(a.smoothed); i++ {
		dst[i] = toByte(a.smoothed[i], a.cfg.MinDecibels, span)
	}
}

// FloatFrequencyData fills dst with the current magnitudes in decibels.
func (a *Analyzer) FloatFrequencyData(dst []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.analyse()

	for i := 0; i < len(dst) && i < len(a.smoothed); i++ {
		dst[i] = float32(decibels(a.smoothed[i]))
	}
}

// Reset clears the sample window and smoothing state.
func (a *Analyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

// analyse windows the most recent samples, transforms them and folds the
// magnitudes into the smoothing state. Callers hold mu.
func (a *Analyzer) analyse() {
	n := len(a.ring)
	for i := 0; i < n; i++ {
		a.seq[i] = a.ring[(a.pos+i)%n] * a.window[i]
	}

	a.coeffs = a.fft.Coefficients(a.coeffs, a.seq)

	tau := a.cfg.SmoothingTimeConstant
	scale := 1 / float64(n)
	for k := range a.smoothed {
		mag := cmplx.Abs(a.coeffs[k]) * scale
		s := tau*a.smoothed[k] + (1-tau)*mag
		if math.IsNaN(s) || math.IsInf(s, 0) {
			s = 0
		}
		a.smoothed[k] = s
	}
}

func decibels(mag float64) float64 {
	if mag <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(mag)
}

func toByte(mag, minDB, span float64) byte {
	db := decibels(mag)
	v := 255 * (db - minDB) / span
	switch {
	case math.IsInf(v, -1) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v)
	}
}
