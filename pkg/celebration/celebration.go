// Package celebration drives the confetti effect fired when the candles are
// blown out.
package celebration

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Origin is a normalized emission point (0-1 across the screen).
type Origin struct {
	X float64 `json:"x"`
	Y float64 `json:"y,omitempty"`
}

// Burst is one confetti emission.
type Burst struct {
	Count  int     `json:"particle_count"`
	Angle  float64 `json:"angle"`  // Degrees, 90 points straight up
	Spread float64 `json:"spread"` // Degrees
	Origin Origin  `json:"origin"`
}

// Effect renders bursts. Fire must not block.
type Effect interface {
	Fire(b Burst)
}

// Config holds the celebration pattern.
type Config struct {
	Count     int           `yaml:"count" json:"count"`
	Angle     float64       `yaml:"angle" json:"angle"` // Left cannon; the right one mirrors it
	Spread    float64       `yaml:"spread" json:"spread"`
	Duration  time.Duration `yaml:"duration" json:"duration"`
	FrameRate int           `yaml:"frame_rate" json:"frame_rate"`
}

// DefaultConfig returns two side cannons firing for three seconds.
func DefaultConfig() Config {
	return Config{
		Count:     5,
		Angle:     60,
		Spread:    55,
		Duration:  3 * time.Second,
		FrameRate: 60,
	}
}

// Bursts returns the pair fired every frame: one from the left edge at
// Angle and one from the right edge at the mirrored angle.
func (c Config) Bursts() [2]Burst {
	return [2]Burst{
		{Count: c.Count, Angle: c.Angle, Spread: c.Spread, Origin: Origin{X: 0}},
		{Count: c.Count, Angle: 180 - c.Angle, Spread: c.Spread, Origin: Origin{X: 1}},
	}
}

// Runner fires the pattern on its own goroutine for the duration window.
// Only the first Celebrate call has an effect.
type Runner struct {
	cfg    Config
	effect Effect
	logger *slog.Logger
	now    func() time.Time

	once sync.Once
	done chan struct{}
	ctx  context.Context
}

// NewRunner creates a runner bound to ctx; cancelling ctx ends the effect early.
func NewRunner(ctx context.Context, cfg Config, effect Effect, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultConfig().FrameRate
	}
	return &Runner{
		cfg:    cfg,
		effect: effect,
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
		ctx:    ctx,
	}
}

// Celebrate starts the effect and returns immediately.
func (r *Runner) Celebrate() {
	r.once.Do(func() {
		r.logger.Info("confetti", "duration", r.cfg.Duration, "count", r.cfg.Count)
		go r.run()
	})
}

// Done is closed once the duration window has passed.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) run() {
	defer close(r.done)

	end := r.now().Add(r.cfg.Duration)
	ticker := time.NewTicker(time.Second / time.Duration(r.cfg.FrameRate))
	defer ticker.Stop()

	bursts := r.cfg.Bursts()
	for {
		for _, b := range bursts {
			r.effect.Fire(b)
		}
		if !r.now().Before(end) {
			return
		}

		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
