package frame

import (
	"context"
	"log/slog"
	"time"

	"github.com/teslashibe/go-candles/pkg/landmark"
	"github.com/teslashibe/go-candles/pkg/level"
	"github.com/teslashibe/go-candles/pkg/pose"
	"github.com/teslashibe/go-candles/pkg/session"
	"github.com/teslashibe/go-candles/pkg/zones"
)

// Config holds the scheduler's collaborators and tuning.
type Config struct {
	Viewport pose.Viewport
	Margins  zones.Margins
	Monitor  level.Monitor

	Video      VideoSource
	Recognizer Recognizer
	Analyzer   Analyzer
	Renderer   Renderer
	Celebrator Celebrator

	Logger *slog.Logger
	Now    func() time.Time // Wall clock passed to the recognizer
}

// Stats counts pipeline work for status reporting.
type Stats struct {
	Ticks        int64   `json:"ticks"`
	Frames       int64   `json:"frames"`        // Distinct video frames processed
	Misses       int64   `json:"misses"`        // Frames with no hand
	AudioSamples int64   `json:"audio_samples"` // Volumes evaluated
	LastVolume   float64 `json:"last_volume"`
}

// Scheduler runs the frame pipeline over one session. It is single
// threaded: only the goroutine calling Tick, Run or RunUntil touches the
// session.
type Scheduler struct {
	cfg      Config
	session  *session.Session
	detector *zones.Detector
	logger   *slog.Logger
	now      func() time.Time

	spectrum      []byte
	lastVideoTime time.Duration
	stats         Stats
}

// New wires a scheduler around s. Use NewSession to also have the session's
// completion run Finish.
func New(cfg Config, s *session.Session) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	sch := &Scheduler{
		cfg:           cfg,
		session:       s,
		logger:        logger,
		now:           now,
		lastVideoTime: NoFrame,
	}

	var activator zones.Activator
	if cfg.Renderer != nil {
		activator = cfg.Renderer
	}
	sch.detector = zones.NewDetector(cfg.Margins, activator, logger)

	if cfg.Analyzer != nil {
		sch.spectrum = make([]byte, cfg.Analyzer.FrequencyBinCount())
	}
	return sch
}

// Session returns the owned session.
func (s *Scheduler) Session() *session.Session {
	return s.session
}

// Stats returns pipeline counters. Call it from the scheduler goroutine or
// after Run has returned.
func (s *Scheduler) Stats() Stats {
	return s.stats
}

// Tick runs one iteration and reports whether another should be scheduled.
// Pose is processed before audio. An idle session is not processed yet.
// Once the session is complete Tick does nothing and always returns false.
func (s *Scheduler) Tick() bool {
	switch s.session.State() {
	case session.Complete:
		return false
	case session.Idle:
		return true
	}
	s.stats.Ticks++

	if s.cfg.Video != nil {
		if ts := s.cfg.Video.CurrentTime(); ts != s.lastVideoTime {
			s.lastVideoTime = ts
			s.processPose(ts)
		}
	}

	if s.session.NeedsAudio() && s.cfg.Analyzer != nil {
		s.cfg.Analyzer.ByteFrequencyData(s.spectrum)
		volume := level.Level(s.spectrum)
		s.stats.AudioSamples++
		s.stats.LastVolume = volume

		if s.session.ObserveVolume(volume) {
			return false
		}
	}

	return true
}

// processPose recognizes the current frame, moves the cursor and lights
// any candle it touches.
func (s *Scheduler) processPose(ts time.Duration) {
	s.stats.Frames++

	sample, ok := s.recognize(ts)
	if !ok {
		s.stats.Misses++
		if s.cfg.Renderer != nil {
			s.cfg.Renderer.HideCursor()
		}
		return
	}

	cursor := pose.Map(sample, s.cfg.Viewport)
	if s.cfg.Renderer != nil {
		s.cfg.Renderer.MoveCursor(cursor)
	}

	s.detector.Check(cursor, s.session.Zones)
	s.session.ObserveZones()
}

// recognize returns the fingertip sample for the frame. Recognition errors
// count as tracking loss.
func (s *Scheduler) recognize(ts time.Duration) (pose.Sample, bool) {
	if s.cfg.Recognizer == nil {
		return pose.Sample{}, false
	}

	hands, err := s.cfg.Recognizer.RecognizeForVideo(s.cfg.Video.CurrentFrame(), s.now())
	if err != nil {
		s.logger.Debug("recognition failed", "error", err)
		return pose.Sample{}, false
	}

	hand := landmark.SelectBest(hands)
	if hand == nil {
		return pose.Sample{}, false
	}
	tip, ok := hand.Fingertip()
	if !ok {
		return pose.Sample{}, false
	}
	return pose.Sample{X: tip.X, Y: tip.Y, Timestamp: ts}, true
}

// Finish runs the completion sequence: flames out, cursor hidden, message
// shown, celebration started. It is installed as the session's OnComplete
// hook by NewSession.
func (s *Scheduler) Finish() {
	if r := s.cfg.Renderer; r != nil {
		r.ExtinguishFlames()
		r.HideCursor()
		r.ShowMessage()
	}
	if s.cfg.Celebrator != nil {
		s.cfg.Celebrator.Celebrate()
	}
	s.logger.Info("celebration started", "session", s.session.ID)
}

// Run ticks, then yields to clock, until the session completes or ctx ends.
// The yield at the end of each iteration is the only suspension point.
func (s *Scheduler) Run(ctx context.Context, clock Clock) error {
	return s.RunUntil(ctx, clock, nil)
}

// RunUntil is Run with an extra stop predicate checked between iterations.
// An idle session is begun first, since the loop only starts once the
// streams are live.
func (s *Scheduler) RunUntil(ctx context.Context, clock Clock, done func() bool) error {
	if s.session.State() == session.Idle {
		if err := s.session.Begin(); err != nil {
			return err
		}
	}
	for {
		if !s.Tick() {
			return nil
		}
		if done != nil && done() {
			return nil
		}
		if err := clock.Next(ctx); err != nil {
			return err
		}
	}
}

// NewSession creates an Idle session whose completion runs the scheduler's
// finish sequence, and the scheduler that owns it.
func NewSession(cfg Config, zs []zones.Zone, hooks session.Hooks) *Scheduler {
	var sch *Scheduler
	user := hooks.OnComplete
	hooks.OnComplete = func() {
		sch.Finish()
		if user != nil {
			user()
		}
	}
	s := session.New(zs, cfg.Monitor, hooks, cfg.Logger)
	sch = New(cfg, s)
	return sch
}
