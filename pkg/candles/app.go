package candles

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-candles/internal/log"
	"github.com/teslashibe/go-candles/pkg/audioio"
	"github.com/teslashibe/go-candles/pkg/camera"
	"github.com/teslashibe/go-candles/pkg/celebration"
	"github.com/teslashibe/go-candles/pkg/frame"
	"github.com/teslashibe/go-candles/pkg/ingest"
	"github.com/teslashibe/go-candles/pkg/landmark"
	"github.com/teslashibe/go-candles/pkg/level"
	"github.com/teslashibe/go-candles/pkg/protocol"
	"github.com/teslashibe/go-candles/pkg/session"
	"github.com/teslashibe/go-candles/pkg/spectrum"
	"github.com/teslashibe/go-candles/pkg/web"
	"github.com/teslashibe/go-candles/pkg/zones"
)

// App states, as reported on the status surface.
const (
	StateLoading          = "loading"
	StateReady            = "ready"
	StateStarting         = "starting"
	StateRunning          = "running"
	StateComplete         = "complete"
	StatePermissionDenied = "permission_denied"
	StateFailed           = "failed"
)

// StatusReporter receives every app status change.
type StatusReporter interface {
	ReportStatus(st protocol.StatusData)
}

var _ StatusReporter = (*web.Server)(nil)

// RecognizerFactory loads the landmark recognizer.
type RecognizerFactory func(cfg landmark.Config, logger *slog.Logger) (landmark.Recognizer, error)

// AudioOpener returns a started microphone source.
type AudioOpener func(ctx context.Context) (audioio.Source, error)

// VideoOpener returns a live video source. Sources that implement io.Closer
// are closed when the session ends.
type VideoOpener func(ctx context.Context) (frame.VideoSource, error)

// AnalyzerFactory builds the spectral analyser fed by src. It must stop
// reading when ctx ends.
type AnalyzerFactory func(ctx context.Context, src audioio.Source) (frame.Analyzer, error)

// ClockFactory returns the clock that paces one session.
type ClockFactory func() frame.Clock

// Option customizes an App.
type Option func(*App)

// WithLogger sets the app logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithRecognizerFactory replaces landmark.New.
func WithRecognizerFactory(f RecognizerFactory) Option {
	return func(a *App) { a.newRecognizer = f }
}

// WithAudioOpener replaces the configured audio backend.
func WithAudioOpener(f AudioOpener) Option {
	return func(a *App) { a.openAudio = f }
}

// WithVideoOpener replaces the configured video backend.
func WithVideoOpener(f VideoOpener) Option {
	return func(a *App) { a.openVideo = f }
}

// WithAnalyzerFactory replaces the spectrum analyser.
func WithAnalyzerFactory(f AnalyzerFactory) Option {
	return func(a *App) { a.newAnalyzer = f }
}

// WithClock replaces the ticker clock.
func WithClock(f ClockFactory) Option {
	return func(a *App) { a.newClock = f }
}

// WithListener serves the web app on ln instead of the configured port.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// Stats is the app section of /api/status.
type Stats struct {
	State    string            `json:"state"`
	Attempts int               `json:"attempts"`
	Pipeline frame.Stats       `json:"pipeline"`
	Session  *session.Snapshot `json:"session,omitempty"`
}

// App is the candles application.
type App struct {
	cfg    Config
	logger *slog.Logger

	stations *ingest.Hub
	web      *web.Server

	newRecognizer RecognizerFactory
	openAudio     AudioOpener
	openVideo     VideoOpener
	newAnalyzer   AnalyzerFactory
	newClock      ClockFactory
	listener      net.Listener

	recognizer landmark.Recognizer
	starts     chan struct{}

	mu          sync.Mutex
	initialized bool
	status      protocol.StatusData
	deny        context.CancelCauseFunc
	attempts    int
	pipeline    frame.Stats
	snapshot    *session.Snapshot
}

// New creates the app. Call Init before Run.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		starts: make(chan struct{}, 1),
		status: protocol.StatusData{State: StateLoading},
	}
	a.newRecognizer = landmark.New
	a.openAudio = a.defaultAudio
	a.openVideo = a.defaultVideo
	a.newAnalyzer = a.defaultAnalyzer
	a.newClock = func() frame.Clock { return frame.NewTickerClock(cfg.FrameRate) }
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = log.Component("candles")
	}

	a.stations = ingest.NewHub(a.logger.With("component", "ingest"))
	a.stations.OnPermission(a.handlePermission)

	a.web = web.NewServer(cfg.Web, a.stations, a.logger.With("component", "web"))
	a.web.OnStart(a.RequestStart)
	a.web.SetStats(func() any { return a.Stats() })

	return a, nil
}

// Web returns the overlay server.
func (a *App) Web() *web.Server {
	return a.web
}

// Stations returns the station ingest hub.
func (a *App) Stations() *ingest.Hub {
	return a.stations
}

// Init loads the landmark recognizer. A failure is terminal: it is reported
// once as "failed" and every later start request is rejected.
func (a *App) Init(ctx context.Context) error {
	a.setStatus(protocol.StatusData{State: StateLoading})
	a.mu.Lock()
	a.initialized = true
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	rec, err := a.newRecognizer(a.cfg.Landmark, a.logger.With("component", "landmark"))
	if err != nil {
		serr := &StartError{Stage: "model", Err: fmt.Errorf("%w: %w", ErrRecognizerInit, err)}
		a.logger.Error("recognizer unavailable", "backend", a.cfg.Landmark.Backend, "error", err)
		a.setStatus(protocol.StatusData{State: StateFailed, Error: serr.Error()})
		return serr
	}
	a.recognizer = rec

	a.logger.Info("recognizer ready",
		"backend", a.cfg.Landmark.Backend,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	a.setStatus(protocol.StatusData{State: StateReady, Retry: true})
	return nil
}

// RequestStart asks Run to acquire the camera and microphone. It is accepted
// only while ready or after a permission failure.
func (a *App) RequestStart() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch a.status.State {
	case StateReady, StatePermissionDenied:
	default:
		return fmt.Errorf("%w: app is %s", web.ErrStartRejected, a.status.State)
	}

	a.setStatusLocked(protocol.StatusData{State: StateStarting})
	a.starts <- struct{}{}
	return nil
}

// Run serves the overlay and runs start requests until ctx ends. After the
// candles are blown out the server stays up until ctx ends.
func (a *App) Run(ctx context.Context) error {
	a.mu.Lock()
	initialized := a.initialized
	a.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if a.listener != nil {
			return a.web.Serve(ctx, a.listener)
		}
		return a.web.Run(ctx)
	})
	g.Go(func() error {
		return a.loop(ctx)
	})

	if a.cfg.AutoStart {
		if err := a.RequestStart(); err != nil {
			a.logger.Warn("auto start skipped", "error", err)
		}
	}

	return g.Wait()
}

// Shutdown releases the recognizer.
func (a *App) Shutdown() {
	if a.recognizer != nil {
		if err := a.recognizer.Close(); err != nil {
			a.logger.Warn("close recognizer", "error", err)
		}
	}
	a.logger.Info("candles stopped")
}

// Status returns the last reported status.
func (a *App) Status() protocol.StatusData {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Stats returns a snapshot of app progress.
func (a *App) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Stats{
		State:    a.status.State,
		Attempts: a.attempts,
		Pipeline: a.pipeline,
		Session:  a.snapshot,
	}
}

func (a *App) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.starts:
		}

		err := a.attempt(ctx)
		if ctx.Err() != nil {
			return nil
		}

		switch {
		case err == nil:
			<-ctx.Done()
			return nil
		case errors.Is(err, ErrPermissionDenied):
			a.logger.Warn("start failed", "error", err)
			a.setStatus(protocol.StatusData{State: StatePermissionDenied, Error: err.Error(), Retry: true})
		default:
			a.logger.Error("session failed", "error", err)
			a.setStatus(protocol.StatusData{State: StateFailed, Error: err.Error()})
		}
	}
}

// attempt acquires both streams and plays one session to completion.
func (a *App) attempt(ctx context.Context) error {
	a.mu.Lock()
	a.attempts++
	n := a.attempts
	a.mu.Unlock()
	a.logger.Info("acquiring streams", "attempt", n, "video", a.cfg.Video, "audio", a.cfg.Audio.Backend)

	acquire, deny := context.WithCancelCause(ctx)
	defer deny(nil)
	a.setDeny(deny)

	if a.cfg.needsStation() {
		req := protocol.StartData{
			Camera:     a.cfg.Video == VideoStation,
			Width:      a.cfg.Camera.Width,
			Height:     a.cfg.Camera.Height,
			FrameRate:  a.cfg.Camera.Framerate,
			SampleRate: a.cfg.Audio.SampleRate,
		}
		if err := a.stations.RequestStart(req); err != nil {
			a.setDeny(nil)
			return acquireError(acquire, "station", err)
		}
		defer a.stopStation()
	}

	src, err := a.openAudio(acquire)
	if err != nil {
		a.setDeny(nil)
		return acquireError(acquire, "microphone", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			a.logger.Debug("close audio", "error", err)
		}
	}()

	video, err := a.openVideo(acquire)
	if err != nil {
		a.setDeny(nil)
		return acquireError(acquire, "camera", err)
	}
	if c, ok := video.(io.Closer); ok {
		defer c.Close()
	}

	a.setDeny(nil)
	if cause := context.Cause(acquire); cause != nil && ctx.Err() == nil {
		return acquireError(acquire, "station", cause)
	}

	return a.play(ctx, src, video)
}

// play runs one session over live streams until it completes and the
// celebration has finished.
func (a *App) play(ctx context.Context, src audioio.Source, video frame.VideoSource) error {
	zs, err := zones.Layout(a.cfg.Viewport, a.cfg.Zones)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	analyzer, err := a.newAnalyzer(ctx, src)
	if err != nil {
		return fmt.Errorf("analyser: %w", err)
	}

	a.web.SetLayout(a.cfg.Viewport, zs)
	runner := celebration.NewRunner(ctx, a.cfg.Celebration, a.web, a.logger.With("component", "celebration"))

	var sch *frame.Scheduler
	sch = frame.NewSession(frame.Config{
		Viewport:   a.cfg.Viewport,
		Margins:    a.cfg.Margins,
		Monitor:    level.NewMonitor(a.cfg.BlowThreshold),
		Video:      video,
		Recognizer: a.recognizer,
		Analyzer:   analyzer,
		Renderer:   a.web,
		Celebrator: runner,
		Logger:     a.logger.With("component", "frame"),
	}, zs, session.Hooks{
		OnTracking: func() {
			a.setStatus(protocol.StatusData{State: StateRunning, Session: sch.Session().ID})
		},
		OnAllLit: func() {
			a.logger.Info("all candles lit, listening for a blow", "session", sch.Session().ID)
		},
		OnComplete: func() {
			a.setStatus(protocol.StatusData{State: StateComplete, Session: sch.Session().ID})
		},
	})

	clock := a.newClock()
	if t, ok := clock.(interface{ Stop() }); ok {
		defer t.Stop()
	}

	err = sch.RunUntil(ctx, clock, func() bool {
		a.record(sch)
		return false
	})
	a.record(sch)
	if err != nil {
		return err
	}

	st := sch.Stats()
	a.logger.Info("candles blown out",
		"session", sch.Session().ID,
		"ticks", st.Ticks,
		"frames", st.Frames,
		"volume", st.LastVolume,
	)

	select {
	case <-runner.Done():
	case <-ctx.Done():
	}
	return nil
}

func (a *App) record(sch *frame.Scheduler) {
	snap := sch.Session().Snapshot()
	a.mu.Lock()
	a.pipeline = sch.Stats()
	a.snapshot = &snap
	a.mu.Unlock()
}

// handlePermission aborts a pending acquisition when the station reports a
// device it could not open.
func (a *App) handlePermission(stationID string, p protocol.PermissionData) {
	if p.Granted(a.cfg.Video == VideoStation) {
		return
	}

	a.mu.Lock()
	deny := a.deny
	a.mu.Unlock()
	if deny == nil {
		return
	}

	reason := p.Error
	if reason == "" {
		reason = fmt.Sprintf("camera=%t microphone=%t", p.Camera, p.Microphone)
	}
	deny(fmt.Errorf("%w: station %s: %s", ErrPermissionDenied, stationID, reason))
}

func (a *App) setDeny(deny context.CancelCauseFunc) {
	a.mu.Lock()
	a.deny = deny
	a.mu.Unlock()
}

func (a *App) stopStation() {
	if err := a.stations.RequestStop(); err != nil && !errors.Is(err, ingest.ErrNoStation) {
		a.logger.Debug("stop station", "error", err)
	}
}

func (a *App) setStatus(st protocol.StatusData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.setStatusLocked(st)
}

func (a *App) setStatusLocked(st protocol.StatusData) {
	a.status = st
	a.web.ReportStatus(st)
}

// acquireError wraps a stream failure as a retryable permission error. A
// denial reported by the station takes precedence over the opener's error.
func acquireError(ctx context.Context, stage string, err error) error {
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, ErrPermissionDenied) {
		err = cause
	}
	if !errors.Is(err, ErrPermissionDenied) {
		err = fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	}
	return &StartError{Stage: stage, Err: err}
}

func (a *App) defaultAudio(ctx context.Context) (audioio.Source, error) {
	src, err := audioio.NewSource(a.cfg.Audio, a.logger.With("component", "audio"))
	if err != nil {
		return nil, err
	}

	station, isStation := src.(*audioio.StationSource)
	if isStation {
		a.stations.SetMicSink(station)
	}
	if err := src.Start(ctx); err != nil {
		if isStation {
			a.stations.SetMicSink(nil)
		}
		src.Close()
		return nil, err
	}
	return src, nil
}

func (a *App) defaultVideo(ctx context.Context) (frame.VideoSource, error) {
	if a.cfg.Video == VideoCamera {
		c, err := camera.Open(a.cfg.Camera, a.logger.With("component", "camera"))
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	frames := a.stations.Frames()
	if err := waitForFrame(ctx, frames, a.cfg.StartTimeout); err != nil {
		return nil, err
	}
	return frames, nil
}

func (a *App) defaultAnalyzer(ctx context.Context, src audioio.Source) (frame.Analyzer, error) {
	an, err := spectrum.New(a.cfg.Spectrum, a.logger.With("component", "spectrum"))
	if err != nil {
		return nil, err
	}
	go func() {
		if err := an.Attach(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("spectrum reader stopped", "error", err)
		}
	}()
	return an, nil
}

// waitForFrame polls v until its first frame arrives. A zero timeout only
// checks once.
func waitForFrame(ctx context.Context, v frame.VideoSource, timeout time.Duration) error {
	if v.CurrentTime() != frame.NoFrame {
		return nil
	}
	if timeout <= 0 {
		return ErrNoVideo
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTicker(20 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-deadline.C:
			return ErrNoVideo
		case <-poll.C:
			if v.CurrentTime() != frame.NoFrame {
				return nil
			}
		}
	}
}
