// Package candles wires the blow-out-the-candles experience together: the
// overlay web server, the browser station, the landmark recognizer and the
// frame pipeline that turns gestures and breath into candle events.
package candles

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-candles/internal/config"
	"github.com/teslashibe/go-candles/pkg/audioio"
	"github.com/teslashibe/go-candles/pkg/camera"
	"github.com/teslashibe/go-candles/pkg/celebration"
	"github.com/teslashibe/go-candles/pkg/frame"
	"github.com/teslashibe/go-candles/pkg/landmark"
	"github.com/teslashibe/go-candles/pkg/level"
	"github.com/teslashibe/go-candles/pkg/pose"
	"github.com/teslashibe/go-candles/pkg/spectrum"
	"github.com/teslashibe/go-candles/pkg/web"
	"github.com/teslashibe/go-candles/pkg/zones"
)

// VideoBackend selects where camera frames come from.
type VideoBackend string

const (
	// VideoStation uses frames streamed by the browser station.
	VideoStation VideoBackend = "station"
	// VideoCamera opens a local camera through OpenCV.
	VideoCamera VideoBackend = "camera"
)

// Config holds all configuration for the candles app.
// Flag parsing is done in cmd/candles/main.go; this struct is data only.
type Config struct {
	Viewport pose.Viewport `yaml:"viewport" json:"viewport"`

	// Zones overrides the default candle row. Empty means centred defaults;
	// otherwise exactly three rects, in viewport pixels.
	Zones   []zones.Rect  `yaml:"zones" json:"zones"`
	Margins zones.Margins `yaml:"margins" json:"margins"`

	// BlowThreshold is the average spectral magnitude a blow must exceed.
	BlowThreshold float64 `yaml:"blow_threshold" json:"blow_threshold"`

	// FrameRate is the pipeline refresh rate in Hz.
	FrameRate int `yaml:"frame_rate" json:"frame_rate"`

	Video VideoBackend `yaml:"video" json:"video"`

	// StartTimeout bounds how long a start waits for the first station frame.
	StartTimeout time.Duration `yaml:"start_timeout" json:"start_timeout"`

	Camera      camera.Config      `yaml:"camera" json:"camera"`
	Audio       audioio.Config     `yaml:"audio" json:"audio"`
	Spectrum    spectrum.Config    `yaml:"spectrum" json:"spectrum"`
	Landmark    landmark.Config    `yaml:"landmark" json:"landmark"`
	Celebration celebration.Config `yaml:"celebration" json:"celebration"`
	Web         web.Config         `yaml:"web" json:"web"`

	// AutoStart acquires the streams as soon as the recognizer is ready,
	// without waiting for the start button.
	AutoStart bool `yaml:"auto_start" json:"auto_start"`

	LogLevel string `yaml:"log_level" json:"log_level"`
}

// DefaultConfig returns sensible defaults for a 720p overlay fed by a
// browser station.
func DefaultConfig() Config {
	return Config{
		Viewport:      pose.DefaultViewport(),
		Margins:       zones.DefaultMargins(),
		BlowThreshold: level.DefaultThreshold,
		FrameRate:     frame.DefaultFrameRate,
		Video:         VideoStation,
		StartTimeout:  5 * time.Second,
		Camera:        camera.DefaultConfig(),
		Audio:         audioio.DefaultConfig(),
		Spectrum:      spectrum.DefaultConfig(),
		Landmark:      landmark.DefaultConfig(),
		Celebration:   celebration.DefaultConfig(),
		Web:           web.DefaultConfig(),
		LogLevel:      "info",
	}
}

// LoadFile overlays a YAML or JSON config file onto c.
func (c *Config) LoadFile(path string) error {
	return config.LoadFile(path, c)
}

// LoadEnvConfig applies environment overrides.
// Call this after loading the file and before flag overrides.
func (c *Config) LoadEnvConfig() {
	c.Web.Port = config.Int("CANDLES_PORT", c.Web.Port)
	c.Web.PublicURL = config.String("CANDLES_PUBLIC_URL", c.Web.PublicURL)
	c.Web.Message = config.String("CANDLES_MESSAGE", c.Web.Message)
	c.Video = VideoBackend(config.String("CANDLES_VIDEO", string(c.Video)))
	c.Audio.Backend = audioio.Backend(config.String("CANDLES_AUDIO", string(c.Audio.Backend)))
	c.Landmark.Backend = landmark.Backend(config.String("CANDLES_RECOGNIZER", string(c.Landmark.Backend)))
	c.Landmark.ModelPath = config.String("CANDLES_MODEL", c.Landmark.ModelPath)
	c.Landmark.RemoteURL = config.String("CANDLES_LANDMARK_URL", c.Landmark.RemoteURL)
	c.BlowThreshold = config.Float("CANDLES_BLOW_THRESHOLD", c.BlowThreshold)
	c.AutoStart = config.Bool("CANDLES_AUTO_START", c.AutoStart)
	c.LogLevel = config.String("LOG_LEVEL", c.LogLevel)
}

// Validate checks the configuration before any device is touched.
func (c *Config) Validate() error {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		return &ConfigError{Field: "Viewport", Message: fmt.Sprintf("viewport must be positive, got %vx%v", c.Viewport.Width, c.Viewport.Height)}
	}
	if _, err := zones.Layout(c.Viewport, c.Zones); err != nil {
		return &ConfigError{Field: "Zones", Message: err.Error()}
	}
	if c.Margins.X < 0 || c.Margins.Y < 0 {
		return &ConfigError{Field: "Margins", Message: fmt.Sprintf("margins must not be negative, got %v/%v", c.Margins.X, c.Margins.Y)}
	}
	// Volumes are byte averages, so a threshold of 255 can never be exceeded.
	if c.BlowThreshold <= 0 || c.BlowThreshold >= 255 {
		return &ConfigError{Field: "BlowThreshold", Message: fmt.Sprintf("blow_threshold must be in (0, 255), got %v", c.BlowThreshold)}
	}
	if c.FrameRate <= 0 {
		return &ConfigError{Field: "FrameRate", Message: fmt.Sprintf("frame_rate must be positive, got %d", c.FrameRate)}
	}

	switch c.Video {
	case VideoStation:
	case VideoCamera:
		if errs := c.Camera.Validate(); len(errs) > 0 {
			return &ConfigError{Field: "Camera", Message: errs[0]}
		}
	default:
		return &ConfigError{Field: "Video", Message: fmt.Sprintf("unsupported video backend %q", c.Video)}
	}

	switch c.Audio.Backend {
	case audioio.BackendStation, audioio.BackendMock, "":
	default:
		return &ConfigError{Field: "Audio", Message: fmt.Sprintf("unsupported audio backend %q", c.Audio.Backend)}
	}
	if err := c.Audio.Validate(); err != nil {
		return &ConfigError{Field: "Audio", Message: err.Error()}
	}
	if err := c.Spectrum.Validate(); err != nil {
		return &ConfigError{Field: "Spectrum", Message: err.Error()}
	}
	if c.Landmark.Backend == landmark.BackendRemote && c.Landmark.RemoteURL == "" {
		return &ConfigError{Field: "Landmark", Message: "remote recognizer needs a remote_url"}
	}
	return nil
}

// needsStation reports whether any stream comes from the browser station.
func (c *Config) needsStation() bool {
	return c.Video == VideoStation || c.Audio.Backend == audioio.BackendStation || c.Audio.Backend == ""
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
