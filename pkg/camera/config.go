// Package camera captures frames from a local webcam with gocv.
package camera

import "fmt"

// Config holds camera settings.
type Config struct {
	Device    int `yaml:"device" json:"device"`       // VideoCapture device index
	Width     int `yaml:"width" json:"width"`         // Requested frame width in pixels
	Height    int `yaml:"height" json:"height"`       // Requested frame height in pixels
	Framerate int `yaml:"framerate" json:"framerate"` // Target FPS
	Quality   int `yaml:"quality" json:"quality"`     // JPEG quality 1-100
}

// DefaultConfig returns a light 640x480 capture, enough for hand tracking.
func DefaultConfig() Config {
	return Config{
		Device:    0,
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errs []string

	if c.Device < 0 {
		errs = append(errs, "device must not be negative")
	}
	if c.Width < 160 || c.Width > 3840 {
		errs = append(errs, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > 2160 {
		errs = append(errs, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > 120 {
		errs = append(errs, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errs = append(errs, "quality must be between 1 and 100")
	}

	return errs
}

func (c Config) String() string {
	return fmt.Sprintf("device %d %dx%d@%d q%d", c.Device, c.Width, c.Height, c.Framerate, c.Quality)
}
