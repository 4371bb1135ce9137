package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-candles/pkg/frame"
)

// ErrCameraUnavailable means the device could not be opened or yielded no
// frames, usually because access was denied or it is in use.
var ErrCameraUnavailable = errors.New("camera: unavailable")

// Capture grabs frames from a webcam on its own goroutine and exposes the
// latest one as JPEG. It satisfies frame.VideoSource.
type Capture struct {
	cfg    Config
	logger *slog.Logger
	frames *store

	webcam *gocv.VideoCapture
	opened time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

var _ frame.VideoSource = (*Capture)(nil)

// Open starts capturing. It reads one frame before returning so an
// unusable device fails here rather than in the frame loop.
func Open(cfg Config, logger *slog.Logger) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid camera config: %s", strings.Join(errs, "; "))
	}
	if logger == nil {
		logger = slog.Default()
	}

	webcam, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", ErrCameraUnavailable, cfg.Device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("%w: device %d not opened", ErrCameraUnavailable, cfg.Device)
	}

	webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	webcam.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	c := &Capture{
		cfg:    cfg,
		logger: logger,
		frames: newStore(),
		webcam: webcam,
		opened: time.Now(),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	img := gocv.NewMat()
	defer img.Close()
	if ok := webcam.Read(&img); !ok || img.Empty() {
		webcam.Close()
		return nil, fmt.Errorf("%w: device %d returned no frame", ErrCameraUnavailable, cfg.Device)
	}
	if err := c.store(img); err != nil {
		webcam.Close()
		return nil, err
	}

	logger.Info("camera opened",
		"device", cfg.Device,
		"width", img.Cols(),
		"height", img.Rows(),
	)

	go c.grabLoop()
	return c, nil
}

func (c *Capture) grabLoop() {
	defer close(c.done)

	img := gocv.NewMat()
	defer img.Close()

	misses := 0
	for {
		select {
		case <-c.stop:
			return
		default:
		}

		if ok := c.webcam.Read(&img); !ok || img.Empty() {
			misses++
			if misses == c.cfg.Framerate {
				c.logger.Warn("camera stopped producing frames", "device", c.cfg.Device)
			}
			time.Sleep(time.Second / time.Duration(c.cfg.Framerate))
			continue
		}
		misses = 0

		if err := c.store(img); err != nil {
			c.logger.Debug("frame encode failed", "error", err)
		}
	}
}

func (c *Capture) store(img gocv.Mat) error {
	ts := time.Since(c.opened)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), c.cfg.Quality})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	jpeg := make([]byte, buf.Len())
	copy(jpeg, buf.GetBytes())
	c.frames.put(jpeg, ts)
	return nil
}

// CurrentTime returns the time since Open at which the latest frame was grabbed.
func (c *Capture) CurrentTime() time.Duration {
	_, ts := c.frames.current()
	return ts
}

// CurrentFrame returns the latest frame as JPEG.
func (c *Capture) CurrentFrame() []byte {
	jpeg, _ := c.frames.current()
	return jpeg
}

// Frames returns how many frames have been captured.
func (c *Capture) Frames() uint64 {
	return c.frames.count()
}

// Close stops the grab loop and releases the device.
func (c *Capture) Close() error {
	c.stopOnce.Do(func() {
		close(c.stop)
		<-c.done
		c.webcam.Close()
		c.logger.Info("camera closed", "device", c.cfg.Device, "frames", c.frames.count())
	})
	return nil
}
