package landmark

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// NetRecognizer runs a hand landmark ONNX model through OpenCV's DNN module.
// The model emits NumLandmarks*3 coordinates in input pixels plus a hand
// presence score.
type NetRecognizer struct {
	net     gocv.Net
	config  Config
	outputs []string
	logger  *slog.Logger

	mu     sync.Mutex // Protects inference
	closed bool
}

// NewNet loads the model at cfg.ModelPath.
func NewNet(cfg Config, logger *slog.Logger) (*NetRecognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrModelLoad, cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	var outputs []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		outputs = append(outputs, layer.GetName())
		layer.Close()
	}

	logger.Info("hand landmark model loaded", "path", cfg.ModelPath, "outputs", outputs)

	return &NetRecognizer{
		net:     net,
		config:  cfg,
		outputs: outputs,
		logger:  logger,
	}, nil
}

// RecognizeForVideo decodes the frame and runs one forward pass.
func (r *NetRecognizer) RecognizeForVideo(jpeg []byte, ts time.Time) ([]Hand, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	size := image.Pt(r.config.InputWidth, r.config.InputHeight)
	blob := gocv.BlobFromImage(img, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	r.net.SetInput(blob, "")
	outs := r.net.ForwardLayers(r.outputs)
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()

	var coords, scores []float32
	for _, m := range outs {
		data, err := m.DataPtrFloat32()
		if err != nil {
			continue
		}
		switch {
		case len(data) == NumLandmarks*3 && coords == nil:
			coords = data
		case len(data) == 1 && scores == nil:
			scores = data
		}
	}

	if coords == nil {
		return nil, fmt.Errorf("model produced no landmark tensor")
	}

	score := 1.0
	if scores != nil {
		score = float64(scores[0])
	}
	if score < r.config.ConfidenceThresh {
		return nil, nil
	}

	return []Hand{decodeHand(coords, score, r.config.InputWidth, r.config.InputHeight)}, nil
}

// decodeHand normalizes input-pixel coordinates into 0-1 landmarks.
func decodeHand(coords []float32, score float64, w, h int) Hand {
	hand := Hand{Landmarks: make([]Point, NumLandmarks), Score: score}
	for i := 0; i < NumLandmarks; i++ {
		hand.Landmarks[i] = Point{
			X: float64(coords[i*3]) / float64(w),
			Y: float64(coords[i*3+1]) / float64(h),
			Z: float64(coords[i*3+2]) / float64(w),
		}
	}
	return hand
}

// Close releases the model.
func (r *NetRecognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.net.Close()
}
