package landmark

import "errors"

var (
	// ErrModelNotFound is returned when the model file is missing.
	ErrModelNotFound = errors.New("landmark: model file not found")

	// ErrModelLoad is returned when OpenCV cannot load the model.
	ErrModelLoad = errors.New("landmark: failed to load model")

	// ErrUnsupportedBackend is returned for an unknown backend name.
	ErrUnsupportedBackend = errors.New("landmark: unsupported backend")

	// ErrClosed is returned when using a closed recognizer.
	ErrClosed = errors.New("landmark: recognizer closed")

	// ErrTimeout is returned when the sidecar does not answer in time.
	ErrTimeout = errors.New("landmark: sidecar reply timed out")
)
