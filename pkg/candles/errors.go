package candles

import "errors"

var (
	// ErrRecognizerInit means the landmark model could not be loaded. It is
	// terminal: the experience never starts.
	ErrRecognizerInit = errors.New("candles: recognizer initialization failed")

	// ErrPermissionDenied means the camera or microphone could not be opened.
	// A new start request may succeed.
	ErrPermissionDenied = errors.New("candles: camera or microphone unavailable")

	// ErrNoVideo means the station granted access but sent no frames in time.
	ErrNoVideo = errors.New("candles: no station video")

	// ErrNotInitialized is returned by Run before Init has been called.
	ErrNotInitialized = errors.New("candles: app not initialized")
)

// StartError reports which startup stage failed.
type StartError struct {
	Stage string // "model", "station", "microphone" or "camera"
	Err   error
}

func (e *StartError) Error() string {
	return "candles: " + e.Stage + ": " + e.Err.Error()
}

func (e *StartError) Unwrap() error {
	return e.Err
}
