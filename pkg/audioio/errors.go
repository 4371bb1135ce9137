package audioio

import "errors"

var (
	// ErrNoStation means no microphone audio arrived before the start timeout.
	ErrNoStation = errors.New("audioio: no station audio")

	// ErrClosed is returned by operations on a closed source.
	ErrClosed = errors.New("audioio: source closed")

	// ErrUnsupportedBackend is returned by NewSource for unknown backends.
	ErrUnsupportedBackend = errors.New("audioio: unsupported backend")
)
