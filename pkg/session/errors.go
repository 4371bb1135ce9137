package session

import "errors"

var (
	// ErrInvalidTransition is returned when a transition is requested from
	// a state that does not allow it.
	ErrInvalidTransition = errors.New("session: invalid state transition")

	// ErrComplete is returned when mutating a finished session.
	ErrComplete = errors.New("session: already complete")
)
