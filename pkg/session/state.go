// Package session holds the per-play-through state: the candle zones and
// the completion state machine Idle → Tracking → AllLit → Complete.
package session

// State is the session phase. Transitions are linear and Complete is terminal.
type State int

const (
	// Idle waits for camera and microphone to become live.
	Idle State = iota
	// Tracking follows the fingertip and lights candles.
	Tracking
	// AllLit listens for a blow.
	AllLit
	// Complete is the terminal celebration state.
	Complete
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case AllLit:
		return "all_lit"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so the state reads well in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
