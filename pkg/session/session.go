package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-candles/pkg/level"
	"github.com/teslashibe/go-candles/pkg/zones"
)

// Hooks are invoked on state entry. Each runs at most once per session.
type Hooks struct {
	OnTracking func()
	OnAllLit   func()
	OnComplete func()
}

// Session is the single owned context of one play-through. It is not safe
// for concurrent use; the frame scheduler is its only mutator.
type Session struct {
	ID    string
	Zones []zones.Zone

	monitor level.Monitor
	hooks   Hooks
	logger  *slog.Logger
	now     func() time.Time

	state       State
	startedAt   time.Time
	allLitAt    time.Time
	completedAt time.Time
}

// New creates an Idle session over zs. The slice is owned by the session
// from now on.
func New(zs []zones.Zone, monitor level.Monitor, hooks Hooks, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		ID:      id,
		Zones:   zs,
		monitor: monitor,
		hooks:   hooks,
		logger:  logger.With("session", id),
		now:     time.Now,
		state:   Idle,
	}
}

// SetClock overrides the wall clock used for timestamps.
func (s *Session) SetClock(now func() time.Time) {
	s.now = now
}

// State returns the current phase.
func (s *Session) State() State {
	return s.state
}

// IsComplete reports whether the terminal state was reached.
func (s *Session) IsComplete() bool {
	return s.state == Complete
}

// NeedsAudio reports whether the microphone should be evaluated this frame.
// Audio only matters once every candle is lit.
func (s *Session) NeedsAudio() bool {
	return s.state == AllLit
}

// Begin moves Idle → Tracking once the streams are live.
func (s *Session) Begin() error {
	if s.state == Complete {
		return fmt.Errorf("%w: %w", ErrInvalidTransition, ErrComplete)
	}
	if s.state != Idle {
		return fmt.Errorf("%w: begin from %s", ErrInvalidTransition, s.state)
	}
	s.startedAt = s.now()
	s.enter(Tracking, s.hooks.OnTracking)
	return nil
}

// ObserveZones moves Tracking → AllLit when every zone is lit, regardless
// of the order they were lit in. It reports whether the transition fired.
func (s *Session) ObserveZones() bool {
	if s.state != Tracking || !zones.AllLit(s.Zones) {
		return false
	}
	s.allLitAt = s.now()
	s.enter(AllLit, s.hooks.OnAllLit)
	return true
}

// ObserveVolume moves AllLit → Complete on the first loud volume. Volumes
// seen in any other state are ignored. It reports whether the transition fired.
func (s *Session) ObserveVolume(volume float64) bool {
	if s.state != AllLit || !s.monitor.IsLoud(volume) {
		return false
	}
	s.completedAt = s.now()
	s.logger.Info("blow detected", "volume", volume, "threshold", s.monitor.Threshold)
	s.enter(Complete, s.hooks.OnComplete)
	return true
}

func (s *Session) enter(next State, hook func()) {
	prev := s.state
	s.state = next
	s.logger.Info("session transition", "from", prev, "to", next)
	if hook != nil {
		hook()
	}
}

// Snapshot is a read-only copy of the session for status surfaces.
type Snapshot struct {
	ID          string       `json:"id"`
	State       State        `json:"state"`
	Zones       []zones.Zone `json:"zones"`
	Lit         int          `json:"lit"`
	StartedAt   time.Time    `json:"started_at,omitzero"`
	AllLitAt    time.Time    `json:"all_lit_at,omitzero"`
	CompletedAt time.Time    `json:"completed_at,omitzero"`
}

// Snapshot copies the current session state.
func (s *Session) Snapshot() Snapshot {
	zs := make([]zones.Zone, len(s.Zones))
	copy(zs, s.Zones)
	return Snapshot{
		ID:          s.ID,
		State:       s.state,
		Zones:       zs,
		Lit:         zones.LitCount(zs),
		StartedAt:   s.startedAt,
		AllLitAt:    s.allLitAt,
		CompletedAt: s.completedAt,
	}
}
