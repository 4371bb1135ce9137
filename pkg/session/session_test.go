package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/teslashibe/go-candles/pkg/level"
	"github.com/teslashibe/go-candles/pkg/zones"
)

func newZones() []zones.Zone {
	return []zones.Zone{
		{ID: 0, Bounds: zones.Rect{Left: 100, Top: 100, Right: 140, Bottom: 160}},
		{ID: 1, Bounds: zones.Rect{Left: 300, Top: 100, Right: 340, Bottom: 160}},
		{ID: 2, Bounds: zones.Rect{Left: 500, Top: 100, Right: 540, Bottom: 160}},
	}
}

func lightAll(s *Session) {
	for i := range s.Zones {
		s.Zones[i].Lit = true
	}
}

func TestSession_StartsIdle(t *testing.T) {
	s := New(newZones(), level.NewMonitor(40), Hooks{}, nil)

	if s.State() != Idle {
		t.Errorf("State = %v, want idle", s.State())
	}
	if s.ID == "" {
		t.Error("session id should be set")
	}
	if s.NeedsAudio() {
		t.Error("NeedsAudio should be false while idle")
	}
}

func TestSession_Begin(t *testing.T) {
	tracking := 0
	s := New(newZones(), level.NewMonitor(40), Hooks{OnTracking: func() { tracking++ }}, nil)

	if err := s.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if s.State() != Tracking {
		t.Errorf("State = %v, want tracking", s.State())
	}

	err := s.Begin()
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second Begin err = %v, want ErrInvalidTransition", err)
	}
	if tracking != 1 {
		t.Errorf("OnTracking ran %d times, want 1", tracking)
	}
}

func TestSession_ObserveZonesNeedsAll(t *testing.T) {
	s := New(newZones(), level.NewMonitor(40), Hooks{}, nil)
	_ = s.Begin()

	s.Zones[0].Lit = true
	s.Zones[2].Lit = true
	if s.ObserveZones() {
		t.Fatal("AllLit with one zone unlit")
	}

	s.Zones[1].Lit = true
	if !s.ObserveZones() {
		t.Fatal("expected AllLit once every zone is lit")
	}
	if s.ObserveZones() {
		t.Error("AllLit transition should only fire once")
	}
	if !s.NeedsAudio() {
		t.Error("NeedsAudio should be true in all_lit")
	}
}

func TestSession_ObserveZonesIgnoredWhileIdle(t *testing.T) {
	s := New(newZones(), level.NewMonitor(40), Hooks{}, nil)
	lightAll(s)

	if s.ObserveZones() {
		t.Error("idle session must not jump to all_lit")
	}
}

func TestSession_VolumeGatedBeforeAllLit(t *testing.T) {
	completed := 0
	s := New(newZones(), level.NewMonitor(40), Hooks{OnComplete: func() { completed++ }}, nil)

	if s.ObserveVolume(255) {
		t.Error("loud volume while idle must not complete")
	}

	_ = s.Begin()
	s.Zones[0].Lit = true
	s.ObserveZones()
	if s.ObserveVolume(255) {
		t.Error("loud volume while tracking must not complete")
	}
	if s.State() != Tracking || completed != 0 {
		t.Errorf("State = %v, completed = %d", s.State(), completed)
	}
}

func TestSession_CompleteOnLoud(t *testing.T) {
	completed := 0
	s := New(newZones(), level.NewMonitor(40), Hooks{OnComplete: func() { completed++ }}, nil)
	fixed := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	_ = s.Begin()
	lightAll(s)
	s.ObserveZones()

	if s.ObserveVolume(40) {
		t.Fatal("volume equal to threshold must not complete")
	}
	if !s.ObserveVolume(41) {
		t.Fatal("volume above threshold should complete")
	}
	if !s.IsComplete() {
		t.Errorf("State = %v, want complete", s.State())
	}

	if s.ObserveVolume(200) {
		t.Error("complete is terminal")
	}
	if s.NeedsAudio() {
		t.Error("NeedsAudio must be false after completion")
	}
	if completed != 1 {
		t.Errorf("OnComplete ran %d times, want 1", completed)
	}
	if err := s.Begin(); !errors.Is(err, ErrComplete) || !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Begin after complete err = %v, want ErrComplete", err)
	}

	snap := s.Snapshot()
	if !snap.CompletedAt.Equal(fixed) || snap.Lit != 3 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := New(newZones(), level.NewMonitor(40), Hooks{}, nil)
	snap := s.Snapshot()
	snap.Zones[0].Lit = true

	if s.Zones[0].Lit {
		t.Error("mutating snapshot leaked into session")
	}
}

func TestSnapshot_OmitsUnreachedPhases(t *testing.T) {
	s := New(newZones(), level.NewMonitor(40), Hooks{}, nil)
	_ = s.Begin()

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if _, ok := got["started_at"]; !ok {
		t.Errorf("started_at missing from %s", data)
	}
	for _, key := range []string{"all_lit_at", "completed_at"} {
		if _, ok := got[key]; ok {
			t.Errorf("%s present before it happened: %s", key, data)
		}
	}
}

func TestState_JSON(t *testing.T) {
	data, err := json.Marshal(map[string]State{"state": AllLit})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"state":"all_lit"}` {
		t.Errorf("got %s", data)
	}
}
