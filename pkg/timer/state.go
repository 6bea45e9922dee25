package timer

import (
	"fmt"
	"time"
)

// Status is the run status of the timer.
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusPaused
)

// String returns the canonical lowercase name used in serialized form.
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusPaused:
		return "paused"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stopped":
		*s = StatusStopped
	case "running":
		*s = StatusRunning
	case "paused":
		*s = StatusPaused
	default:
		return fmt.Errorf("unknown timer status %q", text)
	}
	return nil
}

// State is the canonical timer record. Every concurrently running
// instance holds a replica; the sync bus reconciles them by
// last-writer-wins on LastMutation.
//
// Remaining is a cached display value. It is always recomputable from
// (Mode, Anchor, PauseOffset, wall clock) and is never authoritative.
type State struct {
	Mode   Mode
	Status Status

	// Anchor is the wall-clock instant the current run segment began.
	// Zero whenever the timer is not Running. On resume the accumulated
	// pause offset is folded into the anchor, so elapsed time is always
	// now − Anchor with no separate running offset.
	Anchor time.Time

	// PauseOffset is the total time that had elapsed when the timer was
	// most recently paused. Only meaningful while Paused; zero otherwise.
	PauseOffset time.Duration

	// Remaining is the cached countdown value, truncated to whole seconds.
	Remaining time.Duration

	// SessionCount is the number of focus sessions completed since the
	// last explicit reset of the counter.
	SessionCount int

	// LastMutation orders conflicting mutations across instances.
	LastMutation time.Time
}

// NewState returns a stopped state in the given mode with the full
// configured duration remaining.
func NewState(mode Mode, settings Settings) State {
	return State{
		Mode:      mode,
		Status:    StatusStopped,
		Remaining: settings.Duration(mode),
	}
}

// Elapsed returns how much of the current session has passed at the
// given instant. Zero when Stopped.
func (st State) Elapsed(now time.Time) time.Duration {
	switch st.Status {
	case StatusRunning:
		return now.Sub(st.Anchor)
	case StatusPaused:
		return st.PauseOffset
	default:
		return 0
	}
}
