// Package timer implements the focus-pulse countdown core: the mode
// table, the drift-corrected clock, the timer state machine, and the
// owning engine goroutine that serializes all mutations.
//
// Remaining time is always derived from absolute timestamps, never by
// subtracting a fixed decrement per tick, so a throttled or suspended
// host process recomputes the correct value on its next wakeup.
package timer

import (
	"fmt"
	"time"
)

// Mode identifies which phase of the focus cycle the timer counts down.
type Mode int

const (
	ModeFocus Mode = iota
	ModeShortBreak
	ModeLongBreak
)

// String returns the canonical lowercase name used in serialized form.
func (m Mode) String() string {
	switch m {
	case ModeFocus:
		return "focus"
	case ModeShortBreak:
		return "short_break"
	case ModeLongBreak:
		return "long_break"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Title returns the human-readable name shown in the TUI and in
// notifications.
func (m Mode) Title() string {
	switch m {
	case ModeFocus:
		return "Focus"
	case ModeShortBreak:
		return "Short Break"
	case ModeLongBreak:
		return "Long Break"
	default:
		return m.String()
	}
}

// IsBreak reports whether the mode is one of the two break phases.
func (m Mode) IsBreak() bool {
	return m == ModeShortBreak || m == ModeLongBreak
}

// MarshalText implements encoding.TextMarshaler so Mode serializes as a
// string in snapshots and broadcast events.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "focus":
		*m = ModeFocus
	case "short_break":
		*m = ModeShortBreak
	case "long_break":
		*m = ModeLongBreak
	default:
		return fmt.Errorf("unknown timer mode %q", text)
	}
	return nil
}

// Settings holds the user-configurable durations and behavior flags the
// state machine consults. It is a plain value; the config package owns
// loading and persisting it.
type Settings struct {
	Focus      time.Duration
	ShortBreak time.Duration
	LongBreak  time.Duration

	// SessionsUntilLongBreak is how many completed focus sessions earn a
	// long break instead of a short one.
	SessionsUntilLongBreak int

	SoundEnabled    bool
	AutoStartBreaks bool
}

// DefaultSettings returns the classic 25/5/15 pomodoro configuration.
func DefaultSettings() Settings {
	return Settings{
		Focus:                  25 * time.Minute,
		ShortBreak:             5 * time.Minute,
		LongBreak:              15 * time.Minute,
		SessionsUntilLongBreak: 4,
		SoundEnabled:           true,
		AutoStartBreaks:        false,
	}
}

// Duration returns the configured full duration for a mode.
func (s Settings) Duration(m Mode) time.Duration {
	switch m {
	case ModeShortBreak:
		return s.ShortBreak
	case ModeLongBreak:
		return s.LongBreak
	default:
		return s.Focus
	}
}

// Validate checks the invariants the state machine depends on: every
// duration and the long-break cadence must be positive.
func (s Settings) Validate() error {
	if s.Focus <= 0 {
		return fmt.Errorf("focus duration must be positive, got %v", s.Focus)
	}
	if s.ShortBreak <= 0 {
		return fmt.Errorf("short break duration must be positive, got %v", s.ShortBreak)
	}
	if s.LongBreak <= 0 {
		return fmt.Errorf("long break duration must be positive, got %v", s.LongBreak)
	}
	if s.SessionsUntilLongBreak <= 0 {
		return fmt.Errorf("sessions until long break must be positive, got %d", s.SessionsUntilLongBreak)
	}
	return nil
}
