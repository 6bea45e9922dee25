// Package config defines the focus-pulse configuration, loaded from a
// TOML file with environment variable overrides, and the XDG paths the
// rest of the program stores its state under.
package config

import (
	"fmt"
	"time"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

// Config is the top-level configuration structure.
type Config struct {
	Timer    TimerConfig    `toml:"timer"`
	Behavior BehaviorConfig `toml:"behavior"`
	History  HistoryConfig  `toml:"history"`
}

// TimerConfig holds the session durations, in whole minutes.
type TimerConfig struct {
	FocusTime              int `toml:"focus_time"`
	ShortBreakTime         int `toml:"short_break_time"`
	LongBreakTime          int `toml:"long_break_time"`
	SessionsUntilLongBreak int `toml:"sessions_until_long_break"`
}

// BehaviorConfig holds the completion and auto-start toggles.
type BehaviorConfig struct {
	SoundEnabled    bool `toml:"sound_enabled"`
	AutoStartBreaks bool `toml:"auto_start_breaks"`
}

// HistoryConfig controls the completed-session log.
type HistoryConfig struct {
	Enabled   bool     `toml:"enabled"`
	Retention Duration `toml:"retention"`
}

// DefaultConfig returns the classic Pomodoro defaults.
func DefaultConfig() *Config {
	return &Config{
		Timer: TimerConfig{
			FocusTime:              25,
			ShortBreakTime:         5,
			LongBreakTime:          15,
			SessionsUntilLongBreak: 4,
		},
		Behavior: BehaviorConfig{
			SoundEnabled:    true,
			AutoStartBreaks: false,
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: Duration{30 * 24 * time.Hour},
		},
	}
}

// Validate checks the configuration for nonsensical values.
func (c *Config) Validate() error {
	durations := map[string]int{
		"timer.focus_time":                c.Timer.FocusTime,
		"timer.short_break_time":          c.Timer.ShortBreakTime,
		"timer.long_break_time":           c.Timer.LongBreakTime,
		"timer.sessions_until_long_break": c.Timer.SessionsUntilLongBreak,
	}
	for key, v := range durations {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, v)
		}
	}
	if c.History.Retention.Duration < 0 {
		return fmt.Errorf("history.retention must not be negative")
	}
	return nil
}

// Settings converts the configuration into the timer package's
// runtime settings.
func (c *Config) Settings() timer.Settings {
	return timer.Settings{
		Focus:                  time.Duration(c.Timer.FocusTime) * time.Minute,
		ShortBreak:             time.Duration(c.Timer.ShortBreakTime) * time.Minute,
		LongBreak:              time.Duration(c.Timer.LongBreakTime) * time.Minute,
		SessionsUntilLongBreak: c.Timer.SessionsUntilLongBreak,
		SoundEnabled:           c.Behavior.SoundEnabled,
		AutoStartBreaks:        c.Behavior.AutoStartBreaks,
	}
}
