package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// StateDir returns the directory for durable per-user state (the shared
// snapshot, the session history, and the log file), creating it if
// needed. Follows XDG_STATE_HOME with ~/.local/state as fallback.
func StateDir() (string, error) {
	home, _ := os.UserHomeDir()
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "focus-pulse")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create state directory: %w", err)
	}
	return dir, nil
}

// RuntimeDir returns the directory for instance-lifetime artifacts (the
// sync bus sockets and instance snapshots), creating it if needed.
// Follows XDG_RUNTIME_DIR with a per-user temp directory as fallback.
// Created with owner-only permissions because sibling instances trust
// whatever appears here.
func RuntimeDir() (string, error) {
	base := os.Getenv("XDG_RUNTIME_DIR")
	if base == "" {
		base = filepath.Join(os.TempDir(), fmt.Sprintf("focus-pulse-%d", os.Getuid()))
	} else {
		base = filepath.Join(base, "focus-pulse")
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return "", fmt.Errorf("create runtime directory: %w", err)
	}
	return base, nil
}
