// Package snapshot persists the timer state across process restarts.
// Every state-changing transition while the timer is active is captured
// to two durable stores: an instance-scoped file in the runtime
// directory and a shared file in the state directory. Recovery reads
// them back at startup, rejecting snapshots older than MaxAge.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

// MaxAge is the staleness bound: snapshots captured longer ago than
// this are discarded rather than restored.
const MaxAge = time.Hour

// Snapshot is the serialized form of a timer state plus its capture
// instant. All fields are primitive numbers or strings.
type Snapshot struct {
	Mode           timer.Mode   `json:"mode"`
	Status         timer.Status `json:"status"`
	AnchorMS       int64        `json:"anchor_ms,omitempty"`
	PauseOffsetMS  int64        `json:"pause_offset_ms"`
	RemainingS     int64        `json:"remaining_s"`
	SessionCount   int          `json:"session_count"`
	LastMutationMS int64        `json:"last_mutation_ms"`
	CapturedAtMS   int64        `json:"captured_at_ms"`
}

// capture converts a live state into its serialized form.
func capture(st timer.State, now time.Time) Snapshot {
	s := Snapshot{
		Mode:           st.Mode,
		Status:         st.Status,
		PauseOffsetMS:  st.PauseOffset.Milliseconds(),
		RemainingS:     int64(st.Remaining / time.Second),
		SessionCount:   st.SessionCount,
		LastMutationMS: st.LastMutation.UnixMilli(),
		CapturedAtMS:   now.UnixMilli(),
	}
	if !st.Anchor.IsZero() {
		s.AnchorMS = st.Anchor.UnixMilli()
	}
	return s
}

// Manager writes and recovers snapshots. All write paths are
// best-effort: failures are logged and swallowed, never surfaced to the
// timer core.
type Manager struct {
	sharedPath   string
	instancePath string
	logger       *slog.Logger
}

// NewManager creates a Manager writing the shared snapshot under
// stateDir and the instance snapshot under runtimeDir, keyed by pid.
func NewManager(stateDir, runtimeDir string, pid int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		sharedPath:   filepath.Join(stateDir, "snapshot.json"),
		instancePath: filepath.Join(runtimeDir, fmt.Sprintf("instance-%d.json", pid)),
		logger:       logger,
	}
}

// Save captures st to both stores. Fire-and-forget: errors are logged
// at warn level and otherwise ignored.
func (m *Manager) Save(st timer.State, now time.Time) {
	data, err := json.Marshal(capture(st, now))
	if err != nil {
		m.logger.Warn("marshal snapshot", "error", err)
		return
	}
	for _, path := range []string{m.instancePath, m.sharedPath} {
		if err := atomicWrite(path, data); err != nil {
			m.logger.Warn("write snapshot", "path", path, "error", err)
		}
	}
}

// Clear deletes both persisted snapshots. Called on explicit reset and
// on successful completion so finished sessions are never resurrected.
func (m *Manager) Clear() {
	for _, path := range []string{m.instancePath, m.sharedPath} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.logger.Warn("remove snapshot", "path", path, "error", err)
		}
	}
}

// Close removes the instance-scoped snapshot; the shared one stays for
// the next startup.
func (m *Manager) Close() {
	if err := os.Remove(m.instancePath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("remove instance snapshot", "error", err)
	}
}

// Recover reconstructs a timer state from the persisted snapshots.
// The instance store is preferred, then the shared store. Returns
// (state, false) when nothing restorable exists:
//
//   - no snapshot, or status was Stopped: nothing to restore
//   - captured ≥ MaxAge ago: stale, discarded
//   - Running with the session already elapsed: discarded rather than
//     re-firing a completion that happened while we were away
//
// A recovered Running state gets a back-dated anchor so subsequent
// recomputation continues from the correct remaining time; a Paused
// state is restored verbatim since paused time does not elapse.
func (m *Manager) Recover(settings timer.Settings, now time.Time) (timer.State, bool) {
	for _, path := range []string{m.instancePath, m.sharedPath} {
		snap, ok := m.read(path)
		if !ok {
			continue
		}
		if st, ok := restore(snap, settings, now); ok {
			return st, true
		}
		// Restorable snapshot found but judged stale or finished; do not
		// fall through to an even older store.
		break
	}
	return timer.State{}, false
}

func (m *Manager) read(path string) (Snapshot, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("read snapshot", "path", path, "error", err)
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		m.logger.Warn("corrupt snapshot discarded", "path", path, "error", err)
		_ = os.Remove(path)
		return Snapshot{}, false
	}
	return snap, true
}

// restore applies the recovery policy to a single snapshot.
func restore(snap Snapshot, settings timer.Settings, now time.Time) (timer.State, bool) {
	if snap.Status == timer.StatusStopped {
		return timer.State{}, false
	}

	captured := time.UnixMilli(snap.CapturedAtMS)
	age := now.Sub(captured)
	if age >= MaxAge {
		return timer.State{}, false
	}

	total := settings.Duration(snap.Mode)
	st := timer.State{
		Mode:         snap.Mode,
		Status:       snap.Status,
		SessionCount: snap.SessionCount,
		LastMutation: time.UnixMilli(snap.LastMutationMS),
	}

	switch snap.Status {
	case timer.StatusRunning:
		remaining := time.Duration(snap.RemainingS)*time.Second - age
		if remaining <= 0 {
			// The session would have completed while we were gone.
			return timer.State{}, false
		}
		remaining = remaining.Truncate(time.Second)
		st.Anchor = now.Add(remaining - total)
		st.Remaining = remaining
	case timer.StatusPaused:
		st.PauseOffset = time.Duration(snap.PauseOffsetMS) * time.Millisecond
		st.Remaining = time.Duration(snap.RemainingS) * time.Second
	default:
		return timer.State{}, false
	}

	return st, true
}

// atomicWrite writes data to path via a temporary file and rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	success = true
	return nil
}
