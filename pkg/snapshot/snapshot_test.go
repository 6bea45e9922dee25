package snapshot

import (
	"os"
	"testing"
	"time"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	return NewManager(t.TempDir(), t.TempDir(), os.Getpid(), nil)
}

func testSettings() timer.Settings {
	return timer.DefaultSettings()
}

func TestRecoverWithoutSnapshot(t *testing.T) {
	m := newTestManager(t)
	if _, ok := m.Recover(testSettings(), time.Now()); ok {
		t.Error("expected no recovery from empty stores")
	}
}

func TestSaveRecoverPausedVerbatim(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	st := timer.State{
		Mode:         timer.ModeFocus,
		Status:       timer.StatusPaused,
		PauseOffset:  10 * time.Minute,
		Remaining:    15 * time.Minute,
		SessionCount: 2,
		LastMutation: now,
	}
	m.Save(st, now)

	// Paused time does not elapse: recovery 40 minutes later restores
	// the exact remaining value.
	got, ok := m.Recover(testSettings(), now.Add(40*time.Minute))
	if !ok {
		t.Fatal("expected recovery")
	}
	if got.Status != timer.StatusPaused {
		t.Errorf("status = %v, want paused", got.Status)
	}
	if got.Remaining != 15*time.Minute {
		t.Errorf("remaining = %v, want 15m", got.Remaining)
	}
	if got.PauseOffset != 10*time.Minute {
		t.Errorf("pause offset = %v, want 10m", got.PauseOffset)
	}
	if got.SessionCount != 2 {
		t.Errorf("session count = %d, want 2", got.SessionCount)
	}
}

func TestRecoverRunningRecomputesRemaining(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	st := timer.State{
		Mode:         timer.ModeFocus,
		Status:       timer.StatusRunning,
		Anchor:       now.Add(-5 * time.Minute),
		Remaining:    20 * time.Minute,
		LastMutation: now,
	}
	m.Save(st, now)

	got, ok := m.Recover(testSettings(), now.Add(8*time.Minute))
	if !ok {
		t.Fatal("expected recovery")
	}
	if got.Status != timer.StatusRunning {
		t.Errorf("status = %v, want running", got.Status)
	}
	if got.Remaining != 12*time.Minute {
		t.Errorf("remaining = %v, want 12m (20m saved minus 8m absence)", got.Remaining)
	}

	// The recovered anchor must keep the clock consistent.
	later := now.Add(8*time.Minute + 30*time.Second)
	if rem := timer.Remaining(got, testSettings().Focus, later); rem != 12*time.Minute-30*time.Second {
		t.Errorf("recomputed remaining = %v, want 11m30s", rem)
	}
}

func TestRecoverRunningElapsedIsDiscarded(t *testing.T) {
	m := newTestManager(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	st := timer.State{
		Mode:         timer.ModeFocus,
		Status:       timer.StatusRunning,
		Anchor:       now,
		Remaining:    10 * time.Minute,
		LastMutation: now,
	}
	m.Save(st, now)

	// The session would have completed 5 minutes into our absence;
	// discard instead of re-firing completion.
	if _, ok := m.Recover(testSettings(), now.Add(15*time.Minute)); ok {
		t.Error("expected elapsed running snapshot to be discarded")
	}
}

func TestStalenessBoundary(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		age    time.Duration
		wantOK bool
	}{
		{"59 minutes old is restored", 59 * time.Minute, true},
		{"61 minutes old is discarded", 61 * time.Minute, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestManager(t)
			st := timer.State{
				Mode:         timer.ModeFocus,
				Status:       timer.StatusPaused,
				PauseOffset:  time.Minute,
				Remaining:    24 * time.Minute,
				LastMutation: now,
			}
			m.Save(st, now)

			_, ok := m.Recover(testSettings(), now.Add(tc.age))
			if ok != tc.wantOK {
				t.Errorf("recovery at age %v = %v, want %v", tc.age, ok, tc.wantOK)
			}
		})
	}
}

func TestStoppedSnapshotIsNotRestored(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()

	m.Save(timer.State{Mode: timer.ModeFocus, Status: timer.StatusStopped, Remaining: 25 * time.Minute}, now)

	if _, ok := m.Recover(testSettings(), now); ok {
		t.Error("stopped snapshots carry nothing to restore")
	}
}

func TestClearRemovesBothStores(t *testing.T) {
	m := newTestManager(t)
	now := time.Now()

	m.Save(timer.State{Mode: timer.ModeFocus, Status: timer.StatusPaused, Remaining: time.Minute, LastMutation: now}, now)
	m.Clear()

	if _, ok := m.Recover(testSettings(), now); ok {
		t.Error("expected nothing to recover after Clear")
	}
	if _, err := os.Stat(m.sharedPath); !os.IsNotExist(err) {
		t.Error("shared snapshot file should be gone")
	}
	if _, err := os.Stat(m.instancePath); !os.IsNotExist(err) {
		t.Error("instance snapshot file should be gone")
	}
}

func TestCorruptSnapshotIsDiscarded(t *testing.T) {
	m := newTestManager(t)

	if err := os.WriteFile(m.sharedPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, ok := m.Recover(testSettings(), time.Now()); ok {
		t.Error("corrupt snapshot should not recover")
	}
	if _, err := os.Stat(m.sharedPath); !os.IsNotExist(err) {
		t.Error("corrupt snapshot file should be removed")
	}
}
