package timer

import (
	"testing"
	"time"
)

// fakeClock is a manually advanced wall clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMachine(t *testing.T, clk *fakeClock, mutate ...func(*Settings)) *Machine {
	t.Helper()
	s := DefaultSettings()
	for _, m := range mutate {
		m(&s)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("invalid test settings: %v", err)
	}
	return NewMachine(s, WithClock(clk.Now))
}

func TestStartSetsAnchorAndClearsOffset(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	ev, changed := m.Start()
	if !changed {
		t.Fatal("Start from Stopped should change state")
	}
	st := m.State()
	if st.Status != StatusRunning {
		t.Errorf("status = %v, want running", st.Status)
	}
	if !st.Anchor.Equal(clk.Now()) {
		t.Errorf("anchor = %v, want %v", st.Anchor, clk.Now())
	}
	if st.PauseOffset != 0 {
		t.Errorf("pause offset = %v, want 0", st.PauseOffset)
	}
	if ev.Type != EventStart {
		t.Errorf("event type = %q, want start", ev.Type)
	}
	if ev.StartTime != clk.Now().UnixMilli() {
		t.Errorf("event start time = %d, want %d", ev.StartTime, clk.Now().UnixMilli())
	}
}

func TestStartTwiceIsIdempotent(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	m.Start()
	first := m.State()

	clk.Advance(3 * time.Second)
	if _, changed := m.Start(); changed {
		t.Error("second Start should be a no-op")
	}
	if got := m.State(); got != first {
		t.Errorf("state changed on redundant start: %+v != %+v", got, first)
	}
}

func TestPauseResumeRoundTrip(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	m.Start()
	clk.Advance(7 * time.Minute)

	ev, changed := m.Pause()
	if !changed {
		t.Fatal("Pause from Running should change state")
	}
	st := m.State()
	if st.PauseOffset != 7*time.Minute {
		t.Errorf("pause offset = %v, want 7m", st.PauseOffset)
	}
	if !st.Anchor.IsZero() {
		t.Errorf("anchor should be cleared on pause, got %v", st.Anchor)
	}
	if ev.TimeLeft != int64((18 * time.Minute).Seconds()) {
		t.Errorf("event time left = %d, want %d", ev.TimeLeft, int64((18*time.Minute).Seconds()))
	}

	// The pause itself must add no drift, however long it lasts.
	clk.Advance(2 * time.Hour)
	m.Resume()

	st = m.State()
	if st.Status != StatusRunning {
		t.Fatalf("status = %v, want running", st.Status)
	}
	if got := Remaining(st, m.Settings().Focus, clk.Now()); got != 18*time.Minute {
		t.Errorf("remaining after resume = %v, want 18m", got)
	}
	if st.PauseOffset != 0 {
		t.Errorf("offset should fold into anchor on resume, got %v", st.PauseOffset)
	}
}

func TestPauseWhenStoppedIsNoOp(t *testing.T) {
	m := newTestMachine(t, newFakeClock())
	if _, changed := m.Pause(); changed {
		t.Error("Pause from Stopped should be a no-op")
	}
	if _, changed := m.Resume(); changed {
		t.Error("Resume from Stopped should be a no-op")
	}
}

func TestResetClearsRunState(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	m.Start()
	clk.Advance(10 * time.Minute)

	ev, changed := m.Reset()
	if !changed {
		t.Fatal("Reset from Running should change state")
	}
	if ev.Type != EventStop {
		t.Errorf("event type = %q, want stop", ev.Type)
	}
	st := m.State()
	if st.Status != StatusStopped || !st.Anchor.IsZero() || st.PauseOffset != 0 {
		t.Errorf("reset left run-time fields: %+v", st)
	}
	if st.Remaining != 25*time.Minute {
		t.Errorf("remaining = %v, want full 25m", st.Remaining)
	}
}

func TestSwitchModeStopsAndResets(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	m.Start()
	clk.Advance(time.Minute)

	ev, changed := m.SwitchMode(ModeLongBreak)
	if !changed {
		t.Fatal("SwitchMode should change state")
	}
	if ev.Type != EventModeChange || ev.Mode != ModeLongBreak {
		t.Errorf("event = %+v, want mode_change/long_break", ev)
	}
	st := m.State()
	if st.Mode != ModeLongBreak || st.Status != StatusStopped {
		t.Errorf("state = %v/%v, want long_break/stopped", st.Mode, st.Status)
	}
	if st.Remaining != 15*time.Minute {
		t.Errorf("remaining = %v, want 15m", st.Remaining)
	}

	if _, changed := m.SwitchMode(ModeLongBreak); changed {
		t.Error("switching to the current mode while stopped should be a no-op")
	}
}

func TestCompletionAdvancesSessionAndMode(t *testing.T) {
	cases := []struct {
		name         string
		startSession int
		wantNext     Mode
		wantSessions int
	}{
		{"first focus earns short break", 0, ModeShortBreak, 1},
		{"fourth focus earns long break", 3, ModeLongBreak, 4},
		{"eighth focus earns long break", 7, ModeLongBreak, 8},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clk := newFakeClock()
			m := newTestMachine(t, clk)
			for i := 0; i < tc.startSession; i++ {
				m.st.SessionCount++ // seed completed sessions
			}

			m.Start()
			clk.Advance(25 * time.Minute)

			comp, done := m.Recompute()
			if !done {
				t.Fatal("expected completion at zero remaining")
			}
			if comp.Completed != ModeFocus {
				t.Errorf("completed = %v, want focus", comp.Completed)
			}
			if comp.Next != tc.wantNext {
				t.Errorf("next = %v, want %v", comp.Next, tc.wantNext)
			}
			if comp.SessionCount != tc.wantSessions {
				t.Errorf("sessions = %d, want %d", comp.SessionCount, tc.wantSessions)
			}

			st := m.State()
			if st.Mode != tc.wantNext || st.Status != StatusStopped {
				t.Errorf("state = %v/%v, want %v/stopped", st.Mode, st.Status, tc.wantNext)
			}

			// Completion must signal exactly once.
			if _, again := m.Recompute(); again {
				t.Error("recompute after completion re-signalled")
			}
		})
	}
}

func TestBreakCompletionReturnsToFocus(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	m.SwitchMode(ModeShortBreak)
	m.Start()
	clk.Advance(5 * time.Minute)

	comp, done := m.Recompute()
	if !done {
		t.Fatal("expected break completion")
	}
	if comp.Next != ModeFocus {
		t.Errorf("next = %v, want focus", comp.Next)
	}
	if comp.SessionCount != 0 {
		t.Errorf("break completion should not count sessions, got %d", comp.SessionCount)
	}
	if comp.AutoStarted {
		t.Error("breaks never auto-start the following focus session")
	}
}

func TestAutoStartBreaks(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk, func(s *Settings) { s.AutoStartBreaks = true })

	m.Start()
	clk.Advance(25 * time.Minute)

	comp, done := m.Recompute()
	if !done {
		t.Fatal("expected completion")
	}
	if !comp.AutoStarted {
		t.Error("expected auto-started break")
	}
	st := m.State()
	if st.Status != StatusRunning || st.Mode != ModeShortBreak {
		t.Errorf("state = %v/%v, want short_break/running", st.Mode, st.Status)
	}
	if !st.Anchor.Equal(clk.Now()) {
		t.Errorf("auto-start anchor = %v, want %v", st.Anchor, clk.Now())
	}
}

func TestApplyLastWriterWins(t *testing.T) {
	clk := newFakeClock()
	base := clk.Now()

	older := Event{
		Type:      EventStart,
		Mode:      ModeFocus,
		StartTime: base.Add(-time.Minute).UnixMilli(),
		Timestamp: base.Add(-time.Minute).UnixMilli(),
	}
	newer := Event{
		Type:      EventPause,
		Mode:      ModeFocus,
		TimeLeft:  600,
		PauseTime: base.UnixMilli(),
		Timestamp: base.UnixMilli(),
	}

	// Both arrival orders must converge on the newer event's state.
	orders := map[string][2]Event{
		"in order":     {older, newer},
		"out of order": {newer, older},
	}

	for name, evs := range orders {
		t.Run(name, func(t *testing.T) {
			m := newTestMachine(t, clk)
			m.Apply(evs[0])
			m.Apply(evs[1])

			st := m.State()
			if st.Status != StatusPaused {
				t.Errorf("status = %v, want paused", st.Status)
			}
			if st.Remaining != 10*time.Minute {
				t.Errorf("remaining = %v, want 10m", st.Remaining)
			}
			if !st.LastMutation.Equal(newer.When()) {
				t.Errorf("last mutation = %v, want %v", st.LastMutation, newer.When())
			}
		})
	}
}

func TestApplyDropsStaleEvent(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	m.Start() // local mutation at clk.Now()

	stale := Event{
		Type:      EventStop,
		Mode:      ModeFocus,
		Timestamp: clk.Now().Add(-time.Second).UnixMilli(),
	}
	if m.Apply(stale) {
		t.Error("stale event should be dropped")
	}
	if st := m.State(); st.Status != StatusRunning {
		t.Errorf("status = %v, want running after dropped event", st.Status)
	}
}

func TestApplyStartRecomputesRemainingFromAnchor(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	// A sibling started a focus session 4 minutes ago.
	anchor := clk.Now().Add(-4 * time.Minute)
	applied := m.Apply(Event{
		Type:      EventStart,
		Mode:      ModeFocus,
		StartTime: anchor.UnixMilli(),
		Timestamp: anchor.UnixMilli(),
	})
	if !applied {
		t.Fatal("expected event to apply")
	}
	st := m.State()
	if st.Remaining != 21*time.Minute {
		t.Errorf("remaining = %v, want 21m", st.Remaining)
	}
}

func TestEndToEndFocusSession(t *testing.T) {
	clk := newFakeClock()
	m := newTestMachine(t, clk)

	m.Start()

	// Simulate sparse, irregular recomputes over the 1500-second session.
	for _, at := range []time.Duration{1 * time.Second, 13 * time.Minute, 24 * time.Minute} {
		clk.now = newFakeClock().now.Add(at)
		if _, done := m.Recompute(); done {
			t.Fatalf("unexpected completion at %v", at)
		}
	}

	clk.now = newFakeClock().now.Add(1500 * time.Second)
	comp, done := m.Recompute()
	if !done {
		t.Fatal("expected completion at 1500s")
	}
	if comp.SessionCount != 1 {
		t.Errorf("sessions = %d, want 1", comp.SessionCount)
	}
	st := m.State()
	if st.Mode != ModeShortBreak {
		t.Errorf("mode = %v, want short_break", st.Mode)
	}
	if st.Remaining != 300*time.Second {
		t.Errorf("remaining = %v, want 300s", st.Remaining)
	}
	if st.Status != StatusStopped {
		t.Errorf("status = %v, want stopped (auto-start disabled)", st.Status)
	}
}

func TestSetSettingsRefreshesStoppedRemaining(t *testing.T) {
	m := newTestMachine(t, newFakeClock())

	s := m.Settings()
	s.Focus = 50 * time.Minute
	m.SetSettings(s)

	if st := m.State(); st.Remaining != 50*time.Minute {
		t.Errorf("remaining = %v, want 50m after settings change", st.Remaining)
	}
}
