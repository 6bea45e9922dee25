package timer

import "time"

// Completion describes a finished session: which mode completed, which
// mode the machine moved to, and whether the new session was started
// automatically.
type Completion struct {
	Completed    Mode
	Next         Mode
	SessionCount int
	AutoStarted  bool
}

// Machine is the timer state machine. It is deliberately synchronous
// and not safe for concurrent use; Engine owns a Machine and serializes
// every mutation through a single goroutine.
//
// Every transition is idempotent under redundant commands: starting a
// running timer, pausing a paused one, and so on are no-ops rather than
// errors, because sync events can arrive after local state has already
// advanced.
type Machine struct {
	settings Settings
	st       State
	now      func() time.Time
}

// Option configures a Machine at construction time.
type Option func(*Machine)

// WithClock substitutes the wall-clock source. Tests use this to drive
// time deterministically.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithState seeds the machine with a recovered state instead of fresh
// defaults.
func WithState(st State) Option {
	return func(m *Machine) { m.st = st }
}

// NewMachine creates a stopped Focus-mode machine with the given settings.
func NewMachine(settings Settings, opts ...Option) *Machine {
	m := &Machine{
		settings: settings,
		st:       NewState(ModeFocus, settings),
		now:      time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns a copy of the current state.
func (m *Machine) State() State { return m.st }

// Settings returns the machine's current settings.
func (m *Machine) Settings() Settings { return m.settings }

// SetSettings replaces the settings. A stopped timer's displayed
// remaining time is re-derived from the new duration; an active session
// keeps counting against the duration it started with until it ends.
func (m *Machine) SetSettings(s Settings) {
	m.settings = s
	if m.st.Status == StatusStopped {
		m.st.Remaining = s.Duration(m.st.Mode)
	}
}

// Start begins a session from Stopped. Returns the event to broadcast
// and whether the state changed.
func (m *Machine) Start() (Event, bool) {
	if m.st.Status != StatusStopped {
		return Event{}, false
	}
	now := m.now()
	m.st.Status = StatusRunning
	m.st.Anchor = now
	m.st.PauseOffset = 0
	m.st.Remaining = Remaining(m.st, m.total(), now)
	m.st.LastMutation = now
	return m.startEvent(), true
}

// Pause freezes a running session, recording elapsed time so far.
func (m *Machine) Pause() (Event, bool) {
	if m.st.Status != StatusRunning {
		return Event{}, false
	}
	now := m.now()
	elapsed := m.st.Elapsed(now)
	if total := m.total(); elapsed > total {
		elapsed = total
	}
	m.st.Status = StatusPaused
	m.st.PauseOffset = elapsed
	m.st.Anchor = time.Time{}
	m.st.Remaining = Remaining(m.st, m.total(), now)
	m.st.LastMutation = now
	return Event{
		Type:      EventPause,
		Mode:      m.st.Mode,
		TimeLeft:  int64(m.st.Remaining / time.Second),
		PauseTime: now.UnixMilli(),
		Timestamp: now.UnixMilli(),
	}, true
}

// Resume continues a paused session. The accumulated pause offset is
// folded into a back-dated anchor so elapsed-time arithmetic continues
// seamlessly without a separate running offset.
func (m *Machine) Resume() (Event, bool) {
	if m.st.Status != StatusPaused {
		return Event{}, false
	}
	now := m.now()
	m.st.Status = StatusRunning
	m.st.Anchor = now.Add(-m.st.PauseOffset)
	m.st.PauseOffset = 0
	m.st.Remaining = Remaining(m.st, m.total(), now)
	m.st.LastMutation = now
	return m.startEvent(), true
}

// Reset returns the timer to Stopped in the current mode with the full
// duration remaining. Resetting an already stopped timer still refreshes
// the displayed duration but reports no change.
func (m *Machine) Reset() (Event, bool) {
	now := m.now()
	changed := m.st.Status != StatusStopped
	m.st.Status = StatusStopped
	m.st.Anchor = time.Time{}
	m.st.PauseOffset = 0
	m.st.Remaining = m.total().Truncate(time.Second)
	if changed {
		m.st.LastMutation = now
	}
	return Event{
		Type:      EventStop,
		Mode:      m.st.Mode,
		Timestamp: now.UnixMilli(),
	}, changed
}

// SwitchMode stops any active run and selects the requested mode with
// its full duration. It never auto-starts.
func (m *Machine) SwitchMode(mode Mode) (Event, bool) {
	now := m.now()
	if mode == m.st.Mode && m.st.Status == StatusStopped {
		return Event{}, false
	}
	m.st.Mode = mode
	m.st.Status = StatusStopped
	m.st.Anchor = time.Time{}
	m.st.PauseOffset = 0
	m.st.Remaining = m.total().Truncate(time.Second)
	m.st.LastMutation = now
	return Event{
		Type:      EventModeChange,
		Mode:      mode,
		Timestamp: now.UnixMilli(),
	}, true
}

// Recompute re-derives the cached remaining value from absolute time.
// If the session has run to zero it performs the completion transition
// exactly once and reports it: the session counter advances for focus
// sessions, the next mode is selected (long break every
// SessionsUntilLongBreak focus sessions, focus after any break), and the
// new session auto-starts when configured and the completed mode was
// focus.
func (m *Machine) Recompute() (Completion, bool) {
	if m.st.Status != StatusRunning {
		return Completion{}, false
	}
	now := m.now()
	m.st.Remaining = Remaining(m.st, m.total(), now)
	if m.st.Remaining > 0 {
		return Completion{}, false
	}

	completed := m.st.Mode
	if completed == ModeFocus {
		m.st.SessionCount++
	}

	next := ModeFocus
	if completed == ModeFocus {
		if m.st.SessionCount%m.settings.SessionsUntilLongBreak == 0 {
			next = ModeLongBreak
		} else {
			next = ModeShortBreak
		}
	}

	m.st.Mode = next
	m.st.Status = StatusStopped
	m.st.Anchor = time.Time{}
	m.st.PauseOffset = 0
	m.st.Remaining = m.total().Truncate(time.Second)
	m.st.LastMutation = now

	comp := Completion{
		Completed:    completed,
		Next:         next,
		SessionCount: m.st.SessionCount,
	}

	if m.settings.AutoStartBreaks && completed == ModeFocus {
		m.st.Status = StatusRunning
		m.st.Anchor = now
		comp.AutoStarted = true
	}

	return comp, true
}

// Apply reconciles an event received from a sibling instance. The event
// is applied only if it is strictly newer than the local state's last
// mutation (last-writer-wins); otherwise it is dropped. Applying an
// event fully replaces the derived fields to match the sender and never
// re-broadcasts.
func (m *Machine) Apply(ev Event) bool {
	if !ev.When().After(m.st.LastMutation) {
		return false
	}

	m.st.Mode = ev.Mode
	total := m.total()

	switch ev.Type {
	case EventStart:
		m.st.Status = StatusRunning
		m.st.Anchor = ev.StartedAt()
		m.st.PauseOffset = 0
		m.st.Remaining = Remaining(m.st, total, m.now())
	case EventPause:
		m.st.Status = StatusPaused
		m.st.Anchor = time.Time{}
		m.st.PauseOffset = total - time.Duration(ev.TimeLeft)*time.Second
		if m.st.PauseOffset < 0 {
			m.st.PauseOffset = 0
		}
		m.st.Remaining = time.Duration(ev.TimeLeft) * time.Second
	case EventStop, EventModeChange:
		m.st.Status = StatusStopped
		m.st.Anchor = time.Time{}
		m.st.PauseOffset = 0
		m.st.Remaining = total.Truncate(time.Second)
	default:
		return false
	}

	m.st.LastMutation = ev.When()
	return true
}

func (m *Machine) total() time.Duration {
	return m.settings.Duration(m.st.Mode)
}

func (m *Machine) startEvent() Event {
	return Event{
		Type:      EventStart,
		Mode:      m.st.Mode,
		StartTime: m.st.Anchor.UnixMilli(),
		Timestamp: m.st.LastMutation.UnixMilli(),
	}
}
