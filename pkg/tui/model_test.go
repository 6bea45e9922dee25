package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/alarm"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

func newTestModel(t *testing.T) (Model, *timer.Engine) {
	t.Helper()
	machine := timer.NewMachine(timer.DefaultSettings())
	engine := timer.NewEngine(machine, timer.Hooks{}, nil)
	t.Cleanup(engine.Close)
	return New(engine, timer.DefaultSettings(), nil, nil), engine
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestFormatClock(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{25 * time.Minute, "25:00"},
		{17*time.Minute + 3*time.Second, "17:03"},
		{-time.Second, "00:00"},
		{101 * time.Minute, "101:00"},
	}
	for _, tc := range cases {
		if got := formatClock(tc.d); got != tc.want {
			t.Errorf("formatClock(%v) = %q, want %q", tc.d, got, tc.want)
		}
	}
}

func TestRenderClockShape(t *testing.T) {
	lines := strings.Split(renderClock(25*time.Minute), "\n")
	if len(lines) != 5 {
		t.Fatalf("clock rows = %d, want 5", len(lines))
	}
	for i := 1; i < len(lines); i++ {
		if len([]rune(lines[i])) != len([]rune(lines[0])) {
			t.Errorf("row %d width %d differs from row 0 width %d",
				i, len([]rune(lines[i])), len([]rune(lines[0])))
		}
	}
}

func TestNextModeCycle(t *testing.T) {
	order := []timer.Mode{timer.ModeFocus, timer.ModeShortBreak, timer.ModeLongBreak, timer.ModeFocus}
	for i := 0; i < len(order)-1; i++ {
		if got := nextMode(order[i]); got != order[i+1] {
			t.Errorf("nextMode(%v) = %v, want %v", order[i], got, order[i+1])
		}
	}
}

func TestToggleKeyWalksStatuses(t *testing.T) {
	m, engine := newTestModel(t)
	space := tea.KeyMsg{Type: tea.KeySpace}

	steps := []timer.Status{timer.StatusRunning, timer.StatusPaused, timer.StatusRunning}
	for i, want := range steps {
		next, _ := m.Update(space)
		m = next.(Model)
		m.state = engine.State()
		if got := engine.State().Status; got != want {
			t.Fatalf("step %d: status = %v, want %v", i, got, want)
		}
	}

	next, _ := m.Update(keyPress('r'))
	m = next.(Model)
	if got := engine.State().Status; got != timer.StatusStopped {
		t.Errorf("after reset: status = %v, want stopped", got)
	}
	_ = m
}

func TestModeKeysSwitchMode(t *testing.T) {
	m, engine := newTestModel(t)

	next, _ := m.Update(keyPress('2'))
	m = next.(Model)
	if got := engine.State().Mode; got != timer.ModeShortBreak {
		t.Fatalf("mode = %v, want short break", got)
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	_ = next
	if got := engine.State().Mode; got != timer.ModeLongBreak {
		t.Errorf("after tab from short break: mode = %v, want long break", got)
	}
}

func TestStateMsgUpdatesModel(t *testing.T) {
	m, _ := newTestModel(t)

	st := timer.State{
		Mode:      timer.ModeShortBreak,
		Status:    timer.StatusRunning,
		Remaining: 4 * time.Minute,
	}
	next, cmd := m.Update(stateMsg(st))
	m = next.(Model)

	if m.state.Mode != timer.ModeShortBreak || m.state.Remaining != 4*time.Minute {
		t.Errorf("model state = %+v, want applied message state", m.state)
	}
	if cmd == nil {
		t.Error("expected the subscription wait to be re-issued")
	}
}

func TestViewShowsModeAndStatus(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m = next.(Model)

	view := m.View()
	for _, want := range []string{"Focus", "Short Break", "Long Break", "ready", "Start", "Reset"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestFooterShowsNotificationPermission(t *testing.T) {
	machine := timer.NewMachine(timer.DefaultSettings())
	engine := timer.NewEngine(machine, timer.Hooks{}, nil)
	t.Cleanup(engine.Close)

	m := New(engine, timer.DefaultSettings(), alarm.NewNotifier(nil), nil)
	if got := m.viewFooter(); !strings.Contains(got, "notifications not asked") {
		t.Errorf("footer = %q, want notification permission state", got)
	}
}
