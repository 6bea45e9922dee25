// Package tui is the interactive terminal front end. It follows the
// Elm architecture: the model holds a copy of the latest timer state,
// updates arrive as messages from the engine subscription, and all
// user intent is forwarded to the engine rather than mutating the
// copy directly.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/alarm"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/history"
	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

// stateMsg carries a fresh state copy from the engine subscription.
type stateMsg timer.State

// statesClosedMsg signals that the engine shut down underneath us.
type statesClosedMsg struct{}

// Model is the bubbletea model for the timer screen.
type Model struct {
	engine   *timer.Engine
	states   <-chan timer.State
	settings timer.Settings
	notifier *alarm.Notifier
	log      *history.Log

	zones *zone.Manager
	keys  keyMap
	help  help.Model
	bar   progress.Model
	pal   palette
	sty   styles

	state       timer.State
	today       history.Summary
	lastSession int
	width       int
	height      int
}

// New builds the model around a running engine. notifier and log may
// be nil; the corresponding UI affordances are then hidden.
func New(engine *timer.Engine, settings timer.Settings, notifier *alarm.Notifier, log *history.Log) Model {
	pal := newPalette()
	m := Model{
		engine:   engine,
		states:   engine.Subscribe(),
		settings: settings,
		notifier: notifier,
		log:      log,
		zones:    zone.New(),
		keys:     defaultKeyMap(),
		help:     help.New(),
		bar:      progress.New(progress.WithSolidFill(string(pal.focus))),
		pal:      pal,
		state:    engine.State(),
	}
	m.sty = newStyles(pal)
	m.lastSession = m.state.SessionCount
	m.refreshToday()
	return m
}

func (m Model) Init() tea.Cmd {
	return waitForState(m.states)
}

// waitForState blocks on the subscription and converts the next state
// into a message. Re-issued after every delivery.
func waitForState(ch <-chan timer.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-ch
		if !ok {
			return statesClosedMsg{}
		}
		return stateMsg(st)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case stateMsg:
		st := timer.State(msg)
		if st.SessionCount != m.lastSession || st.Mode != m.state.Mode {
			m.refreshToday()
			m.lastSession = st.SessionCount
		}
		m.state = st
		return m, waitForState(m.states)

	case statesClosedMsg:
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := msg.Width - 12
		if w > 44 {
			w = 44
		}
		if w < 10 {
			w = 10
		}
		m.bar.Width = w
		return m, nil

	case tea.FocusMsg:
		// The terminal regained focus; snap the display to the true
		// remaining time instead of waiting for the next tick.
		m.engine.Refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.MouseMsg:
		return m.handleMouse(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Toggle):
		m.toggle()
	case key.Matches(msg, m.keys.Reset):
		m.engine.Reset()
	case key.Matches(msg, m.keys.NextMode):
		m.engine.SwitchMode(nextMode(m.state.Mode))
	case key.Matches(msg, m.keys.Focus):
		m.engine.SwitchMode(timer.ModeFocus)
	case key.Matches(msg, m.keys.ShortBreak):
		m.engine.SwitchMode(timer.ModeShortBreak)
	case key.Matches(msg, m.keys.LongBreak):
		m.engine.SwitchMode(timer.ModeLongBreak)
	case key.Matches(msg, m.keys.Notify):
		if m.notifier != nil {
			m.notifier.Request()
		}
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionRelease || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	switch {
	case m.zones.Get(zoneToggle).InBounds(msg):
		m.toggle()
	case m.zones.Get(zoneReset).InBounds(msg):
		m.engine.Reset()
	case m.zones.Get(zoneTab(timer.ModeFocus)).InBounds(msg):
		m.engine.SwitchMode(timer.ModeFocus)
	case m.zones.Get(zoneTab(timer.ModeShortBreak)).InBounds(msg):
		m.engine.SwitchMode(timer.ModeShortBreak)
	case m.zones.Get(zoneTab(timer.ModeLongBreak)).InBounds(msg):
		m.engine.SwitchMode(timer.ModeLongBreak)
	}
	return m, nil
}

// toggle maps the single action key onto the status-appropriate
// transition.
func (m Model) toggle() {
	switch m.state.Status {
	case timer.StatusStopped:
		m.engine.Start()
	case timer.StatusRunning:
		m.engine.Pause()
	case timer.StatusPaused:
		m.engine.Resume()
	}
}

func (m *Model) refreshToday() {
	if m.log == nil {
		return
	}
	m.today = m.log.Today(time.Now())
}

// nextMode cycles focus -> short break -> long break -> focus.
func nextMode(m timer.Mode) timer.Mode {
	switch m {
	case timer.ModeFocus:
		return timer.ModeShortBreak
	case timer.ModeShortBreak:
		return timer.ModeLongBreak
	default:
		return timer.ModeFocus
	}
}
