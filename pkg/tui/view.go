package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

const (
	zoneToggle = "btn-toggle"
	zoneReset  = "btn-reset"
)

// zoneTab names the clickable zone for a mode tab.
func zoneTab(m timer.Mode) string { return "tab-" + m.String() }

func (m Model) View() string {
	accent := m.pal.accent(m.state.Mode)

	sections := []string{
		m.viewTabs(),
		"",
		m.viewClock(accent),
		m.viewStatus(),
		"",
		m.viewProgress(),
		"",
		m.viewButtons(),
		m.viewSessions(accent),
		"",
		m.sty.footer.Render(m.viewFooter()),
		m.help.View(m.keys),
	}

	body := lipgloss.JoinVertical(lipgloss.Center, sections...)
	frame := m.sty.frame.Render(body)
	if m.width > 0 {
		frame = lipgloss.Place(m.width, lipgloss.Height(frame), lipgloss.Center, lipgloss.Top, frame)
	}
	// Scan registers the marked zones against final screen coordinates.
	return m.zones.Scan(frame)
}

func (m Model) viewTabs() string {
	var tabs []string
	for _, mode := range []timer.Mode{timer.ModeFocus, timer.ModeShortBreak, timer.ModeLongBreak} {
		style := m.sty.tabInactive
		if mode == m.state.Mode {
			style = m.sty.tabActive.BorderForeground(m.pal.accent(mode)).Foreground(m.pal.accent(mode))
		}
		tabs = append(tabs, m.zones.Mark(zoneTab(mode), style.Render(mode.Title())))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, tabs...)
}

func (m Model) viewClock(accent lipgloss.Color) string {
	return m.sty.clock.Foreground(accent).Render(renderClock(m.state.Remaining))
}

func (m Model) viewStatus() string {
	var label string
	switch m.state.Status {
	case timer.StatusRunning:
		label = "running"
	case timer.StatusPaused:
		label = "paused"
	default:
		label = "ready"
	}
	return m.sty.status.Render(label)
}

func (m Model) viewProgress() string {
	total := m.settings.Duration(m.state.Mode)
	if total <= 0 {
		return ""
	}
	done := float64(total-m.state.Remaining) / float64(total)
	return m.bar.ViewAs(done)
}

func (m Model) viewButtons() string {
	label := "Start"
	switch m.state.Status {
	case timer.StatusRunning:
		label = "Pause"
	case timer.StatusPaused:
		label = "Resume"
	}
	toggle := m.zones.Mark(zoneToggle, m.sty.button.Render(label))
	reset := m.zones.Mark(zoneReset, m.sty.button.Render("Reset"))
	return lipgloss.JoinHorizontal(lipgloss.Center, toggle, " ", reset)
}

// viewSessions draws one dot per focus session in the current cycle,
// filled up to the completed count.
func (m Model) viewSessions(accent lipgloss.Color) string {
	cadence := m.settings.SessionsUntilLongBreak
	if cadence <= 0 {
		return ""
	}
	inCycle := m.state.SessionCount % cadence
	if inCycle == 0 && m.state.SessionCount > 0 {
		inCycle = cadence
	}

	filled := lipgloss.NewStyle().Foreground(accent)
	empty := lipgloss.NewStyle().Foreground(m.pal.dim)

	var b strings.Builder
	for i := 0; i < cadence; i++ {
		if i > 0 {
			b.WriteString(" ")
		}
		if i < inCycle {
			b.WriteString(filled.Render("●"))
		} else {
			b.WriteString(empty.Render("○"))
		}
	}
	return b.String()
}

func (m Model) viewFooter() string {
	parts := []string{fmt.Sprintf("session %d", m.state.SessionCount+1)}
	if m.log != nil {
		parts = append(parts, fmt.Sprintf("today: %d focus sessions, %d min",
			m.today.FocusSessions, m.today.FocusMinutes))
	}
	if m.notifier != nil {
		parts = append(parts, fmt.Sprintf("notifications %s", m.notifier.Permission()))
	}
	return strings.Join(parts, "  ·  ")
}

// clockFont is a 3x5 block font for the large countdown digits.
var clockFont = map[rune][5]string{
	'0': {"███", "█ █", "█ █", "█ █", "███"},
	'1': {"  █", "  █", "  █", "  █", "  █"},
	'2': {"███", "  █", "███", "█  ", "███"},
	'3': {"███", "  █", "███", "  █", "███"},
	'4': {"█ █", "█ █", "███", "  █", "  █"},
	'5': {"███", "█  ", "███", "  █", "███"},
	'6': {"███", "█  ", "███", "█ █", "███"},
	'7': {"███", "  █", "  █", "  █", "  █"},
	'8': {"███", "█ █", "███", "█ █", "███"},
	'9': {"███", "█ █", "███", "  █", "███"},
	':': {" ", "█", " ", "█", " "},
}

// renderClock draws remaining as a large MM:SS figure.
func renderClock(remaining time.Duration) string {
	text := formatClock(remaining)

	rows := make([]string, 5)
	for i, r := range text {
		glyph, ok := clockFont[r]
		if !ok {
			continue
		}
		for row := 0; row < 5; row++ {
			if i > 0 {
				rows[row] += " "
			}
			rows[row] += glyph[row]
		}
	}
	return strings.Join(rows, "\n")
}

// formatClock renders a duration as MM:SS, minutes running past 99 if
// a custom duration demands it.
func formatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
