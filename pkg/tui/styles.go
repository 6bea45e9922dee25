package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"gitlab.com/tinyland/lab/focus-pulse/pkg/timer"
)

// palette holds the per-mode accent colors plus shared chrome colors,
// chosen for the detected terminal background.
type palette struct {
	focus      lipgloss.Color
	shortBreak lipgloss.Color
	longBreak  lipgloss.Color
	dim        lipgloss.Color
	text       lipgloss.Color
}

// newPalette picks colors based on the terminal background.
func newPalette() palette {
	if termenv.HasDarkBackground() {
		return palette{
			focus:      lipgloss.Color("#E06C75"),
			shortBreak: lipgloss.Color("#61AFEF"),
			longBreak:  lipgloss.Color("#98C379"),
			dim:        lipgloss.Color("#5C6370"),
			text:       lipgloss.Color("#ABB2BF"),
		}
	}
	return palette{
		focus:      lipgloss.Color("#C0392B"),
		shortBreak: lipgloss.Color("#2471A3"),
		longBreak:  lipgloss.Color("#1E8449"),
		dim:        lipgloss.Color("#95A5A6"),
		text:       lipgloss.Color("#2C3E50"),
	}
}

// accent returns the accent color for a mode.
func (p palette) accent(m timer.Mode) lipgloss.Color {
	switch m {
	case timer.ModeShortBreak:
		return p.shortBreak
	case timer.ModeLongBreak:
		return p.longBreak
	default:
		return p.focus
	}
}

// styles are the lipgloss styles derived from the palette.
type styles struct {
	tabActive   lipgloss.Style
	tabInactive lipgloss.Style
	clock       lipgloss.Style
	status      lipgloss.Style
	button      lipgloss.Style
	footer      lipgloss.Style
	frame       lipgloss.Style
}

func newStyles(p palette) styles {
	return styles{
		tabActive: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 2).
			Border(lipgloss.RoundedBorder(), true),
		tabInactive: lipgloss.NewStyle().
			Foreground(p.dim).
			Padding(0, 2).
			Border(lipgloss.HiddenBorder(), true),
		clock: lipgloss.NewStyle().
			Bold(true),
		status: lipgloss.NewStyle().
			Foreground(p.dim).
			Italic(true),
		button: lipgloss.NewStyle().
			Padding(0, 3).
			Border(lipgloss.RoundedBorder(), true),
		footer: lipgloss.NewStyle().
			Foreground(p.dim),
		frame: lipgloss.NewStyle().
			Padding(1, 2),
	}
}
