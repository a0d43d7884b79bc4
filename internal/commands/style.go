package commands

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#1D9EA3")
	colorWarning = lipgloss.Color("#F4D03F")
	colorAlert   = lipgloss.Color("#E74C3C")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	alertStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAlert)
	bannerStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(0, 2)
)
