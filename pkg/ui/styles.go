package ui

import "github.com/charmbracelet/lipgloss"

var (
	cyan    = lipgloss.Color("#00FFFF")
	magenta = lipgloss.Color("#FF00FF")
	green   = lipgloss.Color("#39FF14")
	yellow  = lipgloss.Color("#FFFF00")
	red     = lipgloss.Color("#FF3131")
	dim     = lipgloss.Color("#B0B0B0")

	titleStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Bold(true)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(magenta).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(cyan).
			Width(18)

	valueStyle = lipgloss.NewStyle().
			Foreground(yellow)

	successStyle = lipgloss.NewStyle().
			Foreground(green).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(red).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(yellow).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(dim)

	barFilledStyle = lipgloss.NewStyle().Foreground(green)
	barEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
)
