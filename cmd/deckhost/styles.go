package main

import "github.com/charmbracelet/lipgloss"

var (
	keyStyle       = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8"))
	cursorKeyStyle = keyStyle.BorderForeground(lipgloss.Color("6")) // cyan
	emptyKeyStyle  = keyStyle.Foreground(lipgloss.Color("8")).BorderStyle(lipgloss.HiddenBorder())

	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2")) // green
	alertStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")) // red

	headerStyle = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	diffStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3")) // yellow
)

// keyWidth is the inner width of one key cell.
const keyWidth = 10
