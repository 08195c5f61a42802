package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent      = lipgloss.Color("#8BC34A")
	destructive = lipgloss.Color("#e53935")
	warning     = lipgloss.Color("#FFC107")
	muted       = lipgloss.Color("#6b7280")

	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(accent)
	metaStyle     = lipgloss.NewStyle().Foreground(muted)
	promptStyle   = lipgloss.NewStyle().Bold(true).MarginTop(1).MarginBottom(1)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(accent)
	correctStyle  = lipgloss.NewStyle().Foreground(accent)
	wrongStyle    = lipgloss.NewStyle().Foreground(destructive)
	helpStyle     = lipgloss.NewStyle().Foreground(muted).MarginTop(1)
	errorStyle    = lipgloss.NewStyle().Foreground(destructive).Border(lipgloss.RoundedBorder()).BorderForeground(destructive).Padding(0, 1)
	dialogStyle   = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(warning).Padding(0, 2)
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accent).Padding(1, 2)
)
