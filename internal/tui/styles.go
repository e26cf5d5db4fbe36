package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	selfNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	peerNameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	presenceStyle = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("8"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)
