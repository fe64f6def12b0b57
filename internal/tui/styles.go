package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/testscriptgen/internal/api"
)

// Border styles
var (
	StyleFocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))

	StyleUnfocusedBorder = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))
)

// Status styles
var (
	StyleStatusRunning = lipgloss.NewStyle().
				Foreground(lipgloss.Color("yellow")).
				Bold(true)

	StyleStatusComplete = lipgloss.NewStyle().
				Foreground(lipgloss.Color("green")).
				Bold(true)

	StyleStatusFailed = lipgloss.NewStyle().
				Foreground(lipgloss.Color("red")).
				Bold(true)

	StyleStatusPending = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240"))
)

// Banner styles
var (
	StyleSuccess = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")).
			Bold(true)

	StyleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	StyleWarning = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))
)

// UI element styles
var (
	StyleTitle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	StyleHelp = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	StyleSelected = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0"))

	StyleActiveTab = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Underline(true).
			Padding(0, 1)

	StyleTab = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Padding(0, 1)
)

// StatusIcon returns a styled status indicator.
func StatusIcon(status api.TaskStatus) string {
	switch status {
	case api.StatusRunning:
		return StyleStatusRunning.Render("●")
	case api.StatusCompleted:
		return StyleStatusComplete.Render("✓")
	case api.StatusFailed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

// StatusText renders the status name in its colour.
func StatusText(status api.TaskStatus) string {
	switch status {
	case api.StatusRunning:
		return StyleStatusRunning.Render(string(status))
	case api.StatusCompleted:
		return StyleStatusComplete.Render(string(status))
	case api.StatusFailed:
		return StyleStatusFailed.Render(string(status))
	default:
		return StyleStatusPending.Render(string(status))
	}
}
