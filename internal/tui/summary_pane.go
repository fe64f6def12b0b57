package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/testscriptgen/internal/api"
)

// SummaryPaneModel shows task counts per status with a progress bar.
type SummaryPaneModel struct {
	total     int
	created   int
	running   int
	completed int
	failed    int
	user      string
	width     int
	height    int
}

// NewSummaryPaneModel creates an empty summary pane.
func NewSummaryPaneModel() SummaryPaneModel {
	return SummaryPaneModel{}
}

// SetTasks recounts the statuses.
func (m *SummaryPaneModel) SetTasks(tasks []api.TaskSummary) {
	m.total = len(tasks)
	m.created, m.running, m.completed, m.failed = 0, 0, 0, 0
	for _, t := range tasks {
		switch t.Status {
		case api.StatusRunning:
			m.running++
		case api.StatusCompleted:
			m.completed++
		case api.StatusFailed:
			m.failed++
		default:
			m.created++
		}
	}
}

// SetUser sets the signed-in username.
func (m *SummaryPaneModel) SetUser(name string) {
	m.user = name
}

// View renders the summary pane.
func (m SummaryPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Overview")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.user != "" {
		b.WriteString(fmt.Sprintf("Signed in as %s\n\n", m.user))
	}

	b.WriteString(fmt.Sprintf("Total:     %d\n", m.total))
	b.WriteString(fmt.Sprintf("Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.completed))))
	b.WriteString(fmt.Sprintf("Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running))))
	b.WriteString(fmt.Sprintf("Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed))))
	b.WriteString(fmt.Sprintf("Created:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.created))))

	b.WriteString("\n")

	if m.total > 0 {
		barWidth := min(m.width-14, 40)
		completedWidth := (m.completed * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		createdWidth := barWidth - completedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, createdWidth)))

		b.WriteString(fmt.Sprintf("[%s]  %d/%d\n", bar, m.completed, m.total))
	}

	return StyleUnfocusedBorder.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *SummaryPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}
