package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/testscriptgen/internal/api"
)

// Requests the list pane hands to the root model.
type (
	createTaskMsg  struct{ name string }
	deleteTaskMsg  struct{ id int64 }
	openTaskMsg    struct{ id int64 }
	refreshListMsg struct{}
)

// promptInput holds the prompt bindings outside the model value.
type promptInput struct {
	name    string
	confirm bool
}

type listMode int

const (
	listBrowsing listMode = iota
	listCreating
	listConfirmDelete
)

// ListPaneModel shows the user's tasks with their status.
type ListPaneModel struct {
	tasks       []api.TaskSummary
	loaded      bool
	banner      string
	selectedIdx int
	mode        listMode
	prompt      *huh.Form
	input       *promptInput
	width       int
	height      int
	focused     bool
}

// NewListPaneModel creates an empty list pane.
func NewListPaneModel() ListPaneModel {
	return ListPaneModel{focused: true, input: &promptInput{}}
}

// SetTasks replaces the displayed tasks, keeping the selection in range.
func (m *ListPaneModel) SetTasks(tasks []api.TaskSummary) {
	m.tasks = tasks
	m.loaded = true
	if m.selectedIdx >= len(tasks) {
		m.selectedIdx = max(0, len(tasks)-1)
	}
}

// SetBanner sets or clears the error banner.
func (m *ListPaneModel) SetBanner(msg string) {
	m.banner = msg
}

// Modal reports whether a prompt owns the keyboard.
func (m ListPaneModel) Modal() bool {
	return m.mode != listBrowsing
}

func (m ListPaneModel) selected() (api.TaskSummary, bool) {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.tasks) {
		return m.tasks[m.selectedIdx], true
	}
	return api.TaskSummary{}, false
}

// Update handles messages for the list pane.
func (m ListPaneModel) Update(msg tea.Msg) (ListPaneModel, tea.Cmd) {
	if m.mode != listBrowsing {
		return m.updatePrompt(msg)
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok || !m.focused {
		return m, nil
	}

	switch key.String() {
	case KeyJ, KeyDown:
		if m.selectedIdx < len(m.tasks)-1 {
			m.selectedIdx++
		}
	case KeyK, KeyUp:
		if m.selectedIdx > 0 {
			m.selectedIdx--
		}
	case KeyEnter:
		if t, ok := m.selected(); ok {
			id := t.ID
			return m, func() tea.Msg { return openTaskMsg{id: id} }
		}
	case KeyRefresh:
		return m, func() tea.Msg { return refreshListMsg{} }
	case KeyNew:
		m.mode = listCreating
		m.input.name = ""
		m.prompt = huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("New task").
				Placeholder("Task name").
				Value(&m.input.name),
		)).WithShowHelp(false)
		return m, m.prompt.Init()
	case KeyDelete:
		t, ok := m.selected()
		if !ok {
			break
		}
		m.mode = listConfirmDelete
		m.input.confirm = false
		m.prompt = huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete task %q?", t.Name)).
				Affirmative("Delete").
				Negative("Cancel").
				Value(&m.input.confirm),
		)).WithShowHelp(false)
		return m, m.prompt.Init()
	}
	return m, nil
}

func (m ListPaneModel) updatePrompt(msg tea.Msg) (ListPaneModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.mode = listBrowsing
		m.prompt = nil
		return m, nil
	}

	form, cmd := m.prompt.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.prompt = f
	}

	switch m.prompt.State {
	case huh.StateCompleted:
		mode := m.mode
		m.mode = listBrowsing
		m.prompt = nil
		if mode == listCreating {
			name := m.input.name
			return m, func() tea.Msg { return createTaskMsg{name: name} }
		}
		if t, ok := m.selected(); ok && m.input.confirm {
			id := t.ID
			return m, func() tea.Msg { return deleteTaskMsg{id: id} }
		}
		return m, nil
	case huh.StateAborted:
		m.mode = listBrowsing
		m.prompt = nil
		return m, nil
	}
	return m, cmd
}

// View renders the list pane.
func (m ListPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleTitle.Render("Tasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.banner != "" {
		b.WriteString(StyleError.Render("✗ " + m.banner))
		b.WriteString("\n\n")
	}

	switch {
	case !m.loaded:
		b.WriteString(StyleStatusPending.Render("Loading..."))
	case len(m.tasks) == 0:
		b.WriteString(StyleStatusPending.Render("No tasks yet. Press n to create one."))
	default:
		nameWidth := max(10, m.width-24)
		for i, t := range m.tasks {
			name := truncate(t.Name, nameWidth)
			line := fmt.Sprintf("%s #%-4d %-*s %s", StatusIcon(t.Status), t.ID, nameWidth, name, t.Status)
			if i == m.selectedIdx {
				line = StyleSelected.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	if m.prompt != nil {
		b.WriteString("\n")
		b.WriteString(m.prompt.View())
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ListPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ListPaneModel) SetFocused(focused bool) {
	m.focused = focused
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:max(0, width-3)]) + "..."
}
