package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/settings"
	"github.com/aristath/testscriptgen/internal/workflow"
)

// Tab identifies a task detail tab.
type Tab int

const (
	TabAgent Tab = iota
	TabBrowser
	TabRun
	tabCount
)

func (t Tab) String() string {
	switch t {
	case TabAgent:
		return "Agent Settings"
	case TabBrowser:
		return "Browser Settings"
	case TabRun:
		return "Run Agent"
	default:
		return "?"
	}
}

// Task form operations reported back through taskOpMsg.
const (
	opLoad        = "load"
	opSubmit      = "submit"
	opSaveAgent   = "save-agent"
	opSaveBrowser = "save-browser"
)

// taskOpMsg reports the end of a background call on the open task.
type taskOpMsg struct {
	id  int64
	op  string
	err error
}

// backToListMsg asks the root model to close the task.
type backToListMsg struct{}

// TaskPaneModel is the task detail view: header, tabs and output.
type TaskPaneModel struct {
	form     *workflow.TaskForm
	settings *settings.Store
	snap     workflow.Snapshot

	tab         Tab
	agentForm   *huh.Form
	browserForm *huh.Form
	runForm     *huh.Form
	agent       *agentFields
	browser     *browserFields
	run         *workflow.Fields

	notice   string // local validation message for a settings tab
	saveNote map[string]string
	viewport viewport.Model
	width    int
	height   int
}

// NewTaskPaneModel creates the pane for an opened task form.
func NewTaskPaneModel(form *workflow.TaskForm, store *settings.Store) TaskPaneModel {
	m := TaskPaneModel{
		form:     form,
		settings: store,
		snap:     form.Snapshot(),
		tab:      TabRun,
		agent:    &agentFields{},
		browser:  &browserFields{},
		run:      &workflow.Fields{},
		saveNote: map[string]string{},
		viewport: viewport.New(0, 0),
	}
	m.rebuildForms()
	return m
}

// ID returns the open task's id.
func (m TaskPaneModel) ID() int64 {
	return m.form.ID()
}

// Init starts loading the task.
func (m TaskPaneModel) Init() tea.Cmd {
	form := m.form
	return tea.Batch(m.activeForm().Init(), func() tea.Msg {
		return taskOpMsg{id: form.ID(), op: opLoad, err: form.Load()}
	})
}

func (m *TaskPaneModel) rebuildForms() {
	s := m.settings.Snapshot()
	*m.agent = agentFieldsFrom(s.Agent)
	*m.browser = browserFieldsFrom(s.Browser)
	*m.run = m.snap.Fields

	m.agentForm = buildAgentForm(m.agent)
	m.browserForm = buildBrowserForm(m.browser)
	m.runForm = buildRunForm(m.run)
	m.sizeForms()
}

func (m *TaskPaneModel) resetForm(tab Tab) tea.Cmd {
	switch tab {
	case TabAgent:
		*m.agent = agentFieldsFrom(m.settings.Snapshot().Agent)
		m.agentForm = buildAgentForm(m.agent)
	case TabBrowser:
		*m.browser = browserFieldsFrom(m.settings.Snapshot().Browser)
		m.browserForm = buildBrowserForm(m.browser)
	case TabRun:
		*m.run = m.form.Snapshot().Fields
		m.runForm = buildRunForm(m.run)
	}
	m.sizeForms()
	return m.activeForm().Init()
}

func (m TaskPaneModel) activeForm() *huh.Form {
	switch m.tab {
	case TabAgent:
		return m.agentForm
	case TabBrowser:
		return m.browserForm
	default:
		return m.runForm
	}
}

func (m *TaskPaneModel) setActiveForm(f *huh.Form) {
	switch m.tab {
	case TabAgent:
		m.agentForm = f
	case TabBrowser:
		m.browserForm = f
	default:
		m.runForm = f
	}
}

// Refresh re-reads the form state after an event or a finished call.
func (m *TaskPaneModel) Refresh() {
	m.snap = m.form.Snapshot()
	m.viewport.SetContent(m.output())
}

// Handle processes the end of a background call.
func (m *TaskPaneModel) Handle(msg taskOpMsg) tea.Cmd {
	m.Refresh()
	switch msg.op {
	case opLoad:
		if msg.err == nil {
			m.rebuildForms()
			return m.activeForm().Init()
		}
	case opSaveAgent, opSaveBrowser:
		section := workflow.SectionAgent
		if msg.op == opSaveBrowser {
			section = workflow.SectionBrowser
		}
		if msg.err != nil {
			m.saveNote[section] = StyleError.Render("✗ " + errorText(msg.err))
		} else {
			m.saveNote[section] = StyleSuccess.Render("✓ Settings saved")
		}
	}
	return nil
}

// Update handles messages for the task pane.
func (m TaskPaneModel) Update(msg tea.Msg) (TaskPaneModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case KeyEsc:
			return m, func() tea.Msg { return backToListMsg{} }
		case KeyNextTab:
			m.tab = (m.tab + 1) % tabCount
			m.notice = ""
			return m, m.activeForm().Init()
		case KeyPrevTab:
			m.tab = (m.tab + tabCount - 1) % tabCount
			m.notice = ""
			return m, m.activeForm().Init()
		case KeyClear:
			m.form.Clear()
			m.notice = ""
			m.saveNote = map[string]string{}
			m.Refresh()
			return m, nil
		case KeyPageUp, KeyPageDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}

	if m.snap.Phase != workflow.PhaseReady {
		return m, nil
	}

	form, cmd := m.activeForm().Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.setActiveForm(f)
	}

	switch m.activeForm().State {
	case huh.StateCompleted:
		return m, tea.Batch(cmd, m.complete())
	case huh.StateAborted:
		return m, m.resetForm(m.tab)
	}
	return m, cmd
}

// complete applies a finished tab form and starts the matching call.
func (m *TaskPaneModel) complete() tea.Cmd {
	form := m.form
	id := form.ID()
	tab := m.tab
	m.notice = ""

	var run tea.Cmd
	switch tab {
	case TabAgent:
		if err := m.settings.UpdateAgent(m.agent.patch()); err != nil {
			m.notice = err.Error()
			return m.resetForm(tab)
		}
		m.saveNote[workflow.SectionAgent] = StyleStatusPending.Render("Saving...")
		run = func() tea.Msg { return taskOpMsg{id: id, op: opSaveAgent, err: form.SaveAgentSettings()} }
	case TabBrowser:
		if err := m.settings.UpdateBrowser(m.browser.patch()); err != nil {
			m.notice = err.Error()
			return m.resetForm(tab)
		}
		m.saveNote[workflow.SectionBrowser] = StyleStatusPending.Render("Saving...")
		run = func() tea.Msg { return taskOpMsg{id: id, op: opSaveBrowser, err: form.SaveBrowserSettings()} }
	case TabRun:
		form.SetFields(*m.run)
		run = func() tea.Msg { return taskOpMsg{id: id, op: opSubmit, err: form.Submit()} }
	}
	return tea.Batch(m.resetForm(tab), run)
}

// View renders the task pane.
func (m TaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	header := m.headerView()

	switch m.snap.Phase {
	case workflow.PhaseLoading:
		return lipgloss.JoinVertical(lipgloss.Left, header, StyleStatusPending.Render("Loading task..."))
	case workflow.PhaseFailed:
		return lipgloss.JoinVertical(lipgloss.Left, header, StyleError.Render("✗ "+m.snap.LoadError))
	}

	tabs := make([]string, 0, tabCount)
	for t := Tab(0); t < tabCount; t++ {
		if t == m.tab {
			tabs = append(tabs, StyleActiveTab.Render(t.String()))
		} else {
			tabs = append(tabs, StyleTab.Render(t.String()))
		}
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	leftWidth, rightWidth, bodyHeight := m.layout()

	left := StyleFocusedBorder.
		Width(leftWidth - 2).
		Height(bodyHeight - 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, m.bannerView(), m.activeForm().View()))

	right := StyleUnfocusedBorder.
		Width(rightWidth - 2).
		Height(bodyHeight - 2).
		Render(m.viewport.View())

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, header, tabBar, body)
}

func (m TaskPaneModel) headerView() string {
	h := workflow.TaskHeader(m.snap.Task)
	name := h.Name
	if name == "" {
		name = fmt.Sprintf("Task #%d", m.snap.TaskID)
	}

	line := StyleTitle.Render(name)
	if h.Status != "" {
		line += " " + StatusText(h.Status)
	}
	if m.snap.Watching {
		line += StyleStatusPending.Render("  (watching)")
	}
	meta := StyleHelp.Render(fmt.Sprintf(" Created: %s | Initiated: %s", h.Created, h.Initiated))
	return lipgloss.JoinVertical(lipgloss.Left, line, meta)
}

func (m TaskPaneModel) bannerView() string {
	var lines []string
	if m.notice != "" {
		lines = append(lines, StyleError.Render("✗ "+m.notice))
	}

	switch m.tab {
	case TabAgent:
		if note := m.saveNote[workflow.SectionAgent]; note != "" {
			lines = append(lines, note)
		}
		if s := m.settings.Snapshot(); !s.Agent.Provider.UsesContextLength() {
			lines = append(lines, StyleHelp.Render(fmt.Sprintf("Context length is only read by ollama; %s ignores it.", s.Agent.Provider)))
		}
	case TabBrowser:
		if note := m.saveNote[workflow.SectionBrowser]; note != "" {
			lines = append(lines, note)
		}
	case TabRun:
		if m.snap.Submit == workflow.SubmitInFlight {
			lines = append(lines, StyleStatusRunning.Render("Submitting..."))
		}
		if m.snap.Warning != "" {
			lines = append(lines, StyleWarning.Render("! "+m.snap.Warning))
		}
		if m.snap.SubmitError != "" {
			lines = append(lines, StyleError.Render("✗ "+m.snap.SubmitError))
		}
		if m.snap.Success != "" {
			lines = append(lines, StyleSuccess.Render("✓ "+m.snap.Success))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// output is the right-hand viewport content: result, last response and history.
func (m TaskPaneModel) output() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Result"))
	b.WriteString("\n")
	if r := m.snap.Result; r != nil {
		fmt.Fprintf(&b, "Recording: %s\nScript:    %s\n", r.GIFURL, r.ScriptURL)
	} else {
		b.WriteString(StyleStatusPending.Render("No result yet"))
		b.WriteString("\n")
	}

	if m.snap.Payload != "" {
		b.WriteString("\n")
		b.WriteString(StyleTitle.Render("Response"))
		b.WriteString("\n")
		b.WriteString(m.snap.Payload)
		b.WriteString("\n")
	}

	if len(m.snap.History) > 0 {
		b.WriteString("\n")
		b.WriteString(StyleTitle.Render("Submissions"))
		b.WriteString("\n")
		for _, sub := range m.snap.History {
			fmt.Fprintf(&b, "%s  %s\n", sub.CreatedAt.Local().Format("2006-01-02 15:04:05"), StatusText(api.TaskStatus(sub.Status)))
		}
	}
	return b.String()
}

func (m TaskPaneModel) layout() (left, right, body int) {
	left = (m.width * 60) / 100
	right = m.width - left
	body = m.height - 3 // header lines and tab bar
	return left, right, max(body, 5)
}

func (m *TaskPaneModel) sizeForms() {
	left, _, body := m.layout()
	for _, f := range []*huh.Form{m.agentForm, m.browserForm, m.runForm} {
		if f != nil && left > 8 {
			f.WithWidth(left - 6).WithHeight(max(body-6, 5))
		}
	}
}

// SetSize updates the pane dimensions.
func (m *TaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	_, right, body := m.layout()
	m.viewport.Width = max(right-4, 10)
	m.viewport.Height = max(body-2, 3)
	m.sizeForms()
	m.viewport.SetContent(m.output())
}
