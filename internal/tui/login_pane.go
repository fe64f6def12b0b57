package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// loginSubmitMsg asks the root model to log in with the entered credentials.
type loginSubmitMsg struct {
	username string
	password string
}

// LoginPaneModel is the credentials form shown while no session exists.
type LoginPaneModel struct {
	form     *huh.Form
	creds    *loginSubmitMsg // form bindings
	err      string
	busy     bool
	width    int
	height   int
}

// NewLoginPaneModel creates the login form.
func NewLoginPaneModel() LoginPaneModel {
	m := LoginPaneModel{creds: &loginSubmitMsg{}}
	m.buildForm()
	return m
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func (m *LoginPaneModel) buildForm() {
	m.creds.password = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("username").
				Title("Username").
				Value(&m.creds.username).
				Validate(required("Username")),

			huh.NewInput().
				Key("password").
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.creds.password).
				Validate(required("Password")),
		).Title("Sign in"),
	).WithShowHelp(false)
	if m.width > 0 {
		m.form.WithWidth(m.width - 8)
	}
}

// Init initializes the form.
func (m LoginPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update feeds the form and emits loginSubmitMsg once it completes.
func (m LoginPaneModel) Update(msg tea.Msg) (LoginPaneModel, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.busy = true
		m.err = ""
		creds := *m.creds
		return m, func() tea.Msg { return creds }
	}
	return m, cmd
}

// Failed shows the login error and resets the form.
func (m *LoginPaneModel) Failed(msg string) tea.Cmd {
	m.busy = false
	m.err = msg
	m.buildForm()
	return m.form.Init()
}

// Reset clears the form for a new session.
func (m *LoginPaneModel) Reset() tea.Cmd {
	m.busy = false
	m.err = ""
	m.creds.username = ""
	m.buildForm()
	return m.form.Init()
}

// View renders the login pane.
func (m LoginPaneModel) View() string {
	title := StyleTitle.Render("Automated Test Script Generator")

	content := m.form.View()
	if m.busy {
		content = StyleStatusPending.Render("Signing in...")
	}
	if m.err != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, StyleError.Render("✗ "+m.err), "", content)
	}

	body := StyleFocusedBorder.
		Padding(1, 2).
		Width(min(m.width-4, 60)).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, title, body)
}

// SetSize updates the pane dimensions.
func (m *LoginPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.form.WithWidth(min(w-8, 56))
}
