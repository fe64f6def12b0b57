package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/logging"
	"github.com/aristath/testscriptgen/internal/session"
	"github.com/aristath/testscriptgen/internal/settings"
	"github.com/aristath/testscriptgen/internal/workflow"
)

// Screen identifies what the dashboard is showing.
type Screen int

const (
	ScreenStarting Screen = iota
	ScreenLogin
	ScreenList
	ScreenTask
)

// Deps are the session objects the dashboard drives.
type Deps struct {
	Ctx      context.Context
	Auth     *session.Auth
	List     *workflow.TaskList
	Nav      *workflow.Navigator
	Settings *settings.Store
	Bus      *events.Bus
	Log      *logrus.Entry
}

// Messages produced by background calls.
type (
	bootstrapMsg struct {
		user *api.User
		err  error
	}
	loginResultMsg struct {
		user *api.User
		err  error
	}
	listOpMsg struct {
		err error
	}
)

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	deps        Deps
	screen      Screen
	loginPane   LoginPaneModel
	listPane    ListPaneModel
	summaryPane SummaryPaneModel
	taskPane    *TaskPaneModel
	eventSub    *events.Subscription
	width       int
	height      int
	quitting    bool
}

// New creates the dashboard model.
// It subscribes to all events from the event bus using SubscribeAll.
func New(deps Deps) Model {
	if deps.Ctx == nil {
		deps.Ctx = context.Background()
	}
	if deps.Log == nil {
		deps.Log = logging.Component("tui")
	}
	return Model{
		deps:        deps,
		screen:      ScreenStarting,
		loginPane:   NewLoginPaneModel(),
		listPane:    NewListPaneModel(),
		summaryPane: NewSummaryPaneModel(),
		eventSub:    deps.Bus.SubscribeAll(256),
	}
}

// Init restores the session and starts listening for events.
func (m Model) Init() tea.Cmd {
	ctx, auth, list := m.deps.Ctx, m.deps.Auth, m.deps.List
	return tea.Batch(
		waitForEvent(m.eventSub),
		func() tea.Msg {
			user, err := workflow.Bootstrap(ctx, auth, list)
			return bootstrapMsg{user: user, err: err}
		},
	)
}

// waitForEvent returns a command that waits for the next event from the event bus.
func waitForEvent(sub *events.Subscription) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub.C
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		return m, nil

	case events.Event:
		cmd := m.handleEvent(msg)
		return m, tea.Batch(cmd, waitForEvent(m.eventSub))

	case bootstrapMsg:
		if m.deps.Auth.Authenticated() {
			m.enterList()
			return m, nil
		}
		m.screen = ScreenLogin
		if msg.err != nil && !errors.Is(msg.err, session.ErrNotAuthenticated) && !api.IsUnauthorized(msg.err) {
			m.deps.Log.WithError(msg.err).Warn("session restore failed")
		}
		return m, m.loginPane.Reset()

	case loginSubmitMsg:
		ctx, auth := m.deps.Ctx, m.deps.Auth
		return m, func() tea.Msg {
			user, err := auth.Login(ctx, msg.username, msg.password)
			return loginResultMsg{user: user, err: err}
		}

	case loginResultMsg:
		if msg.err != nil {
			return m, m.loginPane.Failed(errorText(msg.err))
		}
		m.enterList()
		return m, m.listCall(func(ctx context.Context) error { return m.deps.List.Refresh(ctx) })

	case refreshListMsg:
		return m, m.listCall(func(ctx context.Context) error { return m.deps.List.Refresh(ctx) })

	case createTaskMsg:
		return m, m.listCall(func(ctx context.Context) error {
			_, err := m.deps.List.Create(ctx, msg.name)
			return err
		})

	case deleteTaskMsg:
		return m, m.listCall(func(ctx context.Context) error { return m.deps.List.Delete(ctx, msg.id) })

	case listOpMsg:
		return m, m.checkSession(msg.err)

	case openTaskMsg:
		form := m.deps.Nav.OpenTask(msg.id)
		pane := NewTaskPaneModel(form, m.deps.Settings)
		m.taskPane = &pane
		m.screen = ScreenTask
		m.computeLayout()
		return m, pane.Init()

	case backToListMsg:
		m.closeTask()
		return m, nil

	case taskOpMsg:
		if m.taskPane == nil || m.taskPane.ID() != msg.id {
			return m, nil
		}
		if errors.Is(msg.err, workflow.ErrClosed) {
			return m, nil
		}
		cmd := m.taskPane.Handle(msg)
		return m, tea.Batch(cmd, m.checkSession(msg.err))
	}

	return m.forward(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		return m.quit()
	}

	switch m.screen {
	case ScreenLogin:
		var cmd tea.Cmd
		m.loginPane, cmd = m.loginPane.Update(msg)
		return m, cmd

	case ScreenList:
		if !m.listPane.Modal() {
			switch msg.String() {
			case KeyQuit:
				return m.quit()
			case KeyLogout:
				m.closeTask()
				if err := m.deps.Auth.Logout(m.deps.Ctx); err != nil {
					m.deps.Log.WithError(err).Error("logout failed")
				}
				m.screen = ScreenLogin
				return m, m.loginPane.Reset()
			}
		}
		var cmd tea.Cmd
		m.listPane, cmd = m.listPane.Update(msg)
		return m, cmd

	case ScreenTask:
		if m.taskPane != nil {
			pane, cmd := m.taskPane.Update(msg)
			m.taskPane = &pane
			return m, cmd
		}
	}
	return m, nil
}

// forward passes non-key messages (form ticks, cursor blinks) to the active pane.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.screen {
	case ScreenLogin:
		m.loginPane, cmd = m.loginPane.Update(msg)
	case ScreenList:
		m.listPane, cmd = m.listPane.Update(msg)
	case ScreenTask:
		if m.taskPane != nil {
			pane, c := m.taskPane.Update(msg)
			m.taskPane = &pane
			cmd = c
		}
	}
	return m, cmd
}

func (m *Model) handleEvent(ev events.Event) tea.Cmd {
	var cmd tea.Cmd
	switch ev := ev.(type) {
	case events.TaskListChangedEvent:
		m.listPane.SetTasks(ev.Tasks)
		m.summaryPane.SetTasks(ev.Tasks)
	case events.ListBannerEvent:
		m.listPane.SetBanner(ev.Message)
	case events.AuthChangedEvent:
		if ev.User != nil {
			m.summaryPane.SetUser(ev.User.Username)
		} else if m.screen == ScreenList || m.screen == ScreenTask {
			m.closeTask()
			m.screen = ScreenLogin
			cmd = m.loginPane.Reset()
		}
	case events.TaskStatusEvent:
		m.deps.List.UpdateStatus(ev.ID, ev.Status)
	case events.TaskInitiatedEvent:
		if ev.Task != nil {
			m.deps.List.UpdateStatus(ev.ID, ev.Task.Status)
		}
	}

	if ev.Topic() == events.TopicTask && m.taskPane != nil && ev.TaskID() == m.taskPane.ID() {
		m.taskPane.Refresh()
	}
	return cmd
}

// listCall runs a task list operation in the background.
func (m Model) listCall(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.deps.Ctx
	return func() tea.Msg {
		return listOpMsg{err: fn(ctx)}
	}
}

// checkSession drops back to the login screen when the backend rejected the token.
func (m *Model) checkSession(err error) tea.Cmd {
	if err == nil || !m.deps.Auth.HandleUnauthorized(m.deps.Ctx, err) {
		return nil
	}
	m.closeTask()
	m.screen = ScreenLogin
	return m.loginPane.Reset()
}

func (m *Model) enterList() {
	m.screen = ScreenList
	if u := m.deps.Auth.User(); u != nil {
		m.summaryPane.SetUser(u.Username)
	}
	m.listPane.SetTasks(m.deps.List.Tasks())
	m.summaryPane.SetTasks(m.deps.List.Tasks())
	m.listPane.SetBanner(m.deps.List.Error())
	m.computeLayout()
}

func (m *Model) closeTask() {
	if m.taskPane == nil {
		return
	}
	m.deps.Nav.BackToList()
	m.taskPane = nil
	if m.screen == ScreenTask {
		m.screen = ScreenList
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.closeTask()
	m.deps.Bus.Unsubscribe(m.eventSub)
	m.quitting = true
	return m, tea.Quit
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var content, help string
	switch m.screen {
	case ScreenStarting:
		content = StyleStatusPending.Render("Restoring session...")
	case ScreenLogin:
		content = m.loginPane.View()
		help = StyleHelp.Render("enter: next field | ctrl+c: quit")
	case ScreenList:
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.listPane.View(), m.summaryPane.View())
		help = ListHelpView()
	case ScreenTask:
		if m.taskPane != nil {
			content = m.taskPane.View()
		}
		help = TaskHelpView()
	}

	return lipgloss.JoinVertical(lipgloss.Left, content, help)
}

// computeLayout calculates pane dimensions and updates all child models.
func (m *Model) computeLayout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	availableHeight := m.height - 1 // reserve 1 line for help bar
	leftWidth := (m.width * 65) / 100

	m.loginPane.SetSize(m.width, availableHeight)
	m.listPane.SetSize(leftWidth, availableHeight)
	m.summaryPane.SetSize(m.width-leftWidth, availableHeight)
	if m.taskPane != nil {
		m.taskPane.SetSize(m.width, availableHeight)
	}
}

// Screen returns the screen currently shown.
func (m Model) Screen() Screen {
	return m.screen
}

func errorText(err error) string {
	if _, ok := api.AsError(err); ok {
		return api.Message(err)
	}
	return err.Error()
}
