package tui

// Keybinding constants
const (
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
	KeyEnter    = "enter"
	KeyEsc      = "esc"
	KeyNew      = "n"
	KeyDelete   = "d"
	KeyRefresh  = "r"
	KeyLogout   = "L"
	KeyNextTab  = "ctrl+right"
	KeyPrevTab  = "ctrl+left"
	KeyClear    = "ctrl+x"
	KeyPageUp   = "pgup"
	KeyPageDown = "pgdown"
)

// ListHelpView returns the help bar for the task list.
func ListHelpView() string {
	return StyleHelp.Render("j/k: move | enter: open | n: new task | d: delete | r: refresh | L: logout | q: quit")
}

// TaskHelpView returns the help bar for the task detail view.
func TaskHelpView() string {
	return StyleHelp.Render("ctrl+←/→: switch tab | enter: save / run | ctrl+x: clear | pgup/pgdn: scroll output | esc: back to list")
}
