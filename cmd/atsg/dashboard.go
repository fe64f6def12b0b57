package main

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/testscriptgen/internal/session"
	"github.com/aristath/testscriptgen/internal/tui"
	"github.com/aristath/testscriptgen/internal/workflow"
)

func runDashboard(ctx context.Context, flags *globalFlags) error {
	a, err := openApp(ctx, flags, true)
	if err != nil {
		return err
	}
	defer a.Close()

	// Forms and list calls live no longer than the dashboard.
	viewCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	list := a.taskList()
	defer list.Close()
	nav := workflow.NewNavigator(viewCtx, a.formDeps(), session.NewSelection())
	defer nav.BackToList()

	model := tui.New(tui.Deps{
		Ctx:      viewCtx,
		Auth:     a.auth,
		List:     list,
		Nav:      nav,
		Settings: a.settings,
		Bus:      a.bus,
		Log:      a.log.WithField("component", "tui"),
	})

	// Start Bubble Tea program in a goroutine so we can handle shutdown
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal exit (user pressed 'q')
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("dashboard: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("shutdown signal received, cleaning up")
		cancel()
		p.Quit()

		select {
		case err := <-errChan:
			if err != nil {
				a.log.WithError(err).Debug("dashboard exit")
			}
		case <-time.After(10 * time.Second):
			a.log.Warn("shutdown timeout exceeded, forcing exit")
		}
	}

	a.log.Info("dashboard closed")
	return nil
}
