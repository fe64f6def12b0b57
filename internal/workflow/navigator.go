package workflow

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/session"
)

// Navigator moves between the task list and a single open task. It owns the
// open form and keeps the selection and settings stores consistent with it.
type Navigator struct {
	parent    context.Context
	deps      FormDeps
	selection *session.Selection

	mu   sync.Mutex
	form *TaskForm
}

// NewNavigator creates a navigator. Forms it opens live no longer than parent.
func NewNavigator(parent context.Context, deps FormDeps, selection *session.Selection) *Navigator {
	deps.fill()
	return &Navigator{parent: parent, deps: deps, selection: selection}
}

// OpenTask selects a task and returns a new form for it, closing any form
// that was open. The caller runs Load.
func (n *Navigator) OpenTask(id int64) *TaskForm {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.form != nil {
		n.form.Close()
	}
	n.selection.Select(id)
	n.form = NewTaskForm(n.parent, id, n.deps)
	return n.form
}

// BackToList closes the open form, clears the selection and resets the
// settings to their defaults.
func (n *Navigator) BackToList() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.form != nil {
		n.form.Close()
		n.form = nil
	}
	n.selection.Clear()
	n.deps.Settings.Reset()
}

// Current returns the open form, or nil when the list is showing.
func (n *Navigator) Current() *TaskForm {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.form
}

// Restorer resumes a persisted login.
type Restorer interface {
	Restore(ctx context.Context) (*api.User, error)
}

// Bootstrap restores the session and loads the task list concurrently.
// The first failure cancels the other call.
func Bootstrap(ctx context.Context, auth Restorer, list *TaskList) (*api.User, error) {
	g, gctx := errgroup.WithContext(ctx)

	var user *api.User
	g.Go(func() error {
		u, err := auth.Restore(gctx)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		return list.Refresh(gctx)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return user, nil
}
