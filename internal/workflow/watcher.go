package workflow

import (
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
)

var errStillRunning = errors.New("task still running")

// startWatch polls the task in the background until it reaches a terminal
// status or the form closes. At most one watcher runs per form.
func (f *TaskForm) startWatch() {
	f.mu.Lock()
	if f.closed || f.watching {
		f.mu.Unlock()
		return
	}
	f.watching = true
	f.state.Watching = true
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		defer func() {
			f.mu.Lock()
			f.watching = false
			f.state.Watching = false
			f.mu.Unlock()
		}()
		f.watch()
	}()
}

func (f *TaskForm) watch() {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.deps.Timings.PollInitial
	policy.MaxInterval = f.deps.Timings.PollMax
	policy.MaxElapsedTime = 0

	operation := func() error {
		task, err := f.deps.API.GetTask(f.ctx, f.id)
		if err != nil {
			if f.ctx.Err() != nil {
				return backoff.Permanent(f.ctx.Err())
			}
			// The task is gone or we lost access; polling won't fix that.
			if apiErr, ok := api.AsError(err); ok && apiErr.Kind == api.KindServer && apiErr.Status < http.StatusInternalServerError {
				return backoff.Permanent(err)
			}
			return err
		}
		if f.observe(task) {
			return nil
		}
		return errStillRunning
	}

	notify := func(err error, wait time.Duration) {
		if !errors.Is(err, errStillRunning) {
			f.deps.Log.WithError(err).WithField("task_id", f.id).Debug("status poll failed, retrying")
		}
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(policy, f.ctx), notify)
	if err != nil && f.ctx.Err() == nil {
		f.deps.Log.WithError(err).WithField("task_id", f.id).Warn("stopped watching task status")
	}
}

// observe records a freshly fetched task and reports whether it is terminal.
func (f *TaskForm) observe(task *api.Task) bool {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return true
	}
	changed := f.state.Task == nil || f.state.Task.Status != task.Status
	f.state.Task = task
	f.mu.Unlock()

	if changed {
		publish(f.deps.Bus, events.TaskStatusEvent{ID: f.id, Status: task.Status, Timestamp: time.Now()})
	}
	if task.Status == api.StatusCompleted {
		f.requestResult()
	}
	return task.Status.Terminal()
}
