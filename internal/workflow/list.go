package workflow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/logging"
)

// TaskList is the state behind the task list view.
type TaskList struct {
	api    ListAPI
	bus    *events.Bus
	log    *logrus.Entry
	banner time.Duration

	mu          sync.Mutex
	tasks       []api.TaskSummary
	loaded      bool
	errMsg      string
	bannerTimer *time.Timer
	bannerGen   uint64
}

// NewTaskList creates the list state. bannerFor is how long a delete error
// stays visible.
func NewTaskList(client ListAPI, bus *events.Bus, bannerFor time.Duration, log *logrus.Entry) *TaskList {
	if log == nil {
		log = logging.Component("tasklist")
	}
	if bannerFor <= 0 {
		bannerFor = DefaultTimings().Banner
	}
	return &TaskList{api: client, bus: bus, log: log, banner: bannerFor}
}

// Tasks returns a copy of the current list.
func (l *TaskList) Tasks() []api.TaskSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]api.TaskSummary(nil), l.tasks...)
}

// Loaded reports whether a refresh has succeeded at least once.
func (l *TaskList) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

// Error returns the message of the visible error banner, if any.
func (l *TaskList) Error() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errMsg
}

// Refresh reloads the list from the backend.
func (l *TaskList) Refresh(ctx context.Context) error {
	tasks, err := l.api.ListTasks(ctx)
	if err != nil {
		if !api.IsCancelled(err) {
			l.showError(api.Message(err), false)
		}
		return err
	}

	l.mu.Lock()
	l.tasks = tasks
	l.loaded = true
	l.clearErrorLocked()
	l.mu.Unlock()

	l.changed()
	return nil
}

// Create creates a task with the trimmed name and appends it to the list
// without refetching.
func (l *TaskList) Create(ctx context.Context, name string) (*api.Task, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		l.showError(MsgNameRequired, false)
		return nil, fmt.Errorf("%w: %s", ErrValidation, MsgNameRequired)
	}

	task, err := l.api.CreateTask(ctx, name)
	if err != nil {
		if !api.IsCancelled(err) {
			l.showError(api.Message(err), false)
		}
		return nil, err
	}

	l.mu.Lock()
	l.tasks = append(l.tasks, task.Summary())
	l.clearErrorLocked()
	l.mu.Unlock()

	l.log.WithField("task_id", task.ID).Info("task created")
	l.changed()
	return task, nil
}

// Delete deletes a task. A failure shows an error banner that clears itself.
func (l *TaskList) Delete(ctx context.Context, id int64) error {
	if err := l.api.DeleteTask(ctx, id); err != nil {
		if !api.IsCancelled(err) {
			l.showError(api.Message(err), true)
		}
		return err
	}

	l.mu.Lock()
	kept := l.tasks[:0]
	for _, t := range l.tasks {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	l.tasks = kept
	l.clearErrorLocked()
	l.mu.Unlock()

	l.log.WithField("task_id", id).Info("task deleted")
	l.changed()
	return nil
}

// UpdateStatus patches one row, e.g. after the open task was initiated.
func (l *TaskList) UpdateStatus(id int64, status api.TaskStatus) {
	l.mu.Lock()
	found := false
	for i := range l.tasks {
		if l.tasks[i].ID == id {
			l.tasks[i].Status = status
			found = true
		}
	}
	l.mu.Unlock()

	if found {
		l.changed()
	}
}

// Close stops the banner timer.
func (l *TaskList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopTimerLocked()
}

func (l *TaskList) changed() {
	publish(l.bus, events.TaskListChangedEvent{Tasks: l.Tasks(), Timestamp: time.Now()})
}

func (l *TaskList) showError(msg string, autoClear bool) {
	l.mu.Lock()
	l.stopTimerLocked()
	l.errMsg = msg
	if autoClear {
		gen := l.bannerGen
		l.bannerTimer = time.AfterFunc(l.banner, func() { l.expire(gen) })
	}
	l.mu.Unlock()

	publish(l.bus, events.ListBannerEvent{Message: msg, Timestamp: time.Now()})
}

func (l *TaskList) expire(gen uint64) {
	l.mu.Lock()
	if gen != l.bannerGen {
		l.mu.Unlock()
		return
	}
	l.errMsg = ""
	l.bannerTimer = nil
	l.mu.Unlock()

	publish(l.bus, events.ListBannerEvent{Timestamp: time.Now()})
}

func (l *TaskList) clearErrorLocked() {
	l.stopTimerLocked()
	l.errMsg = ""
}

func (l *TaskList) stopTimerLocked() {
	if l.bannerTimer != nil {
		l.bannerTimer.Stop()
		l.bannerTimer = nil
	}
	l.bannerGen++
}
