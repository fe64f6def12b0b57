package events

import (
	"time"

	"github.com/aristath/testscriptgen/internal/api"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	Topic() string
	TaskID() int64
}

// Topics
const (
	TopicSession = "session"
	TopicList    = "list"
	TopicTask    = "task"
)

// Event types
const (
	EventTypeAuthChanged     = "session.auth_changed"
	EventTypeTaskListChanged = "list.changed"
	EventTypeListBanner      = "list.banner"
	EventTypeTaskLoaded      = "task.loaded"
	EventTypeTaskLoadFailed  = "task.load_failed"
	EventTypeTaskInitiated   = "task.initiated"
	EventTypeSubmitFailed    = "task.submit_failed"
	EventTypeTaskStatus      = "task.status"
	EventTypeTaskResult      = "task.result"
	EventTypeBannerCleared   = "task.banner_cleared"
	EventTypeSettingsSaved   = "task.settings_saved"
)

// AuthChangedEvent is published on login, logout and token invalidation.
// User is nil when the session became unauthenticated.
type AuthChangedEvent struct {
	User      *api.User
	Timestamp time.Time
}

func (e AuthChangedEvent) EventType() string { return EventTypeAuthChanged }
func (e AuthChangedEvent) Topic() string     { return TopicSession }
func (e AuthChangedEvent) TaskID() int64     { return 0 }

// TaskListChangedEvent carries the task list after a refresh, create or delete.
type TaskListChangedEvent struct {
	Tasks     []api.TaskSummary
	Timestamp time.Time
}

func (e TaskListChangedEvent) EventType() string { return EventTypeTaskListChanged }
func (e TaskListChangedEvent) Topic() string     { return TopicList }
func (e TaskListChangedEvent) TaskID() int64     { return 0 }

// ListBannerEvent shows or clears the list view's error banner.
type ListBannerEvent struct {
	Message   string // empty clears the banner
	Timestamp time.Time
}

func (e ListBannerEvent) EventType() string { return EventTypeListBanner }
func (e ListBannerEvent) Topic() string     { return TopicList }
func (e ListBannerEvent) TaskID() int64     { return 0 }

// TaskLoadedEvent is published when a task form finished fetching its task.
type TaskLoadedEvent struct {
	ID        int64
	Task      *api.Task
	Timestamp time.Time
}

func (e TaskLoadedEvent) EventType() string { return EventTypeTaskLoaded }
func (e TaskLoadedEvent) Topic() string     { return TopicTask }
func (e TaskLoadedEvent) TaskID() int64     { return e.ID }

// TaskLoadFailedEvent is published when fetching the task failed.
type TaskLoadFailedEvent struct {
	ID        int64
	Message   string
	Timestamp time.Time
}

func (e TaskLoadFailedEvent) EventType() string { return EventTypeTaskLoadFailed }
func (e TaskLoadFailedEvent) Topic() string     { return TopicTask }
func (e TaskLoadFailedEvent) TaskID() int64     { return e.ID }

// TaskInitiatedEvent is published after a successful submit.
type TaskInitiatedEvent struct {
	ID        int64
	Task      *api.Task
	Payload   string // response as pretty JSON
	Timestamp time.Time
}

func (e TaskInitiatedEvent) EventType() string { return EventTypeTaskInitiated }
func (e TaskInitiatedEvent) Topic() string     { return TopicTask }
func (e TaskInitiatedEvent) TaskID() int64     { return e.ID }

// SubmitFailedEvent is published when a submit was rejected locally or by the backend.
type SubmitFailedEvent struct {
	ID         int64
	Message    string
	Validation bool
	Timestamp  time.Time
}

func (e SubmitFailedEvent) EventType() string { return EventTypeSubmitFailed }
func (e SubmitFailedEvent) Topic() string     { return TopicTask }
func (e SubmitFailedEvent) TaskID() int64     { return e.ID }

// TaskStatusEvent is published when the watched task changes status.
type TaskStatusEvent struct {
	ID        int64
	Status    api.TaskStatus
	Timestamp time.Time
}

func (e TaskStatusEvent) EventType() string { return EventTypeTaskStatus }
func (e TaskStatusEvent) Topic() string     { return TopicTask }
func (e TaskStatusEvent) TaskID() int64     { return e.ID }

// TaskResultEvent is published once the result of a completed task is fetched.
type TaskResultEvent struct {
	ID        int64
	Result    *api.TaskResult
	Timestamp time.Time
}

func (e TaskResultEvent) EventType() string { return EventTypeTaskResult }
func (e TaskResultEvent) Topic() string     { return TopicTask }
func (e TaskResultEvent) TaskID() int64     { return e.ID }

// BannerClearedEvent is published when the success banner times out.
type BannerClearedEvent struct {
	ID        int64
	Timestamp time.Time
}

func (e BannerClearedEvent) EventType() string { return EventTypeBannerCleared }
func (e BannerClearedEvent) Topic() string     { return TopicTask }
func (e BannerClearedEvent) TaskID() int64     { return e.ID }

// SettingsSavedEvent reports the outcome of saving a settings tab to the task.
type SettingsSavedEvent struct {
	ID        int64
	Section   string // "agent" or "browser"
	Message   string // empty on success
	Timestamp time.Time
}

func (e SettingsSavedEvent) EventType() string { return EventTypeSettingsSaved }
func (e SettingsSavedEvent) Topic() string     { return TopicTask }
func (e SettingsSavedEvent) TaskID() int64     { return e.ID }
