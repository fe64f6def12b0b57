// Package workflow implements the dashboard's view logic independently of how
// it is rendered: the task list, the task form state machine, and navigation
// between them.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/config"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/keyseal"
	"github.com/aristath/testscriptgen/internal/localstore"
	"github.com/aristath/testscriptgen/internal/logging"
	"github.com/aristath/testscriptgen/internal/settings"
)

// User-facing messages.
const (
	MsgMissingFields      = "Please enter at least a task name and instruction."
	MsgSubmitted          = "Task initiated successfully! The task has been updated with your current settings."
	MsgNameRequired       = "Task name is required"
	MsgEncryptionRequired = "The API key could not be encrypted, so it was not sent."
)

var (
	// ErrValidation is returned when a guard rejects an action before any
	// network call is made.
	ErrValidation = errors.New("validation failed")

	// ErrSubmitInFlight is returned by Submit while a previous submit is pending.
	ErrSubmitInFlight = errors.New("a submission is already in progress")

	// ErrEncryptionRequired is returned when policy forbids sending a key that
	// could not be sealed.
	ErrEncryptionRequired = errors.New("API key encryption required")

	// ErrClosed is returned by actions on a form whose view has gone away.
	ErrClosed = errors.New("task form closed")
)

// TaskAPI is the part of the backend client the task form uses.
type TaskAPI interface {
	GetTask(ctx context.Context, id int64) (*api.Task, error)
	InitiateTask(ctx context.Context, id int64, req api.InitiateRequest) (*api.Task, error)
	GetTaskResult(ctx context.Context, id int64) (*api.TaskResult, error)
	UpdateAgentSettings(ctx context.Context, id int64, s api.AgentSettings) (*api.Task, error)
	UpdateBrowserSettings(ctx context.Context, id int64, s api.BrowserSettings) (*api.Task, error)
}

// ListAPI is the part of the backend client the task list uses.
type ListAPI interface {
	ListTasks(ctx context.Context) ([]api.TaskSummary, error)
	CreateTask(ctx context.Context, name string) (*api.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

// KeyStore persists the last sealed API key.
type KeyStore interface {
	EncryptedAPIKey(ctx context.Context) (localstore.StoredKey, bool, error)
	SetEncryptedAPIKey(ctx context.Context, key localstore.StoredKey) error
}

// History persists successful submissions.
type History interface {
	RecordSubmission(ctx context.Context, sub localstore.Submission) (int64, error)
	ListSubmissions(ctx context.Context, taskID int64, limit int) ([]localstore.Submission, error)
}

// Sealer encrypts API keys.
type Sealer interface {
	Seal(plaintext string) keyseal.Sealed
	SealStrict(plaintext string) (keyseal.Sealed, error)
}

// Timings controls banners and status polling.
type Timings struct {
	Banner         time.Duration // how long the success banner stays up
	PollInitial    time.Duration
	PollMax        time.Duration
	HistoryLimit   int
	RequireSealing bool
}

// DefaultTimings matches the dashboard defaults.
func DefaultTimings() Timings {
	return Timings{
		Banner:       3 * time.Second,
		PollInitial:  time.Second,
		PollMax:      10 * time.Second,
		HistoryLimit: 20,
	}
}

// TimingsFromConfig derives timings from the dashboard configuration.
func TimingsFromConfig(cfg *config.DashboardConfig) Timings {
	t := DefaultTimings()
	if cfg.UI.BannerSeconds > 0 {
		t.Banner = time.Duration(cfg.UI.BannerSeconds) * time.Second
	}
	if cfg.UI.Poll.InitialIntervalMs > 0 {
		t.PollInitial = time.Duration(cfg.UI.Poll.InitialIntervalMs) * time.Millisecond
	}
	if cfg.UI.Poll.MaxIntervalMs > 0 {
		t.PollMax = time.Duration(cfg.UI.Poll.MaxIntervalMs) * time.Millisecond
	}
	t.RequireSealing = cfg.Encryption.RequireEncryption
	return t
}

// FormDeps are the collaborators shared by every task form.
type FormDeps struct {
	API      TaskAPI
	Settings *settings.Store
	Sealer   Sealer
	Keys     KeyStore
	History  History // optional
	Bus      *events.Bus
	Log      *logrus.Entry
	Timings  Timings
}

func (d *FormDeps) fill() {
	if d.Log == nil {
		d.Log = logging.Component("workflow")
	}
	if d.Timings.Banner <= 0 {
		d.Timings.Banner = DefaultTimings().Banner
	}
	if d.Timings.PollInitial <= 0 {
		d.Timings.PollInitial = DefaultTimings().PollInitial
	}
	if d.Timings.PollMax <= 0 {
		d.Timings.PollMax = DefaultTimings().PollMax
	}
	if d.Timings.HistoryLimit <= 0 {
		d.Timings.HistoryLimit = DefaultTimings().HistoryLimit
	}
}

func publish(bus *events.Bus, ev events.Event) {
	if bus != nil {
		bus.Publish(ev)
	}
}
