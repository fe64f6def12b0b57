package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/localstore"
)

// Phase is the loading state of a task form.
type Phase int

const (
	PhaseLoading Phase = iota
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "error"
	default:
		return "unknown"
	}
}

// SubmitState is the state of the submit action within PhaseReady.
type SubmitState int

const (
	SubmitIdle SubmitState = iota
	SubmitInFlight
	SubmitSucceeded
	SubmitFailed
)

func (s SubmitState) String() string {
	switch s {
	case SubmitIdle:
		return "idle"
	case SubmitInFlight:
		return "submitting"
	case SubmitSucceeded:
		return "success"
	case SubmitFailed:
		return "error"
	default:
		return "unknown"
	}
}

// Fields are the editable inputs of the Run Agent tab.
type Fields struct {
	Name            string
	Instruction     string
	Description     string
	SearchInput     string
	SearchAction    string
	ExpectedOutcome string
	ExpectedStatus  string
	APIKey          string // typed this session, sent sealed
}

func fieldsFromTask(t *api.Task) Fields {
	return Fields{
		Name:            t.Name,
		Instruction:     t.Instruction,
		Description:     t.Description,
		SearchInput:     t.SearchInput,
		SearchAction:    t.SearchAction,
		ExpectedOutcome: t.ExpectedOutcome,
		ExpectedStatus:  t.ExpectedStatus,
	}
}

// Snapshot is a copy of the form state for rendering.
type Snapshot struct {
	TaskID    int64
	Phase     Phase
	LoadError string
	Task      *api.Task
	Fields    Fields

	Submit      SubmitState
	Warning     string // validation warning, cleared by the next valid submit
	SubmitError string // cleared by the next successful action
	Success     string // banner text while the success banner is visible
	Payload     string // last initiate response, pretty-printed

	Result   *api.TaskResult
	History  []localstore.Submission
	Watching bool
}

// TaskForm drives one open task: loading it, pushing its settings into the
// shared settings store, submitting it, and following it to completion.
// All network calls use a context that Close cancels.
type TaskForm struct {
	id     int64
	deps   FormDeps
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	closed          bool
	state           Snapshot
	bannerTimer     *time.Timer
	bannerGen       uint64
	resultRequested bool
	watching        bool
}

// NewTaskForm creates a form for task id. Its lifetime ends when parent is
// cancelled or Close is called.
func NewTaskForm(parent context.Context, id int64, deps FormDeps) *TaskForm {
	deps.fill()
	ctx, cancel := context.WithCancel(parent)
	return &TaskForm{
		id:     id,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		state:  Snapshot{TaskID: id, Phase: PhaseLoading},
	}
}

// ID returns the task id.
func (f *TaskForm) ID() int64 {
	return f.id
}

// Snapshot returns a copy of the current state.
func (f *TaskForm) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := f.state
	out.History = append([]localstore.Submission(nil), f.state.History...)
	return out
}

// Load fetches the task, fills the fields and overwrites the settings store
// with the task's settings.
func (f *TaskForm) Load() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.state.Phase = PhaseLoading
	f.state.LoadError = ""
	f.mu.Unlock()

	task, err := f.deps.API.GetTask(f.ctx, f.id)
	if err != nil {
		if f.ctx.Err() != nil {
			return ErrClosed
		}
		msg := api.Message(err)
		f.mu.Lock()
		f.state.Phase = PhaseFailed
		f.state.LoadError = msg
		f.mu.Unlock()

		publish(f.deps.Bus, events.TaskLoadFailedEvent{ID: f.id, Message: msg, Timestamp: time.Now()})
		return err
	}

	history := f.loadHistory()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	// Under the form lock so a concurrent Close followed by a settings reset
	// can't be undone by a late load.
	f.deps.Settings.LoadTask(task)
	f.state.Phase = PhaseReady
	f.state.Task = task
	f.state.Fields = fieldsFromTask(task)
	f.state.History = history
	f.mu.Unlock()

	publish(f.deps.Bus, events.TaskLoadedEvent{ID: f.id, Task: task, Timestamp: time.Now()})
	f.track(task)
	return nil
}

// SetFields replaces the editable inputs.
func (f *TaskForm) SetFields(fields Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Fields = fields
}

// Submit initiates the task with the current fields and settings.
func (f *TaskForm) Submit() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	if f.state.Phase != PhaseReady {
		f.mu.Unlock()
		return fmt.Errorf("%w: task is not loaded", ErrValidation)
	}
	if f.state.Submit == SubmitInFlight {
		f.mu.Unlock()
		return ErrSubmitInFlight
	}

	fields := f.state.Fields
	if strings.TrimSpace(fields.Name) == "" || strings.TrimSpace(fields.Instruction) == "" {
		f.state.Warning = MsgMissingFields
		f.mu.Unlock()

		publish(f.deps.Bus, events.SubmitFailedEvent{ID: f.id, Message: MsgMissingFields, Validation: true, Timestamp: time.Now()})
		return fmt.Errorf("%w: %s", ErrValidation, MsgMissingFields)
	}

	f.state.Warning = ""
	f.state.SubmitError = ""
	f.state.Payload = ""
	f.hideBannerLocked()
	f.state.Submit = SubmitInFlight
	f.mu.Unlock()

	run := f.deps.Settings.RunSettings()
	key, err := f.resolveAPIKey(f.ctx, run.LLMProvider, fields.APIKey)
	if err != nil {
		f.fail(MsgEncryptionRequired)
		return err
	}

	req := api.InitiateRequest{
		Instruction:     fields.Instruction,
		Description:     fields.Description,
		SearchInput:     fields.SearchInput,
		SearchAction:    fields.SearchAction,
		ExpectedOutcome: fields.ExpectedOutcome,
		ExpectedStatus:  fields.ExpectedStatus,
		APIKey:          key.value,
		RunSettings:     run,
	}

	task, err := f.deps.API.InitiateTask(f.ctx, f.id, req)
	if err != nil {
		if f.ctx.Err() != nil {
			return ErrClosed
		}
		f.fail(api.Message(err))
		return err
	}

	f.persistKey(key)
	payload := prettyJSON(task)
	f.recordSubmission(task, payload)
	history := f.loadHistory()

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.state.Submit = SubmitSucceeded
	f.state.Task = task
	f.state.Payload = payload
	f.state.Result = nil
	f.state.History = history
	f.resultRequested = false
	f.showBannerLocked()
	f.mu.Unlock()

	f.deps.Log.WithField("task_id", f.id).Info("task initiated")
	publish(f.deps.Bus, events.TaskInitiatedEvent{ID: f.id, Task: task, Payload: payload, Timestamp: time.Now()})
	f.track(task)
	return nil
}

// Clear hides the response payload and both banners.
func (f *TaskForm) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state.Payload = ""
	f.state.SubmitError = ""
	f.state.Warning = ""
	f.hideBannerLocked()
	if f.state.Submit != SubmitInFlight {
		f.state.Submit = SubmitIdle
	}
}

// Close ends the form's lifetime: in-flight calls are cancelled, the banner
// timer is stopped and background polling stops.
func (f *TaskForm) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.stopBannerLocked()
	f.mu.Unlock()

	f.cancel()
}

// Wait blocks until background work (status polling, result fetch) is done.
func (f *TaskForm) Wait() {
	f.wg.Wait()
}

func (f *TaskForm) fail(msg string) {
	f.mu.Lock()
	f.state.Submit = SubmitFailed
	f.state.SubmitError = msg
	f.mu.Unlock()

	publish(f.deps.Bus, events.SubmitFailedEvent{ID: f.id, Message: msg, Timestamp: time.Now()})
}

func (f *TaskForm) showBannerLocked() {
	f.stopBannerLocked()
	f.state.Success = MsgSubmitted
	gen := f.bannerGen
	f.bannerTimer = time.AfterFunc(f.deps.Timings.Banner, func() {
		f.expireBanner(gen)
	})
}

func (f *TaskForm) hideBannerLocked() {
	f.stopBannerLocked()
	f.state.Success = ""
}

// stopBannerLocked cancels a pending banner timeout. The generation bump
// makes a timer that already fired a no-op.
func (f *TaskForm) stopBannerLocked() {
	if f.bannerTimer != nil {
		f.bannerTimer.Stop()
		f.bannerTimer = nil
	}
	f.bannerGen++
}

func (f *TaskForm) expireBanner(gen uint64) {
	f.mu.Lock()
	if f.closed || gen != f.bannerGen {
		f.mu.Unlock()
		return
	}
	f.state.Success = ""
	f.bannerTimer = nil
	f.mu.Unlock()

	publish(f.deps.Bus, events.BannerClearedEvent{ID: f.id, Timestamp: time.Now()})
}

// track reacts to the task's status: completed tasks get their result
// fetched, running tasks get watched.
func (f *TaskForm) track(task *api.Task) {
	switch task.Status {
	case api.StatusCompleted:
		f.requestResult()
	case api.StatusRunning:
		f.startWatch()
	}
}

// requestResult fetches the result once per completion.
func (f *TaskForm) requestResult() {
	f.mu.Lock()
	if f.closed || f.resultRequested {
		f.mu.Unlock()
		return
	}
	f.resultRequested = true
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		f.fetchResult()
	}()
}

func (f *TaskForm) fetchResult() {
	res, err := f.deps.API.GetTaskResult(f.ctx, f.id)
	if err != nil {
		if f.ctx.Err() == nil {
			f.deps.Log.WithError(err).WithField("task_id", f.id).Warn("Failed to fetch task result")
		}
		return
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.state.Result = res
	f.mu.Unlock()

	publish(f.deps.Bus, events.TaskResultEvent{ID: f.id, Result: res, Timestamp: time.Now()})
}

func (f *TaskForm) loadHistory() []localstore.Submission {
	if f.deps.History == nil {
		return nil
	}
	subs, err := f.deps.History.ListSubmissions(f.ctx, f.id, f.deps.Timings.HistoryLimit)
	if err != nil {
		if f.ctx.Err() == nil {
			f.deps.Log.WithError(err).Warn("failed to load submission history")
		}
		return nil
	}
	return subs
}

func (f *TaskForm) recordSubmission(task *api.Task, payload string) {
	if f.deps.History == nil {
		return
	}
	sub := localstore.Submission{TaskID: f.id, Status: string(task.Status), Payload: payload}
	if _, err := f.deps.History.RecordSubmission(context.WithoutCancel(f.ctx), sub); err != nil {
		f.deps.Log.WithError(err).Warn("failed to record submission")
	}
}

func prettyJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}
