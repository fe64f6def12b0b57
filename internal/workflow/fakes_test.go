package workflow

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
	"github.com/aristath/testscriptgen/internal/keyseal"
	"github.com/aristath/testscriptgen/internal/localstore"
	"github.com/aristath/testscriptgen/internal/logging"
	"github.com/aristath/testscriptgen/internal/settings"
)

// fakeAPI is an in-memory backend for the workflow.
type fakeAPI struct {
	mu sync.Mutex

	tasks  map[int64]*api.Task
	nextID int64

	getErr        error
	initiateErr   error
	initiateBlock bool
	// Status reported by the initiate response. Defaults to running.
	initiateStatus api.TaskStatus
	// Statuses handed out by successive GetTask calls after the first load.
	statusSeq []api.TaskStatus

	listErr   error
	deleteErr error
	createErr error

	getCalls      int
	initiated     []api.InitiateRequest
	resultCalls   int
	createCalls   int
	agentSaved    []api.AgentSettings
	browserSaved  []api.BrowserSettings
	resultPayload *api.TaskResult
}

func newFakeAPI(tasks ...*api.Task) *fakeAPI {
	f := &fakeAPI{tasks: map[int64]*api.Task{}, nextID: 100}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return f
}

func notFound() error {
	return &api.Error{Kind: api.KindServer, Status: http.StatusNotFound, Message: "Task not found"}
}

func (f *fakeAPI) GetTask(ctx context.Context, id int64) (*api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound()
	}
	if f.getCalls > 1 && len(f.statusSeq) > 0 {
		t.Status = f.statusSeq[0]
		f.statusSeq = f.statusSeq[1:]
	}
	cp := *t
	return &cp, nil
}

func (f *fakeAPI) InitiateTask(ctx context.Context, id int64, req api.InitiateRequest) (*api.Task, error) {
	if f.initiateBlock {
		<-ctx.Done()
		return nil, &api.Error{Kind: api.KindCancelled, Message: api.MsgCancelled, Err: ctx.Err()}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated = append(f.initiated, req)
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound()
	}
	t.Status = f.initiateStatus
	if t.Status == "" {
		t.Status = api.StatusRunning
	}
	t.Instruction = req.Instruction
	t.InitiatedAt = "2025-01-02T03:04:05Z"
	cp := *t
	return &cp, nil
}

func (f *fakeAPI) GetTaskResult(ctx context.Context, id int64) (*api.TaskResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resultCalls++
	if f.resultPayload != nil {
		return f.resultPayload, nil
	}
	return &api.TaskResult{TaskID: id, GIFURL: "/static/run.gif", ScriptURL: "/static/task.py"}, nil
}

func (f *fakeAPI) UpdateAgentSettings(ctx context.Context, id int64, s api.AgentSettings) (*api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agentSaved = append(f.agentSaved, s)
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound()
	}
	t.LLMProvider, t.LLMModel = s.LLMProvider, s.LLMModel
	cp := *t
	return &cp, nil
}

func (f *fakeAPI) UpdateBrowserSettings(ctx context.Context, id int64, s api.BrowserSettings) (*api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.browserSaved = append(f.browserSaved, s)
	t, ok := f.tasks[id]
	if !ok {
		return nil, notFound()
	}
	cp := *t
	return &cp, nil
}

func (f *fakeAPI) ListTasks(ctx context.Context) ([]api.TaskSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []api.TaskSummary{}
	for _, t := range f.tasks {
		out = append(out, t.Summary())
	}
	return out, nil
}

func (f *fakeAPI) CreateTask(ctx context.Context, name string) (*api.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	t := &api.Task{ID: f.nextID, Name: name, Status: api.StatusCreated}
	f.tasks[t.ID] = t
	cp := *t
	return &cp, nil
}

func (f *fakeAPI) DeleteTask(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.tasks[id]; !ok {
		return notFound()
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeAPI) initiateCalls() []api.InitiateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.InitiateRequest(nil), f.initiated...)
}

func (f *fakeAPI) results() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resultCalls
}

// fakeSealer marks values as sealed instead of encrypting them.
type fakeSealer struct {
	fail bool
}

func (s fakeSealer) Seal(p string) keyseal.Sealed {
	if p == "" {
		return keyseal.Sealed{}
	}
	if s.fail {
		return keyseal.Sealed{Value: p}
	}
	return keyseal.Sealed{Value: "sealed(" + p + ")", Encrypted: true}
}

func (s fakeSealer) SealStrict(p string) (keyseal.Sealed, error) {
	if s.fail {
		return keyseal.Sealed{}, errors.New("no key")
	}
	return s.Seal(p), nil
}

type harness struct {
	api      *fakeAPI
	settings *settings.Store
	store    *localstore.SQLiteStore
	bus      *events.Bus
	deps     FormDeps
}

func newHarness(t *testing.T, fake *fakeAPI) *harness {
	t.Helper()
	store, err := localstore.NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	bus := events.NewBus()
	t.Cleanup(func() {
		bus.Close()
		store.Close()
	})

	h := &harness{api: fake, settings: settings.NewStore(), store: store, bus: bus}
	h.deps = FormDeps{
		API:      fake,
		Settings: h.settings,
		Sealer:   fakeSealer{},
		Keys:     store,
		History:  store,
		Bus:      bus,
		Log:      logging.Discard(),
		Timings: Timings{
			Banner:       30 * time.Millisecond,
			PollInitial:  time.Millisecond,
			PollMax:      5 * time.Millisecond,
			HistoryLimit: 10,
		},
	}
	return h
}

func (h *harness) form(t *testing.T, id int64) *TaskForm {
	t.Helper()
	f := NewTaskForm(context.Background(), id, h.deps)
	t.Cleanup(func() {
		f.Close()
		f.Wait()
	})
	return f
}

func (h *harness) loaded(t *testing.T, id int64) *TaskForm {
	t.Helper()
	f := h.form(t, id)
	if err := f.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return f
}

func ptr[T any](v T) *T { return &v }

func sampleTask(id int64) *api.Task {
	return &api.Task{
		ID:              id,
		Name:            "Smoke Test",
		Status:          api.StatusCreated,
		LLMProvider:     "ollama",
		LLMModel:        "llama3",
		Temperature:     ptr(0.2),
		ContextLength:   ptr(8192),
		BaseURL:         "http://localhost:11434",
		BrowserHeadless: ptr(true),
		DisableSecurity: ptr(false),
		WindowWidth:     ptr(1024),
		WindowHeight:    ptr(768),
		Instruction:     "Open the home page",
		ExpectedOutcome: "Title is visible",
		CreatedAt:       "2025-01-01T10:00:00Z",
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
