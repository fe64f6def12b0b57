package devserver

import (
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/aristath/testscriptgen/internal/api"
)

var (
	errTaskNotFound   = errors.New("task not found")
	errResultNotFound = errors.New("result not found")
	errTaskRunning    = errors.New("task is already running")
	errArtefactGone   = errors.New("artefact not found")
)

type record struct {
	owner  int64
	task   api.Task
	result *api.TaskResult
}

// taskStore keeps tasks and run artefacts in memory.
type taskStore struct {
	mu        sync.Mutex
	nextID    int64
	tasks     map[int64]*record
	artefacts map[string][]byte
}

func newTaskStore() *taskStore {
	return &taskStore{
		tasks:     make(map[int64]*record),
		artefacts: make(map[string][]byte),
	}
}

func timestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000")
}

func (s *taskStore) create(owner int64, req api.CreateTaskRequest) api.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	task := api.Task{
		ID:        s.nextID,
		UserID:    owner,
		Name:      req.Name,
		Status:    api.StatusCreated,
		CreatedAt: timestamp(time.Now()),
	}
	if req.AgentSettings != nil {
		applyAgent(&task, *req.AgentSettings)
	}
	if req.BrowserSettings != nil {
		applyBrowser(&task, *req.BrowserSettings)
	}

	s.tasks[task.ID] = &record{owner: owner, task: task}
	return task
}

func (s *taskStore) list(owner int64) []api.TaskSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []api.TaskSummary{}
	for _, r := range s.tasks {
		if r.owner == owner {
			out = append(out, r.task.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// lookupLocked returns the owner's record. Caller holds s.mu.
func (s *taskStore) lookupLocked(owner, id int64) (*record, error) {
	r, ok := s.tasks[id]
	if !ok || r.owner != owner {
		return nil, errors.Wrapf(errTaskNotFound, "task %d", id)
	}
	return r, nil
}

func (s *taskStore) get(owner, id int64) (api.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(owner, id)
	if err != nil {
		return api.Task{}, err
	}
	return r.task, nil
}

func (s *taskStore) delete(owner, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookupLocked(owner, id); err != nil {
		return errors.WithMessage(err, "delete")
	}
	delete(s.tasks, id)
	return nil
}

func (s *taskStore) update(owner, id int64, fn func(*api.Task)) (api.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(owner, id)
	if err != nil {
		return api.Task{}, errors.WithMessage(err, "update")
	}
	fn(&r.task)
	return r.task, nil
}

// start moves a task to running with the submitted instruction and settings.
func (s *taskStore) start(owner, id int64, req api.InitiateRequest) (api.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(owner, id)
	if err != nil {
		return api.Task{}, errors.WithMessage(err, "initiate")
	}
	if r.task.Status == api.StatusRunning {
		return api.Task{}, errors.Wrapf(errTaskRunning, "task %d", id)
	}

	t := &r.task
	t.Instruction = req.Instruction
	t.Description = req.Description
	t.SearchInput = req.SearchInput
	t.SearchAction = req.SearchAction
	t.ExpectedOutcome = req.ExpectedOutcome
	t.ExpectedStatus = req.ExpectedStatus
	if req.APIKey != "" {
		t.APIKey = req.APIKey
	}
	applyRun(t, req.RunSettings)
	t.Status = api.StatusRunning
	t.InitiatedAt = timestamp(time.Now())
	r.result = nil
	return *t, nil
}

// finish ends a run. Completed runs get their artefacts registered.
func (s *taskStore) finish(id int64, status api.TaskStatus, result *api.TaskResult, files map[string][]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.tasks[id]
	if !ok || r.task.Status != api.StatusRunning {
		return
	}
	r.task.Status = status
	r.result = result
	for name, body := range files {
		s.artefacts[name] = body
	}
}

func (s *taskStore) result(owner, id int64) (api.TaskResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.lookupLocked(owner, id)
	if err != nil {
		return api.TaskResult{}, err
	}
	if r.result == nil {
		return api.TaskResult{}, errors.Wrapf(errResultNotFound, "task %d", id)
	}
	return *r.result, nil
}

func (s *taskStore) artefact(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok := s.artefacts[name]
	if !ok {
		return nil, errors.Wrap(errArtefactGone, name)
	}
	return body, nil
}

func applyAgent(t *api.Task, a api.AgentSettings) {
	t.LLMProvider = a.LLMProvider
	t.LLMModel = a.LLMModel
	t.Temperature = &a.Temperature
	t.ContextLength = &a.ContextLength
	t.BaseURL = a.BaseURL
	if a.APIKey != "" {
		t.APIKey = a.APIKey
	}
}

func applyBrowser(t *api.Task, b api.BrowserSettings) {
	t.BrowserHeadless = &b.BrowserHeadless
	t.DisableSecurity = &b.DisableSecurity
	t.WindowWidth = &b.WindowWidth
	t.WindowHeight = &b.WindowHeight
}

func applyRun(t *api.Task, r api.RunSettings) {
	applyAgent(t, api.AgentSettings{
		LLMProvider:   r.LLMProvider,
		LLMModel:      r.LLMModel,
		Temperature:   r.Temperature,
		ContextLength: r.ContextLength,
		BaseURL:       r.BaseURL,
	})
	applyBrowser(t, api.BrowserSettings{
		BrowserHeadless: r.BrowserHeadless,
		DisableSecurity: r.DisableSecurity,
		WindowWidth:     r.WindowWidth,
		WindowHeight:    r.WindowHeight,
	})
}
