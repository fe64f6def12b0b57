package settings

import (
	"strings"
	"sync"

	"github.com/aristath/testscriptgen/internal/api"
)

// Store is the single working copy of the settings being edited. It is
// created once per session and passed to every view that reads or edits
// settings.
type Store struct {
	mu      sync.RWMutex
	current Settings
}

// NewStore creates a store holding the defaults.
func NewStore() *Store {
	return &Store{current: Defaults()}
}

// Snapshot returns a copy of the current settings.
func (s *Store) Snapshot() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// UpdateAgent merges the non-nil fields of patch into the agent settings.
// The merged result is validated; on error nothing changes.
func (s *Store) UpdateAgent(patch AgentPatch) error {
	s.mu.Lock()
	next := patch.apply(s.current.Agent)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current.Agent = next
	s.mu.Unlock()
	return nil
}

// UpdateBrowser merges the non-nil fields of patch into the browser settings.
func (s *Store) UpdateBrowser(patch BrowserPatch) error {
	s.mu.Lock()
	next := patch.apply(s.current.Browser)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current.Browser = next
	s.mu.Unlock()
	return nil
}

// Reset restores the defaults.
func (s *Store) Reset() {
	s.replace(Defaults())
}

// LoadTask overwrites the whole settings object from a task's persisted
// values. Fields the task has never set take their default.
func (s *Store) LoadTask(task *api.Task) {
	s.replace(FromTask(task))
}

func (s *Store) replace(next Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = next
}

// FromTask builds settings from a task record over the defaults. Values the
// record leaves unset, or that fall outside the editable ranges, keep their
// defaults so the result always validates.
func FromTask(task *api.Task) Settings {
	out := Defaults()
	if task == nil {
		return out
	}

	if p := Provider(task.LLMProvider); p.Valid() {
		out.Agent.Provider = p
	}
	if strings.TrimSpace(task.LLMModel) != "" {
		out.Agent.Model = task.LLMModel
	}
	if t := task.Temperature; t != nil && *t >= MinTemperature && *t <= MaxTemperature {
		out.Agent.Temperature = *t
	}
	if n := task.ContextLength; n != nil && *n >= MinContextLength && *n <= MaxContextLength {
		out.Agent.ContextLength = *n
	}
	out.Agent.BaseURL = task.BaseURL

	if task.BrowserHeadless != nil {
		out.Browser.Headless = *task.BrowserHeadless
	}
	if task.DisableSecurity != nil {
		out.Browser.DisableSecurity = *task.DisableSecurity
	}
	if w := task.WindowWidth; w != nil && *w > 0 {
		out.Browser.WindowWidth = *w
	}
	if h := task.WindowHeight; h != nil && *h > 0 {
		out.Browser.WindowHeight = *h
	}
	return out
}

// RunSettings is the settings snapshot sent with an initiate request.
func (s *Store) RunSettings() api.RunSettings {
	cur := s.Snapshot()
	return api.RunSettings{
		LLMProvider:     string(cur.Agent.Provider),
		LLMModel:        cur.Agent.Model,
		Temperature:     cur.Agent.Temperature,
		ContextLength:   cur.Agent.ContextLength,
		BaseURL:         cur.Agent.BaseURL,
		BrowserHeadless: cur.Browser.Headless,
		DisableSecurity: cur.Browser.DisableSecurity,
		WindowWidth:     cur.Browser.WindowWidth,
		WindowHeight:    cur.Browser.WindowHeight,
	}
}

// AgentPayload is the body for PATCH /tasks/{id}/agent-settings, without the key.
func (s *Store) AgentPayload() api.AgentSettings {
	cur := s.Snapshot().Agent
	return api.AgentSettings{
		LLMProvider:   string(cur.Provider),
		LLMModel:      cur.Model,
		Temperature:   cur.Temperature,
		ContextLength: cur.ContextLength,
		BaseURL:       cur.BaseURL,
	}
}

// BrowserPayload is the body for PATCH /tasks/{id}/browser-settings.
func (s *Store) BrowserPayload() api.BrowserSettings {
	cur := s.Snapshot().Browser
	return api.BrowserSettings{
		BrowserHeadless: cur.Headless,
		DisableSecurity: cur.DisableSecurity,
		WindowWidth:     cur.WindowWidth,
		WindowHeight:    cur.WindowHeight,
	}
}
