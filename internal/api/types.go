package api

// TaskStatus is the backend-owned lifecycle state of a task.
type TaskStatus string

const (
	StatusCreated   TaskStatus = "created"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether the task will not change status again on its own.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TaskSummary is one row of GET /tasks.
type TaskSummary struct {
	ID     int64      `json:"id"`
	Name   string     `json:"task_name"`
	Status TaskStatus `json:"status"`
}

// Task is the full record returned by GET /tasks/{id} and the mutating endpoints.
// Nullable settings are pointers so "never set" is distinguishable from zero.
type Task struct {
	ID     int64      `json:"id"`
	UserID int64      `json:"user_id"`
	Name   string     `json:"task_name"`
	Status TaskStatus `json:"status"`

	LLMProvider   string   `json:"llm_provider"`
	LLMModel      string   `json:"llm_model"`
	Temperature   *float64 `json:"temperature"`
	ContextLength *int     `json:"context_length"`
	BaseURL       string   `json:"base_url"`
	APIKey        string   `json:"api_key"`

	BrowserHeadless *bool `json:"browser_headless_mode"`
	DisableSecurity *bool `json:"disable_security"`
	WindowWidth     *int  `json:"window_width"`
	WindowHeight    *int  `json:"window_height"`

	Instruction     string `json:"instruction"`
	Description     string `json:"description"`
	SearchInput     string `json:"search_input_input"`
	SearchAction    string `json:"search_input_action"`
	ExpectedOutcome string `json:"expected_outcome"`
	ExpectedStatus  string `json:"expected_status"`

	CreatedAt   string `json:"created_at"`
	InitiatedAt string `json:"initiated_at"`
}

// Summary returns the list-view projection of the task.
func (t *Task) Summary() TaskSummary {
	return TaskSummary{ID: t.ID, Name: t.Name, Status: t.Status}
}

// AgentSettings is the body of PATCH /tasks/{id}/agent-settings.
type AgentSettings struct {
	LLMProvider   string  `json:"llm_provider"`
	LLMModel      string  `json:"llm_model"`
	Temperature   float64 `json:"temperature"`
	ContextLength int     `json:"context_length"`
	BaseURL       string  `json:"base_url"`
	APIKey        string  `json:"api_key,omitempty"`
}

// BrowserSettings is the body of PATCH /tasks/{id}/browser-settings.
type BrowserSettings struct {
	BrowserHeadless bool `json:"browser_headless_mode"`
	DisableSecurity bool `json:"disable_security"`
	WindowWidth     int  `json:"window_width"`
	WindowHeight    int  `json:"window_height"`
}

// CreateTaskRequest is the body of POST /tasks. The settings are optional.
type CreateTaskRequest struct {
	Name string `json:"task_name"`
	*AgentSettings
	*BrowserSettings
}

// RunSettings is the settings snapshot sent along with an initiate request.
// Every field is always sent, whatever the provider.
type RunSettings struct {
	LLMProvider     string  `json:"llm_provider"`
	LLMModel        string  `json:"llm_model"`
	Temperature     float64 `json:"temperature"`
	ContextLength   int     `json:"context_length"`
	BaseURL         string  `json:"base_url"`
	BrowserHeadless bool    `json:"browser_headless_mode"`
	DisableSecurity bool    `json:"disable_security"`
	WindowWidth     int     `json:"window_width"`
	WindowHeight    int     `json:"window_height"`
}

// InitiateRequest is the body of PATCH /tasks/{id}/initiate.
type InitiateRequest struct {
	Instruction     string `json:"instruction"`
	Description     string `json:"description"`
	SearchInput     string `json:"search_input_input"`
	SearchAction    string `json:"search_input_action"`
	ExpectedOutcome string `json:"expected_outcome"`
	ExpectedStatus  string `json:"expected_status"`
	APIKey          string `json:"api_key,omitempty"`
	RunSettings
}

// TaskResult is the artefact set of a completed task.
type TaskResult struct {
	TaskID    int64  `json:"task_id"`
	GIFURL    string `json:"result_gif"`
	ScriptURL string `json:"result_json_url"`
}

// TokenResponse is returned by POST /auth/token.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// User is the profile returned by GET /auth/me.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// ValidationError is one entry of a 422 response's detail list.
type ValidationError struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}
