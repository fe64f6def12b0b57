package api

import (
	"context"
	"fmt"
	"net/http"
)

// ListTasks returns the summaries of the current user's tasks.
func (c *Client) ListTasks(ctx context.Context) ([]TaskSummary, error) {
	out := []TaskSummary{}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/tasks", auth: true, fallback: "Failed to fetch tasks"}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTask creates an empty task with just a name.
func (c *Client) CreateTask(ctx context.Context, name string) (*Task, error) {
	return c.CreateTaskWithSettings(ctx, CreateTaskRequest{Name: name})
}

// CreateTaskWithSettings creates a task, optionally seeding its agent and browser settings.
func (c *Client) CreateTaskWithSettings(ctx context.Context, req CreateTaskRequest) (*Task, error) {
	var out Task
	if err := c.do(ctx, call{method: http.MethodPost, path: "/tasks", body: req, auth: true, fallback: "Failed to create task"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTask fetches the full task record.
func (c *Client) GetTask(ctx context.Context, id int64) (*Task, error) {
	var out Task
	if err := c.do(ctx, call{method: http.MethodGet, path: taskPath(id, ""), auth: true, fallback: "Failed to fetch task"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteTask deletes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, call{method: http.MethodDelete, path: taskPath(id, ""), auth: true, fallback: "Failed to delete task"}, nil)
}

// UpdateAgentSettings replaces the agent settings stored on a task.
func (c *Client) UpdateAgentSettings(ctx context.Context, id int64, settings AgentSettings) (*Task, error) {
	var out Task
	if err := c.do(ctx, call{method: http.MethodPatch, path: taskPath(id, "/agent-settings"), body: settings, auth: true, fallback: "Failed to update agent settings"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateBrowserSettings replaces the browser settings stored on a task.
func (c *Client) UpdateBrowserSettings(ctx context.Context, id int64, settings BrowserSettings) (*Task, error) {
	var out Task
	if err := c.do(ctx, call{method: http.MethodPatch, path: taskPath(id, "/browser-settings"), body: settings, auth: true, fallback: "Failed to update browser settings"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// InitiateTask submits the instruction and settings and moves the task to running.
func (c *Client) InitiateTask(ctx context.Context, id int64, req InitiateRequest) (*Task, error) {
	var out Task
	if err := c.do(ctx, call{method: http.MethodPatch, path: taskPath(id, "/initiate"), body: req, auth: true, fallback: "Failed to initiate task"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTaskResult fetches the recording and script URLs of a completed task.
func (c *Client) GetTaskResult(ctx context.Context, id int64) (*TaskResult, error) {
	var out TaskResult
	if err := c.do(ctx, call{method: http.MethodGet, path: fmt.Sprintf("/results/%d", id), auth: true, fallback: "Failed to fetch task result"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func taskPath(id int64, suffix string) string {
	return fmt.Sprintf("/tasks/%d%s", id, suffix)
}
