package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/testscriptgen/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL + "/api/v1"
	opts.Logger = logging.Discard()
	return New(opts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListTasks_ServerErrorDetail(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "db down"})
	}, Options{})

	tasks, err := c.ListTasks(context.Background())
	require.Error(t, err)
	assert.Nil(t, tasks)

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "db down", apiErr.Message)
	assert.Equal(t, KindServer, apiErr.Kind)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
}

func TestServerErrorMessageFallbacks(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		call   func(c *Client) error
		want   string
	}{
		{
			name:   "message key used when detail missing",
			status: http.StatusBadRequest,
			body:   `{"message":"bad input"}`,
			call:   func(c *Client) error { _, err := c.GetTask(context.Background(), 1); return err },
			want:   "bad input",
		},
		{
			name:   "per-operation fallback for empty body",
			status: http.StatusNotFound,
			body:   ``,
			call:   func(c *Client) error { _, err := c.GetTask(context.Background(), 1); return err },
			want:   "Failed to fetch task",
		},
		{
			name:   "non-JSON body",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
			call:   func(c *Client) error { return c.DeleteTask(context.Background(), 3) },
			want:   "Failed to delete task",
		},
		{
			name:   "initiate fallback",
			status: http.StatusConflict,
			body:   `{"detail":""}`,
			call:   func(c *Client) error { _, err := c.InitiateTask(context.Background(), 3, InitiateRequest{}); return err },
			want:   "Failed to initiate task",
		},
		{
			name:   "token fallback",
			status: http.StatusUnauthorized,
			body:   `{}`,
			call:   func(c *Client) error { _, err := c.Token(context.Background(), "u", "p"); return err },
			want:   "Invalid credentials",
		},
		{
			name:   "result fallback",
			status: http.StatusNotFound,
			body:   `{"other":"x"}`,
			call:   func(c *Client) error { _, err := c.GetTaskResult(context.Background(), 3); return err },
			want:   "Failed to fetch task result",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, Options{})

			err := tt.call(c)
			require.Error(t, err)
			assert.Equal(t, tt.want, Message(err))
		})
	}
}

func TestToken_ValidationErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{
				{"loc": []any{"body", "username"}, "msg": "field required", "type": "value_error.missing"},
			},
		})
	}, Options{})

	_, err := c.Token(context.Background(), "", "")
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, MsgValidationFailed, apiErr.Message)
	require.Len(t, apiErr.ValidationErrors, 1)
	assert.Equal(t, "field required", apiErr.ValidationErrors[0].Msg)
}

func TestToken_FormEncoded(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/token", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		assert.Equal(t, "alice", r.PostForm.Get("username"))
		assert.Equal(t, "s3cret", r.PostForm.Get("password"))
		writeJSON(w, http.StatusOK, TokenResponse{AccessToken: "jwt-token", TokenType: "bearer"})
	}, Options{})

	tok, err := c.Token(context.Background(), "alice", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", tok.AccessToken)
}

func TestAuthenticatedCallsCarryBearerToken(t *testing.T) {
	var seen atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, User{ID: 1, Username: "alice"})
	}, Options{Tokens: StaticToken("abc.def.ghi")})

	user, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Bearer abc.def.ghi", seen.Load())
}

func TestCreateTask_Accepts201(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]any{"task_name": "Smoke Test"}, body)
		writeJSON(w, http.StatusCreated, Task{ID: 9, Name: "Smoke Test", Status: StatusCreated})
	}, Options{})

	task, err := c.CreateTask(context.Background(), "Smoke Test")
	require.NoError(t, err)
	assert.Equal(t, int64(9), task.ID)
	assert.Equal(t, StatusCreated, task.Status)
}

func TestCreateTaskWithSettings_FlattensSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Full", body["task_name"])
		assert.Equal(t, "anthropic", body["llm_provider"])
		assert.Equal(t, float64(1024), body["window_width"])
		writeJSON(w, http.StatusCreated, Task{ID: 2, Name: "Full", Status: StatusCreated})
	}, Options{})

	_, err := c.CreateTaskWithSettings(context.Background(), CreateTaskRequest{
		Name:            "Full",
		AgentSettings:   &AgentSettings{LLMProvider: "anthropic", LLMModel: "claude", Temperature: 0.2},
		BrowserSettings: &BrowserSettings{WindowWidth: 1024, WindowHeight: 768},
	})
	require.NoError(t, err)
}

func TestInitiateTask_AlwaysSendsContextLength(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/tasks/4/initiate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, Task{ID: 4, Status: StatusRunning})
	}, Options{})

	_, err := c.InitiateTask(context.Background(), 4, InitiateRequest{
		Instruction: "open the page",
		RunSettings: RunSettings{LLMProvider: "openai", LLMModel: "gpt-4o", ContextLength: 16000},
	})
	require.NoError(t, err)
	assert.Equal(t, float64(16000), body["context_length"])
	assert.Equal(t, "openai", body["llm_provider"])
	_, hasKey := body["api_key"]
	assert.False(t, hasKey, "empty api_key must be omitted")
}

func TestNoResponseFromServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	baseURL := srv.URL
	srv.Close()

	c := New(Options{BaseURL: baseURL, Logger: logging.Discard()})
	_, err := c.ListTasks(context.Background())

	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.Equal(t, MsgNoResponse, apiErr.Message)
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []TaskSummary{})
	}, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListTasks(ctx)
	assert.True(t, IsCancelled(err), "got %v", err)
}

func TestCancelCauseIsNotMistakenForResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}, Options{Retry: RetryConfig{MaxRetries: 2}})

	cause := &Error{Kind: KindServer, Status: http.StatusUnauthorized, Message: "from another call"}
	ctx, cancel := context.WithCancelCause(context.Background())
	time.AfterFunc(20*time.Millisecond, func() { cancel(cause) })

	_, err := c.Me(ctx)
	assert.True(t, IsCancelled(err), "got %v", err)
	assert.False(t, IsUnauthorized(err))
	assert.Equal(t, MsgCancelled, Message(err))
}

func TestIsUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	}, Options{})

	_, err := c.Me(context.Background())
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Could not validate credentials", Message(err))
	assert.False(t, IsUnauthorized(errors.New("plain")))
}

// flakyTransport fails the first n requests at the transport level.
type flakyTransport struct {
	failures int32
	calls    atomic.Int32
	next     http.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if f.calls.Add(1) <= f.failures {
		return nil, errors.New("connection reset")
	}
	return f.next.RoundTrip(r)
}

func TestGetRetriedOnTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []TaskSummary{{ID: 1, Name: "a", Status: StatusCreated}})
	}))
	t.Cleanup(srv.Close)

	transport := &flakyTransport{failures: 2, next: http.DefaultTransport}
	c := New(Options{
		BaseURL:    srv.URL,
		HTTPClient: &http.Client{Transport: transport},
		Retry:      RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond},
		Logger:     logging.Discard(),
	})

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
	assert.Equal(t, int32(3), transport.calls.Load())
}

func TestMutationsAreNotRetried(t *testing.T) {
	transport := &flakyTransport{failures: 1, next: http.DefaultTransport}
	c := New(Options{
		BaseURL:    "http://127.0.0.1:1",
		HTTPClient: &http.Client{Transport: transport},
		Retry:      RetryConfig{MaxRetries: 3, InitialInterval: time.Millisecond},
		Logger:     logging.Discard(),
	})

	_, err := c.CreateTask(context.Background(), "x")
	assert.Equal(t, MsgNoResponse, Message(err))
	assert.Equal(t, int32(1), transport.calls.Load())
}

func TestBreakerOpensAfterConsecutiveServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "overloaded"})
	}, Options{Breaker: BreakerConfig{ConsecutiveFailures: 2, OpenTimeout: time.Minute}})

	for i := 0; i < 2; i++ {
		_, err := c.ListTasks(context.Background())
		assert.Equal(t, "overloaded", Message(err))
	}

	_, err := c.ListTasks(context.Background())
	apiErr, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindNetwork, apiErr.Kind)
	assert.Equal(t, int32(2), hits.Load(), "open circuit must not reach the server")
}

func TestDownload_ResolvesRelativeURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/static/task_4.py", r.URL.Path)
		_, _ = io.WriteString(w, "print('hello')")
	}, Options{})

	var buf bytes.Buffer
	require.NoError(t, c.Download(context.Background(), "/static/task_4.py", &buf))
	assert.Equal(t, "print('hello')", buf.String())
}

func TestDownload_TokenOnlySentToBackend(t *testing.T) {
	var foreignAuth atomic.Value
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignAuth.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "cdn bytes")
	}))
	t.Cleanup(foreign.Close)

	var backendAuth atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		backendAuth.Store(r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, "backend bytes")
	}, Options{Tokens: StaticToken("secret-jwt")})

	var buf bytes.Buffer
	require.NoError(t, c.Download(context.Background(), foreign.URL+"/bucket/task_4.py", &buf))
	assert.Equal(t, "cdn bytes", buf.String())
	assert.Equal(t, "", foreignAuth.Load())

	buf.Reset()
	require.NoError(t, c.Download(context.Background(), "/static/task_4.py", &buf))
	assert.Equal(t, "Bearer secret-jwt", backendAuth.Load())
}
