package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/config"
	"github.com/aristath/testscriptgen/internal/devserver"
	"github.com/aristath/testscriptgen/internal/logging"
)

// cliEnv isolates the CLI from the developer's home directory and points it
// at a stub backend.
type cliEnv struct {
	dir        string
	configPath string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv(config.EnvBaseURL, "")
	t.Setenv(config.EnvPublicKey, "")
	t.Setenv(config.EnvPublicKeyFile, "")
	t.Setenv(config.EnvStorePath, "")

	srv, err := devserver.New(devserver.Options{RunDelay: 30 * time.Millisecond, Log: logging.Discard()})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = ts.URL + "/api/v1"
	cfg.Storage.Path = filepath.Join(dir, "atsg.db")
	cfg.Log.Level = "ERROR"
	cfg.UI.Poll.InitialIntervalMs = 10
	cfg.UI.Poll.MaxIntervalMs = 50

	configPath := filepath.Join(dir, "config.json")
	require.NoError(t, config.Save(cfg, configPath))
	return &cliEnv{dir: dir, configPath: configPath}
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCLIEndToEnd(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "whoami")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")

	out, err := env.run(t, "login", "-u", "admin", "-p", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as admin")

	out, err = env.run(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "admin (id 1)")

	out, err = env.run(t, "tasks", "create", "  Smoke Test  ")
	require.NoError(t, err)
	assert.Contains(t, out, `Created task 1 "Smoke Test" (created)`)

	out, err = env.run(t, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Smoke Test")
	assert.Contains(t, out, "created")

	out, err = env.run(t, "tasks", "initiate", "1",
		"--instruction", "Open example.com and search",
		"--search-input", "golang",
		"--provider", "ollama",
		"--wait", "--timeout", "5s")
	require.NoError(t, err)
	assert.Contains(t, out, "Task initiated successfully!")
	assert.Contains(t, out, `"status": "running"`)
	assert.Contains(t, out, "Status: completed")
	assert.Contains(t, out, "Script:")

	out, err = env.run(t, "tasks", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "ollama")
	assert.NotContains(t, out, "Not set")

	out, err = env.run(t, "result", "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "/static/")

	script := filepath.Join(env.dir, "script.py")
	_, err = env.run(t, "result", "download", "1", "-o", script)
	require.NoError(t, err)
	body, err := os.ReadFile(script)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Smoke Test")

	_, err = env.run(t, "tasks", "delete", "1")
	require.NoError(t, err)
	out, err = env.run(t, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks found.")

	_, err = env.run(t, "logout")
	require.NoError(t, err)
	_, err = env.run(t, "tasks", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestCLIErrors(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run(t, "login", "-u", "admin", "-p", "wrong")
	require.Error(t, err)
	assert.Equal(t, "Incorrect username or password", err.Error())

	_, err = env.run(t, "login", "-u", "admin", "-p", "admin")
	require.NoError(t, err)

	_, err = env.run(t, "tasks", "create", "   ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Task name is required")

	_, err = env.run(t, "tasks", "show", "99")
	require.Error(t, err)
	assert.Equal(t, "Task not found", err.Error())

	_, err = env.run(t, "tasks", "show", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid task id")

	_, err = env.run(t, "tasks", "create", "Empty")
	require.NoError(t, err)
	_, err = env.run(t, "tasks", "initiate", "1")
	require.Error(t, err)
	assert.Equal(t, "Please enter at least a task name and instruction.", err.Error())

	_, err = env.run(t, "result", "show", "1")
	require.Error(t, err)
	assert.Equal(t, "Result not found", err.Error())
}

func TestDescribe(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, plain, describe(plain))

	err := describe(&api.Error{
		Kind:    api.KindServer,
		Status:  http.StatusUnprocessableEntity,
		Message: api.MsgValidationFailed,
		ValidationErrors: []api.ValidationError{
			{Loc: []any{"body", "instruction"}, Msg: "field required"},
		},
	})
	lines := strings.Split(err.Error(), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, api.MsgValidationFailed, lines[0])
	assert.Contains(t, lines[1], "instruction")
}

func TestParseID(t *testing.T) {
	tests := []struct {
		arg     string
		want    int64
		wantErr bool
	}{
		{"1", 1, false},
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseID(tt.arg)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseID(%q) = %d, %v", tt.arg, got, err)
		}
	}
}
