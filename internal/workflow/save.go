package workflow

import (
	"time"

	"github.com/aristath/testscriptgen/internal/api"
	"github.com/aristath/testscriptgen/internal/events"
)

// Settings sections.
const (
	SectionAgent   = "agent"
	SectionBrowser = "browser"
)

// SaveAgentSettings writes the agent settings from the settings store to the
// task. A key typed in the agent tab is sealed before it is sent.
func (f *TaskForm) SaveAgentSettings() error {
	if f.isClosed() {
		return ErrClosed
	}

	payload := f.deps.Settings.AgentPayload()
	var key resolvedKey
	if typed := f.deps.Settings.Snapshot().Agent.APIKey; typed != "" {
		sealed, err := f.seal(typed)
		if err != nil {
			f.settingsSaved(SectionAgent, MsgEncryptionRequired)
			return err
		}
		payload.APIKey = sealed.Value
		key.value = sealed.Value
		if sealed.Encrypted {
			key.remember = storedKey(sealed.Value, payload.LLMProvider)
		}
	}

	task, err := f.deps.API.UpdateAgentSettings(f.ctx, f.id, payload)
	return f.afterSave(SectionAgent, task, err, key)
}

// SaveBrowserSettings writes the browser settings from the settings store to the task.
func (f *TaskForm) SaveBrowserSettings() error {
	if f.isClosed() {
		return ErrClosed
	}
	task, err := f.deps.API.UpdateBrowserSettings(f.ctx, f.id, f.deps.Settings.BrowserPayload())
	return f.afterSave(SectionBrowser, task, err, resolvedKey{})
}

func (f *TaskForm) afterSave(section string, task *api.Task, err error, key resolvedKey) error {
	if err != nil {
		if f.ctx.Err() != nil {
			return ErrClosed
		}
		f.settingsSaved(section, api.Message(err))
		return err
	}

	f.persistKey(key)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return ErrClosed
	}
	f.state.Task = task
	f.state.SubmitError = ""
	f.mu.Unlock()

	f.deps.Log.WithField("task_id", f.id).WithField("section", section).Info("settings saved")
	f.settingsSaved(section, "")
	return nil
}

func (f *TaskForm) settingsSaved(section, msg string) {
	publish(f.deps.Bus, events.SettingsSavedEvent{ID: f.id, Section: section, Message: msg, Timestamp: time.Now()})
}

func (f *TaskForm) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
