// Package settings holds the agent and browser settings currently being edited.
package settings

import (
	"errors"
	"fmt"
	"strings"
)

// Limits enforced on agent and browser settings.
const (
	MinTemperature   = 0.0
	MaxTemperature   = 2.0
	MinContextLength = 256
	MaxContextLength = 65536
)

// ErrInvalid wraps every settings validation failure.
var ErrInvalid = errors.New("invalid settings")

// AgentSettings configures the LLM driving the automation agent.
type AgentSettings struct {
	Provider      Provider
	Model         string
	Temperature   float64
	UseVision     bool
	ContextLength int
	BaseURL       string
	APIKey        string // plaintext, typed this session; never loaded from a task
}

// BrowserSettings configures the automation's browser instance.
type BrowserSettings struct {
	KeepOpen        bool
	Headless        bool
	DisableSecurity bool
	WindowWidth     int
	WindowHeight    int
}

// Settings is the full set of values shown in the settings tabs.
type Settings struct {
	Agent   AgentSettings
	Browser BrowserSettings
}

// Defaults returns the settings used at startup and after returning to the task list.
func Defaults() Settings {
	return Settings{
		Agent: AgentSettings{
			Provider:      ProviderOpenAI,
			Model:         "gpt-4o",
			Temperature:   0.6,
			UseVision:     true,
			ContextLength: 16000,
		},
		Browser: BrowserSettings{
			KeepOpen:        true,
			Headless:        false,
			DisableSecurity: true,
			WindowWidth:     1280,
			WindowHeight:    720,
		},
	}
}

// Validate checks agent settings ranges.
func (a AgentSettings) Validate() error {
	if !a.Provider.Valid() {
		return fmt.Errorf("%w: unknown LLM provider %q", ErrInvalid, a.Provider)
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("%w: model name is required", ErrInvalid)
	}
	if a.Temperature < MinTemperature || a.Temperature > MaxTemperature {
		return fmt.Errorf("%w: temperature must be between %.0f and %.0f", ErrInvalid, MinTemperature, MaxTemperature)
	}
	if a.ContextLength < MinContextLength || a.ContextLength > MaxContextLength {
		return fmt.Errorf("%w: context length must be between %d and %d", ErrInvalid, MinContextLength, MaxContextLength)
	}
	return nil
}

// Validate checks browser settings ranges.
func (b BrowserSettings) Validate() error {
	if b.WindowWidth <= 0 || b.WindowHeight <= 0 {
		return fmt.Errorf("%w: window size must be positive", ErrInvalid)
	}
	return nil
}

// AgentPatch is a partial update. Nil fields are left unchanged.
type AgentPatch struct {
	Provider      *Provider
	Model         *string
	Temperature   *float64
	UseVision     *bool
	ContextLength *int
	BaseURL       *string
	APIKey        *string
}

// BrowserPatch is a partial update. Nil fields are left unchanged.
type BrowserPatch struct {
	KeepOpen        *bool
	Headless        *bool
	DisableSecurity *bool
	WindowWidth     *int
	WindowHeight    *int
}

func (p AgentPatch) apply(a AgentSettings) AgentSettings {
	if p.Provider != nil {
		a.Provider = *p.Provider
	}
	if p.Model != nil {
		a.Model = *p.Model
	}
	if p.Temperature != nil {
		a.Temperature = *p.Temperature
	}
	if p.UseVision != nil {
		a.UseVision = *p.UseVision
	}
	if p.ContextLength != nil {
		a.ContextLength = *p.ContextLength
	}
	if p.BaseURL != nil {
		a.BaseURL = *p.BaseURL
	}
	if p.APIKey != nil {
		a.APIKey = *p.APIKey
	}
	return a
}

func (p BrowserPatch) apply(b BrowserSettings) BrowserSettings {
	if p.KeepOpen != nil {
		b.KeepOpen = *p.KeepOpen
	}
	if p.Headless != nil {
		b.Headless = *p.Headless
	}
	if p.DisableSecurity != nil {
		b.DisableSecurity = *p.DisableSecurity
	}
	if p.WindowWidth != nil {
		b.WindowWidth = *p.WindowWidth
	}
	if p.WindowHeight != nil {
		b.WindowHeight = *p.WindowHeight
	}
	return b
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
