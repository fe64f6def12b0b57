package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/aristath/testscriptgen/internal/settings"
	"github.com/aristath/testscriptgen/internal/workflow"
)

// agentFields are the Agent Settings tab bindings (strings for Huh).
type agentFields struct {
	provider      string
	model         string
	temperature   string
	useVision     bool
	contextLength string
	baseURL       string
	apiKey        string
}

func agentFieldsFrom(a settings.AgentSettings) agentFields {
	return agentFields{
		provider:      string(a.Provider),
		model:         a.Model,
		temperature:   strconv.FormatFloat(a.Temperature, 'f', -1, 64),
		useVision:     a.UseVision,
		contextLength: strconv.Itoa(a.ContextLength),
		baseURL:       a.BaseURL,
		apiKey:        a.APIKey,
	}
}

// patch converts the bindings into a settings patch. The form validators
// guarantee the numbers parse.
func (f agentFields) patch() settings.AgentPatch {
	temp, _ := strconv.ParseFloat(strings.TrimSpace(f.temperature), 64)
	ctxLen, _ := strconv.Atoi(strings.TrimSpace(f.contextLength))
	return settings.AgentPatch{
		Provider:      settings.Ptr(settings.Provider(f.provider)),
		Model:         settings.Ptr(strings.TrimSpace(f.model)),
		Temperature:   &temp,
		UseVision:     &f.useVision,
		ContextLength: &ctxLen,
		BaseURL:       settings.Ptr(strings.TrimSpace(f.baseURL)),
		APIKey:        &f.apiKey,
	}
}

// browserFields are the Browser Settings tab bindings.
type browserFields struct {
	keepOpen        bool
	headless        bool
	disableSecurity bool
	windowWidth     string
	windowHeight    string
}

func browserFieldsFrom(b settings.BrowserSettings) browserFields {
	return browserFields{
		keepOpen:        b.KeepOpen,
		headless:        b.Headless,
		disableSecurity: b.DisableSecurity,
		windowWidth:     strconv.Itoa(b.WindowWidth),
		windowHeight:    strconv.Itoa(b.WindowHeight),
	}
}

func (f browserFields) patch() settings.BrowserPatch {
	w, _ := strconv.Atoi(strings.TrimSpace(f.windowWidth))
	h, _ := strconv.Atoi(strings.TrimSpace(f.windowHeight))
	return settings.BrowserPatch{
		KeepOpen:        &f.keepOpen,
		Headless:        &f.headless,
		DisableSecurity: &f.disableSecurity,
		WindowWidth:     &w,
		WindowHeight:    &h,
	}
}

func floatIn(lo, hi float64, label string) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || v < lo || v > hi {
			return fmt.Errorf("%s must be between %g and %g", label, lo, hi)
		}
		return nil
	}
}

func intIn(lo, hi int, label string) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil || v < lo || (hi > 0 && v > hi) {
			if hi > 0 {
				return fmt.Errorf("%s must be between %d and %d", label, lo, hi)
			}
			return fmt.Errorf("%s must be at least %d", label, lo)
		}
		return nil
	}
}

func providerOptions() []huh.Option[string] {
	opts := make([]huh.Option[string], 0, len(settings.Providers))
	for _, p := range settings.Providers {
		opts = append(opts, huh.NewOption(string(p), string(p)))
	}
	return opts
}

// buildAgentForm constructs the Agent Settings form bound to f.
func buildAgentForm(f *agentFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("provider").
				Title("LLM Provider").
				Options(providerOptions()...).
				Height(6).
				Value(&f.provider),

			huh.NewInput().
				Key("model").
				Title("LLM Model").
				Suggestions(settings.ModelOptions).
				Placeholder("gpt-4o").
				Validate(required("Model")).
				Value(&f.model),

			huh.NewInput().
				Key("temperature").
				Title("Temperature").
				Description("0 to 2").
				Validate(floatIn(settings.MinTemperature, settings.MaxTemperature, "Temperature")).
				Value(&f.temperature),

			huh.NewConfirm().
				Key("useVision").
				Title("Use Vision").
				Value(&f.useVision),
		).Title("Model"),

		huh.NewGroup(
			huh.NewInput().
				Key("contextLength").
				Title("Context Length").
				Description("Used by ollama").
				Validate(intIn(settings.MinContextLength, settings.MaxContextLength, "Context length")).
				Value(&f.contextLength),

			huh.NewInput().
				Key("baseURL").
				Title("Base URL").
				Placeholder("https://api.openai.com/v1").
				Value(&f.baseURL),

			huh.NewInput().
				Key("apiKey").
				Title("API Key").
				Description("Encrypted before it leaves this machine").
				EchoMode(huh.EchoModePassword).
				Value(&f.apiKey),
		).Title("Endpoint"),
	).WithShowHelp(false)
}

// buildBrowserForm constructs the Browser Settings form bound to f.
func buildBrowserForm(f *browserFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("keepOpen").
				Title("Keep Browser Open").
				Value(&f.keepOpen),

			huh.NewConfirm().
				Key("headless").
				Title("Headless Mode").
				Value(&f.headless),

			huh.NewConfirm().
				Key("disableSecurity").
				Title("Disable Security").
				Value(&f.disableSecurity),

			huh.NewInput().
				Key("windowWidth").
				Title("Window Width").
				Validate(intIn(1, 0, "Window width")).
				Value(&f.windowWidth),

			huh.NewInput().
				Key("windowHeight").
				Title("Window Height").
				Validate(intIn(1, 0, "Window height")).
				Value(&f.windowHeight),
		).Title("Browser"),
	).WithShowHelp(false)
}

// buildRunForm constructs the Run Agent form bound to f.
func buildRunForm(f *workflow.Fields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Task Name").
				Value(&f.Name),

			huh.NewText().
				Key("instruction").
				Title("Instruction").
				Placeholder("What should the agent do?").
				Lines(4).
				Value(&f.Instruction),

			huh.NewText().
				Key("description").
				Title("Description").
				Lines(2).
				Value(&f.Description),
		).Title("Task"),

		huh.NewGroup(
			huh.NewInput().
				Key("searchInput").
				Title("Search Input").
				Value(&f.SearchInput),

			huh.NewInput().
				Key("searchAction").
				Title("Search Action").
				Value(&f.SearchAction),

			huh.NewInput().
				Key("expectedOutcome").
				Title("Expected Outcome").
				Value(&f.ExpectedOutcome),

			huh.NewInput().
				Key("expectedStatus").
				Title("Expected Status").
				Value(&f.ExpectedStatus),

			huh.NewInput().
				Key("apiKey").
				Title("API Key").
				Description("Leave empty to reuse the saved key").
				EchoMode(huh.EchoModePassword).
				Value(&f.APIKey),
		).Title("Expectations"),
	).WithShowHelp(false)
}
