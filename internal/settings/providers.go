package settings

import "fmt"

// Provider identifies an LLM vendor supported by the execution backend.
type Provider string

const (
	ProviderOpenAI      Provider = "openai"
	ProviderAnthropic   Provider = "anthropic"
	ProviderDeepSeek    Provider = "deepseek"
	ProviderGoogle      Provider = "google"
	ProviderOllama      Provider = "ollama"
	ProviderAzureOpenAI Provider = "azure_openai"
	ProviderMistral     Provider = "mistral"
	ProviderAlibaba     Provider = "alibaba"
	ProviderMoonshot    Provider = "moonshot"
	ProviderUnbound     Provider = "unbound"
	ProviderSiliconFlow Provider = "siliconflow"
	ProviderIBM         Provider = "ibm"
)

// Providers lists every provider in display order.
var Providers = []Provider{
	ProviderOpenAI,
	ProviderAnthropic,
	ProviderDeepSeek,
	ProviderGoogle,
	ProviderOllama,
	ProviderAzureOpenAI,
	ProviderMistral,
	ProviderAlibaba,
	ProviderMoonshot,
	ProviderUnbound,
	ProviderSiliconFlow,
	ProviderIBM,
}

// ModelOptions are the suggested model names. The model field stays freeform.
var ModelOptions = []string{
	"gpt-4o",
	"gpt-4",
	"gpt-3.5-turbo",
	"o3-mini",
}

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// UsesContextLength reports whether the provider reads the context length
// setting. The value is sent for every provider regardless.
func (p Provider) UsesContextLength() bool {
	return p == ProviderOllama
}

// ParseProvider validates a provider name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown LLM provider %q", s)
	}
	return p, nil
}
