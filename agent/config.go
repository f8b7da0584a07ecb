package agent

import (
	"fmt"

	"github.com/airuntime/core/providers"
	"github.com/airuntime/core/providers/anthropic"
	"github.com/airuntime/core/providers/gemini"
	"github.com/airuntime/core/providers/ollama"
	"github.com/airuntime/core/providers/openai"
)

// Provider identifies which providers.Service implementation Config.Build
// resolves, the generalized form of the teacher's OpenAI/Ollama-only enum.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
)

// Config holds the bootstrap configuration for a single-provider Agent,
// mirroring the teacher's Config shape but resolving to a providers.Service
// rather than an embedded SDK client.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string
	BaseURL  string // for Ollama or custom-hosted endpoints
}

// Build resolves Config into a providers.Service, the generalized
// replacement for the teacher's NewAgent client bootstrap.
func (c Config) Build() (providers.Service, error) {
	if c.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	cfg := providers.ServiceConfig{APIKey: c.APIKey, BaseURL: c.BaseURL, DefaultModel: c.Model}

	switch c.Provider {
	case ProviderOpenAI:
		if c.APIKey == "" {
			return nil, fmt.Errorf("API key is required for %s", c.Provider)
		}
		return openai.New(cfg)
	case ProviderAnthropic:
		if c.APIKey == "" {
			return nil, fmt.Errorf("API key is required for %s", c.Provider)
		}
		return anthropic.New(cfg)
	case ProviderGemini:
		if c.APIKey == "" {
			return nil, fmt.Errorf("API key is required for %s", c.Provider)
		}
		return gemini.New(cfg)
	case ProviderOllama:
		if cfg.BaseURL == "" {
			cfg.BaseURL = "http://localhost:11434"
		}
		return ollama.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", c.Provider)
	}
}

// NewAgent builds an Agent from Config, the generalized replacement for
// the teacher's NewAgent(config Config) (*Agent, error) bootstrap.
func NewAgent(name, description, instructions string, config Config) (*Agent, error) {
	svc, err := config.Build()
	if err != nil {
		return nil, err
	}
	return New(name, description, instructions, config.Model, svc), nil
}
