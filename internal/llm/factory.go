package llm

import (
	"errors"
	"fmt"
	"time"
)

// ErrDisabled is returned by NewSummarizer when the provider is "none".
// Callers treat it as "summaries are not configured", not a failure.
var ErrDisabled = errors.New("llm provider disabled")

// FactoryConfig holds the parameters needed to create a Summarizer.
// This is defined in the llm package to avoid importing the config package,
// keeping the llm package free of infrastructure dependencies.
type FactoryConfig struct {
	// Provider is the LLM provider name ("openai", "anthropic" or "none").
	Provider string
	// Temperature is the LLM temperature setting.
	Temperature float64
	// Timeout is the timeout for LLM API calls.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for failed calls.
	MaxRetries int
	// OpenAI contains OpenAI-specific settings.
	OpenAI OpenAIConfig
	// Anthropic contains Anthropic-specific settings.
	Anthropic AnthropicConfig
}

// NewSummarizer creates a Summarizer based on the configuration. Supports
// "openai" and "anthropic" providers; "none" (or empty) returns ErrDisabled
// so the service can run without summarization.
func NewSummarizer(cfg FactoryConfig) (Summarizer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIProvider(cfg.OpenAI, cfg.Temperature, cfg.Timeout, cfg.MaxRetries), nil
	case "anthropic":
		return NewAnthropicProvider(cfg.Anthropic, cfg.Temperature, cfg.Timeout, cfg.MaxRetries), nil
	case "none", "":
		return nil, ErrDisabled
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
