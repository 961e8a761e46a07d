// Package factory wires provider names to concrete LLM client backends.
package factory

import (
	"fmt"

	"coursegraph/pkg/llm"
	"coursegraph/pkg/llm/anthropic"
	"coursegraph/pkg/llm/google"
	"coursegraph/pkg/llm/ollama"
	"coursegraph/pkg/llm/openai"
	"coursegraph/pkg/metrics"
)

// Known provider names accepted in configuration.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderOllama    = "ollama"
)

// NewClient builds a retry-wrapped client for the configured provider.
// The openai provider accepts a BaseURL override for OpenAI-compatible
// servers (vLLM, LM Studio); ollama reads BaseURL as the server address.
func NewClient(provider string, cfg llm.Config) (llm.Client, error) {
	raw, err := newRaw(provider, cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewRetryableClient(raw), nil
}

// NewInstrumentedClient builds a retry-wrapped client whose individual
// attempts are recorded under the given phase label. The instrumentation
// sits below the retry layer so every attempt is counted.
func NewInstrumentedClient(provider string, cfg llm.Config, recorder *metrics.Recorder, phase string) (llm.Client, error) {
	raw, err := newRaw(provider, cfg)
	if err != nil {
		return nil, err
	}
	return llm.NewRetryableClient(llm.NewInstrumentedClient(raw, recorder, phase)), nil
}

// newRaw builds the provider backend and binds the configured MaxTokens and
// Temperature to it, so requests built without explicit tuning carry the
// configured values rather than package defaults.
func newRaw(provider string, cfg llm.Config) (llm.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid LLM config: %w", err)
	}

	var backend llm.Client
	switch provider {
	case ProviderAnthropic:
		backend = anthropic.NewClient(cfg.APIKey, cfg.ModelName)
	case ProviderOpenAI:
		backend = openai.NewClient(cfg.APIKey, cfg.BaseURL, cfg.ModelName)
	case ProviderGoogle:
		backend = google.NewClient(cfg.APIKey, cfg.ModelName)
	case ProviderOllama:
		backend = ollama.NewClient(cfg.BaseURL, cfg.ModelName)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", provider)
	}
	return llm.NewClientWithDefaults(backend, cfg.MaxTokens, cfg.Temperature), nil
}
