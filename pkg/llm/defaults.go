package llm

import "context"

// defaultedClient fills unset request tuning fields from configured values
// before they reach the backend, so config knobs apply to every call site
// without each one re-reading configuration.
type defaultedClient struct {
	client      Client
	maxTokens   int
	temperature float32
}

// NewClientWithDefaults wraps a client so requests that leave MaxTokens or
// Temperature unset get the given values. Non-positive arguments fall back
// to the package defaults.
func NewClientWithDefaults(client Client, maxTokens int, temperature float32) Client {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if temperature <= 0 {
		temperature = TemperatureDefault
	}
	return &defaultedClient{client: client, maxTokens: maxTokens, temperature: temperature}
}

// Complete implements Client. Explicitly set request fields win over the
// configured defaults.
func (d *defaultedClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = d.maxTokens
	}
	if req.Temperature <= 0 {
		req.Temperature = d.temperature
	}
	return d.client.Complete(ctx, req)
}

// GetModelName returns the wrapped client's model name.
func (d *defaultedClient) GetModelName() string {
	return d.client.GetModelName()
}
