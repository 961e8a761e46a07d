package llm

import (
	"context"
	"time"

	"coursegraph/pkg/llm/llmerrors"
	"coursegraph/pkg/metrics"
)

// InstrumentedClient wraps a Client and records every completion call to a
// metrics recorder. Wrap the raw transport, not the RetryableClient, so each
// retry attempt is counted individually.
type InstrumentedClient struct {
	client   Client
	recorder *metrics.Recorder
	phase    string
}

// NewInstrumentedClient creates an instrumented client. phase labels which
// pipeline stage the calls belong to ("extract", "expand", "course").
func NewInstrumentedClient(client Client, recorder *metrics.Recorder, phase string) *InstrumentedClient {
	return &InstrumentedClient{client: client, recorder: recorder, phase: phase}
}

// Complete implements Client.
func (i *InstrumentedClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	start := time.Now()
	resp, err := i.client.Complete(ctx, req)

	errorType := ""
	if err != nil {
		errorType = llmerrors.TypeOf(err).String()
	}
	i.recorder.ObserveLLMRequest(i.client.GetModelName(), i.phase, err == nil, errorType, time.Since(start))
	return resp, err
}

// GetModelName returns the wrapped client's model name.
func (i *InstrumentedClient) GetModelName() string {
	return i.client.GetModelName()
}
