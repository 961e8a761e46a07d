package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingClient captures the request that reaches the backend.
type recordingClient struct {
	lastReq CompletionRequest
}

func (r *recordingClient) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.lastReq = req
	return CompletionResponse{Content: "ok"}, nil
}

func (r *recordingClient) GetModelName() string { return "recording" }

func TestNewCompletionRequestLeavesTuningUnset(t *testing.T) {
	req := NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")})
	assert.Zero(t, req.MaxTokens)
	assert.Zero(t, req.Temperature)
}

func TestConfiguredDefaultsReachBackend(t *testing.T) {
	backend := &recordingClient{}
	client := NewClientWithDefaults(backend, 4096, 0.7)

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, 4096, backend.lastReq.MaxTokens)
	assert.Equal(t, float32(0.7), backend.lastReq.Temperature)
}

func TestConfiguredDefaultsSurviveRetryWrapping(t *testing.T) {
	// Same stack the factory builds: retry on top, defaults below.
	backend := &recordingClient{}
	client := NewRetryableClient(NewClientWithDefaults(backend, 2048, 0.5))

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, 2048, backend.lastReq.MaxTokens)
	assert.Equal(t, float32(0.5), backend.lastReq.Temperature)
}

func TestExplicitRequestValuesWin(t *testing.T) {
	backend := &recordingClient{}
	client := NewClientWithDefaults(backend, 4096, 0.7)

	req := NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")})
	req.MaxTokens = 128
	req.Temperature = 0.9

	_, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 128, backend.lastReq.MaxTokens)
	assert.Equal(t, float32(0.9), backend.lastReq.Temperature)
}

func TestZeroConfigFallsBackToPackageDefaults(t *testing.T) {
	backend := &recordingClient{}
	client := NewClientWithDefaults(backend, 0, 0)

	_, err := client.Complete(context.Background(), NewCompletionRequest([]CompletionMessage{NewUserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxTokens, backend.lastReq.MaxTokens)
	assert.Equal(t, float32(TemperatureDefault), backend.lastReq.Temperature)
}
