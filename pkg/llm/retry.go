package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"coursegraph/pkg/llm/llmerrors"
	"coursegraph/pkg/logx"
)

// RetryableClient wraps a Client with per-error-type retry budgets and
// exponential backoff. Non-retryable errors (auth, bad prompt) fail fast.
type RetryableClient struct {
	client  Client
	logger  *logx.Logger
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewRetryableClient creates a new retryable LLM client.
func NewRetryableClient(client Client) *RetryableClient {
	return &RetryableClient{
		client:  client,
		logger:  logx.NewLogger("llm"),
		sleepFn: ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Complete implements Client with retry logic.
func (r *RetryableClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		resp, err := r.client.Complete(ctx, req)
		if err == nil {
			if resp.Content == "" {
				err = llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse, "completion returned no content")
			} else {
				return resp, nil
			}
		}
		lastErr = err

		cfg := retryConfigFor(err)
		if cfg.MaxRetries == 0 || attempt >= cfg.MaxRetries {
			break
		}

		delay := backoffDelay(cfg, attempt+1)
		r.logger.Debug("completion failed (attempt %d/%d), retrying in %v: %v",
			attempt+1, cfg.MaxRetries, delay, err)

		if err := r.sleepFn(ctx, delay); err != nil {
			return CompletionResponse{}, err
		}
	}

	return CompletionResponse{}, fmt.Errorf("completion failed after retries: %w", lastErr)
}

// GetModelName returns the wrapped client's model name.
func (r *RetryableClient) GetModelName() string {
	return r.client.GetModelName()
}

func retryConfigFor(err error) llmerrors.RetryConfig {
	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		if !llmErr.IsRetryable() {
			return llmerrors.RetryConfig{MaxRetries: 0}
		}
		return llmErr.GetRetryConfig()
	}
	return llmerrors.DefaultRetryConfigs[llmerrors.ErrorTypeUnknown]
}

func backoffDelay(cfg llmerrors.RetryConfig, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialDelay) * math.Pow(cfg.BackoffFactor, float64(attempt-1)))
	if delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}
	if cfg.Jitter && delay > 0 {
		jitter := time.Duration(rand.Int63n(int64(delay) / 5)) //nolint:gosec // Jitter does not need crypto randomness
		delay += jitter
	}
	return delay
}
