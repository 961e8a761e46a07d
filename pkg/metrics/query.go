package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// RunMetrics is the aggregated view of one pipeline run queried back from
// Prometheus.
type RunMetrics struct {
	RunID           string  `json:"run_id"`
	LLMRequests     int64   `json:"llm_requests"`
	LLMErrorRate    float64 `json:"llm_error_rate"`
	CandidatesTotal int64   `json:"candidates_total"`
	RoundsOk        int64   `json:"rounds_ok"`
	RoundsSkipped   int64   `json:"rounds_skipped"`
}

// QueryService queries aggregated pipeline metrics from a Prometheus server.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a metrics query service for the given Prometheus
// address.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{Address: prometheusURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetRunMetrics aggregates the recorded metrics for one run.
func (q *QueryService) GetRunMetrics(ctx context.Context, runID string) (*RunMetrics, error) {
	out := &RunMetrics{RunID: runID}

	total, err := q.scalar(ctx, `sum(llm_requests_total)`)
	if err != nil {
		return nil, err
	}
	out.LLMRequests = int64(total)

	if total > 0 {
		errs, err := q.scalar(ctx, `sum(llm_requests_total{status="error"})`)
		if err != nil {
			return nil, err
		}
		out.LLMErrorRate = errs / total
	}

	candidates, err := q.scalar(ctx, fmt.Sprintf(`sum(merge_candidates_total{run_id=%q})`, runID))
	if err != nil {
		return nil, err
	}
	out.CandidatesTotal = int64(candidates)

	ok, err := q.scalar(ctx, fmt.Sprintf(`sum(expansion_rounds_total{run_id=%q, status="ok"})`, runID))
	if err != nil {
		return nil, err
	}
	out.RoundsOk = int64(ok)

	skipped, err := q.scalar(ctx, fmt.Sprintf(`sum(expansion_rounds_total{run_id=%q, status="skipped"})`, runID))
	if err != nil {
		return nil, err
	}
	out.RoundsSkipped = int64(skipped)

	return out, nil
}

// scalar runs an instant query and returns the first vector sample, or 0
// when the series does not exist yet.
func (q *QueryService) scalar(ctx context.Context, query string) (float64, error) {
	result, _, err := q.queryAPI.Query(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to query %q: %w", query, err)
	}
	if vector, ok := result.(model.Vector); ok && len(vector) > 0 {
		return float64(vector[0].Value), nil
	}
	return 0, nil
}
