// Package metrics provides Prometheus-based metrics recording for pipeline
// and LLM operations, plus a query service for aggregating past runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records pipeline metrics. Pass nil method receivers are not
// supported; use NewNopRecorder where metrics are unwanted.
type Recorder struct {
	llmRequestsTotal *prometheus.CounterVec
	llmDuration      *prometheus.HistogramVec
	candidatesTotal  *prometheus.CounterVec
	roundsTotal      *prometheus.CounterVec
	graphConcepts    *prometheus.GaugeVec
	graphEdges       *prometheus.GaugeVec

	enabled bool
}

// NewRecorder creates a recorder registered with the default Prometheus
// registry.
func NewRecorder() *Recorder {
	return &Recorder{
		enabled: true,
		llmRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model, phase, and status",
			},
			[]string{"model", "phase", "status", "error_type"},
		),
		llmDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "phase"},
		),
		candidatesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "merge_candidates_total",
				Help: "Candidates processed by the merge engine, by outcome",
			},
			[]string{"run_id", "outcome"},
		),
		roundsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expansion_rounds_total",
				Help: "Expansion rounds executed, by status",
			},
			[]string{"run_id", "status"},
		),
		graphConcepts: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "graph_concepts",
				Help: "Number of concepts in the knowledge graph",
			},
			[]string{"run_id"},
		),
		graphEdges: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "graph_edges",
				Help: "Number of relationships in the knowledge graph",
			},
			[]string{"run_id"},
		),
	}
}

// NewNopRecorder creates a recorder that records nothing.
func NewNopRecorder() *Recorder {
	return &Recorder{}
}

// ObserveLLMRequest records one completed LLM call.
func (r *Recorder) ObserveLLMRequest(model, phase string, success bool, errorType string, duration time.Duration) {
	if !r.enabled {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	r.llmRequestsTotal.WithLabelValues(model, phase, status, errorType).Inc()
	r.llmDuration.WithLabelValues(model, phase).Observe(duration.Seconds())
}

// ObserveMerge records the outcome counts of one merge report.
func (r *Recorder) ObserveMerge(runID string, accepted, merged, rejected int) {
	if !r.enabled {
		return
	}
	r.candidatesTotal.WithLabelValues(runID, "accepted").Add(float64(accepted))
	r.candidatesTotal.WithLabelValues(runID, "merged").Add(float64(merged))
	r.candidatesTotal.WithLabelValues(runID, "rejected").Add(float64(rejected))
}

// ObserveRound records one expansion round by status ("ok" or "skipped").
func (r *Recorder) ObserveRound(runID, status string) {
	if !r.enabled {
		return
	}
	r.roundsTotal.WithLabelValues(runID, status).Inc()
}

// SetGraphSize records the current graph dimensions.
func (r *Recorder) SetGraphSize(runID string, concepts, edges int) {
	if !r.enabled {
		return
	}
	r.graphConcepts.WithLabelValues(runID).Set(float64(concepts))
	r.graphEdges.WithLabelValues(runID).Set(float64(edges))
}
