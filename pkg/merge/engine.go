// Package merge implements the batch ingest engine: validation, concept and
// edge upserts, conflict resolution, and prerequisite cycle breaking.
package merge

import (
	"fmt"
	"sort"
	"sync"

	"coursegraph/pkg/graph"
	"coursegraph/pkg/logx"
	"coursegraph/pkg/proposal"
)

// RejectReason classifies why a candidate did not make it into the graph.
type RejectReason string

const (
	ReasonInvalidConcept  RejectReason = "invalid-concept"
	ReasonInvalidEdge     RejectReason = "invalid-edge"
	ReasonSelfLoop        RejectReason = "self-loop"
	ReasonConflict        RejectReason = "conflict"
	ReasonCycleBroken     RejectReason = "cycle-broken"
	ReasonDanglingDropped RejectReason = "dangling-dropped"
)

// Rejection records one dropped candidate and why.
type Rejection struct {
	Reason RejectReason `json:"reason"`
	Detail string       `json:"detail"`
}

// Report summarizes one Ingest call. Per-item failures land in Rejected;
// the batch itself never fails.
type Report struct {
	Provenance string      `json:"provenance"`
	Accepted   int         `json:"accepted"`
	Merged     int         `json:"merged"`
	Rejected   []Rejection `json:"rejected,omitempty"`
}

// RejectedCount returns the number of rejected candidates.
func (r *Report) RejectedCount() int { return len(r.Rejected) }

func (r *Report) reject(reason RejectReason, format string, args ...any) {
	r.Rejected = append(r.Rejected, Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)})
}

// Engine applies proposal batches to a graph store. Ingest calls on one
// engine are serialized; identifier resolution and cycle bookkeeping are not
// safe under interleaving.
type Engine struct {
	mu     sync.Mutex
	store  *graph.Store
	logger *logx.Logger
}

// NewEngine creates a merge engine bound to one graph store.
func NewEngine(store *graph.Store) *Engine {
	return &Engine{
		store:  store,
		logger: logx.NewLogger("merge"),
	}
}

// Ingest applies one batch: concepts first so edges can resolve their
// endpoints, then edges, then a cycle sweep over the prerequisite subgraph.
// Malformed items are rejected individually and never abort the batch.
func (e *Engine) Ingest(batch proposal.Batch) Report {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := Report{Provenance: batch.Provenance}

	for i := range batch.Concepts {
		c := &batch.Concepts[i]
		if err := c.Validate(); err != nil {
			report.reject(ReasonInvalidConcept, "%v", err)
			continue
		}
		_, merged, err := e.store.UpsertConcept(graph.Concept{
			Name:        c.Name,
			Description: c.Description,
			Category:    c.Category,
			KeyIdeas:    c.KeyIdeas,
			Confidence:  c.Confidence,
			Provenance:  []string{batch.Provenance},
		})
		if err != nil {
			report.reject(ReasonInvalidConcept, "%v", err)
			continue
		}
		if merged {
			report.Merged++
		} else {
			report.Accepted++
		}
	}

	// Edges queued as dangling in earlier batches get another chance now
	// that this batch's concepts have landed.
	applied, dropped := e.store.RetryPending()
	report.Accepted += len(applied)
	for _, rel := range dropped {
		report.reject(ReasonDanglingDropped, "edge %s -> %s (%s) endpoints never arrived", rel.Source, rel.Target, rel.Type)
	}

	for i := range batch.Edges {
		e.ingestEdge(&batch.Edges[i], &report)
	}

	e.breakCycles(&report)

	e.logger.Info("ingest %s: accepted=%d merged=%d rejected=%d",
		batch.Provenance, report.Accepted, report.Merged, len(report.Rejected))
	return report
}

func (e *Engine) ingestEdge(c *proposal.EdgeCandidate, report *Report) {
	if err := c.Validate(); err != nil {
		report.reject(ReasonInvalidEdge, "%v", err)
		return
	}

	rel := graph.Relationship{
		Source:     graph.NormalizeName(c.Source),
		Target:     graph.NormalizeName(c.Target),
		Type:       c.Type,
		Weight:     c.Weight,
		Provenance: []string{report.Provenance},
	}
	if rel.Source == rel.Target {
		report.reject(ReasonSelfLoop, "edge %s -> %s", rel.Source, rel.Target)
		return
	}

	// A prerequisite in both directions between the same pair is a direct
	// contradiction; resolve it here rather than leaving it to the cycle
	// sweep so the report names it a conflict.
	if rel.Type == graph.RelPrerequisite {
		reverseKey := graph.EdgeKey{Source: rel.Target, Target: rel.Source, Type: graph.RelPrerequisite}
		if reverse, ok := e.store.GetEdge(reverseKey); ok {
			// Higher cumulative confidence wins. On a tie the direction
			// that arrived first stays.
			if rel.Weight > reverse.Weight {
				e.store.RemoveEdge(reverseKey)
				report.reject(ReasonConflict, "edge %s -> %s (%s) displaced by reverse direction with weight %v > %v",
					reverse.Source, reverse.Target, reverse.Type, rel.Weight, reverse.Weight)
			} else {
				report.reject(ReasonConflict, "edge %s -> %s (%s) loses to existing reverse direction (weight %v <= %v)",
					rel.Source, rel.Target, rel.Type, rel.Weight, reverse.Weight)
				return
			}
		}
	}

	outcome, err := e.store.UpsertEdge(rel)
	if err != nil {
		report.reject(ReasonInvalidEdge, "%v", err)
		return
	}
	switch outcome {
	case graph.EdgeAdded:
		report.Accepted++
	case graph.EdgeStrengthened:
		report.Merged++
	case graph.EdgeDeferred:
		// Queued in the pending buffer; counted when it resolves.
		e.logger.Debug("edge %s -> %s deferred, endpoint missing", rel.Source, rel.Target)
	}
}

// breakCycles removes edges until the prerequisite subgraph is acyclic.
// On each cycle the lowest-weight edge goes; ties break on the lexically
// smallest (source, target) pair so the result is deterministic.
func (e *Engine) breakCycles(report *Report) {
	for {
		cycle := e.store.FindPrerequisiteCycle()
		if cycle == nil {
			return
		}

		sort.SliceStable(cycle, func(i, j int) bool {
			if cycle[i].Weight != cycle[j].Weight {
				return cycle[i].Weight < cycle[j].Weight
			}
			if cycle[i].Source != cycle[j].Source {
				return cycle[i].Source < cycle[j].Source
			}
			return cycle[i].Target < cycle[j].Target
		})
		victim := cycle[0]
		e.store.RemoveEdge(victim.Key())
		report.reject(ReasonCycleBroken, "edge %s -> %s removed to keep prerequisites acyclic (weight %v)",
			victim.Source, victim.Target, victim.Weight)
		e.logger.Warn("cycle broken: removed %s -> %s (weight %v)", victim.Source, victim.Target, victim.Weight)
	}
}
