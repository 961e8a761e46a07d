// Package proposal defines the candidate batches exchanged with external
// proposal sources and the source interface the expansion controller calls.
package proposal

import (
	"context"
	"fmt"

	"coursegraph/pkg/graph"
)

// ConceptCandidate is a proposed concept before validation and merging.
// Endpoints of edge candidates reference concepts by display name; the merge
// engine resolves names to identifiers.
type ConceptCandidate struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	KeyIdeas    []string `json:"key_ideas,omitempty"`
	Confidence  float64  `json:"confidence"`
}

// Validate checks the candidate is well formed. Confidence outside [0, 1]
// is an error rather than being clamped, so sources with broken scoring
// show up in merge reports instead of skewing weights silently.
func (c *ConceptCandidate) Validate() error {
	if graph.NormalizeName(c.Name) == "" {
		return fmt.Errorf("concept name %q normalizes to empty", c.Name)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("concept %q confidence %v out of range [0,1]", c.Name, c.Confidence)
	}
	return nil
}

// EdgeCandidate is a proposed relationship between two concepts, by name.
type EdgeCandidate struct {
	Source string             `json:"source"`
	Target string             `json:"target"`
	Type   graph.RelationType `json:"type"`
	Weight float64            `json:"weight"`
}

// Validate checks the candidate references two distinct, non-empty names
// and a known relation type.
func (e *EdgeCandidate) Validate() error {
	src := graph.NormalizeName(e.Source)
	dst := graph.NormalizeName(e.Target)
	if src == "" || dst == "" {
		return fmt.Errorf("edge %q -> %q has an empty endpoint", e.Source, e.Target)
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("edge %q -> %q has unknown type %q", e.Source, e.Target, e.Type)
	}
	if e.Weight < 0 {
		return fmt.Errorf("edge %q -> %q has negative weight %v", e.Source, e.Target, e.Weight)
	}
	return nil
}

// Batch is one round's worth of candidates from a proposal source, tagged
// with where they came from.
type Batch struct {
	Concepts   []ConceptCandidate `json:"concepts"`
	Edges      []EdgeCandidate    `json:"edges"`
	Provenance string             `json:"provenance"`
}

// Empty reports whether the batch carries no candidates at all.
func (b *Batch) Empty() bool {
	return len(b.Concepts) == 0 && len(b.Edges) == 0
}

// Request is the context handed to a proposal source for one round.
type Request struct {
	// FrontierSummary describes the graph's current expansion frontier,
	// already trimmed to the source's context budget.
	FrontierSummary string
	// Instruction frames what kind of candidates the round wants.
	Instruction string
}

// Source produces candidate batches for expansion rounds. Implementations
// must honor ctx cancellation; transport failures are returned as errors and
// handled by the controller's retry policy.
type Source interface {
	Propose(ctx context.Context, req Request) (Batch, error)
}
