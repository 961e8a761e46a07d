// Package graph implements the knowledge graph store: concepts, typed
// relationships, identity and dedup rules, and the structural invariants the
// merge engine relies on.
package graph

import (
	"regexp"
	"strings"
)

// RelationType is the closed set of directed relationship types.
type RelationType string

const (
	// RelPrerequisite marks the source concept as a prerequisite of the target.
	// The subgraph induced by this type must stay acyclic.
	RelPrerequisite RelationType = "prerequisite-of"
	// RelRelated links two concepts that are thematically close.
	RelRelated RelationType = "related-to"
	// RelPartOf marks the source as a constituent of the target.
	RelPartOf RelationType = "part-of"
	// RelExampleOf marks the source as a concrete instance of the target.
	RelExampleOf RelationType = "example-of"
)

// IsValid reports whether t is one of the known relation types.
func (t RelationType) IsValid() bool {
	switch t {
	case RelPrerequisite, RelRelated, RelPartOf, RelExampleOf:
		return true
	default:
		return false
	}
}

// Concept is a node in the knowledge graph: one learnable idea.
type Concept struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	KeyIdeas    []string `json:"key_ideas,omitempty"`
	Confidence  float64  `json:"confidence"`
	Provenance  []string `json:"provenance"`
	Seq         int      `json:"seq"` // insertion order, stable across save/load
}

// Relationship is a directed, typed edge between two concept identifiers.
// Unique per (source, target, type); repeated proposals accumulate weight.
type Relationship struct {
	Source     string       `json:"source"`
	Target     string       `json:"target"`
	Type       RelationType `json:"type"`
	Weight     float64      `json:"weight"`
	Provenance []string     `json:"provenance"`
	Seq        int          `json:"seq"`
}

// EdgeKey identifies a relationship uniquely within a graph.
type EdgeKey struct {
	Source string
	Target string
	Type   RelationType
}

// Key returns the identity triple of the relationship.
func (r *Relationship) Key() EdgeKey {
	return EdgeKey{Source: r.Source, Target: r.Target, Type: r.Type}
}

var nonIdentifier = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeName derives the stable concept identifier from a display name:
// case-fold, trim, collapse whitespace/punctuation runs to single underscores.
// Two candidates with the same normalized name must resolve to one node.
func NormalizeName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	id := nonIdentifier.ReplaceAllString(lower, "_")
	return strings.Trim(id, "_")
}
