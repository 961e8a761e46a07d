package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// MaxPendingRetries bounds how many concept batches a dangling edge may wait
// for its endpoints before being dropped permanently.
const MaxPendingRetries = 3

var (
	// ErrSelfLoop is returned when an edge references the same concept twice.
	ErrSelfLoop = errors.New("self-loop edge rejected")
	// ErrBadRelation is returned for relation types outside the closed set.
	ErrBadRelation = errors.New("unknown relation type")
	// ErrEmptyName is returned for concepts whose name normalizes to nothing.
	ErrEmptyName = errors.New("concept name normalizes to empty identifier")
)

// Store owns the concepts and relationships of one knowledge graph. One
// instance per repository run; mutation is serialized internally, and the
// merge engine additionally guarantees at-most-one in-flight ingest.
type Store struct {
	mu sync.RWMutex

	concepts     map[string]*Concept
	conceptOrder []string
	edges        map[EdgeKey]*Relationship
	edgeOrder    []EdgeKey
	pending      []pendingEdge

	revision uint64 // bumped on structural growth (new concept / new edge)
	nextSeq  int
}

type pendingEdge struct {
	rel     Relationship
	retries int
}

// EdgeOutcome describes what UpsertEdge did with a proposal.
type EdgeOutcome int

const (
	// EdgeAdded means a new relationship was stored.
	EdgeAdded EdgeOutcome = iota
	// EdgeStrengthened means an existing relationship absorbed the weight.
	EdgeStrengthened
	// EdgeDeferred means an endpoint was missing and the edge was queued.
	EdgeDeferred
)

// NewStore creates an empty graph store.
func NewStore() *Store {
	return &Store{
		concepts: make(map[string]*Concept),
		edges:    make(map[EdgeKey]*Relationship),
	}
}

// UpsertConcept inserts a candidate concept or merges it into the existing
// node with the same normalized name. Returns the resolved identifier and
// whether the candidate was merged into an existing node.
func (s *Store) UpsertConcept(c Concept) (string, bool, error) {
	id := NormalizeName(c.Name)
	if id == "" {
		return "", false, ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.concepts[id]
	if !ok {
		stored := c
		stored.ID = id
		stored.Seq = s.nextSeq
		s.nextSeq++
		stored.Provenance = append([]string(nil), c.Provenance...)
		stored.KeyIdeas = append([]string(nil), c.KeyIdeas...)
		s.concepts[id] = &stored
		s.conceptOrder = append(s.conceptOrder, id)
		s.revision++
		return id, false, nil
	}

	// Merge: keep the longer description, max confidence, union key ideas,
	// append provenance. The first-seen display name stays.
	if len(c.Description) > len(existing.Description) {
		existing.Description = c.Description
	}
	if c.Confidence > existing.Confidence {
		existing.Confidence = c.Confidence
	}
	if existing.Category == "" {
		existing.Category = c.Category
	}
	existing.KeyIdeas = unionStrings(existing.KeyIdeas, c.KeyIdeas)
	existing.Provenance = append(existing.Provenance, c.Provenance...)
	return id, true, nil
}

// UpsertEdge applies a relationship proposal. Self-loops and unknown types
// are rejected. Edges whose endpoints are not present yet are queued in the
// pending buffer and re-attempted via RetryPending after the next concept
// batch lands.
func (s *Store) UpsertEdge(rel Relationship) (EdgeOutcome, error) {
	if !rel.Type.IsValid() {
		return EdgeDeferred, fmt.Errorf("%w: %q", ErrBadRelation, rel.Type)
	}
	if rel.Source == rel.Target {
		return EdgeDeferred, fmt.Errorf("%w: %s", ErrSelfLoop, rel.Source)
	}
	if rel.Source == "" || rel.Target == "" {
		return EdgeDeferred, fmt.Errorf("%w: empty endpoint", ErrBadRelation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyEdgeLocked(rel), nil
}

func (s *Store) applyEdgeLocked(rel Relationship) EdgeOutcome {
	if _, ok := s.concepts[rel.Source]; !ok {
		s.pending = append(s.pending, pendingEdge{rel: rel})
		return EdgeDeferred
	}
	if _, ok := s.concepts[rel.Target]; !ok {
		s.pending = append(s.pending, pendingEdge{rel: rel})
		return EdgeDeferred
	}

	key := rel.Key()
	if existing, ok := s.edges[key]; ok {
		// Repeated proposal strengthens the edge instead of duplicating it.
		existing.Weight += rel.Weight
		existing.Provenance = append(existing.Provenance, rel.Provenance...)
		return EdgeStrengthened
	}

	stored := rel
	stored.Seq = s.nextSeq
	s.nextSeq++
	stored.Provenance = append([]string(nil), rel.Provenance...)
	s.edges[key] = &stored
	s.edgeOrder = append(s.edgeOrder, key)
	s.revision++
	return EdgeAdded
}

// RetryPending re-attempts queued dangling edges. Edges that still cannot
// resolve after MaxPendingRetries attempts are dropped and returned so the
// caller can report them.
func (s *Store) RetryPending() (applied []Relationship, dropped []Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var still []pendingEdge
	for _, p := range s.pending {
		_, haveSrc := s.concepts[p.rel.Source]
		_, haveDst := s.concepts[p.rel.Target]
		if haveSrc && haveDst {
			if outcome := s.applyEdgeLocked(p.rel); outcome != EdgeDeferred {
				applied = append(applied, p.rel)
			}
			continue
		}
		p.retries++
		if p.retries >= MaxPendingRetries {
			dropped = append(dropped, p.rel)
			continue
		}
		still = append(still, p)
	}
	s.pending = still
	return applied, dropped
}

// PendingCount returns the number of edges waiting for their endpoints.
func (s *Store) PendingCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

// RemoveEdge deletes a relationship. Only the merge engine's cycle breaking
// is expected to call this; concepts are never deleted.
func (s *Store) RemoveEdge(key EdgeKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.edges[key]; !ok {
		return false
	}
	delete(s.edges, key)
	for i, k := range s.edgeOrder {
		if k == key {
			s.edgeOrder = append(s.edgeOrder[:i], s.edgeOrder[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the concept with the given identifier.
func (s *Store) Get(id string) (Concept, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.concepts[id]
	if !ok {
		return Concept{}, false
	}
	return *c, true
}

// GetEdge returns a copy of the relationship with the given key.
func (s *Store) GetEdge(key EdgeKey) (Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.edges[key]
	if !ok {
		return Relationship{}, false
	}
	return *e, true
}

// AllConcepts returns copies of all concepts in insertion order.
func (s *Store) AllConcepts() []Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Concept, 0, len(s.conceptOrder))
	for _, id := range s.conceptOrder {
		out = append(out, *s.concepts[id])
	}
	return out
}

// AllRelationships returns copies of all relationships in insertion order.
func (s *Store) AllRelationships() []Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Relationship, 0, len(s.edgeOrder))
	for _, key := range s.edgeOrder {
		out = append(out, *s.edges[key])
	}
	return out
}

// Neighbors returns the targets of outgoing edges of the given type, in
// insertion order of the edges.
func (s *Store) Neighbors(id string, t RelationType) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string
	for _, key := range s.edgeOrder {
		if key.Source == id && key.Type == t {
			out = append(out, key.Target)
		}
	}
	return out
}

// Frontier returns up to k concepts with the fewest outgoing prerequisite
// edges; insertion order breaks ties. These are the expansion seeds.
func (s *Store) Frontier(k int) []Concept {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outDegree := make(map[string]int, len(s.concepts))
	for key := range s.edges {
		if key.Type == RelPrerequisite {
			outDegree[key.Source]++
		}
	}

	candidates := make([]*Concept, 0, len(s.conceptOrder))
	for _, id := range s.conceptOrder {
		candidates = append(candidates, s.concepts[id])
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		di, dj := outDegree[candidates[i].ID], outDegree[candidates[j].ID]
		if di != dj {
			return di < dj
		}
		return candidates[i].Seq < candidates[j].Seq
	})

	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]Concept, 0, k)
	for _, c := range candidates[:k] {
		out = append(out, *c)
	}
	return out
}

// Revision returns the monotonic structural revision counter. New concepts
// and new edges bump it; merges and weight strengthening do not, so the
// expansion controller can detect a saturated graph.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Len returns the number of concepts in the graph.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.concepts)
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = true
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
