package graph

import (
	"errors"
	"testing"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple lowercase", "cache", "cache"},
		{"case folded", "Cache", "cache"},
		{"trailing space", "cache ", "cache"},
		{"punctuation collapsed", "KV-Cache (paged)", "kv_cache_paged"},
		{"internal whitespace run", "flash   attention", "flash_attention"},
		{"only punctuation", "!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestUpsertConceptMergesByNormalizedName(t *testing.T) {
	s := NewStore()

	id1, merged, err := s.UpsertConcept(Concept{
		Name:        "Cache",
		Description: "short",
		Confidence:  0.6,
		Provenance:  []string{"round-1"},
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	if merged {
		t.Error("first upsert reported merged")
	}

	id2, merged, err := s.UpsertConcept(Concept{
		Name:        "cache ",
		Description: "a much longer description of caching",
		Confidence:  0.4,
		Provenance:  []string{"round-2"},
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if !merged {
		t.Error("second upsert did not merge")
	}
	if id1 != id2 {
		t.Errorf("ids differ: %q vs %q", id1, id2)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 concept, got %d", s.Len())
	}

	c, ok := s.Get(id1)
	if !ok {
		t.Fatal("concept not found")
	}
	if c.Description != "a much longer description of caching" {
		t.Errorf("longer description did not win: %q", c.Description)
	}
	if c.Confidence != 0.6 {
		t.Errorf("confidence should keep the max, got %v", c.Confidence)
	}
	if len(c.Provenance) != 2 {
		t.Errorf("provenance length = %d, want 2", len(c.Provenance))
	}
}

func TestUpsertConceptEmptyName(t *testing.T) {
	s := NewStore()
	if _, _, err := s.UpsertConcept(Concept{Name: "  !?  "}); !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestUpsertEdgeValidation(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "a")
	mustConcept(t, s, "b")

	if _, err := s.UpsertEdge(Relationship{Source: "a", Target: "a", Type: RelPrerequisite}); !errors.Is(err, ErrSelfLoop) {
		t.Errorf("self-loop: expected ErrSelfLoop, got %v", err)
	}
	if _, err := s.UpsertEdge(Relationship{Source: "a", Target: "b", Type: "depends-on"}); !errors.Is(err, ErrBadRelation) {
		t.Errorf("bad type: expected ErrBadRelation, got %v", err)
	}
}

func TestUpsertEdgeStrengthensDuplicate(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "a")
	mustConcept(t, s, "b")

	rel := Relationship{Source: "a", Target: "b", Type: RelPrerequisite, Weight: 0.5, Provenance: []string{"r1"}}
	outcome, err := s.UpsertEdge(rel)
	if err != nil || outcome != EdgeAdded {
		t.Fatalf("first edge: outcome=%v err=%v", outcome, err)
	}
	revAfterAdd := s.Revision()

	rel.Provenance = []string{"r2"}
	outcome, err = s.UpsertEdge(rel)
	if err != nil || outcome != EdgeStrengthened {
		t.Fatalf("duplicate edge: outcome=%v err=%v", outcome, err)
	}
	if s.Revision() != revAfterAdd {
		t.Error("strengthening bumped the revision counter")
	}

	e, ok := s.GetEdge(rel.Key())
	if !ok {
		t.Fatal("edge not found")
	}
	if e.Weight != 1.0 {
		t.Errorf("weight = %v, want 1.0", e.Weight)
	}
	if len(e.Provenance) != 2 {
		t.Errorf("provenance length = %d, want 2", len(e.Provenance))
	}
	if len(s.AllRelationships()) != 1 {
		t.Errorf("expected 1 edge, got %d", len(s.AllRelationships()))
	}
}

func TestPendingEdgeResolvesWhenEndpointArrives(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "a")

	outcome, err := s.UpsertEdge(Relationship{Source: "a", Target: "b", Type: RelPrerequisite, Weight: 1})
	if err != nil || outcome != EdgeDeferred {
		t.Fatalf("expected deferral, outcome=%v err=%v", outcome, err)
	}
	if s.PendingCount() != 1 {
		t.Fatalf("pending = %d, want 1", s.PendingCount())
	}

	mustConcept(t, s, "b")
	applied, dropped := s.RetryPending()
	if len(applied) != 1 || len(dropped) != 0 {
		t.Fatalf("applied=%d dropped=%d, want 1/0", len(applied), len(dropped))
	}
	if _, ok := s.GetEdge(EdgeKey{Source: "a", Target: "b", Type: RelPrerequisite}); !ok {
		t.Error("resolved edge missing from store")
	}
}

func TestPendingEdgeDroppedAfterRetries(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "a")

	if _, err := s.UpsertEdge(Relationship{Source: "a", Target: "ghost", Type: RelRelated, Weight: 1}); err != nil {
		t.Fatal(err)
	}

	var dropped []Relationship
	for i := 0; i < MaxPendingRetries; i++ {
		_, dropped = s.RetryPending()
	}
	if len(dropped) != 1 {
		t.Fatalf("dropped = %d after %d retries, want 1", len(dropped), MaxPendingRetries)
	}
	if s.PendingCount() != 0 {
		t.Errorf("pending = %d after drop, want 0", s.PendingCount())
	}
}

func TestRevisionBumpsOnlyOnStructuralGrowth(t *testing.T) {
	s := NewStore()
	if s.Revision() != 0 {
		t.Fatalf("fresh store revision = %d", s.Revision())
	}

	mustConcept(t, s, "a")
	if s.Revision() != 1 {
		t.Errorf("revision after concept = %d, want 1", s.Revision())
	}

	// Merging the same name again is not growth.
	if _, _, err := s.UpsertConcept(Concept{Name: "A", Description: "x"}); err != nil {
		t.Fatal(err)
	}
	if s.Revision() != 1 {
		t.Errorf("revision after merge = %d, want 1", s.Revision())
	}
}

func TestFrontierOrdersByOutgoingPrereqs(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "a")
	mustConcept(t, s, "b")
	mustConcept(t, s, "c")
	// a is a prerequisite of both others; b of one; c of none.
	for _, pair := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}} {
		if _, err := s.UpsertEdge(Relationship{Source: pair[0], Target: pair[1], Type: RelPrerequisite, Weight: 1}); err != nil {
			t.Fatal(err)
		}
	}

	frontier := s.Frontier(2)
	if len(frontier) != 2 {
		t.Fatalf("frontier size = %d, want 2", len(frontier))
	}
	if frontier[0].ID != "c" || frontier[1].ID != "b" {
		t.Errorf("frontier = [%s %s], want [c b]", frontier[0].ID, frontier[1].ID)
	}
}

func TestFindPrerequisiteCycle(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "a")
	mustConcept(t, s, "b")
	mustConcept(t, s, "c")

	for _, pair := range [][2]string{{"a", "b"}, {"b", "c"}} {
		if _, err := s.UpsertEdge(Relationship{Source: pair[0], Target: pair[1], Type: RelPrerequisite, Weight: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if cycle := s.FindPrerequisiteCycle(); cycle != nil {
		t.Fatalf("acyclic graph reported cycle: %v", cycle)
	}

	if _, err := s.UpsertEdge(Relationship{Source: "c", Target: "a", Type: RelPrerequisite, Weight: 1}); err != nil {
		t.Fatal(err)
	}
	cycle := s.FindPrerequisiteCycle()
	if len(cycle) != 3 {
		t.Fatalf("cycle length = %d, want 3", len(cycle))
	}

	// related-to edges never count as cycles.
	s2 := NewStore()
	mustConcept(t, s2, "x")
	mustConcept(t, s2, "y")
	for _, pair := range [][2]string{{"x", "y"}, {"y", "x"}} {
		if _, err := s2.UpsertEdge(Relationship{Source: pair[0], Target: pair[1], Type: RelRelated, Weight: 1}); err != nil {
			t.Fatal(err)
		}
	}
	if cycle := s2.FindPrerequisiteCycle(); cycle != nil {
		t.Errorf("related-to edges reported as prerequisite cycle: %v", cycle)
	}
}

func mustConcept(t *testing.T, s *Store, name string) {
	t.Helper()
	if _, _, err := s.UpsertConcept(Concept{Name: name, Description: name, Confidence: 1}); err != nil {
		t.Fatalf("upsert %s: %v", name, err)
	}
}
