package graph

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "attention")
	mustConcept(t, s, "softmax")
	if _, err := s.UpsertEdge(Relationship{
		Source: "softmax", Target: "attention", Type: RelPrerequisite,
		Weight: 0.9, Provenance: []string{"extract"},
	}); err != nil {
		t.Fatal(err)
	}
	// One dangling edge should survive in the pending buffer.
	if _, err := s.UpsertEdge(Relationship{
		Source: "attention", Target: "flash_attention", Type: RelRelated, Weight: 0.5,
	}); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "graph.json")
	if err := s.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if loaded.Len() != s.Len() {
		t.Errorf("loaded %d concepts, want %d", loaded.Len(), s.Len())
	}
	if loaded.Revision() != s.Revision() {
		t.Errorf("loaded revision %d, want %d", loaded.Revision(), s.Revision())
	}
	if loaded.PendingCount() != 1 {
		t.Errorf("pending buffer lost in round trip: %d", loaded.PendingCount())
	}

	path2 := filepath.Join(dir, "graph2.json")
	if err := loaded.Save(path2); err != nil {
		t.Fatalf("second save failed: %v", err)
	}
	second, err := os.ReadFile(path2)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("save -> load -> save is not byte-identical")
	}
}

func TestPendingRetryCountSurvivesRoundTrip(t *testing.T) {
	s := NewStore()
	mustConcept(t, s, "attention")
	if _, err := s.UpsertEdge(Relationship{
		Source: "attention", Target: "ghost", Type: RelPrerequisite, Weight: 0.5,
	}); err != nil {
		t.Fatal(err)
	}

	// Two failed retries before saving; one more after loading must drop it.
	for i := 0; i < MaxPendingRetries-1; i++ {
		if applied, dropped := s.RetryPending(); len(applied) != 0 || len(dropped) != 0 {
			t.Fatalf("retry %d: applied=%d dropped=%d", i, len(applied), len(dropped))
		}
	}

	path := filepath.Join(t.TempDir(), "graph.json")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	_, dropped := loaded.RetryPending()
	if len(dropped) != 1 {
		t.Fatalf("dropped %d edges, want 1 (retry count lost in round trip)", len(dropped))
	}
	if loaded.PendingCount() != 0 {
		t.Errorf("pending count = %d after drop", loaded.PendingCount())
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected parse error for malformed file")
	}

	path = filepath.Join(dir, "badtype.json")
	content := `{"concepts":[{"id":"a","name":"a"}],"relationships":[{"source":"a","target":"a","type":"bogus"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown relation type")
	}
}

func TestDOTRoundTrip(t *testing.T) {
	s := NewStore()
	if _, _, err := s.UpsertConcept(Concept{Name: "Attention", Description: "weighs tokens", Category: "core", Confidence: 1}); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.UpsertConcept(Concept{Name: "Softmax", Description: "normalizes scores", Category: "math", Confidence: 0.8}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertEdge(Relationship{Source: "softmax", Target: "attention", Type: RelPrerequisite, Weight: 0.75}); err != nil {
		t.Fatal(err)
	}

	dot := s.ToDOT()
	parsed, err := FromDOT(dot)
	if err != nil {
		t.Fatalf("FromDOT failed: %v", err)
	}
	if parsed.Len() != 2 {
		t.Fatalf("parsed %d concepts, want 2", parsed.Len())
	}
	e, ok := parsed.GetEdge(EdgeKey{Source: "softmax", Target: "attention", Type: RelPrerequisite})
	if !ok {
		t.Fatal("prerequisite edge lost in DOT round trip")
	}
	if e.Weight != 0.75 {
		t.Errorf("weight = %v, want 0.75", e.Weight)
	}
}
