package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// snapshot is the on-disk form of a graph. Slices are ordered by Seq so that
// save-load-save produces byte-identical output.
type snapshot struct {
	Revision      uint64            `json:"revision"`
	NextSeq       int               `json:"next_seq"`
	Concepts      []Concept         `json:"concepts"`
	Relationships []Relationship    `json:"relationships"`
	Pending       []pendingSnapshot `json:"pending,omitempty"`
}

// pendingSnapshot carries a queued edge together with its retry count, so
// the bounded-retry drop fires on schedule even across a save/load cycle.
type pendingSnapshot struct {
	Relationship Relationship `json:"relationship"`
	Retries      int          `json:"retries"`
}

// Save writes the graph to path as indented JSON, creating parent
// directories as needed. The write goes through a temp file and rename so a
// crash never leaves a truncated graph behind.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := snapshot{
		Revision: s.revision,
		NextSeq:  s.nextSeq,
	}
	for _, id := range s.conceptOrder {
		snap.Concepts = append(snap.Concepts, *s.concepts[id])
	}
	for _, key := range s.edgeOrder {
		snap.Relationships = append(snap.Relationships, *s.edges[key])
	}
	for _, p := range s.pending {
		snap.Pending = append(snap.Pending, pendingSnapshot{Relationship: p.rel, Retries: p.retries})
	}
	s.mu.RUnlock()

	sort.SliceStable(snap.Concepts, func(i, j int) bool { return snap.Concepts[i].Seq < snap.Concepts[j].Seq })
	sort.SliceStable(snap.Relationships, func(i, j int) bool { return snap.Relationships[i].Seq < snap.Relationships[j].Seq })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	data = append(data, '\n')

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create graph directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace graph file: %w", err)
	}
	return nil
}

// Load reads a graph previously written by Save. Insertion order is
// reconstructed from the persisted Seq values, so iteration order and all
// Seq-based tie-breaks survive the round trip.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse graph file %s: %w", path, err)
	}

	s := NewStore()
	s.revision = snap.Revision
	s.nextSeq = snap.NextSeq
	for i := range snap.Concepts {
		c := snap.Concepts[i]
		if c.ID == "" {
			return nil, fmt.Errorf("graph file %s: concept %d has no id", path, i)
		}
		stored := c
		s.concepts[c.ID] = &stored
		s.conceptOrder = append(s.conceptOrder, c.ID)
		if c.Seq >= s.nextSeq {
			s.nextSeq = c.Seq + 1
		}
	}
	for i := range snap.Relationships {
		r := snap.Relationships[i]
		if !r.Type.IsValid() {
			return nil, fmt.Errorf("graph file %s: relationship %d has unknown type %q", path, i, r.Type)
		}
		stored := r
		s.edges[r.Key()] = &stored
		s.edgeOrder = append(s.edgeOrder, r.Key())
		if r.Seq >= s.nextSeq {
			s.nextSeq = r.Seq + 1
		}
	}
	for _, p := range snap.Pending {
		s.pending = append(s.pending, pendingEdge{rel: p.Relationship, retries: p.Retries})
	}
	return s, nil
}
