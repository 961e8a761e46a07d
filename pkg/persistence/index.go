package persistence

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"coursegraph/pkg/course"
	"coursegraph/pkg/graph"
)

// IndexGraph replaces this run's concept and relationship rows with the
// current graph contents, inside one transaction.
func (s *Store) IndexGraph(g *graph.Store) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is safe to call after commit

	if _, err := tx.Exec("DELETE FROM concepts WHERE run_id = ?", s.runID); err != nil {
		return fmt.Errorf("failed to clear concepts: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM relationships WHERE run_id = ?", s.runID); err != nil {
		return fmt.Errorf("failed to clear relationships: %w", err)
	}

	conceptStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO concepts (
			id, run_id, name, description, category, confidence, provenance, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare concept statement: %w", err)
	}
	defer conceptStmt.Close() //nolint:errcheck // Close in defer is safe

	for _, c := range g.AllConcepts() {
		if _, execErr := conceptStmt.Exec(
			c.ID, s.runID, c.Name, c.Description, c.Category,
			c.Confidence, strings.Join(c.Provenance, ","), c.Seq,
		); execErr != nil {
			return fmt.Errorf("failed to insert concept %s: %w", c.ID, execErr)
		}
	}

	relStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO relationships (
			source, target, type, run_id, weight, provenance, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare relationship statement: %w", err)
	}
	defer relStmt.Close() //nolint:errcheck // Close in defer is safe

	for _, r := range g.AllRelationships() {
		if _, execErr := relStmt.Exec(
			r.Source, r.Target, string(r.Type), s.runID,
			r.Weight, strings.Join(r.Provenance, ","), r.Seq,
		); execErr != nil {
			return fmt.Errorf("failed to insert relationship %s->%s: %w", r.Source, r.Target, execErr)
		}
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO run_metadata (run_id, revision, concept_count, edge_count, indexed_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.runID, g.Revision(), g.Len(), len(g.AllRelationships()), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to update run metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.logger.Debug("indexed graph: %d concepts", g.Len())
	return nil
}

// IndexCourses replaces this run's course and lesson rows.
func (s *Store) IndexCourses(courses []course.Course) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is safe to call after commit

	if _, err := tx.Exec("DELETE FROM courses WHERE run_id = ?", s.runID); err != nil {
		return fmt.Errorf("failed to clear courses: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM lessons WHERE run_id = ?", s.runID); err != nil {
		return fmt.Errorf("failed to clear lessons: %w", err)
	}

	for _, c := range courses {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO courses (rank, run_id, title, description)
			VALUES (?, ?, ?, ?)
		`, c.Rank, s.runID, c.Title, c.Description); err != nil {
			return fmt.Errorf("failed to insert course %d: %w", c.Rank, err)
		}
		for _, l := range c.Lessons {
			if _, err := tx.Exec(`
				INSERT OR REPLACE INTO lessons (rank, run_id, course_rank, title, concept_ids, explanation, exercise)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, l.Rank, s.runID, c.Rank, l.Title, strings.Join(l.ConceptIDs, ","), l.Explanation, l.Exercise); err != nil {
				return fmt.Errorf("failed to insert lesson %d: %w", l.Rank, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RunStats summarizes one indexed run.
type RunStats struct {
	RunID          string
	Revision       uint64
	ConceptCount   int
	EdgeCount      int
	CourseCount    int
	LessonCount    int
	IndexedAt      string
	ByCategory     map[string]int
	ByRelationType map[string]int
}

// Stats returns the stored statistics for this run.
func (s *Store) Stats() (RunStats, error) {
	stats := RunStats{RunID: s.runID}

	err := s.db.QueryRow(`
		SELECT revision, concept_count, edge_count, indexed_at
		FROM run_metadata WHERE run_id = ?
	`, s.runID).Scan(&stats.Revision, &stats.ConceptCount, &stats.EdgeCount, &stats.IndexedAt)
	if err != nil && err != sql.ErrNoRows {
		return stats, fmt.Errorf("failed to query run metadata: %w", err)
	}

	if err := s.db.QueryRow("SELECT COUNT(*) FROM courses WHERE run_id = ?", s.runID).Scan(&stats.CourseCount); err != nil {
		return stats, fmt.Errorf("failed to count courses: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM lessons WHERE run_id = ?", s.runID).Scan(&stats.LessonCount); err != nil {
		return stats, fmt.Errorf("failed to count lessons: %w", err)
	}

	var err2 error
	if stats.ByCategory, err2 = s.countBy("SELECT category, COUNT(*) FROM concepts WHERE run_id = ? GROUP BY category"); err2 != nil {
		return stats, err2
	}
	if stats.ByRelationType, err2 = s.countBy("SELECT type, COUNT(*) FROM relationships WHERE run_id = ? GROUP BY type"); err2 != nil {
		return stats, err2
	}
	return stats, nil
}

func (s *Store) countBy(query string) (map[string]int, error) {
	rows, err := s.db.Query(query, s.runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Close in defer is safe

	out := make(map[string]int)
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		if key == "" {
			key = "uncategorized"
		}
		out[key] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count row iteration failed: %w", err)
	}
	return out, nil
}

// SearchConcepts returns concepts for this run whose name or description
// matches the query, case-insensitively, ordered by insertion sequence.
func (s *Store) SearchConcepts(query string, limit int) ([]graph.Concept, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.Query(`
		SELECT id, name, description, category, confidence, provenance, seq
		FROM concepts
		WHERE run_id = ? AND (LOWER(name) LIKE ? OR LOWER(description) LIKE ?)
		ORDER BY seq LIMIT ?
	`, s.runID, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search concepts: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Close in defer is safe

	var out []graph.Concept
	for rows.Next() {
		var c graph.Concept
		var provenance string
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Category, &c.Confidence, &provenance, &c.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan concept row: %w", err)
		}
		if provenance != "" {
			c.Provenance = strings.Split(provenance, ",")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("concept row iteration failed: %w", err)
	}
	return out, nil
}
