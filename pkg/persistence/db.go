// Package persistence provides SQLite-backed indexing of graphs and courses
// so runs can be inspected and searched after the fact.
package persistence

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver

	"coursegraph/pkg/logx"
)

// Store wraps one SQLite database. Each run owns its Store instance; there
// is no process-wide connection.
type Store struct {
	db     *sql.DB
	runID  string
	logger *logx.Logger
}

// Open opens (creating if needed) the database at dbPath with WAL mode and
// a busy timeout, and ensures the schema exists. runID tags all rows written
// through this store.
func Open(dbPath, runID string) (*Store, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	db, err := sql.Open("sqlite", fmt.Sprintf(
		"file:%s?_foreign_keys=ON&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("persistence")
	logger.Info("database opened: %s (run: %s)", dbPath, runID)
	return &Store{db: db, runID: runID, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// RunID returns the run identifier this store writes under.
func (s *Store) RunID() string { return s.runID }

func initSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS concepts (
			id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT,
			category TEXT,
			confidence REAL,
			provenance TEXT,
			seq INTEGER,
			PRIMARY KEY (id, run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			type TEXT NOT NULL,
			run_id TEXT NOT NULL,
			weight REAL,
			provenance TEXT,
			seq INTEGER,
			PRIMARY KEY (source, target, type, run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS courses (
			rank INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			PRIMARY KEY (rank, run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS lessons (
			rank INTEGER NOT NULL,
			run_id TEXT NOT NULL,
			course_rank INTEGER NOT NULL,
			title TEXT NOT NULL,
			concept_ids TEXT NOT NULL,
			explanation TEXT,
			exercise TEXT,
			PRIMARY KEY (rank, run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS run_metadata (
			run_id TEXT PRIMARY KEY,
			revision INTEGER,
			concept_count INTEGER,
			edge_count INTEGER,
			indexed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_category ON concepts(category)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_type ON relationships(type)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
