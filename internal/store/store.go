package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/keepalive/internal/types"
)

// Store keeps the history of probe runs
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target_url TEXT NOT NULL,
		verdict TEXT NOT NULL,
		probe TEXT,
		clicked BOOLEAN,
		snippet TEXT,
		error TEXT,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_runs_target ON runs(target_url, id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun inserts a run and returns its ID
func (s *Store) SaveRun(r *Run) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO runs (target_url, verdict, probe, clicked, snippet, error, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, r.TargetURL, string(r.Verdict), r.Probe, r.Clicked, r.Snippet, r.Error,
		r.StartedAt.UTC(), r.Duration.Milliseconds())
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	r.ID = id
	return id, nil
}

// RecentRuns returns the latest runs, newest first. An empty targetURL
// matches every target.
func (s *Store) RecentRuns(targetURL string, limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, target_url, verdict, probe, clicked, snippet, error, started_at, duration_ms
		FROM runs
		WHERE ? = '' OR target_url = ?
		ORDER BY id DESC
		LIMIT ?
	`, targetURL, targetURL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var verdict string
		var durationMS int64

		err := rows.Scan(
			&r.ID, &r.TargetURL, &verdict, &r.Probe, &r.Clicked, &r.Snippet, &r.Error,
			&r.StartedAt, &durationMS,
		)
		if err != nil {
			return nil, err
		}

		r.Verdict = types.Verdict(verdict)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ConsecutiveFailures counts the failed runs of targetURL since its last
// successful one
func (s *Store) ConsecutiveFailures(targetURL string) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM runs
		WHERE target_url = ? AND verdict = ?
		AND id > COALESCE((
			SELECT MAX(id) FROM runs WHERE target_url = ? AND verdict != ?
		), 0)
	`, targetURL, string(types.VerdictFailed), targetURL, string(types.VerdictFailed)).Scan(&n)
	return n, err
}
