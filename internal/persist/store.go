package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"bookforge/internal/config"
	"bookforge/internal/queue"
)

// Snapshot is the serialized queue state written to disk. The running flag
// is persisted for diagnostics but deliberately not auto-restored: after a
// restart the user must start the queue again.
type Snapshot struct {
	Jobs         []queue.Job `json:"jobs"`
	QueueRunning bool        `json:"queue_running"`
	SavedAt      time.Time   `json:"saved_at"`
}

// Store manages queue durability backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the snapshot database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "queue.db")
	return OpenPath(dbPath)
}

// OpenPath opens a snapshot database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) applyMigrations(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS queue_snapshots (
            id INTEGER PRIMARY KEY CHECK (id = 1),
            state TEXT NOT NULL,
            queue_running INTEGER NOT NULL DEFAULT 0,
            saved_at TEXT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS job_runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            job_id TEXT NOT NULL,
            job_type TEXT NOT NULL,
            workflow_id TEXT,
            success INTEGER NOT NULL,
            units INTEGER NOT NULL DEFAULT 0,
            characters INTEGER NOT NULL DEFAULT 0,
            duration_ms INTEGER NOT NULL DEFAULT 0,
            engine TEXT,
            finished_at TEXT NOT NULL
        )`,
		`CREATE INDEX IF NOT EXISTS idx_job_runs_job_id ON job_runs(job_id)`,
	}
	for _, statement := range statements {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// SaveSnapshot persists the full queue state, replacing any prior snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot Snapshot) error {
	if snapshot.SavedAt.IsZero() {
		snapshot.SavedAt = time.Now().UTC()
	}
	encoded, err := json.Marshal(snapshot.Jobs)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO queue_snapshots (id, state, queue_running, saved_at)
         VALUES (1, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET state = excluded.state,
             queue_running = excluded.queue_running, saved_at = excluded.saved_at`,
		string(encoded),
		boolToInt(snapshot.QueueRunning),
		snapshot.SavedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the persisted queue state, or nil when none exists.
func (s *Store) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT state, queue_running, saved_at FROM queue_snapshots WHERE id = 1`)

	var (
		state    string
		running  int
		savedRaw string
	)
	if err := row.Scan(&state, &running, &savedRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var jobs []queue.Job
	if err := json.Unmarshal([]byte(state), &jobs); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	snapshot := &Snapshot{Jobs: jobs, QueueRunning: running != 0}
	if saved, err := time.Parse(time.RFC3339Nano, savedRaw); err == nil {
		snapshot.SavedAt = saved
	}
	return snapshot, nil
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
