// Package history records packaging runs in a local SQLite database.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pyfreeze/pyfreeze/internal/domain"
)

const dbFile = "builds.db"

const schema = `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		script TEXT NOT NULL,
		commit_hash TEXT,
		started_at TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		directives INTEGER NOT NULL,
		cancelled INTEGER NOT NULL DEFAULT 0,
		cache_hit INTEGER NOT NULL DEFAULT 0,
		args TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at DESC);
`

// SQLiteHistory implements domain.BuildHistory.
type SQLiteHistory struct {
	conn   *sql.DB
	dbPath string
}

// Open opens or creates the history database inside dir.
func Open(dir string) (*SQLiteHistory, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating history directory: %w", err)
	}
	dbPath := filepath.Join(dir, dbFile)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}
	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("initializing history schema: %w", err)
	}
	return &SQLiteHistory{conn: conn, dbPath: dbPath}, nil
}

func (h *SQLiteHistory) Path() string { return h.dbPath }

func (h *SQLiteHistory) Close() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

func (h *SQLiteHistory) Save(run domain.BuildRun) error {
	args, err := json.Marshal(run.Args)
	if err != nil {
		return err
	}
	_, err = h.conn.Exec(`
		INSERT OR REPLACE INTO builds
			(id, script, commit_hash, started_at, duration_ns, exit_code, directives, cancelled, cache_hit, args)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Script,
		run.CommitHash,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		int64(run.Duration),
		run.ExitCode,
		run.Directives,
		run.Cancelled,
		run.CacheHit,
		string(args),
	)
	if err != nil {
		return fmt.Errorf("saving build %s: %w", run.ID, err)
	}
	return nil
}

// List returns the most recent runs first. A limit <= 0 returns all of them.
func (h *SQLiteHistory) List(limit int) ([]domain.BuildRun, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := h.conn.Query(`
		SELECT id, script, commit_hash, started_at, duration_ns, exit_code, directives, cancelled, cache_hit, args
		FROM builds
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing builds: %w", err)
	}
	defer rows.Close()

	var runs []domain.BuildRun
	for rows.Next() {
		var (
			run        domain.BuildRun
			commit     sql.NullString
			startedAt  string
			durationNS int64
			args       string
		)
		if err := rows.Scan(&run.ID, &run.Script, &commit, &startedAt, &durationNS,
			&run.ExitCode, &run.Directives, &run.Cancelled, &run.CacheHit, &args); err != nil {
			return nil, err
		}
		run.CommitHash = commit.String
		run.Duration = time.Duration(durationNS)
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
			return nil, fmt.Errorf("build %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(args), &run.Args); err != nil {
			return nil, fmt.Errorf("build %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
