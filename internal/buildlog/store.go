package buildlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	ferrors "git.home.luguber.info/inful/bundlekit/internal/foundation/errors"
	"git.home.luguber.info/inful/bundlekit/internal/outcome"
	"git.home.luguber.info/inful/bundlekit/internal/toolchain"
)

// ErrNotFound is returned by Get when no run has the requested build id.
var ErrNotFound = ferrors.NewError(ferrors.CategoryNotFound, "run not found").Build()

// Run is one recorded toolchain run.
type Run struct {
	ID                int64                    `json:"id"`
	BuildID           string                   `json:"build_id"`
	Toolchain         string                   `json:"toolchain"`
	Outcome           outcome.Kind             `json:"outcome"`
	Error             string                   `json:"error,omitempty"`
	BuildDir          string                   `json:"build_dir,omitempty"`
	ExportTarget      string                   `json:"export_target,omitempty"`
	ExportModuleNames []string                 `json:"export_module_names,omitempty"`
	PhaseDurations    map[string]time.Duration `json:"phase_durations,omitempty"`
	Revision          string                   `json:"revision,omitempty"`
	Started           time.Time                `json:"started"`
	Finished          time.Time                `json:"finished"`
}

// Duration returns the wall time of the run.
func (r Run) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Filter narrows List results.
type Filter struct {
	Limit   int          // zero means no limit
	Outcome outcome.Kind // empty means any outcome
}

// Store persists runs in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens or creates the history database at path. Use ":memory:" for
// an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "create history directory").Build()
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "open sqlite database").Build()
	}
	// One connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "initialize schema").Build()
	}
	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL UNIQUE,
		toolchain TEXT NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		build_dir TEXT,
		export_target TEXT,
		export_module_names TEXT,
		phase_durations TEXT,
		revision TEXT,
		started INTEGER NOT NULL,
		finished INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	CREATE INDEX IF NOT EXISTS idx_runs_outcome ON runs(outcome);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores the report of a finished run.
func (s *Store) Record(ctx context.Context, rep *toolchain.Report, revision string) (int64, error) {
	if rep == nil || rep.BuildID == "" {
		return 0, ferrors.ValidationError("report has no build id").Build()
	}
	names, err := json.Marshal(rep.ExportModuleNames)
	if err != nil {
		return 0, fmt.Errorf("marshal export module names: %w", err)
	}
	durations := make(map[string]int64, len(rep.PhaseDurations))
	for phase, d := range rep.PhaseDurations {
		durations[string(phase)] = d.Nanoseconds()
	}
	phases, err := json.Marshal(durations)
	if err != nil {
		return 0, fmt.Errorf("marshal phase durations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (build_id, toolchain, outcome, error, build_dir, export_target,
			export_module_names, phase_durations, revision, started, finished)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.BuildID, rep.Toolchain, string(rep.Outcome), rep.Error, rep.BuildDir, rep.ExportTarget,
		string(names), string(phases), revision, rep.Started.UnixNano(), rep.Finished.UnixNano(),
	)
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryHistory, "insert run").
			WithContext("build_id", rep.BuildID).Build()
	}
	return res.LastInsertId()
}

const selectRuns = `SELECT id, build_id, toolchain, outcome, error, build_dir, export_target,
	export_module_names, phase_durations, revision, started, finished FROM runs`

// Get returns the run recorded under buildID.
func (s *Store) Get(ctx context.Context, buildID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, selectRuns+" WHERE build_id = ?", buildID)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "query run").Build()
	}
	defer func() { _ = rows.Close() }()

	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, buildID)
	}
	return &runs[0], nil
}

// List returns recorded runs, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]Run, error) {
	query := selectRuns
	var args []any
	if f.Outcome != "" {
		query += " WHERE outcome = ?"
		args = append(args, string(f.Outcome))
	}
	query += " ORDER BY started DESC, id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "query runs").Build()
	}
	defer func() { _ = rows.Close() }()
	return scanRuns(rows)
}

// Stats counts recorded runs per outcome.
func (s *Store) Stats(ctx context.Context) (map[outcome.Kind]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM runs GROUP BY outcome")
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryHistory, "query run stats").Build()
	}
	defer func() { _ = rows.Close() }()

	stats := map[outcome.Kind]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan run stats: %w", err)
		}
		stats[outcome.Kind(kind)] = n
	}
	return stats, rows.Err()
}

// Prune deletes all but the keep most recent runs and returns how many
// rows were removed.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, ferrors.ValidationError("keep must not be negative").Build()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started DESC, id DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryHistory, "prune runs").Build()
	}
	return res.RowsAffected()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run
	for rows.Next() {
		var (
			r                     Run
			kind                  string
			errText, buildDir     sql.NullString
			target, names, phases sql.NullString
			revision              sql.NullString
			startedNs, finishedNs int64
		)
		if err := rows.Scan(&r.ID, &r.BuildID, &r.Toolchain, &kind, &errText, &buildDir, &target,
			&names, &phases, &revision, &startedNs, &finishedNs); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Outcome = outcome.Kind(kind)
		r.Error, r.BuildDir, r.ExportTarget, r.Revision = errText.String, buildDir.String, target.String, revision.String
		r.Started, r.Finished = time.Unix(0, startedNs), time.Unix(0, finishedNs)

		if names.String != "" && names.String != "null" {
			if err := json.Unmarshal([]byte(names.String), &r.ExportModuleNames); err != nil {
				return nil, fmt.Errorf("unmarshal export module names: %w", err)
			}
		}
		if phases.String != "" {
			var ns map[string]int64
			if err := json.Unmarshal([]byte(phases.String), &ns); err != nil {
				return nil, fmt.Errorf("unmarshal phase durations: %w", err)
			}
			r.PhaseDurations = make(map[string]time.Duration, len(ns))
			for phase, n := range ns {
				r.PhaseDurations[phase] = time.Duration(n)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return runs, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// IsNotFound reports whether err means the requested run does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
