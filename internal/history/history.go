package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"video-converter/internal/converter"
	"video-converter/internal/logging"
	"video-converter/internal/media"
	"video-converter/internal/metrics"
)

// Default timeout for journal operations
const defaultTimeout = 5 * time.Second

// DefaultLimit is the number of runs ListRuns returns for a limit <= 0.
const DefaultLimit = 20

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one journaled conversion run.
type Run struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitzero"`
	Total      int           `json:"total"`
	Converted  int           `json:"converted"`
	Failed     int           `json:"failed"`
	Skipped    int           `json:"skipped"`
	Elapsed    time.Duration `json:"elapsed"`
	Cancelled  bool          `json:"cancelled"`
	Stuck      bool          `json:"stuck"`
}

// Finished reports whether the run recorded its end.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Item is the outcome of one file within a run.
type Item struct {
	RunID    string        `json:"runId"`
	Path     string        `json:"path"`
	Dest     string        `json:"dest,omitempty"`
	Backup   string        `json:"backup,omitempty"`
	Status   media.Status  `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
	At       time.Time     `json:"at"`
}

// Store is the run journal. It satisfies converter.Recorder.
type Store struct {
	db   *sql.DB
	path string
}

var _ converter.Recorder = (*Store)(nil)

// Open opens or creates the journal at path, creating its folder.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history folder: %w", err)
	}
	logging.Debug("History database: %s", path)

	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	// One writer at a time; the journal is small.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	s := &Store{db: db, path: path}
	if err := s.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close history database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		converted INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		elapsed_ms INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		stuck INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		path TEXT NOT NULL,
		dest TEXT NOT NULL DEFAULT '',
		backup TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_run_id ON items(run_id);
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, runID string, started time.Time, total int) (err error) {
	start := time.Now()
	defer func() { recordQuery("begin_run", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, total) VALUES (?, ?, ?)`,
		runID, started.UnixMilli(), total)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RecordItem appends a file outcome to a run.
func (s *Store) RecordItem(ctx context.Context, runID string, o converter.Outcome) (err error) {
	start := time.Now()
	defer func() { recordQuery("record_item", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var msg string
	if o.Err != nil {
		msg = o.Err.Error()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO items (run_id, path, dest, backup, status, error, duration_ms, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Path, o.Dest, o.Backup, o.Status.String(), msg, o.Duration.Milliseconds(), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (s *Store) FinishRun(ctx context.Context, sum converter.Summary) (err error) {
	start := time.Now()
	defer func() { recordQuery("finish_run", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, total = ?, converted = ?, failed = ?, skipped = ?,
		 elapsed_ms = ?, cancelled = ?, stuck = ? WHERE id = ?`,
		time.Now().UnixMilli(), sum.Total, sum.Converted, sum.Failed, sum.Skipped,
		sum.Elapsed.Milliseconds(), sum.Cancelled, sum.Stuck, sum.RunID)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, sum.RunID)
		return err
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) (runs []Run, err error) {
	start := time.Now()
	defer func() { recordQuery("list_runs", start, err) }()

	if limit <= 0 {
		limit = DefaultLimit
	}
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, total, converted, failed, skipped, elapsed_ms, cancelled, stuck
		 FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs = []Run{}
	for rows.Next() {
		var r Run
		if r, err = scanRun(rows); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, runID string) (r Run, err error) {
	start := time.Now()
	defer func() { recordQuery("get_run", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, total, converted, failed, skipped, elapsed_ms, cancelled, stuck
		 FROM runs WHERE id = ?`, runID)
	r, err = scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return r, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var startedMs, finishedMs, elapsedMs int64
	if err := row.Scan(&r.ID, &startedMs, &finishedMs, &r.Total, &r.Converted, &r.Failed,
		&r.Skipped, &elapsedMs, &r.Cancelled, &r.Stuck); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(startedMs)
	if finishedMs > 0 {
		r.FinishedAt = time.UnixMilli(finishedMs)
	}
	r.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	return r, nil
}

// ListItems returns the outcomes of a run in the order they were recorded.
func (s *Store) ListItems(ctx context.Context, runID string) (items []Item, err error) {
	start := time.Now()
	defer func() { recordQuery("list_items", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	if exists == 0 {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, path, dest, backup, status, error, duration_ms, at
		 FROM items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	items = []Item{}
	for rows.Next() {
		var it Item
		var status string
		var durationMs, atMs int64
		if err = rows.Scan(&it.RunID, &it.Path, &it.Dest, &it.Backup, &status, &it.Error, &durationMs, &atMs); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if it.Status, err = media.ParseStatus(status); err != nil {
			return nil, err
		}
		it.Duration = time.Duration(durationMs) * time.Millisecond
		it.At = time.UnixMilli(atMs)
		items = append(items, it)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Prune deletes all but the newest keep runs and their items.
func (s *Store) Prune(ctx context.Context, keep int) (removed int64, err error) {
	start := time.Now()
	defer func() { recordQuery("prune", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE id NOT IN (SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	removed, _ = res.RowsAffected()
	if removed > 0 {
		logging.Debug("Pruned %d runs from history", removed)
	}
	return removed, nil
}

func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.HistoryQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.HistoryQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
