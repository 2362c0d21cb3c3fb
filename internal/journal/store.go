package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"matte/internal/config"
)

// Store manages run history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the journal database at the configured
// path and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.Paths.JournalPath
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
	if err := store.initSchema(context.Background()); err != nil {
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

// BeginRun inserts a new run row and returns it.
func (s *Store) BeginRun(ctx context.Context, inputRoot, outputRoot, backend, model string, submitted int) (*Run, error) {
	ctx = ensureContext(ctx)
	run := &Run{
		ID:         uuid.NewString(),
		InputRoot:  inputRoot,
		OutputRoot: outputRoot,
		Backend:    backend,
		Model:      model,
		Submitted:  submitted,
		StartedAt:  time.Now().UTC(),
	}

	err := s.execWithRetry(
		ctx,
		`INSERT INTO runs (
            id, input_root, output_root, backend, model, submitted, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.InputRoot,
		run.OutputRoot,
		run.Backend,
		run.Model,
		run.Submitted,
		run.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// RecordItem appends one finished item to its run.
func (s *Store) RecordItem(ctx context.Context, rec ItemRecord) error {
	ctx = ensureContext(ctx)
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now().UTC()
	}

	err := s.execWithRetry(
		ctx,
		`INSERT INTO run_items (
            run_id, source, destination, status, failure_kind, message,
            bytes, duration_ms, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.Source,
		rec.Destination,
		rec.Status,
		nullableString(rec.FailureKind),
		nullableString(rec.Message),
		rec.Bytes,
		rec.Duration.Milliseconds(),
		finished.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert run item: %w", err)
	}
	return nil
}

// FinishRun records the final tallies and marks the run finished.
func (s *Store) FinishRun(ctx context.Context, runID string, succeeded, failed, skipped int, interrupted bool) error {
	ctx = ensureContext(ctx)
	err := s.execWithRetry(
		ctx,
		`UPDATE runs
         SET succeeded = ?, failed = ?, skipped = ?, interrupted = ?, finished_at = ?
         WHERE id = ?`,
		succeeded,
		failed,
		skipped,
		boolToInt(interrupted),
		time.Now().UTC().Format(time.RFC3339Nano),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun fetches a run by identifier. Missing runs return nil without error.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs newest first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunItems returns the recorded items of a run in completion order.
func (s *Store) RunItems(ctx context.Context, runID string) ([]*ItemRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT run_id, source, destination, status, failure_kind, message,
                bytes, duration_ms, finished_at
         FROM run_items WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list run items: %w", err)
	}
	defer rows.Close()

	var items []*ItemRecord
	for rows.Next() {
		var (
			rec         ItemRecord
			failureKind sql.NullString
			message     sql.NullString
			durationMS  int64
			finishedRaw string
		)
		if err := rows.Scan(
			&rec.RunID,
			&rec.Source,
			&rec.Destination,
			&rec.Status,
			&failureKind,
			&message,
			&rec.Bytes,
			&durationMS,
			&finishedRaw,
		); err != nil {
			return nil, err
		}
		rec.FailureKind = failureKind.String
		rec.Message = message.String
		rec.Duration = time.Duration(durationMS) * time.Millisecond
		if finished, err := parseTimeString(finishedRaw); err == nil {
			rec.FinishedAt = finished
		}
		items = append(items, &rec)
	}
	return items, rows.Err()
}

// Clear removes all runs and, via cascade, their items.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, `DELETE FROM runs`)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear journal: %w", err)
	}
	return affected, nil
}

const runColumns = "id, input_root, output_root, backend, model, submitted, succeeded, failed, skipped, interrupted, started_at, finished_at"

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run         Run
		interrupted sql.NullInt64
		startedRaw  string
		finishedRaw sql.NullString
	)

	if err := scanner.Scan(
		&run.ID,
		&run.InputRoot,
		&run.OutputRoot,
		&run.Backend,
		&run.Model,
		&run.Submitted,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
		&interrupted,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	run.Interrupted = interrupted.Valid && interrupted.Int64 != 0
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			run.FinishedAt = &finished
		}
	}
	return &run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
