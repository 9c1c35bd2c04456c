package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a job does not exist.
var ErrNotFound = errors.New("job not found")

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL,
	query      TEXT NOT NULL,
	file_name  TEXT NOT NULL,
	file_path  TEXT NOT NULL,
	result     TEXT NOT NULL DEFAULT '',
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at DESC);
`

// Store persists analysis jobs in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the job database at path.
// Use ":memory:" for an in-memory database in tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create inserts a new job in PENDING state.
func (s *Store) Create(ctx context.Context, job *Job) error {
	now := time.Now().UTC()
	job.Status = StatusPending
	job.CreatedAt = now
	job.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, query, file_name, file_path, result, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', '', ?, ?)`,
		job.ID, job.Status, job.Query, job.FileName, job.FilePath, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// Get returns the job with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, query, file_name, file_path, result, error, created_at, updated_at
		 FROM jobs WHERE id = ?`, id)

	var job Job
	err := row.Scan(&job.ID, &job.Status, &job.Query, &job.FileName, &job.FilePath,
		&job.Result, &job.Error, &job.CreatedAt, &job.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return &job, nil
}

// ClaimProcessing atomically moves a job from PENDING to PROCESSING.
// It returns false if the job was not in PENDING state, which callers
// use to skip duplicate queue deliveries.
func (s *Store) ClaimProcessing(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusProcessing, time.Now().UTC(), id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("failed to claim job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n == 1, nil
}

// Complete moves a PROCESSING job to COMPLETED with the given result.
// Completing a job in any other state is an error.
func (s *Store) Complete(ctx context.Context, id, result string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, result = ?, error = '', updated_at = ? WHERE id = ? AND status = ?`,
		StatusCompleted, result, time.Now().UTC(), id, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return s.requireUpdated(ctx, res, id)
}

// Fail moves a PENDING or PROCESSING job to FAILED with the given error
// message. Terminal jobs are left untouched.
func (s *Store) Fail(ctx context.Context, id, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error = ?, result = '', updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusFailed, errMsg, time.Now().UTC(), id, StatusPending, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to fail job: %w", err)
	}
	return s.requireUpdated(ctx, res, id)
}

// List returns the most recent jobs, newest first. An empty status
// matches all jobs.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, status, query, file_name, file_path, result, error, created_at, updated_at
		 FROM jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Status, &job.Query, &job.FileName, &job.FilePath,
			&job.Result, &job.Error, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (s *Store) requireUpdated(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 1 {
		return nil
	}

	// Distinguish "wrong state" from "no such job".
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("job %s is not in an updatable state", id)
}
