package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hydrofabric/basinmap/errors"
)

// Store persists jobs in the migrated jobs table.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open, migrated job database connection.
func NewStore(conn *sql.DB) *Store {
	return &Store{db: conn}
}

// Enqueue inserts a queued job and returns it.
func (s *Store) Enqueue(ctx context.Context, handler string, payload interface{}) (*Job, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding job payload")
	}

	job := &Job{
		ID:        uuid.NewString(),
		Handler:   handler,
		Payload:   raw,
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, kind, status, payload, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Handler, job.Status, string(job.Payload), job.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, "inserting job")
	}
	return job, nil
}

// Get returns a job by id, or errors.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, kind, status, payload, result, error, created_at, started_at, finished_at
		FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(errors.ErrNotFound, "job %s", id)
	}
	return job, err
}

// List returns jobs newest first, capped at limit.
func (s *Store) List(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, status, payload, result, error, created_at, started_at, finished_at
		FROM jobs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "listing jobs")
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// ClaimNext atomically moves the oldest queued job to running and returns
// it. Returns nil when the queue is empty.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	for {
		var id string
		err := s.db.QueryRowContext(ctx,
			"SELECT id FROM jobs WHERE status = ? ORDER BY created_at, id LIMIT 1",
			StatusQueued).Scan(&id)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "selecting queued job")
		}

		now := time.Now().UTC()
		res, err := s.db.ExecContext(ctx,
			"UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?",
			StatusRunning, now, id, StatusQueued)
		if err != nil {
			return nil, errors.Wrap(err, "claiming job")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, errors.Wrap(err, "checking claim")
		}
		if n == 1 {
			return s.Get(ctx, id)
		}
		// Another worker claimed it between select and update; try again.
	}
}

// Complete marks a job completed with its result text.
func (s *Store) Complete(ctx context.Context, id, result string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, result = ?, finished_at = ? WHERE id = ?",
		StatusCompleted, result, time.Now().UTC(), id)
	return errors.Wrapf(err, "completing job %s", id)
}

// Fail marks a job failed with its error text.
func (s *Store) Fail(ctx context.Context, id, errText string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE jobs SET status = ?, error = ?, finished_at = ? WHERE id = ?",
		StatusFailed, errText, time.Now().UTC(), id)
	return errors.Wrapf(err, "failing job %s", id)
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row scanner) (*Job, error) {
	var job Job
	var payload string
	var result, errText sql.NullString
	var started, finished sql.NullTime
	err := row.Scan(&job.ID, &job.Handler, &job.Status, &payload,
		&result, &errText, &job.CreatedAt, &started, &finished)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "scanning job")
	}
	job.Payload = json.RawMessage(payload)
	job.Result = result.String
	job.Error = errText.String
	if started.Valid {
		t := started.Time
		job.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	return &job, nil
}
