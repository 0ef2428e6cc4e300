// internal/dispatch/store/jobs.go
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/models"
)

var ErrJobNotFound = errors.New("JOB_NOT_FOUND")

// JobStore reads and conditionally updates job records. All mutations are
// single-record conditional updates evaluated atomically by Postgres.
type JobStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewJobStore(db *sql.DB, log logger.Logger) *JobStore {
	return &JobStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "jobStore"}),
	}
}

// Get loads one job by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (*models.Job, error) {
	query := `SELECT id, customer_id, category, lat, lng, status,
		COALESCE(worker_id, ''), booking_value, COALESCE(weather, ''),
		created_at, updated_at
		FROM jobs WHERE id = $1`

	var job models.Job
	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID, &job.CustomerID, &job.Category,
		&job.Location.Lat, &job.Location.Lng, &job.Status,
		&job.WorkerID, &job.BookingValue, &job.Weather,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &job, nil
}

// TransitionStatus moves a job from one status to another, conditioned on
// it currently holding the expected status. Returns false when the
// condition matched zero rows.
func (s *JobStore) TransitionStatus(ctx context.Context, jobID string, from, to models.JobStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`,
		jobID, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("transition job %s %s->%s: %w", jobID, from, to, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// PendingJobIDs returns jobs still awaiting assignment, for sweep passes.
func (s *JobStore) PendingJobIDs(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM jobs WHERE status = 'pending' AND id = ANY($1)`,
		pqStringArray(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("filter pending jobs: %w", err)
	}
	defer rows.Close()

	var pending []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pending = append(pending, id)
	}
	return pending, rows.Err()
}
