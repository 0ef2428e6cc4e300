// internal/dispatch/coordinator/coordinator.go
package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/common/metrics"
	"dispatch-engine/internal/models"
)

var (
	ErrWorkerUnavailable = errors.New("WORKER_UNAVAILABLE")
	ErrJobUnavailable    = errors.New("JOB_UNAVAILABLE")
	ErrInvalidTransition = errors.New("INVALID_STATUS_TRANSITION")
)

// Coordinator resolves the race when one or more workers try to accept the
// same job, and owns the job status state machine.
//
// Accept runs both conditional claims inside one transaction: the worker
// claim and the job claim either commit together or roll back together, so
// a lost job race automatically reverts the worker claim and no
// compensation write exists to fail.
type Coordinator struct {
	db     *sql.DB
	logger logger.Logger
}

func New(db *sql.DB, log logger.Logger) *Coordinator {
	return &Coordinator{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "coordinator"}),
	}
}

// Accept atomically assigns the job to the worker. Contention outcomes are
// the sentinel errors ErrWorkerUnavailable (another accept claimed this
// worker, or they went offline) and ErrJobUnavailable (job claimed by a
// different worker, or cancelled); both are normal negative results.
func (c *Coordinator) Accept(ctx context.Context, jobID, workerID string) (*models.Job, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		metrics.AcceptAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("begin accept tx: %w", err)
	}
	defer tx.Rollback()

	// Claim the worker, conditioned on current availability. Zero rows
	// means somebody else already holds them.
	res, err := tx.ExecContext(ctx, `
		UPDATE workers SET is_available = FALSE, active_job = $2, updated_at = NOW()
		WHERE id = $1 AND is_available = TRUE AND active_job IS NULL`,
		workerID, jobID,
	)
	if err != nil {
		metrics.AcceptAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("claim worker %s: %w", workerID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		metrics.AcceptAttempts.WithLabelValues("worker_unavailable").Inc()
		c.logger.Info("accept lost: worker not available", map[string]interface{}{
			"jobId":    jobID,
			"workerId": workerID,
		})
		return nil, ErrWorkerUnavailable
	}

	// Claim the job, conditioned on it still being pending. This is also
	// the authoritative cancellation check: accepting a cancelled job
	// lands here with zero rows. Rolling back reverts the worker claim.
	var job models.Job
	err = tx.QueryRowContext(ctx, `
		UPDATE jobs SET status = 'accepted', worker_id = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, customer_id, category, lat, lng, status, worker_id,
			booking_value, COALESCE(weather, ''), created_at, updated_at`,
		jobID, workerID,
	).Scan(
		&job.ID, &job.CustomerID, &job.Category,
		&job.Location.Lat, &job.Location.Lng, &job.Status,
		&job.WorkerID, &job.BookingValue, &job.Weather,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			metrics.AcceptAttempts.WithLabelValues("job_unavailable").Inc()
			c.logger.Info("accept lost: job no longer pending", map[string]interface{}{
				"jobId":    jobID,
				"workerId": workerID,
			})
			return nil, ErrJobUnavailable
		}
		metrics.AcceptAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("claim job %s: %w", jobID, err)
	}

	// Settle the winner's ledger entry in the same transaction. Entries
	// held by other workers stay offered until they expire or are
	// explicitly rejected.
	if _, err := tx.ExecContext(ctx, `
		UPDATE offers SET status = 'accepted', responded_at = NOW()
		WHERE job_id = $1 AND worker_id = $2 AND status = 'offered'`,
		jobID, workerID,
	); err != nil {
		metrics.AcceptAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("settle winning offer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		metrics.AcceptAttempts.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit accept: %w", err)
	}

	metrics.AcceptAttempts.WithLabelValues("accepted").Inc()
	c.logger.Info("job accepted", map[string]interface{}{
		"jobId":    jobID,
		"workerId": workerID,
	})
	return &job, nil
}

// Start moves an accepted job into in_progress, conditioned on the caller
// being its assigned worker.
func (c *Coordinator) Start(ctx context.Context, jobID, workerID string) error {
	res, err := c.db.ExecContext(ctx, `
		UPDATE jobs SET status = 'in_progress', updated_at = NOW()
		WHERE id = $1 AND worker_id = $2 AND status = 'accepted'`,
		jobID, workerID,
	)
	if err != nil {
		return fmt.Errorf("start job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Complete finishes an in_progress job and releases its worker back to the
// pool, in one transaction.
func (c *Coordinator) Complete(ctx context.Context, jobID, workerID string) error {
	return c.finish(ctx, jobID, workerID, `
		UPDATE jobs SET status = 'completed', updated_at = NOW()
		WHERE id = $1 AND worker_id = $2 AND status = 'in_progress'`,
		true,
	)
}

// Cancel terminates a job from any non-terminal state. A pending job has
// no worker to release. Outstanding offers for it are not touched here;
// the Accept conditional check is what actually stops a late claim.
func (c *Coordinator) Cancel(ctx context.Context, jobID string) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback()

	var workerID sql.NullString
	err = tx.QueryRowContext(ctx, `
		UPDATE jobs SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'accepted', 'in_progress')
		RETURNING COALESCE(worker_id, '')`,
		jobID,
	).Scan(&workerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidTransition
		}
		return fmt.Errorf("cancel job %s: %w", jobID, err)
	}

	if workerID.String != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE workers SET is_available = TRUE, active_job = NULL, updated_at = NOW()
			WHERE id = $1`,
			workerID.String,
		); err != nil {
			return fmt.Errorf("release worker on cancel: %w", err)
		}
	}

	return tx.Commit()
}

func (c *Coordinator) finish(ctx context.Context, jobID, workerID, jobUpdate string, countCompletion bool) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, jobUpdate, jobID, workerID)
	if err != nil {
		return fmt.Errorf("finish job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInvalidTransition
	}

	release := `UPDATE workers SET is_available = TRUE, active_job = NULL, updated_at = NOW() WHERE id = $1`
	if countCompletion {
		release = `UPDATE workers SET is_available = TRUE, active_job = NULL,
			completed_jobs = completed_jobs + 1, updated_at = NOW() WHERE id = $1`
	}
	if _, err := tx.ExecContext(ctx, release, workerID); err != nil {
		return fmt.Errorf("release worker %s: %w", workerID, err)
	}

	return tx.Commit()
}
