// internal/dispatch/ledger/ledger.go
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/models"
)

var (
	ErrDuplicateOffer = errors.New("DUPLICATE_OFFER")
)

// Store is the offer ledger: one durable row per (job, worker) proposal.
// Writes are insert-if-absent or idempotent conditional updates; no write
// needs cross-record coordination.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "offerLedger"}),
	}
}

// RecordOffer creates an "offered" entry for (job, worker). A worker whose
// previous offer for this job timed out is re-armed on the same row with a
// bumped attempt counter. Any other existing row means the worker already
// holds a live or settled offer; that is a logged no-op reported as
// ErrDuplicateOffer.
func (s *Store) RecordOffer(ctx context.Context, jobID, workerID string, score float64) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO offers (job_id, worker_id, status, score, offered_at, attempt)
		VALUES ($1, $2, 'offered', $3, NOW(), 1)
		ON CONFLICT (job_id, worker_id) DO UPDATE
		SET status = 'offered', score = EXCLUDED.score, offered_at = NOW(),
		    responded_at = NULL, attempt = offers.attempt + 1
		WHERE offers.status = 'timeout'`,
		jobID, workerID, score,
	)
	if err != nil {
		return fmt.Errorf("record offer job=%s worker=%s: %w", jobID, workerID, err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		s.logger.Info("duplicate offer suppressed", map[string]interface{}{
			"jobId":    jobID,
			"workerId": workerID,
		})
		return ErrDuplicateOffer
	}
	return nil
}

// MarkResponded settles an offered entry with a terminal outcome. Marking
// an already-terminal entry again is a no-op, not an error: concurrent
// timeout-and-response races are expected. Returns whether this call was
// the one that settled the entry.
func (s *Store) MarkResponded(ctx context.Context, jobID, workerID string, outcome models.OfferStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE offers SET status = $3, responded_at = NOW()
		WHERE job_id = $1 AND worker_id = $2 AND status = 'offered'`,
		jobID, workerID, outcome,
	)
	if err != nil {
		return false, fmt.Errorf("mark offer %s job=%s worker=%s: %w", outcome, jobID, workerID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CountActive returns the number of entries currently in "offered" state
// for a job. This drives replenishment sizing.
func (s *Store) CountActive(ctx context.Context, jobID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM offers WHERE job_id = $1 AND status = 'offered'`,
		jobID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active offers job=%s: %w", jobID, err)
	}
	return count, nil
}

// ExcludedWorkers returns every worker holding an offered, accepted or
// rejected entry for the job. Rejected workers are never re-offered the
// same job; timed-out workers may be, so timeout rows do not exclude.
func (s *Store) ExcludedWorkers(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT worker_id FROM offers
		WHERE job_id = $1 AND status IN ('offered', 'accepted', 'rejected')`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list excluded workers job=%s: %w", jobID, err)
	}
	defer rows.Close()

	var workers []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		workers = append(workers, id)
	}
	return workers, rows.Err()
}

// ExpireStale times out offered entries older than the TTL and returns the
// distinct jobs they belonged to, so the sweep can replenish them.
func (s *Store) ExpireStale(ctx context.Context, ttl time.Duration) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE offers SET status = 'timeout', responded_at = NOW()
		WHERE status = 'offered' AND offered_at < NOW() - $1::interval
		RETURNING job_id`,
		fmt.Sprintf("%d seconds", int(ttl.Seconds())),
	)
	if err != nil {
		return nil, fmt.Errorf("expire stale offers: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var jobIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		if !seen[id] {
			seen[id] = true
			jobIDs = append(jobIDs, id)
		}
	}
	return jobIDs, rows.Err()
}

// Get loads one ledger entry.
func (s *Store) Get(ctx context.Context, jobID, workerID string) (*models.Offer, error) {
	var o models.Offer
	var responded sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT job_id, worker_id, status, score, offered_at, responded_at, attempt
		FROM offers WHERE job_id = $1 AND worker_id = $2`,
		jobID, workerID,
	).Scan(&o.JobID, &o.WorkerID, &o.Status, &o.Score, &o.OfferedAt, &responded, &o.Attempt)
	if err != nil {
		return nil, fmt.Errorf("get offer job=%s worker=%s: %w", jobID, workerID, err)
	}
	if responded.Valid {
		o.RespondedAt = &responded.Time
	}
	return &o, nil
}
