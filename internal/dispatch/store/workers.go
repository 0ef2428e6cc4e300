// internal/dispatch/store/workers.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/models"
)

var ErrWorkerNotFound = errors.New("WORKER_NOT_FOUND")

func pqStringArray(ids []string) interface{} {
	return pq.Array(ids)
}

// WorkerStore reads the worker pool and maintains availability state.
// Profile reads go through a short-TTL redis cache; availability reads and
// writes always hit Postgres, since they are the contended truth.
type WorkerStore struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewWorkerStore(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *WorkerStore {
	return &WorkerStore{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "workerStore"}),
	}
}

const workerColumns = `id, name, categories, lat, lng, is_available,
	COALESCE(active_job, ''), rating, completed_jobs, updated_at`

func scanWorker(scan func(dest ...interface{}) error) (*models.Worker, error) {
	var w models.Worker
	var categories pq.StringArray
	err := scan(
		&w.ID, &w.Name, &categories, &w.Location.Lat, &w.Location.Lng,
		&w.IsAvailable, &w.ActiveJobID, &w.Rating, &w.CompletedJobs, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Categories = categories
	return &w, nil
}

// EligibleCandidates returns available workers covering the category,
// excluding the given worker IDs. Category matching is case-insensitive;
// categories are stored lowercase.
func (s *WorkerStore) EligibleCandidates(ctx context.Context, category string, excluded []string) ([]models.Worker, error) {
	// A nil slice binds as SQL NULL, and `NOT (id = ANY(NULL))` filters out
	// every row. Jobs with no prior offers pass exactly that.
	if excluded == nil {
		excluded = []string{}
	}

	query := `SELECT ` + workerColumns + `
		FROM workers
		WHERE is_available = TRUE
		  AND active_job IS NULL
		  AND $1 = ANY(categories)
		  AND NOT (id = ANY($2))
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, strings.ToLower(category), pq.Array(excluded))
	if err != nil {
		return nil, fmt.Errorf("query eligible candidates: %w", err)
	}
	defer rows.Close()

	var workers []models.Worker
	for rows.Next() {
		w, err := scanWorker(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		workers = append(workers, *w)
	}
	return workers, rows.Err()
}

// Get loads one worker, read-through cached. The cached profile is only
// used for scoring context and notifications; availability decisions never
// rely on it.
func (s *WorkerStore) Get(ctx context.Context, workerID string) (*models.Worker, error) {
	cacheKey := "worker:profile:" + workerID
	if s.redis != nil {
		if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			var w models.Worker
			if err := json.Unmarshal([]byte(val), &w); err == nil {
				return &w, nil
			}
		}
	}

	query := `SELECT ` + workerColumns + ` FROM workers WHERE id = $1`
	w, err := scanWorker(s.db.QueryRowContext(ctx, query, workerID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWorkerNotFound
		}
		return nil, fmt.Errorf("get worker %s: %w", workerID, err)
	}

	if s.redis != nil {
		if data, err := json.Marshal(w); err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, s.cacheTTL).Err(); err != nil {
				s.logger.Debug("worker profile cache write failed", map[string]interface{}{
					"workerId": workerID,
					"error":    err.Error(),
				})
			}
		}
	}
	return w, nil
}

// Release restores a worker to the available pool and clears the active
// job reference.
func (s *WorkerStore) Release(ctx context.Context, workerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE workers SET is_available = TRUE, active_job = NULL, updated_at = NOW() WHERE id = $1`,
		workerID,
	)
	if err != nil {
		return fmt.Errorf("release worker %s: %w", workerID, err)
	}
	return nil
}

// IncrementCompleted bumps the completed-job counter after a job finishes.
func (s *WorkerStore) IncrementCompleted(ctx context.Context, workerID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE workers SET completed_jobs = completed_jobs + 1, updated_at = NOW() WHERE id = $1`,
		workerID,
	)
	if err != nil {
		return fmt.Errorf("increment completed for worker %s: %w", workerID, err)
	}
	return nil
}

// ReconcileStuck releases workers whose active job already reached a
// terminal state but whose availability flag was never restored. Covers
// the acknowledged liveness gap of a partial claim left behind by operator
// intervention or pre-transactional data.
func (s *WorkerStore) ReconcileStuck(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE workers w
		SET is_available = TRUE, active_job = NULL, updated_at = NOW()
		FROM jobs j
		WHERE w.active_job = j.id
		  AND j.status IN ('completed', 'cancelled')`)
	if err != nil {
		return 0, fmt.Errorf("reconcile stuck workers: %w", err)
	}
	return res.RowsAffected()
}
