// internal/dispatch/replenish/sweeper.go
package replenish

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"dispatch-engine/internal/common/logger"
)

// StaleExpirer marks overdue offers as timed out and returns the jobs
// that lost offers.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, ttl time.Duration) ([]string, error)
}

// PendingFilter narrows a job ID list to the ones still pending.
type PendingFilter interface {
	PendingJobIDs(ctx context.Context, ids []string) ([]string, error)
}

// StuckReconciler releases workers pinned to jobs that already finished.
type StuckReconciler interface {
	ReconcileStuck(ctx context.Context) (int64, error)
}

// Sweeper runs the periodic expiry pass: time out stale offers, refill
// the affected pending jobs, and release stuck workers. It is the safety
// net behind the event-driven replenishment triggers.
type Sweeper struct {
	offerTTL    time.Duration
	expirer     StaleExpirer
	jobs        PendingFilter
	workers     StuckReconciler
	replenisher *Replenisher
	cron        *cron.Cron
	logger      logger.Logger
}

func NewSweeper(offerTTL time.Duration, expirer StaleExpirer, jobs PendingFilter, workers StuckReconciler, replenisher *Replenisher, log logger.Logger) *Sweeper {
	return &Sweeper{
		offerTTL:    offerTTL,
		expirer:     expirer,
		jobs:        jobs,
		workers:     workers,
		replenisher: replenisher,
		logger:      log.WithFields(map[string]interface{}{"component": "sweeper"}),
	}
}

// Start schedules the sweep on the given cron spec and returns. The
// schedule accepts standard cron lines and descriptors like "@every 30s".
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("offer sweep scheduled", map[string]interface{}{
		"schedule": schedule,
		"offerTTL": s.offerTTL.String(),
	})
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Sweep performs one expiry pass. Errors are logged, not returned; the
// next tick retries everything this one missed.
func (s *Sweeper) Sweep(ctx context.Context) {
	jobIDs, err := s.expirer.ExpireStale(ctx, s.offerTTL)
	if err != nil {
		s.logger.Error("offer expiry sweep failed", map[string]interface{}{"error": err.Error()})
		return
	}

	if len(jobIDs) > 0 {
		pending, err := s.jobs.PendingJobIDs(ctx, jobIDs)
		if err != nil {
			s.logger.Error("pending job lookup failed", map[string]interface{}{"error": err.Error()})
			return
		}
		for _, jobID := range pending {
			if _, err := s.replenisher.Replenish(ctx, jobID, TriggerSweep); err != nil {
				s.logger.Warn("sweep replenishment failed", map[string]interface{}{
					"jobId": jobID,
					"error": err.Error(),
				})
			}
		}
	}

	released, err := s.workers.ReconcileStuck(ctx)
	if err != nil {
		s.logger.Warn("stuck worker reconciliation failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if released > 0 {
		s.logger.Info("released workers stuck on finished jobs", map[string]interface{}{
			"released": released,
		})
	}
}
