// internal/dispatch/replenish/replenisher.go
package replenish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/common/metrics"
	"dispatch-engine/internal/common/observability"
	"dispatch-engine/internal/dispatch/audit"
	"dispatch-engine/internal/dispatch/ledger"
	"dispatch-engine/internal/dispatch/notify"
	"dispatch-engine/internal/dispatch/selector"
	"dispatch-engine/internal/models"
)

// Triggers recorded on replenishment runs.
const (
	TriggerInitial = "initial"
	TriggerReject  = "reject"
	TriggerTimeout = "timeout"
	TriggerSweep   = "sweep"
)

const throttleKeyPrefix = "replenish:job:"

// JobReader is the slice of the job store the replenisher needs.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*models.Job, error)
}

// OfferLedger tracks issued offers for a job.
type OfferLedger interface {
	RecordOffer(ctx context.Context, jobID, workerID string, score float64) error
	CountActive(ctx context.Context, jobID string) (int, error)
	ExcludedWorkers(ctx context.Context, jobID string) ([]string, error)
}

// CandidateSelector ranks eligible workers for a job.
type CandidateSelector interface {
	Select(ctx context.Context, job *models.Job, excluded []string, limit int) ([]selector.Candidate, error)
}

// Replenisher tops a pending job's offer pool back up to the target size.
// One outstanding offer per eligible worker; workers that already hold or
// held an offer on the job are excluded by the ledger.
type Replenisher struct {
	target      int
	throttleTTL time.Duration

	jobs     JobReader
	offers   OfferLedger
	selector CandidateSelector
	gateway  notify.Gateway
	audit    *audit.Indexer
	obs      *observability.Observability
	rdb      *redis.Client
	logger   logger.Logger
}

func New(target int, throttleTTL time.Duration, jobs JobReader, offers OfferLedger, sel CandidateSelector, gateway notify.Gateway, auditor *audit.Indexer, obs *observability.Observability, rdb *redis.Client, log logger.Logger) *Replenisher {
	if target <= 0 {
		target = 3
	}
	return &Replenisher{
		target:      target,
		throttleTTL: throttleTTL,
		jobs:        jobs,
		offers:      offers,
		selector:    sel,
		gateway:     gateway,
		audit:       auditor,
		obs:         obs,
		rdb:         rdb,
		logger:      log.WithFields(map[string]interface{}{"component": "replenisher"}),
	}
}

// Replenish issues offers until the job's active pool reaches the target
// size. Returns the number of offers issued. A job that is no longer
// pending, or a pool already at target, is a no-op.
func (r *Replenisher) Replenish(ctx context.Context, jobID, trigger string) (int, error) {
	if !r.acquireThrottle(ctx, jobID) {
		r.logger.Debug("replenishment throttled", map[string]interface{}{
			"jobId":   jobID,
			"trigger": trigger,
		})
		return 0, nil
	}

	job, err := r.jobs.Get(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("load job %s: %w", jobID, err)
	}
	if job.Status != models.JobStatusPending {
		r.logger.Debug("job no longer pending, skipping replenishment", map[string]interface{}{
			"jobId":  jobID,
			"status": string(job.Status),
		})
		return 0, nil
	}

	active, err := r.offers.CountActive(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("count active offers: %w", err)
	}
	needed := r.target - active
	if needed <= 0 {
		return 0, nil
	}

	excluded, err := r.offers.ExcludedWorkers(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("load excluded workers: %w", err)
	}

	candidates, err := r.selector.Select(ctx, job, excluded, needed)
	if err != nil {
		return 0, fmt.Errorf("select candidates: %w", err)
	}

	metrics.ReplenishmentRuns.WithLabelValues(trigger).Inc()

	issued := 0
	for _, candidate := range candidates {
		if err := r.offers.RecordOffer(ctx, jobID, candidate.Worker.ID, candidate.Score); err != nil {
			if errors.Is(err, ledger.ErrDuplicateOffer) {
				continue
			}
			return issued, fmt.Errorf("record offer for worker %s: %w", candidate.Worker.ID, err)
		}
		issued++

		metrics.OffersIssued.WithLabelValues(job.Category).Inc()
		r.obs.RecordOfferIssued(ctx, job.Category)
		r.audit.Index(ctx, audit.Event{
			Type:     "offer_issued",
			JobID:    jobID,
			WorkerID: candidate.Worker.ID,
			Category: job.Category,
			Score:    candidate.Score,
			Trigger:  trigger,
		})

		// Delivery is fire-and-forget; the offer row is the source of
		// truth and the sweep re-notifies through expiry anyway.
		_ = r.gateway.Send(ctx, candidate.Worker.ID, notify.EventOfferCreated, map[string]interface{}{
			"jobId":        jobID,
			"category":     job.Category,
			"bookingValue": job.BookingValue,
		})
	}

	if issued > 0 {
		r.logger.Info("replenished offer pool", map[string]interface{}{
			"jobId":   jobID,
			"trigger": trigger,
			"issued":  issued,
			"active":  active + issued,
		})
	}
	return issued, nil
}

// acquireThrottle takes a short-lived per-job lock so bursts of response
// events collapse into one replenishment run. Redis being down fails open.
func (r *Replenisher) acquireThrottle(ctx context.Context, jobID string) bool {
	if r.rdb == nil || r.throttleTTL <= 0 {
		return true
	}
	ok, err := r.rdb.SetNX(ctx, throttleKeyPrefix+jobID, 1, r.throttleTTL).Result()
	if err != nil {
		r.logger.Warn("replenishment throttle check failed", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
		return true
	}
	return ok
}
