// internal/dispatch/selector/selector.go
package selector

import (
	"context"
	"sort"
	"sync"
	"time"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/common/metrics"
	"dispatch-engine/internal/dispatch/feature"
	"dispatch-engine/internal/models"
)

// WorkerPool is the eligibility query the selector filters against.
type WorkerPool interface {
	EligibleCandidates(ctx context.Context, category string, excluded []string) ([]models.Worker, error)
}

// Scorer scores one candidate against a job feature vector. Never errors;
// degraded dependencies fall back internally.
type Scorer interface {
	Score(ctx context.Context, vec feature.Vector, workerID string) float64
}

// Candidate is a worker that passed eligibility filtering, with the score
// produced for it at selection time.
type Candidate struct {
	Worker models.Worker
	Score  float64
}

// Selector produces an eligible, ranked worker list for a job.
type Selector struct {
	pool      WorkerPool
	scorer    Scorer
	extractor *feature.Extractor
	logger    logger.Logger
}

func New(pool WorkerPool, scorer Scorer, log logger.Logger) *Selector {
	return &Selector{
		pool:      pool,
		scorer:    scorer,
		extractor: feature.NewExtractor(),
		logger:    log.WithFields(map[string]interface{}{"component": "selector"}),
	}
}

// Select returns up to limit workers for the job, ranked by score, then
// rating, then worker ID for a reproducible order. Candidates are scored
// concurrently; scoring is read-only, so completion order cannot affect
// the result. An empty list is a normal outcome, not an error.
func (s *Selector) Select(ctx context.Context, job *models.Job, excluded []string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	start := time.Now()
	workers, err := s.pool.EligibleCandidates(ctx, job.Category, excluded)
	if err != nil {
		return nil, err
	}
	metrics.CandidatePoolSize.Observe(float64(len(workers)))

	if len(workers) == 0 {
		s.logger.Info("no eligible candidates", map[string]interface{}{
			"jobId":    job.ID,
			"category": job.Category,
			"excluded": len(excluded),
		})
		return nil, nil
	}

	candidates := make([]Candidate, len(workers))
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := workers[i]
			vec := s.extractor.Extract(job, &w)
			candidates[i] = Candidate{
				Worker: w,
				Score:  s.scorer.Score(ctx, vec, w.ID),
			}
		}(i)
	}
	wg.Wait()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].Worker.Rating != candidates[j].Worker.Rating {
			return candidates[i].Worker.Rating > candidates[j].Worker.Rating
		}
		return candidates[i].Worker.ID < candidates[j].Worker.ID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	metrics.SelectionDuration.WithLabelValues(job.Category).Observe(time.Since(start).Seconds())
	return candidates, nil
}
