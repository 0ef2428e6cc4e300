// internal/dispatch/scoring/scorer.go
package scoring

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"dispatch-engine/internal/common/config"
	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/common/metrics"
	"dispatch-engine/internal/dispatch/feature"
)

// scorePrecision is the number of decimal places heuristic scores are
// rounded to, keeping fallback scores stable for assertions and ledgers.
const scorePrecision = 1e4

// Scorer scores a worker against a job. The trained model is the primary
// path; every failure mode of it routes silently to the heuristic fallback.
// Score never returns an error.
type Scorer struct {
	provider Provider
	weights  config.ScoringConfig
	logger   logger.Logger

	// lazy model handle, guarded by mu; loading is non-nil while one load
	// attempt is in flight and is shared by all concurrent first callers.
	mu          sync.Mutex
	model       Model
	meta        *Metadata
	loading     chan struct{}
	lastFailure time.Time
	backoff     time.Duration

	randMu sync.Mutex
	rand   *rand.Rand
}

func NewScorer(provider Provider, cfg config.ScoringConfig, backoff time.Duration, log logger.Logger) *Scorer {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Scorer{
		provider: provider,
		weights:  cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "scorer"}),
		backoff:  backoff,
		rand:     rand.New(rand.NewSource(seed)),
	}
}

// Score returns a score in [0,1] for workerID against the feature vector.
func (s *Scorer) Score(ctx context.Context, vec feature.Vector, workerID string) float64 {
	model, meta, ok := s.ensureModel(ctx)
	if !ok {
		return s.fallback(vec, "model_unavailable")
	}

	idx, known := meta.OutputIndex(workerID)
	if !known {
		return s.fallback(vec, "unknown_worker")
	}

	probs, err := model.Predict(ctx, vec)
	if err != nil {
		s.logger.Warn("model inference failed", map[string]interface{}{
			"workerId": workerID,
			"error":    err.Error(),
		})
		return s.fallback(vec, "inference_failed")
	}

	if idx >= len(probs) {
		s.logger.Warn("model output shorter than label map", map[string]interface{}{
			"workerId":    workerID,
			"outputIndex": idx,
			"outputLen":   len(probs),
		})
		return s.fallback(vec, "malformed_output")
	}

	score := probs[idx]
	if math.IsNaN(score) || score < 0 || score > 1 {
		return s.fallback(vec, "malformed_output")
	}
	return score
}

// ensureModel returns the loaded model, collapsing concurrent first-use
// calls into a single load attempt. A failed load is not retried until the
// backoff window has passed or Reset is called.
func (s *Scorer) ensureModel(ctx context.Context) (Model, *Metadata, bool) {
	for {
		s.mu.Lock()
		if s.model != nil {
			model, meta := s.model, s.meta
			s.mu.Unlock()
			return model, meta, true
		}
		if s.loading != nil {
			ch := s.loading
			s.mu.Unlock()
			select {
			case <-ch:
				continue // re-check outcome
			case <-ctx.Done():
				return nil, nil, false
			}
		}
		if !s.lastFailure.IsZero() && time.Since(s.lastFailure) < s.backoff {
			s.mu.Unlock()
			return nil, nil, false
		}

		ch := make(chan struct{})
		s.loading = ch
		s.mu.Unlock()

		model, meta, err := s.provider.Load(ctx)

		s.mu.Lock()
		s.loading = nil
		if err != nil {
			s.lastFailure = time.Now()
			s.mu.Unlock()
			close(ch)
			s.logger.Warn("model load failed, scoring falls back to heuristic", map[string]interface{}{
				"error": err.Error(),
			})
			return nil, nil, false
		}
		s.model = model
		s.meta = meta
		s.lastFailure = time.Time{}
		s.mu.Unlock()
		close(ch)
		s.logger.Info("scoring model loaded", map[string]interface{}{
			"labelMapSize": len(meta.LabelMap),
		})
		return model, meta, true
	}
}

// Reset drops the model handle and failure memory so the next Score call
// attempts a fresh load.
func (s *Scorer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = nil
	s.meta = nil
	s.lastFailure = time.Time{}
}

// fallback is the deterministic-plus-bounded-noise heuristic: rating and
// inverse distance read back out of the feature vector, a seeded uniform
// noise term to avoid starving tied candidates across rounds.
func (s *Scorer) fallback(vec feature.Vector, reason string) float64 {
	metrics.ScoringFallbacks.WithLabelValues(reason).Inc()

	schema := feature.CurrentSchema()
	rating := vec[schema.IndexOf(feature.FieldWorkerAvgRating)]
	distance := vec[schema.IndexOf(feature.FieldDistanceKm)]

	s.randMu.Lock()
	noise := s.rand.Float64()
	s.randMu.Unlock()

	score := s.weights.RatingWeight*(rating/5.0) +
		s.weights.DistanceWeight*(1.0/(distance+1.0)) +
		s.weights.NoiseWeight*noise

	score = math.Max(0, math.Min(1, score))
	return math.Round(score*scorePrecision) / scorePrecision
}
