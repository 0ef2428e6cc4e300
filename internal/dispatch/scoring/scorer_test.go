// internal/dispatch/scoring/scorer_test.go
package scoring

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dispatch-engine/internal/common/config"
	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/dispatch/feature"
)

type stubModel struct {
	probs []float64
	err   error
}

func (m *stubModel) Predict(context.Context, feature.Vector) ([]float64, error) {
	return m.probs, m.err
}

type stubProvider struct {
	model Model
	meta  *Metadata
	err   error
	loads int32
	delay time.Duration
}

func (p *stubProvider) Load(context.Context) (Model, *Metadata, error) {
	atomic.AddInt32(&p.loads, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	return p.model, p.meta, p.err
}

func testWeights(seed int64) config.ScoringConfig {
	return config.ScoringConfig{
		Seed:           seed,
		RatingWeight:   0.4,
		DistanceWeight: 0.4,
		NoiseWeight:    0.2,
	}
}

func testVector(rating, distance float64) feature.Vector {
	vec := make(feature.Vector, feature.CurrentSchema().Width())
	vec[feature.CurrentSchema().IndexOf(feature.FieldWorkerAvgRating)] = rating
	vec[feature.CurrentSchema().IndexOf(feature.FieldDistanceKm)] = distance
	return vec
}

func testMeta() *Metadata {
	return &Metadata{
		SchemaVersion: feature.SchemaVersion,
		Features:      feature.CurrentSchema().Fields,
		LabelMap:      map[string]int{"worker-001": 0, "worker-002": 1},
	}
}

func TestScore_UsesModelOutput(t *testing.T) {
	provider := &stubProvider{
		model: &stubModel{probs: []float64{0.9, 0.1}},
		meta:  testMeta(),
	}
	s := NewScorer(provider, testWeights(1), time.Minute, logger.NewTestLogger(t))

	assert.Equal(t, 0.9, s.Score(context.Background(), testVector(4.5, 2), "worker-001"))
	assert.Equal(t, 0.1, s.Score(context.Background(), testVector(4.5, 2), "worker-002"))
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.loads))
}

func TestScore_UnknownWorkerFallsBack(t *testing.T) {
	provider := &stubProvider{
		model: &stubModel{probs: []float64{0.9, 0.1}},
		meta:  testMeta(),
	}
	s := NewScorer(provider, testWeights(1), time.Minute, logger.NewTestLogger(t))

	score := s.Score(context.Background(), testVector(4.5, 2), "worker-unknown")
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScore_ModelLoadFailureFallsBack(t *testing.T) {
	provider := &stubProvider{err: errors.New("inference service down")}
	s := NewScorer(provider, testWeights(1), time.Minute, logger.NewTestLogger(t))

	score := s.Score(context.Background(), testVector(4.5, 2), "worker-001")
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScore_InferenceErrorFallsBack(t *testing.T) {
	provider := &stubProvider{
		model: &stubModel{err: errors.New("timeout")},
		meta:  testMeta(),
	}
	s := NewScorer(provider, testWeights(1), time.Minute, logger.NewTestLogger(t))

	score := s.Score(context.Background(), testVector(4.5, 2), "worker-001")
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestScore_MalformedOutputFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
	}{
		{"output shorter than label map", []float64{0.9}},
		{"probability above one", []float64{0.9, 1.7}},
		{"negative probability", []float64{0.9, -0.2}},
		{"NaN probability", []float64{0.9, math.NaN()}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			provider := &stubProvider{
				model: &stubModel{probs: tc.probs},
				meta:  testMeta(),
			}
			s := NewScorer(provider, testWeights(1), time.Minute, logger.NewTestLogger(t))

			score := s.Score(context.Background(), testVector(4.5, 2), "worker-002")
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestFallback_DeterministicWithFixedSeed(t *testing.T) {
	provider1 := &stubProvider{err: errors.New("down")}
	provider2 := &stubProvider{err: errors.New("down")}
	s1 := NewScorer(provider1, testWeights(42), time.Minute, logger.NewTestLogger(t))
	s2 := NewScorer(provider2, testWeights(42), time.Minute, logger.NewTestLogger(t))

	vec := testVector(4.8, 1)
	for i := 0; i < 5; i++ {
		assert.Equal(t,
			s1.Score(context.Background(), vec, "worker-001"),
			s2.Score(context.Background(), vec, "worker-001"),
		)
	}
}

func TestFallback_RanksByRatingAndProximity(t *testing.T) {
	weights := config.ScoringConfig{Seed: 1, RatingWeight: 0.4, DistanceWeight: 0.4, NoiseWeight: 0}
	s := NewScorer(&stubProvider{err: errors.New("down")}, weights, time.Minute, logger.NewTestLogger(t))

	near := s.Score(context.Background(), testVector(4.0, 0.5), "worker-b")
	rated := s.Score(context.Background(), testVector(4.8, 1), "worker-a")
	far := s.Score(context.Background(), testVector(3.0, 10), "worker-c")

	assert.Equal(t, 0.5867, near)
	assert.Equal(t, 0.584, rated)
	assert.Equal(t, 0.2764, far)
	assert.Greater(t, near, rated)
	assert.Greater(t, rated, far)
}

func TestFallback_OverweightConfigClampsToOne(t *testing.T) {
	weights := config.ScoringConfig{Seed: 1, RatingWeight: 0.8, DistanceWeight: 0.8, NoiseWeight: 0}
	s := NewScorer(&stubProvider{err: errors.New("down")}, weights, time.Minute, logger.NewTestLogger(t))

	// Raw sum is 1.6; the clamp runs before rounding so the result is an
	// exact 1.0, never something the rounding step could push past it.
	assert.Equal(t, 1.0, s.Score(context.Background(), testVector(5, 0), "worker-x"))
}

func TestFallback_StaysInUnitInterval(t *testing.T) {
	provider := &stubProvider{err: errors.New("down")}
	s := NewScorer(provider, testWeights(7), time.Minute, logger.NewTestLogger(t))

	// Extremes of the inputs: perfect rating at zero distance pushes the
	// deterministic part to its cap, zero rating far away to its floor.
	for i := 0; i < 50; i++ {
		high := s.Score(context.Background(), testVector(5, 0), "worker-001")
		low := s.Score(context.Background(), testVector(0, 1000), "worker-001")
		assert.LessOrEqual(t, high, 1.0)
		assert.GreaterOrEqual(t, low, 0.0)
	}
}

func TestEnsureModel_SingleFlight(t *testing.T) {
	provider := &stubProvider{
		model: &stubModel{probs: []float64{0.5, 0.5}},
		meta:  testMeta(),
		delay: 20 * time.Millisecond,
	}
	s := NewScorer(provider, testWeights(1), time.Minute, logger.NewTestLogger(t))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Score(context.Background(), testVector(4.5, 2), "worker-001")
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.loads))
}

func TestEnsureModel_BackoffSuppressesRetry(t *testing.T) {
	provider := &stubProvider{err: errors.New("down")}
	s := NewScorer(provider, testWeights(1), time.Hour, logger.NewTestLogger(t))

	s.Score(context.Background(), testVector(4.5, 2), "worker-001")
	s.Score(context.Background(), testVector(4.5, 2), "worker-001")
	s.Score(context.Background(), testVector(4.5, 2), "worker-001")

	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.loads))
}

func TestReset_AllowsReload(t *testing.T) {
	provider := &stubProvider{err: errors.New("down")}
	s := NewScorer(provider, testWeights(1), time.Hour, logger.NewTestLogger(t))

	s.Score(context.Background(), testVector(4.5, 2), "worker-001")
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.loads))

	provider.err = nil
	provider.model = &stubModel{probs: []float64{0.8, 0.2}}
	provider.meta = testMeta()
	s.Reset()

	assert.Equal(t, 0.8, s.Score(context.Background(), testVector(4.5, 2), "worker-001"))
	assert.Equal(t, int32(2), atomic.LoadInt32(&provider.loads))
}
