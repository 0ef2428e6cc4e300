// internal/dispatch/replenish/replenisher_test.go
package replenish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/dispatch/ledger"
	"dispatch-engine/internal/dispatch/selector"
	"dispatch-engine/internal/models"
)

type stubJobs struct {
	job *models.Job
	err error
}

func (s *stubJobs) Get(context.Context, string) (*models.Job, error) {
	return s.job, s.err
}

type stubLedger struct {
	active   int
	excluded []string
	recorded []string
	dupes    map[string]bool
}

func (s *stubLedger) RecordOffer(_ context.Context, _, workerID string, _ float64) error {
	if s.dupes[workerID] {
		return ledger.ErrDuplicateOffer
	}
	s.recorded = append(s.recorded, workerID)
	return nil
}

func (s *stubLedger) CountActive(context.Context, string) (int, error) {
	return s.active, nil
}

func (s *stubLedger) ExcludedWorkers(context.Context, string) ([]string, error) {
	return s.excluded, nil
}

type stubSelector struct {
	candidates  []selector.Candidate
	gotExcluded []string
	gotLimit    int
	calls       int
}

func (s *stubSelector) Select(_ context.Context, _ *models.Job, excluded []string, limit int) ([]selector.Candidate, error) {
	s.calls++
	s.gotExcluded = excluded
	s.gotLimit = limit
	if len(s.candidates) > limit {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

type recordingGateway struct {
	sent []string
}

func (g *recordingGateway) Send(_ context.Context, workerID, _ string, _ map[string]interface{}) error {
	g.sent = append(g.sent, workerID)
	return nil
}

func pendingJob() *models.Job {
	return &models.Job{
		ID:       "job-001",
		Category: "plumbing",
		Status:   models.JobStatusPending,
	}
}

func candidate(id string, score float64) selector.Candidate {
	return selector.Candidate{Worker: models.Worker{ID: id}, Score: score}
}

func createTestReplenisher(t *testing.T, jobs JobReader, offers *stubLedger, sel *stubSelector, gw *recordingGateway, rdb *redis.Client, throttle time.Duration) *Replenisher {
	t.Helper()
	return New(3, throttle, jobs, offers, sel, gw, nil, nil, rdb, logger.NewTestLogger(t))
}

func TestReplenish_TopsUpToTarget(t *testing.T) {
	offers := &stubLedger{active: 2, excluded: []string{"worker-a", "worker-b"}}
	sel := &stubSelector{candidates: []selector.Candidate{candidate("worker-c", 0.8)}}
	gw := &recordingGateway{}

	r := createTestReplenisher(t, &stubJobs{job: pendingJob()}, offers, sel, gw, nil, 0)
	issued, err := r.Replenish(context.Background(), "job-001", TriggerReject)

	assert.NoError(t, err)
	assert.Equal(t, 1, issued)
	assert.Equal(t, 1, sel.gotLimit)
	assert.Equal(t, []string{"worker-a", "worker-b"}, sel.gotExcluded)
	assert.Equal(t, []string{"worker-c"}, offers.recorded)
	assert.Equal(t, []string{"worker-c"}, gw.sent)
}

func TestReplenish_PoolAlreadyFull(t *testing.T) {
	offers := &stubLedger{active: 3}
	sel := &stubSelector{}

	r := createTestReplenisher(t, &stubJobs{job: pendingJob()}, offers, sel, &recordingGateway{}, nil, 0)
	issued, err := r.Replenish(context.Background(), "job-001", TriggerTimeout)

	assert.NoError(t, err)
	assert.Equal(t, 0, issued)
	assert.Equal(t, 0, sel.calls)
}

func TestReplenish_JobNoLongerPending(t *testing.T) {
	job := pendingJob()
	job.Status = models.JobStatusAccepted
	sel := &stubSelector{}

	r := createTestReplenisher(t, &stubJobs{job: job}, &stubLedger{}, sel, &recordingGateway{}, nil, 0)
	issued, err := r.Replenish(context.Background(), "job-001", TriggerSweep)

	assert.NoError(t, err)
	assert.Equal(t, 0, issued)
	assert.Equal(t, 0, sel.calls)
}

func TestReplenish_InitialDispatchIssuesFullPool(t *testing.T) {
	offers := &stubLedger{}
	sel := &stubSelector{candidates: []selector.Candidate{
		candidate("worker-a", 0.9),
		candidate("worker-b", 0.7),
		candidate("worker-c", 0.5),
	}}
	gw := &recordingGateway{}

	r := createTestReplenisher(t, &stubJobs{job: pendingJob()}, offers, sel, gw, nil, 0)
	issued, err := r.Replenish(context.Background(), "job-001", TriggerInitial)

	assert.NoError(t, err)
	assert.Equal(t, 3, issued)
	assert.Equal(t, 3, sel.gotLimit)
	assert.Len(t, gw.sent, 3)
}

func TestReplenish_DuplicateOfferTolerated(t *testing.T) {
	offers := &stubLedger{dupes: map[string]bool{"worker-a": true}}
	sel := &stubSelector{candidates: []selector.Candidate{
		candidate("worker-a", 0.9),
		candidate("worker-b", 0.7),
	}}
	gw := &recordingGateway{}

	r := createTestReplenisher(t, &stubJobs{job: pendingJob()}, offers, sel, gw, nil, 0)
	issued, err := r.Replenish(context.Background(), "job-001", TriggerReject)

	assert.NoError(t, err)
	assert.Equal(t, 1, issued)
	assert.Equal(t, []string{"worker-b"}, offers.recorded)
	assert.Equal(t, []string{"worker-b"}, gw.sent)
}

func TestReplenish_JobLoadError(t *testing.T) {
	r := createTestReplenisher(t, &stubJobs{err: errors.New("db down")}, &stubLedger{}, &stubSelector{}, &recordingGateway{}, nil, 0)

	_, err := r.Replenish(context.Background(), "job-001", TriggerReject)
	assert.Error(t, err)
}

func TestReplenish_ThrottleFailsOpenOnRedisError(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectSetNX("replenish:job:job-001", 1, 5*time.Second).SetErr(errors.New("redis down"))

	offers := &stubLedger{}
	sel := &stubSelector{candidates: []selector.Candidate{candidate("worker-a", 0.9)}}

	r := createTestReplenisher(t, &stubJobs{job: pendingJob()}, offers, sel, &recordingGateway{}, rdb, 5*time.Second)

	issued, err := r.Replenish(context.Background(), "job-001", TriggerReject)
	assert.NoError(t, err)
	assert.Equal(t, 1, issued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReplenish_ThrottleCollapsesBursts(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	offers := &stubLedger{}
	sel := &stubSelector{candidates: []selector.Candidate{candidate("worker-a", 0.9)}}

	r := createTestReplenisher(t, &stubJobs{job: pendingJob()}, offers, sel, &recordingGateway{}, rdb, 5*time.Second)

	issued, err := r.Replenish(context.Background(), "job-001", TriggerReject)
	assert.NoError(t, err)
	assert.Equal(t, 1, issued)

	// Second run inside the throttle window is suppressed.
	issued, err = r.Replenish(context.Background(), "job-001", TriggerReject)
	assert.NoError(t, err)
	assert.Equal(t, 0, issued)
	assert.Equal(t, 1, sel.calls)

	// After the window lapses the job can be replenished again.
	mr.FastForward(6 * time.Second)
	offers.dupes = map[string]bool{"worker-a": true}
	_, err = r.Replenish(context.Background(), "job-001", TriggerTimeout)
	assert.NoError(t, err)
	assert.Equal(t, 2, sel.calls)
}
