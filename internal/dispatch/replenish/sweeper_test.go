// internal/dispatch/replenish/sweeper_test.go
package replenish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/dispatch/selector"
	"dispatch-engine/internal/models"
)

type stubExpirer struct {
	jobIDs []string
	err    error
	calls  int
}

func (s *stubExpirer) ExpireStale(context.Context, time.Duration) ([]string, error) {
	s.calls++
	return s.jobIDs, s.err
}

type stubPendingFilter struct {
	pending []string
}

func (s *stubPendingFilter) PendingJobIDs(context.Context, []string) ([]string, error) {
	return s.pending, nil
}

// stubPendingFilter doubles as the replenisher's job reader in sweep tests.
func (s *stubPendingFilter) Get(_ context.Context, jobID string) (*models.Job, error) {
	job := pendingJob()
	job.ID = jobID
	return job, nil
}

type stubReconciler struct {
	released int64
	calls    int
}

func (s *stubReconciler) ReconcileStuck(context.Context) (int64, error) {
	s.calls++
	return s.released, nil
}

func TestSweep_ExpiresAndReplenishesPendingJobs(t *testing.T) {
	expirer := &stubExpirer{jobIDs: []string{"job-001", "job-002"}}
	jobs := &stubPendingFilter{pending: []string{"job-001"}}
	reconciler := &stubReconciler{released: 1}

	offers := &stubLedger{}
	sel := &stubSelector{candidates: []selector.Candidate{candidate("worker-a", 0.9)}}
	replenisher := createTestReplenisher(t, jobs, offers, sel, &recordingGateway{}, nil, 0)

	sweeper := NewSweeper(2*time.Minute, expirer, jobs, reconciler, replenisher, logger.NewTestLogger(t))
	sweeper.Sweep(context.Background())

	assert.Equal(t, 1, expirer.calls)
	assert.Equal(t, 1, sel.calls)
	assert.Equal(t, []string{"worker-a"}, offers.recorded)
	assert.Equal(t, 1, reconciler.calls)
}

func TestSweep_NothingStaleStillReconciles(t *testing.T) {
	expirer := &stubExpirer{}
	jobs := &stubPendingFilter{}
	reconciler := &stubReconciler{}

	sel := &stubSelector{}
	replenisher := createTestReplenisher(t, jobs, &stubLedger{}, sel, &recordingGateway{}, nil, 0)

	sweeper := NewSweeper(2*time.Minute, expirer, jobs, reconciler, replenisher, logger.NewTestLogger(t))
	sweeper.Sweep(context.Background())

	assert.Equal(t, 0, sel.calls)
	assert.Equal(t, 1, reconciler.calls)
}

func TestSweep_ExpiryErrorSkipsPass(t *testing.T) {
	expirer := &stubExpirer{err: errors.New("db down")}
	jobs := &stubPendingFilter{}
	reconciler := &stubReconciler{}

	replenisher := createTestReplenisher(t, jobs, &stubLedger{}, &stubSelector{}, &recordingGateway{}, nil, 0)

	sweeper := NewSweeper(2*time.Minute, expirer, jobs, reconciler, replenisher, logger.NewTestLogger(t))
	sweeper.Sweep(context.Background())

	assert.Equal(t, 0, reconciler.calls)
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	jobs := &stubPendingFilter{}
	replenisher := createTestReplenisher(t, jobs, &stubLedger{}, &stubSelector{}, &recordingGateway{}, nil, 0)
	sweeper := NewSweeper(time.Minute, &stubExpirer{}, jobs, &stubReconciler{}, replenisher, logger.NewTestLogger(t))

	assert.Error(t, sweeper.Start("not a cron spec"))
}
