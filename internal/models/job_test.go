// internal/models/job_test.go
package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobStatusPending, JobStatusAccepted, true},
		{JobStatusAccepted, JobStatusInProgress, true},
		{JobStatusInProgress, JobStatusCompleted, true},
		{JobStatusPending, JobStatusCancelled, true},
		{JobStatusAccepted, JobStatusCancelled, true},
		{JobStatusInProgress, JobStatusCancelled, true},

		{JobStatusPending, JobStatusInProgress, false},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusAccepted, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusCancelled, false},
		{JobStatusCancelled, JobStatusAccepted, false},
		{JobStatusCompleted, JobStatusPending, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusCancelled.IsTerminal())
	assert.False(t, JobStatusPending.IsTerminal())
	assert.False(t, JobStatusAccepted.IsTerminal())
	assert.False(t, JobStatusInProgress.IsTerminal())
}

func TestOfferStatus_IsTerminal(t *testing.T) {
	assert.False(t, OfferStatusOffered.IsTerminal())
	assert.True(t, OfferStatusAccepted.IsTerminal())
	assert.True(t, OfferStatusRejected.IsTerminal())
	assert.True(t, OfferStatusTimeout.IsTerminal())
}

func TestWorker_ServesCategory(t *testing.T) {
	w := &Worker{Categories: []string{"plumbing", "electrical"}}

	assert.True(t, w.ServesCategory("plumbing"))
	assert.True(t, w.ServesCategory("PLUMBING"))
	assert.False(t, w.ServesCategory("cleaning"))
}

func TestLocation_IsZero(t *testing.T) {
	assert.True(t, Location{}.IsZero())
	assert.False(t, Location{Lat: 19.0760, Lng: 72.8777}.IsZero())
}
