// internal/models/job.go
package models

import "time"

// JobStatus is the lifecycle state of a service request.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusAccepted   JobStatus = "accepted"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Location is a WGS84 point. Lat/Lng of 0,0 means "unknown".
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the location was never set.
func (l Location) IsZero() bool {
	return l.Lat == 0 && l.Lng == 0
}

// Job is a single service request awaiting worker assignment.
// WorkerID is non-empty iff Status is accepted, in_progress or completed.
type Job struct {
	ID           string    `json:"id"`
	CustomerID   string    `json:"customerId"`
	Category     string    `json:"category"`
	Location     Location  `json:"location"`
	Status       JobStatus `json:"status"`
	WorkerID     string    `json:"workerId,omitempty"`
	BookingValue float64   `json:"bookingValue"`
	Weather      string    `json:"weather,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// IsTerminal reports whether no further status transition is possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusCancelled
}

// CanTransitionTo reports whether the status progression s -> next is legal.
// pending -> accepted -> in_progress -> completed, with cancellation allowed
// from every non-terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	switch next {
	case JobStatusAccepted:
		return s == JobStatusPending
	case JobStatusInProgress:
		return s == JobStatusAccepted
	case JobStatusCompleted:
		return s == JobStatusInProgress
	case JobStatusCancelled:
		return true
	}
	return false
}
