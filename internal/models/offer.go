// internal/models/offer.go
package models

import "time"

// OfferStatus is the lifecycle state of one (job, worker) offer.
type OfferStatus string

const (
	OfferStatusOffered  OfferStatus = "offered"
	OfferStatusAccepted OfferStatus = "accepted"
	OfferStatusRejected OfferStatus = "rejected"
	OfferStatusTimeout  OfferStatus = "timeout"
)

// IsTerminal reports whether the offer can no longer change state on its
// own. A timeout entry may be re-armed by a fresh offer to the same worker.
func (s OfferStatus) IsTerminal() bool {
	return s != OfferStatusOffered
}

// Offer is one ledger entry: a proposal of a specific job to a specific
// worker. The (JobID, WorkerID) pair is unique; Attempt counts re-offers
// after timeouts.
type Offer struct {
	JobID       string      `json:"jobId"`
	WorkerID    string      `json:"workerId"`
	Status      OfferStatus `json:"status"`
	Score       float64     `json:"score"`
	OfferedAt   time.Time   `json:"offeredAt"`
	RespondedAt *time.Time  `json:"respondedAt,omitempty"`
	Attempt     int         `json:"attempt"`
}
