// internal/workers/dispatch/replenish-offers/models.go
package replenishoffers

type Input struct {
	JobID   string `json:"jobId"`
	Trigger string `json:"trigger,omitempty"`
}

type Output struct {
	JobID        string `json:"jobId"`
	OffersIssued int    `json:"offersIssued"`
}
