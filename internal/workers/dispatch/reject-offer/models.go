// internal/workers/dispatch/reject-offer/models.go
package rejectoffer

type Input struct {
	JobID    string `json:"jobId"`
	WorkerID string `json:"workerId"`
}

type Output struct {
	JobID        string `json:"jobId"`
	WorkerID     string `json:"workerId"`
	OfferUpdated bool   `json:"offerUpdated"`
	OffersIssued int    `json:"offersIssued"`
}
