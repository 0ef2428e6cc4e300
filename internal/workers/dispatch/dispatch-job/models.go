// internal/workers/dispatch/dispatch-job/models.go
package dispatchjob

type Input struct {
	JobID string `json:"jobId"`
}

type Output struct {
	JobID        string `json:"jobId"`
	OffersIssued int    `json:"offersIssued"`
	DispatchedAt string `json:"dispatchedAt"` // ISO 8601
}
