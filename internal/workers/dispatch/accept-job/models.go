// internal/workers/dispatch/accept-job/models.go
package acceptjob

type Input struct {
	JobID         string `json:"jobId"`
	WorkerID      string `json:"workerId"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	WorkerName    string `json:"workerName,omitempty"`
}

type Output struct {
	JobID      string `json:"jobId"`
	WorkerID   string `json:"workerId"`
	JobStatus  string `json:"jobStatus"`
	AcceptedAt string `json:"acceptedAt"` // ISO 8601
}
