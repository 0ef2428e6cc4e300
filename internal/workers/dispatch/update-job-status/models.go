// internal/workers/dispatch/update-job-status/models.go
package updatejobstatus

type Input struct {
	JobID    string `json:"jobId"`
	WorkerID string `json:"workerId,omitempty"`
	Status   string `json:"status"`
}

type Output struct {
	JobID     string `json:"jobId"`
	JobStatus string `json:"jobStatus"`
	UpdatedAt string `json:"updatedAt"` // ISO 8601
}
