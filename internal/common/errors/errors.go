// Package errors provides standardized error handling for BPMN workflow integration.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Dispatch engine error codes. The first group is expected contention and is
// surfaced as a normal negative result; the rest are infrastructure failures.
const (
	ErrCodeWorkerUnavailable ErrorCode = "WORKER_UNAVAILABLE"
	ErrCodeJobUnavailable    ErrorCode = "JOB_UNAVAILABLE"
	ErrCodeDuplicateOffer    ErrorCode = "DUPLICATE_OFFER"
	ErrCodeNoCandidates      ErrorCode = "NO_CANDIDATES"

	ErrCodeInvalidTransition ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeJobNotFound       ErrorCode = "JOB_NOT_FOUND"
	ErrCodeWorkerNotFound    ErrorCode = "WORKER_NOT_FOUND"

	ErrCodeModelUnavailable ErrorCode = "MODEL_UNAVAILABLE"
	ErrCodeModelTimeout     ErrorCode = "MODEL_TIMEOUT"
	ErrCodeModelMalformed   ErrorCode = "MODEL_OUTPUT_MALFORMED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
	ErrCodeQueryTimeout             ErrorCode = "QUERY_TIMEOUT"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeAuditIndexFailed       ErrorCode = "AUDIT_INDEX_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}

	if e.ErrorVariables != nil {
		for k, v := range e.ErrorVariables {
			vars[k] = v
		}
	}

	return vars
}

// ConvertToBPMNError maps a StandardError onto the workflow error shape.
func ConvertToBPMNError(err *StandardError) *BPMNError {
	return &BPMNError{
		Code:           string(err.Code),
		Message:        err.Message,
		Details:        err.Details,
		Retryable:      err.Retryable,
		ErrorVariables: err.Metadata,
	}
}

// ==========================
// 3. Error Constructors
// ==========================

// NewWorkerUnavailableError reports that a concurrent accept (or an
// availability toggle) claimed the worker first. Expected contention.
func NewWorkerUnavailableError(workerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeWorkerUnavailable,
		Message:   "Worker is currently not available",
		Details:   workerID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobUnavailableError reports that the job was claimed by another worker
// or cancelled. Expected contention.
func NewJobUnavailableError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobUnavailable,
		Message:   "Job is no longer available",
		Details:   jobID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicateOfferError reports an attempt to re-offer a job to a worker
// that already holds a live entry for it.
func NewDuplicateOfferError(jobID, workerID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateOffer,
		Message:   "Offer already exists for this job and worker",
		Details:   fmt.Sprintf("job=%s worker=%s", jobID, workerID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError reports an illegal job status progression.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Illegal job status transition",
		Details:   fmt.Sprintf("%s -> %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelUnavailableError reports that the inference endpoint could not be
// reached or refused the request. Callers fall back to heuristic scoring.
func NewModelUnavailableError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelUnavailable,
		Message:   "Inference endpoint unavailable",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelTimeoutError reports that inference exceeded its deadline.
func NewModelTimeoutError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelTimeout,
		Message:   "Inference call timed out",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewModelMalformedError reports an inference response whose shape cannot be
// interpreted as class probabilities.
func NewModelMalformedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeModelMalformed,
		Message:   "Inference response malformed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryFailedError wraps a storage failure as retryable.
func NewQueryFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Query execution failed",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
