// internal/workers/dispatch/update-job-status/handler.go
package updatejobstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/dispatch/coordinator"
	"dispatch-engine/internal/dispatch/notify"
	"dispatch-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-job-status"
)

var (
	ErrInvalidTransition = errors.New("INVALID_STATUS_TRANSITION")
	ErrUpdateFailed      = errors.New("STATUS_UPDATE_FAILED")
)

// Lifecycle advances an assigned job through its remaining states.
type Lifecycle interface {
	Start(ctx context.Context, jobID, workerID string) error
	Complete(ctx context.Context, jobID, workerID string) error
	Cancel(ctx context.Context, jobID string) error
}

type Handler struct {
	config    *Config
	lifecycle Lifecycle
	gateway   notify.Gateway
	logger    logger.Logger
}

func NewHandler(config *Config, lifecycle Lifecycle, gateway notify.Gateway, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		lifecycle: lifecycle,
		gateway:   gateway,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err), 0)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "UNKNOWN_ERROR"
		retries := int32(0)
		if errors.Is(err, ErrInvalidTransition) {
			errorCode = "INVALID_STATUS_TRANSITION"
		} else if errors.Is(err, ErrUpdateFailed) {
			errorCode = "STATUS_UPDATE_FAILED"
			retries = 3
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.JobID == "" {
		return nil, fmt.Errorf("%w: jobId is required", ErrUpdateFailed)
	}

	target := models.JobStatus(input.Status)
	var err error
	switch target {
	case models.JobStatusInProgress:
		err = h.lifecycle.Start(ctx, input.JobID, input.WorkerID)
	case models.JobStatusCompleted:
		err = h.lifecycle.Complete(ctx, input.JobID, input.WorkerID)
	case models.JobStatusCancelled:
		err = h.lifecycle.Cancel(ctx, input.JobID)
	default:
		return nil, fmt.Errorf("%w: cannot move a job to %q", ErrInvalidTransition, input.Status)
	}
	if err != nil {
		if errors.Is(err, coordinator.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: job %s cannot move to %s", ErrInvalidTransition, input.JobID, target)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}

	if input.WorkerID != "" {
		_ = h.gateway.Send(ctx, input.WorkerID, notify.EventJobUpdated, map[string]interface{}{
			"jobId":  input.JobID,
			"status": string(target),
		})
	}

	h.logger.Info("job status updated", map[string]interface{}{
		"jobId":  input.JobID,
		"status": string(target),
	})

	return &Output{
		JobID:     input.JobID,
		JobStatus: string(target),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	} else {
		h.logger.Info("job completed successfully", map[string]interface{}{
			"jobKey": job.Key,
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string, retries int32) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
		"retries":      retries,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
