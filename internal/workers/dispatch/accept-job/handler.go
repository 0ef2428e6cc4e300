// internal/workers/dispatch/accept-job/handler.go
package acceptjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/common/observability"
	"dispatch-engine/internal/dispatch/audit"
	"dispatch-engine/internal/dispatch/coordinator"
	"dispatch-engine/internal/dispatch/notify"
	"dispatch-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "accept-job"
)

var (
	ErrWorkerUnavailable = errors.New("WORKER_UNAVAILABLE")
	ErrJobUnavailable    = errors.New("JOB_UNAVAILABLE")
	ErrAcceptFailed      = errors.New("ACCEPT_FAILED")
)

// Accepter resolves the accept race atomically.
type Accepter interface {
	Accept(ctx context.Context, jobID, workerID string) (*models.Job, error)
}

type Handler struct {
	config  *Config
	accepts Accepter
	gateway notify.Gateway
	mailer  *notify.CustomerMailer
	audit   *audit.Indexer
	obs     *observability.Observability
	logger  logger.Logger
}

func NewHandler(config *Config, accepts Accepter, gateway notify.Gateway, mailer *notify.CustomerMailer, auditor *audit.Indexer, obs *observability.Observability, log logger.Logger) *Handler {
	return &Handler{
		config:  config,
		accepts: accepts,
		gateway: gateway,
		mailer:  mailer,
		audit:   auditor,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		if errors.Is(err, ErrWorkerUnavailable) {
			errorCode = "WORKER_UNAVAILABLE"
		} else if errors.Is(err, ErrJobUnavailable) {
			errorCode = "JOB_UNAVAILABLE"
		} else if errors.Is(err, ErrAcceptFailed) {
			errorCode = "ACCEPT_FAILED"
			retries = 3
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.JobID == "" || input.WorkerID == "" {
		return nil, fmt.Errorf("%w: jobId and workerId are required", ErrAcceptFailed)
	}

	started := time.Now()
	acceptedJob, err := h.accepts.Accept(ctx, input.JobID, input.WorkerID)
	if err != nil {
		switch {
		case errors.Is(err, coordinator.ErrWorkerUnavailable):
			h.recordOutcome(ctx, input, started, "worker_unavailable")
			return nil, fmt.Errorf("%w: worker %s cannot take job %s", ErrWorkerUnavailable, input.WorkerID, input.JobID)
		case errors.Is(err, coordinator.ErrJobUnavailable):
			h.recordOutcome(ctx, input, started, "job_unavailable")
			return nil, fmt.Errorf("%w: job %s already taken", ErrJobUnavailable, input.JobID)
		default:
			return nil, fmt.Errorf("%w: %v", ErrAcceptFailed, err)
		}
	}

	h.recordOutcome(ctx, input, started, "accepted")

	// Confirmations are best-effort; the assignment is already durable.
	_ = h.gateway.Send(ctx, input.WorkerID, notify.EventJobAccepted, map[string]interface{}{
		"jobId":    acceptedJob.ID,
		"category": acceptedJob.Category,
	})
	if h.mailer != nil {
		h.mailer.JobAccepted(ctx, input.CustomerEmail, acceptedJob.ID, input.WorkerName)
	}

	h.logger.Info("job accepted", map[string]interface{}{
		"jobId":    acceptedJob.ID,
		"workerId": input.WorkerID,
	})

	return &Output{
		JobID:      acceptedJob.ID,
		WorkerID:   input.WorkerID,
		JobStatus:  string(acceptedJob.Status),
		AcceptedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) recordOutcome(ctx context.Context, input *Input, started time.Time, outcome string) {
	h.obs.RecordAcceptDuration(ctx, time.Since(started), outcome)
	h.audit.Index(ctx, audit.Event{
		Type:     "accept_attempt",
		JobID:    input.JobID,
		WorkerID: input.WorkerID,
		Outcome:  outcome,
	})
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
