// internal/workers/dispatch/dispatch-job/handler.go
package dispatchjob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/dispatch/replenish"
	"dispatch-engine/internal/dispatch/store"
	"dispatch-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "dispatch-job"
)

var (
	ErrJobNotFound    = errors.New("JOB_NOT_FOUND")
	ErrJobUnavailable = errors.New("JOB_UNAVAILABLE")
	ErrDispatchFailed = errors.New("DISPATCH_FAILED")
)

// JobReader loads a job so the initial dispatch can be validated before
// any offers are issued.
type JobReader interface {
	Get(ctx context.Context, jobID string) (*models.Job, error)
}

// OfferReplenisher fills a job's offer pool to the target size.
type OfferReplenisher interface {
	Replenish(ctx context.Context, jobID, trigger string) (int, error)
}

type Handler struct {
	config      *Config
	jobs        JobReader
	replenisher OfferReplenisher
	logger      logger.Logger
}

func NewHandler(config *Config, jobs JobReader, replenisher OfferReplenisher, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		jobs:        jobs,
		replenisher: replenisher,
		logger:      log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		if errors.Is(err, ErrJobNotFound) {
			errorCode = "JOB_NOT_FOUND"
		} else if errors.Is(err, ErrJobUnavailable) {
			errorCode = "JOB_UNAVAILABLE"
		} else if errors.Is(err, ErrDispatchFailed) {
			errorCode = "DISPATCH_FAILED"
			retries = 3
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.JobID == "" {
		return nil, fmt.Errorf("%w: jobId is required", ErrJobNotFound)
	}

	job, err := h.jobs.Get(ctx, input.JobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, fmt.Errorf("%w: job %s", ErrJobNotFound, input.JobID)
		}
		return nil, fmt.Errorf("%w: load job: %v", ErrDispatchFailed, err)
	}
	if job.Status != models.JobStatusPending {
		return nil, fmt.Errorf("%w: job %s is %s", ErrJobUnavailable, job.ID, job.Status)
	}

	issued, err := h.replenisher.Replenish(ctx, job.ID, replenish.TriggerInitial)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	// Zero offers is a reportable result, not a failure: the pool may be
	// empty for the category, or a throttled burst already covered the job.
	h.logger.Info("job dispatched", map[string]interface{}{
		"jobId":        job.ID,
		"category":     job.Category,
		"offersIssued": issued,
	})

	return &Output{
		JobID:        job.ID,
		OffersIssued: issued,
		DispatchedAt: time.Now().UTC().Format(time.RFC3339),
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
