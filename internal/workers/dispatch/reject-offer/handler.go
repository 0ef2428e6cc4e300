// internal/workers/dispatch/reject-offer/handler.go
package rejectoffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/dispatch/audit"
	"dispatch-engine/internal/dispatch/replenish"
	"dispatch-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "reject-offer"
)

var (
	ErrRejectFailed = errors.New("REJECT_FAILED")
)

// OfferResponder settles a worker's response on their outstanding offer.
type OfferResponder interface {
	MarkResponded(ctx context.Context, jobID, workerID string, outcome models.OfferStatus) (bool, error)
}

// OfferReplenisher backfills the pool after a declined offer.
type OfferReplenisher interface {
	Replenish(ctx context.Context, jobID, trigger string) (int, error)
}

type Handler struct {
	config      *Config
	offers      OfferResponder
	replenisher OfferReplenisher
	audit       *audit.Indexer
	logger      logger.Logger
}

func NewHandler(config *Config, offers OfferResponder, replenisher OfferReplenisher, auditor *audit.Indexer, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
		offers:      offers,
		replenisher: replenisher,
		audit:       auditor,
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
		if errors.Is(err, ErrRejectFailed) {
			errorCode = "REJECT_FAILED"
			retries = 3
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.JobID == "" || input.WorkerID == "" {
		return nil, fmt.Errorf("%w: jobId and workerId are required", ErrRejectFailed)
	}

	// A stale decline (offer already timed out or settled) is a no-op,
	// not an error: the worker's intent is already satisfied.
	updated, err := h.offers.MarkResponded(ctx, input.JobID, input.WorkerID, models.OfferStatusRejected)
	if err != nil {
		return nil, fmt.Errorf("%w: mark offer rejected: %v", ErrRejectFailed, err)
	}

	issued := 0
	if updated {
		h.audit.Index(ctx, audit.Event{
			Type:     "offer_rejected",
			JobID:    input.JobID,
			WorkerID: input.WorkerID,
		})

		issued, err = h.replenisher.Replenish(ctx, input.JobID, replenish.TriggerReject)
		if err != nil {
			return nil, fmt.Errorf("%w: replenish after reject: %v", ErrRejectFailed, err)
		}
	} else {
		h.logger.Debug("offer already settled, skipping reject", map[string]interface{}{
			"jobId":    input.JobID,
			"workerId": input.WorkerID,
		})
	}

	return &Output{
		JobID:        input.JobID,
		WorkerID:     input.WorkerID,
		OfferUpdated: updated,
		OffersIssued: issued,
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
