// internal/workers/dispatch/replenish-offers/handler.go
package replenishoffers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dispatch-engine/internal/common/logger"
	"dispatch-engine/internal/dispatch/replenish"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "replenish-offers"
)

var (
	ErrReplenishFailed = errors.New("REPLENISH_FAILED")
)

var knownTriggers = map[string]bool{
	replenish.TriggerInitial: true,
	replenish.TriggerReject:  true,
	replenish.TriggerTimeout: true,
	replenish.TriggerSweep:   true,
}

// OfferReplenisher fills a job's offer pool to the target size.
type OfferReplenisher interface {
	Replenish(ctx context.Context, jobID, trigger string) (int, error)
}

type Handler struct {
	config      *Config
	replenisher OfferReplenisher
	logger      logger.Logger
}

func NewHandler(config *Config, replenisher OfferReplenisher, log logger.Logger) *Handler {
	return &Handler{
		config:      config,
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
		if errors.Is(err, ErrReplenishFailed) {
			errorCode = "REPLENISH_FAILED"
			retries = 3
		}
		h.failJob(client, job, errorCode, err.Error(), retries)
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.JobID == "" {
		return nil, fmt.Errorf("%w: jobId is required", ErrReplenishFailed)
	}

	trigger := input.Trigger
	if !knownTriggers[trigger] {
		trigger = replenish.TriggerTimeout
	}

	issued, err := h.replenisher.Replenish(ctx, input.JobID, trigger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReplenishFailed, err)
	}

	return &Output{
		JobID:        input.JobID,
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
