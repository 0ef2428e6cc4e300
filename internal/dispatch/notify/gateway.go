// internal/dispatch/notify/gateway.go
package notify

import (
	"context"
	"encoding/json"
	"time"

	"dispatch-engine/internal/common/logger"
)

// Event names pushed through the gateway.
const (
	EventOfferCreated = "assignment_request"
	EventJobAccepted  = "job_accepted"
	EventJobUpdated   = "job_status_updated"
)

// Gateway delivers offer/acceptance events to workers. Delivery is
// fire-and-forget, at-most-once: the dispatch path never waits on, or
// fails because of, a delivery.
type Gateway interface {
	Send(ctx context.Context, workerID, event string, payload map[string]interface{}) error
}

// SNSPublisher is the slice of the SNS client the gateway needs.
type SNSPublisher interface {
	PublishJSON(ctx context.Context, topicARN, workerID, body string) error
}

// SNSGateway pushes events to a topic; per-worker delivery is resolved by
// subscription filters on the workerId message attribute.
type SNSGateway struct {
	publisher SNSPublisher
	topicARN  string
	timeout   time.Duration
	logger    logger.Logger
}

func NewSNSGateway(publisher SNSPublisher, topicARN string, timeout time.Duration, log logger.Logger) *SNSGateway {
	return &SNSGateway{
		publisher: publisher,
		topicARN:  topicARN,
		timeout:   timeout,
		logger:    log.WithFields(map[string]interface{}{"component": "snsGateway"}),
	}
}

func (g *SNSGateway) Send(ctx context.Context, workerID, event string, payload map[string]interface{}) error {
	msg := map[string]interface{}{
		"event":    event,
		"workerId": workerID,
		"payload":  payload,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.publisher.PublishJSON(sendCtx, g.topicARN, workerID, string(body)); err != nil {
		g.logger.Warn("notification delivery failed", map[string]interface{}{
			"workerId": workerID,
			"event":    event,
			"error":    err.Error(),
		})
		return err
	}
	return nil
}

// NoopGateway drops every event. Used when SNS is disabled and in tests.
type NoopGateway struct{}

func (NoopGateway) Send(context.Context, string, string, map[string]interface{}) error {
	return nil
}
