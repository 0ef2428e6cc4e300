// internal/dispatch/notify/gateway_test.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"dispatch-engine/internal/common/logger"
)

type stubPublisher struct {
	topicARN string
	workerID string
	body     string
	err      error
}

func (p *stubPublisher) PublishJSON(_ context.Context, topicARN, workerID, body string) error {
	p.topicARN = topicARN
	p.workerID = workerID
	p.body = body
	return p.err
}

func TestSNSGateway_Send(t *testing.T) {
	pub := &stubPublisher{}
	gw := NewSNSGateway(pub, "arn:aws:sns:ap-south-1:000000000000:dispatch", 5*time.Second, logger.NewTestLogger(t))

	err := gw.Send(context.Background(), "worker-001", EventOfferCreated, map[string]interface{}{
		"jobId": "job-001",
	})
	assert.NoError(t, err)
	assert.Equal(t, "arn:aws:sns:ap-south-1:000000000000:dispatch", pub.topicARN)
	assert.Equal(t, "worker-001", pub.workerID)

	var msg map[string]interface{}
	assert.NoError(t, json.Unmarshal([]byte(pub.body), &msg))
	assert.Equal(t, EventOfferCreated, msg["event"])
	assert.Equal(t, "worker-001", msg["workerId"])
	assert.Equal(t, "job-001", msg["payload"].(map[string]interface{})["jobId"])
}

func TestSNSGateway_DeliveryFailureIsReturned(t *testing.T) {
	pub := &stubPublisher{err: errors.New("endpoint unreachable")}
	gw := NewSNSGateway(pub, "arn:test", time.Second, logger.NewTestLogger(t))

	err := gw.Send(context.Background(), "worker-001", EventJobAccepted, nil)
	assert.Error(t, err)
}

func TestNoopGateway(t *testing.T) {
	assert.NoError(t, NoopGateway{}.Send(context.Background(), "worker-001", EventJobUpdated, nil))
}
