// internal/dispatch/audit/indexer.go
package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"dispatch-engine/internal/common/logger"
)

// Event is one dispatch decision worth keeping for offline analysis:
// who was offered what, at which score, and how the race resolved.
type Event struct {
	Type      string    `json:"type"` // offer_issued | job_accepted | accept_rejected | offer_expired
	JobID     string    `json:"jobId"`
	WorkerID  string    `json:"workerId,omitempty"`
	Category  string    `json:"category,omitempty"`
	Score     float64   `json:"score,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	Trigger   string    `json:"trigger,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Indexer writes dispatch events to Elasticsearch, best-effort. Index
// failures are logged at warn and never surfaced to the dispatch path.
type Indexer struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(client *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	return &Indexer{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "auditIndexer"}),
	}
}

// Index records one event. Safe to call on a nil receiver or with no
// client configured; both are silent no-ops.
func (i *Indexer) Index(ctx context.Context, event Event) {
	if i == nil || i.client == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		i.logger.Warn("audit event marshal failed", map[string]interface{}{
			"type":  event.Type,
			"error": err.Error(),
		})
		return
	}

	indexCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := i.client.Index(
		i.index,
		strings.NewReader(string(body)),
		i.client.Index.WithDocumentID(uuid.New().String()),
		i.client.Index.WithContext(indexCtx),
	)
	if err != nil {
		i.logger.Warn("audit index failed", map[string]interface{}{
			"type":  event.Type,
			"jobId": event.JobID,
			"error": err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.logger.Warn("audit index rejected", map[string]interface{}{
			"type":   event.Type,
			"jobId":  event.JobID,
			"status": res.Status(),
		})
	}
}
