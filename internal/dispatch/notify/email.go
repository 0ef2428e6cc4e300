// internal/dispatch/notify/email.go
package notify

import (
	"context"
	"fmt"
	"time"

	"dispatch-engine/internal/common/logger"
)

// EmailSender is the slice of the SES client used for customer email.
type EmailSender interface {
	SendPlainEmail(ctx context.Context, from, to, subject, body string) error
}

// CustomerMailer sends customer-facing email on acceptance. Best-effort:
// a failed send is logged and swallowed, it never fails the accept flow.
type CustomerMailer struct {
	sender  EmailSender
	from    string
	timeout time.Duration
	logger  logger.Logger
}

func NewCustomerMailer(sender EmailSender, from string, timeout time.Duration, log logger.Logger) *CustomerMailer {
	return &CustomerMailer{
		sender:  sender,
		from:    from,
		timeout: timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "customerMailer"}),
	}
}

// JobAccepted tells the customer which worker took their job.
func (m *CustomerMailer) JobAccepted(ctx context.Context, customerEmail, jobID, workerName string) {
	if m.sender == nil || customerEmail == "" {
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	subject := "Your service request has been accepted"
	body := fmt.Sprintf("Good news: %s accepted your request (ref %s) and will be in touch shortly.", workerName, jobID)

	if err := m.sender.SendPlainEmail(sendCtx, m.from, customerEmail, subject, body); err != nil {
		m.logger.Warn("customer email failed", map[string]interface{}{
			"jobId": jobID,
			"error": err.Error(),
		})
	}
}
