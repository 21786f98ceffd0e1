package intake

import (
	"context"
	"fmt"

	"tax-intake/internal/bridge"
	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
)

// EmailSender sends plain-text mail.
type EmailSender interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

// Notifying emails the office after each delivered inquiry.
type Notifying struct {
	next   bridge.InquiryIntake
	email  EmailSender
	from   string
	to     string
	logger logger.Logger
}

func NewNotifying(next bridge.InquiryIntake, email EmailSender, from, to string, log logger.Logger) *Notifying {
	return &Notifying{next: next, email: email, from: from, to: to, logger: log}
}

// SubmitManualQuoteInquiry delivers the inquiry, then notifies. A failed
// notification is logged and does not fail the inquiry.
func (n *Notifying) SubmitManualQuoteInquiry(ctx context.Context, inq bridge.Inquiry) error {
	if err := n.next.SubmitManualQuoteInquiry(ctx, inq); err != nil {
		return err
	}

	subject := fmt.Sprintf("Manual quote inquiry: %s %s", inq.FirstName, inq.LastName)
	messageID, err := n.email.SendText(ctx, n.from, n.to, subject, Summary(inq))
	if err != nil {
		stdErr := errors.NewNotificationSendFailedError("email", err)
		n.logger.Error("Office notification failed", map[string]interface{}{
			"sessionId": inq.SessionID,
			"errorCode": string(stdErr.Code),
			"error":     err.Error(),
		})
		return nil
	}

	n.logger.Debug("Office notified", map[string]interface{}{
		"sessionId": inq.SessionID,
		"messageId": messageID,
	})
	return nil
}
