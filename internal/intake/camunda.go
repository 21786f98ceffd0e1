package intake

import (
	"context"

	"tax-intake/internal/bridge"
	"tax-intake/internal/common/logger"
)

// ProcessStarter starts BPMN process instances.
type ProcessStarter interface {
	StartProcess(ctx context.Context, processID string, variables map[string]interface{}) (int64, error)
}

// CamundaIntake starts one process instance per inquiry; the process owns the
// follow-up with the customer.
type CamundaIntake struct {
	starter   ProcessStarter
	processID string
	logger    logger.Logger
}

func NewCamundaIntake(starter ProcessStarter, processID string, log logger.Logger) *CamundaIntake {
	return &CamundaIntake{starter: starter, processID: processID, logger: log}
}

func (c *CamundaIntake) SubmitManualQuoteInquiry(ctx context.Context, inq bridge.Inquiry) error {
	key, err := c.starter.StartProcess(ctx, c.processID, Variables(inq))
	if err != nil {
		return err
	}

	c.logger.Info("Inquiry process started", map[string]interface{}{
		"sessionId":          inq.SessionID,
		"processId":          c.processID,
		"processInstanceKey": key,
	})
	return nil
}

// Variables maps an inquiry onto process variables.
func Variables(inq bridge.Inquiry) map[string]interface{} {
	return map[string]interface{}{
		"sessionId":           inq.SessionID,
		"firstName":           inq.FirstName,
		"lastName":            inq.LastName,
		"phone":               inq.Phone,
		"email":               inq.Email,
		"effectiveEmployment": string(inq.Employment),
		"summary":             Summary(inq),
	}
}
