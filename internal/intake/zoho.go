// Package intake delivers manual-quote inquiries to the office, either as CRM
// leads or as a BPMN process, with de-duplication and notification wrappers.
package intake

import (
	"context"
	"fmt"
	"strings"

	"tax-intake/internal/bridge"
	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/zoho"
)

const leadSource = "Tax questionnaire"

// LeadClient is the part of the Zoho CRM client the intake needs.
type LeadClient interface {
	SearchLeads(ctx context.Context, email string) ([]zoho.Lead, error)
	CreateLead(ctx context.Context, lead *zoho.Lead) (string, error)
}

// ZohoIntake files each inquiry as a CRM lead.
type ZohoIntake struct {
	crm    LeadClient
	logger logger.Logger
}

func NewZohoIntake(crm LeadClient, log logger.Logger) *ZohoIntake {
	return &ZohoIntake{crm: crm, logger: log}
}

// SubmitManualQuoteInquiry creates a lead unless one with the same email
// exists already.
func (z *ZohoIntake) SubmitManualQuoteInquiry(ctx context.Context, inq bridge.Inquiry) error {
	email := strings.TrimSpace(inq.Email)

	existing, err := z.crm.SearchLeads(ctx, email)
	if err != nil {
		return crmError(err)
	}
	for _, lead := range existing {
		if strings.EqualFold(lead.Email, email) {
			z.logger.Info("Lead already exists", map[string]interface{}{
				"sessionId": inq.SessionID,
				"leadId":    lead.ID,
			})
			return nil
		}
	}

	id, err := z.crm.CreateLead(ctx, &zoho.Lead{
		Email:       email,
		FirstName:   strings.TrimSpace(inq.FirstName),
		LastName:    strings.TrimSpace(inq.LastName),
		Phone:       strings.TrimSpace(inq.Phone),
		Source:      leadSource,
		Description: Summary(inq),
	})
	if err != nil {
		return crmError(err)
	}

	z.logger.Info("Lead created", map[string]interface{}{
		"sessionId": inq.SessionID,
		"leadId":    id,
	})
	return nil
}

// Summary is the human-readable inquiry text used for leads and emails.
func Summary(inq bridge.Inquiry) string {
	return fmt.Sprintf(
		"Manual quote requested.\nName: %s %s\nPhone: %s\nEmail: %s\nEmployment: %s\nSession: %s",
		inq.FirstName, inq.LastName, inq.Phone, inq.Email, inq.Employment, inq.SessionID,
	)
}

func crmError(err error) error {
	stdErr := errors.NewExternalServiceError("zoho", err)
	if statusErr, ok := err.(*zoho.StatusError); ok && !statusErr.Temporary() {
		stdErr.Retryable = false
	}
	return stdErr
}
