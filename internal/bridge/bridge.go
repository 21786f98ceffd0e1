// Package bridge hands finished questionnaires to the outside world: manual
// quote inquiries go to the intake, accepted results start an order.
package bridge

import (
	"context"
	stderrors "errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"tax-intake/internal/common/errors"
	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/metrics"
	"tax-intake/internal/common/observability"
	"tax-intake/internal/questionnaire"
)

// Inquiry is the contact payload of a manual-quote request.
type Inquiry struct {
	SessionID  string                   `json:"sessionId"`
	FirstName  string                   `json:"firstName"`
	LastName   string                   `json:"lastName"`
	Phone      string                   `json:"phone"`
	Email      string                   `json:"email"`
	Employment questionnaire.Employment `json:"effectiveEmployment"`
}

// OrderRequest starts a self-serve order. Price is nil for tiers that are
// quoted manually.
type OrderRequest struct {
	SessionID  string             `json:"sessionId"`
	Tier       questionnaire.Tier `json:"tier"`
	TierCode   int                `json:"tierCode"`
	FilingYear int                `json:"filingYear"`
	Price      *int               `json:"price,omitempty"`
}

// InquiryIntake receives manual-quote inquiries.
type InquiryIntake interface {
	SubmitManualQuoteInquiry(ctx context.Context, inquiry Inquiry) error
}

// OrderStarter creates an order and returns where to send the user next.
type OrderStarter interface {
	StartOrder(ctx context.Context, req OrderRequest) (string, error)
}

type Options struct {
	Intake        InquiryIntake
	Orders        OrderStarter
	FilingYear    int
	Timeout       time.Duration
	Logger        logger.Logger
	Observability *observability.Observability
}

type Bridge struct {
	intake     InquiryIntake
	orders     OrderStarter
	filingYear int
	timeout    time.Duration
	logger     logger.Logger
	obs        *observability.Observability
}

func New(opts Options) *Bridge {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Bridge{
		intake:     opts.Intake,
		orders:     opts.Orders,
		filingYear: opts.FilingYear,
		timeout:    timeout,
		logger:     log,
		obs:        opts.Observability,
	}
}

// NewInquiry builds the intake payload from a session's answers.
func NewInquiry(sessionID string, a questionnaire.Answers) Inquiry {
	return Inquiry{
		SessionID:  sessionID,
		FirstName:  a.Contact.FirstName,
		LastName:   a.Contact.LastName,
		Phone:      a.Contact.Phone,
		Email:      a.Contact.Email,
		Employment: a.EffectiveEmployment(),
	}
}

// NewOrderRequest builds the order payload for a classification.
func NewOrderRequest(sessionID string, cl questionnaire.Classification, filingYear int) OrderRequest {
	return OrderRequest{
		SessionID:  sessionID,
		Tier:       cl.Tier,
		TierCode:   cl.Tier.Code(),
		FilingYear: filingYear,
		Price:      cl.Price,
	}
}

// SubmitInquiry sends the contact form of a manual-quote session. On failure
// the session keeps its answers so the same payload can be resubmitted.
func (b *Bridge) SubmitInquiry(ctx context.Context, c *questionnaire.Controller) error {
	ticket, err := c.BeginSubmission(questionnaire.SubmissionInquiry)
	if err != nil {
		return beginError(questionnaire.SubmissionInquiry, err)
	}

	inquiry := NewInquiry(c.SessionID(), ticket.Answers)
	err = b.call(ctx, ticket.Kind, c.SessionID(), func(ctx context.Context) error {
		return b.intake.SubmitManualQuoteInquiry(ctx, inquiry)
	})

	var result error
	if err != nil {
		result = errors.NewInquirySubmitFailedError(err).WithMetadata("sessionId", c.SessionID())
	}
	return b.finish(c, ticket, "", result)
}

// AcceptResult starts an order for the classified result and returns the
// redirect target.
func (b *Bridge) AcceptResult(ctx context.Context, c *questionnaire.Controller) (string, error) {
	ticket, err := c.BeginSubmission(questionnaire.SubmissionOrder)
	if err != nil {
		return "", beginError(questionnaire.SubmissionOrder, err)
	}

	req := NewOrderRequest(c.SessionID(), ticket.Classification, b.filingYear)
	var redirect string
	err = b.call(ctx, ticket.Kind, c.SessionID(), func(ctx context.Context) error {
		var err error
		redirect, err = b.orders.StartOrder(ctx, req)
		return err
	})

	var result error
	if err != nil {
		result = errors.NewOrderStartFailedError(err).
			WithMetadata("sessionId", c.SessionID()).
			WithMetadata("tierCode", req.TierCode)
		redirect = ""
	}
	if err := b.finish(c, ticket, redirect, result); err != nil {
		return "", err
	}
	return redirect, nil
}

// beginError maps a refused BeginSubmission onto the API error codes.
func beginError(kind questionnaire.SubmissionKind, err error) error {
	var notReady *questionnaire.NotReadyError
	switch {
	case stderrors.Is(err, questionnaire.ErrSubmissionInFlight):
		return errors.NewSubmissionInFlightError()
	case stderrors.Is(err, questionnaire.ErrSubmissionCompleted):
		return errors.NewSubmissionCompletedError(string(kind))
	case stderrors.As(err, &notReady):
		return errors.NewSubmissionNotReadyError(notReady.Reason)
	default:
		return errors.NewSubmissionNotReadyError(err.Error())
	}
}

// call runs fn with the bridge timeout inside a span and records its outcome.
func (b *Bridge) call(ctx context.Context, kind questionnaire.SubmissionKind, sessionID string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	ctx, span := b.obs.StartSpan(ctx, "bridge."+string(kind),
		attribute.String("session.id", sessionID),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	status := "succeeded"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	b.obs.RecordSubmission(ctx, string(kind), status, time.Since(start))
	metrics.Submissions.WithLabelValues(string(kind), status).Inc()
	return err
}

func (b *Bridge) finish(c *questionnaire.Controller, ticket questionnaire.Ticket, redirect string, result error) error {
	retryable := errors.IsRetryable(result)
	if !c.FinishSubmission(ticket, redirect, result, retryable) {
		b.logger.Warn("Submission outcome discarded after restart", map[string]interface{}{
			"sessionId": c.SessionID(),
			"kind":      string(ticket.Kind),
		})
		return errors.NewSubmissionDiscardedError()
	}

	if result != nil {
		b.logger.Error("Submission failed", map[string]interface{}{
			"sessionId": c.SessionID(),
			"kind":      string(ticket.Kind),
			"error":     result.Error(),
			"retryable": retryable,
		})
		return result
	}

	b.logger.Info("Submission succeeded", map[string]interface{}{
		"sessionId": c.SessionID(),
		"kind":      string(ticket.Kind),
	})
	return nil
}
