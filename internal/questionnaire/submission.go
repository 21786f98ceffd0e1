package questionnaire

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrSubmissionNotReady  = errors.New("SUBMISSION_NOT_READY")
	ErrSubmissionCompleted = errors.New("SUBMISSION_COMPLETED")
)

// NotReadyError says why a submission cannot start from the current state.
// It matches ErrSubmissionNotReady.
type NotReadyError struct {
	Reason string
}

func (e *NotReadyError) Error() string {
	return "submission not ready: " + e.Reason
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrSubmissionNotReady
}

func notReady(format string, args ...interface{}) error {
	return &NotReadyError{Reason: fmt.Sprintf(format, args...)}
}

// SubmissionKind distinguishes the two collaborator hand-offs.
type SubmissionKind string

const (
	SubmissionInquiry SubmissionKind = "inquiry"
	SubmissionOrder   SubmissionKind = "order"
)

type SubmissionStatus string

const (
	SubmissionIdle      SubmissionStatus = "idle"
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionSucceeded SubmissionStatus = "succeeded"
	SubmissionFailed    SubmissionStatus = "failed"
)

// Submission is the last hand-off attempt of the session.
type Submission struct {
	Kind      SubmissionKind   `json:"kind,omitempty"`
	Status    SubmissionStatus `json:"status"`
	Redirect  string           `json:"redirect,omitempty"`
	Error     string           `json:"error,omitempty"`
	Retryable bool             `json:"retryable,omitempty"`
	UpdatedAt time.Time        `json:"updatedAt,omitempty"`
}

// Ticket identifies one in-flight submission and carries the answers it was
// started from.
type Ticket struct {
	Kind           SubmissionKind
	Answers        Answers
	Classification Classification
	epoch          uint64
}

// BeginSubmission marks a submission as pending. Only one submission may be
// in flight per session, and a kind that already succeeded is not sent again
// until the session restarts. Readiness is judged on the same answers the
// ticket carries: an inquiry needs the contact form with complete contact
// details, an order needs the result step with a final, priced tier.
func (c *Controller) BeginSubmission(kind SubmissionKind) (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.submission.Status {
	case SubmissionPending:
		return Ticket{}, ErrSubmissionInFlight
	case SubmissionSucceeded:
		if c.submission.Kind == kind {
			return Ticket{}, fmt.Errorf("%w: %s", ErrSubmissionCompleted, kind)
		}
	}

	cl, err := c.readyLocked(kind)
	if err != nil {
		return Ticket{}, err
	}

	c.submission = Submission{Kind: kind, Status: SubmissionPending, UpdatedAt: time.Now().UTC()}
	return Ticket{Kind: kind, Answers: c.answers, Classification: cl, epoch: c.epoch}, nil
}

func (c *Controller) readyLocked(kind SubmissionKind) (Classification, error) {
	step := c.steps[c.index]
	switch kind {
	case SubmissionInquiry:
		if step != StepContactForm {
			return Classification{}, notReady("session is on step %s, not %s", step, StepContactForm)
		}
		if !ContactComplete(c.answers.Contact) {
			return Classification{}, notReady("contact details are incomplete")
		}
		return Classify(c.answers), nil
	case SubmissionOrder:
		if step != StepResult {
			return Classification{}, notReady("session is on step %s, not %s", step, StepResult)
		}
		cl := Classify(c.answers)
		if !cl.Complete || cl.ManualQuote {
			return Classification{}, notReady("no priced tier to order")
		}
		return cl, nil
	default:
		return Classification{}, fmt.Errorf("%w: submission kind %q", ErrInvalidValue, kind)
	}
}

// FinishSubmission records the outcome of t. It returns false when the
// session was restarted since t began; the outcome is then dropped.
func (c *Controller) FinishSubmission(t Ticket, redirect string, err error, retryable bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t.epoch != c.epoch || c.submission.Status != SubmissionPending {
		return false
	}

	s := Submission{Kind: t.Kind, Status: SubmissionSucceeded, Redirect: redirect, UpdatedAt: time.Now().UTC()}
	if err != nil {
		s.Status = SubmissionFailed
		s.Redirect = ""
		s.Error = err.Error()
		s.Retryable = retryable
	}
	c.submission = s
	return true
}

// Submission returns the last submission state.
func (c *Controller) Submission() Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submission
}
