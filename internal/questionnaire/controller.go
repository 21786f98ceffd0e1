package questionnaire

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"tax-intake/internal/common/logger"
)

var (
	ErrStepUnreachable    = errors.New("STEP_UNREACHABLE")
	ErrSubmissionInFlight = errors.New("SUBMISSION_IN_FLIGHT")
)

// Direction only selects the transition animation.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// EventType names an analytics notification.
type EventType string

const (
	EventStepEntered        EventType = "step_entered"
	EventCompleted          EventType = "questionnaire_completed"
	EventManualQuoteEntered EventType = "manual_quote_entered"
)

// Event is a fire-and-forget navigation notification.
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"sessionId"`
	Step       Step      `json:"step"`
	Index      int       `json:"index"`
	Tier       Tier      `json:"tier,omitempty"`
	Employment string    `json:"employment,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// EventSink receives navigation events. Emit must not block.
type EventSink interface {
	Emit(Event)
}

// Timer is a pending delayed transition.
type Timer interface {
	Stop() bool
}

// Scheduler runs f after d. *time.Timer satisfies Timer.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type discardSink struct{}

func (discardSink) Emit(Event) {}

// ControllerOptions configures a Controller.
type ControllerOptions struct {
	SessionID        string
	AutoAdvanceDelay time.Duration
	Scheduler        Scheduler
	Events           EventSink
	Logger           logger.Logger
}

// Controller is the navigation state machine for one questionnaire session.
// It is safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	sessionID string
	delay     time.Duration
	scheduler Scheduler
	events    EventSink
	log       logger.Logger

	answers   Answers
	steps     []Step
	index     int
	direction Direction

	pending    Timer
	generation uint64

	submission Submission
	epoch      uint64
}

// NewController starts a session on the first step.
func NewController(opts ControllerOptions) *Controller {
	if opts.Scheduler == nil {
		opts.Scheduler = timeScheduler{}
	}
	if opts.Events == nil {
		opts.Events = discardSink{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}

	c := &Controller{
		sessionID: opts.SessionID,
		delay:     opts.AutoAdvanceDelay,
		scheduler: opts.Scheduler,
		events:    opts.Events,
		log:       opts.Logger.WithFields(map[string]interface{}{"sessionId": opts.SessionID}),
		direction: DirectionForward,
	}
	c.steps = Steps(c.answers)
	c.submission = Submission{Status: SubmissionIdle}

	c.emit(c.enteredEvents())
	return c
}

// Apply merges a patch and recomputes the sequence. Answering a single-choice
// step while standing on it moves on to the step that now follows it. Rejected
// patches leave the session untouched; they are logged and returned.
func (c *Controller) Apply(p Patch) error {
	return c.update(func(Answers) (Patch, bool) { return p, true })
}

// ToggleEmployment flips one employment situation.
func (c *Controller) ToggleEmployment(e Employment) error {
	if employmentBit(e) == 0 {
		return fmt.Errorf("%w: employment %q", ErrInvalidValue, e)
	}
	return c.update(func(a Answers) (Patch, bool) {
		return SetEmployment(a.Employment.Toggle(e)), true
	})
}

// ToggleAsset flips one asset class, keeping "none" exclusive.
func (c *Controller) ToggleAsset(a Asset) error {
	if assetBit(a) == 0 {
		return fmt.Errorf("%w: asset %q", ErrInvalidValue, a)
	}
	return c.update(func(cur Answers) (Patch, bool) {
		return SetAssets(cur.Assets.Toggle(a)), true
	})
}

// AdjustOwnerOccupied changes the owner-occupied count by delta. Moves past
// the bounds are no-ops.
func (c *Controller) AdjustOwnerOccupied(delta int) error {
	return c.update(func(a Answers) (Patch, bool) {
		n := a.Property.OwnerOccupied + delta
		if n < 0 || n > MaxOwnerOccupied {
			return Patch{}, false
		}
		return SetPropertyCounts(n, a.Property.Rented), true
	})
}

// AdjustRented changes the rented count by delta. Moves past the bounds are
// no-ops.
func (c *Controller) AdjustRented(delta int) error {
	return c.update(func(a Answers) (Patch, bool) {
		n := a.Property.Rented + delta
		if n < 0 || n > MaxRented {
			return Patch{}, false
		}
		return SetPropertyCounts(a.Property.OwnerOccupied, n), true
	})
}

// update derives a patch from the current answers and applies it without
// releasing the lock in between. build returning false leaves the session
// untouched.
func (c *Controller) update(build func(Answers) (Patch, bool)) error {
	c.mu.Lock()
	p, ok := build(c.answers)
	if !ok {
		c.mu.Unlock()
		return nil
	}
	events, err := c.applyLocked(p)
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("Answer rejected", map[string]interface{}{
			"field": string(p.Field()),
			"error": err.Error(),
		})
		return err
	}
	c.emit(events)
	return nil
}

func (c *Controller) applyLocked(p Patch) ([]Event, error) {
	c.cancelPendingLocked()

	next, err := Apply(c.answers, p)
	if err != nil {
		return nil, err
	}

	prev := c.steps[c.index]
	c.answers = next
	c.steps = Steps(next)
	if c.index > len(c.steps)-1 {
		c.index = len(c.steps) - 1
	}

	answered := p.Field().Step()
	switch {
	case answered.autoAdvances() && c.steps[c.index] == answered && CanAdvance(answered, next):
		return c.autoAdvanceLocked(answered), nil
	case c.steps[c.index] != prev:
		// The step under the current index changed.
		return c.enteredEvents(), nil
	}
	return nil, nil
}

// Next advances one step when the current step's gate allows it.
func (c *Controller) Next() bool {
	c.mu.Lock()
	c.cancelPendingLocked()

	if !CanAdvance(c.steps[c.index], c.answers) || c.index >= len(c.steps)-1 {
		c.mu.Unlock()
		return false
	}
	events := c.moveLocked(c.index+1, DirectionForward)
	c.mu.Unlock()

	c.emit(events)
	return true
}

// Back moves one step back; a no-op on the first step.
func (c *Controller) Back() bool {
	c.mu.Lock()
	c.cancelPendingLocked()

	if c.index == 0 {
		c.mu.Unlock()
		return false
	}
	events := c.moveLocked(c.index-1, DirectionBackward)
	c.mu.Unlock()

	c.emit(events)
	return true
}

// GoTo jumps to step if it is in the sequence and every step before it is
// answered.
func (c *Controller) GoTo(step Step) error {
	c.mu.Lock()
	c.cancelPendingLocked()

	idx := indexOf(c.steps, step)
	if idx < 0 || !reachable(c.steps, step, c.answers) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStepUnreachable, step)
	}
	if idx == c.index {
		c.mu.Unlock()
		return nil
	}

	dir := DirectionForward
	if idx < c.index {
		dir = DirectionBackward
	}
	events := c.moveLocked(idx, dir)
	c.mu.Unlock()

	c.emit(events)
	return nil
}

// Restart clears every answer and any submission state.
func (c *Controller) Restart() {
	c.mu.Lock()
	c.cancelPendingLocked()

	c.answers = Answers{}
	c.steps = Steps(c.answers)
	c.index = 0
	c.direction = DirectionForward
	c.epoch++
	c.submission = Submission{Status: SubmissionIdle}
	events := c.enteredEvents()
	c.mu.Unlock()

	c.emit(events)
}

// Close stops any pending delayed transition.
func (c *Controller) Close() {
	c.mu.Lock()
	c.cancelPendingLocked()
	c.mu.Unlock()
}

// View is a snapshot of everything the presentation layer renders.
type View struct {
	SessionID         string          `json:"sessionId"`
	Step              Step            `json:"step"`
	Index             int             `json:"index"`
	Steps             []Step          `json:"steps"`
	Direction         Direction       `json:"direction"`
	Answers           Answers         `json:"answers"`
	CanAdvance        bool            `json:"canAdvance"`
	Progress          Progress        `json:"progress"`
	Classification    *Classification `json:"classification,omitempty"`
	PendingTransition bool            `json:"pendingTransition"`
	Submission        Submission      `json:"submission"`
}

// View snapshots the session.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	step := c.steps[c.index]
	v := View{
		SessionID:         c.sessionID,
		Step:              step,
		Index:             c.index,
		Steps:             append([]Step(nil), c.steps...),
		Direction:         c.direction,
		Answers:           c.answers,
		CanAdvance:        CanAdvance(step, c.answers),
		Progress:          ProgressAt(c.answers, step),
		PendingTransition: c.pending != nil,
		Submission:        c.submission,
	}
	if step == StepResult {
		cl := Classify(c.answers)
		v.Classification = &cl
	}
	return v
}

// Answers returns the current answers.
func (c *Controller) Answers() Answers {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answers
}

// SessionID returns the id the controller tags its events with.
func (c *Controller) SessionID() string {
	return c.sessionID
}

func (c *Controller) autoAdvanceLocked(answered Step) []Event {
	target := c.steps[c.index+1]
	if c.delay <= 0 {
		return c.moveLocked(c.index+1, DirectionForward)
	}

	c.generation++
	gen := c.generation
	c.pending = c.scheduler.AfterFunc(c.delay, func() {
		c.fireTransition(gen, answered, target)
	})
	return nil
}

// fireTransition runs a delayed auto-advance unless it was cancelled or the
// session moved on in the meantime.
func (c *Controller) fireTransition(gen uint64, from, to Step) {
	c.mu.Lock()
	if gen != c.generation || c.pending == nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil

	idx := indexOf(c.steps, to)
	if c.steps[c.index] != from || idx < 0 {
		c.mu.Unlock()
		return
	}
	events := c.moveLocked(idx, DirectionForward)
	c.mu.Unlock()

	c.emit(events)
}

func (c *Controller) cancelPendingLocked() {
	c.generation++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

func (c *Controller) moveLocked(idx int, dir Direction) []Event {
	c.index = idx
	c.direction = dir
	return c.enteredEvents()
}

func (c *Controller) enteredEvents() []Event {
	step := c.steps[c.index]
	now := time.Now().UTC()
	events := []Event{{
		Type:       EventStepEntered,
		SessionID:  c.sessionID,
		Step:       step,
		Index:      c.index,
		OccurredAt: now,
	}}

	switch step {
	case StepResult:
		events = append(events, Event{
			Type:       EventCompleted,
			SessionID:  c.sessionID,
			Step:       step,
			Index:      c.index,
			Tier:       Classify(c.answers).Tier,
			OccurredAt: now,
		})
	case StepContactForm:
		events = append(events, Event{
			Type:       EventManualQuoteEntered,
			SessionID:  c.sessionID,
			Step:       step,
			Index:      c.index,
			Employment: string(c.answers.EffectiveEmployment()),
			OccurredAt: now,
		})
	}
	return events
}

func (c *Controller) emit(events []Event) {
	for _, e := range events {
		c.events.Emit(e)
	}
}
