// Package session keeps questionnaire sessions in memory and serves them over
// HTTP.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tax-intake/internal/common/logger"
	"tax-intake/internal/common/metrics"
	"tax-intake/internal/questionnaire"
)

type RegistryOptions struct {
	// TTL is how long an untouched session survives.
	TTL              time.Duration
	AutoAdvanceDelay time.Duration
	Events           questionnaire.EventSink
	Logger           logger.Logger
}

type entry struct {
	controller *questionnaire.Controller
	lastSeen   time.Time
}

// Registry owns the live sessions. Sessions are never persisted.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry

	ttl    time.Duration
	delay  time.Duration
	events questionnaire.EventSink
	logger logger.Logger
	now    func() time.Time
	newID  func() string
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	return &Registry{
		sessions: make(map[string]*entry),
		ttl:      opts.TTL,
		delay:    opts.AutoAdvanceDelay,
		events:   opts.Events,
		logger:   opts.Logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Create starts a new session on the first step.
func (r *Registry) Create() *questionnaire.Controller {
	id := r.newID()
	c := questionnaire.NewController(questionnaire.ControllerOptions{
		SessionID:        id,
		AutoAdvanceDelay: r.delay,
		Events:           r.events,
		Logger:           r.logger,
	})

	r.mu.Lock()
	r.sessions[id] = &entry{controller: c, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	r.logger.Debug("Session created", map[string]interface{}{"sessionId": id})
	return c
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*questionnaire.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	if r.now().Sub(e.lastSeen) > r.ttl {
		r.removeLocked(id, e)
		return nil, false
	}
	e.lastSeen = r.now()
	return e.controller, true
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if ok {
		r.removeLocked(id, e)
	}
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	now := r.now()
	for id, e := range r.sessions {
		if now.Sub(e.lastSeen) > r.ttl {
			r.removeLocked(id, e)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("Expired sessions removed", map[string]interface{}{
			"removed":   removed,
			"remaining": len(r.sessions),
		})
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) removeLocked(id string, e *entry) {
	e.controller.Close()
	delete(r.sessions, id)
	metrics.SessionsActive.Set(float64(len(r.sessions)))
}
