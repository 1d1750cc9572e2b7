// Package session keeps one project service per user session so that each
// browser tab has its own current-project selection.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/wizdm/studio-backend/internal/auth"
	"github.com/wizdm/studio-backend/internal/projects/service"
)

const DefaultSessionID = "default"

// ErrRateLimited is returned when a session exceeds its request rate.
var ErrRateLimited = errors.New("session rate limit exceeded")

type Key struct {
	UserID    string
	SessionID string
}

type entry struct {
	svc      *service.ProjectService
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Factory builds the service of a new session.
type Factory func(identity auth.Identity) *service.ProjectService

type Registry struct {
	factory Factory
	limit   rate.Limit
	burst   int
	now     func() time.Time
	log     zerolog.Logger

	mu       sync.Mutex
	sessions map[Key]*entry
}

type Option func(*Registry)

func WithRate(perSecond float64, burst int) Option {
	return func(r *Registry) {
		r.limit = rate.Limit(perSecond)
		r.burst = burst
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(r *Registry) { r.log = log.With().Str("component", "sessions").Logger() }
}

func withClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(factory Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:  factory,
		limit:    rate.Inf,
		burst:    1,
		now:      time.Now,
		log:      zerolog.Nop(),
		sessions: make(map[Key]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Acquire returns the service of the session, creating it on first use.
// An empty sessionID selects DefaultSessionID.
func (r *Registry) Acquire(userID, sessionID string) (*service.ProjectService, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	key := Key{UserID: userID, SessionID: sessionID}

	r.mu.Lock()
	e, ok := r.sessions[key]
	if !ok {
		e = &entry{
			svc:     r.factory(auth.Static(userID)),
			limiter: rate.NewLimiter(r.limit, r.burst),
		}
		r.sessions[key] = e
		r.log.Debug().Str("user_id", userID).Str("session_id", sessionID).Msg("session opened")
	}
	e.lastSeen = r.now()
	r.mu.Unlock()

	if !e.limiter.Allow() {
		return nil, ErrRateLimited
	}
	return e.svc, nil
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were dropped.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for key, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(r.sessions, key)
			n++
		}
	}
	if n > 0 {
		r.log.Info().Int("evicted", n).Int("active", len(r.sessions)).Msg("idle sessions swept")
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
