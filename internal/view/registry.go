package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/celulas/locator/internal/auth"
	"github.com/celulas/locator/internal/domain"
	"github.com/celulas/locator/internal/observability"
	"github.com/celulas/locator/internal/suggest"
)

var (
	// ErrSessionNotFound is returned for unknown or expired session ids.
	ErrSessionNotFound = errors.New("view session not found")
	// ErrUnknownCategory is returned when a filter names a category outside the table.
	ErrUnknownCategory = errors.New("unknown category")
)

// Registry owns the open view sessions and expires idle ones.
type Registry struct {
	catalog   Querier
	suggester *suggest.Service
	prefs     PreferenceStore
	idle      time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry creates a Registry. prefs may be nil, in which case themes are
// neither loaded nor persisted. A nil clock means the real clock.
func NewRegistry(catalog Querier, suggester *suggest.Service, prefs PreferenceStore, idle time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{
		catalog:   catalog,
		suggester: suggester,
		prefs:     prefs,
		idle:      idle,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		sessions:  make(map[string]*Session),
	}
}

// AccessSource reports changes to admin sessions.
type AccessSource interface {
	Subscribe() (events <-chan auth.Event, cancel func())
}

// Create opens a session for clientID in the given mode. owner is the admin
// token a privileged session is opened with; the session is closed when that
// admin session ends. The initial theme is the client's persisted preference.
func (r *Registry) Create(ctx context.Context, clientID string, mode domain.Mode, owner string) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		ClientID: clientID,
		owner:    owner,
		catalog:  r.catalog,
		resolver: r.suggester.NewResolver(),
		filter:   domain.FilterState{Mode: mode},
		theme:    loadTheme(ctx, r.prefs, clientID, r.logger),
		lastSeen: r.clock.Now(),
	}
	if r.prefs != nil {
		s.observers = append(s.observers, PersistTheme(r.prefs, r.logger))
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.ViewSessions.Set(float64(n))
	r.logger.Debug("view session created", "session_id", s.ID, "client_id", clientID, "mode", mode)
	return s
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touch(r.clock.Now())
	return s, nil
}

// Remove closes a session.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		s.close()
		r.metrics.ViewSessions.Set(float64(n))
	}
}

// Revoke closes every session opened with the admin token owner and returns
// how many were closed.
func (r *Registry) Revoke(owner string) int {
	if owner == "" {
		return 0
	}

	r.mu.Lock()
	var revoked []*Session
	for id, s := range r.sessions {
		if s.owner == owner {
			revoked = append(revoked, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range revoked {
		s.close()
	}
	if len(revoked) > 0 {
		r.metrics.ViewSessions.Set(float64(n))
		r.logger.Info("privileged view sessions closed", "closed", len(revoked), "open", n)
	}
	return len(revoked)
}

// Watch closes privileged sessions as their admin sessions are signed out or
// expire. It returns when ctx is cancelled or src stops delivering.
func (r *Registry) Watch(ctx context.Context, src AccessSource) {
	events, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if e.Kind == auth.EventSignedOut || e.Kind == auth.EventExpired {
				r.Revoke(e.Token)
			}
		}
	}
}

// Len reports the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes every session idle for longer than the idle timeout and
// returns how many were closed.
func (r *Registry) Sweep() int {
	cutoff := r.clock.Now().Add(-r.idle)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	r.metrics.ViewSessions.Set(float64(n))
	if len(expired) > 0 {
		r.logger.Info("view sessions expired", "expired", len(expired), "open", n)
	}
	return len(expired)
}

// Run sweeps idle sessions until the context is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.NewTicker(r.sweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.Chan():
			r.Sweep()
		}
	}
}

func (r *Registry) sweepInterval() time.Duration {
	if d := r.idle / 2; d > time.Second {
		return d
	}
	return time.Second
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
	r.metrics.ViewSessions.Set(0)
}
