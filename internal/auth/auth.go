// Package auth manages the single staff account's sessions for the admin area.
package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/celulas/locator/internal/observability"
)

var (
	// ErrInvalidCredentials is returned when the email or password does not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNoSession is returned for unknown, revoked or expired tokens.
	ErrNoSession = errors.New("no current session")
)

// EventKind is the kind of session change delivered to subscribers.
type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
	EventExpired   EventKind = "expired"
)

// Event is one session change. Token identifies the session that changed.
type Event struct {
	Kind  EventKind `json:"kind"`
	Token string    `json:"-"`
	Email string    `json:"email"`
	At    time.Time `json:"at"`
}

// Session is an authenticated admin session.
type Session struct {
	Token     string    `json:"token"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// subscriberBuffer bounds how far a slow subscriber may lag before events
// are dropped for it.
const subscriberBuffer = 16

// Manager signs the configured admin in and out and tracks session expiry.
type Manager struct {
	email  string
	hash   []byte
	ttl    time.Duration
	clock  clockwork.Clock
	logger *slog.Logger

	metrics *observability.Metrics

	mu       sync.Mutex
	sessions map[string]Session
	subs     map[int]chan Event
	nextSub  int
}

// NewManager creates a Manager for one account. passwordHash is a bcrypt hash.
// A nil clock means the real clock.
func NewManager(email, passwordHash string, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		email:    normalizeEmail(email),
		hash:     []byte(passwordHash),
		ttl:      ttl,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
		sessions: make(map[string]Session),
		subs:     make(map[int]chan Event),
	}
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SignIn checks the credentials and opens a session.
func (m *Manager) SignIn(email, password string) (Session, error) {
	// The hash is always compared so a wrong email costs the same as a wrong password.
	hashErr := bcrypt.CompareHashAndPassword(m.hash, []byte(password))
	if m.email == "" || normalizeEmail(email) != m.email || hashErr != nil {
		m.logger.Warn("admin sign-in rejected", "email", email)
		return Session{}, ErrInvalidCredentials
	}

	now := m.clock.Now()
	s := Session{Token: uuid.NewString(), Email: m.email, ExpiresAt: now.Add(m.ttl)}

	m.mu.Lock()
	m.sessions[s.Token] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.AdminSessions.Set(float64(n))
	m.logger.Info("admin signed in", "email", s.Email)
	m.publish(Event{Kind: EventSignedIn, Token: s.Token, Email: s.Email, At: now})
	return s, nil
}

// SignOut revokes a session.
func (m *Manager) SignOut(token string) error {
	m.mu.Lock()
	s, ok := m.sessions[token]
	delete(m.sessions, token)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrNoSession
	}
	m.metrics.AdminSessions.Set(float64(n))
	m.logger.Info("admin signed out", "email", s.Email)
	m.publish(Event{Kind: EventSignedOut, Token: token, Email: s.Email, At: m.clock.Now()})
	return nil
}

// Current returns the session for token if it is still valid. An expired
// session is removed and reported to subscribers.
func (m *Manager) Current(token string) (Session, error) {
	now := m.clock.Now()

	m.mu.Lock()
	s, ok := m.sessions[token]
	if !ok {
		m.mu.Unlock()
		return Session{}, ErrNoSession
	}
	if now.Before(s.ExpiresAt) {
		m.mu.Unlock()
		return s, nil
	}
	delete(m.sessions, token)
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.AdminSessions.Set(float64(n))
	m.publish(Event{Kind: EventExpired, Token: s.Token, Email: s.Email, At: now})
	return Session{}, ErrNoSession
}

// Subscribe delivers session changes until cancel is called. Events are
// dropped for a subscriber whose buffer is full.
func (m *Manager) Subscribe() (events <-chan Event, cancel func()) {
	ch := make(chan Event, subscriberBuffer)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- e:
		default:
			m.logger.Warn("session event dropped", "kind", e.Kind)
		}
	}
}

// Sweep removes expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := m.clock.Now()

	m.mu.Lock()
	var expired []Session
	for token, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			expired = append(expired, s)
			delete(m.sessions, token)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.AdminSessions.Set(float64(n))
	for _, s := range expired {
		m.publish(Event{Kind: EventExpired, Token: s.Token, Email: s.Email, At: now})
	}
	return len(expired)
}

// Run sweeps expired sessions every interval until the context is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Sweep()
		}
	}
}
