package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tips-service/internal/domain"
)

// Manager issues, validates and revokes session tokens with an absolute TTL.
type Manager struct {
	ttl time.Duration
	now func() time.Time

	mu       sync.RWMutex
	sessions map[string]domain.Session
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for issuing and checking sessions.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

func NewManager(ttl time.Duration, opts ...Option) *Manager {
	m := &Manager{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]domain.Session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the fixed lifetime of every session issued by m.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

func (m *Manager) Create(ctx context.Context, username string) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	issued := m.now().UTC()
	sess := domain.Session{
		Token:     uuid.NewString(),
		Username:  username,
		IssuedAt:  issued,
		ExpiresAt: issued.Add(m.ttl),
	}

	m.mu.Lock()
	m.sessions[sess.Token] = sess
	m.mu.Unlock()

	return sess, nil
}

// Validate returns the username bound to token. Unknown, expired and revoked
// tokens all yield domain.ErrUnauthenticated. ExpiresAt is never extended.
func (m *Manager) Validate(ctx context.Context, token string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if token == "" {
		return "", domain.ErrUnauthenticated
	}

	m.mu.RLock()
	sess, ok := m.sessions[token]
	m.mu.RUnlock()

	if !ok {
		return "", domain.ErrUnauthenticated
	}

	if sess.Expired(m.now()) {
		m.mu.Lock()
		if cur, ok := m.sessions[token]; ok && cur.Expired(m.now()) {
			delete(m.sessions, token)
		}
		m.mu.Unlock()
		return "", domain.ErrUnauthenticated
	}

	return sess.Username, nil
}

// Revoke removes exactly one token. Other sessions of the same user stay valid.
func (m *Manager) Revoke(_ context.Context, token string) {
	m.mu.Lock()
	delete(m.sessions, token)
	m.mu.Unlock()
}

// Len reports the number of tracked sessions, including expired ones not yet
// observed by Validate.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
