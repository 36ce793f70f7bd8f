package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aptchat/logging"
	"aptchat/models"
	"aptchat/repository"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownPersona  = errors.New("unknown persona")
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 2 * time.Hour

// SessionManager owns the live sessions.
type SessionManager struct {
	deps  SessionDeps
	ttl   time.Duration
	store *repository.MemoryStore[*OnboardingSession]
}

// NewSessionManager creates a manager. A non-positive ttl disables idle eviction.
func NewSessionManager(deps SessionDeps, ttl time.Duration) *SessionManager {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	return &SessionManager{
		deps:  deps,
		ttl:   ttl,
		store: repository.NewMemoryStore[*OnboardingSession](),
	}
}

// Create validates the persona, registers a session and requests its first step. A stalled
// first fetch still returns the session; the client can reload it.
func (m *SessionManager) Create(ctx context.Context, persona, clientIP string) (*OnboardingSession, error) {
	p, err := models.ParsePersona(persona)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPersona, persona)
	}

	session := NewOnboardingSession(p, clientIP, m.deps)
	m.store.Put(session.ID(), session)
	logging.L().Infof("[SessionManager] Created session %s (persona=%s).", session.ID(), p)

	if _, err := session.Begin(ctx); err != nil {
		logging.L().Warnf("[SessionManager] Session %s could not request its first step: %v", session.ID(), err)
	}
	return session, nil
}

// Get returns a live session.
func (m *SessionManager) Get(id string) (*OnboardingSession, error) {
	session, ok := m.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return session, nil
}

// Delete closes and forgets a session.
func (m *SessionManager) Delete(id string) error {
	session, ok := m.store.Delete(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	session.Close()
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	return m.store.Len()
}

// EvictIdle closes sessions not seen for longer than the TTL and returns how many it removed.
func (m *SessionManager) EvictIdle() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.deps.Clock.Now().Add(-m.ttl)
	removed := m.store.DeleteFunc(func(_ string, s *OnboardingSession) bool {
		return s.LastSeen().Before(cutoff)
	})
	for _, s := range removed {
		s.Close()
	}
	if len(removed) > 0 {
		logging.L().Infof("[SessionManager] Evicted %d idle sessions.", len(removed))
	}
	return len(removed)
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.EvictIdle()
		}
	}
}

// CloseAll closes every live session. Used on shutdown.
func (m *SessionManager) CloseAll() {
	removed := m.store.DeleteFunc(func(string, *OnboardingSession) bool { return true })
	for _, s := range removed {
		s.Close()
	}
}

// Log returns the audit repository, or nil when none is configured.
func (m *SessionManager) Log() repository.SessionLogRepository {
	return m.deps.Log
}
