package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"aptchat/models"
)

func newTestManager(clock Clock, ttl time.Duration) *SessionManager {
	return NewSessionManager(SessionDeps{
		Steps:         newMapStepSource(sampleGraph()),
		Training:      new(MockTrainingSource),
		Relay:         new(MockChatSender),
		Clock:         clock,
		Debounce:      DefaultDebounce,
		ScenarioDelay: DefaultScenarioDelay,
	}, ttl)
}

func TestSessionManager_CreateAndGet(t *testing.T) {
	m := newTestManager(newFakeClock(), time.Hour)

	session, err := m.Create(context.Background(), "doctor", "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.PersonaDoctor, session.Persona())
	assert.Equal(t, PhaseActive, session.Snapshot().Assessment.Phase)

	got, err := m.Get(session.ID())
	require.NoError(t, err)
	assert.Same(t, session, got)
	assert.Equal(t, 1, m.Count())

	_, err = m.Create(context.Background(), "pirate", "127.0.0.1")
	assert.ErrorIs(t, err, ErrUnknownPersona)
	assert.Equal(t, 1, m.Count())

	_, err = m.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionManager_CreateKeepsStalledSession(t *testing.T) {
	m := NewSessionManager(SessionDeps{
		Steps: newMapStepSource(map[models.StepID]models.AssessmentStep{}),
		Relay: new(MockChatSender),
		Clock: newFakeClock(),
	}, time.Hour)

	session, err := m.Create(context.Background(), "ai", "")
	require.NoError(t, err)
	state := session.Snapshot().Assessment
	assert.Equal(t, PhaseLoading, state.Phase)
	assert.True(t, state.Stalled)
}

func TestSessionManager_Delete(t *testing.T) {
	m := newTestManager(newFakeClock(), time.Hour)
	session, err := m.Create(context.Background(), "ai", "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(session.ID()))
	assert.True(t, session.Snapshot().Closed)
	assert.ErrorIs(t, m.Delete(session.ID()), ErrSessionNotFound)
	assert.Zero(t, m.Count())
}

func TestSessionManager_EvictIdle(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, time.Hour)

	stale, err := m.Create(context.Background(), "ai", "")
	require.NoError(t, err)
	clock.Advance(45 * time.Minute)
	fresh, err := m.Create(context.Background(), "student", "")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)

	assert.Equal(t, 1, m.EvictIdle())
	assert.True(t, stale.Snapshot().Closed)
	_, err = m.Get(fresh.ID())
	assert.NoError(t, err)

	_, err = fresh.SubmitAnswer(context.Background(), 1)
	require.NoError(t, err)
	clock.Advance(59 * time.Minute)
	assert.Zero(t, m.EvictIdle())
}

func TestSessionManager_EvictionDisabled(t *testing.T) {
	clock := newFakeClock()
	m := newTestManager(clock, 0)
	_, err := m.Create(context.Background(), "ai", "")
	require.NoError(t, err)

	clock.Advance(100 * time.Hour)
	assert.Zero(t, m.EvictIdle())
	assert.Equal(t, 1, m.Count())
}

func TestSessionManager_RunJanitorStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newTestManager(RealClock(), time.Nanosecond)
	_, err := m.Create(context.Background(), "ai", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.RunJanitor(ctx, time.Millisecond) }()

	require.Eventually(t, func() bool { return m.Count() == 0 }, time.Second, time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestSessionManager_CloseAll(t *testing.T) {
	m := newTestManager(newFakeClock(), time.Hour)
	a, _ := m.Create(context.Background(), "ai", "")
	b, _ := m.Create(context.Background(), "doctor", "")

	m.CloseAll()
	assert.Zero(t, m.Count())
	assert.True(t, a.Snapshot().Closed)
	assert.True(t, b.Snapshot().Closed)
}
