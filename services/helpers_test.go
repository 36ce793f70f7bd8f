package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"aptchat/models"
)

// fakeClock only moves when Advance is called; due timers fire on the caller's goroutine.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	fired   bool
	stopped bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 9, 15, 4, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.fired && !t.stopped && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// Pending counts timers that have neither fired nor been stopped.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// MockStepSource is a mock type for the StepSource interface
type MockStepSource struct {
	mock.Mock
}

func (m *MockStepSource) FetchStep(ctx context.Context, key models.StepID) (*models.AssessmentStep, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AssessmentStep), args.Error(1)
}

// MockTrainingSource is a mock type for the TrainingSource interface
type MockTrainingSource struct {
	mock.Mock
}

func (m *MockTrainingSource) LoadTraining(ctx context.Context) (models.TrainingData, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.TrainingData), args.Error(1)
}

// MockChatSender is a mock type for the ChatSender interface
type MockChatSender struct {
	mock.Mock
}

func (m *MockChatSender) Send(ctx context.Context, persona models.Persona, text string, score int, rc RelayContext) (string, error) {
	args := m.Called(ctx, persona, text, score, rc)
	return args.String(0), args.Error(1)
}

// MockSessionLogRepository is a mock type for the SessionLogRepository interface
type MockSessionLogRepository struct {
	mock.Mock
}

func (m *MockSessionLogRepository) CreateSession(record *models.SessionRecord) error {
	return m.Called(record).Error(0)
}

func (m *MockSessionLogRepository) GetSession(sessionID string) (*models.SessionRecord, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionRecord), args.Error(1)
}

func (m *MockSessionLogRepository) UpdateOutcome(sessionID string, score int, tier models.RiskTier, status models.SessionStatus) error {
	return m.Called(sessionID, score, tier, status).Error(0)
}

func (m *MockSessionLogRepository) CloseSession(sessionID string) error {
	return m.Called(sessionID).Error(0)
}

func (m *MockSessionLogRepository) AppendAnswer(entry *models.AnswerLog) error {
	return m.Called(entry).Error(0)
}

func (m *MockSessionLogRepository) ListAnswers(sessionID string) ([]models.AnswerLog, error) {
	args := m.Called(sessionID)
	return args.Get(0).([]models.AnswerLog), args.Error(1)
}

func (m *MockSessionLogRepository) AppendExchange(entry *models.ExchangeLog) error {
	return m.Called(entry).Error(0)
}

func (m *MockSessionLogRepository) ListExchanges(sessionID string) ([]models.ExchangeLog, error) {
	args := m.Called(sessionID)
	return args.Get(0).([]models.ExchangeLog), args.Error(1)
}

var errStepMissing = errors.New("step missing")

// mapStepSource serves a fixed step graph and counts requests per key.
type mapStepSource struct {
	mu    sync.Mutex
	steps map[models.StepID]models.AssessmentStep
	calls []models.StepID
}

func newMapStepSource(steps map[models.StepID]models.AssessmentStep) *mapStepSource {
	return &mapStepSource{steps: steps}
}

func (s *mapStepSource) FetchStep(_ context.Context, key models.StepID) (*models.AssessmentStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, key)
	step, ok := s.steps[key]
	if !ok {
		return nil, errStepMissing
	}
	return step.Clone(), nil
}

func (s *mapStepSource) Calls() []models.StepID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.StepID(nil), s.calls...)
}

// blockingStepSource holds every fetch until release is closed.
type blockingStepSource struct {
	step    *models.AssessmentStep
	started chan models.StepID
	release chan struct{}
}

func newBlockingStepSource(step *models.AssessmentStep) *blockingStepSource {
	return &blockingStepSource{step: step, started: make(chan models.StepID, 8), release: make(chan struct{})}
}

func (s *blockingStepSource) FetchStep(ctx context.Context, key models.StepID) (*models.AssessmentStep, error) {
	s.started <- key
	select {
	case <-s.release:
		return s.step.Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// sampleGraph is a three-question assessment: 0 -> 1 -> 2 -> result, with an early exit on 0.
func sampleGraph() map[models.StepID]models.AssessmentStep {
	return map[models.StepID]models.AssessmentStep{
		"0": {Text: "How often do you have a drink containing alcohol?", Options: []models.Option{
			{Text: "Never", End: true},
			{Text: "Monthly or less", Next: "1", Score: 2},
		}},
		"1": {Text: "How many drinks on a typical day?", Options: []models.Option{
			{Text: "1 or 2", Next: "2"},
			{Text: "5 or 6", Next: "2", Score: 3},
		}},
		"2": {Text: "How often do you have six or more drinks on one occasion?", Options: []models.Option{
			{Text: "Never", Next: "result"},
			{Text: "Weekly", Next: "result", Score: 4},
		}},
	}
}
