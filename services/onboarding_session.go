package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"aptchat/logging"
	"aptchat/models"
	"aptchat/repository"
)

var (
	// ErrChatNotReady is returned for chat messages sent before the assessment is over.
	ErrChatNotReady = errors.New("chat is available once the assessment is over")
	// ErrSessionClosed is returned for operations on a discarded session.
	ErrSessionClosed = errors.New("session closed")
)

const (
	endedReply     = "Thanks for taking the time to answer. If you'd like to talk anything through, I'm here."
	completedReply = "Thanks, that's the assessment done. Your answers put you in the %s risk range."
)

// ChatSender delivers a chat message and returns the text to display.
type ChatSender interface {
	Send(ctx context.Context, persona models.Persona, text string, score int, rc RelayContext) (string, error)
}

// SessionDeps are the collaborators shared by all sessions.
type SessionDeps struct {
	Steps         repository.StepSource
	Training      repository.TrainingSource
	Relay         ChatSender
	Log           repository.SessionLogRepository // Optional audit trail
	Clock         Clock
	Debounce      time.Duration
	ScenarioDelay time.Duration
}

// SessionSnapshot is the read model returned to clients.
type SessionSnapshot struct {
	ID              string               `json:"id"`
	Persona         models.Persona       `json:"persona"`
	Assessment      AssessmentState      `json:"assessment"`
	Tier            models.RiskTier      `json:"tier,omitempty"`
	Messages        []models.ChatMessage `json:"messages"`
	ScenarioIndex   int                  `json:"scenario_index"`
	ScenarioPending bool                 `json:"scenario_pending"`
	Quiz            QuizProgress         `json:"quiz"`
	Closed          bool                 `json:"closed"`
}

// OnboardingSession ties one user's assessment, scripted scenarios, chat and quiz together.
type OnboardingSession struct {
	id       string
	persona  models.Persona
	clientIP string
	deps     SessionDeps

	machine    *AssessmentMachine
	sequencer  *ScenarioSequencer
	quiz       *QuizRunner
	transcript *Transcript

	mu         sync.Mutex
	lastSeen   time.Time
	closed     bool
	outcomeSet bool
}

// NewOnboardingSession builds an idle session. Begin issues the first step fetch.
func NewOnboardingSession(persona models.Persona, clientIP string, deps SessionDeps) *OnboardingSession {
	if deps.Clock == nil {
		deps.Clock = RealClock()
	}
	s := &OnboardingSession{
		id:         uuid.NewString(),
		persona:    persona,
		clientIP:   clientIP,
		deps:       deps,
		machine:    NewAssessmentMachine(deps.Steps, deps.Clock, deps.Debounce),
		quiz:       NewQuizRunner(deps.Training),
		transcript: NewTranscript(deps.Clock),
		lastSeen:   deps.Clock.Now(),
	}
	s.sequencer = NewScenarioSequencer(deps.Clock, deps.ScenarioDelay, func(text string) {
		s.transcript.Append(models.RoleAssistant, text)
	})
	return s
}

func (s *OnboardingSession) ID() string              { return s.id }
func (s *OnboardingSession) Persona() models.Persona { return s.persona }

// Begin records the session and requests step "0".
func (s *OnboardingSession) Begin(ctx context.Context) (Outcome, error) {
	if s.deps.Log != nil {
		record := &models.SessionRecord{
			ID:        s.id,
			Persona:   s.persona,
			ClientIP:  s.clientIP,
			StartedAt: s.deps.Clock.Now(),
		}
		if err := s.deps.Log.CreateSession(record); err != nil {
			logging.L().Warnf("[OnboardingSession] Session %s audit record not written: %v", s.id, err)
		}
	}
	return s.advance(ctx, s.machine.Start)
}

// Reload retries a stalled step fetch.
func (s *OnboardingSession) Reload(ctx context.Context) (Outcome, error) {
	if err := s.touch(); err != nil {
		return "", err
	}
	return s.advance(ctx, s.machine.Reload)
}

func (s *OnboardingSession) advance(ctx context.Context, fetch func(context.Context) (Transition, error)) (Outcome, error) {
	tr, err := fetch(ctx)
	if err != nil {
		return "", err
	}
	s.appendStep(tr.Step)
	return tr.Outcome, nil
}

func (s *OnboardingSession) appendStep(step *models.AssessmentStep) {
	if step != nil {
		s.transcript.Append(models.RoleAssistant, step.Text)
	}
}

// SubmitAnswer applies an assessment option and runs the follow-up of a terminal outcome.
// Everything appended or logged comes from this call's own transition.
func (s *OnboardingSession) SubmitAnswer(ctx context.Context, optionIndex int) (Outcome, error) {
	if err := s.touch(); err != nil {
		return "", err
	}
	tr, err := s.machine.Submit(ctx, optionIndex)
	if err != nil {
		return "", err
	}

	answer := *tr.Answer
	s.transcript.Append(models.RoleUser, answer.SelectedOptionText)
	s.logAnswer(answer)

	switch tr.Outcome {
	case OutcomeAdvanced:
		s.appendStep(tr.Step)
	case OutcomeEnded:
		s.transcript.Append(models.RoleAssistant, endedReply)
		s.recordOutcome(tr.Score, "", models.SessionStatusEnded)
	case OutcomeCompleted:
		s.complete(ctx, tr.Score)
	}
	return tr.Outcome, nil
}

// complete runs once: it stores the outcome, loads the quiz and starts the scenarios.
func (s *OnboardingSession) complete(ctx context.Context, score int) {
	tier := models.TierForScore(score)
	s.recordOutcome(score, tier, models.SessionStatusCompleted)
	s.transcript.Append(models.RoleAssistant, fmt.Sprintf(completedReply, tier))

	if err := s.quiz.Load(context.WithoutCancel(ctx), tier); err != nil {
		logging.L().Warnf("[OnboardingSession] Session %s continues without a quiz: %v", s.id, err)
	}
	s.sequencer.Start()
}

func (s *OnboardingSession) recordOutcome(score int, tier models.RiskTier, status models.SessionStatus) {
	s.mu.Lock()
	if s.outcomeSet {
		s.mu.Unlock()
		return
	}
	s.outcomeSet = true
	s.mu.Unlock()

	if s.deps.Log == nil {
		return
	}
	if err := s.deps.Log.UpdateOutcome(s.id, score, tier, status); err != nil {
		logging.L().Warnf("[OnboardingSession] Session %s outcome not recorded: %v", s.id, err)
	}
}

func (s *OnboardingSession) logAnswer(answer models.AnswerRecord) {
	if s.deps.Log == nil {
		return
	}
	entry := &models.AnswerLog{
		SessionID:    s.id,
		StepKey:      answer.StepKey,
		QuestionText: answer.QuestionText,
		OptionText:   answer.SelectedOptionText,
		ScoreDelta:   answer.ScoreDelta,
		AnsweredAt:   answer.Timestamp,
	}
	if err := s.deps.Log.AppendAnswer(entry); err != nil {
		logging.L().Warnf("[OnboardingSession] Session %s answer not logged: %v", s.id, err)
	}
}

// SendChat relays a free-form message and appends both sides to the transcript.
func (s *OnboardingSession) SendChat(ctx context.Context, text string) (models.ChatMessage, error) {
	if err := s.touch(); err != nil {
		return models.ChatMessage{}, err
	}
	message := strings.TrimSpace(text)
	if message == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}
	state := s.machine.Snapshot()
	if !state.Terminal() {
		return models.ChatMessage{}, ErrChatNotReady
	}

	history := s.transcript.Messages()
	s.transcript.Append(models.RoleUser, message)

	scenario := s.sequencer.Index()
	reply, err := s.deps.Relay.Send(context.WithoutCancel(ctx), s.persona, message, state.Score, RelayContext{
		ScenarioIndex: scenario,
		Answers:       state.Answers,
		History:       history,
	})
	if err != nil {
		return models.ChatMessage{}, err
	}

	replyMsg := s.transcript.Append(models.RoleAssistant, reply)
	s.sequencer.OnExchange()
	s.logExchange(message, reply, state.Score, scenario)
	return replyMsg, nil
}

func (s *OnboardingSession) logExchange(message, reply string, score, scenario int) {
	if s.deps.Log == nil {
		return
	}
	entry := &models.ExchangeLog{
		SessionID:   s.id,
		ChatbotType: s.persona,
		UserMessage: message,
		BotResponse: reply,
		ClientIP:    s.clientIP,
		RiskScore:   score,
		Scenario:    scenario,
		CreatedAt:   s.deps.Clock.Now(),
	}
	if err := s.deps.Log.AppendExchange(entry); err != nil {
		logging.L().Warnf("[OnboardingSession] Session %s exchange not logged: %v", s.id, err)
	}
}

// AnswerQuiz grades the current training item.
func (s *OnboardingSession) AnswerQuiz(optionIndex int) (QuizResult, error) {
	if err := s.touch(); err != nil {
		return QuizResult{}, err
	}
	return s.quiz.Answer(optionIndex)
}

// Snapshot returns the session's read model.
func (s *OnboardingSession) Snapshot() SessionSnapshot {
	state := s.machine.Snapshot()
	tier, _ := s.machine.Tier()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	return SessionSnapshot{
		ID:              s.id,
		Persona:         s.persona,
		Assessment:      state,
		Tier:            tier,
		Messages:        s.transcript.Messages(),
		ScenarioIndex:   s.sequencer.Index(),
		ScenarioPending: s.sequencer.Pending(),
		Quiz:            s.quiz.Progress(),
		Closed:          closed,
	}
}

// Close stops pending scenario timers and marks the audit record closed. It is idempotent.
func (s *OnboardingSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.sequencer.Stop()
	if s.deps.Log != nil {
		if err := s.deps.Log.CloseSession(s.id); err != nil {
			logging.L().Warnf("[OnboardingSession] Session %s close not recorded: %v", s.id, err)
		}
	}
	logging.L().Infof("[OnboardingSession] Session %s closed.", s.id)
}

// LastSeen returns the time of the last client interaction.
func (s *OnboardingSession) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *OnboardingSession) touch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lastSeen = s.deps.Clock.Now()
	return nil
}
