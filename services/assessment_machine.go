package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"aptchat/logging"
	"aptchat/models"
	"aptchat/repository"
)

// DefaultDebounce is the minimum gap between two accepted submissions.
const DefaultDebounce = 300 * time.Millisecond

var (
	// ErrSubmissionRejected is returned when the guard drops a call. The state is untouched.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrInvalidOption is returned for an out-of-range index or an option with no target.
	ErrInvalidOption = errors.New("invalid option")
	// ErrNotStalled is returned by Reload when there is no pending step to retry.
	ErrNotStalled = errors.New("no stalled step to reload")
)

// Phase is the coarse state of an assessment.
type Phase string

const (
	PhaseLoading   Phase = "loading"   // Waiting for PendingKey to be fetched
	PhaseActive    Phase = "active"    // CurrentStep is awaiting an answer
	PhaseEnded     Phase = "ended"     // User chose an ending option
	PhaseCompleted Phase = "completed" // Reached the result
)

// Outcome describes what an accepted transition led to.
type Outcome string

const (
	OutcomeAdvanced  Outcome = "advanced"  // Next step fetched and active
	OutcomeStalled   Outcome = "stalled"   // Fetch failed, still loading
	OutcomeEnded     Outcome = "ended"     // Terminal, no further requests
	OutcomeCompleted Outcome = "completed" // Terminal, score frozen
)

// AssessmentState is the full machine state including the guard fields.
type AssessmentState struct {
	Phase        Phase                  `json:"phase"`
	PendingKey   models.StepID          `json:"pending_key,omitempty"`
	CurrentStep  *models.AssessmentStep `json:"current_step,omitempty"`
	Score        int                    `json:"score"`
	Answers      []models.AnswerRecord  `json:"answers"`
	Stalled      bool                   `json:"stalled"` // Last fetch of PendingKey failed
	Busy         bool                   `json:"busy"`
	LastAccepted time.Time              `json:"-"`
}

func (s AssessmentState) Ended() bool     { return s.Phase == PhaseEnded }
func (s AssessmentState) Completed() bool { return s.Phase == PhaseCompleted }
func (s AssessmentState) Terminal() bool  { return s.Ended() || s.Completed() }

// AssessmentMachine walks the step graph for one session. The mutex is never held
// across a fetch; Busy keeps a second transition out while one is in flight.
type AssessmentMachine struct {
	steps    repository.StepSource
	clock    Clock
	debounce time.Duration

	mu    sync.Mutex
	state AssessmentState
}

// NewAssessmentMachine returns a machine in loading("0"). Call Start to issue the first fetch.
func NewAssessmentMachine(steps repository.StepSource, clock Clock, debounce time.Duration) *AssessmentMachine {
	if clock == nil {
		clock = RealClock()
	}
	return &AssessmentMachine{
		steps:    steps,
		clock:    clock,
		debounce: debounce,
		state: AssessmentState{
			Phase:      PhaseLoading,
			PendingKey: models.FirstStepID,
			Answers:    []models.AnswerRecord{},
		},
	}
}

// Transition is the result of one accepted Start, Reload or Submit, captured under the
// machine's lock so later transitions cannot leak into it.
type Transition struct {
	Outcome Outcome
	Answer  *models.AnswerRecord   // Appended by Submit; nil for Start and Reload
	Step    *models.AssessmentStep // Step made active by this transition, if any
	Score   int                    // Accumulated score after the transition
}

// Start fetches the first step.
func (m *AssessmentMachine) Start(ctx context.Context) (Transition, error) {
	return m.Reload(ctx)
}

// Reload retries the fetch of the pending step. It is only valid while loading and idle.
func (m *AssessmentMachine) Reload(ctx context.Context) (Transition, error) {
	m.mu.Lock()
	if m.state.Busy {
		m.mu.Unlock()
		return Transition{}, ErrSubmissionRejected
	}
	if m.state.Phase != PhaseLoading {
		m.mu.Unlock()
		return Transition{}, ErrNotStalled
	}
	key := m.state.PendingKey
	m.state.Busy = true
	m.mu.Unlock()

	return m.fetch(ctx, key, Transition{}), nil
}

// Submit applies the option at optionIndex of the current step.
func (m *AssessmentMachine) Submit(ctx context.Context, optionIndex int) (Transition, error) {
	m.mu.Lock()

	if m.state.Busy || m.state.Phase != PhaseActive {
		m.mu.Unlock()
		return Transition{}, ErrSubmissionRejected
	}
	now := m.clock.Now()
	if !m.state.LastAccepted.IsZero() && now.Sub(m.state.LastAccepted) < m.debounce {
		m.mu.Unlock()
		logging.L().Debugf("[AssessmentMachine] Submission dropped inside %s debounce window.", m.debounce)
		return Transition{}, ErrSubmissionRejected
	}

	step := m.state.CurrentStep
	if optionIndex < 0 || optionIndex >= len(step.Options) {
		m.mu.Unlock()
		return Transition{}, fmt.Errorf("%w: index %d of %d", ErrInvalidOption, optionIndex, len(step.Options))
	}
	option := step.Options[optionIndex]
	kind, next := option.Target()
	if kind == models.TargetInvalid {
		m.mu.Unlock()
		logging.L().Warnf("[AssessmentMachine] Option %d of step '%s' has no target.", optionIndex, step.Key)
		return Transition{}, fmt.Errorf("%w: option %q has neither end nor next", ErrInvalidOption, option.Text)
	}

	delta := option.Score
	if delta < 0 {
		logging.L().Warnf("[AssessmentMachine] Negative score %d on step '%s' treated as 0.", delta, step.Key)
		delta = 0
	}

	m.state.LastAccepted = now
	answer := models.AnswerRecord{
		StepKey:            step.Key,
		QuestionText:       step.Text,
		SelectedOptionText: option.Text,
		ScoreDelta:         delta,
		Timestamp:          now,
	}
	m.state.Answers = append(m.state.Answers, answer)

	switch kind {
	case models.TargetEnd:
		// The chosen option is logged with its score, which never reaches Score.
		m.state.Phase = PhaseEnded
		m.state.CurrentStep = nil
		score := m.state.Score
		m.mu.Unlock()
		logging.L().Infof("[AssessmentMachine] Assessment ended at step '%s'.", step.Key)
		return Transition{Outcome: OutcomeEnded, Answer: &answer, Score: score}, nil

	case models.TargetResult:
		m.state.Score += delta
		m.state.Phase = PhaseCompleted
		m.state.CurrentStep = nil
		score := m.state.Score
		m.mu.Unlock()
		logging.L().Infof("[AssessmentMachine] Assessment completed with score %d.", score)
		return Transition{Outcome: OutcomeCompleted, Answer: &answer, Score: score}, nil
	}

	m.state.Score += delta
	m.state.Phase = PhaseLoading
	m.state.PendingKey = next
	m.state.CurrentStep = nil
	m.state.Stalled = false
	m.state.Busy = true
	m.mu.Unlock()

	return m.fetch(ctx, next, Transition{Answer: &answer}), nil
}

// fetch runs without the mutex and settles the busy flag when the request returns.
// The request ignores ctx cancellation; the step source's timeout bounds it.
func (m *AssessmentMachine) fetch(ctx context.Context, key models.StepID, tr Transition) Transition {
	step, err := m.steps.FetchStep(context.WithoutCancel(ctx), key)
	if err == nil && step == nil {
		err = fmt.Errorf("step '%s': %w", key, repository.ErrStepNotFound)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Busy = false
	tr.Score = m.state.Score

	if err != nil {
		m.state.Stalled = true
		logging.L().Errorf("[AssessmentMachine] Failed to fetch step '%s': %v", key, err)
		tr.Outcome = OutcomeStalled
		return tr
	}

	step = step.Clone()
	step.Key = key
	m.state.Phase = PhaseActive
	m.state.PendingKey = ""
	m.state.CurrentStep = step
	m.state.Stalled = false
	logging.L().Debugf("[AssessmentMachine] Step '%s' active with %d options.", key, len(step.Options))
	tr.Outcome = OutcomeAdvanced
	tr.Step = step.Clone()
	return tr
}

// Snapshot returns a deep copy of the state.
func (m *AssessmentMachine) Snapshot() AssessmentState {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.state
	out.CurrentStep = m.state.CurrentStep.Clone()
	out.Answers = append([]models.AnswerRecord{}, m.state.Answers...)
	return out
}

// Tier returns the risk tier once the assessment is completed.
func (m *AssessmentMachine) Tier() (models.RiskTier, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state.Phase != PhaseCompleted {
		return "", false
	}
	return models.TierForScore(m.state.Score), true
}
