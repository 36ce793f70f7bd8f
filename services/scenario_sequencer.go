package services

import (
	"sync"
	"time"

	"aptchat/logging"
)

// DefaultScenarioDelay is the pause before each scripted scenario prompt.
const DefaultScenarioDelay = 2 * time.Second

// LastScenario is the index at which the sequencer is exhausted.
const LastScenario = 3

// scenarioScript holds the intro followed by the party, concert and first-date prompts.
// Entry n is emitted when the scenario index becomes n.
var scenarioScript = [LastScenario + 1]string{
	"Thanks for completing the assessment. Let's try a quick example together: I'll describe a situation and you tell me how you'd respond.",
	"You're at a party and a friend hands you a drink you don't want. What would you say?",
	"Nice work. Here's another one: your friends want to pre-game before the concert tonight, and you'd rather not drink. How would you respond?",
	"Last one: you're on a first date and your date orders a round of drinks for both of you. What could you say?",
}

// ScenarioSequencer emits the scripted prompts that follow a completed assessment.
// The index only moves forward and at most one timer is pending at a time.
type ScenarioSequencer struct {
	clock Clock
	delay time.Duration
	emit  func(text string)

	mu      sync.Mutex
	started bool
	stopped bool
	index   int
	pending Timer
}

// NewScenarioSequencer creates an idle sequencer that hands prompts to emit.
func NewScenarioSequencer(clock Clock, delay time.Duration, emit func(text string)) *ScenarioSequencer {
	if clock == nil {
		clock = RealClock()
	}
	return &ScenarioSequencer{clock: clock, delay: delay, emit: emit}
}

// Start emits the intro now and schedules the first scenario. Later calls do nothing.
func (s *ScenarioSequencer) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return false
	}
	s.started = true
	s.emit(scenarioScript[0])
	s.schedule(1)
	logging.L().Infof("[ScenarioSequencer] Started, first scenario in %s.", s.delay)
	return true
}

// OnExchange is called after a relay reply was appended. While the index is 1 or 2 and
// nothing is pending it schedules the next scenario.
func (s *ScenarioSequencer) OnExchange() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped || s.pending != nil {
		return false
	}
	if s.index < 1 || s.index >= LastScenario {
		return false
	}
	s.schedule(s.index + 1)
	return true
}

// schedule must be called with mu held.
func (s *ScenarioSequencer) schedule(next int) {
	s.pending = s.clock.AfterFunc(s.delay, func() { s.fire(next) })
}

func (s *ScenarioSequencer) fire(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = nil
	if s.stopped || n <= s.index {
		return
	}
	s.index = n
	s.emit(scenarioScript[n])
	logging.L().Debugf("[ScenarioSequencer] Scenario %d emitted.", n)
}

// Index returns the current scenario index, 0..3.
func (s *ScenarioSequencer) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Pending reports whether a scripted prompt is scheduled.
func (s *ScenarioSequencer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *ScenarioSequencer) Exhausted() bool {
	return s.Index() >= LastScenario
}

// Stop cancels any pending prompt. The sequencer cannot be restarted.
func (s *ScenarioSequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
}
