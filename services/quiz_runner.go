package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"aptchat/logging"
	"aptchat/models"
	"aptchat/repository"
)

var (
	ErrQuizNotLoaded = errors.New("quiz not loaded")
	ErrQuizFinished  = errors.New("quiz finished")
)

// QuizState is the lifecycle of a quiz runner.
type QuizState string

const (
	QuizIdle     QuizState = "idle"
	QuizLoading  QuizState = "loading"
	QuizActive   QuizState = "active"
	QuizFinished QuizState = "finished"
)

// QuizResult is returned for every answered item.
type QuizResult struct {
	Correct     bool   `json:"correct"`
	Feedback    string `json:"feedback"`
	CorrectText string `json:"correct_text,omitempty"`
}

// QuizProgress is the read model of a runner.
type QuizProgress struct {
	State    QuizState        `json:"state"`
	Tier     models.RiskTier  `json:"tier,omitempty"`
	Position int              `json:"position"`
	Total    int              `json:"total"`
	Correct  int              `json:"correct"`
	Current  *models.QuizItem `json:"current,omitempty"`
}

// QuizRunner presents the training items of one tier in order, one at a time.
type QuizRunner struct {
	source repository.TrainingSource

	mu       sync.Mutex
	state    QuizState
	tier     models.RiskTier
	items    []models.QuizItem
	position int
	correct  int
}

func NewQuizRunner(source repository.TrainingSource) *QuizRunner {
	return &QuizRunner{source: source, state: QuizIdle}
}

// Load fetches the training resource once and keeps the items for tier. A failed or empty
// load leaves the runner finished.
func (q *QuizRunner) Load(ctx context.Context, tier models.RiskTier) error {
	q.mu.Lock()
	if q.state != QuizIdle {
		q.mu.Unlock()
		return nil
	}
	q.state = QuizLoading
	q.tier = tier
	q.mu.Unlock()

	var (
		data models.TrainingData
		err  error
	)
	if q.source == nil {
		err = errors.New("no training source configured")
	} else {
		data, err = q.source.LoadTraining(ctx)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if err != nil {
		q.state = QuizFinished
		logging.L().Errorf("[QuizRunner] Failed to load training data for tier '%s': %v", tier, err)
		return fmt.Errorf("load training data: %w", err)
	}

	q.items = append([]models.QuizItem(nil), data.ItemsFor(tier)...)
	if len(q.items) == 0 {
		q.state = QuizFinished
		logging.L().Warnf("[QuizRunner] No training items for key '%s'.", tier.TrainingKey())
		return nil
	}
	q.state = QuizActive
	logging.L().Infof("[QuizRunner] Loaded %d training items for tier '%s'.", len(q.items), tier)
	return nil
}

// Current returns the item awaiting an answer.
func (q *QuizRunner) Current() (models.QuizItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state != QuizActive {
		return models.QuizItem{}, false
	}
	return q.items[q.position], true
}

// Answer grades the current item and advances. After the last item the runner is finished.
func (q *QuizRunner) Answer(optionIndex int) (QuizResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch q.state {
	case QuizIdle, QuizLoading:
		return QuizResult{}, ErrQuizNotLoaded
	case QuizFinished:
		return QuizResult{}, ErrQuizFinished
	}

	item := q.items[q.position]
	if optionIndex < 0 || optionIndex >= len(item.Options) {
		return QuizResult{}, fmt.Errorf("%w: index %d of %d", ErrInvalidOption, optionIndex, len(item.Options))
	}

	result := QuizResult{Correct: item.Options[optionIndex].Correct}
	for _, opt := range item.Options {
		if opt.Correct {
			result.CorrectText = opt.Text
			break
		}
	}
	if result.Correct {
		q.correct++
		result.Feedback = "Correct!"
	} else if result.CorrectText != "" {
		result.Feedback = "Not quite. The correct answer is: " + result.CorrectText
	} else {
		result.Feedback = "Not quite."
	}

	q.position++
	if q.position >= len(q.items) {
		q.state = QuizFinished
		logging.L().Infof("[QuizRunner] Quiz finished: %d/%d correct.", q.correct, len(q.items))
	}
	return result, nil
}

// Progress returns a copy of the runner's position.
func (q *QuizRunner) Progress() QuizProgress {
	q.mu.Lock()
	defer q.mu.Unlock()

	p := QuizProgress{
		State:    q.state,
		Tier:     q.tier,
		Position: q.position,
		Total:    len(q.items),
		Correct:  q.correct,
	}
	if q.state == QuizActive {
		item := q.items[q.position]
		item.Options = append([]models.QuizOption(nil), item.Options...)
		p.Current = &item
	}
	return p
}

// Items returns a copy of the loaded items.
func (q *QuizRunner) Items() []models.QuizItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]models.QuizItem(nil), q.items...)
}
