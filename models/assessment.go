package models

import (
	"time"
)

// StepID identifies an assessment step. Most values are opaque keys resolved by the
// backend; ResultStepID is a sentinel resolved locally.
type StepID string

const (
	FirstStepID  StepID = "0"      // Step requested when a session starts
	ResultStepID StepID = "result" // Completes the assessment without a fetch
)

// TargetKind classifies where an option leads.
type TargetKind int

const (
	TargetInvalid TargetKind = iota // Option carries neither an end marker nor a next key
	TargetEnd                       // Terminates the assessment early (ended)
	TargetResult                    // Completes the assessment (completed)
	TargetRemote                    // Requires fetching another step
)

func (k TargetKind) String() string {
	switch k {
	case TargetEnd:
		return "end"
	case TargetResult:
		return "result"
	case TargetRemote:
		return "remote"
	default:
		return "invalid"
	}
}

// Option is one selectable answer of an assessment step.
type Option struct {
	Text  string `json:"text" yaml:"text"`
	Next  StepID `json:"next,omitempty" yaml:"next,omitempty"`   // Remote key or "result"
	Score int    `json:"score,omitempty" yaml:"score,omitempty"` // Absent means 0
	End   bool   `json:"end,omitempty" yaml:"end,omitempty"`     // Ends the assessment, takes precedence over Next
}

// Target resolves the option's transition. The end marker wins over any next key.
func (o Option) Target() (TargetKind, StepID) {
	switch {
	case o.End:
		return TargetEnd, ""
	case o.Next == ResultStepID:
		return TargetResult, ResultStepID
	case o.Next != "":
		return TargetRemote, o.Next
	default:
		return TargetInvalid, ""
	}
}

// AssessmentStep is one question with its ordered answer options.
type AssessmentStep struct {
	Key     StepID   `json:"key"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Clone returns a deep copy so callers cannot mutate a step held by the machine.
func (s *AssessmentStep) Clone() *AssessmentStep {
	if s == nil {
		return nil
	}
	out := *s
	out.Options = append([]Option(nil), s.Options...)
	return &out
}

// AnswerRecord is one entry of the append-only answer log.
type AnswerRecord struct {
	StepKey            StepID    `json:"step_key"`
	QuestionText       string    `json:"question_text"`
	SelectedOptionText string    `json:"selected_option_text"`
	ScoreDelta         int       `json:"score_delta"`
	Timestamp          time.Time `json:"timestamp"`
}

// RiskTier is the coarse bucket derived from a completed assessment score.
type RiskTier string

const (
	RiskTierLow      RiskTier = "low"
	RiskTierModerate RiskTier = "moderate"
	RiskTierHigh     RiskTier = "high"
	RiskTierSevere   RiskTier = "severe"
)

// TierForScore maps a final score to its risk tier.
func TierForScore(score int) RiskTier {
	switch {
	case score <= 3:
		return RiskTierLow
	case score <= 7:
		return RiskTierModerate
	case score <= 12:
		return RiskTierHigh
	default:
		return RiskTierSevere
	}
}

// TrainingKey is the key of this tier in the static training resource, e.g. "high_risk".
func (t RiskTier) TrainingKey() string {
	return string(t) + "_risk"
}

// StepRequest is the body of POST /api/get_assessment_step.
type StepRequest struct {
	StepKey string `json:"stepKey"`
}
