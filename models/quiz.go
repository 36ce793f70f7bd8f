package models

// QuizOption is one answer of a training item.
type QuizOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// QuizItem is a multiple-choice knowledge check.
type QuizItem struct {
	Question string       `json:"question"`
	Options  []QuizOption `json:"options"`
}

// TrainingData maps "<tier>_risk" keys to ordered quiz items.
type TrainingData map[string][]QuizItem

// ItemsFor returns the items for a tier, or nil if the resource has none.
func (d TrainingData) ItemsFor(tier RiskTier) []QuizItem {
	return d[tier.TrainingKey()]
}
