package models

import "time"

// SessionStatus defines the lifecycle status of an onboarding session record.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"    // Assessment or chat still running
	SessionStatusEnded     SessionStatus = "ended"     // User picked an ending option
	SessionStatusCompleted SessionStatus = "completed" // Assessment reached its result
	SessionStatusClosed    SessionStatus = "closed"    // Session discarded or evicted
)

// SessionRecord is the audit header for one onboarding session.
type SessionRecord struct {
	ID        string        `gorm:"primaryKey" json:"id"`
	Persona   Persona       `gorm:"type:varchar(20);not null" json:"persona"`
	ClientIP  string        `json:"client_ip"`
	Status    SessionStatus `gorm:"type:varchar(20);default:'active';not null;index" json:"status"`
	Score     int           `gorm:"default:0" json:"score"`
	Tier      RiskTier      `gorm:"type:varchar(20)" json:"tier,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	ClosedAt  *time.Time    `json:"closed_at,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// TableName specifies the table name for the SessionRecord model.
func (SessionRecord) TableName() string {
	return "session_records"
}

// AnswerLog mirrors an AnswerRecord for the audit trail.
type AnswerLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"index;not null" json:"session_id"`
	Sequence     int       `gorm:"not null" json:"sequence"`
	StepKey      StepID    `gorm:"type:varchar(50)" json:"step_key"`
	QuestionText string    `gorm:"type:text" json:"question_text"`
	OptionText   string    `gorm:"type:text" json:"option_text"`
	ScoreDelta   int       `json:"score_delta"`
	AnsweredAt   time.Time `json:"answered_at"`
}

// TableName specifies the table name for the AnswerLog model.
func (AnswerLog) TableName() string {
	return "answer_logs"
}

// ExchangeLog is one user message and the reply it produced. Columns follow the
// conversation CSV export.
type ExchangeLog struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	SessionID          string    `gorm:"index;not null" json:"session_id"`
	ConversationNumber int       `gorm:"not null" json:"conversation_number"`
	ChatbotType        Persona   `gorm:"type:varchar(20)" json:"chatbot_type"`
	UserMessage        string    `gorm:"type:text" json:"user_message"`
	BotResponse        string    `gorm:"type:text" json:"bot_response"`
	ClientIP           string    `json:"user_ip"`
	RiskScore          int       `json:"risk_score"`
	Scenario           int       `json:"scenario"`
	CreatedAt          time.Time `json:"timestamp"`
}

// TableName specifies the table name for the ExchangeLog model.
func (ExchangeLog) TableName() string {
	return "exchange_logs"
}
