package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"aptchat/logging"
	"aptchat/models"
)

// ErrSessionRecordNotFound is returned when no audit header exists for a session ID.
var ErrSessionRecordNotFound = errors.New("session record not found")

// SessionLogRepository persists the audit trail of onboarding sessions.
type SessionLogRepository interface {
	CreateSession(record *models.SessionRecord) error
	GetSession(sessionID string) (*models.SessionRecord, error)
	UpdateOutcome(sessionID string, score int, tier models.RiskTier, status models.SessionStatus) error
	CloseSession(sessionID string) error
	AppendAnswer(entry *models.AnswerLog) error
	ListAnswers(sessionID string) ([]models.AnswerLog, error)
	AppendExchange(entry *models.ExchangeLog) error
	ListExchanges(sessionID string) ([]models.ExchangeLog, error)
}

type sessionLogRepository struct {
	db *gorm.DB
}

// NewSessionLogRepository creates a new instance of SessionLogRepository.
func NewSessionLogRepository(db *gorm.DB) SessionLogRepository {
	return &sessionLogRepository{db: db}
}

// CreateSession inserts the audit header for a new session.
func (r *sessionLogRepository) CreateSession(record *models.SessionRecord) error {
	if record == nil || record.ID == "" {
		logging.L().Errorf("[SessionLogRepository] CreateSession: record and record ID are required.")
		return errors.New("session record ID cannot be empty")
	}
	if record.Status == "" {
		record.Status = models.SessionStatusActive
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now()
	}
	if err := r.db.Create(record).Error; err != nil {
		logging.L().Errorf("[SessionLogRepository] Failed to create session record %s: %v", record.ID, err)
		return fmt.Errorf("failed to create session record %s: %w", record.ID, err)
	}
	logging.L().Infof("[SessionLogRepository] Created session record %s (persona=%s).", record.ID, record.Persona)
	return nil
}

// GetSession retrieves the audit header of a session.
func (r *sessionLogRepository) GetSession(sessionID string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	err := r.db.First(&record, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrSessionRecordNotFound)
		}
		logging.L().Errorf("[SessionLogRepository] Failed to fetch session record %s: %v", sessionID, err)
		return nil, fmt.Errorf("failed to fetch session record %s: %w", sessionID, err)
	}
	return &record, nil
}

// UpdateOutcome stores the assessment outcome of a session.
func (r *sessionLogRepository) UpdateOutcome(sessionID string, score int, tier models.RiskTier, status models.SessionStatus) error {
	result := r.db.Model(&models.SessionRecord{}).
		Where("id = ?", sessionID).
		Updates(map[string]interface{}{"score": score, "tier": tier, "status": status})
	if result.Error != nil {
		logging.L().Errorf("[SessionLogRepository] Failed to update outcome of session %s: %v", sessionID, result.Error)
		return fmt.Errorf("failed to update session record %s: %w", sessionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("session %s: %w", sessionID, ErrSessionRecordNotFound)
	}
	logging.L().Infof("[SessionLogRepository] Session %s outcome: status=%s score=%d tier=%s", sessionID, status, score, tier)
	return nil
}

// CloseSession marks a session closed. Closing twice keeps the first close time.
func (r *sessionLogRepository) CloseSession(sessionID string) error {
	now := time.Now()
	result := r.db.Model(&models.SessionRecord{}).
		Where("id = ? AND closed_at IS NULL", sessionID).
		Updates(map[string]interface{}{"closed_at": now, "status": models.SessionStatusClosed})
	if result.Error != nil {
		logging.L().Errorf("[SessionLogRepository] Failed to close session %s: %v", sessionID, result.Error)
		return fmt.Errorf("failed to close session record %s: %w", sessionID, result.Error)
	}
	logging.L().Infof("[SessionLogRepository] Closed session record %s.", sessionID)
	return nil
}

// AppendAnswer records one accepted assessment answer. Sequence is assigned here.
func (r *sessionLogRepository) AppendAnswer(entry *models.AnswerLog) error {
	if entry == nil || entry.SessionID == "" {
		return errors.New("answer log requires a session ID")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.AnswerLog{}).Where("session_id = ?", entry.SessionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count answers of session %s: %w", entry.SessionID, err)
		}
		entry.Sequence = int(count) + 1
		if entry.AnsweredAt.IsZero() {
			entry.AnsweredAt = time.Now()
		}
		if err := tx.Create(entry).Error; err != nil {
			logging.L().Errorf("[SessionLogRepository] Failed to append answer to session %s: %v", entry.SessionID, err)
			return fmt.Errorf("failed to append answer to session %s: %w", entry.SessionID, err)
		}
		return nil
	})
}

// ListAnswers returns a session's answers in submission order.
func (r *sessionLogRepository) ListAnswers(sessionID string) ([]models.AnswerLog, error) {
	var answers []models.AnswerLog
	if err := r.db.Where("session_id = ?", sessionID).Order("sequence asc").Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to list answers of session %s: %w", sessionID, err)
	}
	return answers, nil
}

// AppendExchange records one chat exchange. ConversationNumber is assigned here.
func (r *sessionLogRepository) AppendExchange(entry *models.ExchangeLog) error {
	if entry == nil || entry.SessionID == "" {
		return errors.New("exchange log requires a session ID")
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.ExchangeLog{}).Where("session_id = ?", entry.SessionID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count exchanges of session %s: %w", entry.SessionID, err)
		}
		entry.ConversationNumber = int(count) + 1
		if err := tx.Create(entry).Error; err != nil {
			logging.L().Errorf("[SessionLogRepository] Failed to append exchange to session %s: %v", entry.SessionID, err)
			return fmt.Errorf("failed to append exchange to session %s: %w", entry.SessionID, err)
		}
		logging.L().Debugf("[SessionLogRepository] Session %s exchange #%d logged.", entry.SessionID, entry.ConversationNumber)
		return nil
	})
}

// ListExchanges returns a session's exchanges in conversation order.
func (r *sessionLogRepository) ListExchanges(sessionID string) ([]models.ExchangeLog, error) {
	var exchanges []models.ExchangeLog
	if err := r.db.Where("session_id = ?", sessionID).Order("conversation_number asc").Find(&exchanges).Error; err != nil {
		return nil, fmt.Errorf("failed to list exchanges of session %s: %w", sessionID, err)
	}
	return exchanges, nil
}
