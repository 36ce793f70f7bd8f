package services

import (
	"sync"

	"github.com/google/uuid"

	"aptchat/models"
)

// TimestampLayout renders message times as "03:04 PM".
const TimestampLayout = "03:04 PM"

// Transcript is the append-only message list of a session.
type Transcript struct {
	clock Clock

	mu       sync.RWMutex
	messages []models.ChatMessage
}

func NewTranscript(clock Clock) *Transcript {
	if clock == nil {
		clock = RealClock()
	}
	return &Transcript{clock: clock}
}

// Append adds a message and returns it with its ID and timestamp filled in.
func (t *Transcript) Append(role models.Role, text string) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: t.clock.Now().Format(TimestampLayout),
	}
	t.mu.Lock()
	t.messages = append(t.messages, msg)
	t.mu.Unlock()
	return msg
}

// Messages returns a copy in display order.
func (t *Transcript) Messages() []models.ChatMessage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.ChatMessage{}, t.messages...)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}
