package models

import "fmt"

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of a session transcript. Display order is causal order.
type ChatMessage struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"` // Rendered as "03:04 PM"
}

// Persona is the chat role selected by the user; it is sent as chatbot_type.
type Persona string

const (
	PersonaAI      Persona = "ai"
	PersonaStudent Persona = "student"
	PersonaDoctor  Persona = "doctor"
)

// Valid reports whether the persona is one the backend accepts.
func (p Persona) Valid() bool {
	switch p {
	case PersonaAI, PersonaStudent, PersonaDoctor:
		return true
	}
	return false
}

// ParsePersona validates a raw chatbot type.
func ParsePersona(raw string) (Persona, error) {
	p := Persona(raw)
	if !p.Valid() {
		return "", fmt.Errorf("unknown persona %q", raw)
	}
	return p, nil
}

// ConversationContext is the opaque bundle sent with every chat message.
type ConversationContext struct {
	PartyScenario int            `json:"party_scenario,omitempty"` // Scenario index, omitted when 0
	Answers       []AnswerRecord `json:"answers,omitempty"`
	History       []ChatMessage  `json:"history,omitempty"`
}

// ChatRelayRequest is the body of POST /api/chat.
type ChatRelayRequest struct {
	Message             string              `json:"message"`
	ChatbotType         Persona             `json:"chatbot_type"`
	RiskScore           int                 `json:"risk_score"`
	ConversationContext ConversationContext `json:"conversation_context"`
}

// ChatRelayResponse is the body returned by /api/chat. Exactly one of BotResponse or Error is set.
type ChatRelayResponse struct {
	BotResponse string `json:"bot_response,omitempty"`
	Error       string `json:"error,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}
