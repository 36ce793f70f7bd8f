package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"aptchat/config"
	"aptchat/logging"
	"aptchat/models"
)

// ErrLLMNotConfigured is returned when a model call is needed but no API key is set.
var ErrLLMNotConfigured = errors.New("language model is not configured")

// personaStyles are the system instructions per chatbot type.
var personaStyles = map[models.Persona]string{
	models.PersonaAI:      "Respond in an informal, friendly, and casual manner.",
	models.PersonaStudent: "Respond in an inquisitive, energetic, and slightly informal manner.",
	models.PersonaDoctor:  "Respond in a formal, professional, and knowledgeable manner.",
}

// maxHistoryMessages bounds how much of the transcript is replayed to the model.
const maxHistoryMessages = 20

// ResponderRequest is a validated /api/chat payload.
type ResponderRequest struct {
	Message       string
	Persona       models.Persona
	RiskScore     *int // nil when absent or out of range
	PartyScenario int  // 0 when not answering a scenario
	History       []models.ChatMessage
	Answers       []models.AnswerRecord
}

// Responder produces the bot reply for a chat message.
type Responder interface {
	Respond(ctx context.Context, req ResponderRequest) (string, error)
}

// BuiltinResponder answers scenario messages with keyword coaching and everything else
// through an OpenAI-compatible chat completion.
type BuiltinResponder struct {
	client *openai.Client
	model  string
}

// NewBuiltinResponder creates a responder. Without an API key only scenario replies work.
func NewBuiltinResponder(cfg config.LLMConfig) *BuiltinResponder {
	r := &BuiltinResponder{model: cfg.Model}
	if cfg.APIKey == "" {
		logging.L().Warnf("[Responder] LLM API key not set; only scenario feedback is available.")
		return r
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	r.client = openai.NewClientWithConfig(clientConfig)
	return r
}

func (r *BuiltinResponder) Respond(ctx context.Context, req ResponderRequest) (string, error) {
	if feedback, ok := ScenarioFeedback(req.PartyScenario, req.Message); ok {
		logging.L().Debugf("[Responder] Scenario %d feedback returned.", req.PartyScenario)
		return feedback, nil
	}

	style, ok := personaStyles[req.Persona]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPersona, req.Persona)
	}
	if r.client == nil {
		return "", ErrLLMNotConfigured
	}

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    r.model,
		Messages: buildMessages(style, req),
	})
	if err != nil {
		logging.L().Errorf("[Responder] Chat completion with model %s failed: %v", r.model, err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("no content was returned from the model")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// buildMessages assembles the system prompt, the recent transcript and the new message.
func buildMessages(style string, req ResponderRequest) []openai.ChatCompletionMessage {
	var prompt strings.Builder
	prompt.WriteString(style)
	if req.RiskScore != nil {
		fmt.Fprintf(&prompt, " The user's alcohol risk assessment score is %d out of 20; keep advice appropriate to it.", *req.RiskScore)
	}
	if len(req.Answers) > 0 {
		prompt.WriteString(" Their assessment answers were:")
		for _, a := range req.Answers {
			fmt.Fprintf(&prompt, "\n- %s %s", a.QuestionText, a.SelectedOptionText)
		}
	}

	messages := []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleSystem, Content: prompt.String()}}
	history := req.History
	if len(history) > maxHistoryMessages {
		history = history[len(history)-maxHistoryMessages:]
	}
	for _, msg := range history {
		var role string
		switch msg.Role {
		case models.RoleUser:
			role = openai.ChatMessageRoleUser
		case models.RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		default:
			continue
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Text})
	}
	return append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Message})
}
