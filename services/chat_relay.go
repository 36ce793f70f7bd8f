package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"aptchat/logging"
	"aptchat/models"
)

// ErrEmptyMessage is returned for messages that are empty after trimming. No request is made.
var ErrEmptyMessage = errors.New("message is empty")

const (
	// TransportFailureReply is shown when the chat endpoint could not be reached.
	TransportFailureReply = "Sorry, I encountered an error. Please try again."
	// MalformedReply is shown for a 2xx response that carries neither a reply nor an error.
	MalformedReply   = "Something went wrong."
	errorReplyPrefix = "Error: "
)

// RelayContext is the conversation state sent with each message.
type RelayContext struct {
	ScenarioIndex int
	Answers       []models.AnswerRecord
	History       []models.ChatMessage
}

// ChatRelay posts free-form messages to {proxy}/api/chat and turns every result into
// display text. Failures never surface as errors.
type ChatRelay struct {
	endpoint string
	client   *http.Client
}

// NewChatRelay creates a relay for the proxy at baseURL.
func NewChatRelay(baseURL string, timeout time.Duration) *ChatRelay {
	return &ChatRelay{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/chat",
		client:   &http.Client{Timeout: timeout},
	}
}

// Send trims text and relays it once. The returned string is always displayable; the only
// error is ErrEmptyMessage.
func (r *ChatRelay) Send(ctx context.Context, persona models.Persona, text string, score int, rc RelayContext) (string, error) {
	message := strings.TrimSpace(text)
	if message == "" {
		return "", ErrEmptyMessage
	}

	payload, err := json.Marshal(models.ChatRelayRequest{
		Message:     message,
		ChatbotType: persona,
		RiskScore:   score,
		ConversationContext: models.ConversationContext{
			PartyScenario: rc.ScenarioIndex,
			Answers:       rc.Answers,
			History:       rc.History,
		},
	})
	if err != nil {
		logging.L().Errorf("[ChatRelay] Failed to encode chat request: %v", err)
		return TransportFailureReply, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		logging.L().Errorf("[ChatRelay] Failed to build chat request: %v", err)
		return TransportFailureReply, nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		logging.L().Errorf("[ChatRelay] Chat request to %s failed: %v", r.endpoint, err)
		return TransportFailureReply, nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		logging.L().Errorf("[ChatRelay] Failed to read chat response: %v", err)
		return TransportFailureReply, nil
	}

	var decoded models.ChatRelayResponse
	decodeErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := resp.Status
		if decodeErr == nil && decoded.Error != "" {
			msg = decoded.Error
		}
		logging.L().Warnf("[ChatRelay] Chat endpoint returned %d: %s", resp.StatusCode, msg)
		return errorReplyPrefix + msg, nil
	}
	if decodeErr != nil {
		logging.L().Warnf("[ChatRelay] Undecodable chat response: %v", decodeErr)
		return MalformedReply, nil
	}
	if decoded.Error != "" {
		return errorReplyPrefix + decoded.Error, nil
	}
	if decoded.BotResponse == "" {
		return MalformedReply, nil
	}
	return decoded.BotResponse, nil
}
