package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"aptchat/config"
	"aptchat/logging"
	"aptchat/models"
	"aptchat/services"
	"aptchat/utils"
)

const (
	maxChatBodyBytes = 1 << 20
	proxyErrorMsg    = "Server error"
)

// chatPayload is the body accepted by the built-in backend. Numeric fields stay loose
// so "7" and 7 are both understood.
type chatPayload struct {
	Message             *string      `json:"message"`
	ChatbotType         *string      `json:"chatbot_type"`
	RiskScore           interface{}  `json:"risk_score"`
	ConversationContext *chatContext `json:"conversation_context"`
}

// chatContext keeps history and answers raw; a malformed list is ignored, not rejected.
type chatContext struct {
	PartyScenario interface{}     `json:"party_scenario"`
	History       json.RawMessage `json:"history"`
	Answers       json.RawMessage `json:"answers"`
}

// ChatProxyHandler serves /api/chat. In forward mode the body goes to the upstream
// backend unchanged; in builtin mode the built-in responder answers it.
func (h *APIHandler) ChatProxyHandler(c *gin.Context) {
	if h.upstreamMode == config.UpstreamBuiltin {
		h.BackendChatHandler(c)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxChatBodyBytes))
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, proxyErrorMsg, err)
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, h.upstreamURL, bytes.NewReader(body))
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, proxyErrorMsg, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.upstream.Do(req)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, proxyErrorMsg, fmt.Errorf("forward chat: %w", err))
		return
	}
	defer resp.Body.Close()

	upstreamBody, err := io.ReadAll(io.LimitReader(resp.Body, maxChatBodyBytes))
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, proxyErrorMsg, fmt.Errorf("read upstream reply: %w", err))
		return
	}
	if !json.Valid(upstreamBody) {
		utils.SendJSONError(c, http.StatusInternalServerError, proxyErrorMsg,
			fmt.Errorf("upstream returned non-JSON body with status %d", resp.StatusCode))
		return
	}
	c.Data(resp.StatusCode, "application/json; charset=utf-8", upstreamBody)
}

// BackendChatHandler answers a chat message with the built-in responder.
func (h *APIHandler) BackendChatHandler(c *gin.Context) {
	var payload chatPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid JSON payload.", nil)
		return
	}
	if payload.Message == nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Missing 'message' parameter.", nil)
		return
	}
	if payload.ChatbotType == nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Missing 'chatbot_type' parameter.", nil)
		return
	}
	if !utils.ValidChatbotType(*payload.ChatbotType) {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid chatbot type provided.", nil)
		return
	}
	if h.responder == nil {
		utils.SendJSONError(c, http.StatusServiceUnavailable, "Chat backend is not configured", nil)
		return
	}

	req := services.ResponderRequest{
		Message:   strings.TrimSpace(*payload.Message),
		Persona:   models.Persona(*payload.ChatbotType),
		RiskScore: utils.RiskScoreInRange(looseNumber(payload.RiskScore)),
	}
	if cc := payload.ConversationContext; cc != nil {
		req.PartyScenario = utils.ScenarioInRange(looseNumber(cc.PartyScenario))
		req.History = decodeList[models.ChatMessage](cc.History)
		req.Answers = decodeList[models.AnswerRecord](cc.Answers)
	}

	reply, err := h.responder.Respond(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownPersona):
			utils.SendJSONError(c, http.StatusBadRequest, "Invalid chatbot type provided.", nil)
		default:
			utils.SendJSONError(c, http.StatusServiceUnavailable, "Chat service is unavailable", err)
		}
		return
	}

	logging.L().Debugf("[Chat] %s replied to a %d character message", req.Persona, len(req.Message))
	c.JSON(http.StatusOK, gin.H{"bot_response": reply})
}

// BackendHomeHandler answers GET / on the built-in backend.
func (h *APIHandler) BackendHomeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello world! from aptchat backend"})
}

func decodeList[T any](raw json.RawMessage) []T {
	if len(raw) == 0 {
		return nil
	}
	var list []T
	if err := json.Unmarshal(raw, &list); err != nil {
		logging.L().Debugf("[Chat] Ignoring malformed conversation context list: %v", err)
		return nil
	}
	return list
}

// looseNumber reads a JSON number or numeric string. Anything else is absent.
func looseNumber(v interface{}) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}
