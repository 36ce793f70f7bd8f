package api

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"aptchat/models"
	"aptchat/repository"
	"aptchat/utils"
)

const exportTimeLayout = "2006-01-02 15:04:05"

var exportHeader = []string{
	"timestamp", "conversation_number", "chatbot_type",
	"user_message", "bot_response", "user_ip", "risk_score", "scenario",
}

// ExportSessionHandler downloads the logged chat exchanges of a session as CSV.
// Closed sessions stay exportable while their audit record exists.
func (h *APIHandler) ExportSessionHandler(c *gin.Context) {
	sessionID := c.Param("sessionID")
	if _, err := h.auditLog.GetSession(sessionID); err != nil {
		if errors.Is(err, repository.ErrSessionRecordNotFound) {
			utils.SendJSONError(c, http.StatusNotFound, "Session not found", nil)
			return
		}
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load session", err)
		return
	}

	exchanges, err := h.auditLog.ListExchanges(sessionID)
	if err != nil {
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load session", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=session_%s.csv", sessionID))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, e := range exchanges {
		_ = w.Write(exportRow(e))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = c.Error(fmt.Errorf("write session export: %w", err))
	}
}

func exportRow(e models.ExchangeLog) []string {
	scenario := ""
	if e.Scenario > 0 {
		scenario = strconv.Itoa(e.Scenario)
	}
	return []string{
		e.CreatedAt.Format(exportTimeLayout),
		strconv.Itoa(e.ConversationNumber),
		string(e.ChatbotType),
		e.UserMessage,
		e.BotResponse,
		e.ClientIP,
		strconv.Itoa(e.RiskScore),
		scenario,
	}
}
