package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"aptchat/services"
	"aptchat/utils"
)

type createSessionRequest struct {
	Persona string `json:"persona" binding:"required"`
}

type optionRequest struct {
	Option *int `json:"option" binding:"required"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// lookupSession resolves :sessionID or writes a 404.
func (h *APIHandler) lookupSession(c *gin.Context) (*services.OnboardingSession, bool) {
	session, err := h.sessions.Get(c.Param("sessionID"))
	if err != nil {
		utils.SendJSONError(c, http.StatusNotFound, "Session not found", nil)
		return nil, false
	}
	return session, true
}

// CreateSessionHandler starts an onboarding session and requests its first step.
func (h *APIHandler) CreateSessionHandler(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request body", err, "persona is required")
		return
	}

	session, err := h.sessions.Create(c.Request.Context(), req.Persona, c.ClientIP())
	if err != nil {
		if errors.Is(err, services.ErrUnknownPersona) {
			utils.SendJSONError(c, http.StatusBadRequest, "Unknown persona", nil, "persona must be ai, student or doctor")
			return
		}
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to create session", err)
		return
	}
	respond(c, http.StatusCreated, "session created", session.Snapshot())
}

func (h *APIHandler) GetSessionHandler(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "success", session.Snapshot())
}

// DeleteSessionHandler discards a session and stops its timers.
func (h *APIHandler) DeleteSessionHandler(c *gin.Context) {
	if err := h.sessions.Delete(c.Param("sessionID")); err != nil {
		utils.SendJSONError(c, http.StatusNotFound, "Session not found", nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitAnswerHandler applies an assessment option. Submissions dropped by the duplicate
// guard get 409 with the unchanged snapshot.
func (h *APIHandler) SubmitAnswerHandler(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	var req optionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request body", err, "option is required")
		return
	}

	outcome, err := session.SubmitAnswer(c.Request.Context(), *req.Option)
	switch {
	case err == nil:
		c.Header("X-Assessment-Outcome", string(outcome))
		respond(c, http.StatusOK, "success", session.Snapshot())
	case errors.Is(err, services.ErrSubmissionRejected):
		respond(c, http.StatusConflict, "submission rejected", session.Snapshot())
	case errors.Is(err, services.ErrInvalidOption):
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid option", nil, err.Error())
	case errors.Is(err, services.ErrSessionClosed):
		utils.SendJSONError(c, http.StatusGone, "Session closed", nil)
	default:
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to submit answer", err)
	}
}

// ReloadHandler retries a stalled step fetch.
func (h *APIHandler) ReloadHandler(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}

	outcome, err := session.Reload(c.Request.Context())
	switch {
	case err == nil:
		c.Header("X-Assessment-Outcome", string(outcome))
		respond(c, http.StatusOK, "success", session.Snapshot())
	case errors.Is(err, services.ErrNotStalled), errors.Is(err, services.ErrSubmissionRejected):
		respond(c, http.StatusConflict, err.Error(), session.Snapshot())
	case errors.Is(err, services.ErrSessionClosed):
		utils.SendJSONError(c, http.StatusGone, "Session closed", nil)
	default:
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to reload step", err)
	}
}

// SessionChatHandler relays a free-form message for the session.
func (h *APIHandler) SessionChatHandler(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	_, err := session.SendChat(c.Request.Context(), req.Message)
	switch {
	case err == nil:
		respond(c, http.StatusOK, "success", session.Snapshot())
	case errors.Is(err, services.ErrEmptyMessage):
		utils.SendJSONError(c, http.StatusBadRequest, "Message is empty", nil)
	case errors.Is(err, services.ErrChatNotReady):
		utils.SendJSONError(c, http.StatusConflict, "Chat is available once the assessment is over", nil)
	case errors.Is(err, services.ErrSessionClosed):
		utils.SendJSONError(c, http.StatusGone, "Session closed", nil)
	default:
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to send message", err)
	}
}

// QuizAnswerHandler grades the current training item.
func (h *APIHandler) QuizAnswerHandler(c *gin.Context) {
	session, ok := h.lookupSession(c)
	if !ok {
		return
	}
	var req optionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid request body", err, "option is required")
		return
	}

	result, err := session.AnswerQuiz(*req.Option)
	switch {
	case err == nil:
		respond(c, http.StatusOK, "success", gin.H{
			"correct":      result.Correct,
			"feedback":     result.Feedback,
			"correct_text": result.CorrectText,
			"snapshot":     session.Snapshot(),
		})
	case errors.Is(err, services.ErrQuizNotLoaded), errors.Is(err, services.ErrQuizFinished):
		utils.SendJSONError(c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, services.ErrInvalidOption):
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid option", nil, err.Error())
	case errors.Is(err, services.ErrSessionClosed):
		utils.SendJSONError(c, http.StatusGone, "Session closed", nil)
	default:
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to grade answer", err)
	}
}
