package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"aptchat/config"
	"aptchat/repository"
	"aptchat/services"
)

// HandlerDeps are the collaborators of the HTTP layer.
type HandlerDeps struct {
	Sessions     *services.SessionManager
	AuditLog     repository.SessionLogRepository // Backs the CSV export
	Catalog      *repository.LocalStepSource     // nil disables /api/get_assessment_step
	Responder    services.Responder              // Used when UpstreamMode is builtin
	UpstreamMode string
	UpstreamURL  string
	Timeout      time.Duration
	TrainingFile string // Served at /training_data.json when set
}

// APIHandler holds all dependencies for API handlers.
type APIHandler struct {
	sessions     *services.SessionManager
	auditLog     repository.SessionLogRepository
	catalog      *repository.LocalStepSource
	responder    services.Responder
	upstreamMode string
	upstreamURL  string
	upstream     *http.Client
	trainingFile string
}

// NewAPIHandler creates a new APIHandler with necessary dependencies.
func NewAPIHandler(deps HandlerDeps) *APIHandler {
	mode := deps.UpstreamMode
	if mode == "" {
		mode = config.UpstreamForward
	}
	return &APIHandler{
		sessions:     deps.Sessions,
		auditLog:     deps.AuditLog,
		catalog:      deps.Catalog,
		responder:    deps.Responder,
		upstreamMode: mode,
		upstreamURL:  deps.UpstreamURL,
		upstream:     &http.Client{Timeout: deps.Timeout},
		trainingFile: deps.TrainingFile,
	}
}

// Register mounts every route on r.
func (h *APIHandler) Register(r *gin.Engine) {
	r.GET("/training_data.json", h.TrainingDataHandler)

	// Built-in backend, the default forward target of a second instance.
	r.GET("/", h.BackendHomeHandler)
	r.POST("/", h.BackendChatHandler)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/chat", h.ChatProxyHandler)
		apiGroup.POST("/get_assessment_step", h.GetAssessmentStepHandler)

		sessionGroup := apiGroup.Group("/sessions")
		{
			sessionGroup.POST("", h.CreateSessionHandler)
			sessionGroup.GET("/:sessionID", h.GetSessionHandler)
			sessionGroup.DELETE("/:sessionID", h.DeleteSessionHandler)
			sessionGroup.POST("/:sessionID/answer", h.SubmitAnswerHandler)
			sessionGroup.POST("/:sessionID/reload", h.ReloadHandler)
			sessionGroup.POST("/:sessionID/chat", h.SessionChatHandler)
			sessionGroup.POST("/:sessionID/quiz/answer", h.QuizAnswerHandler)
			sessionGroup.GET("/:sessionID/export.csv", h.ExportSessionHandler)
		}
	}
}

// respond writes the standard success envelope.
func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{
		"code":    status,
		"message": message,
		"data":    data,
	})
}
