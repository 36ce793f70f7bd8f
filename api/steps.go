package api

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"aptchat/models"
	"aptchat/repository"
	"aptchat/utils"
)

// GetAssessmentStepHandler serves one step of the local catalog.
func (h *APIHandler) GetAssessmentStepHandler(c *gin.Context) {
	if h.catalog == nil {
		utils.SendJSONError(c, http.StatusForbidden, "Assessment feature is disabled", nil)
		return
	}

	var req models.StepRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.StepKey == "" {
		utils.SendJSONError(c, http.StatusBadRequest, "Missing stepKey parameter", nil)
		return
	}
	if !utils.ValidStepKey(req.StepKey) {
		utils.SendJSONError(c, http.StatusBadRequest, "Invalid stepKey format", nil)
		return
	}

	step, err := h.catalog.FetchStep(c.Request.Context(), models.StepID(req.StepKey))
	if err != nil {
		if errors.Is(err, repository.ErrStepNotFound) {
			utils.SendJSONError(c, http.StatusNotFound, "Step not found", nil)
			return
		}
		utils.SendJSONError(c, http.StatusInternalServerError, "Failed to load assessment steps", err)
		return
	}
	c.JSON(http.StatusOK, step)
}

// TrainingDataHandler serves the configured training file.
func (h *APIHandler) TrainingDataHandler(c *gin.Context) {
	if h.trainingFile == "" {
		utils.SendJSONError(c, http.StatusNotFound, "Training data is not configured", nil)
		return
	}
	if _, err := os.Stat(h.trainingFile); err != nil {
		utils.SendJSONError(c, http.StatusNotFound, "Training data not found", err)
		return
	}
	c.Header("Content-Type", "application/json; charset=utf-8")
	c.File(h.trainingFile)
}
