package utils

import (
	"net/http"
	"regexp"

	"github.com/gin-gonic/gin"

	"aptchat/logging"
	"aptchat/models"
)

const (
	// MaxStepKeyLength bounds step keys accepted from clients.
	MaxStepKeyLength = 50
	// MaxRiskScore is the highest risk score the chat endpoint accepts.
	MaxRiskScore = 20

	genericServerError = "An unexpected error occurred. Please try again later."
)

var stepKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// SendJSONError sends a standardized JSON error response and logs the internal error.
// For 5xx errors, it sends a generic public message when publicMsg is empty or would
// leak internalError.
func SendJSONError(c *gin.Context, statusCode int, publicMsg string, internalError error, details ...string) {
	errorDetails := ""
	if len(details) > 0 {
		errorDetails = details[0]
	}

	response := gin.H{"error": publicMsg}
	if errorDetails != "" {
		response["details"] = errorDetails
	}

	if internalError != nil {
		logging.L().Errorw("Handler error",
			"status_code", statusCode,
			"public_message", publicMsg,
			"internal_error", internalError.Error(),
			"details", errorDetails,
			"path", c.Request.URL.Path,
		)
	} else {
		logging.L().Infow("Handler response",
			"status_code", statusCode,
			"public_message", publicMsg,
			"details", errorDetails,
			"path", c.Request.URL.Path,
		)
	}

	if statusCode >= http.StatusInternalServerError {
		if publicMsg == "" || (internalError != nil && publicMsg == internalError.Error()) {
			response["error"] = genericServerError
		}
	}

	c.AbortWithStatusJSON(statusCode, response)
}

// ValidStepKey reports whether key is safe to look up: alphanumerics and underscores,
// at most MaxStepKeyLength characters.
func ValidStepKey(key string) bool {
	return len(key) <= MaxStepKeyLength && stepKeyPattern.MatchString(key)
}

// ValidChatbotType reports whether raw names a known persona.
func ValidChatbotType(raw string) bool {
	return models.Persona(raw).Valid()
}

// RiskScoreInRange returns the score when it lies in 0..MaxRiskScore, and nil otherwise.
func RiskScoreInRange(score *float64) *int {
	if score == nil {
		return nil
	}
	v := int(*score)
	if float64(v) != *score || v < 0 || v > MaxRiskScore {
		return nil
	}
	return &v
}

// ScenarioInRange returns n when it names one of the scripted scenarios, and 0 otherwise.
func ScenarioInRange(n *float64) int {
	if n == nil {
		return 0
	}
	v := int(*n)
	if float64(v) != *n || v < 1 || v > 3 {
		return 0
	}
	return v
}
