package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/infra/logger"
)

// ErrorResponse represents a generic error payload with the request ID for debugging.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response with the request ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	requestID, _ := c.Request.Context().Value(logger.RequestIDKey{}).(string)

	return ErrorResponse{
		Error:     errorMsg,
		RequestID: requestID,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse describes the liveness payload.
type HealthResponse struct {
	Status    string `json:"status"`
	StartedAt string `json:"started_at"`
}

// ReadinessResponse describes per-dependency readiness results.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// UpdateReminderRequest defines the payload for setting a user's reminder time.
type UpdateReminderRequest struct {
	Time string `json:"time" binding:"required"`
}

// ReminderResponse echoes the reminder state after an update.
type ReminderResponse struct {
	UserID  string `json:"user_id"`
	Time    string `json:"time,omitempty"`
	Enabled bool   `json:"enabled"`
}
