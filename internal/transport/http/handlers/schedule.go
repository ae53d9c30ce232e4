package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/repository"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/usecase"
)

// ScheduleHandler wires the reminder management endpoints to the scheduler.
type ScheduleHandler struct {
	scheduler   *usecase.SchedulerService
	healthCheck *usecase.HealthCheckService
	logger      *zap.Logger
}

// NewScheduleHandler builds a schedule handler.
func NewScheduleHandler(scheduler *usecase.SchedulerService, healthCheck *usecase.HealthCheckService, logger *zap.Logger) *ScheduleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleHandler{
		scheduler:   scheduler,
		healthCheck: healthCheck,
		logger:      logger,
	}
}

// UpdateReminder sets the user's daily reminder time and re-arms the timer.
func (h *ScheduleHandler) UpdateReminder(c *gin.Context) {
	userID := c.Param("id")

	var req UpdateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	timeOfDay, err := domain.ParseTimeOfDay(req.Time)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "time must be HH:MM"))
		return
	}

	if err := h.scheduler.UpdateReminderTime(c.Request.Context(), userID, timeOfDay); err != nil {
		h.writeError(c, userID, "update reminder", err)
		return
	}

	c.JSON(http.StatusOK, ReminderResponse{
		UserID:  userID,
		Time:    timeOfDay.String(),
		Enabled: true,
	})
}

// DisableReminder turns the user's daily reminder off.
func (h *ScheduleHandler) DisableReminder(c *gin.Context) {
	userID := c.Param("id")

	if err := h.scheduler.DisableReminders(c.Request.Context(), userID); err != nil {
		h.writeError(c, userID, "disable reminder", err)
		return
	}

	c.JSON(http.StatusOK, ReminderResponse{
		UserID:  userID,
		Enabled: false,
	})
}

// RunHealthCheck triggers the reconciliation sweep out of schedule.
func (h *ScheduleHandler) RunHealthCheck(c *gin.Context) {
	if err := h.healthCheck.PerformDailyHealthCheck(c.Request.Context()); err != nil {
		h.logger.Error("manual health check failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "health check failed"))
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "health check complete"})
}

func (h *ScheduleHandler) writeError(c *gin.Context, userID, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, NewErrorResponse(c, "active challenge not found"))
	case errors.Is(err, domain.ErrOffsetOutOfRange):
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, err.Error()))
	default:
		h.logger.Error(op+" failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "internal error"))
	}
}
