// Package http provides HTTP handlers for lottery submissions and status lookups.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/lottery/internal/httputil"
	"github.com/allisson/lottery/internal/lottery/http/dto"
	lotteryUseCase "github.com/allisson/lottery/internal/lottery/usecase"
	customValidation "github.com/allisson/lottery/internal/validation"
)

// RegistrationHandler handles lottery submission and status requests.
type RegistrationHandler struct {
	registrationUseCase lotteryUseCase.RegistrationUseCase
	logger              *slog.Logger
}

// NewRegistrationHandler creates a new registration handler.
func NewRegistrationHandler(
	registrationUseCase lotteryUseCase.RegistrationUseCase,
	logger *slog.Logger,
) *RegistrationHandler {
	return &RegistrationHandler{
		registrationUseCase: registrationUseCase,
		logger:              logger,
	}
}

// RegisterHandler accepts a submission for asynchronous processing.
// POST /api/lottery/register
// Returns 201 Created with the request id and a Location header pointing at the status resource.
func (h *RegistrationHandler) RegisterHandler(c *gin.Context) {
	var req dto.RegisterRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	requestID, err := h.registrationUseCase.Register(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Header("Location", "/api/lottery/status/"+requestID.String())
	c.JSON(http.StatusCreated, dto.MapRequestIDToRegisterResponse(requestID))
}

// StatusHandler reports the current status of a submission.
// GET /api/lottery/status/:requestId
func (h *RegistrationHandler) StatusHandler(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid request id: %w", err), h.logger)
		return
	}

	view, err := h.registrationUseCase.GetStatus(c.Request.Context(), requestID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusViewToResponse(view))
}
