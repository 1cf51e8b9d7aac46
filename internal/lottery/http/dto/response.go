package dto

import (
	"time"

	"github.com/google/uuid"

	lotteryDomain "github.com/allisson/lottery/internal/lottery/domain"
	lotteryUseCase "github.com/allisson/lottery/internal/lottery/usecase"
)

// RegisterResponse is returned once a submission is accepted.
type RegisterResponse struct {
	RequestID string `json:"requestId"`
}

// StatusResponse reports where a registration stands. CreatedAt is only known
// before ingestion stores the row, ProcessedAt only after.
type StatusResponse struct {
	RequestID   string               `json:"requestId"`
	Status      lotteryDomain.Status `json:"status"`
	CreatedAt   *time.Time           `json:"createdAt,omitempty"`
	ProcessedAt *time.Time           `json:"processedAt,omitempty"`
}

// MapRequestIDToRegisterResponse converts an accepted request id to a response.
func MapRequestIDToRegisterResponse(requestID uuid.UUID) RegisterResponse {
	return RegisterResponse{RequestID: requestID.String()}
}

// MapStatusViewToResponse converts a status view to an API response.
func MapStatusViewToResponse(view *lotteryUseCase.StatusView) StatusResponse {
	return StatusResponse{
		RequestID:   view.RequestID.String(),
		Status:      view.Status,
		CreatedAt:   view.CreatedAt,
		ProcessedAt: view.ProcessedAt,
	}
}
