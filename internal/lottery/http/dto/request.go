// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"strings"

	validation "github.com/jellydator/validation"

	lotteryUseCase "github.com/allisson/lottery/internal/lottery/usecase"
	customValidation "github.com/allisson/lottery/internal/validation"
)

// RegisterRequest is the body of POST /api/lottery/register.
type RegisterRequest struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Phone        string `json:"phone"`
	NationalCode string `json:"nationalCode"`
	CampaignID   int64  `json:"campaignId"`
}

// Validate checks if the register request is valid.
func (r *RegisterRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.FirstName,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoControlChars,
			validation.Length(1, 100),
		),
		validation.Field(&r.LastName,
			validation.Required,
			customValidation.NotBlank,
			customValidation.NoControlChars,
			validation.Length(1, 100),
		),
		validation.Field(&r.Phone,
			validation.Required,
			customValidation.NoControlChars,
			customValidation.Phone,
		),
		validation.Field(&r.NationalCode,
			validation.Required,
			customValidation.NoControlChars,
			customValidation.NationalCode,
		),
		validation.Field(&r.CampaignID,
			validation.Required,
			validation.Min(int64(1)),
		),
	)
}

// ToInput trims the names and converts the request into use case input.
func (r *RegisterRequest) ToInput() lotteryUseCase.RegisterInput {
	return lotteryUseCase.RegisterInput{
		FirstName:    strings.TrimSpace(r.FirstName),
		LastName:     strings.TrimSpace(r.LastName),
		Phone:        r.Phone,
		NationalCode: r.NationalCode,
		CampaignID:   r.CampaignID,
	}
}
