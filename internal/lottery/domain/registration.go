// Package domain defines the core lottery models: campaigns, registrations and the
// payload that travels through the log between intake and ingestion.
package domain

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/lottery/internal/errors"
	customValidation "github.com/allisson/lottery/internal/validation"
)

// Registration is one lottery entry. It is created Pending by ingestion and only
// mutated by the claim-and-process worker.
type Registration struct {
	// RequestID is assigned at submission and never changes.
	RequestID  uuid.UUID
	FirstName  string
	LastName   string
	Phone      string
	NationalID string
	CampaignID int64
	Status     Status
	CreatedAt  time.Time
	// ProcessedAt is set on claim and on the terminal decision, cleared by recovery.
	ProcessedAt *time.Time
}

// EnqueueRequest is the JSON message published for every accepted submission.
type EnqueueRequest struct {
	RequestID  uuid.UUID `json:"RequestId"`
	FirstName  string    `json:"FirstName"`
	LastName   string    `json:"LastName"`
	Phone      string    `json:"Phone"`
	NationalID string    `json:"NationalId"`
	CampaignID int64     `json:"CampaignId"`
	Status     Status    `json:"Status"`
	CreatedAt  time.Time `json:"CreatedAt"`
}

// ToRegistration converts the payload into a Pending storage row.
func (r EnqueueRequest) ToRegistration() Registration {
	return Registration{
		RequestID:  r.RequestID,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		Phone:      r.Phone,
		NationalID: r.NationalID,
		CampaignID: r.CampaignID,
		Status:     StatusPending,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

// Validate checks a decoded payload before it is stored. Failures are permanent.
func (r EnqueueRequest) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.RequestID, validation.Required, validation.By(notNilUUID)),
		validation.Field(&r.FirstName,
			validation.Required,
			customValidation.NoControlChars,
			validation.Length(1, 100),
		),
		validation.Field(&r.LastName,
			validation.Required,
			customValidation.NoControlChars,
			validation.Length(1, 100),
		),
		validation.Field(&r.Phone, validation.Required, customValidation.NoControlChars, customValidation.Phone),
		validation.Field(&r.NationalID,
			validation.Required,
			customValidation.NoControlChars,
			customValidation.NationalCode,
		),
		validation.Field(&r.CampaignID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.CreatedAt, validation.Required),
	)
	if err != nil {
		return errors.Wrap(ErrMalformedPayload, err.Error())
	}
	if r.Status != StatusPending {
		return errors.Wrapf(ErrMalformedPayload, "status must be %s, got %s", StatusPending, r.Status)
	}
	return nil
}

// notNilUUID rejects uuid.Nil, which validation.Required does not catch for arrays.
func notNilUUID(value any) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return validation.NewError("validation_uuid_nil", "must not be the nil uuid")
	}
	return nil
}
