package domain

import (
	"github.com/allisson/lottery/internal/errors"
)

// Lottery error definitions.
var (
	// ErrRegistrationNotFound indicates no registration exists for the request id.
	ErrRegistrationNotFound = errors.Wrap(errors.ErrNotFound, "registration not found")

	// ErrCampaignNotFound indicates the referenced campaign does not exist.
	ErrCampaignNotFound = errors.Wrap(errors.ErrNotFound, "campaign not found")

	// ErrRegistrationClosed indicates the campaign window does not include the current time.
	ErrRegistrationClosed = errors.Wrap(errors.ErrInvalidInput, "campaign is not accepting registrations")

	// ErrRegistrationNotProcessing indicates a terminal write hit a row that is no longer Processing.
	ErrRegistrationNotProcessing = errors.Wrap(errors.ErrConflict, "registration is not processing")

	// ErrMalformedPayload indicates a log message that can never be decoded into a registration.
	ErrMalformedPayload = errors.Wrap(errors.ErrInvalidInput, "malformed payload")

	// ErrRegistrationRejected indicates the store refused a row because of its data, such as
	// an invalid byte sequence or an oversized value. Retrying the same row cannot succeed.
	ErrRegistrationRejected = errors.Wrap(errors.ErrInvalidInput, "registration rejected by store")
)
