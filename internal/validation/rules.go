// Package validation provides custom validation rules for the application.
package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/lottery/internal/errors"
)

var (
	// phoneRegex accepts 7 to 15 digits with an optional leading plus sign.
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

	nationalCodeRegex = regexp.MustCompile(`^[0-9]{10}$`)
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Phone validates a phone number
var Phone = validation.NewStringRuleWithError(
	func(s string) bool {
		return phoneRegex.MatchString(s)
	},
	validation.NewError("validation_phone_format", "must be 7 to 15 digits with an optional leading +"),
)

// NationalCode validates a national identification code of exactly ten digits
var NationalCode = validation.NewStringRuleWithError(
	func(s string) bool {
		return nationalCodeRegex.MatchString(s)
	},
	validation.NewError("validation_national_code_format", "must be exactly 10 digits"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)

// NoControlChars validates that a string is valid UTF-8 without control characters.
// PostgreSQL refuses NUL in text columns, so such values would fail every insert.
var NoControlChars = validation.NewStringRuleWithError(
	func(s string) bool {
		if !utf8.ValidString(s) {
			return false
		}
		return strings.IndexFunc(s, unicode.IsControl) < 0
	},
	validation.NewError("validation_no_control_chars", "must not contain control characters"),
)
