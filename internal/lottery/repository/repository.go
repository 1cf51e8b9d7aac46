// Package repository implements the registration store and campaign store for
// PostgreSQL and MySQL.
package repository

import (
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/lib/pq"

	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

const (
	// pqDataExceptionClass is SQLSTATE class 22, raised for values the column cannot hold.
	pqDataExceptionClass = "22"

	mysqlIncorrectStringValue = 1366
	mysqlDataTooLong          = 1406
)

// registrationColumns is the column list shared by every registration query.
const registrationColumns = `request_id, first_name, last_name, phone, national_id, campaign_id, status, created_at, processed_at`

// uniqueByRequestID drops later duplicates of a request id, keeping the first occurrence.
func uniqueByRequestID(regs []domain.Registration) []domain.Registration {
	seen := make(map[uuid.UUID]struct{}, len(regs))
	out := make([]domain.Registration, 0, len(regs))
	for _, reg := range regs {
		if _, ok := seen[reg.RequestID]; ok {
			continue
		}
		seen[reg.RequestID] = struct{}{}
		out = append(out, reg)
	}
	return out
}

// wrapWriteError wraps err with message. Errors caused by the row data itself also
// wrap domain.ErrRegistrationRejected so callers can tell them from outages.
func wrapWriteError(err error, message string) error {
	if isDataError(err) {
		return fmt.Errorf("%s: %w: %w", message, domain.ErrRegistrationRejected, err)
	}
	return apperrors.Wrap(err, message)
}

// isDataError reports whether err is a driver error caused by the values written:
// SQLSTATE class 22 on PostgreSQL, 1366 or 1406 on MySQL.
func isDataError(err error) bool {
	var pqErr *pq.Error
	if apperrors.As(err, &pqErr) {
		return pqErr.Code.Class() == pqDataExceptionClass
	}

	var mysqlErr *mysql.MySQLError
	if apperrors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlIncorrectStringValue || mysqlErr.Number == mysqlDataTooLong
	}

	return false
}
