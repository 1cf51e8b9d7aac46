package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lottery/internal/lottery/domain"
)

func binaryID(t *testing.T, id uuid.UUID) []byte {
	t.Helper()
	b, err := id.MarshalBinary()
	require.NoError(t, err)
	return b
}

func TestMySQLRegistrationRepository_BulkInsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLRegistrationRepository(db)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reg := newRegistration(now)

	mock.ExpectExec(`INSERT IGNORE INTO registrations .* VALUES \(\?, \?, \?, \?, \?, \?, \?, \?, \?\)$`).
		WithArgs(binaryID(t, reg.RequestID), "Sara", "Ahmadi", "09121234567", "0012345678", int64(1), 0, now, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.BulkInsert(context.Background(), []domain.Registration{reg, reg})

	require.NoError(t, err)
	assert.Equal(t, int64(1), inserted)
}

func TestMySQLRegistrationRepository_BulkInsert_DataErrors(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		number   uint16
		rejected bool
	}{
		{name: "incorrect string value", number: 1366, rejected: true},
		{name: "data too long", number: 1406, rejected: true},
		{name: "lock wait timeout", number: 1205, rejected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewMySQLRegistrationRepository(db)

			mock.ExpectExec(`INSERT IGNORE INTO registrations`).
				WillReturnError(&mysql.MySQLError{Number: tt.number, Message: tt.name})

			_, err := repo.BulkInsert(context.Background(), []domain.Registration{newRegistration(now)})

			require.Error(t, err)
			assert.Equal(t, tt.rejected, errors.Is(err, domain.ErrRegistrationRejected))
		})
	}
}

func TestMySQLRegistrationRepository_GetPendingForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLRegistrationRepository(db)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	first := newRegistration(now)
	second := newRegistration(now.Add(time.Second))

	mock.ExpectQuery(`SELECT .* FROM registrations\s+WHERE campaign_id = \? AND status = \?\s+ORDER BY created_at ASC\s+LIMIT \?\s+FOR UPDATE SKIP LOCKED`).
		WithArgs(int64(1), 0, 2).
		WillReturnRows(registrationRows().
			AddRow(binaryID(t, first.RequestID), "Sara", "Ahmadi", "09121234567", "0012345678", int64(1), 0, now, nil).
			AddRow(binaryID(t, second.RequestID), "Sara", "Ahmadi", "09121234567", "0012345678", int64(1), 0,
				now.Add(time.Second), nil))

	regs, err := repo.GetPendingForUpdate(context.Background(), 1, 2)

	require.NoError(t, err)
	require.Len(t, regs, 2)
	assert.Equal(t, first.RequestID, regs[0].RequestID)
	assert.Equal(t, second.RequestID, regs[1].RequestID)
}

func TestMySQLRegistrationRepository_MarkProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLRegistrationRepository(db)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	a, b := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())

	mock.ExpectExec(`UPDATE registrations\s+SET status = \?, processed_at = \?\s+WHERE request_id IN \(\?, \?\) AND status = \?`).
		WithArgs(1, at, binaryID(t, a), binaryID(t, b), 0).
		WillReturnResult(sqlmock.NewResult(0, 2))

	assert.NoError(t, repo.MarkProcessing(context.Background(), []uuid.UUID{a, b}, at))
}

func TestMySQLRegistrationRepository_RecoverStuck(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLRegistrationRepository(db)
	cutoff := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE registrations\s+SET status = \?, processed_at = NULL`).
		WithArgs(0, int64(1), 1, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 2))

	recovered, err := repo.RecoverStuck(context.Background(), 1, cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(2), recovered)
}

func TestMySQLRegistrationRepository_UpdateStatus_NotProcessing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLRegistrationRepository(db)

	id := uuid.Must(uuid.NewV7())
	claimedAt := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE registrations\s+SET status = \?, processed_at = \?\s+` +
		`WHERE request_id = \? AND status = \? AND processed_at = \?`).
		WithArgs(2, at, binaryID(t, id), 1, claimedAt).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), id, domain.StatusSuccess, claimedAt, at)

	assert.ErrorIs(t, err, domain.ErrRegistrationNotProcessing)
}

func TestMySQLRegistrationRepository_GetByRequestID_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLRegistrationRepository(db)
	id := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(`SELECT .* FROM registrations WHERE request_id = \?`).
		WithArgs(binaryID(t, id)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByRequestID(context.Background(), id)

	assert.ErrorIs(t, err, domain.ErrRegistrationNotFound)
}
