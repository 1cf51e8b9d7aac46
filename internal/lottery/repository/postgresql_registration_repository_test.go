package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/lottery/internal/database"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})

	return db, mock
}

func newRegistration(createdAt time.Time) domain.Registration {
	return domain.Registration{
		RequestID:  uuid.Must(uuid.NewV7()),
		FirstName:  "Sara",
		LastName:   "Ahmadi",
		Phone:      "09121234567",
		NationalID: "0012345678",
		CampaignID: 1,
		Status:     domain.StatusPending,
		CreatedAt:  createdAt,
	}
}

func registrationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"request_id", "first_name", "last_name", "phone", "national_id",
		"campaign_id", "status", "created_at", "processed_at",
	})
}

func TestPostgreSQLRegistrationRepository_BulkInsert(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Success_IgnoresConflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		first := newRegistration(now)
		second := newRegistration(now.Add(time.Second))

		mock.ExpectExec(`INSERT INTO registrations .* VALUES \(\$1, .*\$9\), \(\$10, .*\$18\) ON CONFLICT \(request_id\) DO NOTHING`).
			WithArgs(
				first.RequestID, "Sara", "Ahmadi", "09121234567", "0012345678", int64(1), 0, now, nil,
				second.RequestID, "Sara", "Ahmadi", "09121234567", "0012345678", int64(1), 0,
				now.Add(time.Second), nil,
			).
			WillReturnResult(sqlmock.NewResult(0, 1))

		inserted, err := repo.BulkInsert(context.Background(), []domain.Registration{first, second, first})

		require.NoError(t, err)
		assert.Equal(t, int64(1), inserted)
	})

	t.Run("Success_EmptyBatch", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		inserted, err := repo.BulkInsert(context.Background(), nil)

		require.NoError(t, err)
		assert.Zero(t, inserted)
	})

	t.Run("Error_Exec", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		mock.ExpectExec(`INSERT INTO registrations`).WillReturnError(errors.New("connection reset"))

		_, err := repo.BulkInsert(context.Background(), []domain.Registration{newRegistration(now)})

		assert.ErrorContains(t, err, "failed to bulk insert registrations")
		assert.NotErrorIs(t, err, domain.ErrRegistrationRejected)
	})

	t.Run("Error_InvalidByteSequence", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		mock.ExpectExec(`INSERT INTO registrations`).WillReturnError(&pq.Error{
			Code:    "22021",
			Message: `invalid byte sequence for encoding "UTF8": 0x00`,
		})

		_, err := repo.BulkInsert(context.Background(), []domain.Registration{newRegistration(now)})

		assert.ErrorIs(t, err, domain.ErrRegistrationRejected)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
		var pqErr *pq.Error
		assert.ErrorAs(t, err, &pqErr)
	})

	t.Run("Error_OtherClassIsNotRejected", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		// 57P01 admin_shutdown
		mock.ExpectExec(`INSERT INTO registrations`).WillReturnError(&pq.Error{Code: "57P01"})

		_, err := repo.BulkInsert(context.Background(), []domain.Registration{newRegistration(now)})

		assert.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrRegistrationRejected)
	})
}

func TestPostgreSQLRegistrationRepository_Claim(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRegistrationRepository(db)
	txManager := database.NewTxManager(db)

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	reg := newRegistration(now)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM registrations\s+WHERE campaign_id = \$1 AND status = \$2\s+ORDER BY created_at ASC\s+LIMIT \$3\s+FOR UPDATE SKIP LOCKED`).
		WithArgs(int64(1), 0, 20).
		WillReturnRows(registrationRows().AddRow(
			reg.RequestID.String(), reg.FirstName, reg.LastName, reg.Phone, reg.NationalID,
			reg.CampaignID, 0, now, nil,
		))
	mock.ExpectExec(`UPDATE registrations\s+SET status = \$1, processed_at = \$2\s+WHERE request_id = ANY\(\$3::uuid\[\]\) AND status = \$4`).
		WithArgs(1, now.Add(time.Minute), sqlmock.AnyArg(), 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	var claimed []*domain.Registration
	err := txManager.WithTx(context.Background(), func(ctx context.Context) error {
		regs, err := repo.GetPendingForUpdate(ctx, 1, 20)
		if err != nil {
			return err
		}
		claimed = regs

		ids := make([]uuid.UUID, len(regs))
		for i, r := range regs {
			ids[i] = r.RequestID
		}
		return repo.MarkProcessing(ctx, ids, now.Add(time.Minute))
	})

	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, reg.RequestID, claimed[0].RequestID)
	assert.Equal(t, domain.StatusPending, claimed[0].Status)
	assert.Nil(t, claimed[0].ProcessedAt)
}

func TestPostgreSQLRegistrationRepository_MarkProcessing_Empty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewPostgreSQLRegistrationRepository(db)

	assert.NoError(t, repo.MarkProcessing(context.Background(), nil, time.Now()))
}

func TestPostgreSQLRegistrationRepository_RecoverStuck(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRegistrationRepository(db)
	cutoff := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE registrations\s+SET status = \$1, processed_at = NULL\s+WHERE campaign_id = \$2 AND status = \$3 AND processed_at < \$4`).
		WithArgs(0, int64(7), 1, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 3))

	recovered, err := repo.RecoverStuck(context.Background(), 7, cutoff)

	require.NoError(t, err)
	assert.Equal(t, int64(3), recovered)
}

func TestPostgreSQLRegistrationRepository_UpdateStatus(t *testing.T) {
	id := uuid.Must(uuid.NewV7())
	claimedAt := time.Date(2026, 3, 1, 9, 59, 0, 0, time.UTC)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	query := `UPDATE registrations\s+SET status = \$1, processed_at = \$2\s+` +
		`WHERE request_id = \$3 AND status = \$4 AND processed_at = \$5`

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		mock.ExpectExec(query).WithArgs(2, at, id, 1, claimedAt).WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, repo.UpdateStatus(context.Background(), id, domain.StatusSuccess, claimedAt, at))
	})

	t.Run("Error_NotProcessing", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		mock.ExpectExec(query).WithArgs(3, at, id, 1, claimedAt).WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.UpdateStatus(context.Background(), id, domain.StatusFailed, claimedAt, at)

		assert.ErrorIs(t, err, domain.ErrRegistrationNotProcessing)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	})
}

func TestPostgreSQLRegistrationRepository_GetByRequestID(t *testing.T) {
	id := uuid.Must(uuid.NewV7())
	createdAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	processedAt := createdAt.Add(time.Minute)

	t.Run("Success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		mock.ExpectQuery(`SELECT .* FROM registrations WHERE request_id = \$1`).
			WithArgs(id).
			WillReturnRows(registrationRows().AddRow(
				id.String(), "Sara", "Ahmadi", "09121234567", "0012345678", int64(1), 2, createdAt, processedAt,
			))

		reg, err := repo.GetByRequestID(context.Background(), id)

		require.NoError(t, err)
		assert.Equal(t, domain.StatusSuccess, reg.Status)
		require.NotNil(t, reg.ProcessedAt)
		assert.Equal(t, processedAt, *reg.ProcessedAt)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLRegistrationRepository(db)

		mock.ExpectQuery(`SELECT .* FROM registrations WHERE request_id = \$1`).
			WithArgs(id).
			WillReturnError(sql.ErrNoRows)

		_, err := repo.GetByRequestID(context.Background(), id)

		assert.ErrorIs(t, err, domain.ErrRegistrationNotFound)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})
}

func TestPostgreSQLRegistrationRepository_CountByStatus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLRegistrationRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM registrations WHERE campaign_id = \$1 AND status = \$2`).
		WithArgs(int64(1), 2).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	count, err := repo.CountByStatus(context.Background(), 1, domain.StatusSuccess)

	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}
