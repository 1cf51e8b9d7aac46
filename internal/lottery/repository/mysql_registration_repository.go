package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/lottery/internal/database"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

// MySQLRegistrationRepository implements registration persistence for MySQL.
// Request ids are stored as BINARY(16).
type MySQLRegistrationRepository struct {
	db *sql.DB
}

// NewMySQLRegistrationRepository creates a new MySQLRegistrationRepository.
func NewMySQLRegistrationRepository(db *sql.DB) *MySQLRegistrationRepository {
	return &MySQLRegistrationRepository{db: db}
}

// BulkInsert writes regs in one statement, ignoring request ids that already exist.
// Incorrect string values and oversized values fail with domain.ErrRegistrationRejected.
func (r *MySQLRegistrationRepository) BulkInsert(
	ctx context.Context,
	regs []domain.Registration,
) (int64, error) {
	regs = uniqueByRequestID(regs)
	if len(regs) == 0 {
		return 0, nil
	}

	querier := database.GetTx(ctx, r.db)

	// Build one multi-row insert
	var sb strings.Builder
	sb.WriteString(`INSERT IGNORE INTO registrations (` + registrationColumns + `) VALUES `)

	args := make([]any, 0, len(regs)*9)
	for i, reg := range regs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")

		// Request ids are stored as BINARY(16)
		idBytes, err := reg.RequestID.MarshalBinary()
		if err != nil {
			return 0, apperrors.Wrap(err, "failed to marshal request id")
		}
		args = append(args, idBytes, reg.FirstName, reg.LastName, reg.Phone, reg.NationalID,
			reg.CampaignID, int(reg.Status), reg.CreatedAt, reg.ProcessedAt)
	}

	result, err := querier.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, wrapWriteError(err, "failed to bulk insert registrations")
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return inserted, nil
}

// GetPendingForUpdate locks up to limit of the oldest Pending registrations of a campaign.
func (r *MySQLRegistrationRepository) GetPendingForUpdate(
	ctx context.Context,
	campaignID int64,
	limit int,
) ([]*domain.Registration, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + registrationColumns + `
			  FROM registrations
			  WHERE campaign_id = ? AND status = ?
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, campaignID, int(domain.StatusPending), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select pending registrations")
	}
	defer rows.Close() //nolint:errcheck

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanMySQLRegistration(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan registration")
		}
		regs = append(regs, reg)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate registrations")
	}

	return regs, nil
}

// MarkProcessing moves the given Pending registrations to Processing.
func (r *MySQLRegistrationRepository) MarkProcessing(
	ctx context.Context,
	ids []uuid.UUID,
	at time.Time,
) error {
	if len(ids) == 0 {
		return nil
	}

	querier := database.GetTx(ctx, r.db)

	args := make([]any, 0, len(ids)+3)
	args = append(args, int(domain.StatusProcessing), at)
	for _, id := range ids {
		idBytes, err := id.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal request id")
		}
		args = append(args, idBytes)
	}
	args = append(args, int(domain.StatusPending))

	// One placeholder per id in the IN list
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	query := `UPDATE registrations
			  SET status = ?, processed_at = ?
			  WHERE request_id IN (` + placeholders + `) AND status = ?`

	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return apperrors.Wrap(err, "failed to mark registrations processing")
	}
	return nil
}

// RecoverStuck resets Processing registrations claimed before cutoff back to Pending.
func (r *MySQLRegistrationRepository) RecoverStuck(
	ctx context.Context,
	campaignID int64,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE registrations
			  SET status = ?, processed_at = NULL
			  WHERE campaign_id = ? AND status = ? AND processed_at < ?`

	result, err := querier.ExecContext(ctx, query, int(domain.StatusPending), campaignID,
		int(domain.StatusProcessing), cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to recover stuck registrations")
	}

	recovered, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to get rows affected")
	}
	return recovered, nil
}

// UpdateStatus records a terminal decision. Only a row still Processing under the
// claim made at claimedAt is updated.
func (r *MySQLRegistrationRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.Status,
	claimedAt time.Time,
	at time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal request id")
	}

	query := `UPDATE registrations
			  SET status = ?, processed_at = ?
			  WHERE request_id = ? AND status = ? AND processed_at = ?`

	result, err := querier.ExecContext(ctx, query, int(status), at, idBytes, int(domain.StatusProcessing),
		claimedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to update registration status")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	// Either the row is gone or a newer claim owns it
	if affected == 0 {
		return domain.ErrRegistrationNotProcessing
	}
	return nil
}

// GetByRequestID returns a single registration.
func (r *MySQLRegistrationRepository) GetByRequestID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Registration, error) {
	querier := database.GetTx(ctx, r.db)

	idBytes, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal request id")
	}

	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE request_id = ?`

	reg, err := scanMySQLRegistration(querier.QueryRowContext(ctx, query, idBytes))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get registration")
	}
	return reg, nil
}

// CountByStatus counts a campaign's registrations in the given status.
func (r *MySQLRegistrationRepository) CountByStatus(
	ctx context.Context,
	campaignID int64,
	status domain.Status,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	var count int64
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE campaign_id = ? AND status = ?`,
		campaignID, int(status),
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count registrations")
	}
	return count, nil
}

// scanMySQLRegistration reads one row in registrationColumns order, decoding the
// BINARY(16) request id.
func scanMySQLRegistration(row rowScanner) (*domain.Registration, error) {
	var reg domain.Registration
	var idBytes []byte
	var status int
	var processedAt sql.NullTime

	err := row.Scan(&idBytes, &reg.FirstName, &reg.LastName, &reg.Phone, &reg.NationalID,
		&reg.CampaignID, &status, &reg.CreatedAt, &processedAt)
	if err != nil {
		return nil, err
	}

	if err := reg.RequestID.UnmarshalBinary(idBytes); err != nil {
		return nil, err
	}

	reg.Status = domain.Status(status)
	reg.CreatedAt = reg.CreatedAt.UTC()
	// processed_at is NULL while Pending
	if processedAt.Valid {
		t := processedAt.Time.UTC()
		reg.ProcessedAt = &t
	}
	return &reg, nil
}
