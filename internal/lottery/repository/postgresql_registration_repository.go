package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/lottery/internal/database"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

// PostgreSQLRegistrationRepository implements registration persistence for PostgreSQL.
type PostgreSQLRegistrationRepository struct {
	db *sql.DB
}

// NewPostgreSQLRegistrationRepository creates a new PostgreSQLRegistrationRepository.
func NewPostgreSQLRegistrationRepository(db *sql.DB) *PostgreSQLRegistrationRepository {
	return &PostgreSQLRegistrationRepository{db: db}
}

// BulkInsert writes regs in one statement, ignoring request ids that already exist.
// It returns the number of rows actually inserted. When any row holds a value the
// column refuses, the whole statement fails with domain.ErrRegistrationRejected.
func (r *PostgreSQLRegistrationRepository) BulkInsert(
	ctx context.Context,
	regs []domain.Registration,
) (int64, error) {
	// Keep the first occurrence of each request id
	regs = uniqueByRequestID(regs)
	if len(regs) == 0 {
		return 0, nil
	}

	querier := database.GetTx(ctx, r.db)

	// Build one multi-row insert
	var sb strings.Builder
	sb.WriteString(`INSERT INTO registrations (` + registrationColumns + `) VALUES `)

	args := make([]any, 0, len(regs)*9)
	for i, reg := range regs {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 9
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8, n+9)
		args = append(args, reg.RequestID, reg.FirstName, reg.LastName, reg.Phone, reg.NationalID,
			reg.CampaignID, int(reg.Status), reg.CreatedAt, reg.ProcessedAt)
	}
	sb.WriteString(` ON CONFLICT (request_id) DO NOTHING`)

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
// Rows locked by another transaction are skipped. Must run inside a transaction.
func (r *PostgreSQLRegistrationRepository) GetPendingForUpdate(
	ctx context.Context,
	campaignID int64,
	limit int,
) ([]*domain.Registration, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + registrationColumns + `
			  FROM registrations
			  WHERE campaign_id = $1 AND status = $2
			  ORDER BY created_at ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, campaignID, int(domain.StatusPending), limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to select pending registrations")
	}
	defer rows.Close() //nolint:errcheck

	var regs []*domain.Registration
	for rows.Next() {
		reg, err := scanPostgreSQLRegistration(rows)
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
func (r *PostgreSQLRegistrationRepository) MarkProcessing(
	ctx context.Context,
	ids []uuid.UUID,
	at time.Time,
) error {
	if len(ids) == 0 {
		return nil
	}

	querier := database.GetTx(ctx, r.db)

	// Bind the ids as one uuid[] parameter
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	query := `UPDATE registrations
			  SET status = $1, processed_at = $2
			  WHERE request_id = ANY($3::uuid[]) AND status = $4`

	_, err := querier.ExecContext(ctx, query, int(domain.StatusProcessing), at, pq.Array(strIDs),
		int(domain.StatusPending))
	if err != nil {
		return apperrors.Wrap(err, "failed to mark registrations processing")
	}
	return nil
}

// RecoverStuck resets Processing registrations claimed before cutoff back to Pending.
func (r *PostgreSQLRegistrationRepository) RecoverStuck(
	ctx context.Context,
	campaignID int64,
	cutoff time.Time,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE registrations
			  SET status = $1, processed_at = NULL
			  WHERE campaign_id = $2 AND status = $3 AND processed_at < $4`

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
// claim made at claimedAt is updated, so a worker whose claim was recovered and
// handed to a later cycle cannot finalize it.
func (r *PostgreSQLRegistrationRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.Status,
	claimedAt time.Time,
	at time.Time,
) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE registrations
			  SET status = $1, processed_at = $2
			  WHERE request_id = $3 AND status = $4 AND processed_at = $5`

	result, err := querier.ExecContext(ctx, query, int(status), at, id, int(domain.StatusProcessing),
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
func (r *PostgreSQLRegistrationRepository) GetByRequestID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.Registration, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE request_id = $1`

	reg, err := scanPostgreSQLRegistration(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRegistrationNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get registration")
	}
	return reg, nil
}

// CountByStatus counts a campaign's registrations in the given status.
func (r *PostgreSQLRegistrationRepository) CountByStatus(
	ctx context.Context,
	campaignID int64,
	status domain.Status,
) (int64, error) {
	querier := database.GetTx(ctx, r.db)

	var count int64
	err := querier.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM registrations WHERE campaign_id = $1 AND status = $2`,
		campaignID, int(status),
	).Scan(&count)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count registrations")
	}
	return count, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPostgreSQLRegistration reads one row in registrationColumns order and
// normalizes both timestamps to UTC.
func scanPostgreSQLRegistration(row rowScanner) (*domain.Registration, error) {
	var reg domain.Registration
	var status int
	var processedAt sql.NullTime

	err := row.Scan(&reg.RequestID, &reg.FirstName, &reg.LastName, &reg.Phone, &reg.NationalID,
		&reg.CampaignID, &status, &reg.CreatedAt, &processedAt)
	if err != nil {
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
