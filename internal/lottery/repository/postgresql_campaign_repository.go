package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/lottery/internal/database"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

// PostgreSQLCampaignRepository implements campaign persistence for PostgreSQL.
type PostgreSQLCampaignRepository struct {
	db *sql.DB
}

// NewPostgreSQLCampaignRepository creates a new PostgreSQLCampaignRepository.
func NewPostgreSQLCampaignRepository(db *sql.DB) *PostgreSQLCampaignRepository {
	return &PostgreSQLCampaignRepository{db: db}
}

// Create inserts campaign and sets its generated ID.
func (r *PostgreSQLCampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO campaigns (name, start_utc, end_utc, success_target)
			  VALUES ($1, $2, $3, $4)
			  RETURNING id`

	err := querier.QueryRowContext(ctx, query, campaign.Name, campaign.StartUTC, campaign.EndUTC,
		campaign.SuccessTarget).Scan(&campaign.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to create campaign")
	}
	return nil
}

// GetByID returns domain.ErrCampaignNotFound when no campaign has the id.
func (r *PostgreSQLCampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, name, start_utc, end_utc, success_target FROM campaigns WHERE id = $1`

	var c domain.Campaign
	err := querier.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.Name, &c.StartUTC, &c.EndUTC, &c.SuccessTarget)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get campaign")
	}

	c.StartUTC = c.StartUTC.UTC()
	c.EndUTC = c.EndUTC.UTC()
	return &c, nil
}
