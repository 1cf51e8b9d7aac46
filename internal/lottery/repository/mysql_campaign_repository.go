package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/allisson/lottery/internal/database"
	apperrors "github.com/allisson/lottery/internal/errors"
	"github.com/allisson/lottery/internal/lottery/domain"
)

// MySQLCampaignRepository implements campaign persistence for MySQL.
type MySQLCampaignRepository struct {
	db *sql.DB
}

// NewMySQLCampaignRepository creates a new MySQLCampaignRepository.
func NewMySQLCampaignRepository(db *sql.DB) *MySQLCampaignRepository {
	return &MySQLCampaignRepository{db: db}
}

// Create inserts campaign and sets its generated ID.
func (r *MySQLCampaignRepository) Create(ctx context.Context, campaign *domain.Campaign) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO campaigns (name, start_utc, end_utc, success_target) VALUES (?, ?, ?, ?)`

	result, err := querier.ExecContext(ctx, query, campaign.Name, campaign.StartUTC, campaign.EndUTC,
		campaign.SuccessTarget)
	if err != nil {
		return apperrors.Wrap(err, "failed to create campaign")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return apperrors.Wrap(err, "failed to get campaign id")
	}
	campaign.ID = id
	return nil
}

// GetByID returns domain.ErrCampaignNotFound when no campaign has the id.
func (r *MySQLCampaignRepository) GetByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, name, start_utc, end_utc, success_target FROM campaigns WHERE id = ?`

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
