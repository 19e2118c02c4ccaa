package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CampaignRepository serves the lookups the notification worker needs.
type CampaignRepository struct {
	db *pgxpool.Pool
}

func NewCampaignRepository(db *pgxpool.Pool) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// GetCreator returns the creator of a campaign.
func (r *CampaignRepository) GetCreator(ctx context.Context, campaignID int64) (int, error) {
	query := `
        SELECT creator_id FROM campaigns WHERE id = $1
    `
	var creator int
	if err := r.db.QueryRow(ctx, query, campaignID).Scan(&creator); err != nil {
		return 0, err
	}
	return creator, nil
}

// GetContributors returns every distinct contributor of a campaign.
func (r *CampaignRepository) GetContributors(ctx context.Context, campaignID int64) ([]int, error) {
	query := `
        SELECT contributor_id FROM contributions WHERE campaign_id = $1 ORDER BY contributor_id
    `
	rows, err := r.db.Query(ctx, query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contributors []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		contributors = append(contributors, id)
	}
	return contributors, rows.Err()
}
