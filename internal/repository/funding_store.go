package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crowdfund-service/internal/ledger"
	"crowdfund-service/internal/model"
	"crowdfund-service/internal/service/funding"
	"crowdfund-service/pkg/outbox"
)

// FundingStore persists campaign state, moves wallet funds and records
// outbox events, all inside a single transaction per operation.
type FundingStore struct {
	db         *pgxpool.Pool
	outboxRepo *outbox.Repository
}

func NewFundingStore(db *pgxpool.Pool, outboxRepo *outbox.Repository) *FundingStore {
	return &FundingStore{db: db, outboxRepo: outboxRepo}
}

var _ funding.Store = (*FundingStore)(nil)

// CreateCampaign inserts the campaign, its milestones and its custody
// wallet.
func (s *FundingStore) CreateCampaign(ctx context.Context, c *ledger.Campaign, events []funding.Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO campaigns (id, creator_id, description, goal, deadline, raised, current_milestone, completed, created_at)
        VALUES ($1, $2, $3, $4, $5, 0, 0, FALSE, NOW())
    `
	if _, err := tx.Exec(ctx, query, c.ID, c.Creator, c.Description, c.Goal, c.Deadline); err != nil {
		return err
	}

	milestoneQuery := `
        INSERT INTO milestones (campaign_id, idx, description, amount, reached)
        VALUES ($1, $2, $3, $4, FALSE)
    `
	for i, m := range c.Milestones {
		if _, err := tx.Exec(ctx, milestoneQuery, c.ID, i, m.Description, m.Amount); err != nil {
			return err
		}
	}

	walletQuery := `
        INSERT INTO wallets (owner_type, owner_id, balance, updated_at)
        VALUES ($1, $2, 0, NOW())
    `
	if _, err := tx.Exec(ctx, walletQuery, model.WalletOwnerCampaign, c.ID); err != nil {
		return err
	}

	if err := s.insertEvents(ctx, tx, c.ID, events); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecordContribution debits the contributor's wallet, credits the campaign's
// custody wallet and updates the campaign's raised total. An insufficient
// balance surfaces as ErrTransferFailed so the in-memory state stays
// untouched.
func (s *FundingStore) RecordContribution(ctx context.Context, c *ledger.Campaign, contributor int, amount int64, events []funding.Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.moveFunds(ctx, tx,
		model.WalletOwnerUser, int64(contributor),
		model.WalletOwnerCampaign, c.ID,
		amount,
	); err != nil {
		return err
	}

	contributionQuery := `
        INSERT INTO contributions (campaign_id, contributor_id, amount, created_at)
        VALUES ($1, $2, $3, NOW())
        ON CONFLICT (campaign_id, contributor_id)
        DO UPDATE SET amount = contributions.amount + EXCLUDED.amount
    `
	if _, err := tx.Exec(ctx, contributionQuery, c.ID, contributor, amount); err != nil {
		return err
	}

	campaignQuery := `
        UPDATE campaigns SET raised = $2 WHERE id = $1
    `
	if _, err := tx.Exec(ctx, campaignQuery, c.ID, c.Raised); err != nil {
		return err
	}

	if err := s.insertEvents(ctx, tx, c.ID, events); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CommitRelease moves the milestone amount from the custody wallet to the
// creator's wallet and advances the stored milestone cursor.
func (s *FundingStore) CommitRelease(ctx context.Context, c *ledger.Campaign, res ledger.ReleaseResult, events []funding.Event) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.moveFunds(ctx, tx,
		model.WalletOwnerCampaign, c.ID,
		model.WalletOwnerUser, int64(c.Creator),
		res.Amount,
	); err != nil {
		return err
	}

	milestoneQuery := `
        UPDATE milestones SET reached = TRUE WHERE campaign_id = $1 AND idx = $2
    `
	if _, err := tx.Exec(ctx, milestoneQuery, c.ID, res.MilestoneIndex); err != nil {
		return err
	}

	campaignQuery := `
        UPDATE campaigns SET current_milestone = $2, completed = $3 WHERE id = $1
    `
	if _, err := tx.Exec(ctx, campaignQuery, c.ID, res.CurrentMilestone, res.Completed); err != nil {
		return err
	}

	if err := s.insertEvents(ctx, tx, c.ID, events); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LoadCampaigns rebuilds the full in-memory state from storage on startup.
func (s *FundingStore) LoadCampaigns(ctx context.Context) ([]*ledger.Campaign, error) {
	query := `
        SELECT id, creator_id, description, goal, deadline, raised, current_milestone, completed
        FROM campaigns
        ORDER BY id
    `
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[int64]*ledger.Campaign)
	var campaigns []*ledger.Campaign
	for rows.Next() {
		var c ledger.Campaign
		if err := rows.Scan(
			&c.ID, &c.Creator, &c.Description, &c.Goal,
			&c.Deadline, &c.Raised, &c.CurrentMilestone, &c.Completed,
		); err != nil {
			return nil, err
		}
		c.Contributions = make(map[int]int64)
		byID[c.ID] = &c
		campaigns = append(campaigns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadMilestones(ctx, byID); err != nil {
		return nil, err
	}
	if err := s.loadContributions(ctx, byID); err != nil {
		return nil, err
	}

	return campaigns, nil
}

func (s *FundingStore) loadMilestones(ctx context.Context, byID map[int64]*ledger.Campaign) error {
	query := `
        SELECT campaign_id, description, amount, reached
        FROM milestones
        ORDER BY campaign_id, idx
    `
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var campaignID int64
		var m ledger.Milestone
		if err := rows.Scan(&campaignID, &m.Description, &m.Amount, &m.Reached); err != nil {
			return err
		}
		if c, ok := byID[campaignID]; ok {
			c.Milestones = append(c.Milestones, m)
		}
	}
	return rows.Err()
}

func (s *FundingStore) loadContributions(ctx context.Context, byID map[int64]*ledger.Campaign) error {
	query := `
        SELECT campaign_id, contributor_id, amount
        FROM contributions
    `
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var campaignID int64
		var contributor int
		var amount int64
		if err := rows.Scan(&campaignID, &contributor, &amount); err != nil {
			return err
		}
		if c, ok := byID[campaignID]; ok {
			c.Contributions[contributor] = amount
		}
	}
	return rows.Err()
}

// moveFunds debits one wallet and credits another. A debit that would take
// the balance negative affects zero rows and is reported as a failed
// transfer.
func (s *FundingStore) moveFunds(ctx context.Context, tx pgx.Tx, fromType string, fromID int64, toType string, toID int64, amount int64) error {
	debit := `
        UPDATE wallets
        SET balance = balance - $3, updated_at = NOW()
        WHERE owner_type = $1 AND owner_id = $2 AND balance >= $3
    `
	tag, err := tx.Exec(ctx, debit, fromType, fromID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: insufficient balance in %s wallet %d", ledger.ErrTransferFailed, fromType, fromID)
	}

	credit := `
        UPDATE wallets
        SET balance = balance + $3, updated_at = NOW()
        WHERE owner_type = $1 AND owner_id = $2
    `
	tag, err = tx.Exec(ctx, credit, toType, toID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: missing %s wallet %d", ledger.ErrTransferFailed, toType, toID)
	}

	return nil
}

func (s *FundingStore) insertEvents(ctx context.Context, tx pgx.Tx, campaignID int64, events []funding.Event) error {
	for _, e := range events {
		id := campaignID
		if err := outbox.InsertEventInTx(ctx, tx, s.outboxRepo, "campaign", &id, e.RoutingKey, e.Payload); err != nil {
			return err
		}
	}
	return nil
}
