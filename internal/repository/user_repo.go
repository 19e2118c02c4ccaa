package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"crowdfund-service/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts a new user together with their wallet, credited with
// the opening balance.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User, openingBalance int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO users (email, password_hash, created_at)
        VALUES ($1, $2, NOW())
        RETURNING id
    `
	if err := tx.QueryRow(ctx, query, u.Email, u.PasswordHash).Scan(&u.ID); err != nil {
		return err
	}

	walletQuery := `
        INSERT INTO wallets (owner_type, owner_id, balance, updated_at)
        VALUES ($1, $2, $3, NOW())
    `
	if _, err := tx.Exec(ctx, walletQuery, model.WalletOwnerUser, u.ID, openingBalance); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// FindByEmail returns user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `
        SELECT id, email, password_hash, created_at
        FROM users
        WHERE email = $1
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// WalletBalance returns the spendable balance of a wallet.
func (r *UserRepository) WalletBalance(ctx context.Context, ownerType string, ownerID int64) (int64, error) {
	query := `
        SELECT balance
        FROM wallets
        WHERE owner_type = $1 AND owner_id = $2
    `
	var balance int64
	if err := r.db.QueryRow(ctx, query, ownerType, ownerID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}
