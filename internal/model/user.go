package model

import "time"

type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Wallet tracks an account's spendable balance in minor units. The custody
// wallet of a campaign uses a campaign id instead of a user id as owner.
type Wallet struct {
	ID        int64     `json:"id"`
	OwnerType string    `json:"owner_type"`
	OwnerID   int64     `json:"owner_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	WalletOwnerUser     = "user"
	WalletOwnerCampaign = "campaign"
)
