package model

import "time"

type Notification struct {
	ID         int64     `json:"id"`
	UserID     int       `json:"user_id"`
	CampaignID int64     `json:"campaign_id"`
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`
}
