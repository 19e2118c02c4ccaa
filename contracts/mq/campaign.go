package mq

import "time"

// Routing keys on the events exchange for campaign lifecycle events.
const (
	RoutingKeyCampaignCreated  = "campaign.created"
	RoutingKeyContributionMade = "campaign.contribution"
	RoutingKeyMilestoneReached = "campaign.milestone_reached"
	RoutingKeyFundsReleased    = "campaign.funds_released"
)

type CampaignCreatedPayload struct {
	TraceID     string    `json:"trace_id,omitempty"`
	CampaignID  int64     `json:"campaign_id"`
	Creator     int       `json:"creator"`
	Description string    `json:"description"`
	Goal        int64     `json:"goal"`
	Deadline    time.Time `json:"deadline"`
}

type ContributionMadePayload struct {
	TraceID     string `json:"trace_id,omitempty"`
	CampaignID  int64  `json:"campaign_id"`
	Contributor int    `json:"contributor"`
	Amount      int64  `json:"amount"`
}

// MilestoneReachedPayload reports the campaign's milestone cursor after the
// release, i.e. the count of milestones reached so far, not the index of the
// milestone just released. Consumers depend on this value.
type MilestoneReachedPayload struct {
	TraceID          string `json:"trace_id,omitempty"`
	CampaignID       int64  `json:"campaign_id"`
	CurrentMilestone int    `json:"current_milestone"`
}

type FundsReleasedPayload struct {
	TraceID    string `json:"trace_id,omitempty"`
	CampaignID int64  `json:"campaign_id"`
	Amount     int64  `json:"amount"`
}
