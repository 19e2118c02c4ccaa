package ledger

import "time"

// Milestone is a fixed-amount release gate. The amount is set at creation and
// never changes; the reached flag flips false -> true exactly once.
type Milestone struct {
	Description string
	Amount      int64
	Reached     bool
}

// Campaign is one crowdfunding effort. Raised, CurrentMilestone, Completed,
// the reached flags and the contributions map are the only mutable fields;
// everything else is fixed at creation.
type Campaign struct {
	ID               int64
	Creator          int
	Description      string
	Goal             int64
	Deadline         time.Time
	Raised           int64
	CurrentMilestone int
	Completed        bool
	Milestones       []Milestone
	Contributions    map[int]int64
}

// TotalMilestones returns the fixed milestone count.
func (c *Campaign) TotalMilestones() int {
	return len(c.Milestones)
}

// Clone returns a deep copy. Mutating operations work on a clone and swap it
// in only after the commit callback succeeds, so a failed commit leaves the
// ledger untouched.
func (c *Campaign) Clone() *Campaign {
	next := *c
	next.Milestones = make([]Milestone, len(c.Milestones))
	copy(next.Milestones, c.Milestones)
	next.Contributions = make(map[int]int64, len(c.Contributions))
	for contributor, amount := range c.Contributions {
		next.Contributions[contributor] = amount
	}
	return &next
}

// CampaignDetails is the read-only projection of a campaign.
type CampaignDetails struct {
	ID               int64     `json:"id"`
	Creator          int       `json:"creator"`
	Description      string    `json:"description"`
	Goal             int64     `json:"goal"`
	Deadline         time.Time `json:"deadline"`
	Raised           int64     `json:"raised"`
	CurrentMilestone int       `json:"current_milestone"`
	TotalMilestones  int       `json:"total_milestones"`
	Completed        bool      `json:"completed"`
}

// MilestoneDetails is the read-only projection of a single milestone.
type MilestoneDetails struct {
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Reached     bool   `json:"reached"`
}

// ReleaseResult describes one successful milestone release.
// CurrentMilestone carries the post-increment cursor, i.e. the count of
// milestones reached so far; external event consumers depend on that value.
type ReleaseResult struct {
	MilestoneIndex   int
	Amount           int64
	CurrentMilestone int
	Completed        bool
}

func details(c *Campaign) CampaignDetails {
	return CampaignDetails{
		ID:               c.ID,
		Creator:          c.Creator,
		Description:      c.Description,
		Goal:             c.Goal,
		Deadline:         c.Deadline,
		Raised:           c.Raised,
		CurrentMilestone: c.CurrentMilestone,
		TotalMilestones:  c.TotalMilestones(),
		Completed:        c.Completed,
	}
}
