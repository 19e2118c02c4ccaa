package ledger

import (
	"sort"
	"sync"
	"time"
)

// CampaignInput describes a campaign to be created. Milestone order is
// significant: funds are released strictly in this order, one milestone per
// release call.
type CampaignInput struct {
	Description           string
	Goal                  int64
	Deadline              time.Time
	MilestoneDescriptions []string
	MilestoneAmounts      []int64
}

// CommitFunc persists the post-transition campaign state. It runs before the
// transition becomes visible; returning an error aborts the operation with no
// effect. A nil CommitFunc commits unconditionally.
type CommitFunc func(c *Campaign) error

// ReleaseCommitFunc persists one milestone release: the custody transfer to
// the creator plus the updated campaign state, all or nothing.
type ReleaseCommitFunc func(c *Campaign, res ReleaseResult) error

// Ledger owns every campaign record and the id-allocation counter. All
// mutating operations are serialized on one mutex, so no operation ever
// observes a partially-applied state from another.
type Ledger struct {
	mu        sync.Mutex
	campaigns map[int64]*Campaign
	total     int64
	now       func() time.Time
}

// New returns an empty ledger using the wall clock.
func New() *Ledger {
	return NewWithClock(time.Now)
}

// NewWithClock returns an empty ledger with an injectable clock.
func NewWithClock(now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		campaigns: make(map[int64]*Campaign),
		now:       now,
	}
}

// Hydrate loads previously persisted campaigns, keeping the id counter ahead
// of the highest known id so identifiers are never reused.
func (l *Ledger) Hydrate(campaigns []*Campaign) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range campaigns {
		l.campaigns[c.ID] = c
		if c.ID > l.total {
			l.total = c.ID
		}
	}
}

// TotalCampaigns returns the number of campaigns ever created.
func (l *Ledger) TotalCampaigns() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// CreateCampaign allocates a new campaign with a fresh sequential id (1-based)
// bound to the creator. A failed commit does not consume the id.
func (l *Ledger) CreateCampaign(creator int, in CampaignInput, commit CommitFunc) (*Campaign, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if in.Goal <= 0 {
		return nil, ErrGoalNotPositive
	}
	if !in.Deadline.After(l.now()) {
		return nil, ErrDeadlineNotFuture
	}
	if len(in.MilestoneDescriptions) != len(in.MilestoneAmounts) {
		return nil, ErrMilestoneMismatch
	}
	for _, amount := range in.MilestoneAmounts {
		if amount <= 0 {
			return nil, ErrMilestoneAmountNotPositive
		}
	}

	milestones := make([]Milestone, len(in.MilestoneDescriptions))
	for i, description := range in.MilestoneDescriptions {
		milestones[i] = Milestone{
			Description: description,
			Amount:      in.MilestoneAmounts[i],
		}
	}

	c := &Campaign{
		ID:            l.total + 1,
		Creator:       creator,
		Description:   in.Description,
		Goal:          in.Goal,
		Deadline:      in.Deadline,
		Milestones:    milestones,
		Contributions: make(map[int]int64),
	}

	if commit != nil {
		if err := commit(c); err != nil {
			return nil, err
		}
	}

	l.total = c.ID
	l.campaigns[c.ID] = c
	return c, nil
}

// Contribute adds amount to the campaign's raised total and to the caller's
// cumulative contribution. The goal gate is checked before adding: the
// contribution that crosses the goal may overshoot it, but once raised >= goal
// every further contribution is rejected.
func (l *Ledger) Contribute(id int64, contributor int, amount int64, commit CommitFunc) (*Campaign, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.campaigns[id]
	if !ok {
		return nil, ErrCampaignNotFound
	}
	if !l.now().Before(c.Deadline) {
		return nil, ErrCampaignExpired
	}
	if amount <= 0 {
		return nil, ErrAmountNotPositive
	}
	if c.Raised >= c.Goal {
		return nil, ErrGoalReached
	}

	next := c.Clone()
	next.Raised += amount
	next.Contributions[contributor] += amount

	if commit != nil {
		if err := commit(next); err != nil {
			return nil, err
		}
	}

	l.campaigns[id] = next
	return next, nil
}

// ReleaseFunds releases the current milestone's amount to the creator. Exactly
// one milestone is released per call, strictly in creation order. The commit
// callback performs the custody transfer; if it fails the whole release is
// rolled back.
func (l *Ledger) ReleaseFunds(id int64, caller int, commit ReleaseCommitFunc) (ReleaseResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.campaigns[id]
	if !ok {
		return ReleaseResult{}, ErrCampaignNotFound
	}
	if caller != c.Creator {
		return ReleaseResult{}, ErrNotCreator
	}
	if c.Completed {
		return ReleaseResult{}, ErrCampaignCompleted
	}
	if c.Raised < c.Goal {
		return ReleaseResult{}, ErrGoalNotReached
	}
	// Guards the milestone access below; a zero-milestone campaign is rejected
	// here and can never release funds.
	if c.CurrentMilestone >= c.TotalMilestones() {
		return ReleaseResult{}, ErrMilestoneOutOfRange
	}
	if c.Milestones[c.CurrentMilestone].Reached {
		return ReleaseResult{}, ErrMilestoneAlreadyReached
	}

	next := c.Clone()
	index := next.CurrentMilestone
	next.Milestones[index].Reached = true
	next.CurrentMilestone++
	if next.CurrentMilestone == next.TotalMilestones() {
		next.Completed = true
	}

	res := ReleaseResult{
		MilestoneIndex:   index,
		Amount:           next.Milestones[index].Amount,
		CurrentMilestone: next.CurrentMilestone,
		Completed:        next.Completed,
	}

	if commit != nil {
		if err := commit(next, res); err != nil {
			return ReleaseResult{}, err
		}
	}

	l.campaigns[id] = next
	return res, nil
}

// CampaignDetails returns the read-only projection of a campaign. An unknown
// id yields zero-valued fields rather than an error.
func (l *Ledger) CampaignDetails(id int64) CampaignDetails {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.campaigns[id]
	if !ok {
		return CampaignDetails{}
	}
	return details(c)
}

// MilestoneDetails returns one milestone of a campaign. The index must be
// below the campaign's total milestone count.
func (l *Ledger) MilestoneDetails(id int64, index int) (MilestoneDetails, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.campaigns[id]
	if !ok {
		return MilestoneDetails{}, ErrCampaignNotFound
	}
	if index < 0 || index >= c.TotalMilestones() {
		return MilestoneDetails{}, ErrMilestoneOutOfRange
	}
	m := c.Milestones[index]
	return MilestoneDetails{
		Description: m.Description,
		Amount:      m.Amount,
		Reached:     m.Reached,
	}, nil
}

// ListCampaigns returns the projections of all campaigns in id order.
func (l *Ledger) ListCampaigns() []CampaignDetails {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]int64, 0, len(l.campaigns))
	for id := range l.campaigns {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	list := make([]CampaignDetails, 0, len(ids))
	for _, id := range ids {
		list = append(list, details(l.campaigns[id]))
	}
	return list
}

// Snapshot returns a deep copy of a campaign record, or nil if unknown.
func (l *Ledger) Snapshot(id int64) *Campaign {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.campaigns[id]
	if !ok {
		return nil
	}
	return c.Clone()
}
