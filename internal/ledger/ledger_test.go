package ledger

import (
	"errors"
	"testing"
	"time"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func twoMilestoneInput() CampaignInput {
	return CampaignInput{
		Description:           "community workshop",
		Goal:                  100,
		Deadline:              baseTime.Add(time.Hour),
		MilestoneDescriptions: []string{"M1", "M2"},
		MilestoneAmounts:      []int64{60, 40},
	}
}

func TestCreateCampaignAllocatesSequentialIDs(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))

	first, err := l.CreateCampaign(1, twoMilestoneInput(), nil)
	if err != nil {
		t.Fatalf("create first campaign: %v", err)
	}
	second, err := l.CreateCampaign(2, twoMilestoneInput(), nil)
	if err != nil {
		t.Fatalf("create second campaign: %v", err)
	}

	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("expected ids 1 and 2, got %d and %d", first.ID, second.ID)
	}
	if l.TotalCampaigns() != 2 {
		t.Fatalf("expected 2 campaigns, got %d", l.TotalCampaigns())
	}
	if first.Raised != 0 || first.CurrentMilestone != 0 || first.Completed {
		t.Fatalf("new campaign not zeroed: %+v", first)
	}
	for i, m := range first.Milestones {
		if m.Reached {
			t.Fatalf("milestone %d reached at creation", i)
		}
	}
}

func TestCreateCampaignValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CampaignInput)
		err    error
	}{
		{
			name:   "non-positive goal",
			mutate: func(in *CampaignInput) { in.Goal = 0 },
			err:    ErrGoalNotPositive,
		},
		{
			name:   "deadline in the past",
			mutate: func(in *CampaignInput) { in.Deadline = baseTime.Add(-time.Minute) },
			err:    ErrDeadlineNotFuture,
		},
		{
			name:   "deadline exactly now",
			mutate: func(in *CampaignInput) { in.Deadline = baseTime },
			err:    ErrDeadlineNotFuture,
		},
		{
			name:   "milestone length mismatch",
			mutate: func(in *CampaignInput) { in.MilestoneAmounts = []int64{60} },
			err:    ErrMilestoneMismatch,
		},
		{
			name:   "non-positive milestone amount",
			mutate: func(in *CampaignInput) { in.MilestoneAmounts = []int64{60, 0} },
			err:    ErrMilestoneAmountNotPositive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewWithClock(fixedClock(baseTime))
			in := twoMilestoneInput()
			tt.mutate(&in)
			if _, err := l.CreateCampaign(1, in, nil); !errors.Is(err, tt.err) {
				t.Fatalf("expected %v, got %v", tt.err, err)
			}
			if l.TotalCampaigns() != 0 {
				t.Fatalf("rejected creation must not consume an id")
			}
		})
	}
}

func TestCreateCampaignFailedCommitConsumesNoID(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	boom := errors.New("db down")

	if _, err := l.CreateCampaign(1, twoMilestoneInput(), func(*Campaign) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}
	if l.TotalCampaigns() != 0 {
		t.Fatalf("failed commit consumed an id")
	}

	c, err := l.CreateCampaign(1, twoMilestoneInput(), nil)
	if err != nil {
		t.Fatalf("create after failed commit: %v", err)
	}
	if c.ID != 1 {
		t.Fatalf("expected id 1 after failed commit, got %d", c.ID)
	}
}

func TestContributeAccumulatesPerContributor(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)

	if _, err := l.Contribute(c.ID, 7, 20, nil); err != nil {
		t.Fatalf("first contribution: %v", err)
	}
	if _, err := l.Contribute(c.ID, 7, 30, nil); err != nil {
		t.Fatalf("second contribution: %v", err)
	}
	if _, err := l.Contribute(c.ID, 8, 10, nil); err != nil {
		t.Fatalf("third contribution: %v", err)
	}

	d := l.CampaignDetails(c.ID)
	if d.Raised != 60 {
		t.Fatalf("expected raised 60, got %d", d.Raised)
	}
	snap := l.Snapshot(c.ID)
	if snap.Contributions[7] != 50 {
		t.Fatalf("expected cumulative 50 for contributor 7, got %d", snap.Contributions[7])
	}
	if snap.Contributions[8] != 10 {
		t.Fatalf("expected cumulative 10 for contributor 8, got %d", snap.Contributions[8])
	}
}

func TestContributeGoalGateAllowsOvershootThenRejects(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)

	if _, err := l.Contribute(c.ID, 7, 50, nil); err != nil {
		t.Fatalf("contribution below goal: %v", err)
	}
	// raised=50 < goal=100, so this one is accepted even though it overshoots.
	if _, err := l.Contribute(c.ID, 8, 60, nil); err != nil {
		t.Fatalf("crossing contribution: %v", err)
	}
	if d := l.CampaignDetails(c.ID); d.Raised != 110 {
		t.Fatalf("expected raised 110, got %d", d.Raised)
	}
	// Goal reached: rejected even by 1 unit, even from a first-time contributor.
	if _, err := l.Contribute(c.ID, 9, 1, nil); !errors.Is(err, ErrGoalReached) {
		t.Fatalf("expected ErrGoalReached, got %v", err)
	}
}

func TestContributeExactGoalThenRejects(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)

	if _, err := l.Contribute(c.ID, 7, 100, nil); err != nil {
		t.Fatalf("contribution reaching goal exactly: %v", err)
	}
	if _, err := l.Contribute(c.ID, 7, 1, nil); !errors.Is(err, ErrGoalReached) {
		t.Fatalf("expected ErrGoalReached, got %v", err)
	}
}

func TestContributeRejections(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)

	if _, err := l.Contribute(999, 7, 10, nil); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
	if _, err := l.Contribute(c.ID, 7, 0, nil); !errors.Is(err, ErrAmountNotPositive) {
		t.Fatalf("expected ErrAmountNotPositive, got %v", err)
	}
	if _, err := l.Contribute(c.ID, 7, -5, nil); !errors.Is(err, ErrAmountNotPositive) {
		t.Fatalf("expected ErrAmountNotPositive, got %v", err)
	}
}

func TestContributeAfterDeadline(t *testing.T) {
	clock := baseTime
	l := NewWithClock(func() time.Time { return clock })
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)

	clock = baseTime.Add(time.Hour) // exactly at the deadline
	if _, err := l.Contribute(c.ID, 7, 10, nil); !errors.Is(err, ErrCampaignExpired) {
		t.Fatalf("expected ErrCampaignExpired at deadline, got %v", err)
	}

	clock = baseTime.Add(2 * time.Hour)
	if _, err := l.Contribute(c.ID, 7, 10, nil); !errors.Is(err, ErrCampaignExpired) {
		t.Fatalf("expected ErrCampaignExpired after deadline, got %v", err)
	}
}

func TestContributeFailedCommitLeavesStateUnchanged(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)
	boom := errors.New("wallet debit failed")

	if _, err := l.Contribute(c.ID, 7, 40, func(*Campaign) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected commit error, got %v", err)
	}

	d := l.CampaignDetails(c.ID)
	if d.Raised != 0 {
		t.Fatalf("failed commit mutated raised: %d", d.Raised)
	}
	if snap := l.Snapshot(c.ID); len(snap.Contributions) != 0 {
		t.Fatalf("failed commit recorded a contribution: %v", snap.Contributions)
	}
}

func TestReleaseFundsFullScenario(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)
	if _, err := l.Contribute(c.ID, 7, 100, nil); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	var transferred []int64
	commit := func(_ *Campaign, res ReleaseResult) error {
		transferred = append(transferred, res.Amount)
		return nil
	}

	first, err := l.ReleaseFunds(c.ID, 1, commit)
	if err != nil {
		t.Fatalf("first release: %v", err)
	}
	if first.MilestoneIndex != 0 || first.Amount != 60 {
		t.Fatalf("first release: %+v", first)
	}
	if first.CurrentMilestone != 1 {
		t.Fatalf("expected post-increment cursor 1, got %d", first.CurrentMilestone)
	}
	if first.Completed {
		t.Fatalf("campaign completed after first of two milestones")
	}

	second, err := l.ReleaseFunds(c.ID, 1, commit)
	if err != nil {
		t.Fatalf("second release: %v", err)
	}
	if second.MilestoneIndex != 1 || second.Amount != 40 {
		t.Fatalf("second release: %+v", second)
	}
	if second.CurrentMilestone != 2 || !second.Completed {
		t.Fatalf("expected completed campaign with cursor 2, got %+v", second)
	}

	if _, err := l.ReleaseFunds(c.ID, 1, commit); !errors.Is(err, ErrCampaignCompleted) {
		t.Fatalf("expected ErrCampaignCompleted, got %v", err)
	}

	if len(transferred) != 2 || transferred[0] != 60 || transferred[1] != 40 {
		t.Fatalf("expected transfers [60 40], got %v", transferred)
	}

	d := l.CampaignDetails(c.ID)
	if d.CurrentMilestone != d.TotalMilestones {
		t.Fatalf("cursor %d != total %d on completed campaign", d.CurrentMilestone, d.TotalMilestones)
	}
	snap := l.Snapshot(c.ID)
	for i, m := range snap.Milestones {
		if !m.Reached {
			t.Fatalf("milestone %d not reached on completed campaign", i)
		}
	}
}

func TestReleaseFundsRejections(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)

	if _, err := l.ReleaseFunds(999, 1, nil); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
	if _, err := l.ReleaseFunds(c.ID, 2, nil); !errors.Is(err, ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	// Goal not reached yet, regardless of elapsed time or milestone count.
	if _, err := l.ReleaseFunds(c.ID, 1, nil); !errors.Is(err, ErrGoalNotReached) {
		t.Fatalf("expected ErrGoalNotReached, got %v", err)
	}

	if _, err := l.Contribute(c.ID, 7, 99, nil); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, err := l.ReleaseFunds(c.ID, 1, nil); !errors.Is(err, ErrGoalNotReached) {
		t.Fatalf("expected ErrGoalNotReached at raised=99, got %v", err)
	}
}

func TestReleaseFundsZeroMilestoneCampaign(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	in := twoMilestoneInput()
	in.MilestoneDescriptions = nil
	in.MilestoneAmounts = nil

	c, err := l.CreateCampaign(1, in, nil)
	if err != nil {
		t.Fatalf("create zero-milestone campaign: %v", err)
	}
	if c.Completed {
		t.Fatalf("zero-milestone campaign completed at creation")
	}

	if _, err := l.Contribute(c.ID, 7, 100, nil); err != nil {
		t.Fatalf("contribute: %v", err)
	}
	if _, err := l.ReleaseFunds(c.ID, 1, nil); !errors.Is(err, ErrMilestoneOutOfRange) {
		t.Fatalf("expected ErrMilestoneOutOfRange, got %v", err)
	}
	if d := l.CampaignDetails(c.ID); d.Completed {
		t.Fatalf("rejected release flipped the completed flag")
	}
}

func TestReleaseFundsTransferFailureRollsBack(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)
	if _, err := l.Contribute(c.ID, 7, 100, nil); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	failing := func(*Campaign, ReleaseResult) error {
		return ErrTransferFailed
	}
	if _, err := l.ReleaseFunds(c.ID, 1, failing); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}

	d := l.CampaignDetails(c.ID)
	if d.CurrentMilestone != 0 || d.Completed {
		t.Fatalf("failed transfer advanced the cursor: %+v", d)
	}
	if snap := l.Snapshot(c.ID); snap.Milestones[0].Reached {
		t.Fatalf("failed transfer marked the milestone reached")
	}

	// The same milestone releases cleanly afterwards.
	res, err := l.ReleaseFunds(c.ID, 1, nil)
	if err != nil {
		t.Fatalf("release after failed transfer: %v", err)
	}
	if res.MilestoneIndex != 0 || res.Amount != 60 {
		t.Fatalf("unexpected release after failed transfer: %+v", res)
	}
}

func TestReleaseOrderIsStrictlySequential(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	in := CampaignInput{
		Description:           "ordered",
		Goal:                  60,
		Deadline:              baseTime.Add(time.Hour),
		MilestoneDescriptions: []string{"a", "b", "c"},
		MilestoneAmounts:      []int64{10, 30, 20},
	}
	c, _ := l.CreateCampaign(1, in, nil)
	if _, err := l.Contribute(c.ID, 7, 60, nil); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	for call, want := range []int64{10, 30, 20} {
		res, err := l.ReleaseFunds(c.ID, 1, nil)
		if err != nil {
			t.Fatalf("release %d: %v", call+1, err)
		}
		if res.MilestoneIndex != call {
			t.Fatalf("release %d touched milestone %d", call+1, res.MilestoneIndex)
		}
		if res.Amount != want {
			t.Fatalf("release %d: expected amount %d, got %d", call+1, want, res.Amount)
		}
	}
}

func TestCampaignDetailsUnknownIDIsZeroValued(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	d := l.CampaignDetails(42)
	if d != (CampaignDetails{}) {
		t.Fatalf("expected zero-valued details, got %+v", d)
	}
}

func TestMilestoneDetails(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	c, _ := l.CreateCampaign(1, twoMilestoneInput(), nil)

	m, err := l.MilestoneDetails(c.ID, 1)
	if err != nil {
		t.Fatalf("milestone details: %v", err)
	}
	if m.Description != "M2" || m.Amount != 40 || m.Reached {
		t.Fatalf("unexpected milestone details: %+v", m)
	}

	if _, err := l.MilestoneDetails(c.ID, 2); !errors.Is(err, ErrMilestoneOutOfRange) {
		t.Fatalf("expected ErrMilestoneOutOfRange at index == total, got %v", err)
	}
	if _, err := l.MilestoneDetails(c.ID, -1); !errors.Is(err, ErrMilestoneOutOfRange) {
		t.Fatalf("expected ErrMilestoneOutOfRange for negative index, got %v", err)
	}
	if _, err := l.MilestoneDetails(999, 0); !errors.Is(err, ErrCampaignNotFound) {
		t.Fatalf("expected ErrCampaignNotFound, got %v", err)
	}
}

func TestHydrateKeepsCounterAheadOfLoadedIDs(t *testing.T) {
	l := NewWithClock(fixedClock(baseTime))
	l.Hydrate([]*Campaign{
		{ID: 3, Creator: 1, Goal: 100, Deadline: baseTime.Add(time.Hour), Contributions: map[int]int64{}},
		{ID: 1, Creator: 1, Goal: 50, Deadline: baseTime.Add(time.Hour), Contributions: map[int]int64{}},
	})

	c, err := l.CreateCampaign(1, twoMilestoneInput(), nil)
	if err != nil {
		t.Fatalf("create after hydrate: %v", err)
	}
	if c.ID != 4 {
		t.Fatalf("expected id 4 after hydrating up to 3, got %d", c.ID)
	}
}
