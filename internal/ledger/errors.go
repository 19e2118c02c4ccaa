package ledger

import "errors"

// Invalid argument errors.
var (
	ErrGoalNotPositive            = errors.New("funding goal must be positive")
	ErrDeadlineNotFuture          = errors.New("deadline must be in the future")
	ErrMilestoneMismatch          = errors.New("milestone descriptions and amounts length mismatch")
	ErrMilestoneAmountNotPositive = errors.New("milestone amount must be positive")
	ErrAmountNotPositive          = errors.New("contribution amount must be positive")
)

// Not found / out of range errors.
var (
	ErrCampaignNotFound    = errors.New("campaign not found")
	ErrMilestoneOutOfRange = errors.New("milestone index out of range")
)

// ErrNotCreator is returned when someone other than the campaign creator
// attempts to release funds.
var ErrNotCreator = errors.New("caller is not the campaign creator")

// Precondition errors.
var (
	ErrCampaignExpired         = errors.New("campaign deadline has passed")
	ErrGoalReached             = errors.New("funding goal already reached")
	ErrGoalNotReached          = errors.New("funding goal not reached")
	ErrCampaignCompleted       = errors.New("campaign already completed")
	ErrMilestoneAlreadyReached = errors.New("milestone already reached")
)

// ErrTransferFailed wraps custody transfer failures. A failed transfer aborts
// the whole operation and leaves the ledger unchanged.
var ErrTransferFailed = errors.New("fund transfer failed")
