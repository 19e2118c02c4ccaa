package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap"

	mqcontracts "crowdfund-service/contracts/mq"
	"crowdfund-service/internal/model"
)

type fakeNotificationRepo struct {
	created []*model.Notification
	fail    error
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if f.fail != nil {
		return f.fail
	}
	f.created = append(f.created, n)
	return nil
}

type fakeCampaignRepo struct {
	creator      int
	contributors []int
}

func (f *fakeCampaignRepo) GetCreator(ctx context.Context, campaignID int64) (int, error) {
	return f.creator, nil
}

func (f *fakeCampaignRepo) GetContributors(ctx context.Context, campaignID int64) ([]int, error) {
	return f.contributors, nil
}

func newTestHandler(notifications *fakeNotificationRepo, campaigns *fakeCampaignRepo) *CampaignEventHandler {
	return NewCampaignEventHandler(notifications, campaigns, zap.NewNop(), nil, nil, nil)
}

func mustMarshal(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func TestHandleContributionNotifiesCreator(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	campaigns := &fakeCampaignRepo{creator: 1}
	h := newTestHandler(notifications, campaigns)

	raw := mustMarshal(t, mqcontracts.ContributionMadePayload{
		CampaignID:  3,
		Contributor: 2,
		Amount:      70,
	})

	if err := h.HandleContribution(context.Background(), raw); err != nil {
		t.Fatalf("HandleContribution: %v", err)
	}

	if len(notifications.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifications.created))
	}
	n := notifications.created[0]
	if n.UserID != 1 || n.CampaignID != 3 || n.Kind != "contribution" {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestHandleMilestoneReachedNotifiesEveryone(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	campaigns := &fakeCampaignRepo{creator: 1, contributors: []int{2, 5}}
	h := newTestHandler(notifications, campaigns)

	raw := mustMarshal(t, mqcontracts.MilestoneReachedPayload{
		CampaignID:       3,
		CurrentMilestone: 1,
	})

	if err := h.HandleMilestoneReached(context.Background(), raw); err != nil {
		t.Fatalf("HandleMilestoneReached: %v", err)
	}

	if len(notifications.created) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(notifications.created))
	}
	recipients := map[int]bool{}
	for _, n := range notifications.created {
		recipients[n.UserID] = true
	}
	for _, want := range []int{1, 2, 5} {
		if !recipients[want] {
			t.Fatalf("missing notification for user %d", want)
		}
	}
}

func TestHandleFundsReleased(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	campaigns := &fakeCampaignRepo{creator: 1}
	h := newTestHandler(notifications, campaigns)

	raw := mustMarshal(t, mqcontracts.FundsReleasedPayload{
		CampaignID: 3,
		Amount:     60,
	})

	if err := h.HandleFundsReleased(context.Background(), raw); err != nil {
		t.Fatalf("HandleFundsReleased: %v", err)
	}

	if len(notifications.created) != 1 || notifications.created[0].Kind != "funds_released" {
		t.Fatalf("unexpected notifications %+v", notifications.created)
	}
}

func TestMalformedPayloadIsAcked(t *testing.T) {
	notifications := &fakeNotificationRepo{}
	h := newTestHandler(notifications, &fakeCampaignRepo{})

	// A nil error means the consumer acks instead of requeueing forever.
	if err := h.HandleContribution(context.Background(), json.RawMessage(`{not json`)); err != nil {
		t.Fatalf("expected nil for malformed payload, got %v", err)
	}
	if len(notifications.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(notifications.created))
	}
}

func TestRetryableInsertFailureIsRequeued(t *testing.T) {
	notifications := &fakeNotificationRepo{fail: errors.New("connection refused")}
	h := newTestHandler(notifications, &fakeCampaignRepo{creator: 1})

	raw := mustMarshal(t, mqcontracts.ContributionMadePayload{CampaignID: 3, Contributor: 2, Amount: 70})
	if err := h.HandleContribution(context.Background(), raw); err == nil {
		t.Fatal("expected error for retryable failure")
	}
}

func TestNonRetryableInsertFailureIsAcked(t *testing.T) {
	notifications := &fakeNotificationRepo{fail: errors.New("duplicate key value violates unique constraint")}
	h := newTestHandler(notifications, &fakeCampaignRepo{creator: 1})

	raw := mustMarshal(t, mqcontracts.ContributionMadePayload{CampaignID: 3, Contributor: 2, Amount: 70})
	if err := h.HandleContribution(context.Background(), raw); err != nil {
		t.Fatalf("expected nil for non-retryable failure, got %v", err)
	}
}
