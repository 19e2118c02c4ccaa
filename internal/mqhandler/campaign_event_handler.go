package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	mqcontracts "crowdfund-service/contracts/mq"
	"crowdfund-service/internal/model"
	"crowdfund-service/pkg/logger"
	"crowdfund-service/pkg/mq"
	"crowdfund-service/pkg/util"
)

type notificationInserter interface {
	Create(ctx context.Context, n *model.Notification) error
}

type campaignReader interface {
	GetCreator(ctx context.Context, campaignID int64) (int, error)
	GetContributors(ctx context.Context, campaignID int64) ([]int, error)
}

// CampaignEventHandler turns campaign lifecycle events into in-app
// notifications.
type CampaignEventHandler struct {
	notificationRepo notificationInserter
	campaignRepo     campaignReader
	logger           *zap.Logger
	deduper          *util.Deduper
	retryCounter     *util.RetryCounter
	dlqPublisher     *mq.Publisher
	maxRetries       int64
}

func NewCampaignEventHandler(
	notificationRepo notificationInserter,
	campaignRepo campaignReader,
	logger *zap.Logger,
	deduper *util.Deduper,
	retryCounter *util.RetryCounter,
	dlqPublisher *mq.Publisher,
) *CampaignEventHandler {
	return &CampaignEventHandler{
		notificationRepo: notificationRepo,
		campaignRepo:     campaignRepo,
		logger:           logger,
		deduper:          deduper,
		retryCounter:     retryCounter,
		dlqPublisher:     dlqPublisher,
		maxRetries:       5,
	}
}

// HandleCampaignCreated notifies the creator that their campaign is live.
func (h *CampaignEventHandler) HandleCampaignCreated(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.CampaignCreatedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal campaign created payload (non-retryable)", zap.Error(err))
		return nil
	}

	if !h.acquireOnce(ctx, "campaign-created", h.eventKey(p.TraceID, p.CampaignID)) {
		return nil
	}

	n := &model.Notification{
		UserID:     p.Creator,
		CampaignID: p.CampaignID,
		Kind:       "campaign_created",
		Message:    fmt.Sprintf("Your campaign %q is live with a goal of %d", p.Description, p.Goal),
	}
	return h.insert(ctx, mqcontracts.RoutingKeyCampaignCreated, raw, n)
}

// HandleContribution notifies the creator of a new contribution.
func (h *CampaignEventHandler) HandleContribution(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ContributionMadePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal contribution payload (non-retryable)", zap.Error(err))
		return nil
	}

	if !h.acquireOnce(ctx, "contribution", h.eventKey(p.TraceID, p.CampaignID)) {
		return nil
	}

	creator, err := h.campaignRepo.GetCreator(ctx, p.CampaignID)
	if err != nil {
		return h.classify(ctx, mqcontracts.RoutingKeyContributionMade, raw, p.CampaignID, err)
	}

	n := &model.Notification{
		UserID:     creator,
		CampaignID: p.CampaignID,
		Kind:       "contribution",
		Message:    fmt.Sprintf("Contributor %d added %d to your campaign", p.Contributor, p.Amount),
	}
	return h.insert(ctx, mqcontracts.RoutingKeyContributionMade, raw, n)
}

// HandleMilestoneReached notifies the creator and every contributor.
func (h *CampaignEventHandler) HandleMilestoneReached(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.MilestoneReachedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal milestone reached payload (non-retryable)", zap.Error(err))
		return nil
	}

	if !h.acquireOnce(ctx, "milestone-reached", h.eventKey(p.TraceID, p.CampaignID)) {
		return nil
	}

	creator, err := h.campaignRepo.GetCreator(ctx, p.CampaignID)
	if err != nil {
		return h.classify(ctx, mqcontracts.RoutingKeyMilestoneReached, raw, p.CampaignID, err)
	}
	contributors, err := h.campaignRepo.GetContributors(ctx, p.CampaignID)
	if err != nil {
		return h.classify(ctx, mqcontracts.RoutingKeyMilestoneReached, raw, p.CampaignID, err)
	}

	message := fmt.Sprintf("Campaign %d reached milestone %d", p.CampaignID, p.CurrentMilestone)
	recipients := append([]int{creator}, contributors...)
	for _, userID := range recipients {
		n := &model.Notification{
			UserID:     userID,
			CampaignID: p.CampaignID,
			Kind:       "milestone_reached",
			Message:    message,
		}
		if err := h.insert(ctx, mqcontracts.RoutingKeyMilestoneReached, raw, n); err != nil {
			return err
		}
	}
	return nil
}

// HandleFundsReleased notifies the creator of the payout.
func (h *CampaignEventHandler) HandleFundsReleased(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.FundsReleasedPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal funds released payload (non-retryable)", zap.Error(err))
		return nil
	}

	if !h.acquireOnce(ctx, "funds-released", h.eventKey(p.TraceID, p.CampaignID)) {
		return nil
	}

	creator, err := h.campaignRepo.GetCreator(ctx, p.CampaignID)
	if err != nil {
		return h.classify(ctx, mqcontracts.RoutingKeyFundsReleased, raw, p.CampaignID, err)
	}

	n := &model.Notification{
		UserID:     creator,
		CampaignID: p.CampaignID,
		Kind:       "funds_released",
		Message:    fmt.Sprintf("%d was released from campaign %d to your wallet", p.Amount, p.CampaignID),
	}
	return h.insert(ctx, mqcontracts.RoutingKeyFundsReleased, raw, n)
}

func (h *CampaignEventHandler) insert(ctx context.Context, routingKey string, raw json.RawMessage, n *model.Notification) error {
	if err := h.notificationRepo.Create(ctx, n); err != nil {
		return h.classify(ctx, routingKey, raw, n.CampaignID, err)
	}

	logger.WithTrace(ctx, h.logger).Info("Notification created",
		zap.Int("user_id", n.UserID),
		zap.Int64("campaign_id", n.CampaignID),
		zap.String("kind", n.Kind),
	)
	return nil
}

// classify decides between requeue, ack and DLQ for a failed event.
func (h *CampaignEventHandler) classify(ctx context.Context, routingKey string, raw json.RawMessage, campaignID int64, err error) error {
	isRetryable, errType := util.IsRetryableError(err)
	logger.WithTrace(ctx, h.logger).Error("Failed to handle campaign event",
		zap.String("routing_key", routingKey),
		zap.Int64("campaign_id", campaignID),
		zap.String("error_type", errType),
		zap.Bool("retryable", isRetryable),
		zap.Error(err),
	)

	if !isRetryable {
		return nil
	}

	if h.retryCounter == nil {
		return err
	}

	retryKey := util.FormatRetryKey(routingKey, fmt.Sprintf("%d", campaignID))
	retryCount, counterErr := h.retryCounter.IncrementAndGet(ctx, retryKey)
	if counterErr != nil {
		return err
	}

	if util.ShouldRetry(retryCount, h.maxRetries, isRetryable) {
		return err
	}

	if h.dlqPublisher != nil {
		if dlqErr := h.dlqPublisher.PublishToDLQ(routingKey, raw, err.Error()); dlqErr != nil {
			h.logger.Error("Failed to publish to DLQ", zap.Error(dlqErr))
			return err
		}
		h.logger.Warn("Event moved to DLQ after max retries",
			zap.String("routing_key", routingKey),
			zap.Int64("campaign_id", campaignID),
			zap.Int64("retry_count", retryCount),
		)
	}
	return nil
}

func (h *CampaignEventHandler) acquireOnce(ctx context.Context, handler, eventKey string) bool {
	if h.deduper == nil {
		return true
	}
	if !h.deduper.AcquireOnce(ctx, handler, eventKey) {
		h.logger.Info("Duplicate event skipped",
			zap.String("handler", handler),
			zap.String("event_key", eventKey),
		)
		return false
	}
	return true
}

// eventKey prefers the request trace id, which is unique per operation, and
// falls back to the campaign id.
func (h *CampaignEventHandler) eventKey(traceID string, campaignID int64) string {
	if traceID != "" {
		return traceID
	}
	return fmt.Sprintf("campaign-%d", campaignID)
}
