package funding

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	contracts "crowdfund-service/contracts/mq"
	"crowdfund-service/internal/ledger"
	"crowdfund-service/pkg/metrics"
	"crowdfund-service/pkg/trace"
)

// Event is an outbox record to be written in the same transaction as the
// state change it describes.
type Event struct {
	RoutingKey string
	Payload    interface{}
}

// Store persists campaign state transitions. Every method is all or
// nothing: on error the in-memory ledger discards the transition.
type Store interface {
	CreateCampaign(ctx context.Context, c *ledger.Campaign, events []Event) error
	RecordContribution(ctx context.Context, c *ledger.Campaign, contributor int, amount int64, events []Event) error
	CommitRelease(ctx context.Context, c *ledger.Campaign, res ledger.ReleaseResult, events []Event) error
	LoadCampaigns(ctx context.Context) ([]*ledger.Campaign, error)
}

const detailsCacheTTL = 30 * time.Second

// Service drives the campaign ledger, persisting every transition through
// the store and caching read projections in Redis.
type Service struct {
	ledger *ledger.Ledger
	store  Store
	cache  *redis.Client
	logger *zap.Logger
}

func NewService(store Store, cache *redis.Client, logger *zap.Logger) *Service {
	return &Service{
		ledger: ledger.New(),
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// NewServiceWithClock is for tests that need a deterministic deadline check.
func NewServiceWithClock(store Store, cache *redis.Client, logger *zap.Logger, now func() time.Time) *Service {
	return &Service{
		ledger: ledger.NewWithClock(now),
		store:  store,
		cache:  cache,
		logger: logger,
	}
}

// Init loads all campaigns from storage into the in-memory ledger. Must be
// called once before serving requests.
func (s *Service) Init(ctx context.Context) error {
	campaigns, err := s.store.LoadCampaigns(ctx)
	if err != nil {
		return fmt.Errorf("failed to load campaigns: %w", err)
	}

	s.ledger.Hydrate(campaigns)
	s.logger.Info("campaign ledger hydrated",
		zap.Int("campaigns", len(campaigns)),
	)
	return nil
}

// CreateCampaign registers a new campaign and emits a created event.
func (s *Service) CreateCampaign(ctx context.Context, creator int, in ledger.CampaignInput) (*ledger.Campaign, error) {
	traceID := trace.FromContext(ctx)

	c, err := s.ledger.CreateCampaign(creator, in, func(c *ledger.Campaign) error {
		events := []Event{{
			RoutingKey: contracts.RoutingKeyCampaignCreated,
			Payload: contracts.CampaignCreatedPayload{
				TraceID:     traceID,
				CampaignID:  c.ID,
				Creator:     c.Creator,
				Description: c.Description,
				Goal:        c.Goal,
				Deadline:    c.Deadline,
			},
		}}
		return s.store.CreateCampaign(ctx, c, events)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncrementCampaignCreated()
	s.logger.Info("campaign created",
		zap.Int64("campaign_id", c.ID),
		zap.Int("creator", creator),
		zap.Int64("goal", c.Goal),
		zap.Int("milestones", c.TotalMilestones()),
	)

	return c, nil
}

// Contribute adds funds to an open campaign and emits a contribution event.
func (s *Service) Contribute(ctx context.Context, campaignID int64, contributor int, amount int64) (*ledger.Campaign, error) {
	traceID := trace.FromContext(ctx)

	c, err := s.ledger.Contribute(campaignID, contributor, amount, func(c *ledger.Campaign) error {
		events := []Event{{
			RoutingKey: contracts.RoutingKeyContributionMade,
			Payload: contracts.ContributionMadePayload{
				TraceID:     traceID,
				CampaignID:  c.ID,
				Contributor: contributor,
				Amount:      amount,
			},
		}}
		return s.store.RecordContribution(ctx, c, contributor, amount, events)
	})
	if err != nil {
		metrics.IncrementContribution("rejected")
		return nil, err
	}

	metrics.IncrementContribution("accepted")
	s.invalidateDetails(ctx, campaignID)
	s.logger.Info("contribution accepted",
		zap.Int64("campaign_id", campaignID),
		zap.Int("contributor", contributor),
		zap.Int64("amount", amount),
		zap.Int64("raised", c.Raised),
	)

	return c, nil
}

// ReleaseFunds releases the next milestone to the campaign creator and
// emits milestone-reached and funds-released events.
func (s *Service) ReleaseFunds(ctx context.Context, campaignID int64, caller int) (ledger.ReleaseResult, error) {
	traceID := trace.FromContext(ctx)

	res, err := s.ledger.ReleaseFunds(campaignID, caller, func(c *ledger.Campaign, res ledger.ReleaseResult) error {
		events := []Event{
			{
				RoutingKey: contracts.RoutingKeyMilestoneReached,
				Payload: contracts.MilestoneReachedPayload{
					TraceID:          traceID,
					CampaignID:       c.ID,
					CurrentMilestone: res.CurrentMilestone,
				},
			},
			{
				RoutingKey: contracts.RoutingKeyFundsReleased,
				Payload: contracts.FundsReleasedPayload{
					TraceID:    traceID,
					CampaignID: c.ID,
					Amount:     res.Amount,
				},
			},
		}
		return s.store.CommitRelease(ctx, c, res, events)
	})
	if err != nil {
		return ledger.ReleaseResult{}, err
	}

	metrics.AddFundsReleased(res.Amount)
	s.invalidateDetails(ctx, campaignID)
	s.logger.Info("milestone released",
		zap.Int64("campaign_id", campaignID),
		zap.Int("milestone_index", res.MilestoneIndex),
		zap.Int64("amount", res.Amount),
		zap.Bool("completed", res.Completed),
	)

	return res, nil
}

// CampaignDetails returns the read projection of a campaign, served from
// the Redis cache when possible. Unknown ids yield zero-valued details.
func (s *Service) CampaignDetails(ctx context.Context, campaignID int64) ledger.CampaignDetails {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, detailsCacheKey(campaignID)).Result()
		if err == nil {
			var d ledger.CampaignDetails
			if err := json.Unmarshal([]byte(cached), &d); err == nil {
				return d
			}
		}
	}

	d := s.ledger.CampaignDetails(campaignID)

	if s.cache != nil && d.ID != 0 {
		if data, err := json.Marshal(d); err == nil {
			if err := s.cache.Set(ctx, detailsCacheKey(campaignID), data, detailsCacheTTL).Err(); err != nil {
				s.logger.Warn("failed to cache campaign details",
					zap.Int64("campaign_id", campaignID),
					zap.Error(err),
				)
			}
		}
	}

	return d
}

// MilestoneDetails returns one milestone of a campaign.
func (s *Service) MilestoneDetails(campaignID int64, index int) (ledger.MilestoneDetails, error) {
	return s.ledger.MilestoneDetails(campaignID, index)
}

// ListCampaigns returns all campaign projections in id order.
func (s *Service) ListCampaigns() []ledger.CampaignDetails {
	return s.ledger.ListCampaigns()
}

// TotalCampaigns returns how many campaigns have ever been created.
func (s *Service) TotalCampaigns() int64 {
	return s.ledger.TotalCampaigns()
}

func (s *Service) invalidateDetails(ctx context.Context, campaignID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, detailsCacheKey(campaignID)).Err(); err != nil {
		s.logger.Warn("failed to invalidate campaign cache",
			zap.Int64("campaign_id", campaignID),
			zap.Error(err),
		)
	}
}

func detailsCacheKey(campaignID int64) string {
	return fmt.Sprintf("campaign:details:%d", campaignID)
}
