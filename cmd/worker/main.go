package main

import (
	"time"

	"go.uber.org/zap"

	mqcontracts "crowdfund-service/contracts/mq"
	"crowdfund-service/internal/config"
	"crowdfund-service/internal/mqhandler"
	"crowdfund-service/internal/repository"
	"crowdfund-service/pkg/db"
	"crowdfund-service/pkg/logger"
	"crowdfund-service/pkg/mq"
	"crowdfund-service/pkg/redis"
	"crowdfund-service/pkg/util"
)

func main() {
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	logger.Info("Starting notification worker...")

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	deduper := util.NewDeduperWithLogger(rdb, time.Hour, logger)
	retryCounter := util.NewRetryCounter(rdb, time.Hour)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB connection failed", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("DB ready")

	// Repositories
	notificationRepo := repository.NewNotificationRepository(dbConn)
	campaignRepo := repository.NewCampaignRepository(dbConn)

	// DLQ publisher
	dlqPublisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init DLQ publisher", zap.Error(err))
	}
	defer dlqPublisher.Close()

	dlqRoutingKeys := []string{
		mqcontracts.RoutingKeyCampaignCreated,
		mqcontracts.RoutingKeyContributionMade,
		mqcontracts.RoutingKeyMilestoneReached,
		mqcontracts.RoutingKeyFundsReleased,
	}
	if err := dlqPublisher.SetupDLQ(dlqRoutingKeys); err != nil {
		logger.Fatal("Failed to set up DLQ", zap.Error(err))
	}

	eventHandler := mqhandler.NewCampaignEventHandler(
		notificationRepo, campaignRepo,
		logger, deduper, retryCounter, dlqPublisher,
	)

	consumers := []struct {
		queue      string
		routingKey string
		handle     mq.MessageHandler
	}{
		{"campaign.created.q", mqcontracts.RoutingKeyCampaignCreated, eventHandler.HandleCampaignCreated},
		{"campaign.contribution.q", mqcontracts.RoutingKeyContributionMade, eventHandler.HandleContribution},
		{"campaign.milestone.q", mqcontracts.RoutingKeyMilestoneReached, eventHandler.HandleMilestoneReached},
		{"campaign.released.q", mqcontracts.RoutingKeyFundsReleased, eventHandler.HandleFundsReleased},
	}

	for _, c := range consumers {
		logger.Info("Init consumer", zap.String("queue", c.queue))
		consumer, err := mq.NewConsumer(cfg.MQ.URL, c.queue, c.routingKey, logger)
		if err != nil {
			logger.Fatal("Consumer init failed",
				zap.String("queue", c.queue),
				zap.Error(err),
			)
		}
		consumer.SetHandler(c.handle)

		go func(consumer *mq.Consumer, queue string) {
			if err := consumer.StartConsuming(); err != nil {
				logger.Fatal("Consumer crashed",
					zap.String("queue", queue),
					zap.Error(err),
				)
			}
		}(consumer, c.queue)
		defer consumer.Close()
	}

	logger.Info("Notification worker running")
	select {}
}
