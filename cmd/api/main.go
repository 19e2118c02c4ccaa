package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"crowdfund-service/internal/config"
	"crowdfund-service/internal/handler"
	"crowdfund-service/internal/httpserver"
	"crowdfund-service/internal/repository"
	"crowdfund-service/internal/service/auth"
	"crowdfund-service/internal/service/funding"
	"crowdfund-service/pkg/db"
	"crowdfund-service/pkg/logger"
	"crowdfund-service/pkg/mq"
	"crowdfund-service/pkg/otel"
	"crowdfund-service/pkg/outbox"
	"crowdfund-service/pkg/redis"
)

func main() {
	cfg := config.Load()

	logger := logger.NewLogger()
	defer logger.Sync()

	shutdownTracing, err := otel.Init(otel.Config{
		ServiceName:    "crowdfund-api",
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.Otel.Endpoint,
		Enabled:        cfg.Otel.Enabled,
	}, logger)
	if err != nil {
		logger.Fatal("Tracing initialization failed", zap.Error(err))
	}
	defer shutdownTracing()

	// DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb := redis.NewRedisClient(cfg.Redis)
	defer rdb.Close()

	// Repositories
	userRepo := repository.NewUserRepository(dbConn)
	notificationRepo := repository.NewNotificationRepository(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)
	fundingStore := repository.NewFundingStore(dbConn, outboxRepo)

	// MQ publisher (used by the admin replay endpoints)
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		logger.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Services
	authService := auth.NewService(userRepo, cfg.JWT.Secret, cfg.Wallet.OpeningBalance, logger)
	fundingService := funding.NewService(fundingStore, rdb, logger)
	if err := fundingService.Init(context.Background()); err != nil {
		logger.Fatal("Failed to hydrate campaign ledger", zap.Error(err))
	}
	replayService := outbox.NewReplayService(outboxRepo, publisher)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, logger)
	campaignHandler := handler.NewCampaignHandler(fundingService, logger)
	notificationHandler := handler.NewNotificationHandler(notificationRepo, logger)
	adminHandler := handler.NewAdminHandler(replayService, logger)

	// Router
	router := httpserver.NewRouter(
		authHandler,
		campaignHandler,
		notificationHandler,
		adminHandler,
		cfg.JWT.Secret,
		dbConn,
		publisher,
	)

	logger.Info("Starting crowdfund API", zap.String("port", cfg.Server.Port))
	if err := router.Run(cfg.Server.Port); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}
