package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"crowdfund-service/internal/model"
	"crowdfund-service/internal/repository"
	"crowdfund-service/internal/util"
)

var (
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Service struct {
	userRepo       *repository.UserRepository
	jwtSecret      string
	openingBalance int64
	logger         *zap.Logger
}

func NewService(userRepo *repository.UserRepository, jwtSecret string, openingBalance int64, logger *zap.Logger) *Service {
	return &Service{
		userRepo:       userRepo,
		jwtSecret:      jwtSecret,
		openingBalance: openingBalance,
		logger:         logger,
	}
}

// Register creates a new user with a funded wallet.
func (s *Service) Register(ctx context.Context, email, password string) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}

	if err := s.userRepo.CreateUser(ctx, u, s.openingBalance); err != nil {
		return nil, err
	}

	s.logger.Info("user registered",
		zap.Int("user_id", u.ID),
		zap.String("email", u.Email),
	)

	return u, nil
}

// Login checks user credentials and returns a JWT.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}

	if !util.CheckPassword(password, u.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(u.ID, s.jwtSecret)
	if err != nil {
		return "", err
	}

	return token, nil
}
