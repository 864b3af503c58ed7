package services

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

const creatorTokenTTL = 30 * 24 * time.Hour

// CreatorService onboards creators and issues their API tokens.
type CreatorService struct {
	repo   repositories.CreatorRepository
	auth   *auth.Service
	logger *zap.Logger
}

// NewCreatorService creates a CreatorService.
func NewCreatorService(repo repositories.CreatorRepository, authSvc *auth.Service, logger *zap.Logger) *CreatorService {
	return &CreatorService{repo: repo, auth: authSvc, logger: logger}
}

// Onboard registers a creator and returns it with a signed API token.
func (s *CreatorService) Onboard(ctx context.Context, name, email string, settings kv.Map) (*models.Creator, string, error) {
	if name == "" {
		return nil, "", apperrors.NewValidation("name", "required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", apperrors.NewValidation("email", "invalid email address")
	}
	if settings == nil {
		settings = kv.New()
	}

	creator := &models.Creator{
		Name:     name,
		Email:    email,
		Settings: settings,
	}
	if err := s.repo.Create(ctx, creator); err != nil {
		return nil, "", err
	}

	token, err := s.auth.IssueToken(creator.ID.String(), creatorTokenTTL)
	if err != nil {
		return nil, "", err
	}

	s.logger.Info("Creator onboarded",
		zap.String("creator_id", creator.ID.String()),
		zap.String("email", email))

	return creator, token, nil
}

// Get returns one creator.
func (s *CreatorService) Get(ctx context.Context, creatorID uuid.UUID) (*models.Creator, error) {
	return s.repo.GetByID(ctx, creatorID)
}

// UpdateSettings replaces a creator's settings document.
func (s *CreatorService) UpdateSettings(ctx context.Context, creatorID uuid.UUID, settings kv.Map) error {
	return s.repo.UpdateSettings(ctx, creatorID, settings)
}
