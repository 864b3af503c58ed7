package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

// ConsumerService manages leads for a creator.
type ConsumerService struct {
	repo   repositories.ConsumerRepository
	logger *zap.Logger
}

// NewConsumerService creates a ConsumerService.
func NewConsumerService(repo repositories.ConsumerRepository, logger *zap.Logger) *ConsumerService {
	return &ConsumerService{repo: repo, logger: logger}
}

// Create registers a lead. At least one contact field is required.
func (s *ConsumerService) Create(ctx context.Context, consumer *models.Consumer) error {
	if consumer.Email == "" && consumer.Phone == "" && consumer.WhatsApp == "" {
		return apperrors.NewValidation("contact", "at least one of email, phone, whatsapp is required")
	}
	if consumer.Consent == nil {
		consumer.Consent = kv.New()
	}
	return s.repo.Create(ctx, consumer)
}

// Update replaces a lead's mutable fields.
func (s *ConsumerService) Update(ctx context.Context, consumer *models.Consumer) error {
	return s.repo.Update(ctx, consumer)
}

// Get returns one lead scoped to a creator.
func (s *ConsumerService) Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.Consumer, error) {
	return s.repo.GetByID(ctx, creatorID, consumerID)
}

// List pages through a creator's leads.
func (s *ConsumerService) List(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]*models.Consumer, error) {
	return s.repo.ListByCreator(ctx, creatorID, limit, offset)
}

// Delete removes a lead and, via cascade, its events and context.
func (s *ConsumerService) Delete(ctx context.Context, creatorID, consumerID uuid.UUID) error {
	return s.repo.Delete(ctx, creatorID, consumerID)
}

// SetConsent records channel consent for a lead.
func (s *ConsumerService) SetConsent(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, granted bool) error {
	consumer, err := s.repo.GetByID(ctx, creatorID, consumerID)
	if err != nil {
		return err
	}
	if consumer.Consent == nil {
		consumer.Consent = kv.New()
	}
	consumer.Consent.Set(string(channel), kv.Bool(granted))

	s.logger.Info("Consent updated",
		zap.String("consumer_id", consumerID.String()),
		zap.String("channel", string(channel)),
		zap.Bool("granted", granted))

	return s.repo.Update(ctx, consumer)
}
