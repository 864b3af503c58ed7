package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

// ActionService serves the action review surface: listing what agents
// planned and approving or denying it before the sweep picks it up.
type ActionService struct {
	repo   repositories.ActionRepository
	logger *zap.Logger
}

// NewActionService creates an ActionService.
func NewActionService(repo repositories.ActionRepository, logger *zap.Logger) *ActionService {
	return &ActionService{repo: repo, logger: logger}
}

// Get returns one action scoped to a creator.
func (s *ActionService) Get(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	return s.repo.GetByID(ctx, creatorID, actionID)
}

// ListByConsumer returns a consumer's actions, newest first.
func (s *ActionService) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Action, error) {
	return s.repo.ListByConsumer(ctx, creatorID, consumerID, limit)
}

// ListByStatus returns a creator's actions in one status.
func (s *ActionService) ListByStatus(ctx context.Context, creatorID uuid.UUID, status models.ActionStatus, limit int) ([]*models.Action, error) {
	return s.repo.ListByStatus(ctx, creatorID, status, limit)
}

// Approve moves a planned action to approved. Any other starting status
// is a conflict: the sweep may already have claimed it.
func (s *ActionService) Approve(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	return s.transition(ctx, creatorID, actionID, models.ActionApproved, models.ActionPlanned)
}

// Deny moves a planned or approved action to denied, keeping it out of
// the sweep.
func (s *ActionService) Deny(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	return s.transition(ctx, creatorID, actionID, models.ActionDenied, models.ActionPlanned, models.ActionApproved)
}

func (s *ActionService) transition(ctx context.Context, creatorID, actionID uuid.UUID, to models.ActionStatus, from ...models.ActionStatus) (*models.Action, error) {
	action, err := s.repo.GetByID(ctx, creatorID, actionID)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, status := range from {
		if action.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("action is %s: %w", action.Status, apperrors.ErrConflict)
	}

	if err := s.repo.SetStatus(ctx, creatorID, actionID, to); err != nil {
		return nil, err
	}
	action.Status = to

	s.logger.Info("Action reviewed",
		zap.String("action_id", actionID.String()),
		zap.String("status", string(to)))

	return action, nil
}
