package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

// AgentService manages the agent registry and matches agents to events.
type AgentService struct {
	repo   repositories.AgentRepository
	logger *zap.Logger
}

// NewAgentService creates an AgentService.
func NewAgentService(repo repositories.AgentRepository, logger *zap.Logger) *AgentService {
	return &AgentService{repo: repo, logger: logger}
}

// Create registers an agent with its triggers.
func (s *AgentService) Create(ctx context.Context, agent *models.Agent) error {
	if agent.Name == "" {
		return apperrors.NewValidation("name", "required")
	}
	switch agent.Implementation {
	case models.ImplSimple, models.ImplExternalHTTP, models.ImplGraph:
	default:
		return apperrors.NewValidation("implementation", "must be simple, external_http, or graph")
	}
	if agent.Config == nil {
		agent.Config = kv.New()
	}
	return s.repo.Create(ctx, agent)
}

// Update modifies an agent owned by the creator. Global agents cannot be
// modified through the creator-scoped API.
func (s *AgentService) Update(ctx context.Context, creatorID uuid.UUID, agent *models.Agent) error {
	if err := s.requireOwnership(ctx, creatorID, agent.ID); err != nil {
		return err
	}
	return s.repo.Update(ctx, agent)
}

// Delete removes an agent owned by the creator.
func (s *AgentService) Delete(ctx context.Context, creatorID, agentID uuid.UUID) error {
	if err := s.requireOwnership(ctx, creatorID, agentID); err != nil {
		return err
	}
	return s.repo.Delete(ctx, agentID)
}

// SetEnabled toggles an agent owned by the creator.
func (s *AgentService) SetEnabled(ctx context.Context, creatorID, agentID uuid.UUID, enabled bool) error {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.CreatorID != nil && *agent.CreatorID != creatorID {
		return apperrors.ErrNotFound
	}
	agent.Enabled = enabled
	return s.repo.Update(ctx, agent)
}

// Get returns an agent visible to the creator.
func (s *AgentService) Get(ctx context.Context, creatorID, agentID uuid.UUID) (*models.Agent, error) {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.CreatorID != nil && *agent.CreatorID != creatorID {
		return nil, apperrors.ErrNotFound
	}
	return agent, nil
}

// List returns every agent visible to the creator, triggers included.
func (s *AgentService) List(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error) {
	return s.repo.ListAll(ctx, creatorID)
}

// AddTrigger adds a trigger to an agent owned by the creator.
func (s *AgentService) AddTrigger(ctx context.Context, creatorID uuid.UUID, trigger *models.AgentTrigger) error {
	if trigger.EventType == "" {
		return apperrors.NewValidation("event_type", "required")
	}
	if err := s.requireOwnership(ctx, creatorID, trigger.AgentID); err != nil {
		return err
	}
	return s.repo.AddTrigger(ctx, trigger)
}

// MatchAgents returns the enabled agents whose triggers fire for an
// event. The filter is evaluated against the event payload overlaid
// with the resolved context stage.
func (s *AgentService) MatchAgents(ctx context.Context, event *models.Event, cc *models.ConsumerContext) ([]*models.Agent, error) {
	agents, err := s.repo.ListForCreator(ctx, event.CreatorID)
	if err != nil {
		return nil, err
	}

	doc := event.Payload.Clone()
	if cc != nil {
		doc.Set("stage", kv.String(string(cc.Stage)))
	}

	var matched []*models.Agent
	for _, agent := range agents {
		for _, trigger := range agent.Triggers {
			if trigger.Matches(event.Type, doc) {
				matched = append(matched, agent)
				break
			}
		}
	}

	s.logger.Debug("Matched agents for event",
		zap.String("event_id", event.ID.String()),
		zap.String("event_type", event.Type),
		zap.Int("matched", len(matched)))

	return matched, nil
}

func (s *AgentService) requireOwnership(ctx context.Context, creatorID, agentID uuid.UUID) error {
	agent, err := s.repo.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrNotFound
		}
		return err
	}
	if agent.CreatorID == nil || *agent.CreatorID != creatorID {
		return apperrors.ErrNotFound
	}
	return nil
}
