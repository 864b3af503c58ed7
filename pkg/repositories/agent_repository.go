package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/database"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// AgentRepository provides data access for agents and their triggers.
type AgentRepository interface {
	Create(ctx context.Context, agent *models.Agent) error
	Update(ctx context.Context, agent *models.Agent) error
	Delete(ctx context.Context, agentID uuid.UUID) error
	GetByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error)
	// ListForCreator returns enabled agents visible to a creator:
	// creator-owned plus global (NULL creator_id) agents, triggers
	// included.
	ListForCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error)
	ListAll(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error)
	AddTrigger(ctx context.Context, trigger *models.AgentTrigger) error
	DeleteTrigger(ctx context.Context, triggerID uuid.UUID) error
}

type agentRepository struct {
	db database.Querier
}

// NewAgentRepository creates a new AgentRepository backed by db.
func NewAgentRepository(db database.Querier) AgentRepository {
	return &agentRepository{db: db}
}

var _ AgentRepository = (*agentRepository)(nil)

func (r *agentRepository) Create(ctx context.Context, agent *models.Agent) error {
	if agent.ID == uuid.Nil {
		agent.ID = uuid.New()
	}

	query := `
		INSERT INTO agents (id, creator_id, name, implementation, config, enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		agent.ID,
		agent.CreatorID,
		agent.Name,
		agent.Implementation,
		jsonbValue(agent.Config),
		agent.Enabled,
	).Scan(&agent.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	for i := range agent.Triggers {
		agent.Triggers[i].AgentID = agent.ID
		if err := r.AddTrigger(ctx, &agent.Triggers[i]); err != nil {
			return err
		}
	}

	return nil
}

func (r *agentRepository) Update(ctx context.Context, agent *models.Agent) error {
	query := `
		UPDATE agents
		SET name = $2, implementation = $3, config = $4, enabled = $5
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query,
		agent.ID,
		agent.Name,
		agent.Implementation,
		jsonbValue(agent.Config),
		agent.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to update agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *agentRepository) Delete(ctx context.Context, agentID uuid.UUID) error {
	query := `DELETE FROM agents WHERE id = $1`

	result, err := r.db.Exec(ctx, query, agentID)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *agentRepository) GetByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error) {
	query := `
		SELECT id, creator_id, name, implementation, config, enabled, created_at
		FROM agents
		WHERE id = $1`

	var a models.Agent
	err := r.db.QueryRow(ctx, query, agentID).Scan(
		&a.ID, &a.CreatorID, &a.Name, &a.Implementation, &a.Config, &a.Enabled, &a.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	if err := r.attachTriggers(ctx, []*models.Agent{&a}); err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *agentRepository) ListForCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error) {
	query := `
		SELECT id, creator_id, name, implementation, config, enabled, created_at
		FROM agents
		WHERE (creator_id = $1 OR creator_id IS NULL) AND enabled
		ORDER BY created_at`

	return r.listWithTriggers(ctx, query, creatorID)
}

func (r *agentRepository) ListAll(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error) {
	query := `
		SELECT id, creator_id, name, implementation, config, enabled, created_at
		FROM agents
		WHERE creator_id = $1 OR creator_id IS NULL
		ORDER BY created_at`

	return r.listWithTriggers(ctx, query, creatorID)
}

func (r *agentRepository) AddTrigger(ctx context.Context, trigger *models.AgentTrigger) error {
	if trigger.ID == uuid.Nil {
		trigger.ID = uuid.New()
	}

	query := `
		INSERT INTO agent_triggers (id, agent_id, event_type, filter)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query,
		trigger.ID,
		trigger.AgentID,
		trigger.EventType,
		jsonbValue(trigger.Filter),
	)
	if err != nil {
		return fmt.Errorf("failed to add agent trigger: %w", err)
	}

	return nil
}

func (r *agentRepository) DeleteTrigger(ctx context.Context, triggerID uuid.UUID) error {
	query := `DELETE FROM agent_triggers WHERE id = $1`

	result, err := r.db.Exec(ctx, query, triggerID)
	if err != nil {
		return fmt.Errorf("failed to delete agent trigger: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *agentRepository) listWithTriggers(ctx context.Context, query string, args ...any) ([]*models.Agent, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*models.Agent
	for rows.Next() {
		var a models.Agent
		err := rows.Scan(&a.ID, &a.CreatorID, &a.Name, &a.Implementation,
			&a.Config, &a.Enabled, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent: %w", err)
		}
		agents = append(agents, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachTriggers(ctx, agents); err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *agentRepository) attachTriggers(ctx context.Context, agents []*models.Agent) error {
	if len(agents) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(agents))
	byID := make(map[uuid.UUID]*models.Agent, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
		byID[a.ID] = a
	}

	query := `
		SELECT id, agent_id, event_type, filter
		FROM agent_triggers
		WHERE agent_id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("failed to list agent triggers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t models.AgentTrigger
		if err := rows.Scan(&t.ID, &t.AgentID, &t.EventType, &t.Filter); err != nil {
			return fmt.Errorf("failed to scan agent trigger: %w", err)
		}
		if a, ok := byID[t.AgentID]; ok {
			a.Triggers = append(a.Triggers, t)
		}
	}
	return rows.Err()
}
