package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/database"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// InvocationRepository provides data access for agent invocation audit
// records.
type InvocationRepository interface {
	Create(ctx context.Context, inv *models.AgentInvocation) error
	MarkRunning(ctx context.Context, invocationID uuid.UUID) error
	MarkCompleted(ctx context.Context, invocationID uuid.UUID, result kv.Map) error
	MarkFailed(ctx context.Context, invocationID uuid.UUID, errMsg string) error
	GetByID(ctx context.Context, invocationID uuid.UUID) (*models.AgentInvocation, error)
	ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.AgentInvocation, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.AgentInvocation, error)
}

type invocationRepository struct {
	db database.Querier
}

// NewInvocationRepository creates a new InvocationRepository backed by db.
func NewInvocationRepository(db database.Querier) InvocationRepository {
	return &invocationRepository{db: db}
}

var _ InvocationRepository = (*invocationRepository)(nil)

const invocationColumns = `id, agent_id, creator_id, consumer_id, trigger_event_id, status, result, error, created_at, updated_at`

func (r *invocationRepository) Create(ctx context.Context, inv *models.AgentInvocation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.Status == "" {
		inv.Status = models.InvocationPending
	}

	query := `
		INSERT INTO agent_invocations (id, agent_id, creator_id, consumer_id, trigger_event_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		inv.ID,
		inv.AgentID,
		inv.CreatorID,
		inv.ConsumerID,
		inv.TriggerEventID,
		inv.Status,
	).Scan(&inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create invocation: %w", err)
	}

	return nil
}

func (r *invocationRepository) MarkRunning(ctx context.Context, invocationID uuid.UUID) error {
	return r.setStatus(ctx, invocationID, models.InvocationRunning, nil, "")
}

func (r *invocationRepository) MarkCompleted(ctx context.Context, invocationID uuid.UUID, result kv.Map) error {
	return r.setStatus(ctx, invocationID, models.InvocationCompleted, result, "")
}

func (r *invocationRepository) MarkFailed(ctx context.Context, invocationID uuid.UUID, errMsg string) error {
	return r.setStatus(ctx, invocationID, models.InvocationFailed, nil, errMsg)
}

func (r *invocationRepository) setStatus(ctx context.Context, invocationID uuid.UUID, status models.InvocationStatus, result kv.Map, errMsg string) error {
	query := `
		UPDATE agent_invocations
		SET status = $2, result = COALESCE($3, result), error = $4, updated_at = $5
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, invocationID, status, jsonbValue(result), errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update invocation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *invocationRepository) GetByID(ctx context.Context, invocationID uuid.UUID) (*models.AgentInvocation, error) {
	query := `SELECT ` + invocationColumns + ` FROM agent_invocations WHERE id = $1`

	var inv models.AgentInvocation
	err := r.db.QueryRow(ctx, query, invocationID).Scan(
		&inv.ID, &inv.AgentID, &inv.CreatorID, &inv.ConsumerID, &inv.TriggerEventID,
		&inv.Status, &inv.Result, &inv.Error, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invocation: %w", err)
	}
	return &inv, nil
}

func (r *invocationRepository) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.AgentInvocation, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + invocationColumns + `
		FROM agent_invocations
		WHERE creator_id = $1 AND consumer_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	return r.list(ctx, query, creatorID, consumerID, limit)
}

func (r *invocationRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.AgentInvocation, error) {
	query := `
		SELECT ` + invocationColumns + `
		FROM agent_invocations
		WHERE trigger_event_id = $1
		ORDER BY created_at`

	return r.list(ctx, query, eventID)
}

func (r *invocationRepository) list(ctx context.Context, query string, args ...any) ([]*models.AgentInvocation, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invocations: %w", err)
	}
	defer rows.Close()

	var invocations []*models.AgentInvocation
	for rows.Next() {
		var inv models.AgentInvocation
		err := rows.Scan(&inv.ID, &inv.AgentID, &inv.CreatorID, &inv.ConsumerID,
			&inv.TriggerEventID, &inv.Status, &inv.Result, &inv.Error,
			&inv.CreatedAt, &inv.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invocation: %w", err)
		}
		invocations = append(invocations, &inv)
	}
	return invocations, rows.Err()
}
