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

// ActionRepository provides data access for scheduled actions.
type ActionRepository interface {
	Create(ctx context.Context, action *models.Action) error
	GetByID(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error)
	ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Action, error)
	ListByStatus(ctx context.Context, creatorID uuid.UUID, status models.ActionStatus, limit int) ([]*models.Action, error)
	// ListDue returns planned and approved actions whose send_at has
	// passed, highest priority first, oldest send_at breaking ties.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Action, error)
	// Claim transitions an action to executing if and only if it is
	// still in a sweepable status. Returns ErrConflict when another
	// sweep already claimed it, which callers treat as "skip".
	Claim(ctx context.Context, actionID uuid.UUID) error
	MarkExecuted(ctx context.Context, actionID uuid.UUID, result kv.Map) error
	MarkFailed(ctx context.Context, actionID uuid.UUID, errMsg string) error
	SetStatus(ctx context.Context, creatorID, actionID uuid.UUID, status models.ActionStatus) error
	// CountSentSince counts executed or executing actions on a channel
	// for one consumer since a cutoff. Rate-limit input.
	CountSentSince(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, since time.Time) (int, error)
}

type actionRepository struct {
	db database.Querier
}

// NewActionRepository creates a new ActionRepository backed by db.
func NewActionRepository(db database.Querier) ActionRepository {
	return &actionRepository{db: db}
}

var _ ActionRepository = (*actionRepository)(nil)

const actionColumns = `id, agent_invocation_id, creator_id, consumer_id, action_type, channel,
	payload, send_at, priority, status, policy_decision, result, error, created_at, updated_at`

func (r *actionRepository) Create(ctx context.Context, action *models.Action) error {
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	if action.Status == "" {
		action.Status = models.ActionPlanned
	}
	if action.Priority == 0 {
		action.Priority = 1.0
	}

	query := `
		INSERT INTO actions (id, agent_invocation_id, creator_id, consumer_id, action_type,
			channel, payload, send_at, priority, status, policy_decision)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		action.ID,
		action.InvocationID,
		action.CreatorID,
		action.ConsumerID,
		action.ActionType,
		action.Channel,
		jsonbValue(action.Payload),
		action.SendAt,
		action.Priority,
		action.Status,
		jsonbValue(action.PolicyDecision),
	).Scan(&action.CreatedAt, &action.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create action: %w", err)
	}

	return nil
}

func (r *actionRepository) GetByID(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions WHERE creator_id = $1 AND id = $2`

	var a models.Action
	err := r.db.QueryRow(ctx, query, creatorID, actionID).Scan(
		&a.ID, &a.InvocationID, &a.CreatorID, &a.ConsumerID, &a.ActionType, &a.Channel,
		&a.Payload, &a.SendAt, &a.Priority, &a.Status, &a.PolicyDecision,
		&a.Result, &a.Error, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get action: %w", err)
	}
	return &a, nil
}

func (r *actionRepository) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Action, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + actionColumns + `
		FROM actions
		WHERE creator_id = $1 AND consumer_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	return r.list(ctx, query, creatorID, consumerID, limit)
}

func (r *actionRepository) ListByStatus(ctx context.Context, creatorID uuid.UUID, status models.ActionStatus, limit int) ([]*models.Action, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + actionColumns + `
		FROM actions
		WHERE creator_id = $1 AND status = $2
		ORDER BY send_at
		LIMIT $3`

	return r.list(ctx, query, creatorID, status, limit)
}

func (r *actionRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Action, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + actionColumns + `
		FROM actions
		WHERE status IN ('planned', 'approved') AND send_at <= $1
		ORDER BY priority DESC, send_at ASC
		LIMIT $2`

	return r.list(ctx, query, now, limit)
}

func (r *actionRepository) Claim(ctx context.Context, actionID uuid.UUID) error {
	query := `
		UPDATE actions
		SET status = 'executing', updated_at = $2
		WHERE id = $1 AND status IN ('planned', 'approved')`

	tag, err := r.db.Exec(ctx, query, actionID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to claim action: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrConflict
	}

	return nil
}

func (r *actionRepository) MarkExecuted(ctx context.Context, actionID uuid.UUID, result kv.Map) error {
	query := `
		UPDATE actions
		SET status = 'executed', result = $2, error = '', updated_at = $3
		WHERE id = $1 AND status = 'executing'`

	tag, err := r.db.Exec(ctx, query, actionID, jsonbValue(result), time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark action executed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *actionRepository) MarkFailed(ctx context.Context, actionID uuid.UUID, errMsg string) error {
	query := `
		UPDATE actions
		SET status = 'failed', error = $2, updated_at = $3
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, actionID, errMsg, time.Now())
	if err != nil {
		return fmt.Errorf("failed to mark action failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *actionRepository) SetStatus(ctx context.Context, creatorID, actionID uuid.UUID, status models.ActionStatus) error {
	query := `
		UPDATE actions
		SET status = $3, updated_at = $4
		WHERE creator_id = $1 AND id = $2`

	tag, err := r.db.Exec(ctx, query, creatorID, actionID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set action status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *actionRepository) CountSentSince(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM actions
		WHERE creator_id = $1 AND consumer_id = $2 AND channel = $3
		  AND status IN ('executing', 'executed')
		  AND updated_at >= $4`

	var count int
	err := r.db.QueryRow(ctx, query, creatorID, consumerID, channel, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sent actions: %w", err)
	}
	return count, nil
}

func (r *actionRepository) list(ctx context.Context, query string, args ...any) ([]*models.Action, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer rows.Close()

	var actions []*models.Action
	for rows.Next() {
		var a models.Action
		err := rows.Scan(&a.ID, &a.InvocationID, &a.CreatorID, &a.ConsumerID,
			&a.ActionType, &a.Channel, &a.Payload, &a.SendAt, &a.Priority,
			&a.Status, &a.PolicyDecision, &a.Result, &a.Error, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}
