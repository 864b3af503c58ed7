package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/database"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// ContextRepository provides data access for consumer contexts, the
// materialized aggregate over the event log.
type ContextRepository interface {
	Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error)
	// GetForUpdate locks the row for the duration of the surrounding
	// transaction. Callers must pass a transaction-scoped repository.
	GetForUpdate(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error)
	Upsert(ctx context.Context, cc *models.ConsumerContext) error
	ListByStage(ctx context.Context, creatorID uuid.UUID, stage models.Stage, limit int) ([]*models.ConsumerContext, error)
}

type contextRepository struct {
	db database.Querier
}

// NewContextRepository creates a new ContextRepository backed by db.
func NewContextRepository(db database.Querier) ContextRepository {
	return &contextRepository{db: db}
}

var _ ContextRepository = (*contextRepository)(nil)

const contextColumns = `creator_id, consumer_id, stage, metrics, attributes, last_seen_at, updated_at`

func (r *contextRepository) Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error) {
	query := `
		SELECT ` + contextColumns + `
		FROM consumer_contexts
		WHERE creator_id = $1 AND consumer_id = $2`

	return r.scanOne(r.db.QueryRow(ctx, query, creatorID, consumerID))
}

func (r *contextRepository) GetForUpdate(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error) {
	query := `
		SELECT ` + contextColumns + `
		FROM consumer_contexts
		WHERE creator_id = $1 AND consumer_id = $2
		FOR UPDATE`

	return r.scanOne(r.db.QueryRow(ctx, query, creatorID, consumerID))
}

func (r *contextRepository) Upsert(ctx context.Context, cc *models.ConsumerContext) error {
	cc.UpdatedAt = time.Now()

	query := `
		INSERT INTO consumer_contexts (creator_id, consumer_id, stage, metrics, attributes, last_seen_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (creator_id, consumer_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			metrics = EXCLUDED.metrics,
			attributes = EXCLUDED.attributes,
			last_seen_at = EXCLUDED.last_seen_at,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.Exec(ctx, query,
		cc.CreatorID,
		cc.ConsumerID,
		cc.Stage,
		jsonbValue(cc.Metrics),
		jsonbValue(cc.Attributes),
		cc.LastSeenAt,
		cc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert consumer context: %w", err)
	}

	return nil
}

func (r *contextRepository) ListByStage(ctx context.Context, creatorID uuid.UUID, stage models.Stage, limit int) ([]*models.ConsumerContext, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + contextColumns + `
		FROM consumer_contexts
		WHERE creator_id = $1 AND stage = $2
		ORDER BY updated_at DESC
		LIMIT $3`

	rows, err := r.db.Query(ctx, query, creatorID, stage, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumer contexts: %w", err)
	}
	defer rows.Close()

	var contexts []*models.ConsumerContext
	for rows.Next() {
		var cc models.ConsumerContext
		err := rows.Scan(&cc.CreatorID, &cc.ConsumerID, &cc.Stage,
			&cc.Metrics, &cc.Attributes, &cc.LastSeenAt, &cc.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan consumer context: %w", err)
		}
		contexts = append(contexts, &cc)
	}
	return contexts, rows.Err()
}

func (r *contextRepository) scanOne(row pgx.Row) (*models.ConsumerContext, error) {
	var cc models.ConsumerContext
	err := row.Scan(&cc.CreatorID, &cc.ConsumerID, &cc.Stage,
		&cc.Metrics, &cc.Attributes, &cc.LastSeenAt, &cc.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consumer context: %w", err)
	}
	return &cc, nil
}
