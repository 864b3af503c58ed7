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

// ConsumerRepository provides data access for consumers (leads).
type ConsumerRepository interface {
	Create(ctx context.Context, consumer *models.Consumer) error
	Update(ctx context.Context, consumer *models.Consumer) error
	GetByID(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.Consumer, error)
	GetByEmail(ctx context.Context, creatorID uuid.UUID, email string) (*models.Consumer, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]*models.Consumer, error)
	Delete(ctx context.Context, creatorID, consumerID uuid.UUID) error
}

type consumerRepository struct {
	db database.Querier
}

// NewConsumerRepository creates a new ConsumerRepository backed by db.
func NewConsumerRepository(db database.Querier) ConsumerRepository {
	return &consumerRepository{db: db}
}

var _ ConsumerRepository = (*consumerRepository)(nil)

func (r *consumerRepository) Create(ctx context.Context, consumer *models.Consumer) error {
	if consumer.ID == uuid.Nil {
		consumer.ID = uuid.New()
	}

	query := `
		INSERT INTO consumers (id, creator_id, name, email, phone, whatsapp, timezone, consent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		consumer.ID,
		consumer.CreatorID,
		consumer.Name,
		consumer.Email,
		consumer.Phone,
		consumer.WhatsApp,
		consumer.Timezone,
		jsonbValue(consumer.Consent),
	).Scan(&consumer.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	return nil
}

func (r *consumerRepository) Update(ctx context.Context, consumer *models.Consumer) error {
	query := `
		UPDATE consumers
		SET name = $3, email = $4, phone = $5, whatsapp = $6, timezone = $7, consent = $8
		WHERE creator_id = $1 AND id = $2`

	result, err := r.db.Exec(ctx, query,
		consumer.CreatorID,
		consumer.ID,
		consumer.Name,
		consumer.Email,
		consumer.Phone,
		consumer.WhatsApp,
		consumer.Timezone,
		jsonbValue(consumer.Consent),
	)
	if err != nil {
		return fmt.Errorf("failed to update consumer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *consumerRepository) GetByID(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.Consumer, error) {
	query := `
		SELECT id, creator_id, name, email, phone, whatsapp, timezone, consent, created_at
		FROM consumers
		WHERE creator_id = $1 AND id = $2`

	return r.scanOne(r.db.QueryRow(ctx, query, creatorID, consumerID))
}

func (r *consumerRepository) GetByEmail(ctx context.Context, creatorID uuid.UUID, email string) (*models.Consumer, error) {
	query := `
		SELECT id, creator_id, name, email, phone, whatsapp, timezone, consent, created_at
		FROM consumers
		WHERE creator_id = $1 AND email = $2
		ORDER BY created_at
		LIMIT 1`

	return r.scanOne(r.db.QueryRow(ctx, query, creatorID, email))
}

func (r *consumerRepository) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]*models.Consumer, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, creator_id, name, email, phone, whatsapp, timezone, consent, created_at
		FROM consumers
		WHERE creator_id = $1
		ORDER BY created_at
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, creatorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list consumers: %w", err)
	}
	defer rows.Close()

	var consumers []*models.Consumer
	for rows.Next() {
		var c models.Consumer
		err := rows.Scan(&c.ID, &c.CreatorID, &c.Name, &c.Email, &c.Phone,
			&c.WhatsApp, &c.Timezone, &c.Consent, &c.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan consumer: %w", err)
		}
		consumers = append(consumers, &c)
	}
	return consumers, rows.Err()
}

func (r *consumerRepository) Delete(ctx context.Context, creatorID, consumerID uuid.UUID) error {
	query := `DELETE FROM consumers WHERE creator_id = $1 AND id = $2`

	result, err := r.db.Exec(ctx, query, creatorID, consumerID)
	if err != nil {
		return fmt.Errorf("failed to delete consumer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *consumerRepository) scanOne(row pgx.Row) (*models.Consumer, error) {
	var c models.Consumer
	err := row.Scan(&c.ID, &c.CreatorID, &c.Name, &c.Email, &c.Phone,
		&c.WhatsApp, &c.Timezone, &c.Consent, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get consumer: %w", err)
	}
	return &c, nil
}
