package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/database"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// CreatorRepository provides data access for creators (tenants).
type CreatorRepository interface {
	Create(ctx context.Context, creator *models.Creator) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Creator, error)
	GetByEmail(ctx context.Context, email string) (*models.Creator, error)
	UpdateSettings(ctx context.Context, id uuid.UUID, settings kv.Map) error
	List(ctx context.Context) ([]*models.Creator, error)
}

type creatorRepository struct {
	db database.Querier
}

// NewCreatorRepository creates a new CreatorRepository backed by db.
func NewCreatorRepository(db database.Querier) CreatorRepository {
	return &creatorRepository{db: db}
}

var _ CreatorRepository = (*creatorRepository)(nil)

func (r *creatorRepository) Create(ctx context.Context, creator *models.Creator) error {
	if creator.ID == uuid.Nil {
		creator.ID = uuid.New()
	}

	query := `
		INSERT INTO creators (id, name, email, settings)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		creator.ID,
		creator.Name,
		creator.Email,
		jsonbValue(creator.Settings),
	).Scan(&creator.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to create creator: %w", err)
	}

	return nil
}

func (r *creatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	query := `
		SELECT id, name, email, settings, created_at
		FROM creators
		WHERE id = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *creatorRepository) GetByEmail(ctx context.Context, email string) (*models.Creator, error) {
	query := `
		SELECT id, name, email, settings, created_at
		FROM creators
		WHERE email = $1`

	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

func (r *creatorRepository) UpdateSettings(ctx context.Context, id uuid.UUID, settings kv.Map) error {
	query := `UPDATE creators SET settings = $2 WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, jsonbValue(settings))
	if err != nil {
		return fmt.Errorf("failed to update creator settings: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func (r *creatorRepository) List(ctx context.Context) ([]*models.Creator, error) {
	query := `
		SELECT id, name, email, settings, created_at
		FROM creators
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list creators: %w", err)
	}
	defer rows.Close()

	var creators []*models.Creator
	for rows.Next() {
		var c models.Creator
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Settings, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan creator: %w", err)
		}
		creators = append(creators, &c)
	}
	return creators, rows.Err()
}

func (r *creatorRepository) scanOne(row pgx.Row) (*models.Creator, error) {
	var c models.Creator
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Settings, &c.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get creator: %w", err)
	}
	return &c, nil
}
