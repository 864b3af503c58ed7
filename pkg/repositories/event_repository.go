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

// EventRepository provides append-only access to the event log. Events
// are never updated or deleted.
type EventRepository interface {
	Insert(ctx context.Context, event *models.Event) error
	GetByID(ctx context.Context, creatorID, eventID uuid.UUID) (*models.Event, error)
	ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Event, error)
	ListByType(ctx context.Context, creatorID uuid.UUID, eventType string, since time.Time, limit int) ([]*models.Event, error)
}

type eventRepository struct {
	db database.Querier
}

// NewEventRepository creates a new EventRepository backed by db. Pass a
// transaction to make the insert atomic with the context update.
func NewEventRepository(db database.Querier) EventRepository {
	return &eventRepository{db: db}
}

var _ EventRepository = (*eventRepository)(nil)

func (r *eventRepository) Insert(ctx context.Context, event *models.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	query := `
		INSERT INTO events (id, creator_id, consumer_id, type, source, payload, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := r.db.QueryRow(ctx, query,
		event.ID,
		event.CreatorID,
		event.ConsumerID,
		event.Type,
		event.Source,
		jsonbValue(event.Payload),
		event.Timestamp,
	).Scan(&event.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateEvent
		}
		return fmt.Errorf("failed to insert event: %w", err)
	}

	return nil
}

func (r *eventRepository) GetByID(ctx context.Context, creatorID, eventID uuid.UUID) (*models.Event, error) {
	query := `
		SELECT id, creator_id, consumer_id, type, source, payload, timestamp, created_at
		FROM events
		WHERE creator_id = $1 AND id = $2`

	var e models.Event
	err := r.db.QueryRow(ctx, query, creatorID, eventID).Scan(
		&e.ID, &e.CreatorID, &e.ConsumerID, &e.Type, &e.Source,
		&e.Payload, &e.Timestamp, &e.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

func (r *eventRepository) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, creator_id, consumer_id, type, source, payload, timestamp, created_at
		FROM events
		WHERE creator_id = $1 AND consumer_id = $2
		ORDER BY timestamp DESC
		LIMIT $3`

	return r.list(ctx, query, creatorID, consumerID, limit)
}

func (r *eventRepository) ListByType(ctx context.Context, creatorID uuid.UUID, eventType string, since time.Time, limit int) ([]*models.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, creator_id, consumer_id, type, source, payload, timestamp, created_at
		FROM events
		WHERE creator_id = $1 AND type = $2 AND timestamp >= $3
		ORDER BY timestamp DESC
		LIMIT $4`

	return r.list(ctx, query, creatorID, eventType, since, limit)
}

func (r *eventRepository) list(ctx context.Context, query string, args ...any) ([]*models.Event, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*models.Event
	for rows.Next() {
		var e models.Event
		err := rows.Scan(&e.ID, &e.CreatorID, &e.ConsumerID, &e.Type, &e.Source,
			&e.Payload, &e.Timestamp, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}
