package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/database"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

const idempotencyTTL = 24 * time.Hour

// EventCreate is the ingestion request for one event.
type EventCreate struct {
	ConsumerID     uuid.UUID          `json:"consumer_id"`
	Type           string             `json:"type"`
	Source         models.EventSource `json:"source"`
	Payload        kv.Map             `json:"payload"`
	Timestamp      time.Time          `json:"timestamp"`
	IdempotencyKey string             `json:"idempotency_key,omitempty"`
}

// EvaluationPublisher enqueues agent-evaluation jobs after the event
// transaction commits.
type EvaluationPublisher interface {
	PublishEvaluation(ctx context.Context, creatorID, consumerID, eventID uuid.UUID) error
}

// idempotencyStore claims idempotency keys. Claim returns false when
// the key was already taken inside the TTL window.
type idempotencyStore interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type redisIdempotencyStore struct {
	client *redis.Client
}

func (s *redisIdempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ok, nil
}

// ingestTx runs fn with event and context repositories bound to one
// transaction.
type ingestTx func(ctx context.Context, fn func(events repositories.EventRepository, contexts repositories.ContextRepository) error) error

// EventService ingests and serves events.
type EventService struct {
	runTx     ingestTx
	events    repositories.EventRepository
	consumers repositories.ConsumerRepository
	contexts  *ContextService
	idem      idempotencyStore
	publisher EvaluationPublisher
	logger    *zap.Logger
}

// NewEventService creates an EventService. redisClient and publisher may
// be nil, which disables idempotency-key dedup and evaluation jobs
// respectively.
func NewEventService(
	db *database.DB,
	events repositories.EventRepository,
	consumers repositories.ConsumerRepository,
	contexts *ContextService,
	redisClient *redis.Client,
	publisher EvaluationPublisher,
	logger *zap.Logger,
) *EventService {
	runTx := func(ctx context.Context, fn func(repositories.EventRepository, repositories.ContextRepository) error) error {
		return db.WithTx(ctx, func(tx pgx.Tx) error {
			return fn(repositories.NewEventRepository(tx), repositories.NewContextRepository(tx))
		})
	}

	svc := &EventService{
		runTx:     runTx,
		events:    events,
		consumers: consumers,
		contexts:  contexts,
		publisher: publisher,
		logger:    logger,
	}
	if redisClient != nil {
		svc.idem = &redisIdempotencyStore{client: redisClient}
	}
	return svc
}

// Ingest validates, persists, and fans out one event. The event insert
// and context update commit in one transaction; the evaluation job is
// published only after the commit.
func (s *EventService) Ingest(ctx context.Context, creatorID uuid.UUID, req *EventCreate) (*models.Event, *models.ConsumerContext, error) {
	if err := s.validate(ctx, creatorID, req); err != nil {
		return nil, nil, err
	}

	if req.IdempotencyKey != "" && s.idem != nil {
		key := fmt.Sprintf("event:idem:%s:%s", creatorID, req.IdempotencyKey)
		claimed, err := s.idem.Claim(ctx, key, idempotencyTTL)
		if err != nil {
			return nil, nil, err
		}
		if !claimed {
			return nil, nil, apperrors.ErrDuplicateEvent
		}
	}

	event := &models.Event{
		ID:         uuid.New(),
		CreatorID:  creatorID,
		ConsumerID: req.ConsumerID,
		Type:       req.Type,
		Source:     req.Source,
		Payload:    req.Payload,
		Timestamp:  req.Timestamp,
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Payload == nil {
		event.Payload = kv.New()
	}

	var cc *models.ConsumerContext
	err := s.runTx(ctx, func(events repositories.EventRepository, contexts repositories.ContextRepository) error {
		if err := events.Insert(ctx, event); err != nil {
			return err
		}
		updated, err := s.contexts.UpdateFromEvent(ctx, contexts, event)
		if err != nil {
			return err
		}
		cc = updated
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishEvaluation(ctx, creatorID, event.ConsumerID, event.ID); err != nil {
			// The event is already committed; evaluation can be
			// replayed, so ingestion still succeeds.
			s.logger.Error("Failed to publish evaluation job",
				zap.String("event_id", event.ID.String()),
				zap.Error(err))
		}
	}

	return event, cc, nil
}

// Get returns one event scoped to a creator.
func (s *EventService) Get(ctx context.Context, creatorID, eventID uuid.UUID) (*models.Event, error) {
	return s.events.GetByID(ctx, creatorID, eventID)
}

// ListByConsumer returns recent events for a consumer, newest first.
func (s *EventService) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Event, error) {
	return s.events.ListByConsumer(ctx, creatorID, consumerID, limit)
}

// ListByType returns recent events of one type for a creator.
func (s *EventService) ListByType(ctx context.Context, creatorID uuid.UUID, eventType string, since time.Time, limit int) ([]*models.Event, error) {
	return s.events.ListByType(ctx, creatorID, eventType, since, limit)
}

func (s *EventService) validate(ctx context.Context, creatorID uuid.UUID, req *EventCreate) error {
	if req.Type == "" {
		return apperrors.NewValidation("type", "required")
	}
	if req.ConsumerID == uuid.Nil {
		return apperrors.NewValidation("consumer_id", "required")
	}
	if !models.ValidSource(req.Source) {
		return apperrors.NewValidation("source", fmt.Sprintf("unknown source %q", req.Source))
	}

	if _, err := s.consumers.GetByID(ctx, creatorID, req.ConsumerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.ErrUnknownConsumer
		}
		return err
	}
	return nil
}
