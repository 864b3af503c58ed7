// Package services holds the domain logic: event ingestion, consumer
// context aggregation, agent matching and orchestration, policy
// guardrails, and the action scheduler. Services depend on repository
// interfaces so tests can swap in fakes and the ingestion path can run
// repositories against a transaction.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/config"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

// ContextService maintains the consumer-context aggregate. Writes happen
// only through UpdateFromEvent, inside the event-insertion transaction.
type ContextService struct {
	repo   repositories.ContextRepository
	stages *config.StageConfig
	logger *zap.Logger
}

// NewContextService creates a ContextService. repo is the pool-backed
// repository used for reads; UpdateFromEvent takes its own
// transaction-scoped repository.
func NewContextService(repo repositories.ContextRepository, stages *config.StageConfig, logger *zap.Logger) *ContextService {
	return &ContextService{repo: repo, stages: stages, logger: logger}
}

// Get returns the context for a consumer, or ErrNotFound when no event
// has been recorded yet.
func (s *ContextService) Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error) {
	return s.repo.Get(ctx, creatorID, consumerID)
}

// ListByStage returns contexts in a lifecycle stage for a creator.
func (s *ContextService) ListByStage(ctx context.Context, creatorID uuid.UUID, stage models.Stage, limit int) ([]*models.ConsumerContext, error) {
	return s.repo.ListByStage(ctx, creatorID, stage, limit)
}

// EngagementScore computes the weighted engagement score from metrics.
func (s *ContextService) EngagementScore(metrics kv.Map) int64 {
	return metrics.GetInt("page_views")*s.stages.PageViewWeight +
		metrics.GetInt("emails_opened")*s.stages.EmailOpenedWeight +
		metrics.GetInt("whatsapp_messages_received")*s.stages.WhatsAppReceivedWeight
}

// UpdateFromEvent folds one event into the consumer context and
// recomputes the stage. It must run with a transaction-scoped repository
// so the event insert and the context update commit together. The same
// event applied twice yields the same context except for counters, which
// only ever increase.
func (s *ContextService) UpdateFromEvent(ctx context.Context, repo repositories.ContextRepository, event *models.Event) (*models.ConsumerContext, error) {
	cc, err := repo.GetForUpdate(ctx, event.CreatorID, event.ConsumerID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		cc = &models.ConsumerContext{
			CreatorID:  event.CreatorID,
			ConsumerID: event.ConsumerID,
			Stage:      models.StageNew,
			Metrics:    kv.New(),
			Attributes: kv.New(),
		}
	}
	if cc.Metrics == nil {
		cc.Metrics = kv.New()
	}

	if cc.LastSeenAt == nil || event.Timestamp.After(*cc.LastSeenAt) {
		ts := event.Timestamp
		cc.LastSeenAt = &ts
	}

	s.applyMetrics(cc, event)
	s.copyIdentity(cc, event)
	s.recomputeStage(cc, event)

	if err := repo.Upsert(ctx, cc); err != nil {
		return nil, err
	}

	s.logger.Debug("Context updated from event",
		zap.String("creator_id", event.CreatorID.String()),
		zap.String("consumer_id", event.ConsumerID.String()),
		zap.String("event_type", event.Type),
		zap.String("stage", string(cc.Stage)))

	return cc, nil
}

func (s *ContextService) applyMetrics(cc *models.ConsumerContext, event *models.Event) {
	m := cc.Metrics
	ts := event.Timestamp.Format(time.RFC3339)

	switch event.Type {
	case models.EventPageView:
		m.Incr("page_views", 1)
		m.Set("last_page_view", kv.String(ts))
	case models.EventEmailSent:
		m.Incr("emails_sent", 1)
		m.Set("last_email_sent", kv.String(ts))
	case models.EventEmailOpened:
		m.Incr("emails_opened", 1)
	case models.EventEmailReplied:
		m.Incr("emails_replied", 1)
	case models.EventWhatsAppSent:
		m.Incr("whatsapp_messages_sent", 1)
		m.Set("last_whatsapp_sent", kv.String(ts))
	case models.EventWhatsAppReceived:
		m.Incr("whatsapp_messages_received", 1)
	case models.EventBookingCreated:
		m.Incr("bookings", 1)
	case models.EventPaymentSuccess:
		m.Incr("revenue_cents", event.Payload.GetInt("amount_cents"))
	case models.EventAgentAction:
		if event.Payload.GetString("action_type") == string(models.ActionSendPaymentLink) {
			m.Incr("payment_links_sent", 1)
		}
	}
}

// copyIdentity lifts contact fields from the payload into metrics so
// later agents can reach the consumer without replaying the event log.
// Existing values win.
func (s *ContextService) copyIdentity(cc *models.ConsumerContext, event *models.Event) {
	for _, field := range []string{"email", "phone", "whatsapp", "name"} {
		if v := event.Payload.GetString(field); v != "" {
			cc.Metrics.SetIfAbsent(field, kv.String(v))
		}
	}
}

func (s *ContextService) recomputeStage(cc *models.ConsumerContext, event *models.Event) {
	// Terminal stages never downgrade.
	if cc.Stage == models.StageConverted || cc.Stage == models.StageChurned {
		return
	}

	if s.stages.ConversionEvents()[event.Type] {
		cc.Stage = models.StageConverted
		return
	}

	score := s.EngagementScore(cc.Metrics)
	switch {
	case score >= s.stages.EngagedScore:
		cc.Stage = models.StageEngaged
	case score >= s.stages.InterestedScore:
		cc.Stage = models.StageInterested
	}
}
