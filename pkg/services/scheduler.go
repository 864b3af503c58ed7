package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/channels"
	"github.com/loopreach-ai/loopreach-engine/pkg/config"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

// ExecutionResult reports the outcome of one swept action.
type ExecutionResult struct {
	ActionID uuid.UUID
	Status   models.ActionStatus
	Err      error
}

// Scheduler sweeps due actions and dispatches them through the channel
// registry. Claims are conditional updates, so concurrent sweeps
// execute each action at most once.
type Scheduler struct {
	actions  repositories.ActionRepository
	registry *channels.Registry
	events   *EventService
	cfg      *config.SchedulerConfig
	logger   *zap.Logger
}

// NewScheduler creates a Scheduler. events may be nil to skip recording
// delivery events after execution.
func NewScheduler(
	actions repositories.ActionRepository,
	registry *channels.Registry,
	events *EventService,
	cfg *config.SchedulerConfig,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{actions: actions, registry: registry, events: events, cfg: cfg, logger: logger}
}

// Run sweeps on the configured cadence until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.logger.Info("Scheduler started",
		zap.Duration("sweep_interval", s.cfg.SweepInterval),
		zap.Int("batch_size", s.cfg.BatchSize))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.ExecuteDueActions(ctx, time.Now()); err != nil {
				s.logger.Error("Sweep failed", zap.Error(err))
			}
		}
	}
}

// ExecuteDueActions runs one sweep: select due actions (highest priority
// first, oldest send_at breaking ties), claim each, and dispatch.
// Actions another sweep claimed first are skipped silently. Failures are
// recorded on the action row and never retried.
func (s *Scheduler) ExecuteDueActions(ctx context.Context, now time.Time) ([]ExecutionResult, error) {
	due, err := s.actions.ListDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	var results []ExecutionResult
	for _, action := range due {
		if err := s.actions.Claim(ctx, action.ID); err != nil {
			if errors.Is(err, apperrors.ErrConflict) {
				continue
			}
			s.logger.Error("Failed to claim action",
				zap.String("action_id", action.ID.String()),
				zap.Error(err))
			continue
		}
		results = append(results, s.execute(ctx, action))
	}

	if len(results) > 0 {
		s.logger.Info("Sweep completed", zap.Int("executed", len(results)))
	}
	return results, nil
}

func (s *Scheduler) execute(ctx context.Context, action *models.Action) ExecutionResult {
	sender, err := s.registry.Get(action.Channel)
	if err != nil {
		return s.fail(ctx, action, err)
	}

	result, err := sender.Send(ctx, action.CreatorID, action.ConsumerID, action.Payload)
	if err != nil {
		return s.fail(ctx, action, err)
	}

	if err := s.actions.MarkExecuted(ctx, action.ID, result); err != nil {
		s.logger.Error("Failed to mark action executed",
			zap.String("action_id", action.ID.String()),
			zap.Error(err))
	}

	s.recordDelivery(ctx, action)

	s.logger.Info("Action executed",
		zap.String("action_id", action.ID.String()),
		zap.String("channel", string(action.Channel)))

	return ExecutionResult{ActionID: action.ID, Status: models.ActionExecuted}
}

func (s *Scheduler) fail(ctx context.Context, action *models.Action, cause error) ExecutionResult {
	s.logger.Warn("Action execution failed",
		zap.String("action_id", action.ID.String()),
		zap.String("channel", string(action.Channel)),
		zap.Error(cause))

	if err := s.actions.MarkFailed(ctx, action.ID, cause.Error()); err != nil {
		s.logger.Error("Failed to mark action failed",
			zap.String("action_id", action.ID.String()),
			zap.Error(err))
	}
	return ExecutionResult{ActionID: action.ID, Status: models.ActionFailed, Err: cause}
}

// recordDelivery feeds a system event back into the log so counters
// like emails_sent and payment_links_sent stay current.
func (s *Scheduler) recordDelivery(ctx context.Context, action *models.Action) {
	if s.events == nil {
		return
	}

	var eventType string
	switch action.Channel {
	case models.ChannelEmail:
		eventType = models.EventEmailSent
	case models.ChannelWhatsApp:
		eventType = models.EventWhatsAppSent
	default:
		eventType = models.EventAgentAction
	}

	_, _, err := s.events.Ingest(ctx, action.CreatorID, &EventCreate{
		ConsumerID: action.ConsumerID,
		Type:       eventType,
		Source:     models.SourceSystem,
		Payload: kv.Map{
			"action_id":   kv.String(action.ID.String()),
			"action_type": kv.String(string(action.ActionType)),
			"channel":     kv.String(string(action.Channel)),
		},
	})
	if err != nil {
		s.logger.Error("Failed to record delivery event",
			zap.String("action_id", action.ID.String()),
			zap.Error(err))
	}
}
