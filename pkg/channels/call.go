package channels

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// CallSender schedules calls through a provider HTTP API. When the
// payload carries no scheduled_time the call is requested immediately.
type CallSender struct {
	provider *providerClient
	logger   *zap.Logger
}

// NewCallSender creates a CallSender for a provider endpoint.
func NewCallSender(endpoint string, timeout time.Duration, logger *zap.Logger) *CallSender {
	return &CallSender{
		provider: newProviderClient(endpoint, "", timeout),
		logger:   logger,
	}
}

var _ Sender = (*CallSender)(nil)

func (s *CallSender) Send(ctx context.Context, creatorID, consumerID uuid.UUID, payload kv.Map) (kv.Map, error) {
	if err := requireFields(payload, "to"); err != nil {
		return nil, err
	}

	callType := "immediate"
	scheduledTime := payload.GetString("scheduled_time")
	if scheduledTime != "" {
		callType = "scheduled"
	}

	result, err := s.provider.post(ctx, map[string]any{
		"to":             payload.GetString("to"),
		"scheduled_time": scheduledTime,
		"call_type":      callType,
		"creator_id":     creatorID.String(),
		"consumer_id":    consumerID.String(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Call scheduled",
		zap.String("creator_id", creatorID.String()),
		zap.String("consumer_id", consumerID.String()),
		zap.String("call_type", callType))

	result.SetIfAbsent("call_type", kv.String(callType))
	return result, nil
}
