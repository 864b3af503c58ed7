package channels

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// EmailSender delivers emails through a provider HTTP API.
type EmailSender struct {
	provider *providerClient
	from     string
	logger   *zap.Logger
}

// NewEmailSender creates an EmailSender for a provider endpoint.
func NewEmailSender(endpoint, apiKey, from string, timeout time.Duration, logger *zap.Logger) *EmailSender {
	return &EmailSender{
		provider: newProviderClient(endpoint, apiKey, timeout),
		from:     from,
		logger:   logger,
	}
}

var _ Sender = (*EmailSender)(nil)

func (s *EmailSender) Send(ctx context.Context, creatorID, consumerID uuid.UUID, payload kv.Map) (kv.Map, error) {
	if err := requireFields(payload, "to", "subject", "body"); err != nil {
		return nil, err
	}

	result, err := s.provider.post(ctx, map[string]any{
		"from":        s.from,
		"to":          payload.GetString("to"),
		"subject":     payload.GetString("subject"),
		"body":        payload.GetString("body"),
		"creator_id":  creatorID.String(),
		"consumer_id": consumerID.String(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Email sent",
		zap.String("creator_id", creatorID.String()),
		zap.String("consumer_id", consumerID.String()),
		zap.String("to", payload.GetString("to")))

	result.SetIfAbsent("channel", kv.String("email"))
	return result, nil
}
