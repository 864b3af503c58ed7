package channels

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// WhatsAppSender delivers WhatsApp messages through a Twilio-style HTTP
// API.
type WhatsAppSender struct {
	provider *providerClient
	from     string
	logger   *zap.Logger
}

// NewWhatsAppSender creates a WhatsAppSender for a provider endpoint.
func NewWhatsAppSender(endpoint, apiKey, from string, timeout time.Duration, logger *zap.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		provider: newProviderClient(endpoint, apiKey, timeout),
		from:     from,
		logger:   logger,
	}
}

var _ Sender = (*WhatsAppSender)(nil)

func (s *WhatsAppSender) Send(ctx context.Context, creatorID, consumerID uuid.UUID, payload kv.Map) (kv.Map, error) {
	if err := requireFields(payload, "to", "message"); err != nil {
		return nil, err
	}

	result, err := s.provider.post(ctx, map[string]any{
		"from":        s.from,
		"to":          payload.GetString("to"),
		"message":     payload.GetString("message"),
		"creator_id":  creatorID.String(),
		"consumer_id": consumerID.String(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("WhatsApp message sent",
		zap.String("creator_id", creatorID.String()),
		zap.String("consumer_id", consumerID.String()))

	result.SetIfAbsent("channel", kv.String("whatsapp"))
	return result, nil
}
