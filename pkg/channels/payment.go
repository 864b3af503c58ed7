package channels

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// PaymentSender generates and delivers payment links through a payment
// provider HTTP API.
type PaymentSender struct {
	provider *providerClient
	logger   *zap.Logger
}

// NewPaymentSender creates a PaymentSender for a provider endpoint.
func NewPaymentSender(endpoint, apiKey string, timeout time.Duration, logger *zap.Logger) *PaymentSender {
	return &PaymentSender{
		provider: newProviderClient(endpoint, apiKey, timeout),
		logger:   logger,
	}
}

var _ Sender = (*PaymentSender)(nil)

func (s *PaymentSender) Send(ctx context.Context, creatorID, consumerID uuid.UUID, payload kv.Map) (kv.Map, error) {
	if err := requireFields(payload, "product_id"); err != nil {
		return nil, err
	}

	result, err := s.provider.post(ctx, map[string]any{
		"product_id":  payload.GetString("product_id"),
		"message":     payload.GetString("message"),
		"creator_id":  creatorID.String(),
		"consumer_id": consumerID.String(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment link sent",
		zap.String("creator_id", creatorID.String()),
		zap.String("consumer_id", consumerID.String()),
		zap.String("product_id", payload.GetString("product_id")))

	result.SetIfAbsent("channel", kv.String("payment"))
	return result, nil
}
