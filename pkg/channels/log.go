package channels

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// LogSender logs the payload instead of calling a provider. Used in
// local development and for channels without a configured endpoint.
type LogSender struct {
	channel models.Channel
	logger  *zap.Logger
}

// NewLogSender creates a LogSender for a channel.
func NewLogSender(channel models.Channel, logger *zap.Logger) *LogSender {
	return &LogSender{channel: channel, logger: logger}
}

var _ Sender = (*LogSender)(nil)

func (s *LogSender) Send(ctx context.Context, creatorID, consumerID uuid.UUID, payload kv.Map) (kv.Map, error) {
	s.logger.Info("Simulated channel send",
		zap.String("channel", string(s.channel)),
		zap.String("creator_id", creatorID.String()),
		zap.String("consumer_id", consumerID.String()),
		zap.Any("payload", payload.ToAny()))

	return kv.Map{
		"simulated": kv.Bool(true),
		"channel":   kv.String(string(s.channel)),
		"sent_at":   kv.String(time.Now().Format(time.RFC3339)),
	}, nil
}
