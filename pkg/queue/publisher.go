package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/config"
)

// messageWriter is the slice of kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher enqueues evaluation jobs. It satisfies
// services.EvaluationPublisher.
type Publisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewPublisher creates a Publisher writing to the evaluation topic.
func NewPublisher(cfg *config.QueueConfig, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers()...),
		Topic:        cfg.EvaluationTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Publisher{writer: writer, logger: logger}
}

// PublishEvaluation enqueues one job, keyed by consumer ID.
func (p *Publisher) PublishEvaluation(ctx context.Context, creatorID, consumerID, eventID uuid.UUID) error {
	job := &EvaluationJob{
		CreatorID:  creatorID,
		ConsumerID: consumerID,
		EventID:    eventID,
		EnqueuedAt: time.Now(),
	}
	data, err := job.Encode()
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(consumerID.String()),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("publish evaluation job: %w", err)
	}

	p.logger.Debug("Published evaluation job",
		zap.String("event_id", eventID.String()),
		zap.String("consumer_id", consumerID.String()))
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
