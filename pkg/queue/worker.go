package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/config"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/retry"
)

// EvaluationHandler evaluates agents against one committed event. The
// orchestrator is the production implementation.
type EvaluationHandler interface {
	HandleEvent(ctx context.Context, creatorID, eventID uuid.UUID) ([]*models.AgentInvocation, error)
}

// messageReader is the slice of kafka.Reader the worker needs. Fetch and
// commit are split so a job is acknowledged only after it was handled or
// dead-lettered.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Worker consumes evaluation jobs from one reader. Transient handler
// errors are retried in process with backoff; exhausted or permanent
// failures go to the dead-letter topic. Either way the message is
// committed, so a poison job never wedges the partition.
type Worker struct {
	reader     messageReader
	handler    EvaluationHandler
	deadLetter messageWriter
	retryCfg   *retry.Config
	logger     *zap.Logger
}

// NewWorker creates a worker over an explicit reader. Most callers want
// NewWorkerPool instead.
func NewWorker(reader messageReader, handler EvaluationHandler, deadLetter messageWriter, retryCfg *retry.Config, logger *zap.Logger) *Worker {
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	return &Worker{
		reader:     reader,
		handler:    handler,
		deadLetter: deadLetter,
		retryCfg:   retryCfg,
		logger:     logger,
	}
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		msg, err := w.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("Failed to fetch message", zap.Error(err))
			continue
		}

		w.process(ctx, msg)

		if err := w.reader.CommitMessages(ctx, msg); err != nil {
			w.logger.Error("Failed to commit message",
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
		}
	}
}

func (w *Worker) process(ctx context.Context, msg kafka.Message) {
	job, err := DecodeEvaluationJob(msg.Value)
	if err != nil {
		w.logger.Error("Malformed evaluation job", zap.Error(err))
		w.sendToDeadLetter(ctx, msg, err)
		return
	}

	start := time.Now()
	err = retry.Do(ctx, w.retryCfg, func() error {
		_, handleErr := w.handler.HandleEvent(ctx, job.CreatorID, job.EventID)
		return handleErr
	})
	if err != nil {
		w.logger.Error("Evaluation job failed",
			zap.String("event_id", job.EventID.String()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		w.sendToDeadLetter(ctx, msg, err)
		return
	}

	w.logger.Debug("Evaluation job handled",
		zap.String("event_id", job.EventID.String()),
		zap.Duration("elapsed", time.Since(start)))
}

func (w *Worker) sendToDeadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if w.deadLetter == nil {
		return
	}
	dead := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers, kafka.Header{
			Key:   "x-dead-letter-reason",
			Value: []byte(cause.Error()),
		}),
	}
	if err := w.deadLetter.WriteMessages(ctx, dead); err != nil {
		w.logger.Error("Failed to dead-letter job", zap.Error(err))
	}
}

// Close releases the reader.
func (w *Worker) Close() error {
	return w.reader.Close()
}

// WorkerPool runs the configured number of workers, each with its own
// reader in one consumer group, so partitions spread across them.
type WorkerPool struct {
	workers []*Worker
	logger  *zap.Logger
}

// NewWorkerPool creates cfg.Workers workers over the evaluation topic.
func NewWorkerPool(cfg *config.QueueConfig, handler EvaluationHandler, logger *zap.Logger) *WorkerPool {
	deadLetter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers()...),
		Topic:        cfg.DeadLetterTopic,
		RequiredAcks: kafka.RequireOne,
	}
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxRetries = cfg.MaxRetries

	n := cfg.Workers
	if n < 1 {
		n = 1
	}

	workers := make([]*Worker, 0, n)
	for i := 0; i < n; i++ {
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers(),
			Topic:    cfg.EvaluationTopic,
			GroupID:  cfg.ConsumerGroup,
			MinBytes: 1,
			MaxBytes: 10e6,
		})
		workers = append(workers, NewWorker(reader, handler, deadLetter, retryCfg,
			logger.Named("worker").With(zap.Int("worker", i))))
	}
	return &WorkerPool{workers: workers, logger: logger}
}

// Run starts every worker and blocks until ctx is cancelled and all
// workers returned.
func (p *WorkerPool) Run(ctx context.Context) {
	done := make(chan struct{}, len(p.workers))
	for _, w := range p.workers {
		go func(w *Worker) {
			w.Run(ctx)
			done <- struct{}{}
		}(w)
	}
	for range p.workers {
		<-done
	}
}

// Close releases every reader.
func (p *WorkerPool) Close() error {
	var firstErr error
	for _, w := range p.workers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
