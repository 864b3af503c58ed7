// Package queue moves agent-evaluation jobs through Kafka. The event
// ingestion path publishes one job per committed event; workers consume
// them and drive the orchestrator. Jobs are keyed by consumer ID so one
// consumer's events stay ordered within a partition.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EvaluationJob asks a worker to evaluate agents against one committed
// event. The event itself is reloaded from the store, so the job carries
// only identifiers.
type EvaluationJob struct {
	CreatorID  uuid.UUID `json:"creator_id"`
	ConsumerID uuid.UUID `json:"consumer_id"`
	EventID    uuid.UUID `json:"event_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	Attempt    int       `json:"attempt,omitempty"`
}

// Encode renders the job for the wire.
func (j *EvaluationJob) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("encode evaluation job: %w", err)
	}
	return data, nil
}

// DecodeEvaluationJob parses a job off the wire and checks the
// identifiers are present.
func DecodeEvaluationJob(data []byte) (*EvaluationJob, error) {
	var job EvaluationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("decode evaluation job: %w", err)
	}
	if job.CreatorID == uuid.Nil || job.EventID == uuid.Nil {
		return nil, fmt.Errorf("evaluation job missing identifiers")
	}
	return &job, nil
}
