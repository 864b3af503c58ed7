package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// Event is an immutable record of a consumer action. Rows are append
// only: never mutated or deleted after creation.
type Event struct {
	ID         uuid.UUID   `json:"id"`
	CreatorID  uuid.UUID   `json:"creator_id"`
	ConsumerID uuid.UUID   `json:"consumer_id"`
	Type       string      `json:"type"`
	Source     EventSource `json:"source"`
	Payload    kv.Map      `json:"payload"`
	Timestamp  time.Time   `json:"timestamp"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ConsumerContext is the materialized aggregate for one (creator,
// consumer) pair. It is a derived cache over the event log: updated only
// by the event-handling path, inside the same transaction as the event
// insert, and never created independently of an event.
type ConsumerContext struct {
	CreatorID  uuid.UUID  `json:"creator_id"`
	ConsumerID uuid.UUID  `json:"consumer_id"`
	Stage      Stage      `json:"stage"`
	Metrics    kv.Map     `json:"metrics"`
	Attributes kv.Map     `json:"attributes"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Converted reports whether the context reached a terminal positive stage.
func (c *ConsumerContext) Converted() bool {
	return c.Stage == StageConverted
}
