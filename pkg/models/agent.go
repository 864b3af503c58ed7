package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// Agent is a configured decision unit plus trigger rules. A nil
// CreatorID marks a global agent shared across all creators.
type Agent struct {
	ID             uuid.UUID      `json:"id"`
	CreatorID      *uuid.UUID     `json:"creator_id,omitempty"`
	Name           string         `json:"name"`
	Implementation Implementation `json:"implementation"`
	Config         kv.Map         `json:"config"`
	Enabled        bool           `json:"enabled"`
	CreatedAt      time.Time      `json:"created_at"`
	Triggers       []AgentTrigger `json:"triggers,omitempty"`
}

// AgentTrigger binds an agent to an event type, optionally narrowed by a
// flat key → expected-value filter evaluated against the event payload.
type AgentTrigger struct {
	ID        uuid.UUID `json:"id"`
	AgentID   uuid.UUID `json:"agent_id"`
	EventType string    `json:"event_type"`
	Filter    kv.Map    `json:"filter"`
}

// Matches evaluates the trigger against an event type and a match
// document (payload overlaid with resolved context fields). Every filter
// key must be present with an equal value; an absent key is no match.
func (t *AgentTrigger) Matches(eventType string, doc kv.Map) bool {
	if t.EventType != eventType {
		return false
	}
	for key, expected := range t.Filter {
		actual, ok := doc.Get(key)
		if !ok || !actual.Equal(expected) {
			return false
		}
	}
	return true
}

// AgentInvocation is the audit record for one (agent, event) evaluation.
// It is observability data, never used for control-flow decisions.
type AgentInvocation struct {
	ID             uuid.UUID        `json:"id"`
	AgentID        uuid.UUID        `json:"agent_id"`
	CreatorID      uuid.UUID        `json:"creator_id"`
	ConsumerID     uuid.UUID        `json:"consumer_id"`
	TriggerEventID uuid.UUID        `json:"trigger_event_id"`
	Status         InvocationStatus `json:"status"`
	Result         kv.Map           `json:"result,omitempty"`
	Error          string           `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}
