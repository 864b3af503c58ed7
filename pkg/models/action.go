package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

// Action is a scheduled, channel-bound side effect awaiting execution.
// Created by the orchestrator from runtime drafts; mutated only by the
// scheduler sweep (status transitions) and channel senders (result).
type Action struct {
	ID             uuid.UUID    `json:"id"`
	InvocationID   uuid.UUID    `json:"agent_invocation_id"`
	CreatorID      uuid.UUID    `json:"creator_id"`
	ConsumerID     uuid.UUID    `json:"consumer_id"`
	ActionType     ActionType   `json:"action_type"`
	Channel        Channel      `json:"channel"`
	Payload        kv.Map       `json:"payload"`
	SendAt         time.Time    `json:"send_at"`
	Priority       float64      `json:"priority"`
	Status         ActionStatus `json:"status"`
	PolicyDecision kv.Map       `json:"policy_decision,omitempty"`
	Result         kv.Map       `json:"result,omitempty"`
	Error          string       `json:"error,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Due reports whether the action is eligible for a sweep at now.
func (a *Action) Due(now time.Time) bool {
	if a.Status != ActionPlanned && a.Status != ActionApproved {
		return false
	}
	return !a.SendAt.After(now)
}

// PolicyRule is a per-creator guardrail (rate limit, quiet hours,
// consent requirement), overriding engine defaults.
type PolicyRule struct {
	ID        uuid.UUID `json:"id"`
	CreatorID uuid.UUID `json:"creator_id"`
	Key       string    `json:"key"`
	Value     kv.Map    `json:"value"`
}

// Policy rule keys.
const (
	PolicyRateLimitEmailDaily     = "rate_limit_email_daily"
	PolicyRateLimitEmailWeekly    = "rate_limit_email_weekly"
	PolicyRateLimitWhatsAppDaily  = "rate_limit_whatsapp_daily"
	PolicyRateLimitWhatsAppWeekly = "rate_limit_whatsapp_weekly"
	PolicyRateLimitCallWeekly     = "rate_limit_call_weekly"
	PolicyQuietHoursStart         = "quiet_hours_start"
	PolicyQuietHoursEnd           = "quiet_hours_end"
	PolicyRequireConsent          = "require_consent"
)
