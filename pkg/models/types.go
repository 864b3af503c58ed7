// Package models holds the persisted domain entities and their enums.
package models

// EventSource identifies where an event entered the system.
type EventSource string

const (
	SourceSystem  EventSource = "system"
	SourceWebhook EventSource = "webhook"
	SourceAPI     EventSource = "api"
	SourceAgent   EventSource = "agent"
)

// ValidSource reports whether s is an accepted event source.
func ValidSource(s EventSource) bool {
	switch s {
	case SourceSystem, SourceWebhook, SourceAPI, SourceAgent:
		return true
	}
	return false
}

// Well-known event types. The type column is an open string; these are
// the ones the context store and built-in decision units react to.
const (
	EventPageView         = "page_view"
	EventServiceClick     = "service_click"
	EventBookingCreated   = "booking_created"
	EventBookingCancelled = "booking_cancelled"
	EventPaymentSuccess   = "payment_success"
	EventPaymentFailed    = "payment_failed"
	EventEmailSent        = "email_sent"
	EventEmailOpened      = "email_opened"
	EventEmailClicked     = "email_clicked"
	EventEmailReplied     = "email_replied"
	EventWhatsAppSent     = "whatsapp_message_sent"
	EventWhatsAppReceived = "whatsapp_message_received"
	EventCallScheduled    = "call_scheduled"
	EventCallCompleted    = "call_completed"
	EventAgentAction      = "agent_action"
)

// Stage is the lifecycle bucket of a consumer.
type Stage string

const (
	StageNew        Stage = "new"
	StageInterested Stage = "interested"
	StageEngaged    Stage = "engaged"
	StageConverted  Stage = "converted"
	StageChurned    Stage = "churned"
)

// Implementation selects the runtime variant for an agent.
type Implementation string

const (
	ImplSimple       Implementation = "simple"
	ImplExternalHTTP Implementation = "external_http"
	ImplGraph        Implementation = "graph"
)

// InvocationStatus tracks one agent execution against one event.
type InvocationStatus string

const (
	InvocationPending   InvocationStatus = "pending"
	InvocationRunning   InvocationStatus = "running"
	InvocationCompleted InvocationStatus = "completed"
	InvocationFailed    InvocationStatus = "failed"
)

// Channel is an external communication medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelCall     Channel = "call"
	ChannelPayment  Channel = "payment"
)

// Channels lists every channel, in the order exposed to agents as
// available tools.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelWhatsApp, ChannelCall, ChannelPayment}
}

// ActionType names the side effect an agent planned.
type ActionType string

const (
	ActionSendEmail       ActionType = "send_email"
	ActionSendWhatsApp    ActionType = "send_whatsapp"
	ActionScheduleCall    ActionType = "schedule_call"
	ActionSendPaymentLink ActionType = "send_payment_link"
)

// ActionStatus tracks a planned action through execution.
type ActionStatus string

const (
	ActionPlanned   ActionStatus = "planned"
	ActionApproved  ActionStatus = "approved"
	ActionDenied    ActionStatus = "denied"
	ActionExecuting ActionStatus = "executing"
	ActionExecuted  ActionStatus = "executed"
	ActionFailed    ActionStatus = "failed"
)
