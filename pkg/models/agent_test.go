package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
)

func TestAgentTrigger_Matches(t *testing.T) {
	filter := kv.New()
	filter.Set("stage", kv.String("engaged"))

	trigger := &AgentTrigger{EventType: "email_opened", Filter: filter}

	doc := kv.New()
	doc.Set("stage", kv.String("engaged"))
	doc.Set("campaign", kv.String("spring"))

	assert.True(t, trigger.Matches("email_opened", doc))
	assert.False(t, trigger.Matches("page_view", doc), "event type must match")

	doc.Set("stage", kv.String("new"))
	assert.False(t, trigger.Matches("email_opened", doc), "changed value suppresses")

	delete(doc, "stage")
	assert.False(t, trigger.Matches("email_opened", doc), "absent key is no match")
}

func TestAgentTrigger_EmptyFilterMatchesEventType(t *testing.T) {
	trigger := &AgentTrigger{EventType: "page_view", Filter: kv.New()}

	assert.True(t, trigger.Matches("page_view", kv.New()))
	assert.False(t, trigger.Matches("email_opened", kv.New()))
}

func TestAgentTrigger_NumericFilterEquality(t *testing.T) {
	filter := kv.New()
	filter.Set("amount_cents", kv.Int(5000))
	trigger := &AgentTrigger{EventType: "payment_failed", Filter: filter}

	doc := kv.New()
	doc.Set("amount_cents", kv.Float(5000))
	assert.True(t, trigger.Matches("payment_failed", doc), "int/float compare by value")
}

func TestConsumer_HasConsent(t *testing.T) {
	consent := kv.New()
	consent.Set("email", kv.Bool(true))
	c := &Consumer{Consent: consent}

	assert.True(t, c.HasConsent(ChannelEmail))
	assert.False(t, c.HasConsent(ChannelWhatsApp))
	assert.True(t, c.HasConsent(ChannelPayment), "payment links need no consent")
}
