package runtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

func testInput(eventType string, stage models.Stage, metrics, payload kv.Map) *Input {
	creatorID := uuid.New()
	consumerID := uuid.New()
	return &Input{
		CreatorID:  creatorID,
		ConsumerID: consumerID,
		Event: &models.Event{
			ID:         uuid.New(),
			CreatorID:  creatorID,
			ConsumerID: consumerID,
			Type:       eventType,
			Source:     models.SourceWebhook,
			Payload:    payload,
			Timestamp:  time.Now(),
		},
		Context: &models.ConsumerContext{
			CreatorID:  creatorID,
			ConsumerID: consumerID,
			Stage:      stage,
			Metrics:    metrics,
			Attributes: kv.New(),
		},
		Tools:  models.Channels(),
		Config: kv.New(),
	}
}

func TestWelcomeUnit_FirstPageView(t *testing.T) {
	unit := &welcomeUnit{}
	input := testInput(models.EventPageView, models.StageNew,
		kv.Map{"page_views": kv.Int(1)},
		kv.Map{"whatsapp": kv.String("+15551234"), "page_url": kv.String("example.com/course")})

	require.True(t, unit.ShouldAct(input))

	drafts := unit.PlanActions(input)
	require.Len(t, drafts, 1)
	assert.Equal(t, models.ActionSendWhatsApp, drafts[0].ActionType)
	assert.Equal(t, models.ChannelWhatsApp, drafts[0].Channel)
	assert.Equal(t, "+15551234", drafts[0].Payload.GetString("to"))
	assert.Contains(t, drafts[0].Payload.GetString("message"), "example.com/course")
	assert.Equal(t, 2*time.Minute, drafts[0].Delay)
}

func TestWelcomeUnit_OptionalEmail(t *testing.T) {
	unit := &welcomeUnit{}
	input := testInput(models.EventPageView, models.StageNew,
		kv.Map{"page_views": kv.Int(1)},
		kv.Map{"whatsapp": kv.String("+15551234"), "email": kv.String("lead@example.com")})
	input.Config = kv.Map{"send_welcome_email": kv.Bool(true)}

	drafts := unit.PlanActions(input)
	require.Len(t, drafts, 2)
	assert.Equal(t, models.ActionSendEmail, drafts[1].ActionType)
	assert.Equal(t, "lead@example.com", drafts[1].Payload.GetString("to"))
}

func TestWelcomeUnit_SkipsReturningVisitor(t *testing.T) {
	unit := &welcomeUnit{}

	// Second page view
	input := testInput(models.EventPageView, models.StageNew,
		kv.Map{"page_views": kv.Int(2)}, kv.New())
	assert.False(t, unit.ShouldAct(input))

	// Wrong event type
	input = testInput(models.EventEmailOpened, models.StageNew,
		kv.Map{"page_views": kv.Int(1)}, kv.New())
	assert.False(t, unit.ShouldAct(input))

	// Not a new lead
	input = testInput(models.EventPageView, models.StageInterested,
		kv.Map{"page_views": kv.Int(1)}, kv.New())
	assert.False(t, unit.ShouldAct(input))
}

func TestFollowupUnit_EngagementGate(t *testing.T) {
	unit := &followupUnit{}

	input := testInput(models.EventEmailOpened, models.StageInterested,
		kv.Map{"emails_sent": kv.Int(1)}, kv.New())
	assert.True(t, unit.ShouldAct(input))

	// Email cap reached
	input = testInput(models.EventEmailOpened, models.StageInterested,
		kv.Map{"emails_sent": kv.Int(3)}, kv.New())
	assert.False(t, unit.ShouldAct(input))

	// Converted customers are left alone
	input = testInput(models.EventEmailOpened, models.StageConverted,
		kv.Map{"emails_sent": kv.Int(0)}, kv.New())
	assert.False(t, unit.ShouldAct(input))
}

func TestFollowupUnit_ToneScalesWithEngagement(t *testing.T) {
	unit := &followupUnit{}

	low := testInput(models.EventEmailOpened, models.StageInterested,
		kv.Map{"page_views": kv.Int(1), "emails_opened": kv.Int(1)},
		kv.Map{"email": kv.String("lead@example.com")})
	drafts := unit.PlanActions(low)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Still interested?", drafts[0].Payload.GetString("subject"))
	assert.Equal(t, 0.6, drafts[0].Priority)

	high := testInput(models.EventEmailOpened, models.StageEngaged,
		kv.Map{"page_views": kv.Int(3), "emails_opened": kv.Int(2)},
		kv.Map{"email": kv.String("lead@example.com")})
	drafts = unit.PlanActions(high)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Thought you'd find this helpful", drafts[0].Payload.GetString("subject"))
	assert.Equal(t, 0.8, drafts[0].Priority)
}

func TestPaymentReminderUnit(t *testing.T) {
	unit := &paymentReminderUnit{}

	metrics := kv.Map{
		"page_views":    kv.Int(3),
		"emails_opened": kv.Int(2),
	}
	payload := kv.Map{
		"whatsapp": kv.String("+15551234"),
		"message":  kv.String("Yes, I'm interested in the price"),
	}

	input := testInput(models.EventWhatsAppReceived, models.StageEngaged, metrics, payload)
	input.Config = kv.Map{"product_id": kv.String("prod-123")}
	require.True(t, unit.ShouldAct(input))

	drafts := unit.PlanActions(input)
	require.Len(t, drafts, 2)
	assert.Equal(t, models.ActionSendPaymentLink, drafts[0].ActionType)
	assert.Equal(t, "prod-123", drafts[0].Payload.GetString("product_id"))
	assert.Equal(t, models.ActionSendWhatsApp, drafts[1].ActionType)

	// Already sent a link
	metrics["payment_links_sent"] = kv.Int(1)
	assert.False(t, unit.ShouldAct(input))
	delete(metrics, "payment_links_sent")

	// No interest keywords in the reply
	payload["message"] = kv.String("stop messaging me")
	assert.Empty(t, unit.PlanActions(input))

	// No product configured
	payload["message"] = kv.String("yes")
	input.Config = kv.New()
	assert.Empty(t, unit.PlanActions(input))
}
