package runtime

import (
	"strings"
	"time"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// welcomeUnit greets a lead on their first page view: a WhatsApp
// message, plus an email when the agent config enables it.
type welcomeUnit struct{}

func (u *welcomeUnit) ShouldAct(input *Input) bool {
	if input.Event.Type != models.EventPageView {
		return false
	}
	if input.Context.Metrics.GetInt("page_views") != 1 {
		return false
	}
	return input.Context.Stage == models.StageNew
}

func (u *welcomeUnit) PlanActions(input *Input) []Draft {
	var drafts []Draft

	whatsapp := input.Event.Payload.GetString("whatsapp")
	email := input.Event.Payload.GetString("email")
	pageURL := input.Event.Payload.GetString("page_url")
	if pageURL == "" {
		pageURL = "our site"
	}

	if whatsapp != "" {
		drafts = append(drafts, Draft{
			ActionType: models.ActionSendWhatsApp,
			Channel:    models.ChannelWhatsApp,
			Payload: kv.Map{
				"to":      kv.String(whatsapp),
				"message": kv.String("Hey! Thanks for checking out " + pageURL + ". I'm here if you have any questions. What brought you here today?"),
			},
			Delay:    2 * time.Minute,
			Priority: 1.0,
		})
	}

	if email != "" && input.Config["send_welcome_email"].Bool() {
		drafts = append(drafts, Draft{
			ActionType: models.ActionSendEmail,
			Channel:    models.ChannelEmail,
			Payload: kv.Map{
				"to":      kv.String(email),
				"subject": kv.String("Welcome!"),
				"body":    kv.String("Thanks for stopping by. We're excited to have you here. Feel free to explore and reach out if you have any questions."),
			},
			Delay:    5 * time.Minute,
			Priority: 0.8,
		})
	}

	return drafts
}

// followupUnit nudges interested and engaged leads after an engagement
// event, capped at three outbound emails per lead.
type followupUnit struct{}

func (u *followupUnit) ShouldAct(input *Input) bool {
	switch input.Event.Type {
	case models.EventEmailOpened, models.EventEmailReplied, models.EventWhatsAppReceived:
	default:
		return false
	}

	cc := input.Context
	if cc.Converted() {
		return false
	}
	if cc.Stage != models.StageInterested && cc.Stage != models.StageEngaged {
		return false
	}
	return cc.Metrics.GetInt("emails_sent") < 3
}

func (u *followupUnit) PlanActions(input *Input) []Draft {
	email := input.Event.Payload.GetString("email")
	if email == "" {
		email = input.Context.Metrics.GetString("email")
	}
	if email == "" {
		return nil
	}

	score := input.Context.Metrics.GetInt("page_views") +
		input.Context.Metrics.GetInt("emails_opened")*2

	subject := "Still interested?"
	body := "I saw you opened our email earlier. Just wanted to check in and see if you have any questions about the program. No pressure at all."
	priority := 0.6
	if score >= 5 {
		subject = "Thought you'd find this helpful"
		body = "Since you've been exploring our program, I put together a quick resource that breaks down exactly what you'll learn. Want to hop on a quick call to discuss if this is the right fit?"
		priority = 0.8
	}

	return []Draft{{
		ActionType: models.ActionSendEmail,
		Channel:    models.ChannelEmail,
		Payload: kv.Map{
			"to":      kv.String(email),
			"subject": kv.String(subject),
			"body":    kv.String(body),
		},
		Delay:    30 * time.Minute,
		Priority: priority,
	}}
}

// paymentReminderUnit sends a payment link to an engaged lead showing
// buying signals. Requires product_id in the agent config; sends at
// most one link per lead.
type paymentReminderUnit struct{}

var interestKeywords = []string{"interested", "price", "cost", "sign up", "join", "yes"}

func (u *paymentReminderUnit) ShouldAct(input *Input) bool {
	switch input.Event.Type {
	case models.EventWhatsAppReceived, models.EventEmailReplied, models.EventBookingCreated:
	default:
		return false
	}

	cc := input.Context
	if cc.Stage != models.StageEngaged {
		return false
	}
	if cc.Metrics.GetInt("payment_links_sent") > 0 {
		return false
	}
	return cc.Metrics.GetInt("page_views") >= 2 && cc.Metrics.GetInt("emails_opened") >= 1
}

func (u *paymentReminderUnit) PlanActions(input *Input) []Draft {
	// The unit is only useful with a product to sell.
	productID := input.Config.GetString("product_id")
	if productID == "" {
		return nil
	}

	message := strings.ToLower(input.Event.Payload.GetString("message"))
	interested := false
	for _, kw := range interestKeywords {
		if strings.Contains(message, kw) {
			interested = true
			break
		}
	}
	if !interested {
		return nil
	}

	whatsapp := input.Event.Payload.GetString("whatsapp")
	if whatsapp == "" {
		whatsapp = input.Context.Metrics.GetString("whatsapp")
	}
	if whatsapp == "" {
		return nil
	}

	return []Draft{
		{
			ActionType: models.ActionSendPaymentLink,
			Channel:    models.ChannelPayment,
			Payload: kv.Map{
				"product_id": kv.String(productID),
				"message":    kv.String("Here's the payment link for the program. Excited to have you join us!"),
			},
			Priority: 1.0,
		},
		{
			ActionType: models.ActionSendWhatsApp,
			Channel:    models.ChannelWhatsApp,
			Payload: kv.Map{
				"to":      kv.String(whatsapp),
				"message": kv.String("I'm sending over the payment link now. Once you're in you get immediate access to all course materials, the community, and weekly live sessions. Let me know if you have any questions!"),
			},
			Delay:    time.Minute,
			Priority: 0.9,
		},
	}
}
