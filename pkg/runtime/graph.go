package runtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/llm"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

const (
	defaultGraphTimeout     = 60 * time.Second
	defaultGraphTemperature = 0.7
)

const analyzeSystemPrompt = `You are a sales assistant helping creators convert leads.

Your goal is to nurture leads through personalized, value-driven outreach
across email and WhatsApp.

Guidelines:
- Provide value before asking for the sale
- Be conversational and authentic
- Respect engagement signals - don't oversell to uninterested leads

Return your analysis in JSON format with:
- should_act: boolean
- recommended_channel: "email" or "whatsapp" or "payment"
- message_tone: "introduction", "value", "nudge", or "close"
- reasoning: explanation of your decision`

const draftSystemPrompt = `You are drafting outreach messages for a sales assistant.

Given an analysis of a lead, produce the concrete messages to send.

Return JSON with a "drafts" array. Each draft has:
- action_type: "send_email", "send_whatsapp", or "send_payment_link"
- channel: "email", "whatsapp", or "payment"
- payload: object with "to" and "message" (and "subject"/"body" for email)
- delay_minutes: integer
- priority: number between 0 and 2`

type graphAnalysis struct {
	ShouldAct          bool   `json:"should_act"`
	RecommendedChannel string `json:"recommended_channel"`
	MessageTone        string `json:"message_tone"`
	Reasoning          string `json:"reasoning"`
}

type graphDraft struct {
	ActionType   string         `json:"action_type"`
	Channel      string         `json:"channel"`
	Payload      map[string]any `json:"payload"`
	DelayMinutes int            `json:"delay_minutes"`
	Priority     float64        `json:"priority"`
}

type graphDraftResponse struct {
	Drafts []graphDraft `json:"drafts"`
}

// GraphRuntime runs a multi-step LLM pipeline: analyze the lead, gate
// on the decision, then draft messages. Each step is one model call
// with tolerant JSON parsing of the response.
type GraphRuntime struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewGraphRuntime creates a GraphRuntime over an LLM client.
func NewGraphRuntime(client llm.Client, timeout time.Duration, logger *zap.Logger) *GraphRuntime {
	if timeout <= 0 {
		timeout = defaultGraphTimeout
	}
	return &GraphRuntime{client: client, timeout: timeout, logger: logger}
}

var _ Runtime = (*GraphRuntime)(nil)

func (r *GraphRuntime) Execute(ctx context.Context, agent *models.Agent, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	input = input.WithConfig(agent.Config)

	temperature := defaultGraphTemperature
	if v, ok := agent.Config.Get("temperature"); ok {
		temperature = v.Float()
	}

	analysis, err := r.analyze(ctx, agent, input, temperature)
	if err != nil {
		return nil, fmt.Errorf("analyze step: %w", err)
	}

	if !analysis.ShouldAct {
		return &Output{ShouldAct: false, Reasoning: analysis.Reasoning}, nil
	}

	drafts, err := r.draft(ctx, agent, input, analysis, temperature)
	if err != nil {
		return nil, fmt.Errorf("draft step: %w", err)
	}

	r.logger.Debug("Graph pipeline completed",
		zap.String("agent_id", agent.ID.String()),
		zap.String("model", r.client.GetModel()),
		zap.Int("drafts", len(drafts)))

	return &Output{
		ShouldAct: len(drafts) > 0,
		Drafts:    drafts,
		Reasoning: analysis.Reasoning,
		Metadata: kv.Map{
			"recommended_channel": kv.String(analysis.RecommendedChannel),
			"message_tone":        kv.String(analysis.MessageTone),
			"model":               kv.String(r.client.GetModel()),
		},
	}, nil
}

func (r *GraphRuntime) analyze(ctx context.Context, agent *models.Agent, input *Input, temperature float64) (*graphAnalysis, error) {
	prompt := r.describeLead(input)

	system := analyzeSystemPrompt
	if extra := agent.Config.GetString("instructions"); extra != "" {
		system += "\n\nCreator instructions:\n" + extra
	}

	response, err := r.client.GenerateResponse(ctx, prompt, system, temperature)
	if err != nil {
		return nil, err
	}

	analysis, err := llm.ParseJSONResponse[graphAnalysis](response)
	if err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	return &analysis, nil
}

func (r *GraphRuntime) draft(ctx context.Context, agent *models.Agent, input *Input, analysis *graphAnalysis, temperature float64) ([]Draft, error) {
	var b strings.Builder
	b.WriteString(r.describeLead(input))
	fmt.Fprintf(&b, "\nAnalysis:\n- Recommended channel: %s\n- Tone: %s\n- Reasoning: %s\n",
		analysis.RecommendedChannel, analysis.MessageTone, analysis.Reasoning)
	b.WriteString("\nDraft the outreach messages now.")

	response, err := r.client.GenerateResponse(ctx, b.String(), draftSystemPrompt, temperature)
	if err != nil {
		return nil, err
	}

	parsed, err := llm.ParseJSONResponse[graphDraftResponse](response)
	if err != nil {
		return nil, fmt.Errorf("parse drafts: %w", err)
	}

	drafts := make([]Draft, 0, len(parsed.Drafts))
	for _, d := range parsed.Drafts {
		priority := d.Priority
		if priority == 0 {
			priority = 1.0
		}
		drafts = append(drafts, Draft{
			ActionType: models.ActionType(d.ActionType),
			Channel:    models.Channel(d.Channel),
			Payload:    kv.FromAny(d.Payload),
			Delay:      time.Duration(d.DelayMinutes) * time.Minute,
			Priority:   priority,
		})
	}
	return drafts, nil
}

func (r *GraphRuntime) describeLead(input *Input) string {
	cc := input.Context
	lastSeen := "never"
	if cc.LastSeenAt != nil {
		lastSeen = cc.LastSeenAt.Format(time.RFC3339)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Consumer Context:\n- Stage: %s\n", cc.Stage)
	fmt.Fprintf(&b, "- Page Views: %d\n", cc.Metrics.GetInt("page_views"))
	fmt.Fprintf(&b, "- Emails Sent: %d\n", cc.Metrics.GetInt("emails_sent"))
	fmt.Fprintf(&b, "- Emails Opened: %d\n", cc.Metrics.GetInt("emails_opened"))
	fmt.Fprintf(&b, "- WhatsApp Received: %d\n", cc.Metrics.GetInt("whatsapp_messages_received"))
	fmt.Fprintf(&b, "- Last Seen: %s\n", lastSeen)
	fmt.Fprintf(&b, "\nRecent Event: %s\n", input.Event.Type)
	fmt.Fprintf(&b, "Event Payload: %v\n", input.Event.Payload.ToAny())
	return b.String()
}
