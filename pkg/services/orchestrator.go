package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
	"github.com/loopreach-ai/loopreach-engine/pkg/runtime"
)

// Orchestrator fans one event out to every matching agent, records the
// invocations, and files the planned actions. One agent's failure never
// blocks its siblings.
type Orchestrator struct {
	events      repositories.EventRepository
	contexts    repositories.ContextRepository
	invocations repositories.InvocationRepository
	actions     repositories.ActionRepository
	agents      *AgentService
	policy      *PolicyService
	runtime     runtime.Runtime
	logger      *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	events repositories.EventRepository,
	contexts repositories.ContextRepository,
	invocations repositories.InvocationRepository,
	actions repositories.ActionRepository,
	agents *AgentService,
	policy *PolicyService,
	rt runtime.Runtime,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		events:      events,
		contexts:    contexts,
		invocations: invocations,
		actions:     actions,
		agents:      agents,
		policy:      policy,
		runtime:     rt,
		logger:      logger,
	}
}

// HandleEvent evaluates every matching agent against one committed
// event. Returns the invocation records, failed ones included.
func (o *Orchestrator) HandleEvent(ctx context.Context, creatorID, eventID uuid.UUID) ([]*models.AgentInvocation, error) {
	event, err := o.events.GetByID(ctx, creatorID, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}

	cc, err := o.contexts.Get(ctx, event.CreatorID, event.ConsumerID)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}

	matched, err := o.agents.MatchAgents(ctx, event, cc)
	if err != nil {
		return nil, fmt.Errorf("match agents: %w", err)
	}
	if len(matched) == 0 {
		return nil, nil
	}

	input := &runtime.Input{
		CreatorID:  event.CreatorID,
		ConsumerID: event.ConsumerID,
		Event:      event,
		Context:    cc,
		Tools:      models.Channels(),
	}

	invocations := make([]*models.AgentInvocation, 0, len(matched))
	for _, agent := range matched {
		inv := o.runAgent(ctx, agent, event, input)
		invocations = append(invocations, inv)
	}
	return invocations, nil
}

// runAgent executes one agent and persists the audit trail. Errors are
// recorded on the invocation, never propagated: sibling agents must
// still run.
func (o *Orchestrator) runAgent(ctx context.Context, agent *models.Agent, event *models.Event, input *runtime.Input) *models.AgentInvocation {
	inv := &models.AgentInvocation{
		AgentID:        agent.ID,
		CreatorID:      event.CreatorID,
		ConsumerID:     event.ConsumerID,
		TriggerEventID: event.ID,
		Status:         models.InvocationPending,
	}
	if err := o.invocations.Create(ctx, inv); err != nil {
		o.logger.Error("Failed to create invocation",
			zap.String("agent_id", agent.ID.String()),
			zap.Error(err))
		inv.Status = models.InvocationFailed
		inv.Error = err.Error()
		return inv
	}

	if err := o.invocations.MarkRunning(ctx, inv.ID); err != nil {
		o.logger.Error("Failed to mark invocation running", zap.Error(err))
	}
	inv.Status = models.InvocationRunning

	out, err := o.runtime.Execute(ctx, agent, input)
	if err != nil {
		o.logger.Warn("Agent execution failed",
			zap.String("agent_id", agent.ID.String()),
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
		inv.Status = models.InvocationFailed
		inv.Error = err.Error()
		if markErr := o.invocations.MarkFailed(ctx, inv.ID, err.Error()); markErr != nil {
			o.logger.Error("Failed to mark invocation failed", zap.Error(markErr))
		}
		return inv
	}

	planned := 0
	if out.ShouldAct {
		planned = o.fileActions(ctx, inv, event, out)
	}

	result := kv.Map{
		"should_act":      kv.Bool(out.ShouldAct),
		"drafts":          kv.Int(int64(len(out.Drafts))),
		"actions_planned": kv.Int(int64(planned)),
	}
	if out.Reasoning != "" {
		result.Set("reasoning", kv.String(out.Reasoning))
	}
	for k, v := range out.Metadata {
		result.SetIfAbsent(k, v)
	}

	inv.Status = models.InvocationCompleted
	inv.Result = result
	if err := o.invocations.MarkCompleted(ctx, inv.ID, result); err != nil {
		o.logger.Error("Failed to mark invocation completed", zap.Error(err))
	}
	return inv
}

// fileActions persists every draft, stamped with the policy decision.
// Denied drafts are kept with status denied so the audit trail shows
// what the agent wanted to do. Returns the number of sweepable actions.
func (o *Orchestrator) fileActions(ctx context.Context, inv *models.AgentInvocation, event *models.Event, out *runtime.Output) int {
	now := time.Now()
	planned := 0

	for _, draft := range out.Drafts {
		sendAt := now.Add(draft.Delay)
		priority := draft.Priority
		if priority == 0 {
			priority = 1.0
		}

		action := &models.Action{
			InvocationID: inv.ID,
			CreatorID:    event.CreatorID,
			ConsumerID:   event.ConsumerID,
			ActionType:   draft.ActionType,
			Channel:      draft.Channel,
			Payload:      draft.Payload,
			SendAt:       sendAt,
			Priority:     priority,
			Status:       models.ActionPlanned,
		}

		decision, err := o.policy.ValidateAction(ctx, event.CreatorID, event.ConsumerID, draft.Channel, sendAt)
		if err != nil {
			o.logger.Error("Policy validation failed",
				zap.String("invocation_id", inv.ID.String()),
				zap.Error(err))
			continue
		}
		action.PolicyDecision = decision.ToMap()
		if !decision.Approved {
			action.Status = models.ActionDenied
			o.logger.Info("Action denied by policy",
				zap.String("invocation_id", inv.ID.String()),
				zap.String("channel", string(draft.Channel)),
				zap.String("reason", decision.Reason))
		}

		if err := o.actions.Create(ctx, action); err != nil {
			o.logger.Error("Failed to create action",
				zap.String("invocation_id", inv.ID.String()),
				zap.Error(err))
			continue
		}
		if action.Status == models.ActionPlanned {
			planned++
		}
	}
	return planned
}
