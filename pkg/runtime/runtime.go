// Package runtime executes agents. Each implementation tag maps to one
// Runtime variant: compiled decision units, an external HTTP service, or
// an LLM-driven pipeline. Runtimes are pure with respect to storage:
// they read the Input snapshot and return drafts; the orchestrator owns
// persistence and policy.
package runtime

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// Input is the snapshot handed to a runtime for one invocation.
type Input struct {
	CreatorID  uuid.UUID              `json:"creator_id"`
	ConsumerID uuid.UUID              `json:"consumer_id"`
	Event      *models.Event          `json:"event"`
	Context    *models.ConsumerContext `json:"context"`
	// Tools lists the channels available to this agent.
	Tools []models.Channel `json:"tools"`
	// Config is the executing agent's configuration, set on a
	// per-invocation copy via WithConfig. The orchestrator's snapshot
	// is shared across sibling invocations and stays unmodified.
	Config kv.Map `json:"config,omitempty"`
}

// WithConfig returns a shallow copy of the input carrying the executing
// agent's configuration.
func (in *Input) WithConfig(cfg kv.Map) *Input {
	out := *in
	out.Config = cfg
	return &out
}

// Draft is one planned side effect, not yet validated or persisted.
type Draft struct {
	ActionType models.ActionType `json:"action_type"`
	Channel    models.Channel    `json:"channel"`
	Payload    kv.Map            `json:"payload"`
	// Delay offsets send_at from now. Zero means immediately due.
	Delay    time.Duration `json:"delay"`
	Priority float64       `json:"priority"`
}

// Output is the result of one runtime execution.
type Output struct {
	ShouldAct bool    `json:"should_act"`
	Drafts    []Draft `json:"drafts,omitempty"`
	Reasoning string  `json:"reasoning,omitempty"`
	Metadata  kv.Map  `json:"metadata,omitempty"`
}

// Runtime executes one agent against one event.
type Runtime interface {
	Execute(ctx context.Context, agent *models.Agent, input *Input) (*Output, error)
}
