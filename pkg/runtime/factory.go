package runtime

import (
	"context"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// Factory dispatches execution to the Runtime matching the agent's
// implementation tag.
type Factory struct {
	runtimes map[models.Implementation]Runtime
}

// NewFactory creates a Factory over the given runtime variants. A nil
// entry (e.g. no LLM configured) leaves that implementation
// unavailable; executing such an agent fails with a ConfigurationError.
func NewFactory(simple, external, graph Runtime) *Factory {
	runtimes := make(map[models.Implementation]Runtime)
	if simple != nil {
		runtimes[models.ImplSimple] = simple
	}
	if external != nil {
		runtimes[models.ImplExternalHTTP] = external
	}
	if graph != nil {
		runtimes[models.ImplGraph] = graph
	}
	return &Factory{runtimes: runtimes}
}

var _ Runtime = (*Factory)(nil)

// Execute runs the agent on the runtime matching its implementation tag.
func (f *Factory) Execute(ctx context.Context, agent *models.Agent, input *Input) (*Output, error) {
	rt, ok := f.runtimes[agent.Implementation]
	if !ok {
		return nil, apperrors.NewConfiguration("no runtime for implementation %q", agent.Implementation)
	}
	return rt.Execute(ctx, agent, input)
}
