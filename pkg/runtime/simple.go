package runtime

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// DecisionUnit is a compiled decision rule. Units are stateless and
// shared across invocations.
type DecisionUnit interface {
	// ShouldAct decides whether the unit wants to act on the input.
	ShouldAct(input *Input) bool
	// PlanActions builds the drafts. Only called when ShouldAct is true.
	PlanActions(input *Input) []Draft
}

// UnitRegistry maps decision-unit keys to compiled units. Populated at
// process start; safe for concurrent reads.
type UnitRegistry struct {
	mu    sync.RWMutex
	units map[string]DecisionUnit
}

// NewUnitRegistry creates a registry with the built-in units installed.
func NewUnitRegistry() *UnitRegistry {
	r := &UnitRegistry{units: make(map[string]DecisionUnit)}
	r.Register("welcome", &welcomeUnit{})
	r.Register("followup", &followupUnit{})
	r.Register("payment_reminder", &paymentReminderUnit{})
	return r
}

// Register installs a unit under a key, replacing any existing one.
func (r *UnitRegistry) Register(key string, unit DecisionUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.units[key] = unit
}

// Get looks up a unit by key.
func (r *UnitRegistry) Get(key string) (DecisionUnit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	unit, ok := r.units[key]
	return unit, ok
}

// Keys returns the registered unit keys, sorted.
func (r *UnitRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.units))
	for k := range r.units {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SimpleRuntime resolves the agent's configured decision unit and runs
// it in-process.
type SimpleRuntime struct {
	registry *UnitRegistry
	logger   *zap.Logger
}

// NewSimpleRuntime creates a SimpleRuntime over a unit registry.
func NewSimpleRuntime(registry *UnitRegistry, logger *zap.Logger) *SimpleRuntime {
	return &SimpleRuntime{registry: registry, logger: logger}
}

var _ Runtime = (*SimpleRuntime)(nil)

func (r *SimpleRuntime) Execute(ctx context.Context, agent *models.Agent, input *Input) (*Output, error) {
	key := agent.Config.GetString("unit")
	if key == "" {
		return nil, apperrors.NewConfiguration("agent %s has no decision unit configured", agent.ID)
	}

	unit, ok := r.registry.Get(key)
	if !ok {
		return nil, apperrors.NewConfiguration("unknown decision unit %q", key)
	}

	input = input.WithConfig(agent.Config)

	if !unit.ShouldAct(input) {
		return &Output{ShouldAct: false}, nil
	}

	drafts := unit.PlanActions(input)
	r.logger.Debug("Decision unit planned actions",
		zap.String("unit", key),
		zap.String("agent_id", agent.ID.String()),
		zap.Int("drafts", len(drafts)))

	return &Output{ShouldAct: len(drafts) > 0, Drafts: drafts}, nil
}
