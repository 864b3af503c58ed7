package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/repositories"
)

// In-memory repository fakes. They hold just enough behavior for the
// service tests; concurrency-sensitive ones take a mutex so claim races
// can be exercised.

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[uuid.UUID]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[uuid.UUID]*models.Event)}
}

var _ repositories.EventRepository = (*fakeEventRepo)(nil)

func (f *fakeEventRepo) Insert(ctx context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.CreatedAt = time.Now()
	f.events[event.ID] = event
	return nil
}

func (f *fakeEventRepo) GetByID(ctx context.Context, creatorID, eventID uuid.UUID) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok || e.CreatorID != creatorID {
		return nil, apperrors.ErrNotFound
	}
	return e, nil
}

func (f *fakeEventRepo) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Event
	for _, e := range f.events {
		if e.CreatorID == creatorID && e.ConsumerID == consumerID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

func (f *fakeEventRepo) ListByType(ctx context.Context, creatorID uuid.UUID, eventType string, since time.Time, limit int) ([]*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Event
	for _, e := range f.events {
		if e.CreatorID == creatorID && e.Type == eventType && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

type ctxKey struct {
	creator, consumer uuid.UUID
}

type fakeContextRepo struct {
	mu       sync.Mutex
	contexts map[ctxKey]*models.ConsumerContext
}

func newFakeContextRepo() *fakeContextRepo {
	return &fakeContextRepo{contexts: make(map[ctxKey]*models.ConsumerContext)}
}

var _ repositories.ContextRepository = (*fakeContextRepo)(nil)

func (f *fakeContextRepo) Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cc, ok := f.contexts[ctxKey{creatorID, consumerID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cc, nil
}

func (f *fakeContextRepo) GetForUpdate(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error) {
	return f.Get(ctx, creatorID, consumerID)
}

func (f *fakeContextRepo) Upsert(ctx context.Context, cc *models.ConsumerContext) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cc.UpdatedAt = time.Now()
	f.contexts[ctxKey{cc.CreatorID, cc.ConsumerID}] = cc
	return nil
}

func (f *fakeContextRepo) ListByStage(ctx context.Context, creatorID uuid.UUID, stage models.Stage, limit int) ([]*models.ConsumerContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ConsumerContext
	for _, cc := range f.contexts {
		if cc.CreatorID == creatorID && cc.Stage == stage {
			out = append(out, cc)
		}
	}
	return out, nil
}

type fakeConsumerRepo struct {
	mu        sync.Mutex
	consumers map[uuid.UUID]*models.Consumer
}

func newFakeConsumerRepo() *fakeConsumerRepo {
	return &fakeConsumerRepo{consumers: make(map[uuid.UUID]*models.Consumer)}
}

var _ repositories.ConsumerRepository = (*fakeConsumerRepo)(nil)

func (f *fakeConsumerRepo) Create(ctx context.Context, c *models.Consumer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	f.consumers[c.ID] = c
	return nil
}

func (f *fakeConsumerRepo) Update(ctx context.Context, c *models.Consumer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.consumers[c.ID]; !ok {
		return apperrors.ErrNotFound
	}
	f.consumers[c.ID] = c
	return nil
}

func (f *fakeConsumerRepo) GetByID(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.Consumer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consumers[consumerID]
	if !ok || c.CreatorID != creatorID {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (f *fakeConsumerRepo) GetByEmail(ctx context.Context, creatorID uuid.UUID, email string) (*models.Consumer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.consumers {
		if c.CreatorID == creatorID && c.Email == email {
			return c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeConsumerRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]*models.Consumer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Consumer
	for _, c := range f.consumers {
		if c.CreatorID == creatorID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConsumerRepo) Delete(ctx context.Context, creatorID, consumerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.consumers[consumerID]
	if !ok || c.CreatorID != creatorID {
		return apperrors.ErrNotFound
	}
	delete(f.consumers, consumerID)
	return nil
}

type fakeAgentRepo struct {
	mu     sync.Mutex
	agents map[uuid.UUID]*models.Agent
}

func newFakeAgentRepo() *fakeAgentRepo {
	return &fakeAgentRepo{agents: make(map[uuid.UUID]*models.Agent)}
}

var _ repositories.AgentRepository = (*fakeAgentRepo)(nil)

func (f *fakeAgentRepo) Create(ctx context.Context, a *models.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	for i := range a.Triggers {
		if a.Triggers[i].ID == uuid.Nil {
			a.Triggers[i].ID = uuid.New()
		}
		a.Triggers[i].AgentID = a.ID
	}
	a.CreatedAt = time.Now()
	f.agents[a.ID] = a
	return nil
}

func (f *fakeAgentRepo) Update(ctx context.Context, a *models.Agent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.agents[a.ID]; !ok {
		return apperrors.ErrNotFound
	}
	f.agents[a.ID] = a
	return nil
}

func (f *fakeAgentRepo) Delete(ctx context.Context, agentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.agents[agentID]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.agents, agentID)
	return nil
}

func (f *fakeAgentRepo) GetByID(ctx context.Context, agentID uuid.UUID) (*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[agentID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeAgentRepo) ListForCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Agent
	for _, a := range f.agents {
		if !a.Enabled {
			continue
		}
		if a.CreatorID == nil || *a.CreatorID == creatorID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeAgentRepo) ListAll(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Agent
	for _, a := range f.agents {
		if a.CreatorID == nil || *a.CreatorID == creatorID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAgentRepo) AddTrigger(ctx context.Context, t *models.AgentTrigger) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.agents[t.AgentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	a.Triggers = append(a.Triggers, *t)
	return nil
}

func (f *fakeAgentRepo) DeleteTrigger(ctx context.Context, triggerID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.agents {
		for i, t := range a.Triggers {
			if t.ID == triggerID {
				a.Triggers = append(a.Triggers[:i], a.Triggers[i+1:]...)
				return nil
			}
		}
	}
	return apperrors.ErrNotFound
}

type fakeInvocationRepo struct {
	mu          sync.Mutex
	invocations map[uuid.UUID]*models.AgentInvocation
}

func newFakeInvocationRepo() *fakeInvocationRepo {
	return &fakeInvocationRepo{invocations: make(map[uuid.UUID]*models.AgentInvocation)}
}

var _ repositories.InvocationRepository = (*fakeInvocationRepo)(nil)

func (f *fakeInvocationRepo) Create(ctx context.Context, inv *models.AgentInvocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	inv.CreatedAt = time.Now()
	inv.UpdatedAt = inv.CreatedAt
	cp := *inv
	f.invocations[inv.ID] = &cp
	return nil
}

func (f *fakeInvocationRepo) MarkRunning(ctx context.Context, id uuid.UUID) error {
	return f.setStatus(id, models.InvocationRunning, nil, "")
}

func (f *fakeInvocationRepo) MarkCompleted(ctx context.Context, id uuid.UUID, result kv.Map) error {
	return f.setStatus(id, models.InvocationCompleted, result, "")
}

func (f *fakeInvocationRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	return f.setStatus(id, models.InvocationFailed, nil, errMsg)
}

func (f *fakeInvocationRepo) setStatus(id uuid.UUID, status models.InvocationStatus, result kv.Map, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invocations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	inv.Status = status
	if result != nil {
		inv.Result = result
	}
	inv.Error = errMsg
	inv.UpdatedAt = time.Now()
	return nil
}

func (f *fakeInvocationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AgentInvocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inv, ok := f.invocations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return inv, nil
}

func (f *fakeInvocationRepo) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.AgentInvocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AgentInvocation
	for _, inv := range f.invocations {
		if inv.CreatorID == creatorID && inv.ConsumerID == consumerID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (f *fakeInvocationRepo) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.AgentInvocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.AgentInvocation
	for _, inv := range f.invocations {
		if inv.TriggerEventID == eventID {
			out = append(out, inv)
		}
	}
	return out, nil
}

type fakeActionRepo struct {
	mu      sync.Mutex
	actions map[uuid.UUID]*models.Action

	// claimErr, when set, is returned by Claim to simulate a
	// concurrent sweep winning the race.
	claimErr error
}

func newFakeActionRepo() *fakeActionRepo {
	return &fakeActionRepo{actions: make(map[uuid.UUID]*models.Action)}
}

var _ repositories.ActionRepository = (*fakeActionRepo)(nil)

func (f *fakeActionRepo) Create(ctx context.Context, a *models.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = models.ActionPlanned
	}
	if a.Priority == 0 {
		a.Priority = 1.0
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	f.actions[a.ID] = &cp
	return nil
}

func (f *fakeActionRepo) GetByID(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actions[actionID]
	if !ok || a.CreatorID != creatorID {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeActionRepo) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Action
	for _, a := range f.actions {
		if a.CreatorID == creatorID && a.ConsumerID == consumerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActionRepo) ListByStatus(ctx context.Context, creatorID uuid.UUID, status models.ActionStatus, limit int) ([]*models.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Action
	for _, a := range f.actions {
		if a.CreatorID == creatorID && a.Status == status {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActionRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Action
	for _, a := range f.actions {
		if a.Due(now) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].SendAt.Before(out[j].SendAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeActionRepo) Claim(ctx context.Context, actionID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	a, ok := f.actions[actionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	if a.Status != models.ActionPlanned && a.Status != models.ActionApproved {
		return apperrors.ErrConflict
	}
	a.Status = models.ActionExecuting
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeActionRepo) MarkExecuted(ctx context.Context, actionID uuid.UUID, result kv.Map) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actions[actionID]
	if !ok || a.Status != models.ActionExecuting {
		return apperrors.ErrNotFound
	}
	a.Status = models.ActionExecuted
	a.Result = result
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeActionRepo) MarkFailed(ctx context.Context, actionID uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actions[actionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.Status = models.ActionFailed
	a.Error = errMsg
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeActionRepo) SetStatus(ctx context.Context, creatorID, actionID uuid.UUID, status models.ActionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.actions[actionID]
	if !ok || a.CreatorID != creatorID {
		return apperrors.ErrNotFound
	}
	a.Status = status
	a.UpdatedAt = time.Now()
	return nil
}

func (f *fakeActionRepo) CountSentSince(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, a := range f.actions {
		if a.CreatorID == creatorID && a.ConsumerID == consumerID && a.Channel == channel &&
			(a.Status == models.ActionExecuted || a.Status == models.ActionExecuting) &&
			!a.UpdatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

type fakePolicyRepo struct {
	mu    sync.Mutex
	rules map[ctxKey2]*models.PolicyRule
}

type ctxKey2 struct {
	creator uuid.UUID
	key     string
}

func newFakePolicyRepo() *fakePolicyRepo {
	return &fakePolicyRepo{rules: make(map[ctxKey2]*models.PolicyRule)}
}

var _ repositories.PolicyRepository = (*fakePolicyRepo)(nil)

func (f *fakePolicyRepo) Upsert(ctx context.Context, rule *models.PolicyRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	f.rules[ctxKey2{rule.CreatorID, rule.Key}] = rule
	return nil
}

func (f *fakePolicyRepo) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]*models.PolicyRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.PolicyRule
	for k, r := range f.rules {
		if k.creator == creatorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakePolicyRepo) Delete(ctx context.Context, creatorID uuid.UUID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := ctxKey2{creatorID, key}
	if _, ok := f.rules[k]; !ok {
		return apperrors.ErrNotFound
	}
	delete(f.rules, k)
	return nil
}

// fakePublisher records evaluation jobs in publish order.
type fakePublisher struct {
	mu   sync.Mutex
	jobs []uuid.UUID
	err  error
}

func (f *fakePublisher) PublishEvaluation(ctx context.Context, creatorID, consumerID, eventID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, eventID)
	return nil
}

// fakeIdem is a map-backed idempotency store.
type fakeIdem struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{seen: make(map[string]bool)}
}

func (f *fakeIdem) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

// fakeIngestTx binds the transaction boundary to in-memory repos.
func fakeIngestTx(events repositories.EventRepository, contexts repositories.ContextRepository) ingestTx {
	return func(ctx context.Context, fn func(repositories.EventRepository, repositories.ContextRepository) error) error {
		return fn(events, contexts)
	}
}
