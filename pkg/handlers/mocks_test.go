package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/config"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/services"
)

// newTestAuth returns a middleware plus a bearer token for creatorID.
func newTestAuth(t *testing.T, creatorID uuid.UUID) (*auth.Middleware, string) {
	t.Helper()
	svc := auth.NewService(&config.AuthConfig{
		EnableVerification: true,
		SigningSecret:      "test-secret",
	})
	token, err := svc.IssueToken(creatorID.String(), time.Hour)
	require.NoError(t, err)
	return auth.NewMiddleware(svc, zap.NewNop()), token
}

func authedRequest(t *testing.T, method, target, token string, body *string) *http.Request {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, strings.NewReader(*body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// mockEventService implements EventService.
type mockEventService struct {
	ingestFunc func(ctx context.Context, creatorID uuid.UUID, req *services.EventCreate) (*models.Event, *models.ConsumerContext, error)
	getFunc    func(ctx context.Context, creatorID, eventID uuid.UUID) (*models.Event, error)
	listFunc   func(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Event, error)
}

func (m *mockEventService) Ingest(ctx context.Context, creatorID uuid.UUID, req *services.EventCreate) (*models.Event, *models.ConsumerContext, error) {
	return m.ingestFunc(ctx, creatorID, req)
}

func (m *mockEventService) Get(ctx context.Context, creatorID, eventID uuid.UUID) (*models.Event, error) {
	if m.getFunc == nil {
		return nil, nil
	}
	return m.getFunc(ctx, creatorID, eventID)
}

func (m *mockEventService) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Event, error) {
	if m.listFunc == nil {
		return nil, nil
	}
	return m.listFunc(ctx, creatorID, consumerID, limit)
}

func (m *mockEventService) ListByType(ctx context.Context, creatorID uuid.UUID, eventType string, since time.Time, limit int) ([]*models.Event, error) {
	return nil, nil
}

// mockConsumerService implements ConsumerService.
type mockConsumerService struct {
	createFunc     func(ctx context.Context, consumer *models.Consumer) error
	getFunc        func(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.Consumer, error)
	setConsentFunc func(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, granted bool) error
	deleteFunc     func(ctx context.Context, creatorID, consumerID uuid.UUID) error
}

func (m *mockConsumerService) Create(ctx context.Context, consumer *models.Consumer) error {
	return m.createFunc(ctx, consumer)
}

func (m *mockConsumerService) Update(ctx context.Context, consumer *models.Consumer) error {
	return nil
}

func (m *mockConsumerService) Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.Consumer, error) {
	if m.getFunc == nil {
		return &models.Consumer{ID: consumerID, CreatorID: creatorID}, nil
	}
	return m.getFunc(ctx, creatorID, consumerID)
}

func (m *mockConsumerService) List(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]*models.Consumer, error) {
	return nil, nil
}

func (m *mockConsumerService) Delete(ctx context.Context, creatorID, consumerID uuid.UUID) error {
	if m.deleteFunc == nil {
		return nil
	}
	return m.deleteFunc(ctx, creatorID, consumerID)
}

func (m *mockConsumerService) SetConsent(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, granted bool) error {
	if m.setConsentFunc == nil {
		return nil
	}
	return m.setConsentFunc(ctx, creatorID, consumerID, channel, granted)
}

// mockContextReader implements ContextReader.
type mockContextReader struct {
	getFunc func(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error)
}

func (m *mockContextReader) Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error) {
	return m.getFunc(ctx, creatorID, consumerID)
}

func (m *mockContextReader) ListByStage(ctx context.Context, creatorID uuid.UUID, stage models.Stage, limit int) ([]*models.ConsumerContext, error) {
	return nil, nil
}

// mockActionService implements ActionService.
type mockActionService struct {
	approveFunc func(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error)
	denyFunc    func(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error)
	listFunc    func(ctx context.Context, creatorID uuid.UUID, status models.ActionStatus, limit int) ([]*models.Action, error)
}

func (m *mockActionService) Get(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	return &models.Action{ID: actionID, CreatorID: creatorID}, nil
}

func (m *mockActionService) ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Action, error) {
	return nil, nil
}

func (m *mockActionService) ListByStatus(ctx context.Context, creatorID uuid.UUID, status models.ActionStatus, limit int) ([]*models.Action, error) {
	if m.listFunc == nil {
		return nil, nil
	}
	return m.listFunc(ctx, creatorID, status, limit)
}

func (m *mockActionService) Approve(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	return m.approveFunc(ctx, creatorID, actionID)
}

func (m *mockActionService) Deny(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error) {
	return m.denyFunc(ctx, creatorID, actionID)
}

// mockAgentService implements AgentService.
type mockAgentService struct {
	createFunc     func(ctx context.Context, agent *models.Agent) error
	getFunc        func(ctx context.Context, creatorID, agentID uuid.UUID) (*models.Agent, error)
	setEnabledFunc func(ctx context.Context, creatorID, agentID uuid.UUID, enabled bool) error
	addTriggerFunc func(ctx context.Context, creatorID uuid.UUID, trigger *models.AgentTrigger) error
}

func (m *mockAgentService) Create(ctx context.Context, agent *models.Agent) error {
	if m.createFunc == nil {
		return nil
	}
	return m.createFunc(ctx, agent)
}

func (m *mockAgentService) Update(ctx context.Context, creatorID uuid.UUID, agent *models.Agent) error {
	return nil
}

func (m *mockAgentService) Delete(ctx context.Context, creatorID, agentID uuid.UUID) error {
	return nil
}

func (m *mockAgentService) SetEnabled(ctx context.Context, creatorID, agentID uuid.UUID, enabled bool) error {
	if m.setEnabledFunc == nil {
		return nil
	}
	return m.setEnabledFunc(ctx, creatorID, agentID, enabled)
}

func (m *mockAgentService) Get(ctx context.Context, creatorID, agentID uuid.UUID) (*models.Agent, error) {
	if m.getFunc == nil {
		return &models.Agent{ID: agentID, CreatorID: &creatorID}, nil
	}
	return m.getFunc(ctx, creatorID, agentID)
}

func (m *mockAgentService) List(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error) {
	return nil, nil
}

func (m *mockAgentService) AddTrigger(ctx context.Context, creatorID uuid.UUID, trigger *models.AgentTrigger) error {
	if m.addTriggerFunc == nil {
		return nil
	}
	return m.addTriggerFunc(ctx, creatorID, trigger)
}

// mockPolicyService implements PolicyService.
type mockPolicyService struct {
	rulesFunc   func(ctx context.Context, creatorID uuid.UUID) (map[string]int64, error)
	setRuleFunc func(ctx context.Context, creatorID uuid.UUID, key string, value int64) error
}

func (m *mockPolicyService) Rules(ctx context.Context, creatorID uuid.UUID) (map[string]int64, error) {
	return m.rulesFunc(ctx, creatorID)
}

func (m *mockPolicyService) SetRule(ctx context.Context, creatorID uuid.UUID, key string, value int64) error {
	if m.setRuleFunc == nil {
		return nil
	}
	return m.setRuleFunc(ctx, creatorID, key, value)
}

// mockCreatorService implements CreatorService.
type mockCreatorService struct {
	onboardFunc func(ctx context.Context, name, email string, settings kv.Map) (*models.Creator, string, error)
}

func (m *mockCreatorService) Onboard(ctx context.Context, name, email string, settings kv.Map) (*models.Creator, string, error) {
	return m.onboardFunc(ctx, name, email, settings)
}

func (m *mockCreatorService) Get(ctx context.Context, creatorID uuid.UUID) (*models.Creator, error) {
	return &models.Creator{ID: creatorID}, nil
}

func (m *mockCreatorService) UpdateSettings(ctx context.Context, creatorID uuid.UUID, settings kv.Map) error {
	return nil
}
