package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

func newConsumersServer(t *testing.T, consumers ConsumerService, contexts ContextReader, creatorID uuid.UUID) (*http.ServeMux, string) {
	t.Helper()
	middleware, token := newTestAuth(t, creatorID)
	mux := http.NewServeMux()
	NewConsumersHandler(consumers, contexts, zap.NewNop()).RegisterRoutes(mux, middleware)
	return mux, token
}

func TestConsumersHandler_Create(t *testing.T) {
	creatorID := uuid.New()
	svc := &mockConsumerService{
		createFunc: func(ctx context.Context, consumer *models.Consumer) error {
			assert.Equal(t, creatorID, consumer.CreatorID)
			assert.Equal(t, "lead@example.com", consumer.Email)
			consumer.ID = uuid.New()
			return nil
		},
	}
	mux, token := newConsumersServer(t, svc, &mockContextReader{}, creatorID)

	body := `{"email":"lead@example.com","name":"Jordan"}`
	req := authedRequest(t, http.MethodPost, "/api/consumers", token, &body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp models.Consumer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEqual(t, uuid.Nil, resp.ID)
}

func TestConsumersHandler_Create_ValidationError(t *testing.T) {
	svc := &mockConsumerService{
		createFunc: func(ctx context.Context, consumer *models.Consumer) error {
			return apperrors.NewValidation("contact", "at least one of email, phone, whatsapp is required")
		},
	}
	mux, token := newConsumersServer(t, svc, &mockContextReader{}, uuid.New())

	body := `{"name":"Jordan"}`
	req := authedRequest(t, http.MethodPost, "/api/consumers", token, &body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsumersHandler_SetConsent(t *testing.T) {
	creatorID := uuid.New()
	consumerID := uuid.New()

	var gotChannel models.Channel
	var gotGranted bool
	svc := &mockConsumerService{
		setConsentFunc: func(ctx context.Context, _, _ uuid.UUID, channel models.Channel, granted bool) error {
			gotChannel = channel
			gotGranted = granted
			return nil
		},
	}
	mux, token := newConsumersServer(t, svc, &mockContextReader{}, creatorID)

	body := `{"channel":"whatsapp","granted":true}`
	req := authedRequest(t, http.MethodPost, "/api/consumers/"+consumerID.String()+"/consent", token, &body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.ChannelWhatsApp, gotChannel)
	assert.True(t, gotGranted)
}

func TestConsumersHandler_SetConsent_UnknownChannel(t *testing.T) {
	mux, token := newConsumersServer(t, &mockConsumerService{}, &mockContextReader{}, uuid.New())

	body := `{"channel":"telegraph","granted":true}`
	req := authedRequest(t, http.MethodPost, "/api/consumers/"+uuid.NewString()+"/consent", token, &body)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsumersHandler_GetContext(t *testing.T) {
	creatorID := uuid.New()
	consumerID := uuid.New()
	contexts := &mockContextReader{
		getFunc: func(ctx context.Context, _, gotConsumer uuid.UUID) (*models.ConsumerContext, error) {
			assert.Equal(t, consumerID, gotConsumer)
			return &models.ConsumerContext{
				ConsumerID: gotConsumer,
				Stage:      models.StageEngaged,
				Metrics:    kv.Map{"page_views": kv.Int(5)},
			}, nil
		},
	}
	mux, token := newConsumersServer(t, &mockConsumerService{}, contexts, creatorID)

	req := authedRequest(t, http.MethodGet, "/api/consumers/"+consumerID.String()+"/context", token, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp models.ConsumerContext
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.StageEngaged, resp.Stage)
}

func TestConsumersHandler_GetContext_NotFound(t *testing.T) {
	contexts := &mockContextReader{
		getFunc: func(ctx context.Context, _, _ uuid.UUID) (*models.ConsumerContext, error) {
			return nil, apperrors.ErrNotFound
		},
	}
	mux, token := newConsumersServer(t, &mockConsumerService{}, contexts, uuid.New())

	req := authedRequest(t, http.MethodGet, "/api/consumers/"+uuid.NewString()+"/context", token, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConsumersHandler_Delete(t *testing.T) {
	deleted := false
	svc := &mockConsumerService{
		deleteFunc: func(ctx context.Context, _, _ uuid.UUID) error {
			deleted = true
			return nil
		},
	}
	mux, token := newConsumersServer(t, svc, &mockContextReader{}, uuid.New())

	req := authedRequest(t, http.MethodDelete, "/api/consumers/"+uuid.NewString(), token, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, deleted)
}

func TestConsumersHandler_ListContexts_UnknownStage(t *testing.T) {
	mux, token := newConsumersServer(t, &mockConsumerService{}, &mockContextReader{}, uuid.New())

	req := authedRequest(t, http.MethodGet, "/api/contexts?stage=lukewarm", token, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
