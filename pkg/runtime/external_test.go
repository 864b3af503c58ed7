package runtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

func externalAgent(endpoint string) *models.Agent {
	return &models.Agent{
		ID:             uuid.New(),
		Implementation: models.ImplExternalHTTP,
		Config:         kv.Map{"endpoint": kv.String(endpoint)},
	}
}

func TestExternalHTTPRuntime_Success(t *testing.T) {
	var received Input
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(Output{
			ShouldAct: true,
			Drafts: []Draft{{
				ActionType: models.ActionSendEmail,
				Channel:    models.ChannelEmail,
				Payload:    kv.Map{"to": kv.String("lead@example.com")},
				Priority:   1.0,
			}},
			Reasoning: "external says go",
		})
	}))
	defer server.Close()

	rt := NewExternalHTTPRuntime(5*time.Second, zap.NewNop())
	input := testInput(models.EventPageView, models.StageNew, kv.New(), kv.New())

	out, err := rt.Execute(context.Background(), externalAgent(server.URL), input)
	require.NoError(t, err)
	assert.True(t, out.ShouldAct)
	require.Len(t, out.Drafts, 1)
	assert.Equal(t, "lead@example.com", out.Drafts[0].Payload.GetString("to"))
	assert.Equal(t, input.Event.ID, received.Event.ID)
}

func TestExternalHTTPRuntime_MissingEndpoint(t *testing.T) {
	rt := NewExternalHTTPRuntime(time.Second, zap.NewNop())
	agent := &models.Agent{ID: uuid.New(), Config: kv.New()}
	input := testInput(models.EventPageView, models.StageNew, kv.New(), kv.New())

	_, err := rt.Execute(context.Background(), agent, input)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestExternalHTTPRuntime_ServerErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	rt := NewExternalHTTPRuntime(time.Second, zap.NewNop())
	input := testInput(models.EventPageView, models.StageNew, kv.New(), kv.New())

	_, err := rt.Execute(context.Background(), externalAgent(server.URL), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
}

func TestExternalHTTPRuntime_ClientErrorIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	rt := NewExternalHTTPRuntime(time.Second, zap.NewNop())
	input := testInput(models.EventPageView, models.StageNew, kv.New(), kv.New())

	_, err := rt.Execute(context.Background(), externalAgent(server.URL), input)
	require.Error(t, err)
	assert.False(t, apperrors.IsTransient(err))
}

func TestExternalHTTPRuntime_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	rt := NewExternalHTTPRuntime(time.Second, zap.NewNop())
	input := testInput(models.EventPageView, models.StageNew, kv.New(), kv.New())

	_, err := rt.Execute(context.Background(), externalAgent(server.URL), input)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode agent response")
}

func TestExternalHTTPRuntime_NetworkFailureIsTransient(t *testing.T) {
	// Point at a closed server.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	rt := NewExternalHTTPRuntime(time.Second, zap.NewNop())
	input := testInput(models.EventPageView, models.StageNew, kv.New(), kv.New())

	_, err := rt.Execute(context.Background(), externalAgent(url), input)
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
}
