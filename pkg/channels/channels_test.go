package channels

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
	"github.com/loopreach-ai/loopreach-engine/pkg/config"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

func TestEmailSender_Send(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		json.NewEncoder(w).Encode(map[string]any{"message_id": "msg-1"})
	}))
	defer server.Close()

	sender := NewEmailSender(server.URL, "test-key", "team@creator.com", time.Second, zap.NewNop())
	result, err := sender.Send(context.Background(), uuid.New(), uuid.New(), kv.Map{
		"to":      kv.String("lead@example.com"),
		"subject": kv.String("Welcome!"),
		"body":    kv.String("Hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "msg-1", result.GetString("message_id"))
	assert.Equal(t, "team@creator.com", received["from"])
	assert.Equal(t, "lead@example.com", received["to"])
}

func TestEmailSender_MissingFields(t *testing.T) {
	sender := NewEmailSender("http://unused", "", "", time.Second, zap.NewNop())
	_, err := sender.Send(context.Background(), uuid.New(), uuid.New(), kv.Map{
		"to": kv.String("lead@example.com"),
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsPermanent(err))
}

func TestWhatsAppSender_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"sid": "SM123"})
	}))
	defer server.Close()

	sender := NewWhatsAppSender(server.URL, "token", "+15550000", time.Second, zap.NewNop())
	result, err := sender.Send(context.Background(), uuid.New(), uuid.New(), kv.Map{
		"to":      kv.String("+15551234"),
		"message": kv.String("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, "SM123", result.GetString("sid"))
}

func TestCallSender_DefaultsToImmediate(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewCallSender(server.URL, time.Second, zap.NewNop())
	result, err := sender.Send(context.Background(), uuid.New(), uuid.New(), kv.Map{
		"to": kv.String("+15551234"),
	})
	require.NoError(t, err)
	assert.Equal(t, "immediate", received["call_type"])
	assert.Equal(t, "immediate", result.GetString("call_type"))
}

func TestPaymentSender_RequiresProduct(t *testing.T) {
	sender := NewPaymentSender("http://unused", "", time.Second, zap.NewNop())
	_, err := sender.Send(context.Background(), uuid.New(), uuid.New(), kv.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsPermanent(err))
}

func TestProviderClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"server error", http.StatusServiceUnavailable, true},
		{"rejection", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			sender := NewWhatsAppSender(server.URL, "", "", time.Second, zap.NewNop())
			_, err := sender.Send(context.Background(), uuid.New(), uuid.New(), kv.Map{
				"to":      kv.String("+15551234"),
				"message": kv.String("hi"),
			})
			require.Error(t, err)
			assert.Equal(t, tt.transient, apperrors.IsTransient(err))
			assert.Equal(t, !tt.transient, apperrors.IsPermanent(err))
		})
	}
}

func TestLogSender_Send(t *testing.T) {
	sender := NewLogSender(models.ChannelEmail, zap.NewNop())
	result, err := sender.Send(context.Background(), uuid.New(), uuid.New(), kv.Map{
		"to": kv.String("lead@example.com"),
	})
	require.NoError(t, err)
	assert.True(t, result["simulated"].Bool())
	assert.Equal(t, "email", result.GetString("channel"))
}

func TestRegistry_UnknownChannel(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Get(models.ChannelEmail)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestNewRegistryFromConfig_FallsBackToLogging(t *testing.T) {
	registry := NewRegistryFromConfig(&config.ChannelConfig{Timeout: time.Second}, zap.NewNop())

	for _, ch := range models.Channels() {
		sender, err := registry.Get(ch)
		require.NoError(t, err)
		_, ok := sender.(*LogSender)
		assert.True(t, ok, "channel %s should fall back to the log sender", ch)
	}
}

func TestNewRegistryFromConfig_UsesConfiguredEndpoints(t *testing.T) {
	registry := NewRegistryFromConfig(&config.ChannelConfig{
		Timeout:       time.Second,
		EmailEndpoint: "http://email.example.com",
	}, zap.NewNop())

	sender, err := registry.Get(models.ChannelEmail)
	require.NoError(t, err)
	_, ok := sender.(*EmailSender)
	assert.True(t, ok)
}
