package testhelpers

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/config"
)

// TestSigningSecret is the HMAC secret integration tests sign with.
const TestSigningSecret = "test-signing-secret"

// NewAuthService returns an auth service configured with the test secret.
func NewAuthService() *auth.Service {
	return auth.NewService(&config.AuthConfig{
		EnableVerification: true,
		SigningSecret:      TestSigningSecret,
	})
}

// CreatorToken mints a token scoped to creatorID.
func CreatorToken(t *testing.T, creatorID uuid.UUID) string {
	t.Helper()
	token, err := NewAuthService().IssueToken(creatorID.String(), time.Hour)
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return token
}

// CreatorTokenWithBearer returns the token with the "Bearer " prefix for
// the Authorization header.
func CreatorTokenWithBearer(t *testing.T, creatorID uuid.UUID) string {
	return "Bearer " + CreatorToken(t, creatorID)
}
