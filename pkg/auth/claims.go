// Package auth provides JWT-based authentication for loopreach-engine.
// Tokens are HMAC-signed with a shared secret and carry the creator
// (tenant) scope in the "cid" claim.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
)

// Claims represents the JWT claims structure. It embeds RegisteredClaims
// for standard JWT fields (sub, iss, exp) and adds the creator scope.
type Claims struct {
	jwt.RegisteredClaims
	CreatorID string `json:"cid,omitempty"` // Creator UUID
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// CreatorIDFromContext extracts the creator ID from JWT claims in the
// context. Returns uuid.Nil if not authenticated or the claim is
// missing or malformed.
func CreatorIDFromContext(ctx context.Context) uuid.UUID {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil || claims.CreatorID == "" {
		return uuid.Nil
	}

	creatorID, err := uuid.Parse(claims.CreatorID)
	if err != nil {
		return uuid.Nil
	}
	return creatorID
}
