package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates validation to Service.
type Middleware struct {
	service *Service
	logger  *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given Service.
func NewMiddleware(service *Service, logger *zap.Logger) *Middleware {
	return &Middleware{service: service, logger: logger}
}

// RequireAuth validates the JWT and requires a creator scope.
// Sets claims in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.service.ValidateRequest(r)
		if err != nil {
			m.unauthorized(w, "Authentication required")
			return
		}

		if err := m.service.RequireCreatorID(claims); err != nil {
			m.badRequest(w, "Missing creator ID in token")
			return
		}

		ctx := context.WithValue(r.Context(), ClaimsKey, claims)
		next(w, r.WithContext(ctx))
	}
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusUnauthorized, "unauthorized", message)
}

func (m *Middleware) badRequest(w http.ResponseWriter, message string) {
	m.writeError(w, http.StatusBadRequest, "bad_request", message)
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	}); err != nil {
		m.logger.Error("Failed to write error response", zap.Error(err))
	}
}
