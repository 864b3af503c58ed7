package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
)

// PolicyService is the guardrail surface the handler needs.
type PolicyService interface {
	Rules(ctx context.Context, creatorID uuid.UUID) (map[string]int64, error)
	SetRule(ctx context.Context, creatorID uuid.UUID, key string, value int64) error
}

// PolicyRuleRequest is the body for PUT /api/policies/{key}.
type PolicyRuleRequest struct {
	Value int64 `json:"value"`
}

// PoliciesHandler handles the guardrail configuration.
type PoliciesHandler struct {
	policies PolicyService
	logger   *zap.Logger
}

// NewPoliciesHandler creates a new policies handler.
func NewPoliciesHandler(policies PolicyService, logger *zap.Logger) *PoliciesHandler {
	return &PoliciesHandler{policies: policies, logger: logger}
}

// RegisterRoutes registers the policies handler's routes on the given mux.
func (h *PoliciesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/policies", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("PUT /api/policies/{key}", authMiddleware.RequireAuth(h.Set))
}

// List handles GET /api/policies: effective values, defaults merged with
// the creator's overrides.
func (h *PoliciesHandler) List(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	rules, err := h.policies.Rules(r.Context(), creatorID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, rules); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Set handles PUT /api/policies/{key}.
func (h *PoliciesHandler) Set(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	key := r.PathValue("key")

	var req PolicyRuleRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := h.policies.SetRule(r.Context(), creatorID, key, req.Value); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]any{"key": key, "value": req.Value}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
