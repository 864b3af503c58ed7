package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// CreatorService is the creator surface the handler needs.
type CreatorService interface {
	Onboard(ctx context.Context, name, email string, settings kv.Map) (*models.Creator, string, error)
	Get(ctx context.Context, creatorID uuid.UUID) (*models.Creator, error)
	UpdateSettings(ctx context.Context, creatorID uuid.UUID, settings kv.Map) error
}

// OnboardRequest is the body for POST /api/creators.
type OnboardRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email"`
	Settings map[string]any `json:"settings,omitempty"`
}

// OnboardResponse returns the created creator and its API token. The
// token is shown once; it is not retrievable later.
type OnboardResponse struct {
	Creator *models.Creator `json:"creator"`
	Token   string          `json:"token"`
}

// CreatorsHandler handles creator onboarding and settings.
type CreatorsHandler struct {
	creators CreatorService
	logger   *zap.Logger
}

// NewCreatorsHandler creates a new creators handler.
func NewCreatorsHandler(creators CreatorService, logger *zap.Logger) *CreatorsHandler {
	return &CreatorsHandler{creators: creators, logger: logger}
}

// RegisterRoutes registers the creators handler's routes on the given
// mux. Onboarding is the one unauthenticated route: it mints the token.
func (h *CreatorsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/creators", h.Onboard)
	mux.HandleFunc("GET /api/creators/me", authMiddleware.RequireAuth(h.GetMe))
	mux.HandleFunc("PUT /api/creators/me/settings", authMiddleware.RequireAuth(h.UpdateSettings))
}

// Onboard handles POST /api/creators.
func (h *CreatorsHandler) Onboard(w http.ResponseWriter, r *http.Request) {
	var req OnboardRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	creator, token, err := h.creators.Onboard(r.Context(), req.Name, req.Email, kv.FromAny(req.Settings))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, OnboardResponse{Creator: creator, Token: token}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetMe handles GET /api/creators/me.
func (h *CreatorsHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	creator, err := h.creators.Get(r.Context(), creatorID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, creator); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateSettings handles PUT /api/creators/me/settings.
func (h *CreatorsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	var settings map[string]any
	if err := decodeBody(r, &settings); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := h.creators.UpdateSettings(r.Context(), creatorID, kv.FromAny(settings)); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
