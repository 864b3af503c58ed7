package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// ActionService is the review surface the handler needs.
type ActionService interface {
	Get(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error)
	ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Action, error)
	ListByStatus(ctx context.Context, creatorID uuid.UUID, status models.ActionStatus, limit int) ([]*models.Action, error)
	Approve(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error)
	Deny(ctx context.Context, creatorID, actionID uuid.UUID) (*models.Action, error)
}

// ActionsHandler handles the action review surface.
type ActionsHandler struct {
	actions ActionService
	logger  *zap.Logger
}

// NewActionsHandler creates a new actions handler.
func NewActionsHandler(actions ActionService, logger *zap.Logger) *ActionsHandler {
	return &ActionsHandler{actions: actions, logger: logger}
}

// RegisterRoutes registers the actions handler's routes on the given mux.
func (h *ActionsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/actions", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/actions/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST /api/actions/{id}/approve", authMiddleware.RequireAuth(h.Approve))
	mux.HandleFunc("POST /api/actions/{id}/deny", authMiddleware.RequireAuth(h.Deny))
}

// List handles GET /api/actions filtered by consumer_id or status.
func (h *ActionsHandler) List(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	limit := queryInt(r, "limit", 100)

	var actions []*models.Action
	var err error

	if rawConsumer := r.URL.Query().Get("consumer_id"); rawConsumer != "" {
		var consumerID uuid.UUID
		consumerID, err = uuid.Parse(rawConsumer)
		if err != nil {
			ServiceError(w, h.logger, apperrors.NewValidation("consumer_id", "must be a UUID"))
			return
		}
		actions, err = h.actions.ListByConsumer(r.Context(), creatorID, consumerID, limit)
	} else {
		status := models.ActionStatus(r.URL.Query().Get("status"))
		switch status {
		case models.ActionPlanned, models.ActionApproved, models.ActionDenied,
			models.ActionExecuting, models.ActionExecuted, models.ActionFailed:
		default:
			ServiceError(w, h.logger, apperrors.NewValidation("status", "unknown status"))
			return
		}
		actions, err = h.actions.ListByStatus(r.Context(), creatorID, status, limit)
	}
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if actions == nil {
		actions = []*models.Action{}
	}

	if err := WriteJSON(w, http.StatusOK, actions); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/actions/{id}.
func (h *ActionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	actionID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	action, err := h.actions.Get(r.Context(), creatorID, actionID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, action); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Approve handles POST /api/actions/{id}/approve.
func (h *ActionsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.actions.Approve)
}

// Deny handles POST /api/actions/{id}/deny.
func (h *ActionsHandler) Deny(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.actions.Deny)
}

func (h *ActionsHandler) review(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID, uuid.UUID) (*models.Action, error)) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	actionID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	action, err := fn(r.Context(), creatorID, actionID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, action); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
