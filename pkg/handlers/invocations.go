package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// InvocationReader serves the agent audit trail.
type InvocationReader interface {
	ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.AgentInvocation, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*models.AgentInvocation, error)
}

// InvocationsHandler exposes the read-only invocation audit trail.
type InvocationsHandler struct {
	invocations InvocationReader
	logger      *zap.Logger
}

// NewInvocationsHandler creates a new invocations handler.
func NewInvocationsHandler(invocations InvocationReader, logger *zap.Logger) *InvocationsHandler {
	return &InvocationsHandler{invocations: invocations, logger: logger}
}

// RegisterRoutes registers the invocations handler's routes on the given mux.
func (h *InvocationsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/consumers/{id}/invocations", authMiddleware.RequireAuth(h.ListByConsumer))
	mux.HandleFunc("GET /api/events/{id}/invocations", authMiddleware.RequireAuth(h.ListByEvent))
}

// ListByConsumer handles GET /api/consumers/{id}/invocations.
func (h *InvocationsHandler) ListByConsumer(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	consumerID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	invocations, err := h.invocations.ListByConsumer(r.Context(), creatorID, consumerID, queryInt(r, "limit", 100))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	h.write(w, invocations)
}

// ListByEvent handles GET /api/events/{id}/invocations. Rows are
// creator-scoped upstream: events themselves are fetched by creator.
func (h *InvocationsHandler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	eventID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	invocations, err := h.invocations.ListByEvent(r.Context(), eventID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	// Filter to the caller's rows; the event ID alone does not prove
	// ownership.
	creatorID := auth.CreatorIDFromContext(r.Context())
	scoped := invocations[:0]
	for _, inv := range invocations {
		if inv.CreatorID == creatorID {
			scoped = append(scoped, inv)
		}
	}
	h.write(w, scoped)
}

func (h *InvocationsHandler) write(w http.ResponseWriter, invocations []*models.AgentInvocation) {
	if invocations == nil {
		invocations = []*models.AgentInvocation{}
	}
	if err := WriteJSON(w, http.StatusOK, invocations); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
