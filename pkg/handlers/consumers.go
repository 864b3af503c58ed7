package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
)

// ConsumerService is the lead surface the handler needs.
type ConsumerService interface {
	Create(ctx context.Context, consumer *models.Consumer) error
	Update(ctx context.Context, consumer *models.Consumer) error
	Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.Consumer, error)
	List(ctx context.Context, creatorID uuid.UUID, limit, offset int) ([]*models.Consumer, error)
	Delete(ctx context.Context, creatorID, consumerID uuid.UUID) error
	SetConsent(ctx context.Context, creatorID, consumerID uuid.UUID, channel models.Channel, granted bool) error
}

// ContextReader serves the aggregated consumer context.
type ContextReader interface {
	Get(ctx context.Context, creatorID, consumerID uuid.UUID) (*models.ConsumerContext, error)
	ListByStage(ctx context.Context, creatorID uuid.UUID, stage models.Stage, limit int) ([]*models.ConsumerContext, error)
}

// ConsumerRequest is the body for creating or updating a lead.
type ConsumerRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	WhatsApp string `json:"whatsapp,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// ConsentRequest is the body for POST /api/consumers/{id}/consent.
type ConsentRequest struct {
	Channel string `json:"channel"`
	Granted bool   `json:"granted"`
}

// ConsumersHandler handles lead management and context reads.
type ConsumersHandler struct {
	consumers ConsumerService
	contexts  ContextReader
	logger    *zap.Logger
}

// NewConsumersHandler creates a new consumers handler.
func NewConsumersHandler(consumers ConsumerService, contexts ContextReader, logger *zap.Logger) *ConsumersHandler {
	return &ConsumersHandler{consumers: consumers, contexts: contexts, logger: logger}
}

// RegisterRoutes registers the consumers handler's routes on the given mux.
func (h *ConsumersHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/consumers", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/consumers", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/consumers/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/consumers/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/consumers/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/consumers/{id}/consent", authMiddleware.RequireAuth(h.SetConsent))
	mux.HandleFunc("GET /api/consumers/{id}/context", authMiddleware.RequireAuth(h.GetContext))
	mux.HandleFunc("GET /api/contexts", authMiddleware.RequireAuth(h.ListContextsByStage))
}

// Create handles POST /api/consumers.
func (h *ConsumersHandler) Create(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	var req ConsumerRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	consumer := &models.Consumer{
		CreatorID: creatorID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		WhatsApp:  req.WhatsApp,
		Timezone:  req.Timezone,
	}
	if err := h.consumers.Create(r.Context(), consumer); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, consumer); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/consumers?limit=&offset=.
func (h *ConsumersHandler) List(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	consumers, err := h.consumers.List(r.Context(), creatorID, limit, offset)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if consumers == nil {
		consumers = []*models.Consumer{}
	}

	if err := WriteJSON(w, http.StatusOK, consumers); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/consumers/{id}.
func (h *ConsumersHandler) Get(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	consumerID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	consumer, err := h.consumers.Get(r.Context(), creatorID, consumerID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, consumer); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/consumers/{id}.
func (h *ConsumersHandler) Update(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	consumerID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	consumer, err := h.consumers.Get(r.Context(), creatorID, consumerID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	var req ConsumerRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	consumer.Name = req.Name
	consumer.Email = req.Email
	consumer.Phone = req.Phone
	consumer.WhatsApp = req.WhatsApp
	consumer.Timezone = req.Timezone

	if err := h.consumers.Update(r.Context(), consumer); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, consumer); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/consumers/{id}.
func (h *ConsumersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	consumerID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := h.consumers.Delete(r.Context(), creatorID, consumerID); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetConsent handles POST /api/consumers/{id}/consent.
func (h *ConsumersHandler) SetConsent(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	consumerID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	var req ConsentRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	channel := models.Channel(req.Channel)
	switch channel {
	case models.ChannelEmail, models.ChannelWhatsApp, models.ChannelCall:
	default:
		ServiceError(w, h.logger, apperrors.NewValidation("channel", "must be email, whatsapp, or call"))
		return
	}

	if err := h.consumers.SetConsent(r.Context(), creatorID, consumerID, channel, req.Granted); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetContext handles GET /api/consumers/{id}/context.
func (h *ConsumersHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	consumerID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	cc, err := h.contexts.Get(r.Context(), creatorID, consumerID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, cc); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListContextsByStage handles GET /api/contexts?stage=.
func (h *ConsumersHandler) ListContextsByStage(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	stage := models.Stage(r.URL.Query().Get("stage"))
	switch stage {
	case models.StageNew, models.StageInterested, models.StageEngaged, models.StageConverted, models.StageChurned:
	default:
		ServiceError(w, h.logger, apperrors.NewValidation("stage", "unknown stage"))
		return
	}

	contexts, err := h.contexts.ListByStage(r.Context(), creatorID, stage, queryInt(r, "limit", 100))
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if contexts == nil {
		contexts = []*models.ConsumerContext{}
	}

	if err := WriteJSON(w, http.StatusOK, contexts); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// pathUUID parses a UUID path segment.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, apperrors.NewValidation(name, "must be a UUID")
	}
	return id, nil
}

// queryInt parses a query parameter with a fallback.
func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
