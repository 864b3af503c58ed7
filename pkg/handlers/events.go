package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/loopreach-ai/loopreach-engine/pkg/apperrors"
	"github.com/loopreach-ai/loopreach-engine/pkg/auth"
	"github.com/loopreach-ai/loopreach-engine/pkg/kv"
	"github.com/loopreach-ai/loopreach-engine/pkg/models"
	"github.com/loopreach-ai/loopreach-engine/pkg/services"
)

// EventService is the ingestion surface the handler needs.
type EventService interface {
	Ingest(ctx context.Context, creatorID uuid.UUID, req *services.EventCreate) (*models.Event, *models.ConsumerContext, error)
	Get(ctx context.Context, creatorID, eventID uuid.UUID) (*models.Event, error)
	ListByConsumer(ctx context.Context, creatorID, consumerID uuid.UUID, limit int) ([]*models.Event, error)
	ListByType(ctx context.Context, creatorID uuid.UUID, eventType string, since time.Time, limit int) ([]*models.Event, error)
}

// IngestRequest is the body for POST /api/events.
type IngestRequest struct {
	ConsumerID     uuid.UUID      `json:"consumer_id"`
	Type           string         `json:"type"`
	Source         string         `json:"source"`
	Payload        map[string]any `json:"payload,omitempty"`
	Timestamp      time.Time      `json:"timestamp,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
}

// IngestResponse returns the stored event and the refreshed context.
type IngestResponse struct {
	Event   *models.Event           `json:"event"`
	Context *models.ConsumerContext `json:"context"`
}

// EventsHandler handles event ingestion and queries.
type EventsHandler struct {
	events EventService
	logger *zap.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(events EventService, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{events: events, logger: logger}
}

// RegisterRoutes registers the events handler's routes on the given mux.
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/events", authMiddleware.RequireAuth(h.Ingest))
	mux.HandleFunc("GET /api/events", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/events/{id}", authMiddleware.RequireAuth(h.Get))
}

// Ingest handles POST /api/events. The Idempotency-Key header takes
// precedence over the body field.
func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	var req IngestRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	idemKey := req.IdempotencyKey
	if headerKey := r.Header.Get("Idempotency-Key"); headerKey != "" {
		idemKey = headerKey
	}

	event, cc, err := h.events.Ingest(r.Context(), creatorID, &services.EventCreate{
		ConsumerID:     req.ConsumerID,
		Type:           req.Type,
		Source:         models.EventSource(req.Source),
		Payload:        kv.FromAny(req.Payload),
		Timestamp:      req.Timestamp,
		IdempotencyKey: idemKey,
	})
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, IngestResponse{Event: event, Context: cc}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	eventID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	event, err := h.events.Get(r.Context(), creatorID, eventID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, event); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/events filtered by consumer_id or type.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	limit := queryInt(r, "limit", 100)

	var events []*models.Event
	var err error

	if rawConsumer := r.URL.Query().Get("consumer_id"); rawConsumer != "" {
		var consumerID uuid.UUID
		consumerID, err = uuid.Parse(rawConsumer)
		if err != nil {
			ServiceError(w, h.logger, apperrors.NewValidation("consumer_id", "must be a UUID"))
			return
		}
		events, err = h.events.ListByConsumer(r.Context(), creatorID, consumerID, limit)
	} else {
		eventType := r.URL.Query().Get("type")
		since := time.Now().Add(-30 * 24 * time.Hour)
		if rawSince := r.URL.Query().Get("since"); rawSince != "" {
			since, err = time.Parse(time.RFC3339, rawSince)
			if err != nil {
				ServiceError(w, h.logger, apperrors.NewValidation("since", "must be RFC 3339"))
				return
			}
		}
		events, err = h.events.ListByType(r.Context(), creatorID, eventType, since, limit)
	}
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []*models.Event{}
	}

	if err := WriteJSON(w, http.StatusOK, events); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
