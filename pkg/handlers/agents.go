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

// AgentService is the registry surface the handler needs.
type AgentService interface {
	Create(ctx context.Context, agent *models.Agent) error
	Update(ctx context.Context, creatorID uuid.UUID, agent *models.Agent) error
	Delete(ctx context.Context, creatorID, agentID uuid.UUID) error
	SetEnabled(ctx context.Context, creatorID, agentID uuid.UUID, enabled bool) error
	Get(ctx context.Context, creatorID, agentID uuid.UUID) (*models.Agent, error)
	List(ctx context.Context, creatorID uuid.UUID) ([]*models.Agent, error)
	AddTrigger(ctx context.Context, creatorID uuid.UUID, trigger *models.AgentTrigger) error
}

// TriggerRequest describes one trigger in an agent request.
type TriggerRequest struct {
	EventType string         `json:"event_type"`
	Filter    map[string]any `json:"filter,omitempty"`
}

// AgentRequest is the body for creating or updating an agent.
type AgentRequest struct {
	Name           string           `json:"name"`
	Implementation string           `json:"implementation"`
	Config         map[string]any   `json:"config,omitempty"`
	Enabled        *bool            `json:"enabled,omitempty"`
	Triggers       []TriggerRequest `json:"triggers,omitempty"`
}

// EnableRequest is the body for POST /api/agents/{id}/enabled.
type EnableRequest struct {
	Enabled bool `json:"enabled"`
}

// AgentsHandler handles the agent registry.
type AgentsHandler struct {
	agents AgentService
	logger *zap.Logger
}

// NewAgentsHandler creates a new agents handler.
func NewAgentsHandler(agents AgentService, logger *zap.Logger) *AgentsHandler {
	return &AgentsHandler{agents: agents, logger: logger}
}

// RegisterRoutes registers the agents handler's routes on the given mux.
func (h *AgentsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/agents", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/agents", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("GET /api/agents/{id}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PUT /api/agents/{id}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("DELETE /api/agents/{id}", authMiddleware.RequireAuth(h.Delete))
	mux.HandleFunc("POST /api/agents/{id}/enabled", authMiddleware.RequireAuth(h.SetEnabled))
	mux.HandleFunc("POST /api/agents/{id}/triggers", authMiddleware.RequireAuth(h.AddTrigger))
}

// Create handles POST /api/agents.
func (h *AgentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	var req AgentRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	agent := &models.Agent{
		CreatorID:      &creatorID,
		Name:           req.Name,
		Implementation: models.Implementation(req.Implementation),
		Config:         kv.FromAny(req.Config),
		Enabled:        enabled,
	}
	for _, t := range req.Triggers {
		agent.Triggers = append(agent.Triggers, models.AgentTrigger{
			EventType: t.EventType,
			Filter:    kv.FromAny(t.Filter),
		})
	}

	if err := h.agents.Create(r.Context(), agent); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, agent); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// List handles GET /api/agents.
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())

	agents, err := h.agents.List(r.Context(), creatorID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}
	if agents == nil {
		agents = []*models.Agent{}
	}

	if err := WriteJSON(w, http.StatusOK, agents); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/agents/{id}.
func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	agentID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	agent, err := h.agents.Get(r.Context(), creatorID, agentID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, agent); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PUT /api/agents/{id}.
func (h *AgentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	agentID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	agent, err := h.agents.Get(r.Context(), creatorID, agentID)
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	var req AgentRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	agent.Name = req.Name
	agent.Implementation = models.Implementation(req.Implementation)
	agent.Config = kv.FromAny(req.Config)
	if req.Enabled != nil {
		agent.Enabled = *req.Enabled
	}

	if err := h.agents.Update(r.Context(), creatorID, agent); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, agent); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/agents/{id}.
func (h *AgentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	agentID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := h.agents.Delete(r.Context(), creatorID, agentID); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetEnabled handles POST /api/agents/{id}/enabled.
func (h *AgentsHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	agentID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	var req EnableRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := h.agents.SetEnabled(r.Context(), creatorID, agentID, req.Enabled); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]bool{"enabled": req.Enabled}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// AddTrigger handles POST /api/agents/{id}/triggers.
func (h *AgentsHandler) AddTrigger(w http.ResponseWriter, r *http.Request) {
	creatorID := auth.CreatorIDFromContext(r.Context())
	agentID, err := pathUUID(r, "id")
	if err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	var req TriggerRequest
	if err := decodeBody(r, &req); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	trigger := &models.AgentTrigger{
		AgentID:   agentID,
		EventType: req.EventType,
		Filter:    kv.FromAny(req.Filter),
	}
	if err := h.agents.AddTrigger(r.Context(), creatorID, trigger); err != nil {
		ServiceError(w, h.logger, err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, trigger); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
