package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/sim"
	"github.com/lowvale/hearth/internal/store"
)

type AgentHandler struct {
	agents domain.AgentStore
	world  *sim.World
}

func NewAgentHandler(agents domain.AgentStore, world *sim.World) *AgentHandler {
	return &AgentHandler{agents: agents, world: world}
}

type createAgentRequest struct {
	Name      string   `json:"name"`
	Archetype string   `json:"archetype,omitempty"`
	Traits    []string `json:"traits,omitempty"`
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	agent := &domain.Agent{
		ID:        uuid.New(),
		Name:      req.Name,
		Archetype: req.Archetype,
		Traits:    req.Traits,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := h.agents.Create(r.Context(), agent); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, http.StatusConflict, "agent already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create agent")
		return
	}

	if h.world != nil {
		h.world.AddAgent(agent)
	}

	writeJSON(w, http.StatusCreated, agent)
}

type agentResponse struct {
	*domain.Agent
	Needs *sim.Needs `json:"needs,omitempty"`
	Alive *bool      `json:"alive,omitempty"`
}

func (h *AgentHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	agent, err := h.agents.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "agent not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get agent")
		return
	}

	resp := agentResponse{Agent: agent}
	if h.world != nil {
		if state, ok := h.world.AgentState(id); ok {
			resp.Needs = &state.Needs
			resp.Alive = &state.Alive
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agents.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list agents")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}
