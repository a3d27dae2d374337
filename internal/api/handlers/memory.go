package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/service"
)

type MemoryHandler struct {
	svc *service.MemoryService
}

func NewMemoryHandler(svc *service.MemoryService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

type createMemoryRequest struct {
	AgentID         string    `json:"agent_id"`
	Summary         string    `json:"summary"`
	Actors          []string  `json:"actors,omitempty"`
	Location        string    `json:"location,omitempty"`
	EmotionalImpact float32   `json:"emotional_impact"`
	Confidence      float32   `json:"confidence"`
	Tags            []string  `json:"tags,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}

func (h *MemoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	agentID, err := uuid.Parse(req.AgentID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent_id")
		return
	}

	actors := make([]uuid.UUID, 0, len(req.Actors))
	for _, a := range req.Actors {
		id, err := uuid.Parse(a)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid actor id: "+a)
			return
		}
		actors = append(actors, id)
	}

	m := &domain.EpisodicMemory{
		AgentID:         agentID,
		Summary:         req.Summary,
		Actors:          actors,
		Location:        req.Location,
		EmotionalImpact: req.EmotionalImpact,
		Confidence:      req.Confidence,
		Tags:            req.Tags,
		OccurredAt:      req.OccurredAt,
	}

	if err := h.svc.Record(r.Context(), m); err != nil {
		switch {
		case errors.Is(err, service.ErrMemorySummaryEmpty),
			errors.Is(err, service.ErrMemoryAgentMissing),
			errors.Is(err, service.ErrMemoryOccurredAtMissing),
			errors.Is(err, service.ErrMemoryImpactOutOfRange),
			errors.Is(err, service.ErrMemoryConfOutOfRange):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAgentNotFound):
			writeError(w, http.StatusBadRequest, "agent not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to record memory")
		}
		return
	}

	writeJSON(w, http.StatusCreated, m)
}

func (h *MemoryHandler) GetRecent(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	memories, err := h.svc.GetRecent(r.Context(), agentID, n)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list memories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"memories": memories})
}

func (h *MemoryHandler) Recall(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	topK, _ := strconv.Atoi(r.URL.Query().Get("top_k"))
	if topK <= 0 {
		topK = 10
	}

	results, err := h.svc.Recall(r.Context(), agentID, query, topK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to recall memories")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
