package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/service"
)

type BeliefHandler struct {
	svc *service.BeliefService
}

func NewBeliefHandler(svc *service.BeliefService) *BeliefHandler {
	return &BeliefHandler{svc: svc}
}

func (h *BeliefHandler) GetByAgent(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	if topStr := r.URL.Query().Get("top"); topStr != "" {
		top, err := strconv.Atoi(topStr)
		if err != nil || top <= 0 {
			writeError(w, http.StatusBadRequest, "invalid top")
			return
		}
		beliefs, err := h.svc.TopByConfidence(r.Context(), agentID, top)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list beliefs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs})
		return
	}

	beliefs, err := h.svc.GetByAgent(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list beliefs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs})
}

// Detect runs a pattern detection pass for one agent on demand. The tick
// loop runs the same pass periodically; this endpoint exists for tooling.
func (h *BeliefHandler) Detect(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	beliefs, err := h.svc.DetectPatterns(r.Context(), agentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "pattern detection failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"formed_or_reinforced": beliefs})
}

type counterEvidenceRequest struct {
	MemoryID string `json:"memory_id"`
}

func (h *BeliefHandler) AddCounterEvidence(w http.ResponseWriter, r *http.Request) {
	beliefID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req counterEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	memoryID, err := uuid.Parse(req.MemoryID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid memory_id")
		return
	}

	belief, err := h.svc.AddCounterEvidence(r.Context(), beliefID, memoryID)
	if err != nil {
		if errors.Is(err, service.ErrBeliefNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to add counter-evidence")
		return
	}

	// A nil belief means the counter-evidence pushed it below the
	// abandonment threshold.
	if belief == nil {
		writeJSON(w, http.StatusOK, map[string]any{"abandoned": true})
		return
	}

	writeJSON(w, http.StatusOK, belief)
}
