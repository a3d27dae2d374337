package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/service"
	"github.com/lowvale/hearth/internal/sim"
)

type TrustHandler struct {
	svc   *service.TrustService
	world *sim.World
}

func NewTrustHandler(svc *service.TrustService, world *sim.World) *TrustHandler {
	return &TrustHandler{svc: svc, world: world}
}

type trustEventRequest struct {
	ObserverID string `json:"observer_id"`
	SubjectID  string `json:"subject_id"`
	Type       string `json:"type"`
	Class      string `json:"class,omitempty"`
	Summary    string `json:"summary"`
}

// ReportEvent queues a trust event onto the world event bus so it is
// processed in tick order with everything else.
func (h *TrustHandler) ReportEvent(w http.ResponseWriter, r *http.Request) {
	var req trustEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	observerID, err := uuid.Parse(req.ObserverID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid observer_id")
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject_id")
		return
	}
	if !domain.ValidTrustEventType(req.Type) {
		writeError(w, http.StatusBadRequest, "type must be claim_verified or claim_violated")
		return
	}
	if req.Type == string(domain.ClaimViolated) && !domain.ValidViolationClass(req.Class) {
		writeError(w, http.StatusBadRequest, "class is required for violations")
		return
	}

	e := domain.TrustEvent{
		ObserverID: observerID,
		SubjectID:  subjectID,
		Type:       domain.TrustEventType(req.Type),
		Class:      domain.ViolationClass(req.Class),
		Summary:    req.Summary,
		OccurredAt: time.Now(),
	}

	if h.world != nil {
		if err := h.world.InjectTrust(e); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	// Without a running world, apply synchronously.
	rel, err := h.svc.Apply(r.Context(), &e)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTrustObserverMissing),
			errors.Is(err, service.ErrTrustSubjectMissing),
			errors.Is(err, service.ErrTrustSelfReference),
			errors.Is(err, service.ErrTrustInvalidEventType),
			errors.Is(err, service.ErrTrustInvalidClass):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrAgentNotFound):
			writeError(w, http.StatusBadRequest, "agent not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to apply trust event")
		}
		return
	}

	writeJSON(w, http.StatusOK, rel)
}

func (h *TrustHandler) GetRelationship(w http.ResponseWriter, r *http.Request) {
	observerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid observer id")
		return
	}
	subjectID, err := uuid.Parse(chi.URLParam(r, "subjectID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject id")
		return
	}

	rel, err := h.svc.Get(r.Context(), observerID, subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get relationship")
		return
	}

	cooperates, trust, err := h.svc.CanCooperate(r.Context(), observerID, subjectID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to evaluate cooperation")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"relationship":  rel,
		"trust":         trust,
		"can_cooperate": cooperates,
	})
}

func (h *TrustHandler) ListRelationships(w http.ResponseWriter, r *http.Request) {
	observerID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid observer id")
		return
	}

	rels, err := h.svc.Summarize(r.Context(), observerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list relationships")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"relationships": rels})
}
