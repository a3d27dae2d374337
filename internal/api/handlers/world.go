package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/service"
	"github.com/lowvale/hearth/internal/sim"
	"go.uber.org/zap"
)

type WorldHandler struct {
	world    *sim.World
	decision *service.DecisionService
	spirits  domain.SpiritStore
	logger   *zap.Logger

	upgrader websocket.Upgrader
}

func NewWorldHandler(world *sim.World, decision *service.DecisionService, spirits domain.SpiritStore, logger *zap.Logger) *WorldHandler {
	return &WorldHandler{
		world:    world,
		decision: decision,
		spirits:  spirits,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The stream carries observable world activity only; any
			// origin may watch.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *WorldHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.world.Status())
}

type conversationRequest struct {
	SpeakerID  string  `json:"speaker_id"`
	ListenerID string  `json:"listener_id"`
	Topic      string  `json:"topic"`
	Summary    string  `json:"summary"`
	Sentiment  float32 `json:"sentiment"`
}

func (h *WorldHandler) Converse(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	speakerID, err := uuid.Parse(req.SpeakerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid speaker_id")
		return
	}
	listenerID, err := uuid.Parse(req.ListenerID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid listener_id")
		return
	}
	if speakerID == listenerID {
		writeError(w, http.StatusBadRequest, "speaker and listener must differ")
		return
	}
	if !domain.InSignedRange(req.Sentiment) {
		writeError(w, http.StatusBadRequest, "sentiment must be in [-1, 1]")
		return
	}

	e := domain.ConversationEvent{
		SpeakerID:  speakerID,
		ListenerID: listenerID,
		Topic:      req.Topic,
		Summary:    req.Summary,
		Sentiment:  req.Sentiment,
		OccurredAt: time.Now(),
	}

	if err := h.world.InjectConversation(e); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

type decideRequest struct {
	Description  string             `json:"description"`
	Needs        map[string]float32 `json:"needs,omitempty"`
	NearbyAgents []string           `json:"nearby_agents,omitempty"`
}

// Decide asks the LLM boundary for a behavior outside the tick loop, for
// tooling and prompt iteration.
func (h *WorldHandler) Decide(w http.ResponseWriter, r *http.Request) {
	agentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid agent id")
		return
	}

	var req decideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	nearby := make([]uuid.UUID, 0, len(req.NearbyAgents))
	for _, s := range req.NearbyAgents {
		id, err := uuid.Parse(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid nearby agent id: "+s)
			return
		}
		nearby = append(nearby, id)
	}

	behavior, err := h.decision.Decide(r.Context(), agentID, service.Situation{
		Description:  req.Description,
		Needs:        req.Needs,
		NearbyAgents: nearby,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrAgentNotFound):
			writeError(w, http.StatusNotFound, "agent not found")
		case errors.Is(err, service.ErrLLMUnavailable):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		case errors.Is(err, service.ErrInvalidBehavior):
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "decision failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, behavior)
}

func (h *WorldHandler) ListSpirits(w http.ResponseWriter, r *http.Request) {
	spirits, err := h.spirits.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list spirits")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"spirits": spirits})
}

// Stream upgrades to a websocket and forwards world events until the client
// disconnects.
func (h *WorldHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events := h.world.Subscribe()
	defer h.world.Unsubscribe(events)

	// Reader goroutine notices the client going away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		}
	}
}
