package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/store"
	"go.uber.org/zap"
)

var (
	ErrMemoryAgentMissing      = errors.New("agent_id is required")
	ErrMemorySummaryEmpty      = errors.New("summary is required")
	ErrMemoryOccurredAtMissing = errors.New("occurred_at is required")
	ErrMemoryImpactOutOfRange  = errors.New("emotional_impact must be in [-1, 1]")
	ErrMemoryConfOutOfRange    = errors.New("confidence must be in [0, 1]")
	ErrAgentNotFound           = errors.New("agent not found")
	ErrMemoryNotFound          = errors.New("memory not found")
)

const defaultRecentLimit = 20

// MemoryService is the append-only log of an agent's lived experience.
type MemoryService struct {
	memories domain.MemoryStore
	agents   domain.AgentStore
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewMemoryService(ms domain.MemoryStore, as domain.AgentStore, embedder domain.EmbeddingClient, logger *zap.Logger) *MemoryService {
	return &MemoryService{
		memories: ms,
		agents:   as,
		embedder: embedder,
		logger:   logger,
	}
}

// Record appends a memory. Missing required fields are hard errors; nothing
// is defaulted silently.
func (s *MemoryService) Record(ctx context.Context, m *domain.EpisodicMemory) error {
	if m.AgentID == uuid.Nil {
		return ErrMemoryAgentMissing
	}
	if m.Summary == "" {
		return ErrMemorySummaryEmpty
	}
	if m.OccurredAt.IsZero() {
		return ErrMemoryOccurredAtMissing
	}
	if !domain.InSignedRange(m.EmotionalImpact) {
		return ErrMemoryImpactOutOfRange
	}
	if !domain.InUnitRange(m.Confidence) {
		return ErrMemoryConfOutOfRange
	}

	if _, err := s.agents.GetByID(ctx, m.AgentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAgentNotFound
		}
		return err
	}

	// Embedding is an enhancement for recall, not required data. A failed
	// embed is logged and the memory stored without one.
	if s.embedder != nil {
		embedding, err := s.embedder.Embed(ctx, m.Summary)
		if err != nil {
			s.logger.Warn("embedding failed, storing memory without vector",
				zap.String("agent_id", m.AgentID.String()),
				zap.Error(err))
		} else {
			m.Embedding = embedding
		}
	}

	if err := s.memories.Create(ctx, m); err != nil {
		return err
	}

	s.logger.Debug("memory recorded",
		zap.String("memory_id", m.ID.String()),
		zap.String("agent_id", m.AgentID.String()),
		zap.Strings("tags", m.Tags))
	return nil
}

// GetRecent returns the newest n memories for an agent.
func (s *MemoryService) GetRecent(ctx context.Context, agentID uuid.UUID, n int) ([]domain.EpisodicMemory, error) {
	if agentID == uuid.Nil {
		return nil, ErrMemoryAgentMissing
	}
	if n <= 0 {
		n = defaultRecentLimit
	}
	return s.memories.GetRecent(ctx, agentID, n)
}

// Filter scans an agent's memories by actor, tag or time range.
func (s *MemoryService) Filter(ctx context.Context, agentID uuid.UUID, f domain.MemoryFilter) ([]domain.EpisodicMemory, error) {
	if agentID == uuid.Nil {
		return nil, ErrMemoryAgentMissing
	}
	return s.memories.Filter(ctx, agentID, f)
}

// Recall returns memories similar to the query text, scored by vector
// distance. Returns nothing when no embedder is configured.
func (s *MemoryService) Recall(ctx context.Context, agentID uuid.UUID, query string, topK int) ([]domain.MemoryWithScore, error) {
	if agentID == uuid.Nil {
		return nil, ErrMemoryAgentMissing
	}
	if s.embedder == nil {
		return nil, nil
	}
	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.memories.Recall(ctx, agentID, embedding, topK)
}
