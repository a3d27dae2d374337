package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AgentStore interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	List(ctx context.Context) ([]Agent, error)
}

// MemoryFilter narrows a memory scan. Zero-valued fields are ignored.
type MemoryFilter struct {
	Actor *uuid.UUID
	Tag   string
	Since *time.Time
	Until *time.Time
	Limit int
}

type MemoryStore interface {
	Create(ctx context.Context, m *EpisodicMemory) error
	GetByID(ctx context.Context, id uuid.UUID) (*EpisodicMemory, error)
	GetRecent(ctx context.Context, agentID uuid.UUID, n int) ([]EpisodicMemory, error)
	Filter(ctx context.Context, agentID uuid.UUID, f MemoryFilter) ([]EpisodicMemory, error)
	Recall(ctx context.Context, agentID uuid.UUID, embedding []float32, topK int) ([]MemoryWithScore, error)
	CountByAgent(ctx context.Context, agentID uuid.UUID) (int, error)
}

type BeliefStore interface {
	Create(ctx context.Context, b *Belief) error
	GetByID(ctx context.Context, id uuid.UUID) (*Belief, error)
	GetByAgent(ctx context.Context, agentID uuid.UUID) ([]Belief, error)
	GetByKey(ctx context.Context, agentID uuid.UUID, category BeliefCategory, subject string) ([]Belief, error)
	TopByConfidence(ctx context.Context, agentID uuid.UUID, limit int) ([]Belief, error)
	UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float32) error
	AddEvidence(ctx context.Context, id uuid.UUID, memoryID uuid.UUID, counter bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListDistinctAgentIDs(ctx context.Context) ([]uuid.UUID, error)
}

type RelationshipStore interface {
	Get(ctx context.Context, observerID, subjectID uuid.UUID) (*Relationship, error)
	Upsert(ctx context.Context, r *Relationship) error
	GetByObserver(ctx context.Context, observerID uuid.UUID) ([]Relationship, error)
}

type SpiritStore interface {
	Create(ctx context.Context, s *Spirit) error
	GetByAgent(ctx context.Context, agentID uuid.UUID) (*Spirit, error)
	Update(ctx context.Context, s *Spirit) error
	ListActive(ctx context.Context) ([]Spirit, error)
}

// EmbeddingClient turns text into a vector for similarity recall.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LLMClient is the one asynchronous boundary of the engine: a prompt goes
// out, a raw behavior decision comes back as text.
type LLMClient interface {
	DecideBehavior(ctx context.Context, prompt string) (string, error)
}
