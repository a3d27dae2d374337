package domain

import (
	"time"

	"github.com/google/uuid"
)

// EpisodicMemory is a single recorded event experienced or observed by an
// agent. Memories are immutable after creation; beliefs reference them as
// evidence or counter-evidence.
type EpisodicMemory struct {
	ID              uuid.UUID   `json:"id"`
	AgentID         uuid.UUID   `json:"agent_id"`
	Summary         string      `json:"summary"`
	Actors          []uuid.UUID `json:"actors,omitempty"`
	Location        string      `json:"location,omitempty"`
	EmotionalImpact float32     `json:"emotional_impact"` // [-1, 1]
	Confidence      float32     `json:"confidence"`       // [0, 1]
	Tags            []string    `json:"tags,omitempty"`
	Embedding       []float32   `json:"-"`
	OccurredAt      time.Time   `json:"occurred_at"`
	CreatedAt       time.Time   `json:"created_at"`
}

// HasTag reports whether the memory carries the given tag.
func (m *EpisodicMemory) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Involves reports whether the given agent appears in the memory's actor list.
func (m *EpisodicMemory) Involves(agentID uuid.UUID) bool {
	for _, a := range m.Actors {
		if a == agentID {
			return true
		}
	}
	return false
}

// TagReflection marks memories the engine records about its own belief and
// trust bookkeeping, e.g. when a belief is abandoned.
const TagReflection = "reflection"

// MemoryWithScore is an EpisodicMemory with a similarity score from recall.
type MemoryWithScore struct {
	EpisodicMemory
	Score float32 `json:"score"`
}
