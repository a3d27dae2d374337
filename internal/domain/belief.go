package domain

import (
	"time"

	"github.com/google/uuid"
)

// BeliefCategory classifies what a belief is about.
type BeliefCategory string

const (
	BeliefAgentCharacter BeliefCategory = "agent_character"
	BeliefWorldMechanics BeliefCategory = "world_mechanics"
	BeliefSocialDynamics BeliefCategory = "social_dynamics"
	BeliefDivine         BeliefCategory = "divine"
	BeliefCausal         BeliefCategory = "causal"
)

func ValidBeliefCategory(c string) bool {
	switch BeliefCategory(c) {
	case BeliefAgentCharacter, BeliefWorldMechanics, BeliefSocialDynamics, BeliefDivine, BeliefCausal:
		return true
	}
	return false
}

// Belief is a generalized statement an agent holds about another agent or the
// world, formed from a recurring pattern across episodic memories. A belief
// never exists without at least one supporting evidence memory.
type Belief struct {
	ID                 uuid.UUID      `json:"id"`
	AgentID            uuid.UUID      `json:"agent_id"`
	Category           BeliefCategory `json:"category"`
	Subject            string         `json:"subject"`
	Statement          string         `json:"statement"`
	Confidence         float32        `json:"confidence"` // [0, 1]
	EvidenceIDs        []uuid.UUID    `json:"evidence_ids"`
	CounterEvidenceIDs []uuid.UUID    `json:"counter_evidence_ids,omitempty"`
	FormedAt           time.Time      `json:"formed_at"`
	LastUpdated        time.Time      `json:"last_updated"`
}

// CounterRatio returns the fraction of counter-evidence among all evidence.
func (b *Belief) CounterRatio() float32 {
	total := len(b.EvidenceIDs) + len(b.CounterEvidenceIDs)
	if total == 0 {
		return 0
	}
	return float32(len(b.CounterEvidenceIDs)) / float32(total)
}

// BeliefWithScore is a Belief with a relevance score attached.
type BeliefWithScore struct {
	Belief
	Score float32 `json:"score"`
}
