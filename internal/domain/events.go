package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationEvent reports a completed exchange between two agents. Both
// participants record an episodic memory of it.
type ConversationEvent struct {
	SpeakerID  uuid.UUID `json:"speaker_id"`
	ListenerID uuid.UUID `json:"listener_id"`
	Topic      string    `json:"topic"`
	Summary    string    `json:"summary"`
	Sentiment  float32   `json:"sentiment"` // [-1, 1]
	OccurredAt time.Time `json:"occurred_at"`
}

// WorldEventKind classifies events on the world observation stream.
type WorldEventKind string

const (
	WorldEventBehavior  WorldEventKind = "behavior"
	WorldEventDeath     WorldEventKind = "death"
	WorldEventSpirit    WorldEventKind = "spirit"
	WorldEventHarvest   WorldEventKind = "harvest"
	WorldEventTrust     WorldEventKind = "trust"
	WorldEventConversed WorldEventKind = "conversation"
)

// WorldEvent is what the rendering layer sees on the stream: one line of
// observable world activity per entry.
type WorldEvent struct {
	Tick    uint64         `json:"tick"`
	Kind    WorldEventKind `json:"kind"`
	AgentID uuid.UUID      `json:"agent_id,omitempty"`
	Detail  string         `json:"detail"`
	At      time.Time      `json:"at"`
}
