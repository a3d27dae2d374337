package domain

import (
	"time"

	"github.com/google/uuid"
)

// TrustEventType describes the outcome of verifying a claim one agent made.
type TrustEventType string

const (
	ClaimVerified TrustEventType = "claim_verified"
	ClaimViolated TrustEventType = "claim_violated"
)

func ValidTrustEventType(t string) bool {
	switch TrustEventType(t) {
	case ClaimVerified, ClaimViolated:
		return true
	}
	return false
}

// ViolationClass is a crude classification of why a claim failed
// verification. Each class maps to a fixed trust penalty.
type ViolationClass string

const (
	ViolationStale         ViolationClass = "stale"
	ViolationMisidentified ViolationClass = "misidentified"
	ViolationFalseReport   ViolationClass = "false_report"
	ViolationUnreliability ViolationClass = "pattern_of_unreliability"
)

func ValidViolationClass(c string) bool {
	switch ViolationClass(c) {
	case ViolationStale, ViolationMisidentified, ViolationFalseReport, ViolationUnreliability:
		return true
	}
	return false
}

// Penalty returns the trust deduction for a violation of this class.
func (c ViolationClass) Penalty() float32 {
	switch c {
	case ViolationStale:
		return 0.1
	case ViolationMisidentified:
		return 0.3
	case ViolationFalseReport:
		return 0.5
	case ViolationUnreliability:
		return 0.8
	default:
		return 0.3
	}
}

// TrustEvent reports a verified or violated claim between two agents.
type TrustEvent struct {
	ObserverID uuid.UUID      `json:"observer_id"`
	SubjectID  uuid.UUID      `json:"subject_id"`
	Type       TrustEventType `json:"type"`
	Class      ViolationClass `json:"class,omitempty"`
	Summary    string         `json:"summary"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Relationship holds the scalar trust one agent places in another.
type Relationship struct {
	ObserverID   uuid.UUID `json:"observer_id"`
	SubjectID    uuid.UUID `json:"subject_id"`
	Trust        float32   `json:"trust"` // [0, 1]
	Interactions int       `json:"interactions"`
	LastEventAt  time.Time `json:"last_event_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
