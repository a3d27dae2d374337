package domain

import (
	"time"

	"github.com/google/uuid"
)

// Spirit is the afterlife state of a dead agent. Peace drifts upward over
// time while tether decays; when tether falls low enough the spirit is
// released and witnesses record a reflective memory.
type Spirit struct {
	ID         uuid.UUID  `json:"id"`
	AgentID    uuid.UUID  `json:"agent_id"`
	Peace      float32    `json:"peace"`  // [0, 1]
	Tether     float32    `json:"tether"` // [0, 1]
	Released   bool       `json:"released"`
	DepartedAt time.Time  `json:"departed_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}
