package domain

import (
	"time"

	"github.com/google/uuid"
)

type Agent struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Archetype string    `json:"archetype,omitempty"`
	Traits    []string  `json:"traits,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
