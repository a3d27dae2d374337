package sim

import (
	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
)

// Needs are the scalar drives behind scripted behavior, each in [0, 1]
// where 0 is starved/exhausted/lonely and 1 is satisfied.
type Needs struct {
	Hunger float32 `json:"hunger"`
	Energy float32 `json:"energy"`
	Social float32 `json:"social"`
}

func (n Needs) Map() map[string]float32 {
	return map[string]float32{
		"hunger": n.Hunger,
		"energy": n.Energy,
		"social": n.Social,
	}
}

// Agent is the runtime state of one inhabitant inside the tick loop. The
// durable identity lives in the agent store; this is only what the loop
// needs per tick.
type Agent struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Needs Needs     `json:"needs"`
	Alive bool      `json:"alive"`

	// pending holds an LLM-decided behavior waiting to be executed. The
	// decision goroutine writes, the tick loop reads.
	pending chan decidedBehavior

	lastDecisionTick uint64
	deciding         bool
}

type decidedBehavior struct {
	behavior domain.Behavior
	source   domain.BehaviorSource
	err      error
}

func newAgent(a *domain.Agent) *Agent {
	return &Agent{
		ID:    a.ID,
		Name:  a.Name,
		Needs: Needs{Hunger: 1, Energy: 1, Social: 1},
		Alive: true,

		pending: make(chan decidedBehavior, 1),
	}
}

// lowestNeed returns the scripted action for the agent's most pressing need.
func (a *Agent) lowestNeed() string {
	switch {
	case a.Needs.Hunger <= a.Needs.Energy && a.Needs.Hunger <= a.Needs.Social:
		return domain.ActionEat
	case a.Needs.Energy <= a.Needs.Social:
		return domain.ActionRest
	default:
		return domain.ActionSocialize
	}
}
