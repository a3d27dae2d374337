package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"go.uber.org/zap"
)

const releaseTether = 0.05

// kill marks an agent dead, departs its spirit, and gives every living
// witness a memory of the death.
func (w *World) kill(ctx context.Context, a *Agent) {
	a.Alive = false

	s := &domain.Spirit{
		ID:         uuid.New(),
		AgentID:    a.ID,
		Peace:      0.2,
		Tether:     1.0,
		DepartedAt: time.Now(),
	}
	if w.spirits != nil {
		if err := w.spirits.Create(ctx, s); err != nil {
			w.logger.Error("failed to create spirit",
				zap.String("agent_id", a.ID.String()),
				zap.Error(err))
		}
	}

	w.witnessAll(ctx, a.ID,
		fmt.Sprintf("%s collapsed and died", a.Name),
		-0.8, []string{"death", "grief"})

	w.logger.Info("agent died",
		zap.String("agent_id", a.ID.String()),
		zap.String("name", a.Name),
		zap.Uint64("tick", w.tick))

	w.broadcast(domain.WorldEvent{
		Tick:    w.tick,
		Kind:    domain.WorldEventDeath,
		AgentID: a.ID,
		Detail:  fmt.Sprintf("%s has died", a.Name),
		At:      time.Now(),
	})
}

// tickSpirits drifts every active spirit toward release. Peace rises,
// tether frays, and a released spirit leaves the living with an omen.
func (w *World) tickSpirits(ctx context.Context) {
	if w.spirits == nil {
		return
	}
	active, err := w.spirits.ListActive(ctx)
	if err != nil {
		w.logger.Error("failed to list spirits", zap.Error(err))
		return
	}

	for i := range active {
		s := &active[i]
		s.Peace = domain.ClampUnit(s.Peace + w.tuning.SpiritPeacePerTick)
		s.Tether = domain.ClampUnit(s.Tether - w.tuning.SpiritTetherPerTick)

		if s.Tether < releaseTether {
			s.Released = true
			now := time.Now()
			s.ReleasedAt = &now

			w.witnessAll(ctx, s.AgentID,
				fmt.Sprintf("Felt a presence lift from the village as the spirit of %s found rest", w.agentName(s.AgentID)),
				0.4, []string{"omen", "spirit"})

			w.broadcast(domain.WorldEvent{
				Tick:    w.tick,
				Kind:    domain.WorldEventSpirit,
				AgentID: s.AgentID,
				Detail:  fmt.Sprintf("the spirit of %s has been released", w.agentName(s.AgentID)),
				At:      now,
			})
		}

		if err := w.spirits.Update(ctx, s); err != nil {
			w.logger.Error("failed to update spirit",
				zap.String("spirit_id", s.ID.String()),
				zap.Error(err))
		}
	}
}

// witnessAll records the same memory for every living agent, with the
// subject listed as an actor.
func (w *World) witnessAll(ctx context.Context, subject uuid.UUID, summary string, impact float32, tags []string) {
	for _, id := range w.order {
		a := w.agents[id]
		if !a.Alive || a.ID == subject {
			continue
		}
		m := &domain.EpisodicMemory{
			AgentID:         a.ID,
			Summary:         summary,
			Actors:          []uuid.UUID{subject},
			EmotionalImpact: impact,
			Confidence:      1.0,
			Tags:            tags,
			OccurredAt:      time.Now(),
		}
		if err := w.recorder.Record(ctx, m); err != nil {
			w.logger.Error("failed to record witness memory",
				zap.String("agent_id", a.ID.String()),
				zap.Error(err))
		}
	}
}
