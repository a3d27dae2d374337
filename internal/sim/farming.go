package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"go.uber.org/zap"
)

// CropStage is the growth state of a plot.
type CropStage string

const (
	StageFallow  CropStage = "fallow"
	StageTilled  CropStage = "tilled"
	StagePlanted CropStage = "planted"
	StageGrowing CropStage = "growing"
	StageReady   CropStage = "ready"
)

// Plot is a farmable patch of ground.
type Plot struct {
	Name         string    `json:"name"`
	Stage        CropStage `json:"stage"`
	TenderID     uuid.UUID `json:"tender_id,omitempty"`
	stageEntered uint64
}

// tickPlots advances planted crops through their growth stages.
func (w *World) tickPlots() {
	for _, p := range w.plots {
		switch p.Stage {
		case StagePlanted:
			if w.tick-p.stageEntered >= w.tuning.CropStageTicks {
				p.Stage = StageGrowing
				p.stageEntered = w.tick
			}
		case StageGrowing:
			if w.tick-p.stageEntered >= w.tuning.CropStageTicks {
				p.Stage = StageReady
				p.stageEntered = w.tick
			}
		}
	}
}

// farm advances the first plot that has work to do. Harvesting feeds the
// village food stock and records the memory that world-mechanics and causal
// beliefs form from.
func (w *World) farm(ctx context.Context, a *Agent) {
	for _, p := range w.plots {
		switch p.Stage {
		case StageFallow:
			p.Stage = StageTilled
			p.stageEntered = w.tick
			p.TenderID = a.ID
			w.recordWork(ctx, a, fmt.Sprintf("Tilled the soil at %s", p.Name), p.Name, []string{"till", "soil"})
			return
		case StageTilled:
			p.Stage = StagePlanted
			p.stageEntered = w.tick
			p.TenderID = a.ID
			w.recordWork(ctx, a, fmt.Sprintf("Planted seeds at %s", p.Name), p.Name, []string{"plant", "seeds"})
			return
		case StageReady:
			p.Stage = StageFallow
			p.stageEntered = w.tick
			w.foodStock += 3
			w.recordWork(ctx, a, fmt.Sprintf("Harvested the crop at %s", p.Name), p.Name, []string{"harvest", "crop"})
			w.broadcast(domain.WorldEvent{
				Tick:    w.tick,
				Kind:    domain.WorldEventHarvest,
				AgentID: a.ID,
				Detail:  fmt.Sprintf("%s harvested %s", a.Name, p.Name),
				At:      time.Now(),
			})
			return
		}
	}
}

func (w *World) recordWork(ctx context.Context, a *Agent, summary, location string, tags []string) {
	m := &domain.EpisodicMemory{
		AgentID:         a.ID,
		Summary:         summary,
		Location:        location,
		EmotionalImpact: 0.1,
		Confidence:      1.0,
		Tags:            tags,
		OccurredAt:      time.Now(),
	}
	if err := w.recorder.Record(ctx, m); err != nil {
		w.logger.Error("failed to record work memory",
			zap.String("agent_id", a.ID.String()),
			zap.Error(err))
	}
}
