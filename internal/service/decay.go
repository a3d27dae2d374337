package service

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultDecayInterval = 1 * time.Hour

	// BeliefDecayLambda controls the exponential confidence decay per hour
	// since a belief was last touched.
	BeliefDecayLambda = 0.001

	decayMinConfidence = 0.01
)

type DecayResult struct {
	BeliefsDecayed   int `json:"beliefs_decayed"`
	BeliefsAbandoned int `json:"beliefs_abandoned"`
}

// DecayService erodes the confidence of untouched beliefs over time.
// Beliefs crossing the abandonment threshold go through the belief service
// so the reflective memory is recorded.
type DecayService struct {
	beliefs   domain.BeliefStore
	beliefSvc *BeliefService
	logger    *zap.Logger

	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewDecayService(bs domain.BeliefStore, beliefSvc *BeliefService, logger *zap.Logger) *DecayService {
	return &DecayService{
		beliefs:   bs,
		beliefSvc: beliefSvc,
		logger:    logger,
		interval:  defaultDecayInterval,
		stopCh:    make(chan struct{}),
	}
}

func (s *DecayService) SetInterval(d time.Duration) {
	s.interval = d
}

func (s *DecayService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("belief decay worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				s.RunDecay(ctx)
				cancel()
			case <-s.stopCh:
				s.logger.Info("belief decay worker stopped")
				return
			}
		}
	}()
}

func (s *DecayService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}

func (s *DecayService) RunDecay(ctx context.Context) *DecayResult {
	total := &DecayResult{}

	agentIDs, err := s.beliefs.ListDistinctAgentIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list agents for decay", zap.Error(err))
		return total
	}

	for _, agentID := range agentIDs {
		result, err := s.decayForAgent(ctx, agentID)
		if err != nil {
			s.logger.Error("decay failed for agent",
				zap.String("agent_id", agentID.String()),
				zap.Error(err))
			continue
		}
		total.BeliefsDecayed += result.BeliefsDecayed
		total.BeliefsAbandoned += result.BeliefsAbandoned
	}

	if total.BeliefsDecayed > 0 || total.BeliefsAbandoned > 0 {
		s.logger.Info("belief decay pass complete",
			zap.Int("decayed", total.BeliefsDecayed),
			zap.Int("abandoned", total.BeliefsAbandoned))
	}
	return total
}

func (s *DecayService) decayForAgent(ctx context.Context, agentID uuid.UUID) (*DecayResult, error) {
	result := &DecayResult{}

	beliefs, err := s.beliefs.GetByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for i := range beliefs {
		b := &beliefs[i]
		hours := now.Sub(b.LastUpdated).Hours()
		if hours <= 0 {
			continue
		}

		decayed := float64(b.Confidence) * math.Exp(-BeliefDecayLambda*hours)
		if decayed < decayMinConfidence {
			decayed = decayMinConfidence
		}
		newConf := float32(decayed)
		if newConf >= b.Confidence {
			continue
		}

		if newConf < AbandonThreshold {
			b.Confidence = newConf
			if err := s.beliefSvc.Abandon(ctx, b); err != nil {
				return nil, err
			}
			result.BeliefsAbandoned++
			continue
		}

		if err := s.beliefs.UpdateConfidence(ctx, b.ID, domain.ClampUnit(newConf)); err != nil {
			return nil, err
		}
		result.BeliefsDecayed++
	}

	return result, nil
}
