package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/llm"
	"github.com/lowvale/hearth/internal/store"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrLLMUnavailable  = errors.New("no LLM client configured")
	ErrInvalidBehavior = errors.New("LLM returned an invalid behavior")
)

const (
	promptRecentMemories = 8
	promptRecalled       = 5
	promptTopBeliefs     = 6
	promptRelationships  = 6
)

// Situation is the environmental context a decision is made in.
type Situation struct {
	Description  string
	Needs        map[string]float32 // need name -> level in [0, 1]
	NearbyAgents []uuid.UUID
}

// DecisionService turns summarized agent state into a prompt, sends it
// across the LLM boundary and parses the answer into a Behavior. The LLM is
// the only asynchronous boundary in the engine; calls are rate limited.
type DecisionService struct {
	agents        domain.AgentStore
	memories      *MemoryService
	beliefs       domain.BeliefStore
	relationships domain.RelationshipStore
	client        domain.LLMClient
	limiter       *rate.Limiter
	logger        *zap.Logger
}

func NewDecisionService(as domain.AgentStore, ms *MemoryService, bs domain.BeliefStore, rs domain.RelationshipStore, client domain.LLMClient, llmRPS float64, logger *zap.Logger) *DecisionService {
	if llmRPS <= 0 {
		llmRPS = 1
	}
	return &DecisionService{
		agents:        as,
		memories:      ms,
		beliefs:       bs,
		relationships: rs,
		client:        client,
		limiter:       rate.NewLimiter(rate.Limit(llmRPS), 1),
		logger:        logger,
	}
}

// Decide asks the LLM for the agent's next behavior. Invalid or failed
// responses are errors; the caller decides whether to fall back to scripted
// behavior, and that fallback is explicit, never silent.
func (s *DecisionService) Decide(ctx context.Context, agentID uuid.UUID, sit Situation) (*domain.Behavior, error) {
	if s.client == nil {
		return nil, ErrLLMUnavailable
	}

	prompt, err := s.BuildPrompt(ctx, agentID, sit)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	raw, err := s.client.DecideBehavior(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm decision: %w", err)
	}

	raw = llm.StripFences(raw)
	if err := llm.ValidateBehavior(raw); err != nil {
		s.logger.Warn("rejecting LLM behavior",
			zap.String("agent_id", agentID.String()),
			zap.String("raw", raw),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrInvalidBehavior, err)
	}

	var behavior domain.Behavior
	if err := json.Unmarshal([]byte(raw), &behavior); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBehavior, err)
	}
	if !domain.ValidAction(behavior.Action) {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidBehavior, behavior.Action)
	}

	s.logger.Debug("behavior decided",
		zap.String("agent_id", agentID.String()),
		zap.String("action", behavior.Action),
		zap.String("target", behavior.Target))
	return &behavior, nil
}

// BuildPrompt concatenates the agent's identity, needs, memories, beliefs
// and trust into the state summary sent to the model.
func (s *DecisionService) BuildPrompt(ctx context.Context, agentID uuid.UUID, sit Situation) (string, error) {
	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrAgentNotFound
		}
		return "", err
	}

	var sb strings.Builder

	sb.WriteString("AGENT: ")
	sb.WriteString(agent.Name)
	if agent.Archetype != "" {
		sb.WriteString(" (")
		sb.WriteString(agent.Archetype)
		sb.WriteString(")")
	}
	sb.WriteString("\n")
	if len(agent.Traits) > 0 {
		sb.WriteString("TRAITS: ")
		sb.WriteString(strings.Join(agent.Traits, ", "))
		sb.WriteString("\n")
	}

	if sit.Description != "" {
		sb.WriteString("\nSITUATION:\n")
		sb.WriteString(sit.Description)
		sb.WriteString("\n")
	}

	if len(sit.Needs) > 0 {
		sb.WriteString("\nNEEDS (0 empty, 1 satisfied):\n")
		for _, name := range sortedNeedNames(sit.Needs) {
			fmt.Fprintf(&sb, "- %s: %.2f\n", name, sit.Needs[name])
		}
	}

	recent, err := s.memories.GetRecent(ctx, agentID, promptRecentMemories)
	if err != nil {
		return "", err
	}
	if len(recent) > 0 {
		sb.WriteString("\nRECENT MEMORIES:\n")
		for _, m := range recent {
			fmt.Fprintf(&sb, "- %s\n", m.Summary)
		}
	}

	if sit.Description != "" {
		recalled, err := s.memories.Recall(ctx, agentID, sit.Description, promptRecalled)
		if err != nil {
			s.logger.Warn("memory recall failed, prompt built without it",
				zap.String("agent_id", agentID.String()), zap.Error(err))
		} else if len(recalled) > 0 {
			sb.WriteString("\nRELEVANT PAST EXPERIENCE:\n")
			for _, m := range recalled {
				fmt.Fprintf(&sb, "- %s\n", m.Summary)
			}
		}
	}

	beliefs, err := s.beliefs.TopByConfidence(ctx, agentID, promptTopBeliefs)
	if err != nil {
		return "", err
	}
	if len(beliefs) > 0 {
		sb.WriteString("\nBELIEFS:\n")
		for _, b := range beliefs {
			fmt.Fprintf(&sb, "- %s (confidence %.2f)\n", b.Statement, b.Confidence)
		}
	}

	if len(sit.NearbyAgents) > 0 {
		rels, err := s.relationships.GetByObserver(ctx, agentID)
		if err != nil {
			return "", err
		}
		trust := map[uuid.UUID]float32{}
		for _, r := range rels {
			trust[r.SubjectID] = r.Trust
		}
		sb.WriteString("\nNEARBY AGENTS:\n")
		count := 0
		for _, id := range sit.NearbyAgents {
			if count >= promptRelationships {
				break
			}
			t, known := trust[id]
			if !known {
				t = NeutralTrust
			}
			fmt.Fprintf(&sb, "- %s (trust %.2f)\n", s.subjectName(ctx, id), t)
			count++
		}
	}

	return sb.String(), nil
}

func (s *DecisionService) subjectName(ctx context.Context, id uuid.UUID) string {
	a, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return "agent " + id.String()[:8]
	}
	return a.Name
}

func sortedNeedNames(needs map[string]float32) []string {
	names := make([]string, 0, len(needs))
	for name := range needs {
		names = append(names, name)
	}
	// Stable prompt ordering keeps decisions reproducible under test.
	sort.Strings(names)
	return names
}
