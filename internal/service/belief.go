package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/store"
	"go.uber.org/zap"
)

var ErrBeliefNotFound = errors.New("belief not found")

const (
	// PatternThreshold is the minimum number of matching memories before a
	// recurring pattern becomes a belief.
	PatternThreshold = 3

	// ReinforceStep scales the asymptotic confidence gain per new evidence:
	// confidence += deltaN * ReinforceStep * (1 - confidence).
	ReinforceStep = 0.1

	// CounterRatioThreshold is the counter-evidence ratio above which
	// confidence is scaled down by (1 - ratio).
	CounterRatioThreshold = 0.3

	// AbandonThreshold is the confidence below which a belief is deleted
	// and a reflective memory recorded.
	AbandonThreshold = 0.2

	// InitialBeliefConfidence is the confidence of a freshly formed belief.
	InitialBeliefConfidence = 0.5

	// StatementMaxDistance is the Levenshtein distance under which two
	// statements are treated as the same belief rather than near-duplicates.
	StatementMaxDistance = 8

	patternScanLimit = 200
)

// actorPattern maps a memory tag to the character belief it supports when an
// actor accumulates enough of them.
type actorPattern struct {
	tag       string
	statement string // takes the actor's name
}

var actorPatterns = []actorPattern{
	{tag: "helpful", statement: "%s can be counted on to help"},
	{tag: "generous", statement: "%s gives freely to others"},
	{tag: "hostile", statement: "%s is quick to aggression"},
	{tag: "deceptive", statement: "%s cannot be trusted at their word"},
	{tag: "trust_verified", statement: "%s keeps their word"},
	{tag: "trust_violation", statement: "%s is unreliable"},
}

// divineTags form divine beliefs on recurrence.
var divineTags = map[string]string{
	"omen":   "omens carry meaning",
	"ritual": "the rituals are answered",
	"prayer": "prayers do not go unheard",
	"vision": "visions show what is hidden",
}

// causalTags mark tags that read as actions; a recurring pair (action tag,
// other tag) becomes a causal belief instead of a world-mechanics one.
var causalTags = map[string]bool{
	"till":    true,
	"plant":   true,
	"harvest": true,
	"build":   true,
	"craft":   true,
	"pray":    true,
}

// reservedTags never participate in world pattern detection.
var reservedTags = map[string]bool{
	domain.TagReflection: true,
	"trust_verified":     true,
	"trust_violation":    true,
	"conversation":       true,
	"helpful":            true,
	"generous":           true,
	"hostile":            true,
	"deceptive":          true,
}

// BeliefService converts repeated episodic patterns into generalized beliefs
// and maintains their confidence.
type BeliefService struct {
	beliefs  domain.BeliefStore
	memories domain.MemoryStore
	agents   domain.AgentStore
	logger   *zap.Logger
}

func NewBeliefService(bs domain.BeliefStore, ms domain.MemoryStore, as domain.AgentStore, logger *zap.Logger) *BeliefService {
	return &BeliefService{
		beliefs:  bs,
		memories: ms,
		agents:   as,
		logger:   logger,
	}
}

// DetectPatterns scans an agent's recent memories for recurring patterns and
// creates or reinforces beliefs for every pattern at or past the threshold.
func (s *BeliefService) DetectPatterns(ctx context.Context, agentID uuid.UUID) ([]domain.Belief, error) {
	memories, err := s.memories.Filter(ctx, agentID, domain.MemoryFilter{Limit: patternScanLimit})
	if err != nil {
		return nil, err
	}

	var touched []domain.Belief

	for _, b := range s.detectActorPatterns(ctx, agentID, memories) {
		touched = append(touched, b)
	}
	for _, b := range s.detectWorldPatterns(ctx, agentID, memories) {
		touched = append(touched, b)
	}
	for _, b := range s.detectDivinePatterns(ctx, agentID, memories) {
		touched = append(touched, b)
	}
	for _, b := range s.detectSocialPatterns(ctx, agentID, memories) {
		touched = append(touched, b)
	}

	return touched, nil
}

func (s *BeliefService) detectActorPatterns(ctx context.Context, agentID uuid.UUID, memories []domain.EpisodicMemory) []domain.Belief {
	var out []domain.Belief
	for _, p := range actorPatterns {
		byActor := map[uuid.UUID][]domain.EpisodicMemory{}
		for _, m := range memories {
			if !m.HasTag(p.tag) {
				continue
			}
			for _, actor := range m.Actors {
				if actor == agentID {
					continue
				}
				byActor[actor] = append(byActor[actor], m)
			}
		}
		for actor, evidence := range byActor {
			if len(evidence) < PatternThreshold {
				continue
			}
			statement := fmt.Sprintf(p.statement, s.agentName(ctx, actor))
			b, err := s.upsertFromPattern(ctx, agentID, domain.BeliefAgentCharacter, actor.String(), statement, evidence)
			if err != nil {
				s.logger.Error("belief upsert failed", zap.String("subject", actor.String()), zap.Error(err))
				continue
			}
			if b != nil {
				out = append(out, *b)
			}
		}
	}
	return out
}

func (s *BeliefService) detectWorldPatterns(ctx context.Context, agentID uuid.UUID, memories []domain.EpisodicMemory) []domain.Belief {
	type pair struct{ a, b string }
	counts := map[pair][]domain.EpisodicMemory{}
	for _, m := range memories {
		tags := worldTags(m.Tags)
		for i := 0; i < len(tags); i++ {
			for j := i + 1; j < len(tags); j++ {
				p := pair{tags[i], tags[j]}
				counts[p] = append(counts[p], m)
			}
		}
	}

	var out []domain.Belief
	for p, evidence := range counts {
		if len(evidence) < PatternThreshold {
			continue
		}
		category := domain.BeliefWorldMechanics
		statement := fmt.Sprintf("where there is %s, there is %s", p.a, p.b)
		switch {
		case causalTags[p.a]:
			category = domain.BeliefCausal
			statement = fmt.Sprintf("%s leads to %s", p.a, p.b)
		case causalTags[p.b]:
			category = domain.BeliefCausal
			statement = fmt.Sprintf("%s leads to %s", p.b, p.a)
		}
		subject := p.a + "+" + p.b
		b, err := s.upsertFromPattern(ctx, agentID, category, subject, statement, evidence)
		if err != nil {
			s.logger.Error("belief upsert failed", zap.String("subject", subject), zap.Error(err))
			continue
		}
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}

func (s *BeliefService) detectDivinePatterns(ctx context.Context, agentID uuid.UUID, memories []domain.EpisodicMemory) []domain.Belief {
	var out []domain.Belief
	for tag, statement := range divineTags {
		var evidence []domain.EpisodicMemory
		for _, m := range memories {
			if m.HasTag(tag) {
				evidence = append(evidence, m)
			}
		}
		if len(evidence) < PatternThreshold {
			continue
		}
		b, err := s.upsertFromPattern(ctx, agentID, domain.BeliefDivine, tag, statement, evidence)
		if err != nil {
			s.logger.Error("belief upsert failed", zap.String("subject", tag), zap.Error(err))
			continue
		}
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}

func (s *BeliefService) detectSocialPatterns(ctx context.Context, agentID uuid.UUID, memories []domain.EpisodicMemory) []domain.Belief {
	byActor := map[uuid.UUID][]domain.EpisodicMemory{}
	for _, m := range memories {
		if !m.HasTag("conversation") || m.EmotionalImpact <= 0 {
			continue
		}
		for _, actor := range m.Actors {
			if actor == agentID {
				continue
			}
			byActor[actor] = append(byActor[actor], m)
		}
	}

	var out []domain.Belief
	for actor, evidence := range byActor {
		if len(evidence) < PatternThreshold {
			continue
		}
		statement := fmt.Sprintf("conversations with %s go well", s.agentName(ctx, actor))
		b, err := s.upsertFromPattern(ctx, agentID, domain.BeliefSocialDynamics, actor.String(), statement, evidence)
		if err != nil {
			s.logger.Error("belief upsert failed", zap.String("subject", actor.String()), zap.Error(err))
			continue
		}
		if b != nil {
			out = append(out, *b)
		}
	}
	return out
}

// upsertFromPattern reinforces the existing belief matching (category,
// subject, statement) or creates a new one. Creation requires the full
// pattern threshold of evidence.
func (s *BeliefService) upsertFromPattern(ctx context.Context, agentID uuid.UUID, category domain.BeliefCategory, subject, statement string, evidence []domain.EpisodicMemory) (*domain.Belief, error) {
	existing, err := s.beliefs.GetByKey(ctx, agentID, category, subject)
	if err != nil {
		return nil, err
	}

	for i := range existing {
		b := &existing[i]
		if !statementsMatch(b.Statement, statement) {
			continue
		}
		fresh := newEvidenceIDs(b, evidence)
		if len(fresh) == 0 {
			// Nothing new to attach; an unchanged belief is not a
			// detection result.
			return nil, nil
		}
		return s.reinforce(ctx, b, fresh)
	}

	if len(evidence) < PatternThreshold {
		return nil, nil
	}

	b := &domain.Belief{
		AgentID:     agentID,
		Category:    category,
		Subject:     subject,
		Statement:   statement,
		Confidence:  InitialBeliefConfidence,
		EvidenceIDs: memoryIDs(evidence),
	}
	if err := s.beliefs.Create(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("belief formed",
		zap.String("agent_id", agentID.String()),
		zap.String("category", string(category)),
		zap.String("statement", statement),
		zap.Int("evidence", len(b.EvidenceIDs)))
	return b, nil
}

// reinforce applies the asymptotic confidence gain for deltaN new evidence
// memories and attaches them.
func (s *BeliefService) reinforce(ctx context.Context, b *domain.Belief, fresh []uuid.UUID) (*domain.Belief, error) {
	for _, id := range fresh {
		if err := s.beliefs.AddEvidence(ctx, b.ID, id, false); err != nil {
			return nil, err
		}
		b.EvidenceIDs = append(b.EvidenceIDs, id)
	}

	deltaN := float32(len(fresh))
	b.Confidence = domain.ClampUnit(b.Confidence + deltaN*ReinforceStep*(1-b.Confidence))
	b.LastUpdated = time.Now()
	if err := s.beliefs.UpdateConfidence(ctx, b.ID, b.Confidence); err != nil {
		return nil, err
	}

	s.logger.Debug("belief reinforced",
		zap.String("belief_id", b.ID.String()),
		zap.Float32("confidence", b.Confidence),
		zap.Int("delta_n", len(fresh)))
	return b, nil
}

// AddCounterEvidence attaches a contradicting memory. When the counter ratio
// passes the threshold the confidence is scaled down; crossing the abandon
// threshold deletes the belief.
func (s *BeliefService) AddCounterEvidence(ctx context.Context, beliefID, memoryID uuid.UUID) (*domain.Belief, error) {
	b, err := s.beliefs.GetByID(ctx, beliefID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBeliefNotFound
		}
		return nil, err
	}

	if err := s.beliefs.AddEvidence(ctx, b.ID, memoryID, true); err != nil {
		return nil, err
	}
	b.CounterEvidenceIDs = append(b.CounterEvidenceIDs, memoryID)

	ratio := b.CounterRatio()
	if ratio > CounterRatioThreshold {
		b.Confidence = domain.ClampUnit(b.Confidence * (1 - ratio))
	}

	if b.Confidence < AbandonThreshold {
		if err := s.Abandon(ctx, b); err != nil {
			return nil, err
		}
		return nil, nil
	}

	b.LastUpdated = time.Now()
	if err := s.beliefs.UpdateConfidence(ctx, b.ID, b.Confidence); err != nil {
		return nil, err
	}
	return b, nil
}

// Abandon deletes a belief and records exactly one reflective memory about
// giving it up.
func (s *BeliefService) Abandon(ctx context.Context, b *domain.Belief) error {
	if err := s.beliefs.Delete(ctx, b.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	reflection := &domain.EpisodicMemory{
		AgentID:         b.AgentID,
		Summary:         fmt.Sprintf("I no longer believe that %s", b.Statement),
		EmotionalImpact: -0.2,
		Confidence:      1.0,
		Tags:            []string{domain.TagReflection, "belief_abandoned"},
		OccurredAt:      time.Now(),
	}
	if err := s.memories.Create(ctx, reflection); err != nil {
		return fmt.Errorf("record abandonment reflection: %w", err)
	}

	s.logger.Info("belief abandoned",
		zap.String("agent_id", b.AgentID.String()),
		zap.String("statement", b.Statement),
		zap.Float32("confidence", b.Confidence))
	return nil
}

// ReinforceCharacter strengthens the observer's positive character belief
// about the subject with a new supporting memory. No-op when no such belief
// has formed yet; pattern detection creates it once enough memories exist.
func (s *BeliefService) ReinforceCharacter(ctx context.Context, observerID, subjectID, memoryID uuid.UUID) error {
	beliefs, err := s.beliefs.GetByKey(ctx, observerID, domain.BeliefAgentCharacter, subjectID.String())
	if err != nil {
		return err
	}
	mem, err := s.memories.GetByID(ctx, memoryID)
	if err != nil {
		return err
	}
	for i := range beliefs {
		if !positiveCharacterStatement(beliefs[i].Statement) {
			continue
		}
		if _, err := s.reinforce(ctx, &beliefs[i], newEvidenceIDs(&beliefs[i], []domain.EpisodicMemory{*mem})); err != nil {
			return err
		}
	}
	return nil
}

// CounterCharacter files a memory as counter-evidence against the observer's
// positive character beliefs about the subject.
func (s *BeliefService) CounterCharacter(ctx context.Context, observerID, subjectID, memoryID uuid.UUID) error {
	beliefs, err := s.beliefs.GetByKey(ctx, observerID, domain.BeliefAgentCharacter, subjectID.String())
	if err != nil {
		return err
	}
	for i := range beliefs {
		if !positiveCharacterStatement(beliefs[i].Statement) {
			continue
		}
		if _, err := s.AddCounterEvidence(ctx, beliefs[i].ID, memoryID); err != nil {
			return err
		}
	}
	return nil
}

func (s *BeliefService) GetByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Belief, error) {
	return s.beliefs.GetByAgent(ctx, agentID)
}

func (s *BeliefService) TopByConfidence(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.Belief, error) {
	return s.beliefs.TopByConfidence(ctx, agentID, limit)
}

func (s *BeliefService) agentName(ctx context.Context, id uuid.UUID) string {
	a, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return "agent " + id.String()[:8]
	}
	return a.Name
}

// statementsMatch treats statements within a small edit distance as the same
// belief, so minor rephrasings reinforce instead of duplicating.
func statementsMatch(a, b string) bool {
	if a == b {
		return true
	}
	return levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b)) <= StatementMaxDistance
}

func positiveCharacterStatement(statement string) bool {
	lower := strings.ToLower(statement)
	return !strings.Contains(lower, "unreliable") &&
		!strings.Contains(lower, "cannot be trusted") &&
		!strings.Contains(lower, "aggression")
}

func memoryIDs(memories []domain.EpisodicMemory) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(memories))
	for _, m := range memories {
		ids = append(ids, m.ID)
	}
	return ids
}

func newEvidenceIDs(b *domain.Belief, memories []domain.EpisodicMemory) []uuid.UUID {
	attached := map[uuid.UUID]bool{}
	for _, id := range b.EvidenceIDs {
		attached[id] = true
	}
	for _, id := range b.CounterEvidenceIDs {
		attached[id] = true
	}
	var fresh []uuid.UUID
	for _, m := range memories {
		if !attached[m.ID] {
			fresh = append(fresh, m.ID)
		}
	}
	return fresh
}

// worldTags filters out reserved bookkeeping tags and returns the rest
// sorted, so tag pairs are produced in a stable order.
func worldTags(tags []string) []string {
	var out []string
	for _, t := range tags {
		if !reservedTags[t] && !strings.HasPrefix(t, "belief_") {
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
