package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/store"
	"go.uber.org/zap"
)

var (
	ErrTrustObserverMissing  = errors.New("observer_id is required")
	ErrTrustSubjectMissing   = errors.New("subject_id is required")
	ErrTrustSelfReference    = errors.New("observer and subject must differ")
	ErrTrustInvalidEventType = errors.New("invalid trust event type")
	ErrTrustInvalidClass     = errors.New("invalid violation class")
)

const (
	// NeutralTrust is the starting trust for a pair with no history.
	NeutralTrust = 0.5

	// VerifiedDelta is the trust gained when a claim checks out.
	VerifiedDelta = 0.1

	// CooperationThreshold gates cooperation decisions downstream.
	CooperationThreshold = 0.4
)

// TrustService adjusts the scalar trust per relationship in response to
// verified or violated claims, and files the episodic and belief side
// effects of each event.
type TrustService struct {
	relationships domain.RelationshipStore
	memories      *MemoryService
	beliefs       *BeliefService
	agents        domain.AgentStore
	logger        *zap.Logger
}

func NewTrustService(rs domain.RelationshipStore, ms *MemoryService, bs *BeliefService, as domain.AgentStore, logger *zap.Logger) *TrustService {
	return &TrustService{
		relationships: rs,
		memories:      ms,
		beliefs:       bs,
		agents:        as,
		logger:        logger,
	}
}

// Apply processes a trust event: adjust the relationship scalar, record a
// reflective memory for the observer, and feed the character belief about
// the subject.
func (s *TrustService) Apply(ctx context.Context, e *domain.TrustEvent) (*domain.Relationship, error) {
	if e.ObserverID == uuid.Nil {
		return nil, ErrTrustObserverMissing
	}
	if e.SubjectID == uuid.Nil {
		return nil, ErrTrustSubjectMissing
	}
	if e.ObserverID == e.SubjectID {
		return nil, ErrTrustSelfReference
	}
	if !domain.ValidTrustEventType(string(e.Type)) {
		return nil, ErrTrustInvalidEventType
	}
	if e.Type == domain.ClaimViolated && !domain.ValidViolationClass(string(e.Class)) {
		return nil, ErrTrustInvalidClass
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	rel, err := s.relationships.Get(ctx, e.ObserverID, e.SubjectID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		rel = &domain.Relationship{
			ObserverID: e.ObserverID,
			SubjectID:  e.SubjectID,
			Trust:      NeutralTrust,
		}
	}

	before := rel.Trust
	switch e.Type {
	case domain.ClaimVerified:
		rel.Trust += VerifiedDelta
	case domain.ClaimViolated:
		rel.Trust -= e.Class.Penalty()
	}
	rel.Trust = domain.ClampUnit(rel.Trust)
	rel.Interactions++
	rel.LastEventAt = e.OccurredAt

	if err := s.relationships.Upsert(ctx, rel); err != nil {
		return nil, err
	}

	s.logger.Info("trust updated",
		zap.String("observer_id", e.ObserverID.String()),
		zap.String("subject_id", e.SubjectID.String()),
		zap.String("event", string(e.Type)),
		zap.String("class", string(e.Class)),
		zap.Float32("trust_before", before),
		zap.Float32("trust_after", rel.Trust))

	memID, err := s.recordReflection(ctx, e)
	if err != nil {
		return nil, err
	}

	// Verified claims reinforce an existing positive character belief;
	// violations count against it. Either way the reflective memory also
	// feeds pattern detection, which forms the belief once enough pile up.
	switch e.Type {
	case domain.ClaimVerified:
		err = s.beliefs.ReinforceCharacter(ctx, e.ObserverID, e.SubjectID, memID)
	case domain.ClaimViolated:
		err = s.beliefs.CounterCharacter(ctx, e.ObserverID, e.SubjectID, memID)
	}
	if err != nil {
		return nil, err
	}

	return rel, nil
}

func (s *TrustService) recordReflection(ctx context.Context, e *domain.TrustEvent) (uuid.UUID, error) {
	subjectName := "agent " + e.SubjectID.String()[:8]
	if a, err := s.agents.GetByID(ctx, e.SubjectID); err == nil {
		subjectName = a.Name
	}

	var summary string
	var impact float32
	var tag string
	switch e.Type {
	case domain.ClaimVerified:
		summary = fmt.Sprintf("%s's claim held up: %s", subjectName, e.Summary)
		impact = 0.3
		tag = "trust_verified"
	default:
		summary = fmt.Sprintf("%s's claim failed (%s): %s", subjectName, e.Class, e.Summary)
		impact = -domain.ClampUnit(e.Class.Penalty())
		tag = "trust_violation"
	}

	m := &domain.EpisodicMemory{
		AgentID:         e.ObserverID,
		Summary:         summary,
		Actors:          []uuid.UUID{e.SubjectID},
		EmotionalImpact: domain.ClampSigned(impact),
		Confidence:      1.0,
		Tags:            []string{domain.TagReflection, tag},
		OccurredAt:      e.OccurredAt,
	}
	if err := s.memories.Record(ctx, m); err != nil {
		return uuid.Nil, fmt.Errorf("record trust reflection: %w", err)
	}
	return m.ID, nil
}

// Get returns the relationship, defaulting to neutral for pairs with no
// history.
func (s *TrustService) Get(ctx context.Context, observerID, subjectID uuid.UUID) (*domain.Relationship, error) {
	rel, err := s.relationships.Get(ctx, observerID, subjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &domain.Relationship{
				ObserverID: observerID,
				SubjectID:  subjectID,
				Trust:      NeutralTrust,
			}, nil
		}
		return nil, err
	}
	return rel, nil
}

// CanCooperate is the downstream gate: a simple threshold comparison.
func (s *TrustService) CanCooperate(ctx context.Context, observerID, subjectID uuid.UUID) (bool, float32, error) {
	rel, err := s.Get(ctx, observerID, subjectID)
	if err != nil {
		return false, 0, err
	}
	return rel.Trust >= CooperationThreshold, rel.Trust, nil
}

// Summarize returns the observer's relationships for prompts and display.
func (s *TrustService) Summarize(ctx context.Context, observerID uuid.UUID) ([]domain.Relationship, error) {
	return s.relationships.GetByObserver(ctx, observerID)
}
