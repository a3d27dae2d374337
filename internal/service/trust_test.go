package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTrustTest(t *testing.T) (*TrustService, *BeliefService, *mockRelationshipStore, *mockMemoryStore, uuid.UUID, uuid.UUID) {
	t.Helper()

	agentStore := newMockAgentStore()
	memStore := newMockMemoryStore()
	beliefStore := newMockBeliefStore()
	relStore := newMockRelationshipStore()

	memSvc := NewMemoryService(memStore, agentStore, nil, testLogger())
	beliefSvc := NewBeliefService(beliefStore, memStore, agentStore, testLogger())
	svc := NewTrustService(relStore, memSvc, beliefSvc, agentStore, testLogger())

	observer := &domain.Agent{Name: "Mara"}
	subject := &domain.Agent{Name: "Tobin"}
	require.NoError(t, agentStore.Create(context.Background(), observer))
	require.NoError(t, agentStore.Create(context.Background(), subject))

	return svc, beliefSvc, relStore, memStore, observer.ID, subject.ID
}

func trustEvent(observerID, subjectID uuid.UUID, typ domain.TrustEventType, class domain.ViolationClass) *domain.TrustEvent {
	return &domain.TrustEvent{
		ObserverID: observerID,
		SubjectID:  subjectID,
		Type:       typ,
		Class:      class,
		Summary:    "said the well was full",
		OccurredAt: time.Now(),
	}
}

func TestTrustService_Apply_Verified(t *testing.T) {
	svc, _, _, memStore, observerID, subjectID := setupTrustTest(t)

	rel, err := svc.Apply(context.Background(), trustEvent(observerID, subjectID, domain.ClaimVerified, ""))
	require.NoError(t, err)

	assert.InDelta(t, NeutralTrust+VerifiedDelta, rel.Trust, 1e-6)
	assert.Equal(t, 1, rel.Interactions)

	reflections := memStore.byTag(observerID, "trust_verified")
	require.Len(t, reflections, 1)
	assert.Contains(t, reflections[0].Summary, "Tobin's claim held up")
	assert.True(t, reflections[0].Involves(subjectID))
}

func TestTrustService_Apply_ViolationPenalties(t *testing.T) {
	cases := []struct {
		class   domain.ViolationClass
		penalty float32
	}{
		{domain.ViolationStale, 0.1},
		{domain.ViolationMisidentified, 0.3},
		{domain.ViolationFalseReport, 0.5},
		{domain.ViolationUnreliability, 0.8},
	}

	for _, tc := range cases {
		t.Run(string(tc.class), func(t *testing.T) {
			svc, _, _, memStore, observerID, subjectID := setupTrustTest(t)

			rel, err := svc.Apply(context.Background(), trustEvent(observerID, subjectID, domain.ClaimViolated, tc.class))
			require.NoError(t, err)

			want := domain.ClampUnit(NeutralTrust - tc.penalty)
			assert.InDelta(t, want, rel.Trust, 1e-6)

			reflections := memStore.byTag(observerID, "trust_violation")
			require.Len(t, reflections, 1)
			assert.Less(t, reflections[0].EmotionalImpact, float32(0))
		})
	}
}

func TestTrustService_Apply_ClampedUnderRepeatedEvents(t *testing.T) {
	svc, _, _, _, observerID, subjectID := setupTrustTest(t)
	ctx := context.Background()

	var rel *domain.Relationship
	var err error
	for i := 0; i < 5; i++ {
		rel, err = svc.Apply(ctx, trustEvent(observerID, subjectID, domain.ClaimViolated, domain.ViolationUnreliability))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rel.Trust, float32(0))
	}
	assert.Equal(t, float32(0), rel.Trust)

	for i := 0; i < 20; i++ {
		rel, err = svc.Apply(ctx, trustEvent(observerID, subjectID, domain.ClaimVerified, ""))
		require.NoError(t, err)
		assert.LessOrEqual(t, rel.Trust, float32(1))
	}
	assert.Equal(t, 25, rel.Interactions)
}

func TestTrustService_Apply_Validation(t *testing.T) {
	svc, _, _, _, observerID, subjectID := setupTrustTest(t)
	ctx := context.Background()

	_, err := svc.Apply(ctx, trustEvent(uuid.Nil, subjectID, domain.ClaimVerified, ""))
	assert.ErrorIs(t, err, ErrTrustObserverMissing)

	_, err = svc.Apply(ctx, trustEvent(observerID, uuid.Nil, domain.ClaimVerified, ""))
	assert.ErrorIs(t, err, ErrTrustSubjectMissing)

	_, err = svc.Apply(ctx, trustEvent(observerID, observerID, domain.ClaimVerified, ""))
	assert.ErrorIs(t, err, ErrTrustSelfReference)

	_, err = svc.Apply(ctx, trustEvent(observerID, subjectID, "gossip", ""))
	assert.ErrorIs(t, err, ErrTrustInvalidEventType)

	_, err = svc.Apply(ctx, trustEvent(observerID, subjectID, domain.ClaimViolated, "sloppy"))
	assert.ErrorIs(t, err, ErrTrustInvalidClass)
}

func TestTrustService_CanCooperate(t *testing.T) {
	svc, _, _, _, observerID, subjectID := setupTrustTest(t)
	ctx := context.Background()

	// Unknown pairs default to neutral trust, above the gate.
	ok, trust, err := svc.CanCooperate(ctx, observerID, subjectID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, NeutralTrust, trust, 1e-6)

	_, err = svc.Apply(ctx, trustEvent(observerID, subjectID, domain.ClaimViolated, domain.ViolationFalseReport))
	require.NoError(t, err)

	ok, trust, err = svc.CanCooperate(ctx, observerID, subjectID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.InDelta(t, 0.0, trust, 1e-6)
}

func TestTrustService_ViolationsFormUnreliabilityBelief(t *testing.T) {
	svc, beliefSvc, _, _, observerID, subjectID := setupTrustTest(t)
	ctx := context.Background()

	// Trust events never create beliefs directly; the reflective memories
	// they leave behind cross the pattern threshold instead.
	for i := 0; i < PatternThreshold; i++ {
		_, err := svc.Apply(ctx, trustEvent(observerID, subjectID, domain.ClaimViolated, domain.ViolationStale))
		require.NoError(t, err)
	}

	beliefs, err := beliefSvc.GetByAgent(ctx, observerID)
	require.NoError(t, err)
	assert.Empty(t, beliefs, "no belief before a detection pass")

	touched, err := beliefSvc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	assert.Equal(t, "Tobin is unreliable", touched[0].Statement)
	assert.Equal(t, domain.BeliefAgentCharacter, touched[0].Category)
}
