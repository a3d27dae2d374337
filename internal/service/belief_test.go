package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupBeliefTest(t *testing.T) (*BeliefService, *mockBeliefStore, *mockMemoryStore, uuid.UUID, uuid.UUID) {
	t.Helper()

	agentStore := newMockAgentStore()
	memStore := newMockMemoryStore()
	beliefStore := newMockBeliefStore()
	svc := NewBeliefService(beliefStore, memStore, agentStore, testLogger())

	observer := &domain.Agent{Name: "Mara"}
	subject := &domain.Agent{Name: "Tobin"}
	require.NoError(t, agentStore.Create(context.Background(), observer))
	require.NoError(t, agentStore.Create(context.Background(), subject))

	return svc, beliefStore, memStore, observer.ID, subject.ID
}

func addTaggedMemories(t *testing.T, memStore *mockMemoryStore, agentID, actorID uuid.UUID, tag string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		m := &domain.EpisodicMemory{
			AgentID:         agentID,
			Summary:         fmt.Sprintf("%s event %d", tag, i),
			Actors:          []uuid.UUID{actorID},
			EmotionalImpact: 0.4,
			Confidence:      1.0,
			Tags:            []string{tag},
			OccurredAt:      time.Now(),
		}
		require.NoError(t, memStore.Create(context.Background(), m))
	}
}

func TestBeliefService_DetectPatterns_BelowThreshold(t *testing.T) {
	svc, beliefStore, memStore, observerID, subjectID := setupBeliefTest(t)

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", PatternThreshold-1)

	touched, err := svc.DetectPatterns(context.Background(), observerID)
	require.NoError(t, err)
	assert.Empty(t, touched)
	assert.Empty(t, beliefStore.beliefs)
}

func TestBeliefService_DetectPatterns_FormsAtThreshold(t *testing.T) {
	svc, beliefStore, memStore, observerID, subjectID := setupBeliefTest(t)

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", PatternThreshold)

	touched, err := svc.DetectPatterns(context.Background(), observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	b := touched[0]
	assert.Equal(t, domain.BeliefAgentCharacter, b.Category)
	assert.Equal(t, subjectID.String(), b.Subject)
	assert.Equal(t, "Tobin can be counted on to help", b.Statement)
	assert.InDelta(t, InitialBeliefConfidence, b.Confidence, 1e-6)
	assert.Len(t, b.EvidenceIDs, PatternThreshold)
	assert.Len(t, beliefStore.beliefs, 1)
}

func TestBeliefService_DetectPatterns_ReinforcesExisting(t *testing.T) {
	svc, _, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", PatternThreshold)
	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	// A fourth matching memory reinforces instead of duplicating.
	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", 1)
	touched, err = svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	b := touched[0]
	want := InitialBeliefConfidence + ReinforceStep*(1-InitialBeliefConfidence)
	assert.InDelta(t, want, b.Confidence, 1e-4)
	assert.Len(t, b.EvidenceIDs, PatternThreshold+1)
}

func TestBeliefService_DetectPatterns_UnchangedBeliefNotReported(t *testing.T) {
	svc, beliefStore, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", PatternThreshold)
	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	formed := touched[0]

	// A second pass over the same memories finds nothing new to attach, so
	// it must report no changes and leave the belief untouched.
	touched, err = svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	assert.Empty(t, touched)

	b, err := beliefStore.GetByID(ctx, formed.ID)
	require.NoError(t, err)
	assert.InDelta(t, formed.Confidence, b.Confidence, 1e-6)
	assert.Len(t, b.EvidenceIDs, PatternThreshold)
}

func TestBeliefService_Reinforcement_AsymptoticAndMonotonic(t *testing.T) {
	svc, _, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", PatternThreshold)
	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	prev := touched[0].Confidence
	for i := 0; i < 30; i++ {
		addTaggedMemories(t, memStore, observerID, subjectID, "helpful", 1)
		touched, err = svc.DetectPatterns(ctx, observerID)
		require.NoError(t, err)
		require.Len(t, touched, 1)

		conf := touched[0].Confidence
		assert.GreaterOrEqual(t, conf, prev, "reinforcement must never lower confidence")
		assert.LessOrEqual(t, conf, float32(1.0))
		prev = conf
	}
	// Approaches but never reaches certainty.
	assert.Less(t, prev, float32(1.0))
	assert.Greater(t, prev, float32(0.9))
}

func TestBeliefService_DetectPatterns_NoSelfBeliefs(t *testing.T) {
	svc, beliefStore, memStore, observerID, _ := setupBeliefTest(t)

	// Memories naming the owner as actor never form character beliefs about
	// themselves.
	addTaggedMemories(t, memStore, observerID, observerID, "helpful", PatternThreshold)

	touched, err := svc.DetectPatterns(context.Background(), observerID)
	require.NoError(t, err)
	assert.Empty(t, touched)
	assert.Empty(t, beliefStore.beliefs)
}

func TestBeliefService_DetectPatterns_CausalFromTagPairs(t *testing.T) {
	svc, _, memStore, observerID, _ := setupBeliefTest(t)
	ctx := context.Background()

	for i := 0; i < PatternThreshold; i++ {
		m := &domain.EpisodicMemory{
			AgentID:         observerID,
			Summary:         "Harvested the east field",
			EmotionalImpact: 0.2,
			Confidence:      1.0,
			Tags:            []string{"harvest", "crop"},
			OccurredAt:      time.Now(),
		}
		require.NoError(t, memStore.Create(ctx, m))
	}

	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)

	b := touched[0]
	assert.Equal(t, domain.BeliefCausal, b.Category)
	assert.Equal(t, "harvest leads to crop", b.Statement)
}

func TestBeliefService_DetectPatterns_DivineFromOmens(t *testing.T) {
	svc, _, memStore, observerID, _ := setupBeliefTest(t)
	ctx := context.Background()

	for i := 0; i < PatternThreshold; i++ {
		m := &domain.EpisodicMemory{
			AgentID:         observerID,
			Summary:         "Felt a presence lift from the village",
			EmotionalImpact: 0.4,
			Confidence:      1.0,
			Tags:            []string{"omen"},
			OccurredAt:      time.Now(),
		}
		require.NoError(t, memStore.Create(ctx, m))
	}

	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	assert.Equal(t, domain.BeliefDivine, touched[0].Category)
	assert.Equal(t, "omens carry meaning", touched[0].Statement)
}

func TestBeliefService_DetectPatterns_SocialFromConversations(t *testing.T) {
	svc, _, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	addTaggedMemories(t, memStore, observerID, subjectID, "conversation", PatternThreshold)

	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	assert.Equal(t, domain.BeliefSocialDynamics, touched[0].Category)
	assert.Equal(t, "conversations with Tobin go well", touched[0].Statement)
}

func TestBeliefService_AddCounterEvidence_BelowRatioKeepsConfidence(t *testing.T) {
	svc, _, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", PatternThreshold)
	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	beliefID := touched[0].ID

	// One counter against three supporting memories: ratio 0.25, under the
	// threshold, so confidence holds.
	counter := &domain.EpisodicMemory{AgentID: observerID, Summary: "Tobin ignored a call for help"}
	require.NoError(t, memStore.Create(ctx, counter))

	b, err := svc.AddCounterEvidence(ctx, beliefID, counter.ID)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.InDelta(t, InitialBeliefConfidence, b.Confidence, 1e-6)
	assert.Len(t, b.CounterEvidenceIDs, 1)
}

func TestBeliefService_AddCounterEvidence_MonotonicDecline(t *testing.T) {
	svc, _, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", 6)
	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	beliefID := touched[0].ID

	prev := touched[0].Confidence
	for i := 0; i < 4; i++ {
		counter := &domain.EpisodicMemory{AgentID: observerID, Summary: fmt.Sprintf("counter %d", i)}
		require.NoError(t, memStore.Create(ctx, counter))

		b, err := svc.AddCounterEvidence(ctx, beliefID, counter.ID)
		require.NoError(t, err)
		if b == nil {
			// Abandoned; decline held to the end.
			return
		}
		assert.LessOrEqual(t, b.Confidence, prev, "counter-evidence must never raise confidence")
		prev = b.Confidence
	}
}

func TestBeliefService_AddCounterEvidence_AbandonsWithOneReflection(t *testing.T) {
	svc, beliefStore, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	addTaggedMemories(t, memStore, observerID, subjectID, "helpful", PatternThreshold)
	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	beliefID := touched[0].ID
	statement := touched[0].Statement

	var abandoned bool
	for i := 0; i < 5 && !abandoned; i++ {
		counter := &domain.EpisodicMemory{AgentID: observerID, Summary: fmt.Sprintf("counter %d", i)}
		require.NoError(t, memStore.Create(ctx, counter))

		b, err := svc.AddCounterEvidence(ctx, beliefID, counter.ID)
		require.NoError(t, err)
		abandoned = b == nil
	}
	require.True(t, abandoned, "expected counter-evidence to push the belief past abandonment")

	_, ok := beliefStore.beliefs[beliefID]
	assert.False(t, ok, "abandoned belief must be deleted")

	reflections := memStore.byTag(observerID, "belief_abandoned")
	require.Len(t, reflections, 1, "abandonment records exactly one reflective memory")
	assert.Equal(t, "I no longer believe that "+statement, reflections[0].Summary)
	assert.True(t, reflections[0].HasTag(domain.TagReflection))
}

func TestBeliefService_AddCounterEvidence_UnknownBelief(t *testing.T) {
	svc, _, memStore, observerID, _ := setupBeliefTest(t)
	ctx := context.Background()

	counter := &domain.EpisodicMemory{AgentID: observerID, Summary: "counter"}
	require.NoError(t, memStore.Create(ctx, counter))

	_, err := svc.AddCounterEvidence(ctx, uuid.New(), counter.ID)
	assert.ErrorIs(t, err, ErrBeliefNotFound)
}

func TestBeliefService_CharacterHelpers_SkipNegativeBeliefs(t *testing.T) {
	svc, beliefStore, memStore, observerID, subjectID := setupBeliefTest(t)
	ctx := context.Background()

	// Build the negative "unreliable" belief from violation reflections.
	addTaggedMemories(t, memStore, observerID, subjectID, "trust_violation", PatternThreshold)
	touched, err := svc.DetectPatterns(ctx, observerID)
	require.NoError(t, err)
	require.Len(t, touched, 1)
	assert.Equal(t, "Tobin is unreliable", touched[0].Statement)
	before := touched[0].Confidence

	// A verified claim must not reinforce the negative belief.
	mem := &domain.EpisodicMemory{AgentID: observerID, Summary: "claim held up"}
	require.NoError(t, memStore.Create(ctx, mem))
	require.NoError(t, svc.ReinforceCharacter(ctx, observerID, subjectID, mem.ID))

	stored := beliefStore.beliefs[touched[0].ID]
	assert.InDelta(t, before, stored.Confidence, 1e-6)
	assert.Len(t, stored.EvidenceIDs, PatternThreshold)
}
