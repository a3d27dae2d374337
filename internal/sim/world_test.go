package sim

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/service"
	"github.com/lowvale/hearth/internal/sim/tuning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockRecorder collects recorded memories.
type mockRecorder struct {
	memories []*domain.EpisodicMemory
}

func (m *mockRecorder) Record(ctx context.Context, mem *domain.EpisodicMemory) error {
	m.memories = append(m.memories, mem)
	return nil
}

func (m *mockRecorder) byTag(tag string) []*domain.EpisodicMemory {
	var out []*domain.EpisodicMemory
	for _, mem := range m.memories {
		if mem.HasTag(tag) {
			out = append(out, mem)
		}
	}
	return out
}

// mockTrustApplier records applied events.
type mockTrustApplier struct {
	events []*domain.TrustEvent
}

func (m *mockTrustApplier) Apply(ctx context.Context, e *domain.TrustEvent) (*domain.Relationship, error) {
	m.events = append(m.events, e)
	return &domain.Relationship{ObserverID: e.ObserverID, SubjectID: e.SubjectID, Trust: 0.6}, nil
}

// mockDecider returns a fixed behavior.
type mockDecider struct {
	behavior domain.Behavior
	err      error
	calls    int
}

func (m *mockDecider) Decide(ctx context.Context, agentID uuid.UUID, sit service.Situation) (*domain.Behavior, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	b := m.behavior
	return &b, nil
}

// mockSpiritStore implements domain.SpiritStore in memory.
type mockSpiritStore struct {
	spirits map[uuid.UUID]*domain.Spirit
}

func newMockSpiritStore() *mockSpiritStore {
	return &mockSpiritStore{spirits: make(map[uuid.UUID]*domain.Spirit)}
}

func (m *mockSpiritStore) Create(ctx context.Context, s *domain.Spirit) error {
	m.spirits[s.ID] = s
	return nil
}

func (m *mockSpiritStore) GetByAgent(ctx context.Context, agentID uuid.UUID) (*domain.Spirit, error) {
	for _, s := range m.spirits {
		if s.AgentID == agentID {
			return s, nil
		}
	}
	return nil, nil
}

func (m *mockSpiritStore) Update(ctx context.Context, s *domain.Spirit) error {
	m.spirits[s.ID] = s
	return nil
}

func (m *mockSpiritStore) ListActive(ctx context.Context) ([]domain.Spirit, error) {
	var out []domain.Spirit
	for _, s := range m.spirits {
		if !s.Released {
			out = append(out, *s)
		}
	}
	return out, nil
}

func testTuning() tuning.Tuning {
	t := tuning.Default()
	t.TickDurationMs = 1
	t.DecisionEveryTicks = 0 // no async decisions unless a test opts in
	t.DetectEveryTicks = 0
	t.SpiritEveryTicks = 1
	return t
}

func newTestWorld(t *testing.T, tun tuning.Tuning) (*World, *mockRecorder, *mockTrustApplier, *mockSpiritStore) {
	t.Helper()
	recorder := &mockRecorder{}
	trust := &mockTrustApplier{}
	spirits := newMockSpiritStore()
	w := New(tun, recorder, trust, nil, nil, spirits, zap.NewNop())
	return w, recorder, trust, spirits
}

func addTestAgent(w *World, name string) *Agent {
	a := &domain.Agent{ID: uuid.New(), Name: name}
	w.AddAgent(a)
	return w.agents[a.ID]
}

func TestWorld_Step_NeedsDecay(t *testing.T) {
	w, _, _, _ := newTestWorld(t, testTuning())
	a := addTestAgent(w, "Mara")

	w.Step(context.Background())

	assert.InDelta(t, 1-w.tuning.HungerPerTick, a.Needs.Hunger, 1e-6)
	assert.InDelta(t, 1-w.tuning.EnergyPerTick, a.Needs.Energy, 1e-6)
	assert.InDelta(t, 1-w.tuning.SocialPerTick, a.Needs.Social, 1e-6)
	assert.Equal(t, uint64(1), w.Tick())
}

func TestWorld_Step_ScriptedEatConsumesFood(t *testing.T) {
	w, _, _, _ := newTestWorld(t, testTuning())
	a := addTestAgent(w, "Mara")
	a.Needs.Hunger = 0.1
	w.foodStock = 2

	w.Step(context.Background())

	assert.Equal(t, 1, w.foodStock)
	assert.Greater(t, a.Needs.Hunger, float32(0.1))
}

func TestWorld_Step_FarmingCycleFeedsStock(t *testing.T) {
	tun := testTuning()
	tun.CropStageTicks = 1
	w, recorder, _, _ := newTestWorld(t, tun)
	addTestAgent(w, "Mara")
	w.AddPlot("east field")

	// till, plant, grow, ready, harvest
	for i := 0; i < 8; i++ {
		w.Step(context.Background())
	}

	assert.Equal(t, 3, w.foodStock)
	require.NotEmpty(t, recorder.byTag("till"))
	require.NotEmpty(t, recorder.byTag("plant"))
	require.NotEmpty(t, recorder.byTag("harvest"))
}

func TestWorld_Step_DeathCreatesSpiritAndWitnessMemories(t *testing.T) {
	w, recorder, _, spirits := newTestWorld(t, testTuning())
	dying := addTestAgent(w, "Tobin")
	addTestAgent(w, "Mara")
	dying.Needs.Hunger = 0
	dying.Needs.Energy = 0

	events := w.Subscribe()
	defer w.Unsubscribe(events)

	w.Step(context.Background())

	assert.False(t, dying.Alive)
	assert.Len(t, spirits.spirits, 1)

	deaths := recorder.byTag("death")
	require.Len(t, deaths, 1, "each living witness records the death once")
	assert.True(t, deaths[0].Involves(dying.ID))

	var sawDeath bool
	for len(events) > 0 {
		if e := <-events; e.Kind == domain.WorldEventDeath {
			sawDeath = true
		}
	}
	assert.True(t, sawDeath)
}

func TestWorld_Step_SpiritReleaseLeavesOmen(t *testing.T) {
	w, recorder, _, spirits := newTestWorld(t, testTuning())
	dead := addTestAgent(w, "Tobin")
	addTestAgent(w, "Mara")
	dead.Alive = false

	s := &domain.Spirit{
		ID:         uuid.New(),
		AgentID:    dead.ID,
		Peace:      0.9,
		Tether:     0.01,
		DepartedAt: time.Now(),
	}
	require.NoError(t, spirits.Create(context.Background(), s))

	w.Step(context.Background())

	stored := spirits.spirits[s.ID]
	assert.True(t, stored.Released)
	require.NotNil(t, stored.ReleasedAt)

	omens := recorder.byTag("omen")
	require.Len(t, omens, 1, "living witnesses record the release as an omen")
	assert.True(t, omens[0].Involves(dead.ID))
}

func TestWorld_InjectConversation_RecordsBothSides(t *testing.T) {
	w, recorder, _, _ := newTestWorld(t, testTuning())
	speaker := addTestAgent(w, "Mara")
	listener := addTestAgent(w, "Tobin")
	speaker.Needs.Social = 0.5
	listener.Needs.Social = 0.5

	require.NoError(t, w.InjectConversation(domain.ConversationEvent{
		SpeakerID:  speaker.ID,
		ListenerID: listener.ID,
		Topic:      "the harvest",
		Summary:    "argued over the short yield",
		Sentiment:  -0.4,
	}))

	w.Step(context.Background())

	convs := recorder.byTag("conversation")
	require.Len(t, convs, 2, "both participants remember the exchange")
	assert.InDelta(t, -0.4, convs[0].EmotionalImpact, 1e-6)
	assert.Greater(t, speaker.Needs.Social, float32(0.5))
	assert.Greater(t, listener.Needs.Social, float32(0.5))
}

func TestWorld_InjectTrust_AppliedOnNextTick(t *testing.T) {
	w, _, trust, _ := newTestWorld(t, testTuning())
	observer := addTestAgent(w, "Mara")
	subject := addTestAgent(w, "Tobin")

	require.NoError(t, w.InjectTrust(domain.TrustEvent{
		ObserverID: observer.ID,
		SubjectID:  subject.ID,
		Type:       domain.ClaimVerified,
		Summary:    "the well really was full",
	}))
	assert.Empty(t, trust.events)

	w.Step(context.Background())

	require.Len(t, trust.events, 1)
	assert.Equal(t, domain.ClaimVerified, trust.events[0].Type)
}

func TestWorld_InjectTrust_QueueFull(t *testing.T) {
	tun := testTuning()
	tun.EventQueueSize = 1
	w, _, _, _ := newTestWorld(t, tun)

	e := domain.TrustEvent{ObserverID: uuid.New(), SubjectID: uuid.New(), Type: domain.ClaimVerified}
	require.NoError(t, w.InjectTrust(e))
	assert.Error(t, w.InjectTrust(e), "a full queue reports backpressure instead of dropping")
}

func TestWorld_AsyncDecision_AppliedWhenReady(t *testing.T) {
	tun := testTuning()
	tun.DecisionEveryTicks = 1
	w, _, _, _ := newTestWorld(t, tun)
	decider := &mockDecider{behavior: domain.Behavior{Action: domain.ActionRest, Reason: "tired"}}
	w.decider = decider
	a := addTestAgent(w, "Mara")
	a.Needs.Energy = 0.6

	// First step schedules the decision; poll until the goroutine delivers,
	// then the next step consumes it.
	w.Step(context.Background())
	require.Eventually(t, func() bool { return len(a.pending) > 0 }, time.Second, 5*time.Millisecond)

	before := a.Needs.Energy
	w.Step(context.Background())

	assert.Equal(t, 1, decider.calls)
	assert.Greater(t, a.Needs.Energy, before, "the decided rest behavior was executed")
}

func TestWorld_AsyncDecision_FailureFallsBackScripted(t *testing.T) {
	tun := testTuning()
	tun.DecisionEveryTicks = 1
	w, _, _, _ := newTestWorld(t, tun)
	decider := &mockDecider{err: context.DeadlineExceeded}
	w.decider = decider
	a := addTestAgent(w, "Mara")
	a.Needs.Hunger = 0.1
	w.foodStock = 1

	w.Step(context.Background())
	require.Eventually(t, func() bool { return len(a.pending) > 0 }, time.Second, 5*time.Millisecond)
	w.Step(context.Background())

	// The failed decision was logged and discarded; scripted eating went on.
	assert.Equal(t, 0, w.foodStock)
	assert.True(t, a.Alive)
}

func TestWorld_Run_StopsOnCancel(t *testing.T) {
	w, _, _, _ := newTestWorld(t, testTuning())
	addTestAgent(w, "Mara")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("world loop did not stop on cancel")
	}
	assert.Greater(t, w.Tick(), uint64(0))
}

func TestWorld_Status(t *testing.T) {
	w, _, _, _ := newTestWorld(t, testTuning())
	addTestAgent(w, "Mara")
	dead := addTestAgent(w, "Tobin")
	dead.Alive = false
	w.AddPlot("east field")
	w.foodStock = 4

	st := w.Status()
	assert.Equal(t, 2, st.Agents)
	assert.Equal(t, 1, st.Alive)
	assert.Equal(t, 4, st.FoodStock)
	assert.Len(t, st.Plots, 1)
}

func TestWorld_Status_PlotsAreSnapshots(t *testing.T) {
	tun := testTuning()
	tun.CropStageTicks = 1
	w, _, _, _ := newTestWorld(t, tun)
	addTestAgent(w, "Mara")
	w.AddPlot("east field")

	before := w.Status()
	require.Equal(t, StageFallow, before.Plots[0].Stage)

	// The first step tills the plot; the earlier snapshot must not see it.
	w.Step(context.Background())

	assert.Equal(t, StageFallow, before.Plots[0].Stage)
	assert.Equal(t, StageTilled, w.Status().Plots[0].Stage)
}
