package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/service"
	"github.com/lowvale/hearth/internal/sim/tuning"
	"go.uber.org/zap"
)

// Recorder appends episodic memories for agents.
type Recorder interface {
	Record(ctx context.Context, m *domain.EpisodicMemory) error
}

// TrustApplier processes verified/violated claim events.
type TrustApplier interface {
	Apply(ctx context.Context, e *domain.TrustEvent) (*domain.Relationship, error)
}

// Decider asks the LLM boundary for an agent's next behavior.
type Decider interface {
	Decide(ctx context.Context, agentID uuid.UUID, sit service.Situation) (*domain.Behavior, error)
}

// PatternDetector turns accumulated memories into beliefs.
type PatternDetector interface {
	DetectPatterns(ctx context.Context, agentID uuid.UUID) ([]domain.Belief, error)
}

const stepTimeout = 10 * time.Second

// World is the single-goroutine tick loop. All simulation state is mutated
// inside Step; the mutex only covers reads from API goroutines and event
// injection.
type World struct {
	mu sync.Mutex

	tuning tuning.Tuning
	logger *zap.Logger

	agents map[uuid.UUID]*Agent
	order  []uuid.UUID // stable iteration order
	plots  []*Plot

	foodStock int
	tick      uint64

	recorder Recorder
	trust    TrustApplier
	decider  Decider
	detector PatternDetector
	spirits  domain.SpiritStore

	events chan any // *domain.TrustEvent | *domain.ConversationEvent
	subs   map[chan domain.WorldEvent]struct{}

	detectCursor int
}

func New(tun tuning.Tuning, recorder Recorder, trust TrustApplier, decider Decider, detector PatternDetector, spirits domain.SpiritStore, logger *zap.Logger) *World {
	queue := tun.EventQueueSize
	if queue <= 0 {
		queue = 256
	}
	return &World{
		tuning:   tun,
		logger:   logger,
		agents:   make(map[uuid.UUID]*Agent),
		recorder: recorder,
		trust:    trust,
		decider:  decider,
		detector: detector,
		spirits:  spirits,
		events:   make(chan any, queue),
		subs:     make(map[chan domain.WorldEvent]struct{}),
	}
}

// AddAgent registers a stored agent with the tick loop.
func (w *World) AddAgent(a *domain.Agent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.agents[a.ID]; ok {
		return
	}
	w.agents[a.ID] = newAgent(a)
	w.order = append(w.order, a.ID)
}

// AddPlot registers a farmable plot.
func (w *World) AddPlot(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.plots = append(w.plots, &Plot{Name: name, Stage: StageFallow})
}

// InjectTrust queues a trust event for the next tick. Returns an error when
// the queue is full rather than dropping silently.
func (w *World) InjectTrust(e domain.TrustEvent) error {
	select {
	case w.events <- &e:
		return nil
	default:
		return errors.New("event queue full")
	}
}

// InjectConversation queues a conversation event for the next tick.
func (w *World) InjectConversation(e domain.ConversationEvent) error {
	select {
	case w.events <- &e:
		return nil
	default:
		return errors.New("event queue full")
	}
}

// Subscribe returns a channel of world events for the rendering layer.
// Slow subscribers miss events instead of stalling the loop.
func (w *World) Subscribe() chan domain.WorldEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(chan domain.WorldEvent, 64)
	w.subs[ch] = struct{}{}
	return ch
}

func (w *World) Unsubscribe(ch chan domain.WorldEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.subs[ch]; ok {
		delete(w.subs, ch)
		close(ch)
	}
}

func (w *World) broadcast(e domain.WorldEvent) {
	for ch := range w.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Run advances the world until the context is cancelled.
func (w *World) Run(ctx context.Context) {
	interval := time.Duration(w.tuning.TickDurationMs) * time.Millisecond
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("world loop started", zap.Duration("tick", interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("world loop stopped", zap.Uint64("tick", w.tick))
			return
		case <-ticker.C:
			stepCtx, cancel := context.WithTimeout(ctx, stepTimeout)
			w.Step(stepCtx)
			cancel()
		}
	}
}

// Step advances the world one tick.
func (w *World) Step(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tick++

	w.drainEvents(ctx)
	w.tickAgents(ctx)
	w.tickPlots()
	if w.tuning.SpiritEveryTicks > 0 && w.tick%w.tuning.SpiritEveryTicks == 0 {
		w.tickSpirits(ctx)
	}
	if w.tuning.DetectEveryTicks > 0 && w.tick%w.tuning.DetectEveryTicks == 0 {
		w.runDetection(ctx)
	}
}

// Tick returns the current tick counter.
func (w *World) Tick() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tick
}

func (w *World) drainEvents(ctx context.Context) {
	for {
		select {
		case e := <-w.events:
			switch ev := e.(type) {
			case *domain.TrustEvent:
				w.applyTrustEvent(ctx, ev)
			case *domain.ConversationEvent:
				w.applyConversation(ctx, ev)
			default:
				w.logger.Error("unknown event on bus", zap.Any("event", e))
			}
		default:
			return
		}
	}
}

func (w *World) applyTrustEvent(ctx context.Context, e *domain.TrustEvent) {
	if w.trust == nil {
		return
	}
	rel, err := w.trust.Apply(ctx, e)
	if err != nil {
		w.logger.Error("trust event failed",
			zap.String("observer_id", e.ObserverID.String()),
			zap.String("subject_id", e.SubjectID.String()),
			zap.Error(err))
		return
	}
	w.broadcast(domain.WorldEvent{
		Tick:    w.tick,
		Kind:    domain.WorldEventTrust,
		AgentID: e.ObserverID,
		Detail:  fmt.Sprintf("%s now trusts %s at %.2f", w.agentName(e.ObserverID), w.agentName(e.SubjectID), rel.Trust),
		At:      time.Now(),
	})
}

func (w *World) applyConversation(ctx context.Context, e *domain.ConversationEvent) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	impact := domain.ClampSigned(e.Sentiment)
	participants := []struct {
		owner uuid.UUID
		other uuid.UUID
	}{
		{e.SpeakerID, e.ListenerID},
		{e.ListenerID, e.SpeakerID},
	}
	for _, p := range participants {
		m := &domain.EpisodicMemory{
			AgentID:         p.owner,
			Summary:         fmt.Sprintf("Talked with %s about %s: %s", w.agentName(p.other), e.Topic, e.Summary),
			Actors:          []uuid.UUID{p.other},
			EmotionalImpact: impact,
			Confidence:      1.0,
			Tags:            []string{"conversation"},
			OccurredAt:      e.OccurredAt,
		}
		if err := w.recorder.Record(ctx, m); err != nil {
			w.logger.Error("failed to record conversation memory",
				zap.String("agent_id", p.owner.String()),
				zap.Error(err))
		}
	}

	// Satisfy the social need of both ends.
	for _, id := range []uuid.UUID{e.SpeakerID, e.ListenerID} {
		if a, ok := w.agents[id]; ok && a.Alive {
			a.Needs.Social = domain.ClampUnit(a.Needs.Social + 0.3)
		}
	}

	w.broadcast(domain.WorldEvent{
		Tick:    w.tick,
		Kind:    domain.WorldEventConversed,
		AgentID: e.SpeakerID,
		Detail:  fmt.Sprintf("%s talked with %s about %s", w.agentName(e.SpeakerID), w.agentName(e.ListenerID), e.Topic),
		At:      time.Now(),
	})
}

func (w *World) tickAgents(ctx context.Context) {
	for _, id := range w.order {
		a := w.agents[id]
		if !a.Alive {
			continue
		}

		a.Needs.Hunger = domain.ClampUnit(a.Needs.Hunger - w.tuning.HungerPerTick)
		a.Needs.Energy = domain.ClampUnit(a.Needs.Energy - w.tuning.EnergyPerTick)
		a.Needs.Social = domain.ClampUnit(a.Needs.Social - w.tuning.SocialPerTick)

		if a.Needs.Hunger <= 0 && a.Needs.Energy <= 0 {
			w.kill(ctx, a)
			continue
		}

		behavior, source := w.nextBehavior(ctx, a)
		w.execute(ctx, a, behavior, source)
	}
}

// nextBehavior prefers a pending LLM decision, schedules a new one when the
// cadence allows, and otherwise falls back to scripted behavior. The
// fallback is explicit: decision failures are logged, never swallowed.
func (w *World) nextBehavior(ctx context.Context, a *Agent) (domain.Behavior, domain.BehaviorSource) {
	select {
	case d := <-a.pending:
		a.deciding = false
		if d.err == nil {
			return d.behavior, d.source
		}
		w.logger.Warn("LLM decision failed, using scripted fallback",
			zap.String("agent_id", a.ID.String()),
			zap.Error(d.err))
	default:
	}

	if w.decider != nil && !a.deciding &&
		w.tuning.DecisionEveryTicks > 0 &&
		w.tick-a.lastDecisionTick >= w.tuning.DecisionEveryTicks {
		w.scheduleDecision(a)
	}

	return w.scripted(a), domain.BehaviorSourceScripted
}

func (w *World) scheduleDecision(a *Agent) {
	a.deciding = true
	a.lastDecisionTick = w.tick

	sit := service.Situation{
		Description:  w.describeFor(a),
		Needs:        a.Needs.Map(),
		NearbyAgents: w.nearbyAgents(a.ID),
	}
	agentID := a.ID
	pending := a.pending

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		b, err := w.decider.Decide(ctx, agentID, sit)
		d := decidedBehavior{err: err, source: domain.BehaviorSourceLLM}
		if b != nil {
			d.behavior = *b
		}
		select {
		case pending <- d:
		default:
		}
	}()
}

// scripted picks the behavior for the agent's lowest need, or useful work
// when nothing presses.
func (w *World) scripted(a *Agent) domain.Behavior {
	const pressing = 0.5
	if a.Needs.Hunger < pressing || a.Needs.Energy < pressing || a.Needs.Social < pressing {
		return domain.Behavior{Action: a.lowestNeed(), Reason: "scripted need"}
	}
	for _, p := range w.plots {
		if p.Stage != StageGrowing && p.Stage != StagePlanted {
			return domain.Behavior{Action: domain.ActionFarm, Target: p.Name, Reason: "the fields need tending"}
		}
	}
	return domain.Behavior{Action: domain.ActionWork, Reason: "keeping busy"}
}

func (w *World) execute(ctx context.Context, a *Agent, b domain.Behavior, source domain.BehaviorSource) {
	switch b.Action {
	case domain.ActionEat:
		if w.foodStock > 0 {
			w.foodStock--
			a.Needs.Hunger = domain.ClampUnit(a.Needs.Hunger + 0.5)
		} else {
			a.Needs.Hunger = domain.ClampUnit(a.Needs.Hunger + 0.2)
		}
	case domain.ActionRest:
		a.Needs.Energy = domain.ClampUnit(a.Needs.Energy + 0.4)
	case domain.ActionSocialize:
		w.socialize(a)
	case domain.ActionFarm:
		w.farm(ctx, a)
	case domain.ActionWork, domain.ActionBuild, domain.ActionCraft:
		a.Needs.Energy = domain.ClampUnit(a.Needs.Energy - 0.01)
		if w.tick%16 == 0 {
			w.recordWork(ctx, a, fmt.Sprintf("Spent the day at %s", b.Action), "", []string{b.Action})
		}
	case domain.ActionPray:
		w.recordWork(ctx, a, "Prayed at the shrine", "shrine", []string{"prayer", "ritual"})
	case domain.ActionWander:
		// nothing to do
	}

	if source == domain.BehaviorSourceLLM {
		w.broadcast(domain.WorldEvent{
			Tick:    w.tick,
			Kind:    domain.WorldEventBehavior,
			AgentID: a.ID,
			Detail:  fmt.Sprintf("%s chose to %s: %s", a.Name, b.Action, b.Reason),
			At:      time.Now(),
		})
	}
}

// socialize starts a conversation with another living agent; the resulting
// event is processed on the next tick like any other.
func (w *World) socialize(a *Agent) {
	for _, id := range w.order {
		other := w.agents[id]
		if other.ID == a.ID || !other.Alive {
			continue
		}
		e := domain.ConversationEvent{
			SpeakerID:  a.ID,
			ListenerID: other.ID,
			Topic:      "village life",
			Summary:    "shared the day's small news",
			Sentiment:  0.3,
			OccurredAt: time.Now(),
		}
		select {
		case w.events <- &e:
		default:
			w.logger.Warn("event queue full, conversation dropped",
				zap.String("agent_id", a.ID.String()))
		}
		return
	}
}

func (w *World) nearbyAgents(self uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	for _, id := range w.order {
		if id == self || !w.agents[id].Alive {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (w *World) describeFor(a *Agent) string {
	ready := 0
	for _, p := range w.plots {
		if p.Stage == StageReady {
			ready++
		}
	}
	return fmt.Sprintf("Tick %d in the village. Food stock: %d. Plots ready to harvest: %d.", w.tick, w.foodStock, ready)
}

// runDetection runs belief pattern detection for one agent per pass,
// rotating through the population.
func (w *World) runDetection(ctx context.Context) {
	if w.detector == nil || len(w.order) == 0 {
		return
	}
	id := w.order[w.detectCursor%len(w.order)]
	w.detectCursor++

	beliefs, err := w.detector.DetectPatterns(ctx, id)
	if err != nil {
		w.logger.Error("pattern detection failed",
			zap.String("agent_id", id.String()),
			zap.Error(err))
		return
	}
	if len(beliefs) > 0 {
		w.logger.Debug("pattern detection pass",
			zap.String("agent_id", id.String()),
			zap.Int("beliefs", len(beliefs)))
	}
}

func (w *World) agentName(id uuid.UUID) string {
	if a, ok := w.agents[id]; ok {
		return a.Name
	}
	return "agent " + id.String()[:8]
}

// Status is the world summary the control surface reads. Plots are value
// copies so callers can marshal the snapshot while the tick loop keeps
// mutating the live plots.
type Status struct {
	Tick      uint64 `json:"tick"`
	Agents    int    `json:"agents"`
	Alive     int    `json:"alive"`
	FoodStock int    `json:"food_stock"`
	Plots     []Plot `json:"plots"`
}

func (w *World) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()

	alive := 0
	for _, a := range w.agents {
		if a.Alive {
			alive++
		}
	}
	plots := make([]Plot, len(w.plots))
	for i, p := range w.plots {
		plots[i] = Plot{Name: p.Name, Stage: p.Stage, TenderID: p.TenderID}
	}
	return Status{
		Tick:      w.tick,
		Agents:    len(w.agents),
		Alive:     alive,
		FoodStock: w.foodStock,
		Plots:     plots,
	}
}

// AgentState returns a copy of the runtime state for one agent.
func (w *World) AgentState(id uuid.UUID) (Agent, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.agents[id]
	if !ok {
		return Agent{}, false
	}
	return Agent{ID: a.ID, Name: a.Name, Needs: a.Needs, Alive: a.Alive}, true
}
