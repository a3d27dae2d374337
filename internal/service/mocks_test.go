package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lowvale/hearth/internal/domain"
	"github.com/lowvale/hearth/internal/store"
	"go.uber.org/zap"
)

// mockAgentStore implements domain.AgentStore for testing.
type mockAgentStore struct {
	agents map[uuid.UUID]*domain.Agent
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{agents: make(map[uuid.UUID]*domain.Agent)}
}

func (m *mockAgentStore) Create(ctx context.Context, a *domain.Agent) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if _, ok := m.agents[a.ID]; ok {
		return store.ErrConflict
	}
	m.agents[a.ID] = a
	return nil
}

func (m *mockAgentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (m *mockAgentStore) List(ctx context.Context) ([]domain.Agent, error) {
	var out []domain.Agent
	for _, a := range m.agents {
		out = append(out, *a)
	}
	return out, nil
}

// mockMemoryStore implements domain.MemoryStore for testing. Memories are
// kept in insertion order.
type mockMemoryStore struct {
	memories []*domain.EpisodicMemory
}

func newMockMemoryStore() *mockMemoryStore {
	return &mockMemoryStore{}
}

func (m *mockMemoryStore) Create(ctx context.Context, mem *domain.EpisodicMemory) error {
	mem.ID = uuid.New()
	mem.CreatedAt = time.Now()
	m.memories = append(m.memories, mem)
	return nil
}

func (m *mockMemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EpisodicMemory, error) {
	for _, mem := range m.memories {
		if mem.ID == id {
			return mem, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockMemoryStore) GetRecent(ctx context.Context, agentID uuid.UUID, n int) ([]domain.EpisodicMemory, error) {
	var out []domain.EpisodicMemory
	for i := len(m.memories) - 1; i >= 0 && len(out) < n; i-- {
		if m.memories[i].AgentID == agentID {
			out = append(out, *m.memories[i])
		}
	}
	return out, nil
}

func (m *mockMemoryStore) Filter(ctx context.Context, agentID uuid.UUID, f domain.MemoryFilter) ([]domain.EpisodicMemory, error) {
	var out []domain.EpisodicMemory
	for _, mem := range m.memories {
		if mem.AgentID != agentID {
			continue
		}
		if f.Actor != nil && !mem.Involves(*f.Actor) {
			continue
		}
		if f.Tag != "" && !mem.HasTag(f.Tag) {
			continue
		}
		if f.Since != nil && mem.OccurredAt.Before(*f.Since) {
			continue
		}
		if f.Until != nil && mem.OccurredAt.After(*f.Until) {
			continue
		}
		out = append(out, *mem)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockMemoryStore) Recall(ctx context.Context, agentID uuid.UUID, embedding []float32, topK int) ([]domain.MemoryWithScore, error) {
	var out []domain.MemoryWithScore
	for _, mem := range m.memories {
		if mem.AgentID != agentID || mem.Embedding == nil {
			continue
		}
		out = append(out, domain.MemoryWithScore{EpisodicMemory: *mem, Score: 0.85})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}

func (m *mockMemoryStore) CountByAgent(ctx context.Context, agentID uuid.UUID) (int, error) {
	count := 0
	for _, mem := range m.memories {
		if mem.AgentID == agentID {
			count++
		}
	}
	return count, nil
}

func (m *mockMemoryStore) byTag(agentID uuid.UUID, tag string) []*domain.EpisodicMemory {
	var out []*domain.EpisodicMemory
	for _, mem := range m.memories {
		if mem.AgentID == agentID && mem.HasTag(tag) {
			out = append(out, mem)
		}
	}
	return out
}

// mockBeliefStore implements domain.BeliefStore for testing.
type mockBeliefStore struct {
	beliefs map[uuid.UUID]*domain.Belief
}

func newMockBeliefStore() *mockBeliefStore {
	return &mockBeliefStore{beliefs: make(map[uuid.UUID]*domain.Belief)}
}

func (m *mockBeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	b.ID = uuid.New()
	b.FormedAt = time.Now()
	b.LastUpdated = b.FormedAt
	m.beliefs[b.ID] = b
	return nil
}

func (m *mockBeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b, ok := m.beliefs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *mockBeliefStore) GetByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Belief, error) {
	var out []domain.Belief
	for _, b := range m.beliefs {
		if b.AgentID == agentID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBeliefStore) GetByKey(ctx context.Context, agentID uuid.UUID, category domain.BeliefCategory, subject string) ([]domain.Belief, error) {
	var out []domain.Belief
	for _, b := range m.beliefs {
		if b.AgentID == agentID && b.Category == category && b.Subject == subject {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *mockBeliefStore) TopByConfidence(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.Belief, error) {
	out, _ := m.GetByAgent(ctx, agentID)
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockBeliefStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float32) error {
	b, ok := m.beliefs[id]
	if !ok {
		return store.ErrNotFound
	}
	b.Confidence = confidence
	b.LastUpdated = time.Now()
	return nil
}

func (m *mockBeliefStore) AddEvidence(ctx context.Context, id uuid.UUID, memoryID uuid.UUID, counter bool) error {
	b, ok := m.beliefs[id]
	if !ok {
		return store.ErrNotFound
	}
	if counter {
		b.CounterEvidenceIDs = append(b.CounterEvidenceIDs, memoryID)
	} else {
		b.EvidenceIDs = append(b.EvidenceIDs, memoryID)
	}
	return nil
}

func (m *mockBeliefStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.beliefs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.beliefs, id)
	return nil
}

func (m *mockBeliefStore) ListDistinctAgentIDs(ctx context.Context) ([]uuid.UUID, error) {
	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, b := range m.beliefs {
		if !seen[b.AgentID] {
			seen[b.AgentID] = true
			out = append(out, b.AgentID)
		}
	}
	return out, nil
}

// mockRelationshipStore implements domain.RelationshipStore for testing.
type mockRelationshipStore struct {
	rels map[[2]uuid.UUID]*domain.Relationship
}

func newMockRelationshipStore() *mockRelationshipStore {
	return &mockRelationshipStore{rels: make(map[[2]uuid.UUID]*domain.Relationship)}
}

func (m *mockRelationshipStore) Get(ctx context.Context, observerID, subjectID uuid.UUID) (*domain.Relationship, error) {
	r, ok := m.rels[[2]uuid.UUID{observerID, subjectID}]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRelationshipStore) Upsert(ctx context.Context, r *domain.Relationship) error {
	cp := *r
	m.rels[[2]uuid.UUID{r.ObserverID, r.SubjectID}] = &cp
	return nil
}

func (m *mockRelationshipStore) GetByObserver(ctx context.Context, observerID uuid.UUID) ([]domain.Relationship, error) {
	var out []domain.Relationship
	for key, r := range m.rels {
		if key[0] == observerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// mockEmbeddingClient implements domain.EmbeddingClient for testing.
type mockEmbeddingClient struct {
	err error
}

func (m *mockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return make([]float32, 1536), nil
}

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}
