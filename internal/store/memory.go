package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lowvale/hearth/internal/domain"
	pgvector "github.com/pgvector/pgvector-go"
)

type MemoryStore struct {
	db *pgxpool.Pool
}

func NewMemoryStore(db *pgxpool.Pool) *MemoryStore {
	return &MemoryStore{db: db}
}

func (s *MemoryStore) Create(ctx context.Context, m *domain.EpisodicMemory) error {
	var embedding *pgvector.Vector
	if len(m.Embedding) > 0 {
		v := pgvector.NewVector(m.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO memories (agent_id, summary, actors, location, emotional_impact, confidence, tags, embedding, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		m.AgentID, m.Summary, m.Actors, m.Location, m.EmotionalImpact, m.Confidence, m.Tags, embedding, m.OccurredAt,
	).Scan(&m.ID, &m.CreatedAt)
}

func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EpisodicMemory, error) {
	m := &domain.EpisodicMemory{}
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, summary, actors, location, emotional_impact, confidence, tags, occurred_at, created_at
		 FROM memories WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.AgentID, &m.Summary, &m.Actors, &m.Location, &m.EmotionalImpact, &m.Confidence, &m.Tags, &m.OccurredAt, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *MemoryStore) GetRecent(ctx context.Context, agentID uuid.UUID, n int) ([]domain.EpisodicMemory, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, summary, actors, location, emotional_impact, confidence, tags, occurred_at, created_at
		 FROM memories WHERE agent_id = $1
		 ORDER BY occurred_at DESC
		 LIMIT $2`,
		agentID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *MemoryStore) Filter(ctx context.Context, agentID uuid.UUID, f domain.MemoryFilter) ([]domain.EpisodicMemory, error) {
	conditions := []string{"agent_id = $1"}
	args := []any{agentID}

	if f.Actor != nil {
		args = append(args, *f.Actor)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(actors)", len(args)))
	}
	if f.Tag != "" {
		args = append(args, f.Tag)
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(tags)", len(args)))
	}
	if f.Since != nil {
		args = append(args, *f.Since)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if f.Until != nil {
		args = append(args, *f.Until)
		conditions = append(conditions, fmt.Sprintf("occurred_at < $%d", len(args)))
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(
		`SELECT id, agent_id, summary, actors, location, emotional_impact, confidence, tags, occurred_at, created_at
		 FROM memories
		 WHERE %s
		 ORDER BY occurred_at DESC
		 LIMIT $%d`,
		strings.Join(conditions, " AND "),
		len(args),
	)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

func (s *MemoryStore) Recall(ctx context.Context, agentID uuid.UUID, embedding []float32, topK int) ([]domain.MemoryWithScore, error) {
	if topK <= 0 {
		topK = 10
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, summary, actors, location, emotional_impact, confidence, tags, occurred_at, created_at,
		        1 - (embedding <=> $2) AS score
		 FROM memories
		 WHERE agent_id = $1 AND embedding IS NOT NULL
		 ORDER BY embedding <=> $2
		 LIMIT $3`,
		agentID, vec, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("recall query: %w", err)
	}
	defer rows.Close()

	var results []domain.MemoryWithScore
	for rows.Next() {
		var ms domain.MemoryWithScore
		err := rows.Scan(
			&ms.ID, &ms.AgentID, &ms.Summary, &ms.Actors, &ms.Location,
			&ms.EmotionalImpact, &ms.Confidence, &ms.Tags, &ms.OccurredAt, &ms.CreatedAt,
			&ms.Score,
		)
		if err != nil {
			return nil, err
		}
		results = append(results, ms)
	}
	return results, rows.Err()
}

func (s *MemoryStore) CountByAgent(ctx context.Context, agentID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM memories WHERE agent_id = $1`,
		agentID,
	).Scan(&count)
	return count, err
}

func scanMemories(rows pgx.Rows) ([]domain.EpisodicMemory, error) {
	var memories []domain.EpisodicMemory
	for rows.Next() {
		var m domain.EpisodicMemory
		err := rows.Scan(&m.ID, &m.AgentID, &m.Summary, &m.Actors, &m.Location,
			&m.EmotionalImpact, &m.Confidence, &m.Tags, &m.OccurredAt, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}
