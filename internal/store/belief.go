package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lowvale/hearth/internal/domain"
)

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

const beliefColumns = `id, agent_id, category, subject, statement, confidence, evidence_ids, counter_evidence_ids, formed_at, last_updated`

func (s *BeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO beliefs (agent_id, category, subject, statement, confidence, evidence_ids, counter_evidence_ids)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, formed_at, last_updated`,
		b.AgentID, b.Category, b.Subject, b.Statement, b.Confidence, b.EvidenceIDs, b.CounterEvidenceIDs,
	).Scan(&b.ID, &b.FormedAt, &b.LastUpdated)
}

func (s *BeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b := &domain.Belief{}
	err := s.db.QueryRow(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.AgentID, &b.Category, &b.Subject, &b.Statement, &b.Confidence,
		&b.EvidenceIDs, &b.CounterEvidenceIDs, &b.FormedAt, &b.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BeliefStore) GetByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+` FROM beliefs WHERE agent_id = $1 ORDER BY confidence DESC`,
		agentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

func (s *BeliefStore) GetByKey(ctx context.Context, agentID uuid.UUID, category domain.BeliefCategory, subject string) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+` FROM beliefs
		 WHERE agent_id = $1 AND category = $2 AND subject = $3
		 ORDER BY last_updated DESC`,
		agentID, category, subject,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

func (s *BeliefStore) TopByConfidence(ctx context.Context, agentID uuid.UUID, limit int) ([]domain.Belief, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT `+beliefColumns+` FROM beliefs
		 WHERE agent_id = $1
		 ORDER BY confidence DESC, last_updated DESC
		 LIMIT $2`,
		agentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBeliefs(rows)
}

func (s *BeliefStore) UpdateConfidence(ctx context.Context, id uuid.UUID, confidence float32) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET confidence = $2, last_updated = NOW() WHERE id = $1`,
		id, confidence,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) AddEvidence(ctx context.Context, id uuid.UUID, memoryID uuid.UUID, counter bool) error {
	column := "evidence_ids"
	if counter {
		column = "counter_evidence_ids"
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE beliefs SET `+column+` = array_append(`+column+`, $2), last_updated = NOW()
		 WHERE id = $1 AND NOT ($2 = ANY(`+column+`))`,
		id, memoryID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the belief is gone or the memory is already attached.
		if _, err := s.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *BeliefStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM beliefs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) ListDistinctAgentIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT DISTINCT agent_id FROM beliefs`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanBeliefs(rows pgx.Rows) ([]domain.Belief, error) {
	var beliefs []domain.Belief
	for rows.Next() {
		var b domain.Belief
		err := rows.Scan(&b.ID, &b.AgentID, &b.Category, &b.Subject, &b.Statement,
			&b.Confidence, &b.EvidenceIDs, &b.CounterEvidenceIDs, &b.FormedAt, &b.LastUpdated)
		if err != nil {
			return nil, err
		}
		beliefs = append(beliefs, b)
	}
	return beliefs, rows.Err()
}
