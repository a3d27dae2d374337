package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lowvale/hearth/internal/domain"
)

type RelationshipStore struct {
	db *pgxpool.Pool
}

func NewRelationshipStore(db *pgxpool.Pool) *RelationshipStore {
	return &RelationshipStore{db: db}
}

func (s *RelationshipStore) Get(ctx context.Context, observerID, subjectID uuid.UUID) (*domain.Relationship, error) {
	r := &domain.Relationship{}
	err := s.db.QueryRow(ctx,
		`SELECT observer_id, subject_id, trust, interactions, last_event_at, created_at, updated_at
		 FROM relationships WHERE observer_id = $1 AND subject_id = $2`,
		observerID, subjectID,
	).Scan(&r.ObserverID, &r.SubjectID, &r.Trust, &r.Interactions, &r.LastEventAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RelationshipStore) Upsert(ctx context.Context, r *domain.Relationship) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO relationships (observer_id, subject_id, trust, interactions, last_event_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (observer_id, subject_id) DO UPDATE
		 SET trust = EXCLUDED.trust,
		     interactions = EXCLUDED.interactions,
		     last_event_at = EXCLUDED.last_event_at,
		     updated_at = NOW()
		 RETURNING created_at, updated_at`,
		r.ObserverID, r.SubjectID, r.Trust, r.Interactions, r.LastEventAt,
	).Scan(&r.CreatedAt, &r.UpdatedAt)
}

func (s *RelationshipStore) GetByObserver(ctx context.Context, observerID uuid.UUID) ([]domain.Relationship, error) {
	rows, err := s.db.Query(ctx,
		`SELECT observer_id, subject_id, trust, interactions, last_event_at, created_at, updated_at
		 FROM relationships WHERE observer_id = $1
		 ORDER BY trust DESC`,
		observerID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rels []domain.Relationship
	for rows.Next() {
		var r domain.Relationship
		err := rows.Scan(&r.ObserverID, &r.SubjectID, &r.Trust, &r.Interactions,
			&r.LastEventAt, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return nil, err
		}
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
