package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lowvale/hearth/internal/domain"
)

type SpiritStore struct {
	db *pgxpool.Pool
}

func NewSpiritStore(db *pgxpool.Pool) *SpiritStore {
	return &SpiritStore{db: db}
}

func (s *SpiritStore) Create(ctx context.Context, sp *domain.Spirit) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO spirits (agent_id, peace, tether, departed_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		sp.AgentID, sp.Peace, sp.Tether, sp.DepartedAt,
	).Scan(&sp.ID)
}

func (s *SpiritStore) GetByAgent(ctx context.Context, agentID uuid.UUID) (*domain.Spirit, error) {
	sp := &domain.Spirit{}
	err := s.db.QueryRow(ctx,
		`SELECT id, agent_id, peace, tether, released, departed_at, released_at
		 FROM spirits WHERE agent_id = $1`,
		agentID,
	).Scan(&sp.ID, &sp.AgentID, &sp.Peace, &sp.Tether, &sp.Released, &sp.DepartedAt, &sp.ReleasedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sp, nil
}

func (s *SpiritStore) Update(ctx context.Context, sp *domain.Spirit) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE spirits SET peace = $2, tether = $3, released = $4, released_at = $5
		 WHERE id = $1`,
		sp.ID, sp.Peace, sp.Tether, sp.Released, sp.ReleasedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SpiritStore) ListActive(ctx context.Context) ([]domain.Spirit, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, peace, tether, released, departed_at, released_at
		 FROM spirits WHERE NOT released
		 ORDER BY departed_at`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var spirits []domain.Spirit
	for rows.Next() {
		var sp domain.Spirit
		err := rows.Scan(&sp.ID, &sp.AgentID, &sp.Peace, &sp.Tether, &sp.Released,
			&sp.DepartedAt, &sp.ReleasedAt)
		if err != nil {
			return nil, err
		}
		spirits = append(spirits, sp)
	}
	return spirits, rows.Err()
}
