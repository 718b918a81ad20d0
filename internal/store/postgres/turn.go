package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hushh/voicegate/internal/domain"
)

type TurnRepo struct {
	pool *pgxpool.Pool
}

func NewTurnRepo(pool *pgxpool.Pool) *TurnRepo {
	return &TurnRepo{pool: pool}
}

func (r *TurnRepo) Create(ctx context.Context, t *domain.Turn) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO turns (id, session_id, user_id, input_mode, execution_mode, pipeline, state, outcome, error_code, request_id, started_at, ended_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		t.ID, t.SessionID, t.UserID, t.InputMode, t.ExecutionMode, t.Pipeline,
		t.State, t.Outcome, t.ErrorCode, t.RequestID, t.StartedAt, t.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("turnRepo.Create: %w", err)
	}

	return nil
}

func (r *TurnRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Turn, error) {
	var t domain.Turn

	err := r.pool.QueryRow(ctx,
		`SELECT id, session_id, user_id, input_mode, execution_mode, pipeline, state, outcome, error_code, request_id, started_at, ended_at
		 FROM turns WHERE id = $1`,
		id,
	).Scan(
		&t.ID, &t.SessionID, &t.UserID, &t.InputMode, &t.ExecutionMode, &t.Pipeline,
		&t.State, &t.Outcome, &t.ErrorCode, &t.RequestID, &t.StartedAt, &t.EndedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("turnRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("turnRepo.GetByID: %w", err)
	}

	return &t, nil
}

func (r *TurnRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*domain.Turn, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, user_id, input_mode, execution_mode, pipeline, state, outcome, error_code, request_id, started_at, ended_at
		 FROM turns WHERE session_id = $1
		 ORDER BY started_at DESC
		 LIMIT $2`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("turnRepo.ListBySession: %w", err)
	}
	defer rows.Close()

	var turns []*domain.Turn
	for rows.Next() {
		var t domain.Turn
		if scanErr := rows.Scan(
			&t.ID, &t.SessionID, &t.UserID, &t.InputMode, &t.ExecutionMode, &t.Pipeline,
			&t.State, &t.Outcome, &t.ErrorCode, &t.RequestID, &t.StartedAt, &t.EndedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("turnRepo.ListBySession: scan: %w", scanErr)
		}
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("turnRepo.ListBySession: rows: %w", err)
	}

	return turns, nil
}

// UpdateState mutates a non-terminal turn. Terminal rows are excluded by the
// WHERE clause so a late writer can never resurrect a finished turn.
func (r *TurnRepo) UpdateState(ctx context.Context, id uuid.UUID, state domain.TurnState) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE turns SET state = $1
		 WHERE id = $2 AND state NOT IN ($3, $4)`,
		state, id, domain.TurnStateDone, domain.TurnStateCancelled,
	)
	if err != nil {
		return fmt.Errorf("turnRepo.UpdateState: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("turnRepo.UpdateState: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *TurnRepo) Complete(ctx context.Context, id uuid.UUID, state domain.TurnState, outcome domain.TurnOutcome, errorCode string, endedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE turns SET state = $1, outcome = $2, error_code = $3, ended_at = $4
		 WHERE id = $5 AND state NOT IN ($6, $7)`,
		state, outcome, errorCode, endedAt, id, domain.TurnStateDone, domain.TurnStateCancelled,
	)
	if err != nil {
		return fmt.Errorf("turnRepo.Complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("turnRepo.Complete: %w", domain.ErrNotFound)
	}

	return nil
}
