package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hushh/voicegate/internal/domain"
)

type ToolRunRepo struct {
	pool *pgxpool.Pool
}

func NewToolRunRepo(pool *pgxpool.Pool) *ToolRunRepo {
	return &ToolRunRepo{pool: pool}
}

// Create inserts a run with ON CONFLICT DO NOTHING on the idempotency key.
// When the insert is skipped the previously stored run is returned together
// with domain.ErrConflict, which is the create-or-return contract the
// executor relies on. Correctness rests on the store's unique constraint,
// not on in-process locks.
func (r *ToolRunRepo) Create(ctx context.Context, run *domain.ToolRun) (*domain.ToolRun, error) {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO tool_runs (id, turn_id, step_index, tool_name, status, idempotency_key, input, output_summary, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		run.ID, run.TurnID, run.StepIndex, run.ToolName, run.Status,
		run.IdempotencyKey, run.Input, run.OutputSummary, run.StartedAt, run.FinishedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("toolRunRepo.Create: %w", err)
	}

	if tag.RowsAffected() == 0 {
		existing, getErr := r.GetByIdempotencyKey(ctx, run.IdempotencyKey)
		if getErr != nil {
			return nil, fmt.Errorf("toolRunRepo.Create: fetch existing: %w", getErr)
		}
		return existing, fmt.Errorf("toolRunRepo.Create: %w", domain.ErrConflict)
	}

	return run, nil
}

func (r *ToolRunRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.ToolRun, error) {
	var run domain.ToolRun

	err := r.pool.QueryRow(ctx,
		`SELECT id, turn_id, step_index, tool_name, status, idempotency_key, input, output_summary, started_at, finished_at
		 FROM tool_runs WHERE idempotency_key = $1`,
		key,
	).Scan(
		&run.ID, &run.TurnID, &run.StepIndex, &run.ToolName, &run.Status,
		&run.IdempotencyKey, &run.Input, &run.OutputSummary, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("toolRunRepo.GetByIdempotencyKey: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("toolRunRepo.GetByIdempotencyKey: %w", err)
	}

	return &run, nil
}

func (r *ToolRunRepo) Complete(ctx context.Context, id uuid.UUID, output json.RawMessage, finishedAt time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tool_runs SET status = $1, output_summary = $2, finished_at = $3
		 WHERE id = $4`,
		domain.ToolRunStatusCompleted, output, finishedAt, id,
	)
	if err != nil {
		return fmt.Errorf("toolRunRepo.Complete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("toolRunRepo.Complete: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ToolRunRepo) ListByTurn(ctx context.Context, turnID uuid.UUID) ([]*domain.ToolRun, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, turn_id, step_index, tool_name, status, idempotency_key, input, output_summary, started_at, finished_at
		 FROM tool_runs WHERE turn_id = $1
		 ORDER BY step_index`,
		turnID,
	)
	if err != nil {
		return nil, fmt.Errorf("toolRunRepo.ListByTurn: %w", err)
	}
	defer rows.Close()

	var runs []*domain.ToolRun
	for rows.Next() {
		var run domain.ToolRun
		if scanErr := rows.Scan(
			&run.ID, &run.TurnID, &run.StepIndex, &run.ToolName, &run.Status,
			&run.IdempotencyKey, &run.Input, &run.OutputSummary, &run.StartedAt, &run.FinishedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("toolRunRepo.ListByTurn: scan: %w", scanErr)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("toolRunRepo.ListByTurn: rows: %w", err)
	}

	return runs, nil
}
