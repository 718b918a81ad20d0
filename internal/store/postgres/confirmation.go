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

type ConfirmationRepo struct {
	pool *pgxpool.Pool
}

func NewConfirmationRepo(pool *pgxpool.Pool) *ConfirmationRepo {
	return &ConfirmationRepo{pool: pool}
}

func (r *ConfirmationRepo) Create(ctx context.Context, c *domain.Confirmation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO confirmation_requests (id, turn_id, action_type, preview, status, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.TurnID, c.ActionType, c.Preview, c.Status, c.CreatedAt, c.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("confirmationRepo.Create: %w", err)
	}

	return nil
}

func (r *ConfirmationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	c, err := r.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("confirmationRepo.GetByID: %w", err)
	}
	return c, nil
}

// Resolve flips pending -> accepted|rejected with a conditional UPDATE. The
// status guard in the WHERE clause makes resolution exactly-once: a second
// resolution matches zero rows and the stored row is returned with
// domain.ErrAlreadyResolved.
func (r *ConfirmationRepo) Resolve(ctx context.Context, id uuid.UUID, status domain.ConfirmationStatus, resolvedAt time.Time) (*domain.Confirmation, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE confirmation_requests SET status = $1, resolved_at = $2
		 WHERE id = $3 AND status = $4`,
		status, resolvedAt, id, domain.ConfirmationStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("confirmationRepo.Resolve: %w", err)
	}

	c, err := r.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("confirmationRepo.Resolve: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return c, fmt.Errorf("confirmationRepo.Resolve: %w", domain.ErrAlreadyResolved)
	}

	return c, nil
}

func (r *ConfirmationRepo) ListPendingByTurn(ctx context.Context, turnID uuid.UUID) ([]*domain.Confirmation, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, turn_id, action_type, preview, status, created_at, resolved_at
		 FROM confirmation_requests
		 WHERE turn_id = $1 AND status = $2
		 ORDER BY created_at`,
		turnID, domain.ConfirmationStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("confirmationRepo.ListPendingByTurn: %w", err)
	}
	defer rows.Close()

	var out []*domain.Confirmation
	for rows.Next() {
		var c domain.Confirmation
		if scanErr := rows.Scan(&c.ID, &c.TurnID, &c.ActionType, &c.Preview, &c.Status, &c.CreatedAt, &c.ResolvedAt); scanErr != nil {
			return nil, fmt.Errorf("confirmationRepo.ListPendingByTurn: scan: %w", scanErr)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("confirmationRepo.ListPendingByTurn: rows: %w", err)
	}

	return out, nil
}

func (r *ConfirmationRepo) get(ctx context.Context, id uuid.UUID) (*domain.Confirmation, error) {
	var c domain.Confirmation

	err := r.pool.QueryRow(ctx,
		`SELECT id, turn_id, action_type, preview, status, created_at, resolved_at
		 FROM confirmation_requests WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.TurnID, &c.ActionType, &c.Preview, &c.Status, &c.CreatedAt, &c.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &c, nil
}
